package model

import "time"

// Speaker 标识对话记录中的发言方。
type Speaker string

const (
	SpeakerVisitor   Speaker = "visitor"
	SpeakerAssistant Speaker = "assistant"
)

// WelcomeEntryID 是会话开场欢迎语的固定 ID，不会进入发送给模型的上下文。
const WelcomeEntryID = "welcome"

// TranscriptEntry 是会话内存记录中的一条消息。
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// QuickReply 是首轮交互前展示的快捷回复按钮。
type QuickReply struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Action string `json:"action"`
	Icon   string `json:"icon,omitempty"`
}

// ActionBookAppointment 是打开预约表单的快捷回复动作。
const ActionBookAppointment = "BOOK_APPOINTMENT"

// DefaultQuickReplies 返回快捷回复列表的副本。
func DefaultQuickReplies() []QuickReply {
	return []QuickReply{
		{ID: "book-appointment", Label: "Book Appointment", Action: ActionBookAppointment, Icon: "📅"},
		{ID: "doctors-departments", Label: "Doctors & Departments", Action: "DOCTORS_DEPARTMENTS", Icon: "👨‍⚕️"},
		{ID: "consultation-fees", Label: "Consultation Fees", Action: "CONSULTATION_FEES", Icon: "💰"},
		{ID: "hospital-timings", Label: "Hospital Timings", Action: "HOSPITAL_TIMINGS", Icon: "🕐"},
		{ID: "emergency-contact", Label: "Emergency Contact", Action: "EMERGENCY_CONTACT", Icon: "🚨"},
	}
}

// SessionSnapshot 是写入 Redis 的会话快照。
type SessionSnapshot struct {
	SessionID           string            `json:"sessionId"`
	HospitalID          string            `json:"hospitalId"`
	State               string            `json:"state"`
	QuickRepliesVisible bool              `json:"quickRepliesVisible"`
	Transcript          []TranscriptEntry `json:"transcript"`
	CreatedAt           time.Time         `json:"createdAt"`
}
