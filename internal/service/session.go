package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"medidesk-go/internal/model"
	"medidesk-go/pkg/llm"
	"medidesk-go/pkg/log"
	"medidesk-go/pkg/telemetry"
)

// SessionState 是会话状态机的状态。
type SessionState string

const (
	StateIdle    SessionState = "idle"
	StatePending SessionState = "pending"
	StateBooking SessionState = "booking"
)

var (
	// ErrTurnInFlight 表示上一轮回复尚未完成。
	ErrTurnInFlight = errors.New("a reply is still in progress")
	// ErrBookingInProgress 表示预约表单打开期间不能发送消息。
	ErrBookingInProgress = errors.New("appointment form is open")
	// ErrNotBooking 表示当前没有打开预约表单。
	ErrNotBooking = errors.New("appointment form is not open")
	// ErrAppointmentNotSaved 表示预约请求未能保存，访客可以重试。
	ErrAppointmentNotSaved = errors.New(AppointmentSaveFailed)
)

// ValidationError 描述预约表单中某个字段的校验失败。
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AppointmentForm 是访客提交的预约表单。
type AppointmentForm struct {
	Name          string `json:"name"`
	Contact       string `json:"contact"`
	Department    string `json:"department"`
	PreferredTime string `json:"preferredTime"`
	Reason        string `json:"reason"`
	// Status 会被忽略，新建的预约一律为 new
	Status string `json:"status,omitempty"`
}

// SessionView 是返回给挂件的会话视图。
type SessionView struct {
	SessionID    string                  `json:"sessionId"`
	HospitalID   string                  `json:"hospitalId"`
	State        SessionState            `json:"state"`
	Typing       bool                    `json:"typing"`
	BookingOpen  bool                    `json:"bookingOpen"`
	QuickReplies []model.QuickReply      `json:"quickReplies"`
	Transcript   []model.TranscriptEntry `json:"transcript"`
}

// AppointmentNotifier 在预约保存后通知医院工作人员。
type AppointmentNotifier interface {
	Notify(ctx context.Context, appt model.Appointment) error
}

// sessionEnv 是同一 ChatService 下所有会话共享的依赖。
type sessionEnv struct {
	profile       *model.HospitalProfile
	completion    CompletionService
	store         ConversationStore
	notifier      AppointmentNotifier
	historyWindow int
	medicalGuard  bool
	metrics       *telemetry.Metrics
	detach        *detacher
	onChange      func(*model.SessionSnapshot)
}

// Session 是一个访客的对话会话。同一会话上的操作由互斥锁串行化，
// 大模型调用与存储写入在锁外进行。
type Session struct {
	mu                  sync.Mutex
	id                  string
	state               SessionState
	saving              bool
	quickRepliesVisible bool
	transcript          []model.TranscriptEntry
	createdAt           time.Time
	lastActive          time.Time
	env                 *sessionEnv
}

func newSession(id string, env *sessionEnv) *Session {
	now := time.Now()
	return &Session{
		id:                  id,
		state:               StateIdle,
		quickRepliesVisible: true,
		transcript: []model.TranscriptEntry{{
			ID:        model.WelcomeEntryID,
			Speaker:   model.SpeakerAssistant,
			Text:      WelcomeText,
			Timestamp: now,
		}},
		createdAt:  now,
		lastActive: now,
		env:        env,
	}
}

// restoreSession 从快照恢复会话。进行中的回合与打开的表单都不会恢复，状态一律为 idle。
func restoreSession(snap *model.SessionSnapshot, env *sessionEnv) *Session {
	transcript := append([]model.TranscriptEntry(nil), snap.Transcript...)
	if len(transcript) == 0 {
		return newSession(snap.SessionID, env)
	}
	return &Session{
		id:                  snap.SessionID,
		state:               StateIdle,
		quickRepliesVisible: snap.QuickRepliesVisible,
		transcript:          transcript,
		createdAt:           snap.CreatedAt,
		lastActive:          time.Now(),
		env:                 env,
	}
}

// ID 返回会话 ID。
func (s *Session) ID() string {
	return s.id
}

// View 返回当前会话视图。
func (s *Session) View() *SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Submit 发送一条访客消息并等待助手回复。
// 去除首尾空白后为空的输入不做任何处理。
func (s *Session) Submit(ctx context.Context, visitorText string) (*SessionView, error) {
	return s.SubmitNotify(ctx, visitorText, nil)
}

// SubmitNotify 与 Submit 相同；会话进入 pending 后、调用模型之前，以 pending 视图回调 onPending。
// 空输入与被拒绝的提交不会触发回调。
func (s *Session) SubmitNotify(ctx context.Context, visitorText string, onPending func(*SessionView)) (*SessionView, error) {
	text := strings.TrimSpace(visitorText)

	s.mu.Lock()
	if text == "" {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, nil
	}
	switch s.state {
	case StatePending:
		s.mu.Unlock()
		return nil, ErrTurnInFlight
	case StateBooking:
		s.mu.Unlock()
		return nil, ErrBookingInProgress
	}
	// 上下文窗口取新消息之前的记录
	history := s.historyLocked()
	s.appendLocked(model.SpeakerVisitor, text)
	s.quickRepliesVisible = false
	s.state = StatePending
	s.touchLocked()
	pendingView := s.viewLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.env.onChange(snap)

	defer s.releaseTurn()
	if onPending != nil {
		onPending(pendingView)
	}

	ctx, span := telemetry.StartSpan(ctx, "session.Submit")
	defer span.End()

	reply, err := s.answer(ctx, text, history)

	s.mu.Lock()
	s.appendLocked(model.SpeakerAssistant, reply)
	s.state = StateIdle
	s.touchLocked()
	v := s.viewLocked()
	snap = s.snapshotLocked()
	s.mu.Unlock()
	s.env.onChange(snap)

	telemetry.Add(ctx, s.env.metrics.TurnCount)
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.Add(ctx, s.env.metrics.FallbackCount)
		return v, nil
	}

	hospitalID := s.env.profile.HospitalID
	s.env.detach.Go("persist-chat-log", func(bg context.Context) {
		if _, err := s.env.store.AppendChatLog(bg, text, reply, hospitalID); err != nil {
			telemetry.Add(bg, s.env.metrics.PersistFailCount)
			log.Errorw("聊天记录未保存", "sessionId", s.id, "error", err)
		}
	})
	return v, nil
}

// answer 生成助手回复。开启医疗咨询拦截时，命中关键词的问题直接返回固定回复。
func (s *Session) answer(ctx context.Context, text string, history []llm.Message) (string, error) {
	if s.env.medicalGuard && ContainsMedicalQuery(text) {
		return MedicalQueryResponse(""), nil
	}
	return s.env.completion.Complete(ctx, text, history)
}

// releaseTurn 确保回合结束后会话回到 idle，即使中途 panic。
func (s *Session) releaseTurn() {
	s.mu.Lock()
	if s.state == StatePending {
		s.state = StateIdle
	}
	s.mu.Unlock()
}

// SelectQuickReply 处理快捷回复。快捷回复在首次交互后永久隐藏。
func (s *Session) SelectQuickReply(ctx context.Context, action, label string) (*SessionView, error) {
	return s.SelectQuickReplyNotify(ctx, action, label, nil)
}

// SelectQuickReplyNotify 与 SelectQuickReply 相同；按钮触发一轮对话时，onPending 的语义同 SubmitNotify。
func (s *Session) SelectQuickReplyNotify(ctx context.Context, action, label string, onPending func(*SessionView)) (*SessionView, error) {
	s.mu.Lock()
	s.quickRepliesVisible = false
	if action != model.ActionBookAppointment {
		s.mu.Unlock()
		return s.SubmitNotify(ctx, label, onPending)
	}
	if s.state == StatePending {
		s.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	s.state = StateBooking
	s.touchLocked()
	v := s.viewLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.env.onChange(snap)
	return v, nil
}

// CompleteAppointment 校验并保存预约表单。保存失败时表单保持打开，访客可以重试。
func (s *Session) CompleteAppointment(ctx context.Context, form AppointmentForm) (*SessionView, error) {
	s.mu.Lock()
	if s.state != StateBooking {
		s.mu.Unlock()
		return nil, ErrNotBooking
	}
	if s.saving {
		s.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	if err := validateAppointment(form, s.env.profile); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.saving = true
	s.mu.Unlock()

	req := model.AppointmentRequest{
		Name:          strings.TrimSpace(form.Name),
		Contact:       strings.TrimSpace(form.Contact),
		Department:    form.Department,
		PreferredTime: strings.TrimSpace(form.PreferredTime),
		Reason:        strings.TrimSpace(form.Reason),
		Status:        model.StatusNew,
		HospitalID:    s.env.profile.HospitalID,
	}
	if form.Status != "" && form.Status != string(model.StatusNew) {
		log.Warnf("预约表单携带的状态 %q 已忽略", form.Status)
	}

	id, err := s.env.store.AppendAppointment(ctx, req)

	s.mu.Lock()
	s.saving = false
	if err != nil {
		s.mu.Unlock()
		telemetry.Add(ctx, s.env.metrics.PersistFailCount)
		return nil, fmt.Errorf("%w: %v", ErrAppointmentNotSaved, err)
	}
	s.state = StateIdle
	s.appendLocked(model.SpeakerAssistant, AppointmentConfirmation)
	s.touchLocked()
	v := s.viewLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.env.onChange(snap)

	telemetry.Add(ctx, s.env.metrics.AppointmentCount)
	appt := model.Appointment{
		ID:            id,
		Name:          req.Name,
		Contact:       req.Contact,
		Department:    req.Department,
		PreferredTime: req.PreferredTime,
		Reason:        req.Reason,
		Status:        req.Status,
		HospitalID:    req.HospitalID,
	}
	if s.env.notifier != nil {
		s.env.detach.Go("notify-appointment", func(bg context.Context) {
			if err := s.env.notifier.Notify(bg, appt); err != nil {
				log.Errorw("预约通知发送失败", "appointmentId", appt.ID, "error", err)
				return
			}
			log.Infow("预约通知已发送", "appointmentId", appt.ID)
		})
	}
	return v, nil
}

// CancelBooking 关闭预约表单，不追加任何记录。
func (s *Session) CancelBooking() (*SessionView, error) {
	s.mu.Lock()
	if s.state != StateBooking {
		s.mu.Unlock()
		return nil, ErrNotBooking
	}
	if s.saving {
		s.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	s.state = StateIdle
	s.touchLocked()
	v := s.viewLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.env.onChange(snap)
	return v, nil
}

func validateAppointment(form AppointmentForm, profile *model.HospitalProfile) error {
	switch {
	case strings.TrimSpace(form.Name) == "":
		return &ValidationError{Field: "name", Message: "Please enter your name"}
	case strings.TrimSpace(form.Contact) == "":
		return &ValidationError{Field: "contact", Message: "Please enter your phone or email"}
	case form.Department == "" || !profile.HasDepartment(form.Department):
		return &ValidationError{Field: "department", Message: "Please select a department"}
	case strings.TrimSpace(form.PreferredTime) == "":
		return &ValidationError{Field: "preferredTime", Message: "Please enter your preferred time"}
	}
	return nil
}

// historyLocked 取最近 historyWindow 条记录作为上下文，不含欢迎语。
func (s *Session) historyLocked() []llm.Message {
	entries := make([]model.TranscriptEntry, 0, len(s.transcript))
	for _, e := range s.transcript {
		if e.ID == model.WelcomeEntryID {
			continue
		}
		entries = append(entries, e)
	}
	if n := s.env.historyWindow; n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	out := make([]llm.Message, 0, len(entries))
	for _, e := range entries {
		role := llm.RoleUser
		if e.Speaker == model.SpeakerAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: e.Text})
	}
	return out
}

func (s *Session) appendLocked(speaker model.Speaker, text string) {
	s.transcript = append(s.transcript, model.TranscriptEntry{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now(),
	})
}

func (s *Session) touchLocked() {
	s.lastActive = time.Now()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) viewLocked() *SessionView {
	quickReplies := []model.QuickReply{}
	if s.quickRepliesVisible {
		quickReplies = model.DefaultQuickReplies()
	}
	return &SessionView{
		SessionID:    s.id,
		HospitalID:   s.env.profile.HospitalID,
		State:        s.state,
		Typing:       s.state == StatePending,
		BookingOpen:  s.state == StateBooking,
		QuickReplies: quickReplies,
		Transcript:   append([]model.TranscriptEntry(nil), s.transcript...),
	}
}

func (s *Session) snapshot() *model.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() *model.SessionSnapshot {
	return &model.SessionSnapshot{
		SessionID:           s.id,
		HospitalID:          s.env.profile.HospitalID,
		State:               string(s.state),
		QuickRepliesVisible: s.quickRepliesVisible,
		Transcript:          append([]model.TranscriptEntry(nil), s.transcript...),
		CreatedAt:           s.createdAt,
	}
}
