// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// AppointmentNotificationTask 是一条待发送的预约通知。
// 字段名与邮件模板变量保持一致。
type AppointmentNotificationTask struct {
	AppointmentID  string `json:"appointment_id"`
	PatientName    string `json:"patient_name"`
	PhoneOrEmail   string `json:"phone_or_email"`
	Department     string `json:"department"`
	PreferredTime  string `json:"preferred_time"`
	Reason         string `json:"reason,omitempty"`
	HospitalName   string `json:"hospital_name"`
	SubmissionDate string `json:"submission_date"`
}
