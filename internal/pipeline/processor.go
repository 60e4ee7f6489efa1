// Package pipeline 定义了预约通知的投递与处理流程。
package pipeline

import (
	"context"
	"fmt"
	"time"

	"medidesk-go/internal/model"
	"medidesk-go/pkg/kafka"
	"medidesk-go/pkg/log"
	"medidesk-go/pkg/tasks"
)

// submissionDateFormat 是邮件中提交时间的展示格式。
const submissionDateFormat = "1/2/2006, 3:04:05 PM"

// EmailSender 抽象了模板邮件的发送。
type EmailSender interface {
	Send(ctx context.Context, templateParams map[string]string) error
}

// NewNotificationTask 根据已保存的预约构建通知任务。
func NewNotificationTask(appt model.Appointment, hospitalName string, submittedAt time.Time) tasks.AppointmentNotificationTask {
	return tasks.AppointmentNotificationTask{
		AppointmentID:  appt.ID,
		PatientName:    appt.Name,
		PhoneOrEmail:   appt.Contact,
		Department:     appt.Department,
		PreferredTime:  appt.PreferredTime,
		Reason:         appt.Reason,
		HospitalName:   hospitalName,
		SubmissionDate: submittedAt.Format(submissionDateFormat),
	}
}

// TemplateParams 把通知任务转换为邮件模板变量；原因为空时填写 "Not specified"。
func TemplateParams(task tasks.AppointmentNotificationTask) map[string]string {
	reason := task.Reason
	if reason == "" {
		reason = "Not specified"
	}
	return map[string]string{
		"patient_name":    task.PatientName,
		"phone_or_email":  task.PhoneOrEmail,
		"department":      task.Department,
		"preferred_time":  task.PreferredTime,
		"reason":          reason,
		"hospital_name":   task.HospitalName,
		"submission_date": task.SubmissionDate,
	}
}

// Processor 消费通知任务并发送邮件。
type Processor struct {
	sender EmailSender
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(sender EmailSender) *Processor {
	return &Processor{sender: sender}
}

// Process 发送一封预约通知邮件。
func (p *Processor) Process(ctx context.Context, task tasks.AppointmentNotificationTask) error {
	log.Infof("[Processor] 发送预约通知, AppointmentID: %s, Department: %s", task.AppointmentID, task.Department)
	if err := p.sender.Send(ctx, TemplateParams(task)); err != nil {
		return fmt.Errorf("发送预约通知邮件失败: %w", err)
	}
	return nil
}

// DirectNotifier 在请求之外直接调用 Processor 发送通知，不经过消息队列。
type DirectNotifier struct {
	processor    *Processor
	hospitalName string
}

// NewDirectNotifier 创建直接发送的通知器。
func NewDirectNotifier(processor *Processor, hospitalName string) *DirectNotifier {
	return &DirectNotifier{processor: processor, hospitalName: hospitalName}
}

// Notify 发送预约通知。
func (n *DirectNotifier) Notify(ctx context.Context, appt model.Appointment) error {
	return n.processor.Process(ctx, NewNotificationTask(appt, n.hospitalName, time.Now()))
}

// KafkaNotifier 把通知任务投递到 Kafka，由后台消费者发送。
type KafkaNotifier struct {
	hospitalName string
}

// NewKafkaNotifier 创建基于 Kafka 的通知器，调用前需先执行 kafka.InitProducer。
func NewKafkaNotifier(hospitalName string) *KafkaNotifier {
	return &KafkaNotifier{hospitalName: hospitalName}
}

// Notify 投递预约通知任务。
func (n *KafkaNotifier) Notify(ctx context.Context, appt model.Appointment) error {
	return kafka.ProduceNotificationTask(ctx, NewNotificationTask(appt, n.hospitalName, time.Now()))
}
