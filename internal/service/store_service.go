package service

import (
	"context"
	"fmt"
	"time"

	"medidesk-go/internal/model"
	"medidesk-go/internal/repository"
	"medidesk-go/pkg/log"
)

// statsSampleSize 是计算预约统计时读取的最大记录数。
const statsSampleSize = 1000

// ChatLogIndexer 把聊天记录写入全文索引。
type ChatLogIndexer interface {
	Index(ctx context.Context, chat model.ChatLog) error
}

// ConversationStore 是聊天记录与预约请求的存储入口。所有失败都以 error 返回，并在此处记录日志。
type ConversationStore interface {
	AppendChatLog(ctx context.Context, visitorText, assistantText, hospitalID string) (string, error)
	AppendAppointment(ctx context.Context, req model.AppointmentRequest) (string, error)
	ListChatLogs(ctx context.Context, max int) ([]model.ChatLog, error)
	ListAppointments(ctx context.Context, max int, status *model.AppointmentStatus) ([]model.Appointment, error)
	AppointmentStats(ctx context.Context) (model.AppointmentStats, error)
}

type conversationStore struct {
	chatRepo        repository.ChatLogRepository
	appointmentRepo repository.AppointmentRepository
	indexer         ChatLogIndexer
}

// NewConversationStore 创建一个新的 ConversationStore 实例。indexer 可以为 nil，表示不启用全文检索。
func NewConversationStore(chatRepo repository.ChatLogRepository, appointmentRepo repository.AppointmentRepository, indexer ChatLogIndexer) ConversationStore {
	return &conversationStore{
		chatRepo:        chatRepo,
		appointmentRepo: appointmentRepo,
		indexer:         indexer,
	}
}

func (s *conversationStore) AppendChatLog(ctx context.Context, visitorText, assistantText, hospitalID string) (string, error) {
	chat := &model.ChatLog{
		VisitorText:   visitorText,
		AssistantText: assistantText,
		HospitalID:    hospitalID,
		CreatedAt:     time.Now(),
	}
	if err := s.chatRepo.Create(ctx, chat); err != nil {
		log.Errorf("保存聊天记录失败: %v", err)
		return "", fmt.Errorf("save chat log: %w", err)
	}

	if s.indexer != nil {
		// 索引失败不影响聊天记录本身
		if err := s.indexer.Index(ctx, *chat); err != nil {
			log.Warnf("聊天记录写入索引失败, id=%s: %v", chat.ID, err)
		}
	}
	return chat.ID, nil
}

// AppendAppointment 写入预约请求。状态由调用方决定，非法状态会被仓储层拒绝。
func (s *conversationStore) AppendAppointment(ctx context.Context, req model.AppointmentRequest) (string, error) {
	appt := &model.Appointment{
		Name:          req.Name,
		Contact:       req.Contact,
		Department:    req.Department,
		PreferredTime: req.PreferredTime,
		Reason:        req.Reason,
		Status:        req.Status,
		HospitalID:    req.HospitalID,
		CreatedAt:     time.Now(),
	}
	if err := s.appointmentRepo.Create(ctx, appt); err != nil {
		log.Errorf("保存预约请求失败: %v", err)
		return "", fmt.Errorf("save appointment: %w", err)
	}
	return appt.ID, nil
}

func (s *conversationStore) ListChatLogs(ctx context.Context, max int) ([]model.ChatLog, error) {
	chats, err := s.chatRepo.List(ctx, max)
	if err != nil {
		log.Errorf("查询聊天记录失败: %v", err)
		return nil, fmt.Errorf("list chat logs: %w", err)
	}
	return chats, nil
}

func (s *conversationStore) ListAppointments(ctx context.Context, max int, status *model.AppointmentStatus) ([]model.Appointment, error) {
	list, err := s.appointmentRepo.List(ctx, max, status)
	if err != nil {
		log.Errorf("查询预约请求失败: %v", err)
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return list, nil
}

// AppointmentStats 基于同一份最多 1000 条的列表快照统计各状态数量。
func (s *conversationStore) AppointmentStats(ctx context.Context) (model.AppointmentStats, error) {
	list, err := s.ListAppointments(ctx, statsSampleSize, nil)
	if err != nil {
		return model.AppointmentStats{}, err
	}
	return model.CountAppointments(list), nil
}
