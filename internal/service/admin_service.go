package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"

	"medidesk-go/internal/model"
	"medidesk-go/pkg/log"
)

const (
	// DefaultListLimit 是后台列表默认返回的条数。
	DefaultListLimit = 50
	// MaxListLimit 是后台列表与导出的最大条数。
	MaxListLimit = 1000
	// overviewRecentCount 是概览页展示的最新记录数。
	overviewRecentCount = 5
)

// ErrExportDisabled 表示未配置对象存储，无法导出。
var ErrExportDisabled = errors.New("appointment export is not configured")

// AppointmentDTO 是后台列表中的预约记录。
type AppointmentDTO struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	Contact       string                  `json:"contact"`
	Department    string                  `json:"department"`
	PreferredTime string                  `json:"preferredTime"`
	Reason        string                  `json:"reason,omitempty"`
	Status        model.AppointmentStatus `json:"status"`
	HospitalID    string                  `json:"hospitalId"`
	CreatedAt     model.LocalTime         `json:"createdAt"`
}

// ChatLogDTO 是后台列表中的聊天记录。
type ChatLogDTO struct {
	ID            string          `json:"id"`
	VisitorText   string          `json:"visitorText"`
	AssistantText string          `json:"assistantText"`
	HospitalID    string          `json:"hospitalId"`
	CreatedAt     model.LocalTime `json:"createdAt"`
}

// AdminOverview 是后台概览页的数据。
type AdminOverview struct {
	Stats              model.AppointmentStats `json:"stats"`
	RecentAppointments []AppointmentDTO       `json:"recentAppointments"`
	RecentChats        []ChatLogDTO           `json:"recentChats"`
}

// ExportResult 描述一次预约导出。
type ExportResult struct {
	ObjectName  string `json:"objectName"`
	DownloadURL string `json:"downloadUrl"`
	Rows        int    `json:"rows"`
}

// ChatLogSearcher 在全文索引中检索聊天记录。
type ChatLogSearcher interface {
	Search(ctx context.Context, query string, size int) ([]model.ChatLog, error)
}

// ObjectStore 保存导出文件并返回下载地址。
type ObjectStore interface {
	Put(ctx context.Context, objectName, contentType string, data []byte) (string, error)
}

// AdminService 接口定义了后台看板的只读操作。
type AdminService interface {
	Overview(ctx context.Context) (*AdminOverview, error)
	ListAppointments(ctx context.Context, status *model.AppointmentStatus, query string, limit int) ([]AppointmentDTO, error)
	ListChatLogs(ctx context.Context, query string, limit int) ([]ChatLogDTO, error)
	ExportAppointments(ctx context.Context, status *model.AppointmentStatus) (*ExportResult, error)
}

type adminService struct {
	store    ConversationStore
	searcher ChatLogSearcher
	objects  ObjectStore
}

// NewAdminService 创建一个新的 AdminService 实例。searcher 与 objects 可以为 nil。
func NewAdminService(store ConversationStore, searcher ChatLogSearcher, objects ObjectStore) AdminService {
	return &adminService{store: store, searcher: searcher, objects: objects}
}

// Overview 返回统计数据与最新的预约、聊天记录。
func (s *adminService) Overview(ctx context.Context) (*AdminOverview, error) {
	stats, err := s.store.AppointmentStats(ctx)
	if err != nil {
		return nil, err
	}
	appts, err := s.store.ListAppointments(ctx, overviewRecentCount, nil)
	if err != nil {
		return nil, err
	}
	chats, err := s.store.ListChatLogs(ctx, overviewRecentCount)
	if err != nil {
		return nil, err
	}
	return &AdminOverview{
		Stats:              stats,
		RecentAppointments: toAppointmentDTOs(appts),
		RecentChats:        toChatLogDTOs(chats),
	}, nil
}

// ListAppointments 按状态与关键字筛选预约；关键字匹配姓名、科室与联系方式，不区分大小写。
func (s *adminService) ListAppointments(ctx context.Context, status *model.AppointmentStatus, query string, limit int) ([]AppointmentDTO, error) {
	list, err := s.store.ListAppointments(ctx, clampLimit(limit), status)
	if err != nil {
		return nil, err
	}
	return toAppointmentDTOs(filterAppointments(list, query)), nil
}

// ListChatLogs 按关键字筛选聊天记录。启用全文索引时优先使用索引，索引不可用时回退到本地过滤。
func (s *adminService) ListChatLogs(ctx context.Context, query string, limit int) ([]ChatLogDTO, error) {
	limit = clampLimit(limit)
	query = strings.TrimSpace(query)

	if query != "" && s.searcher != nil {
		chats, err := s.searcher.Search(ctx, query, limit)
		if err == nil {
			return toChatLogDTOs(chats), nil
		}
		log.Warnf("全文检索聊天记录失败，回退到本地过滤: %v", err)
	}

	chats, err := s.store.ListChatLogs(ctx, limit)
	if err != nil {
		return nil, err
	}
	return toChatLogDTOs(filterChatLogs(chats, query)), nil
}

// ExportAppointments 把预约导出为 CSV 并上传到对象存储。
func (s *adminService) ExportAppointments(ctx context.Context, status *model.AppointmentStatus) (*ExportResult, error) {
	if s.objects == nil {
		return nil, ErrExportDisabled
	}
	list, err := s.store.ListAppointments(ctx, MaxListLimit, status)
	if err != nil {
		return nil, err
	}

	data, err := appointmentsCSV(list)
	if err != nil {
		return nil, fmt.Errorf("生成 CSV 失败: %w", err)
	}

	label := "all"
	if status != nil {
		label = string(*status)
	}
	objectName := fmt.Sprintf("exports/appointments-%s-%s.csv", label, time.Now().Format("20060102-150405"))
	url, err := s.objects.Put(ctx, objectName, "text/csv", data)
	if err != nil {
		log.Errorf("上传预约导出文件失败: %v", err)
		return nil, fmt.Errorf("upload export: %w", err)
	}
	log.Infof("预约导出完成, object=%s, rows=%d", objectName, len(list))
	return &ExportResult{ObjectName: objectName, DownloadURL: url, Rows: len(list)}, nil
}

var csvHeader = []string{"id", "createdAt", "name", "contact", "department", "preferredTime", "reason", "status", "hospitalId"}

func appointmentsCSV(list []model.Appointment) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, a := range list {
		row := []string{
			a.ID,
			model.LocalTime(a.CreatedAt).String(),
			a.Name,
			a.Contact,
			a.Department,
			a.PreferredTime,
			a.Reason,
			string(a.Status),
			a.HospitalID,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func filterAppointments(list []model.Appointment, query string) []model.Appointment {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return list
	}
	out := make([]model.Appointment, 0, len(list))
	for _, a := range list {
		if containsFold(a.Name, q) || containsFold(a.Department, q) || containsFold(a.Contact, q) {
			out = append(out, a)
		}
	}
	return out
}

func filterChatLogs(list []model.ChatLog, query string) []model.ChatLog {
	q := strings.ToLower(query)
	if q == "" {
		return list
	}
	out := make([]model.ChatLog, 0, len(list))
	for _, c := range list {
		if containsFold(c.VisitorText, q) || containsFold(c.AssistantText, q) {
			out = append(out, c)
		}
	}
	return out
}

// containsFold 判断 s 是否包含已转小写的 lowerQuery。
func containsFold(s, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(s), lowerQuery)
}

func toAppointmentDTOs(list []model.Appointment) []AppointmentDTO {
	out := make([]AppointmentDTO, 0, len(list))
	for _, a := range list {
		out = append(out, AppointmentDTO{
			ID:            a.ID,
			Name:          a.Name,
			Contact:       a.Contact,
			Department:    a.Department,
			PreferredTime: a.PreferredTime,
			Reason:        a.Reason,
			Status:        a.Status,
			HospitalID:    a.HospitalID,
			CreatedAt:     model.LocalTime(a.CreatedAt),
		})
	}
	return out
}

func toChatLogDTOs(list []model.ChatLog) []ChatLogDTO {
	out := make([]ChatLogDTO, 0, len(list))
	for _, c := range list {
		out = append(out, ChatLogDTO{
			ID:            c.ID,
			VisitorText:   c.VisitorText,
			AssistantText: c.AssistantText,
			HospitalID:    c.HospitalID,
			CreatedAt:     model.LocalTime(c.CreatedAt),
		})
	}
	return out
}
