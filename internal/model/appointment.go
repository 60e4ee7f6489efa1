package model

import (
	"fmt"
	"time"
)

// AppointmentStatus 表示预约请求的处理状态。
type AppointmentStatus string

const (
	StatusNew       AppointmentStatus = "new"
	StatusPending   AppointmentStatus = "pending"
	StatusCompleted AppointmentStatus = "completed"
)

// AppointmentStatuses 按展示顺序列出所有合法状态。
var AppointmentStatuses = []AppointmentStatus{StatusNew, StatusPending, StatusCompleted}

// Valid 判断状态是否属于三值枚举。
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusNew, StatusPending, StatusCompleted:
		return true
	}
	return false
}

// ParseAppointmentStatus 解析查询参数中的状态；空串或 "all" 表示不过滤，返回 nil。
func ParseAppointmentStatus(raw string) (*AppointmentStatus, error) {
	if raw == "" || raw == "all" {
		return nil, nil
	}
	s := AppointmentStatus(raw)
	if !s.Valid() {
		return nil, fmt.Errorf("invalid appointment status: %q", raw)
	}
	return &s, nil
}

// Appointment 对应 'appointments' 表/集合中的一条预约请求。
type Appointment struct {
	ID            string            `gorm:"type:varchar(36);primaryKey" json:"id" bson:"_id"`
	Name          string            `gorm:"type:varchar(255);not null" json:"name" bson:"name"`
	Contact       string            `gorm:"type:varchar(255);not null" json:"contact" bson:"contact"`
	Department    string            `gorm:"type:varchar(255);not null" json:"department" bson:"department"`
	PreferredTime string            `gorm:"type:varchar(255);not null" json:"preferredTime" bson:"preferredTime"`
	Reason        string            `gorm:"type:text" json:"reason,omitempty" bson:"reason,omitempty"`
	Status        AppointmentStatus `gorm:"type:varchar(20);index;not null;default:'new'" json:"status" bson:"status"`
	HospitalID    string            `gorm:"type:varchar(100);index;not null" json:"hospitalId" bson:"hospitalId"`
	CreatedAt     time.Time         `gorm:"index" json:"createdAt" bson:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Appointment) TableName() string {
	return "appointments"
}

// AppointmentRequest 是不含 id/createdAt 的预约记录，由会话提交给存储层。
type AppointmentRequest struct {
	Name          string
	Contact       string
	Department    string
	PreferredTime string
	Reason        string
	Status        AppointmentStatus
	HospitalID    string
}

// AppointmentStats 是管理后台概览页的统计数据。
type AppointmentStats struct {
	Total     int `json:"total"`
	New       int `json:"new"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
}

// CountAppointments 在同一份列表快照上统计各状态数量。
func CountAppointments(list []Appointment) AppointmentStats {
	stats := AppointmentStats{Total: len(list)}
	for _, a := range list {
		switch a.Status {
		case StatusNew:
			stats.New++
		case StatusPending:
			stats.Pending++
		case StatusCompleted:
			stats.Completed++
		}
	}
	return stats
}
