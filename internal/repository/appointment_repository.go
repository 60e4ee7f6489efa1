package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"medidesk-go/internal/model"
)

// ErrInvalidStatus 表示试图写入三值枚举以外的预约状态。
var ErrInvalidStatus = errors.New("invalid appointment status")

// AppointmentRepository 定义了预约请求的持久化操作。
type AppointmentRepository interface {
	Create(ctx context.Context, appt *model.Appointment) error
	// List 按创建时间倒序返回最多 limit 条记录；status 为 nil 时不过滤。
	List(ctx context.Context, limit int, status *model.AppointmentStatus) ([]model.Appointment, error)
}

type appointmentRepository struct {
	db *gorm.DB
}

// NewAppointmentRepository 创建一个基于 GORM 的 AppointmentRepository 实例。
func NewAppointmentRepository(db *gorm.DB) AppointmentRepository {
	return &appointmentRepository{db: db}
}

func (r *appointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	if err := prepareAppointment(appt); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(appt).Error
}

func (r *appointmentRepository) List(ctx context.Context, limit int, status *model.AppointmentStatus) ([]model.Appointment, error) {
	var list []model.Appointment
	query := r.db.WithContext(ctx).Model(&model.Appointment{})
	if status != nil {
		query = query.Where("status = ?", string(*status))
	}
	err := query.Order("created_at desc").Limit(limit).Find(&list).Error
	return list, err
}

// prepareAppointment 校验状态并补齐 ID 与创建时间。
func prepareAppointment(appt *model.Appointment) error {
	if !appt.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, appt.Status)
	}
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = time.Now()
	}
	return nil
}
