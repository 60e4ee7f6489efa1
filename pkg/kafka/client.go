// Package kafka 提供了与 Kafka 消息队列交互的功能，用于异步投递预约通知。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"medidesk-go/internal/config"
	"medidesk-go/pkg/database"
	"medidesk-go/pkg/log"
	"medidesk-go/pkg/tasks"
)

// maxAttempts 是同一条通知的最大处理次数，超过后提交 offset 放弃重试。
const maxAttempts = 3

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.AppointmentNotificationTask) error
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// CloseProducer 关闭生产者并刷新未发送的消息。
func CloseProducer() {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		log.Error("关闭 Kafka 生产者失败", err)
	}
}

// ProduceNotificationTask 发送一个预约通知任务到 Kafka，消息 key 为预约 ID。
func ProduceNotificationTask(ctx context.Context, task tasks.AppointmentNotificationTask) error {
	if producer == nil {
		return errors.New("kafka producer is not initialized")
	}
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.AppointmentID),
		Value: taskBytes,
	})
}

// StartConsumer 启动一个 Kafka 消费者来处理预约通知，ctx 取消时退出。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  strings.Split(cfg.Brokers, ","),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("从 Kafka 读取消息失败", err)
			}
			break
		}

		var task tasks.AppointmentNotificationTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			commit(r, m)
			continue
		}

		if err := processor.Process(ctx, task); err != nil {
			log.Errorf("发送预约通知失败: AppointmentID=%s, Error: %v", task.AppointmentID, err)
			if shouldGiveUp(task.AppointmentID) {
				log.Errorf("预约通知多次失败(>=%d)，提交 offset 终止重试: AppointmentID=%s", maxAttempts, task.AppointmentID)
				commit(r, m)
			}
			continue
		}

		log.Infof("预约通知发送成功: AppointmentID=%s", task.AppointmentID)
		clearAttempts(task.AppointmentID)
		commit(r, m)
	}

	if err := r.Close(); err != nil {
		log.Error("关闭 Kafka 消费者失败", err)
	}
}

func commit(r *kafka.Reader, m kafka.Message) {
	if err := r.CommitMessages(context.Background(), m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}

func attemptsKey(appointmentID string) string {
	return fmt.Sprintf("kafka:attempts:%s", appointmentID)
}

// shouldGiveUp 使用 Redis 计数失败次数；未配置 Redis 时第一次失败即放弃，避免无限重试。
func shouldGiveUp(appointmentID string) bool {
	if database.RDB == nil {
		return true
	}
	ctx := context.Background()
	attempts, err := database.RDB.Incr(ctx, attemptsKey(appointmentID)).Result()
	if err != nil {
		// Redis 异常时保守处理：不提交 offset，让 Kafka 重试
		return false
	}
	_ = database.RDB.Expire(ctx, attemptsKey(appointmentID), 24*time.Hour).Err()
	return attempts >= maxAttempts
}

func clearAttempts(appointmentID string) {
	if database.RDB == nil {
		return
	}
	_ = database.RDB.Del(context.Background(), attemptsKey(appointmentID)).Err()
}
