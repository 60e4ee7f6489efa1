package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"medidesk-go/internal/model"
)

// SessionRepository 定义了访客会话快照的读写操作。
type SessionRepository interface {
	Save(ctx context.Context, snapshot *model.SessionSnapshot) error
	// Load 返回会话快照；快照不存在时返回 (nil, nil)。
	Load(ctx context.Context, sessionID string) (*model.SessionSnapshot, error)
}

// SnapshotClient 是会话快照用到的 Redis 命令子集，*redis.Client 满足该接口。
type SnapshotClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

type redisSessionRepository struct {
	redisClient SnapshotClient
	ttl         time.Duration
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。ttl 非正时使用 7 天。
func NewSessionRepository(redisClient SnapshotClient, ttl time.Duration) SessionRepository {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &redisSessionRepository{redisClient: redisClient, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("medidesk:session:%s", sessionID)
}

// Save 以 JSON 形式覆盖写入会话快照，并刷新过期时间。
func (r *redisSessionRepository) Save(ctx context.Context, snapshot *model.SessionSnapshot) error {
	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %w", err)
	}
	if err := r.redisClient.Set(ctx, sessionKey(snapshot.SessionID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session snapshot: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) Load(ctx context.Context, sessionID string) (*model.SessionSnapshot, error) {
	jsonData, err := r.redisClient.Get(ctx, sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session snapshot: %w", err)
	}
	var snapshot model.SessionSnapshot
	if err := json.Unmarshal([]byte(jsonData), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session snapshot: %w", err)
	}
	return &snapshot, nil
}
