// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"medidesk-go/internal/model"
	"medidesk-go/internal/repository"
	"medidesk-go/pkg/log"
	"medidesk-go/pkg/telemetry"
	"medidesk-go/pkg/token"
)

var (
	// ErrSessionNotFound 表示令牌有效但会话已不存在（内存与快照中都没有）。
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidSessionToken 表示会话令牌无法通过校验。
	ErrInvalidSessionToken = errors.New("invalid session token")
)

// snapshotTimeout 是单次写入会话快照的超时时间。
const snapshotTimeout = 2 * time.Second

// ChatService 管理访客会话的创建、查找与后台任务。
type ChatService interface {
	// CreateSession 创建新会话并签发会话令牌。
	CreateSession(ctx context.Context) (*Session, string, error)
	// GetSession 根据会话令牌查找会话，内存中没有时尝试从快照恢复。
	GetSession(ctx context.Context, tokenString string) (*Session, error)
	// Profile 返回当前生效的医院资料。
	Profile() *model.HospitalProfile
	// Drain 等待所有后台任务（聊天记录保存、预约通知）结束。
	Drain()
}

// ChatOptions 汇总 ChatService 的可选依赖与参数。
type ChatOptions struct {
	Notifier      AppointmentNotifier
	SessionRepo   repository.SessionRepository
	HistoryWindow int
	MedicalGuard  bool
	SessionTTL    time.Duration
	Metrics       *telemetry.Metrics
}

type chatService struct {
	env         *sessionEnv
	jwtManager  *token.JWTManager
	sessionRepo repository.SessionRepository
	sessionTTL  time.Duration
	detach      *detacher

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	profile *model.HospitalProfile,
	completion CompletionService,
	store ConversationStore,
	jwtManager *token.JWTManager,
	opts ChatOptions,
) ChatService {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = &telemetry.Metrics{}
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 10
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}

	d := &detacher{}
	s := &chatService{
		jwtManager:  jwtManager,
		sessionRepo: opts.SessionRepo,
		sessionTTL:  opts.SessionTTL,
		detach:      d,
		sessions:    make(map[string]*Session),
	}
	s.env = &sessionEnv{
		profile:       profile,
		completion:    completion,
		store:         store,
		notifier:      opts.Notifier,
		historyWindow: opts.HistoryWindow,
		medicalGuard:  opts.MedicalGuard,
		metrics:       metrics,
		detach:        d,
		onChange:      s.saveSnapshot,
	}
	return s
}

func (s *chatService) Profile() *model.HospitalProfile {
	return s.env.profile
}

func (s *chatService) CreateSession(ctx context.Context) (*Session, string, error) {
	sess := newSession(uuid.NewString(), s.env)
	tokenString, err := s.jwtManager.GenerateToken(sess.ID(), s.env.profile.HospitalID)
	if err != nil {
		return nil, "", fmt.Errorf("签发会话令牌失败: %w", err)
	}

	s.mu.Lock()
	s.evictIdleLocked()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()

	s.saveSnapshot(sess.snapshot())
	log.Infow("创建访客会话", "sessionId", sess.ID(), "hospitalId", s.env.profile.HospitalID)
	return sess, tokenString, nil
}

func (s *chatService) GetSession(ctx context.Context, tokenString string) (*Session, error) {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	if claims.HospitalID != s.env.profile.HospitalID {
		log.Warnf("会话令牌的医院 %q 与当前医院 %q 不一致", claims.HospitalID, s.env.profile.HospitalID)
	}

	s.mu.Lock()
	sess, ok := s.sessions[claims.SessionID]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}

	if s.sessionRepo == nil {
		return nil, ErrSessionNotFound
	}
	snap, err := s.sessionRepo.Load(ctx, claims.SessionID)
	if err != nil {
		log.Errorf("读取会话快照失败: %v", err)
		return nil, ErrSessionNotFound
	}
	if snap == nil {
		return nil, ErrSessionNotFound
	}

	restored := restoreSession(snap, s.env)
	s.mu.Lock()
	// 并发恢复时以先写入者为准
	if existing, ok := s.sessions[restored.ID()]; ok {
		restored = existing
	} else {
		s.sessions[restored.ID()] = restored
	}
	s.mu.Unlock()
	log.Infow("从快照恢复访客会话", "sessionId", restored.ID())
	return restored, nil
}

func (s *chatService) Drain() {
	s.detach.Wait()
}

// evictIdleLocked 移除长时间不活跃的会话，快照仍保留在 Redis 中。
func (s *chatService) evictIdleLocked() {
	cutoff := time.Now().Add(-s.sessionTTL)
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}

// saveSnapshot 把会话快照写入 Redis，失败只记录日志。
func (s *chatService) saveSnapshot(snap *model.SessionSnapshot) {
	if s.sessionRepo == nil || snap == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	if err := s.sessionRepo.Save(ctx, snap); err != nil {
		log.Warnf("保存会话快照失败, sessionId=%s: %v", snap.SessionID, err)
	}
}

// detacher 启动不被调用方等待的后台任务，Wait 用于停机与测试。
type detacher struct {
	wg sync.WaitGroup
}

// Go 在后台执行 fn，fn 使用独立于请求的上下文。
func (d *detacher) Go(name string, fn func(ctx context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("后台任务 %s panic: %v", name, r)
			}
		}()
		fn(context.Background())
	}()
}

// Wait 等待所有已启动的后台任务结束。
func (d *detacher) Wait() {
	d.wg.Wait()
}
