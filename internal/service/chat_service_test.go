package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medidesk-go/internal/hospital"
	"medidesk-go/internal/model"
	"medidesk-go/pkg/token"
)

type memorySessionRepo struct {
	mu    sync.Mutex
	snaps map[string]model.SessionSnapshot
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{snaps: make(map[string]model.SessionSnapshot)}
}

func (r *memorySessionRepo) Save(_ context.Context, snap *model.SessionSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps[snap.SessionID] = *snap
	return nil
}

func (r *memorySessionRepo) Load(_ context.Context, id string) (*model.SessionSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.snaps[id]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func TestGetSessionByToken(t *testing.T) {
	svc := newTestChatService(&stubCompletion{}, &fakeStore{}, ChatOptions{})
	sess, tok, err := svc.CreateSession(context.Background())
	require.NoError(t, err)

	got, err := svc.GetSession(context.Background(), tok)
	require.NoError(t, err)
	assert.Same(t, sess, got)
}

func TestGetSessionInvalidToken(t *testing.T) {
	svc := newTestChatService(&stubCompletion{}, &fakeStore{}, ChatOptions{})
	_, err := svc.GetSession(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidSessionToken)
}

func TestGetSessionUnknownWithoutSnapshots(t *testing.T) {
	svc := newTestChatService(&stubCompletion{}, &fakeStore{}, ChatOptions{})
	tok, err := token.NewJWTManager("test-secret", 1).GenerateToken("missing", "BT hospital")
	require.NoError(t, err)

	_, err = svc.GetSession(context.Background(), tok)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionRestoredFromSnapshot(t *testing.T) {
	repo := newMemorySessionRepo()
	first := newTestChatService(&stubCompletion{}, &fakeStore{}, ChatOptions{SessionRepo: repo})
	sess, tok, err := first.CreateSession(context.Background())
	require.NoError(t, err)

	_, err = sess.Submit(context.Background(), "Where are you located?")
	require.NoError(t, err)
	_, err = sess.SelectQuickReply(context.Background(), model.ActionBookAppointment, "Book Appointment")
	require.NoError(t, err)
	first.Drain()

	// 模拟服务重启：新的 ChatService 共享同一个快照仓储
	second := NewChatService(hospital.Demo(), &stubCompletion{}, &fakeStore{}, token.NewJWTManager("test-secret", 1), ChatOptions{SessionRepo: repo})
	restored, err := second.GetSession(context.Background(), tok)
	require.NoError(t, err)

	v := restored.View()
	assert.Equal(t, sess.ID(), v.SessionID)
	assert.Equal(t, StateIdle, v.State, "open form is not restored")
	assert.Empty(t, v.QuickReplies)
	require.Len(t, v.Transcript, 3)
	assert.Equal(t, "Where are you located?", v.Transcript[1].Text)
}

func TestDetacherWaitsForTasks(t *testing.T) {
	d := &detacher{}
	var mu sync.Mutex
	ran := 0
	for i := 0; i < 5; i++ {
		d.Go("count", func(ctx context.Context) {
			mu.Lock()
			ran++
			mu.Unlock()
		})
	}
	d.Go("panics", func(ctx context.Context) { panic("boom") })
	d.Wait()
	assert.Equal(t, 5, ran)
}
