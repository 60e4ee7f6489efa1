package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"medidesk-go/internal/model"
)

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, query string, size int) ([]model.ChatLog, error) {
	args := m.Called(ctx, query, size)
	list, _ := args.Get(0).([]model.ChatLog)
	return list, args.Error(1)
}

type recordingObjectStore struct {
	name string
	data []byte
	err  error
}

func (r *recordingObjectStore) Put(_ context.Context, objectName, contentType string, data []byte) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.name = objectName
	r.data = data
	return "https://minio.local/" + objectName, nil
}

func seededStore() *fakeStore {
	now := time.Now()
	return &fakeStore{
		appts: []model.Appointment{
			{ID: "a1", Name: "Ayesha", Contact: "ayesha@example.com", Department: "Cardiology", Status: model.StatusNew, CreatedAt: now.Add(-3 * time.Hour)},
			{ID: "a2", Name: "Bilal", Contact: "0300", Department: "Pediatrics", Status: model.StatusPending, CreatedAt: now.Add(-2 * time.Hour)},
			{ID: "a3", Name: "Sara, Jr", Contact: "sara@example.com", Department: "Neurology", Status: model.StatusCompleted, CreatedAt: now.Add(-time.Hour)},
		},
		chats: []model.ChatLog{
			{ID: "c1", VisitorText: "What are the timings?", AssistantText: "OPD 9 to 5", CreatedAt: now.Add(-time.Hour)},
			{ID: "c2", VisitorText: "Cardiology fee?", AssistantText: "PKR 3000", CreatedAt: now},
		},
	}
}

func TestOverview(t *testing.T) {
	svc := NewAdminService(seededStore(), nil, nil)
	ov, err := svc.Overview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStats{Total: 3, New: 1, Pending: 1, Completed: 1}, ov.Stats)
	require.Len(t, ov.RecentAppointments, 3)
	assert.Equal(t, "a3", ov.RecentAppointments[0].ID, "newest first")
	require.Len(t, ov.RecentChats, 2)
	assert.Equal(t, "c2", ov.RecentChats[0].ID)
}

func TestListAppointmentsFilters(t *testing.T) {
	svc := NewAdminService(seededStore(), nil, nil)
	ctx := context.Background()

	pending := model.StatusPending
	list, err := svc.ListAppointments(ctx, &pending, "", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Bilal", list[0].Name)

	list, err = svc.ListAppointments(ctx, nil, "NEURO", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a3", list[0].ID)

	list, err = svc.ListAppointments(ctx, nil, "example.com", 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestListChatLogsLocalFilter(t *testing.T) {
	svc := NewAdminService(seededStore(), nil, nil)
	list, err := svc.ListChatLogs(context.Background(), "pkr", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c2", list[0].ID)
}

func TestListChatLogsUsesSearcher(t *testing.T) {
	searcher := new(mockSearcher)
	searcher.On("Search", mock.Anything, "fee", DefaultListLimit).
		Return([]model.ChatLog{{ID: "es-1", VisitorText: "fee?"}}, nil).Once()

	svc := NewAdminService(seededStore(), searcher, nil)
	list, err := svc.ListChatLogs(context.Background(), " fee ", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "es-1", list[0].ID)
	searcher.AssertExpectations(t)
}

func TestListChatLogsSearcherFallback(t *testing.T) {
	searcher := new(mockSearcher)
	searcher.On("Search", mock.Anything, "timings", DefaultListLimit).Return(nil, errors.New("es down"))

	svc := NewAdminService(seededStore(), searcher, nil)
	list, err := svc.ListChatLogs(context.Background(), "timings", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c1", list[0].ID)
}

func TestExportAppointments(t *testing.T) {
	objects := &recordingObjectStore{}
	svc := NewAdminService(seededStore(), nil, objects)

	res, err := svc.ExportAppointments(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)
	assert.True(t, strings.HasPrefix(res.ObjectName, "exports/appointments-all-"))
	assert.Equal(t, "https://minio.local/"+res.ObjectName, res.DownloadURL)

	lines := strings.Split(strings.TrimSpace(string(objects.data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Join(csvHeader, ","), lines[0])
	assert.Contains(t, lines[1], `"Sara, Jr"`)
}

func TestExportDisabled(t *testing.T) {
	svc := NewAdminService(seededStore(), nil, nil)
	_, err := svc.ExportAppointments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrExportDisabled)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, clampLimit(0))
	assert.Equal(t, 20, clampLimit(20))
	assert.Equal(t, MaxListLimit, clampLimit(5000))
}
