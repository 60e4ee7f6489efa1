package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"medidesk-go/internal/model"
	"medidesk-go/internal/service"
)

type mockAdminService struct {
	mock.Mock
}

func (m *mockAdminService) Overview(ctx context.Context) (*service.AdminOverview, error) {
	args := m.Called(ctx)
	overview, _ := args.Get(0).(*service.AdminOverview)
	return overview, args.Error(1)
}

func (m *mockAdminService) ListAppointments(ctx context.Context, status *model.AppointmentStatus, query string, limit int) ([]service.AppointmentDTO, error) {
	args := m.Called(ctx, status, query, limit)
	list, _ := args.Get(0).([]service.AppointmentDTO)
	return list, args.Error(1)
}

func (m *mockAdminService) ListChatLogs(ctx context.Context, query string, limit int) ([]service.ChatLogDTO, error) {
	args := m.Called(ctx, query, limit)
	list, _ := args.Get(0).([]service.ChatLogDTO)
	return list, args.Error(1)
}

func (m *mockAdminService) ExportAppointments(ctx context.Context, status *model.AppointmentStatus) (*service.ExportResult, error) {
	args := m.Called(ctx, status)
	result, _ := args.Get(0).(*service.ExportResult)
	return result, args.Error(1)
}

func setupAdminRouter(svc service.AdminService) *gin.Engine {
	h := NewAdminHandler(svc)
	r := gin.New()
	admin := r.Group("/api/v1/admin")
	admin.GET("/overview", h.Overview)
	admin.GET("/appointments", h.ListAppointments)
	admin.POST("/appointments/export", h.ExportAppointments)
	admin.GET("/chats", h.ListChatLogs)
	return r
}

func TestAdminOverview(t *testing.T) {
	svc := new(mockAdminService)
	svc.On("Overview", mock.Anything).Return(&service.AdminOverview{Stats: model.AppointmentStats{Total: 3, New: 2, Completed: 1}}, nil)

	w, env := doJSON(setupAdminRouter(svc), http.MethodGet, "/api/v1/admin/overview", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"total":3`)
	svc.AssertExpectations(t)
}

func TestAdminOverviewStoreDown(t *testing.T) {
	svc := new(mockAdminService)
	svc.On("Overview", mock.Anything).Return(nil, errors.New("connection refused"))

	w, _ := doJSON(setupAdminRouter(svc), http.MethodGet, "/api/v1/admin/overview", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminListAppointmentsFilters(t *testing.T) {
	svc := new(mockAdminService)
	pending := model.StatusPending
	svc.On("ListAppointments", mock.Anything, &pending, "cardio", 20).
		Return([]service.AppointmentDTO{{ID: "a1", Department: "Cardiology", Status: model.StatusPending}}, nil)

	w, env := doJSON(setupAdminRouter(svc), http.MethodGet, "/api/v1/admin/appointments?status=pending&q=cardio&limit=20", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"total":1`)
	svc.AssertExpectations(t)
}

func TestAdminListAppointmentsAllStatus(t *testing.T) {
	svc := new(mockAdminService)
	svc.On("ListAppointments", mock.Anything, (*model.AppointmentStatus)(nil), "", service.DefaultListLimit).
		Return([]service.AppointmentDTO{}, nil)

	w, _ := doJSON(setupAdminRouter(svc), http.MethodGet, "/api/v1/admin/appointments?status=all", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestAdminListAppointmentsBadParams(t *testing.T) {
	svc := new(mockAdminService)
	r := setupAdminRouter(svc)

	w, _ := doJSON(r, http.MethodGet, "/api/v1/admin/appointments?status=cancelled", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(r, http.MethodGet, "/api/v1/admin/appointments?limit=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "ListAppointments", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdminListChatLogs(t *testing.T) {
	svc := new(mockAdminService)
	svc.On("ListChatLogs", mock.Anything, "fees", service.DefaultListLimit).
		Return([]service.ChatLogDTO{{ID: "c1", VisitorText: "What are the fees?"}}, nil)

	w, env := doJSON(setupAdminRouter(svc), http.MethodGet, "/api/v1/admin/chats?q=fees", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "What are the fees?")
}

func TestAdminExport(t *testing.T) {
	svc := new(mockAdminService)
	svc.On("ExportAppointments", mock.Anything, (*model.AppointmentStatus)(nil)).
		Return(&service.ExportResult{ObjectName: "exports/appointments-all.csv", DownloadURL: "http://minio/x", Rows: 4}, nil).Once()
	svc.On("ExportAppointments", mock.Anything, (*model.AppointmentStatus)(nil)).
		Return(nil, service.ErrExportDisabled).Once()
	r := setupAdminRouter(svc)

	w, env := doJSON(r, http.MethodPost, "/api/v1/admin/appointments/export", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"rows":4`)

	w, _ = doJSON(r, http.MethodPost, "/api/v1/admin/appointments/export", "", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestHospitalProfile(t *testing.T) {
	r := gin.New()
	r.GET("/api/v1/hospital", NewHospitalHandler(&model.HospitalProfile{HospitalID: "h1", Departments: []string{"ENT"}}).GetProfile)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/hospital", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hospitalId":"h1"`)
}
