package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medidesk-go/internal/widget"
)

func setupWidgetRouter(b *widget.Bootstrap) *gin.Engine {
	h := NewWidgetHandler(b, widget.DefaultConfig())
	r := gin.New()
	r.GET("/medidesk.js", h.Script)
	g := r.Group("/api/v1/widget")
	g.GET("", h.State)
	g.GET("/config", h.Config)
	g.POST("/open", h.Open)
	g.POST("/close", h.Close)
	g.POST("/toggle", h.Toggle)
	return r
}

func TestWidgetScript(t *testing.T) {
	r := setupWidgetRouter(widget.NewBootstrap())
	req := httptest.NewRequest(http.MethodGet, "/medidesk.js?data-position=top-left&hospital-id=h-7", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/javascript")
	assert.Contains(t, w.Body.String(), `"position":"top-left"`)
	assert.Contains(t, w.Body.String(), `"hospitalId":"h-7"`)
}

func TestWidgetConfigWarnings(t *testing.T) {
	r := setupWidgetRouter(widget.NewBootstrap())
	w, env := doJSON(r, http.MethodGet, "/api/v1/widget/config?position=center&autoOpen=true", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := string(env.Data)
	assert.Contains(t, data, `"position":"bottom-right"`)
	assert.Contains(t, data, `"autoOpen":true`)
	assert.Contains(t, data, "center")
	assert.Contains(t, data, `"version":"2.1.0"`)
}

func TestWidgetOpenCloseToggle(t *testing.T) {
	b := widget.NewBootstrap()
	events, cancel := b.Subscribe()
	defer cancel()
	r := setupWidgetRouter(b)

	w, env := doJSON(r, http.MethodPost, "/api/v1/widget/open", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"open":true`)
	assert.Equal(t, widget.EventOpen, (<-events).Name)

	_, env = doJSON(r, http.MethodPost, "/api/v1/widget/toggle", "", nil)
	assert.Contains(t, string(env.Data), `"open":false`)
	assert.Equal(t, widget.EventClose, (<-events).Name)

	_, _ = doJSON(r, http.MethodPost, "/api/v1/widget/close", "", nil)
	assert.Equal(t, widget.EventClose, (<-events).Name)

	_, env = doJSON(r, http.MethodGet, "/api/v1/widget", "", nil)
	assert.Contains(t, string(env.Data), `"open":false`)
}
