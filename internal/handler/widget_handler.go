package handler

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"medidesk-go/internal/model"
	"medidesk-go/internal/widget"
	"medidesk-go/pkg/log"
)

// WidgetHandler 提供嵌入脚本、挂件配置与全局打开/关闭接口。
type WidgetHandler struct {
	bootstrap *widget.Bootstrap
	defaults  widget.Config
}

// NewWidgetHandler 创建一个新的 WidgetHandler。
func NewWidgetHandler(bootstrap *widget.Bootstrap, defaults widget.Config) *WidgetHandler {
	return &WidgetHandler{bootstrap: bootstrap, defaults: defaults}
}

func (h *WidgetHandler) parse(c *gin.Context) (widget.Config, []string) {
	attrs := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			attrs[key] = values[0]
		}
	}
	cfg, warnings := widget.ParseAttributes(attrs, h.defaults)
	for _, w := range warnings {
		log.Warnf("MediDesk 挂件配置: %s", w)
	}
	return cfg, warnings
}

// Script 根据查询参数渲染嵌入脚本。
func (h *WidgetHandler) Script(c *gin.Context) {
	cfg, _ := h.parse(c)
	var buf bytes.Buffer
	if err := widget.RenderScript(&buf, cfg); err != nil {
		log.Error("Script: 渲染嵌入脚本失败", err)
		c.String(http.StatusInternalServerError, "/* MediDesk widget unavailable */")
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", buf.Bytes())
}

// Config 返回校验后的挂件配置与警告。
func (h *WidgetHandler) Config(c *gin.Context) {
	cfg, warnings := h.parse(c)
	if warnings == nil {
		warnings = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{
		"config":       cfg,
		"warnings":     warnings,
		"quickReplies": model.DefaultQuickReplies(),
		"version":      widget.Version,
	}})
}

// State 返回挂件当前状态。
func (h *WidgetHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": h.bootstrap.State()})
}

// Open 展开挂件。
func (h *WidgetHandler) Open(c *gin.Context) {
	h.bootstrap.Open()
	h.State(c)
}

// Close 收起挂件。
func (h *WidgetHandler) Close(c *gin.Context) {
	h.bootstrap.Close()
	h.State(c)
}

// Toggle 切换挂件展开状态。
func (h *WidgetHandler) Toggle(c *gin.Context) {
	h.bootstrap.Toggle()
	h.State(c)
}
