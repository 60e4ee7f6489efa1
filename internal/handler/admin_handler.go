package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"medidesk-go/internal/model"
	"medidesk-go/internal/service"
	"medidesk-go/pkg/log"
)

// AdminHandler 负责后台看板的只读接口。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// Overview 返回预约统计与最新的预约、聊天记录。
func (h *AdminHandler) Overview(c *gin.Context) {
	overview, err := h.adminService.Overview(c.Request.Context())
	if err != nil {
		log.Error("Overview: 加载后台概览失败", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "message": "数据存储暂时不可用", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": overview})
}

// ListAppointments 按状态与关键字列出预约。
func (h *AdminHandler) ListAppointments(c *gin.Context) {
	status, err := model.ParseAppointmentStatus(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的预约状态", "data": nil})
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	list, err := h.adminService.ListAppointments(c.Request.Context(), status, c.Query("q"), limit)
	if err != nil {
		log.Error("ListAppointments: 获取预约列表失败", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "message": "数据存储暂时不可用", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"content": list,
			"total":   len(list),
		},
	})
}

// ListChatLogs 按关键字列出聊天记录。
func (h *AdminHandler) ListChatLogs(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	list, err := h.adminService.ListChatLogs(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		log.Error("ListChatLogs: 获取聊天记录失败", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "message": "数据存储暂时不可用", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"content": list,
			"total":   len(list),
		},
	})
}

// ExportAppointments 把预约导出为 CSV 并返回下载地址。
func (h *AdminHandler) ExportAppointments(c *gin.Context) {
	status, err := model.ParseAppointmentStatus(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的预约状态", "data": nil})
		return
	}
	result, err := h.adminService.ExportAppointments(c.Request.Context(), status)
	if err != nil {
		if errors.Is(err, service.ErrExportDisabled) {
			c.JSON(http.StatusNotImplemented, gin.H{"code": http.StatusNotImplemented, "message": "未配置对象存储，无法导出", "data": nil})
			return
		}
		log.Error("ExportAppointments: 导出预约失败", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "message": "导出失败，请稍后重试", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}

// parseLimit 解析 limit 查询参数，非法时直接写入 400 响应。
func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return service.DefaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的 limit 参数", "data": nil})
		return 0, false
	}
	return limit, true
}
