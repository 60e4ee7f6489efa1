// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"medidesk-go/internal/middleware"
	"medidesk-go/internal/service"
	"medidesk-go/internal/widget"
	"medidesk-go/pkg/log"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 挂件嵌入在任意医院站点中
		},
	}
)

// ChatHandler 负责访客会话的 REST 接口与 WebSocket 连接。
type ChatHandler struct {
	chatService service.ChatService
	bootstrap   *widget.Bootstrap
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, bootstrap *widget.Bootstrap) *ChatHandler {
	return &ChatHandler{chatService: chatService, bootstrap: bootstrap}
}

// CreateSessionResponse 是创建会话接口的返回数据。
type CreateSessionResponse struct {
	Token   string               `json:"token"`
	Session *service.SessionView `json:"session"`
}

// MessageRequest 是发送消息的请求体。
type MessageRequest struct {
	Text string `json:"text"`
}

// QuickReplyRequest 是选择快捷回复的请求体。
type QuickReplyRequest struct {
	Action string `json:"action" binding:"required"`
	Label  string `json:"label"`
}

// CreateSession 创建访客会话，返回欢迎语与会话令牌。
func (h *ChatHandler) CreateSession(c *gin.Context) {
	sess, tokenString, err := h.chatService.CreateSession(c.Request.Context())
	if err != nil {
		log.Error("CreateSession: 创建会话失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "创建会话失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": CreateSessionResponse{Token: tokenString, Session: sess.View()}})
}

// GetSession 返回当前会话视图。
func (h *ChatHandler) GetSession(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "缺少会话", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": sess.View()})
}

// SendMessage 发送访客消息并返回包含助手回复的会话视图。
func (h *ChatHandler) SendMessage(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "缺少会话", "data": nil})
		return
	}
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("SendMessage: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	view, err := sess.Submit(c.Request.Context(), req.Text)
	respondView(c, view, err)
}

// SelectQuickReply 处理快捷回复按钮。
func (h *ChatHandler) SelectQuickReply(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "缺少会话", "data": nil})
		return
	}
	var req QuickReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("SelectQuickReply: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	view, err := sess.SelectQuickReply(c.Request.Context(), req.Action, req.Label)
	respondView(c, view, err)
}

// SubmitAppointment 提交预约表单。
func (h *ChatHandler) SubmitAppointment(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "缺少会话", "data": nil})
		return
	}
	var form service.AppointmentForm
	if err := c.ShouldBindJSON(&form); err != nil {
		log.Warnf("SubmitAppointment: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	view, err := sess.CompleteAppointment(c.Request.Context(), form)
	respondView(c, view, err)
}

// CancelAppointment 关闭预约表单。
func (h *ChatHandler) CancelAppointment(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "缺少会话", "data": nil})
		return
	}
	view, err := sess.CancelBooking()
	respondView(c, view, err)
}

// sessionErrorStatus 把会话操作的错误映射为 HTTP 状态码与提示语。
func sessionErrorStatus(err error) (int, string, interface{}) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, verr.Message, verr
	case errors.Is(err, service.ErrTurnInFlight), errors.Is(err, service.ErrBookingInProgress), errors.Is(err, service.ErrNotBooking):
		return http.StatusConflict, err.Error(), nil
	case errors.Is(err, service.ErrAppointmentNotSaved):
		return http.StatusBadGateway, service.AppointmentSaveFailed, nil
	default:
		return http.StatusInternalServerError, "服务器内部错误", nil
	}
}

func respondView(c *gin.Context, view *service.SessionView, err error) {
	if err != nil {
		status, message, data := sessionErrorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error("会话操作失败", err)
		}
		c.JSON(status, gin.H{"code": status, "message": message, "data": data})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": view})
}

// wsFrame 是客户端发来的控制帧。
type wsFrame struct {
	Type        string                   `json:"type"`
	Text        string                   `json:"text,omitempty"`
	Action      string                   `json:"action,omitempty"`
	Label       string                   `json:"label,omitempty"`
	Appointment *service.AppointmentForm `json:"appointment,omitempty"`
}

// wsConn 串行化同一连接上的写操作。
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) send(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error("序列化 WebSocket 消息失败", err)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Warnf("写入 WebSocket 消息失败: %v", err)
	}
}

func (w *wsConn) sendView(view *service.SessionView) {
	w.send(gin.H{"type": "session", "session": view, "timestamp": time.Now().UnixMilli()})
}

func (w *wsConn) sendError(err error) {
	status, message, data := sessionErrorStatus(err)
	w.send(gin.H{"type": "error", "code": status, "message": message, "data": data})
}

// Handle 处理一个传入的 WebSocket 连接。
// 每个控制帧在独立的 goroutine 中处理，回复进行中时新消息会立刻收到 409 错误帧。
func (h *ChatHandler) Handle(c *gin.Context) {
	sess, err := h.chatService.GetSession(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "会话不存在或已过期", "data": nil})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	log.Infof("WebSocket 连接已建立，会话: %s", sess.ID())

	out := &wsConn{conn: conn}
	out.sendView(sess.View())

	// 连接断开后不再转发挂件事件，进行中的回合仍会完成
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if h.bootstrap != nil {
		events, unsubscribe := h.bootstrap.Subscribe()
		defer unsubscribe()
		go forwardEvents(ctx, out, events)
	}

	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			out.send(gin.H{"type": "error", "code": http.StatusBadRequest, "message": "无效的消息格式"})
			continue
		}

		inflight.Add(1)
		go func(frame wsFrame) {
			defer inflight.Done()
			h.dispatch(out, sess, frame)
		}(frame)
	}
}

func (h *ChatHandler) dispatch(out *wsConn, sess *service.Session, frame wsFrame) {
	// 回合不随连接取消，与 REST 接口保持一致
	ctx := context.Background()
	var (
		view *service.SessionView
		err  error
	)
	// 只有真正开始一轮对话时才通知客户端显示输入中
	typing := func(pending *service.SessionView) {
		out.send(gin.H{"type": "typing", "session": pending})
	}
	switch frame.Type {
	case "message":
		view, err = sess.SubmitNotify(ctx, frame.Text, typing)
	case "quick_reply":
		view, err = sess.SelectQuickReplyNotify(ctx, frame.Action, frame.Label, typing)
	case "appointment":
		if frame.Appointment == nil {
			out.send(gin.H{"type": "error", "code": http.StatusBadRequest, "message": "缺少预约表单"})
			return
		}
		view, err = sess.CompleteAppointment(ctx, *frame.Appointment)
	case "cancel_booking":
		view, err = sess.CancelBooking()
	case "ping":
		out.send(gin.H{"type": "pong", "timestamp": time.Now().UnixMilli()})
		return
	default:
		out.send(gin.H{"type": "error", "code": http.StatusBadRequest, "message": "未知的消息类型"})
		return
	}
	if err != nil {
		out.sendError(err)
		return
	}
	out.sendView(view)
}

func forwardEvents(ctx context.Context, out *wsConn, events <-chan widget.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			out.send(gin.H{"type": "event", "name": ev.Name, "timestamp": ev.At.UnixMilli()})
		}
	}
}
