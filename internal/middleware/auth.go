// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"medidesk-go/internal/service"
	"medidesk-go/pkg/log"
)

// SessionKey 是会话在 gin 上下文中的键。
const SessionKey = "session"

// SessionAuth 从 Authorization 头中提取会话令牌，并把对应的 *service.Session 存入上下文。
func SessionAuth(chatService service.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "请求未包含会话令牌", "data": nil})
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的授权头格式", "data": nil})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		sess, err := chatService.GetSession(c.Request.Context(), tokenString)
		if err != nil {
			if errors.Is(err, service.ErrSessionNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "会话不存在或已过期", "data": nil})
				return
			}
			log.Warnf("会话令牌校验失败: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效或已过期的会话令牌", "data": nil})
			return
		}

		c.Set(SessionKey, sess)
		c.Next()
	}
}

// CurrentSession 返回 SessionAuth 存入的会话。
func CurrentSession(c *gin.Context) (*service.Session, bool) {
	v, ok := c.Get(SessionKey)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*service.Session)
	return sess, ok
}
