// Package emailjs 通过 EmailJS REST 接口发送预约通知邮件。
package emailjs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"medidesk-go/internal/config"
)

// ErrMissingCredentials 表示 EmailJS 的 service/template/public key 未配置完整。
var ErrMissingCredentials = errors.New("emailjs credentials are missing")

// Client 发送 EmailJS 模板邮件。
type Client struct {
	cfg        config.EmailJSConfig
	httpClient *http.Client
}

// NewClient 创建一个 EmailJS 客户端。
func NewClient(cfg config.EmailJSConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// Configured 判断凭证是否齐全。
func (c *Client) Configured() bool {
	return c.cfg.ServiceID != "" && c.cfg.TemplateID != "" && c.cfg.PublicKey != ""
}

// Send 使用配置的模板发送邮件，templateParams 即模板变量。
func (c *Client) Send(ctx context.Context, templateParams map[string]string) error {
	if !c.Configured() {
		return ErrMissingCredentials
	}

	payload, err := json.Marshal(sendRequest{
		ServiceID:      c.cfg.ServiceID,
		TemplateID:     c.cfg.TemplateID,
		UserID:         c.cfg.PublicKey,
		AccessToken:    c.cfg.AccessToken,
		TemplateParams: templateParams,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal emailjs request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/email/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("emailjs api error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}
