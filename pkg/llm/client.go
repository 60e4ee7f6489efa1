// Package llm provides a client for interacting with Large Language Models.
// 通过 OpenAI 兼容协议访问 Mistral 的 chat/completions 接口。
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"medidesk-go/internal/config"
)

// ErrMissingAPIKey 表示未配置模型服务的密钥。
var ErrMissingAPIKey = errors.New("llm api key is not configured")

// ErrEmptyResponse 表示模型没有返回任何可用内容。
var ErrEmptyResponse = errors.New("no response from llm")

// 角色名与 chat/completions 协议保持一致。
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// Client defines the interface for an LLM client.
type Client interface {
	// Chat 以 role-based 消息与可选生成参数发起一次非流式请求，返回第一条候选的文本。
	Chat(ctx context.Context, messages []Message, gen *GenerationParams) (string, error)
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
}

type mistralClient struct {
	cfg    config.LLMConfig
	client *openai.Client
}

// NewClient creates a new LLM client based on the provider in the config.
func NewClient(cfg config.LLMConfig) Client {
	ocfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		ocfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	// 默认不设超时，配置了 timeout_seconds 才限制单次调用时长
	if cfg.TimeoutSeconds > 0 {
		ocfg.HTTPClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}
	return &mistralClient{
		cfg:    cfg,
		client: openai.NewClientWithConfig(ocfg),
	}
}

func (c *mistralClient) Chat(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrMissingAPIKey
	}

	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role != RoleSystem && role != RoleUser && role != RoleAssistant {
			role = RoleUser
		}
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:    c.cfg.Model,
		Messages: oaMsgs,
	}
	// 传参优先，其次使用全局配置
	temperature := c.cfg.Generation.Temperature
	maxTokens := c.cfg.Generation.MaxTokens
	if gen != nil {
		if gen.Temperature != nil {
			temperature = *gen.Temperature
		}
		if gen.MaxTokens != nil {
			maxTokens = *gen.MaxTokens
		}
	}
	req.Temperature = float32(temperature)
	req.MaxTokens = maxTokens

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to call chat api: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
