package service

import (
	"context"

	"medidesk-go/internal/model"
	"medidesk-go/pkg/llm"
	"medidesk-go/pkg/log"
	"medidesk-go/pkg/telemetry"
)

// CompletionService 包装大模型调用。
type CompletionService interface {
	// Complete 返回助手回复。失败时返回 FallbackText 与原始错误，访客看到的文本与成功路径无异。
	Complete(ctx context.Context, visitorText string, history []llm.Message) (string, error)
}

type completionService struct {
	llmClient    llm.Client
	systemPrompt string
}

// NewCompletionService 创建一个新的 CompletionService 实例，系统提示词在创建时生成一次。
func NewCompletionService(llmClient llm.Client, profile *model.HospitalProfile) CompletionService {
	return &completionService{
		llmClient:    llmClient,
		systemPrompt: BuildSystemPrompt(profile),
	}
}

func (s *completionService) Complete(ctx context.Context, visitorText string, history []llm.Message) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "completion.Complete")
	defer span.End()

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: s.systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: visitorText})

	reply, err := s.llmClient.Chat(ctx, messages, nil)
	if err != nil {
		telemetry.RecordError(span, err)
		log.Errorf("调用大模型失败，返回兜底回复: %v", err)
		return FallbackText, err
	}
	return reply, nil
}
