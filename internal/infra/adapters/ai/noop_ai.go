package ai

import (
	"context"
	"fmt"
	"time"

	"crew-orchestrator/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter implements adapter.AIServiceAdapter for local/dev testing.
// It echoes a canned reply instead of sending real AI requests.
type NoopAIAdapter struct{}

// NewNoopAIAdapter constructs the noop adapter.
func NewNoopAIAdapter() *NoopAIAdapter {
	return &NoopAIAdapter{}
}

func (a *NoopAIAdapter) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	// Simulate slight processing time and respect ctx
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if len(messages) == 0 {
		return "This is a noop AI response.", nil
	}
	last := messages[len(messages)-1]
	return fmt.Sprintf("noop reply to: %.80s", last.Content), nil
}

func (a *NoopAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	text, err := a.Chat(ctx, model, messages)
	if err != nil {
		return "", adapter.Usage{}, err
	}
	u := adapter.Usage{PromptTokens: len(messages), CompletionTokens: 1, TotalTokens: len(messages) + 1}
	return text, u, nil
}

func (a *NoopAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return len(messages), nil
}

func (a *NoopAIAdapter) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{
		Name:        "noop-ai-model",
		Description: "Noop AI model for testing",
		MaxTokens:   1024,
		Supports:    []string{"chat", "completion"},
	}, nil
}

func (a *NoopAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{"noop-ai-model"}, nil
}
