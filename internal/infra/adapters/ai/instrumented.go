package ai

import (
	"context"
	"time"

	"crew-orchestrator/internal/domain/ports/adapter"
	"crew-orchestrator/internal/infra/metrics"
)

var _ adapter.AIServiceAdapter = (*instrumentedAI)(nil)

// instrumentedAI records token usage and latency per provider/model around
// chat calls. Non-chat methods pass through untouched.
type instrumentedAI struct {
	inner    adapter.AIServiceAdapter
	provider string
}

func NewInstrumentedAI(inner adapter.AIServiceAdapter, provider string) adapter.AIServiceAdapter {
	return &instrumentedAI{inner: inner, provider: provider}
}

func (i *instrumentedAI) ListModels(ctx context.Context) ([]string, error) {
	return i.inner.ListModels(ctx)
}

func (i *instrumentedAI) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return i.inner.GetModelInfo(model)
}

func (i *instrumentedAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return i.inner.CountTokens(ctx, model, messages)
}

func (i *instrumentedAI) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	text, _, err := i.ChatWithUsage(ctx, model, messages)
	return text, err
}

func (i *instrumentedAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	start := time.Now()
	text, usage, err := i.inner.ChatWithUsage(ctx, model, messages)
	metrics.ObserveChatUsage(
		i.provider, model,
		usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens,
		int(time.Since(start).Milliseconds()),
		err == nil,
	)
	return text, usage, err
}
