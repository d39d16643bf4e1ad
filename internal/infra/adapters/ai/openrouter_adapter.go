package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"crew-orchestrator/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*OpenRouterAdapter)(nil)

// OpenRouterAdapter implements adapter.AIServiceAdapter against OpenRouter's
// OpenAI-compatible gateway. Base URL defaults to https://openrouter.ai/api/v1
// (configurable). Chat completions path is the same as OpenAI:
// /chat/completions, Authorization: Bearer <OPENROUTER_API_KEY>.
// OpenRouter additionally wants HTTP-Referer and X-Title headers for ranking.
type OpenRouterAdapter struct {
	apiKey  string
	base    string // e.g., https://openrouter.ai/api/v1
	model   string
	referer string
	title   string
	client  *http.Client
}

func NewOpenRouterAdapter(apiKey, model, base string) (*OpenRouterAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openrouter api key empty")
	}
	if model == "" {
		model = "openai/gpt-4o-mini"
	}
	if base == "" {
		base = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterAdapter{
		apiKey:  apiKey,
		base:    strings.TrimRight(base, "/"),
		model:   model,
		referer: "https://github.com/crew-orchestrator",
		title:   "crew-orchestrator",
		client:  &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (o *OpenRouterAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{o.model}, nil
}

func (o *OpenRouterAdapter) GetModelInfo(model string) (adapter.ModelInfo, error) {
	if model == "" {
		model = o.model
	}
	return adapter.ModelInfo{
		Name:        model,
		Description: "OpenRouter-routed chat model",
		Supports:    []string{"text"},
	}, nil
}

func (o *OpenRouterAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	if model == "" {
		model = o.model
	}
	return countMessageTokens(model, messages)
}

func (o *OpenRouterAdapter) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	text, _, err := o.ChatWithUsage(ctx, model, messages)
	return text, err
}

func (o *OpenRouterAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	if model == "" {
		model = o.model
	}

	reqBody := struct {
		Model    string            `json:"model"`
		Messages []adapter.Message `json:"messages"`
	}{Model: model, Messages: messages}

	b, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", adapter.Usage{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("HTTP-Referer", o.referer)
	req.Header.Set("X-Title", o.title)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", adapter.Usage{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", adapter.Usage{}, fmt.Errorf("openrouter http %d", resp.StatusCode)
	}

	var payload struct {
		Choices []struct {
			Message adapter.Message `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", adapter.Usage{}, err
	}
	usage := adapter.Usage{
		PromptTokens:     payload.Usage.PromptTokens,
		CompletionTokens: payload.Usage.CompletionTokens,
		TotalTokens:      payload.Usage.TotalTokens,
	}
	for _, c := range payload.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, usage, nil
		}
	}
	return "", usage, errors.New("no choice content")
}
