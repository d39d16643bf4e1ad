package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"crew-orchestrator/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*GeminiAdapter)(nil)

// GeminiAdapter talks to the Gemini API through the official SDK. Crew
// stages hand over a flat prompt list rather than an ongoing conversation,
// so generation is single-shot: system messages become the model's system
// instruction and the rest is sent as one content batch.
type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
	maxOut       int
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel string, maxOut int) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel, maxOut: maxOut}, nil
}

func (g *GeminiAdapter) ListModels(ctx context.Context) ([]string, error) {
	var out []string
	for m := range g.client.Models.All(ctx) {
		if m.Name != "" {
			out = append(out, m.Name)
		}
	}
	if len(out) == 0 && g.defaultModel != "" {
		out = []string{g.defaultModel}
	}
	return out, nil
}

func (g *GeminiAdapter) GetModelInfo(model string) (adapter.ModelInfo, error) {
	m, err := g.client.Models.Get(context.Background(), model, nil)
	if err != nil {
		// Listing endpoints degrade to the bare name rather than failing.
		return adapter.ModelInfo{Name: model}, nil
	}
	return adapter.ModelInfo{
		Name:        m.Name,
		Description: m.Description,
		MaxTokens:   int(m.InputTokenLimit),
		Supports:    m.SupportedActions,
	}, nil
}

func (g *GeminiAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	system, contents := splitSystem(messages)
	if system != "" {
		// The count endpoint has no instruction slot; fold system text in
		// as user content so the estimate covers the whole prompt.
		contents = append([]*genai.Content{genai.NewContentFromText(system, genai.RoleUser)}, contents...)
	}
	resp, err := g.client.Models.CountTokens(ctx, g.resolve(model), contents, nil)
	if err != nil {
		return 0, fmt.Errorf("gemini: %w", err)
	}
	return int(resp.TotalTokens), nil
}

func (g *GeminiAdapter) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	reply, _, err := g.generate(ctx, model, messages)
	return reply, err
}

func (g *GeminiAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	return g.generate(ctx, model, messages)
}

func (g *GeminiAdapter) generate(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	if len(messages) == 0 {
		return "", adapter.Usage{}, errors.New("gemini: no messages")
	}
	system, contents := splitSystem(messages)
	if len(contents) == 0 {
		return "", adapter.Usage{}, errors.New("gemini: prompt has no user content")
	}

	cfg := &genai.GenerateContentConfig{}
	if g.maxOut > 0 {
		cfg.MaxOutputTokens = int32(g.maxOut)
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.resolve(model), contents, cfg)
	if err != nil {
		return "", adapter.Usage{}, fmt.Errorf("gemini: %w", err)
	}

	var u adapter.Usage
	if resp.UsageMetadata != nil {
		u.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		u.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		u.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return resp.Text(), u, nil
}

func (g *GeminiAdapter) resolve(model string) string {
	if strings.TrimSpace(model) == "" {
		return g.defaultModel
	}
	return model
}

// splitSystem separates system messages from the conversational ones. Gemini
// takes system text as a dedicated instruction, not as history.
func splitSystem(messages []adapter.Message) (string, []*genai.Content) {
	var (
		sys      []string
		contents []*genai.Content
	)
	for _, m := range messages {
		switch strings.ToLower(m.Role) {
		case "system":
			sys = append(sys, m.Content)
		case "assistant", "model":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(sys, "\n\n"), contents
}
