package crews

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crew-orchestrator/internal/domain"
	"crew-orchestrator/internal/domain/model"
	"crew-orchestrator/internal/domain/ports/adapter"
	"crew-orchestrator/internal/domain/ports/crew"
)

// ResearchCrew is a single-stage crew returning a research summary. It keeps
// the legacy context-free invocation shape so the registry's fallback path
// stays exercised by a real crew, not only by tests.
type ResearchCrew struct {
	ai    adapter.AIServiceAdapter
	model string
}

var _ crew.ContextFreeCrew = (*ResearchCrew)(nil)

func NewResearchCrew(deps Deps) crew.Crew {
	c, _ := asInvocable("research", &ResearchCrew{ai: deps.AI, model: deps.DefaultModel})
	return c
}

func (r *ResearchCrew) Name() string { return "research" }

func (r *ResearchCrew) Kickoff(inputs map[string]any) (*model.CrewOutput, error) {
	topic, _ := inputs["topic"].(string)
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("%w: inputs.topic is required", domain.ErrInvalidArgument)
	}
	mdl := r.model
	if m, _ := inputs["model"].(string); m != "" {
		mdl = m
	}

	st := contentStages(topic, "")[0]
	msgs := []adapter.Message{
		{Role: "system", Content: st.systemPrompt()},
		{Role: "user", Content: st.instruction},
	}
	out, usage, err := r.ai.ChatWithUsage(context.Background(), mdl, msgs)
	if err != nil {
		return nil, fmt.Errorf("stage %q: %w", st.role, err)
	}
	return &model.CrewOutput{
		Content:    out,
		Length:     len(out),
		Model:      mdl,
		TokensUsed: usage.TotalTokens,
		Timestamp:  time.Now(),
	}, nil
}
