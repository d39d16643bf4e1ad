package crews

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"crew-orchestrator/internal/domain"
	"crew-orchestrator/internal/domain/model"
	"crew-orchestrator/internal/domain/ports/adapter"
	"crew-orchestrator/internal/domain/ports/crew"
)

// stage is one agent of a sequential pipeline: a persona plus an
// instruction template. The previous stage's output is handed to the next
// stage as working context.
type stage struct {
	role        string
	goal        string
	backstory   string
	instruction string
}

func (s stage) systemPrompt() string {
	return fmt.Sprintf("You are a %s. Your goal: %s\n%s", s.role, s.goal, strings.TrimSpace(s.backstory))
}

// ContentCreationCrew is the built-in research → write → edit pipeline.
// Rejection feedback, when present in inputs, is appended to the editing
// stage so a rerun revises rather than regenerates.
type ContentCreationCrew struct {
	ai    adapter.AIServiceAdapter
	model string
	log   *zerolog.Logger
}

var _ crew.Crew = (*ContentCreationCrew)(nil)

func NewContentCreationCrew(deps Deps) crew.Crew {
	return &ContentCreationCrew{ai: deps.AI, model: deps.DefaultModel, log: deps.Log}
}

func (c *ContentCreationCrew) Name() string { return "content_creation" }

func (c *ContentCreationCrew) Kickoff(ctx context.Context, inputs map[string]any) (*model.CrewOutput, error) {
	topic, _ := inputs["topic"].(string)
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("%w: inputs.topic is required", domain.ErrInvalidArgument)
	}
	feedback, _ := inputs[crew.FeedbackKey].(string)
	mdl := c.pickModel(inputs)

	stages := contentStages(topic, feedback)

	var (
		working string
		tokens  int
	)
	for _, st := range stages {
		msgs := []adapter.Message{
			{Role: "system", Content: st.systemPrompt()},
		}
		if working != "" {
			msgs = append(msgs, adapter.Message{Role: "user", Content: "Working material from the previous stage:\n\n" + working})
		}
		msgs = append(msgs, adapter.Message{Role: "user", Content: st.instruction})

		// Best-effort prompt size, counted before the call so oversized
		// stages are visible even when the provider rejects them.
		estimate, err := c.ai.CountTokens(ctx, mdl, msgs)
		if err != nil {
			estimate = -1
		}

		start := time.Now()
		out, usage, err := c.ai.ChatWithUsage(ctx, mdl, msgs)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", st.role, err)
		}
		tokens += usage.TotalTokens
		c.log.Debug().
			Str("crew", c.Name()).
			Str("stage", st.role).
			Int("prompt_estimate", estimate).
			Int("total_tokens", usage.TotalTokens).
			Dur("duration", time.Since(start)).
			Msg("stage finished")
		working = out
	}

	return &model.CrewOutput{
		Content:              working,
		Length:               len(working),
		Model:                mdl,
		TokensUsed:           tokens,
		FeedbackIncorporated: feedback != "",
		Timestamp:            time.Now(),
	}, nil
}

// pickModel prefers an explicit inputs override, then a per-job env
// override, then the configured default.
func (c *ContentCreationCrew) pickModel(inputs map[string]any) string {
	if m, _ := inputs["model"].(string); m != "" {
		return m
	}
	if env := crew.Env(inputs); env != nil && env["DEFAULT_MODEL"] != "" {
		return env["DEFAULT_MODEL"]
	}
	return c.model
}

func contentStages(topic, feedback string) []stage {
	editInstruction := "Review and optimize the blog post. Focus on:\n" +
		"1. Grammar and clarity\n" +
		"2. Content structure and flow\n" +
		"3. SEO optimization\n" +
		"4. Engagement factors\n\n" +
		"Provide the final, polished version of the blog post with any necessary improvements."
	if feedback != "" {
		editInstruction += "\n\nHuman feedback to incorporate: " + feedback
	}

	return []stage{
		{
			role: "Research Analyst",
			goal: "Gather comprehensive information on the given topic",
			backstory: "You are an experienced research analyst with a keen eye for credible information. " +
				"Your expertise lies in gathering, analyzing, and summarizing complex information from various sources. " +
				"You have a talent for identifying key trends and insights.",
			instruction: fmt.Sprintf("Research the topic %q. Focus on:\n"+
				"1. Current applications\n"+
				"2. Emerging trends and technologies\n"+
				"3. Potential impact\n"+
				"4. Challenges and ethical considerations\n\n"+
				"Provide a comprehensive research summary with key points and statistics.", topic),
		},
		{
			role: "Content Writer",
			goal: "Create engaging and informative blog content",
			backstory: "You are a skilled content writer with years of experience in creating compelling blog posts. " +
				"You excel at turning complex information into reader-friendly content while maintaining accuracy and engagement.",
			instruction: fmt.Sprintf("Using the research provided, create a compelling blog post about %q. The post should:\n"+
				"1. Have an engaging introduction\n"+
				"2. Cover all key points from the research\n"+
				"3. Include relevant examples and statistics\n"+
				"4. Be approximately 1000 words\n\n"+
				"Focus on making complex information accessible to a general audience.", topic),
		},
		{
			role: "Content Editor",
			goal: "Ensure content quality and optimize for engagement",
			backstory: "You are a meticulous editor with a strong background in content optimization. " +
				"You have an eye for detail and ensure content is not only error-free but also engaging and well-structured.",
			instruction: editInstruction,
		},
	}
}
