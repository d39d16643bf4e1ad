package crews

import (
	"context"
	"errors"
	"strings"
	"testing"

	"crew-orchestrator/internal/domain"
	"crew-orchestrator/internal/domain/ports/crew"
)

func TestContentCreation_RunsAllStages(t *testing.T) {
	ai := &fakeAI{replies: []string{"research notes", "draft post", "final post"}}
	c := NewContentCreationCrew(Deps{AI: ai, DefaultModel: "gpt-4o-mini", Log: testLogger()})

	out, err := c.Kickoff(context.Background(), map[string]any{"topic": "go generics"})
	if err != nil {
		t.Fatalf("kickoff: %v", err)
	}
	if out.Content != "final post" {
		t.Fatalf("content = %q, want the editor stage output", out.Content)
	}
	if len(ai.calls) != 3 {
		t.Fatalf("stage calls = %d, want 3", len(ai.calls))
	}
	if ai.counted != 3 {
		t.Fatalf("token counts = %d, want one estimate per stage", ai.counted)
	}
	if out.TokensUsed != 45 {
		t.Fatalf("tokens_used = %d, want summed usage", out.TokensUsed)
	}
	if out.Model != "gpt-4o-mini" {
		t.Fatalf("model = %q", out.Model)
	}
	if out.FeedbackIncorporated {
		t.Fatal("feedback_incorporated set without feedback")
	}

	// The writer stage must see the researcher's output.
	writerMsgs := ai.calls[1]
	found := false
	for _, m := range writerMsgs {
		if strings.Contains(m.Content, "research notes") {
			found = true
		}
	}
	if !found {
		t.Fatal("writer stage did not receive research output")
	}
}

func TestContentCreation_RequiresTopic(t *testing.T) {
	c := NewContentCreationCrew(Deps{AI: &fakeAI{}, DefaultModel: "m", Log: testLogger()})
	_, err := c.Kickoff(context.Background(), map[string]any{})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestContentCreation_FeedbackReachesEditor(t *testing.T) {
	ai := &fakeAI{}
	c := NewContentCreationCrew(Deps{AI: ai, DefaultModel: "m", Log: testLogger()})

	out, err := c.Kickoff(context.Background(), map[string]any{
		"topic":          "go generics",
		crew.FeedbackKey: "make it shorter",
	})
	if err != nil {
		t.Fatalf("kickoff: %v", err)
	}
	if !out.FeedbackIncorporated {
		t.Fatal("feedback_incorporated not set")
	}

	editorMsgs := ai.calls[2]
	last := editorMsgs[len(editorMsgs)-1]
	if !strings.Contains(last.Content, "make it shorter") {
		t.Fatalf("editor instruction missing feedback: %q", last.Content)
	}
}

func TestContentCreation_StageFailureNamesStage(t *testing.T) {
	ai := &fakeAI{err: errors.New("quota exceeded")}
	c := NewContentCreationCrew(Deps{AI: ai, DefaultModel: "m", Log: testLogger()})

	_, err := c.Kickoff(context.Background(), map[string]any{"topic": "go"})
	if err == nil || !strings.Contains(err.Error(), "Research Analyst") {
		t.Fatalf("err = %v, want failing stage named", err)
	}
}

func TestContentCreation_ModelOverrides(t *testing.T) {
	ai := &fakeAI{}
	c := NewContentCreationCrew(Deps{AI: ai, DefaultModel: "default-model", Log: testLogger()})

	out, err := c.Kickoff(context.Background(), map[string]any{
		"topic": "go",
		"model": "claude-sonnet",
	})
	if err != nil {
		t.Fatalf("kickoff: %v", err)
	}
	if out.Model != "claude-sonnet" {
		t.Fatalf("model = %q, want inputs override", out.Model)
	}

	ai2 := &fakeAI{}
	c2 := NewContentCreationCrew(Deps{AI: ai2, DefaultModel: "default-model", Log: testLogger()})
	out2, err := c2.Kickoff(context.Background(), map[string]any{
		"topic":     "go",
		crew.EnvKey: map[string]string{"DEFAULT_MODEL": "env-model"},
	})
	if err != nil {
		t.Fatalf("kickoff: %v", err)
	}
	if out2.Model != "env-model" {
		t.Fatalf("model = %q, want env override", out2.Model)
	}
}

func TestResearchCrew_SingleStage(t *testing.T) {
	ai := &fakeAI{replies: []string{"summary"}}
	c := NewResearchCrew(Deps{AI: ai, DefaultModel: "m", Log: testLogger()})

	out, err := c.Kickoff(context.Background(), map[string]any{"topic": "go"})
	if err != nil {
		t.Fatalf("kickoff: %v", err)
	}
	if out.Content != "summary" {
		t.Fatalf("content = %q", out.Content)
	}
	if len(ai.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(ai.calls))
	}
}
