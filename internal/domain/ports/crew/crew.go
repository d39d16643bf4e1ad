package crew

import (
	"context"

	"crew-orchestrator/internal/domain/model"
)

// EnvKey is the reserved inputs key under which per-job environment
// overrides from the kickoff request are exposed to a crew. Values under
// this key never appear in the job's public inputs and are never written
// to the process environment.
const EnvKey = "_env"

// FeedbackKey is the inputs key the runner merges rejection feedback into
// before a rerun. Crews that support revision read it from their inputs.
const FeedbackKey = "feedback"

// Crew is the canonical invocation shape: a named unit that turns inputs
// into a content output.
type Crew interface {
	Name() string
	Kickoff(ctx context.Context, inputs map[string]any) (*model.CrewOutput, error)
}

// ContextFreeCrew is the legacy invocation shape exposed by crews written
// before context plumbing. The adapter falls back to it when the canonical
// shape is not implemented.
type ContextFreeCrew interface {
	Name() string
	Kickoff(inputs map[string]any) (*model.CrewOutput, error)
}

// KickoffFunc adapts a bare function into the canonical shape.
type KickoffFunc func(ctx context.Context, inputs map[string]any) (*model.CrewOutput, error)

// Env extracts the per-job environment overrides from inputs, if present.
func Env(inputs map[string]any) map[string]string {
	v, ok := inputs[EnvKey]
	if !ok {
		return nil
	}
	env, _ := v.(map[string]string)
	return env
}
