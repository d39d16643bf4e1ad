package usecase

import (
	"context"
	"sync"

	"crew-orchestrator/internal/domain"
	"crew-orchestrator/internal/domain/model"
	"crew-orchestrator/internal/domain/ports/adapter"
)

// ---- Fakes ----

// inlineSubmitter runs tasks synchronously so tests observe settled state
// right after the call that scheduled them.
type inlineSubmitter struct {
	saturated bool
	submitted int
}

func (s *inlineSubmitter) Submit(task func(ctx context.Context) error) error {
	if s.saturated {
		return domain.ErrQueueSaturated
	}
	s.submitted++
	return task(context.Background())
}

// recordNotifier collects every notification snapshot.
type recordNotifier struct {
	mu   sync.Mutex
	sent []*model.Job
}

func (n *recordNotifier) Notify(job *model.Job) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, job)
}

func (n *recordNotifier) statuses() []model.JobStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.JobStatus, 0, len(n.sent))
	for _, j := range n.sent {
		out = append(out, j.Status)
	}
	return out
}

// stubAI serves the model-listing path; crews in these tests are stubbed
// separately and never chat.
type stubAI struct {
	models  []string
	infoErr error
}

var _ adapter.AIServiceAdapter = (*stubAI)(nil)

func (s *stubAI) ListModels(ctx context.Context) ([]string, error) { return s.models, nil }
func (s *stubAI) GetModelInfo(m string) (adapter.ModelInfo, error) {
	if s.infoErr != nil {
		return adapter.ModelInfo{}, s.infoErr
	}
	return adapter.ModelInfo{Name: m, MaxTokens: 128}, nil
}
func (s *stubAI) CountTokens(ctx context.Context, m string, msgs []adapter.Message) (int, error) {
	return 0, nil
}
func (s *stubAI) Chat(ctx context.Context, m string, msgs []adapter.Message) (string, error) {
	return "", nil
}
func (s *stubAI) ChatWithUsage(ctx context.Context, m string, msgs []adapter.Message) (string, adapter.Usage, error) {
	return "", adapter.Usage{}, nil
}

// stubCrew invokes fn and counts calls; the last inputs map is retained for
// assertions on feedback merging.
type stubCrew struct {
	mu         sync.Mutex
	calls      int
	lastInputs map[string]any
	fn         func(inputs map[string]any) (*model.CrewOutput, error)
}

func (s *stubCrew) Name() string { return "stub" }

func (s *stubCrew) Kickoff(ctx context.Context, inputs map[string]any) (*model.CrewOutput, error) {
	s.mu.Lock()
	s.calls++
	s.lastInputs = inputs
	s.mu.Unlock()
	return s.fn(inputs)
}

func (s *stubCrew) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubCrew) inputs() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastInputs
}
