package crews

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"crew-orchestrator/internal/domain"
	"crew-orchestrator/internal/domain/model"
	"crew-orchestrator/internal/domain/ports/adapter"
	"crew-orchestrator/internal/domain/ports/crew"
)

// Deps is what a crew factory may ask for at construction time.
type Deps struct {
	AI           adapter.AIServiceAdapter
	DefaultModel string
	Log          *zerolog.Logger
}

// Registry maps crew names to factories. Factories are registered as `any`
// on purpose: crew implementations are independently authored and do not
// share a constructor signature, so resolution shims over a fixed set of
// supported shapes (see Resolve).
type Registry struct {
	mu        sync.RWMutex
	factories map[string]any
	log       *zerolog.Logger
}

func NewRegistry(log *zerolog.Logger) *Registry {
	return &Registry{
		factories: make(map[string]any),
		log:       log,
	}
}

// Register binds a factory (or a prebuilt crew) to a name. Last write wins.
func (r *Registry) Register(name string, factory any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Names returns the registered crew names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Resolve constructs an invocable crew for name. Construction strategies are
// tried in a fixed order; a shape mismatch falls through to the next
// strategy, while an error returned by a matching factory propagates
// immediately as a genuine failure. When no construction shape matches the
// result is ErrCrewInitialization; when the constructed value exposes no
// supported invocation shape the result is ErrCrewInvocation.
func (r *Registry) Resolve(name string, deps Deps, inputs map[string]any) (crew.Crew, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCrewNotFound, name)
	}

	built, err := construct(name, factory, deps, inputs)
	if err != nil {
		return nil, err
	}
	return asInvocable(name, built)
}

// construct runs the fixed fallback order of constructor shapes.
func construct(name string, factory any, deps Deps, inputs map[string]any) (any, error) {
	switch f := factory.(type) {
	case func() crew.Crew:
		return f(), nil
	case func(Deps) crew.Crew:
		return f(deps), nil
	case func(Deps) (crew.Crew, error):
		c, err := f(deps)
		if err != nil {
			return nil, fmt.Errorf("construct crew %s: %w", name, err)
		}
		return c, nil
	case func(Deps, map[string]any) (crew.Crew, error):
		c, err := f(deps, inputs)
		if err != nil {
			return nil, fmt.Errorf("construct crew %s: %w", name, err)
		}
		return c, nil
	}
	// Not a constructor at all: the registered value may already be
	// invocable, so hand it to the invocation shimming as-is.
	switch factory.(type) {
	case crew.Crew, crew.ContextFreeCrew, crew.KickoffFunc,
		func(context.Context, map[string]any) (*model.CrewOutput, error):
		return factory, nil
	}
	return nil, fmt.Errorf("%w: %s: unsupported factory shape %T", domain.ErrCrewInitialization, name, factory)
}

// asInvocable runs the fixed fallback order of invocation shapes and
// normalizes the match to the canonical crew.Crew.
func asInvocable(name string, built any) (crew.Crew, error) {
	switch c := built.(type) {
	case crew.Crew:
		return c, nil
	case crew.ContextFreeCrew:
		return contextShim{inner: c}, nil
	case crew.KickoffFunc:
		return funcCrew{name: name, fn: c}, nil
	case func(context.Context, map[string]any) (*model.CrewOutput, error):
		return funcCrew{name: name, fn: c}, nil
	}
	return nil, fmt.Errorf("%w: %s: unsupported crew shape %T", domain.ErrCrewInvocation, name, built)
}

// contextShim adapts the legacy context-free invocation shape.
type contextShim struct {
	inner crew.ContextFreeCrew
}

func (s contextShim) Name() string { return s.inner.Name() }

func (s contextShim) Kickoff(ctx context.Context, inputs map[string]any) (*model.CrewOutput, error) {
	// The legacy shape cannot observe cancellation mid-run; honor an
	// already-cancelled context at least.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.inner.Kickoff(inputs)
}

// funcCrew adapts a bare kickoff function.
type funcCrew struct {
	name string
	fn   func(context.Context, map[string]any) (*model.CrewOutput, error)
}

func (f funcCrew) Name() string { return f.name }

func (f funcCrew) Kickoff(ctx context.Context, inputs map[string]any) (*model.CrewOutput, error) {
	return f.fn(ctx, inputs)
}
