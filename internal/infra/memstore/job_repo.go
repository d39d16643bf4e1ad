package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"crew-orchestrator/internal/domain"
	"crew-orchestrator/internal/domain/model"
	"crew-orchestrator/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*JobRepository)(nil)

// entry pairs a stored job with its own mutex so Update calls for one job
// serialize without blocking other jobs. deleted marks entries removed from
// the store; a caller holding a stale entry pointer must not mutate it.
type entry struct {
	mu      sync.Mutex
	job     *model.Job
	deleted bool
}

// JobRepository keeps jobs in process memory. State is lost on restart.
type JobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*entry
	// seq preserves insertion order so List can return newest-first without
	// sorting timestamps that may collide.
	seq []string
}

func NewJobRepository() *JobRepository {
	return &JobRepository{jobs: make(map[string]*entry)}
}

func (r *JobRepository) Create(ctx context.Context, job *model.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("%w: job id is empty", domain.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("%w: duplicate job id %s", domain.ErrInvalidArgument, job.ID)
	}
	r.jobs[job.ID] = &entry{job: job.Clone()}
	r.seq = append(r.seq, job.ID)
	return nil
}

func (r *JobRepository) Find(ctx context.Context, id string) (*model.Job, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return e.job.Clone(), nil
}

func (r *JobRepository) Update(ctx context.Context, id string, mutate func(*model.Job) error) (*model.Job, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	// A Delete may have won between lookup and lock; mutating the orphaned
	// entry would report success for a job that no longer exists.
	if e.deleted {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	// Mutate a copy so a failed mutate leaves the stored job untouched.
	next := e.job.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	e.job = next
	return next.Clone(), nil
}

func (r *JobRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	delete(r.jobs, id)
	for i, jid := range r.seq {
		if jid == id {
			r.seq = append(r.seq[:i], r.seq[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	// Marking under the entry lock waits out any in-flight Update, so the
	// delete linearizes after it and later Updates see a missing job.
	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	return nil
}

func (r *JobRepository) List(ctx context.Context, limit int, status model.JobStatus) ([]model.JobSummary, error) {
	r.mu.RLock()
	ids := make([]string, len(r.seq))
	copy(ids, r.seq)
	entries := make([]*entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.jobs[id]; ok {
			entries = append(entries, e)
		}
	}
	r.mu.RUnlock()

	out := make([]model.JobSummary, 0, len(entries))
	// Newest first: walk insertion order backwards.
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		e.mu.Lock()
		gone := e.deleted
		s := e.job.Summary()
		e.mu.Unlock()
		if gone {
			continue
		}
		if status != "" && s.Status != status {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	// Insertion order already tracks CreatedAt, keep sort as a tie-breaker
	// for jobs created within the same tick.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *JobRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs), nil
}

func (r *JobRepository) CountByStatus(ctx context.Context, status model.JobStatus) (int, error) {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.jobs))
	for _, e := range r.jobs {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	n := 0
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted && e.job.Status == status {
			n++
		}
		e.mu.Unlock()
	}
	return n, nil
}

func (r *JobRepository) lookup(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return e, nil
}
