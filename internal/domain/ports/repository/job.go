package repository

import (
	"context"

	"crew-orchestrator/internal/domain/model"
)

// JobRepository is the port for the process-wide job registry. Implementations
// must serialize Update calls per job id and keep reads/writes for distinct
// ids independent; returned jobs are snapshots the caller owns.
type JobRepository interface {
	Create(ctx context.Context, job *model.Job) error
	Find(ctx context.Context, id string) (*model.Job, error)

	// Update applies mutate to the stored job under that job's lock and
	// returns a snapshot of the mutated job. When mutate returns an error
	// the job is left untouched and the error is passed through.
	Update(ctx context.Context, id string, mutate func(*model.Job) error) (*model.Job, error)

	Delete(ctx context.Context, id string) error

	// List returns newest-first summaries, optionally filtered by status
	// ("" matches all) and truncated to limit (<=0 means no limit).
	List(ctx context.Context, limit int, status model.JobStatus) ([]model.JobSummary, error)

	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status model.JobStatus) (int, error)
}
