package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crew-orchestrator/internal/domain"
	"crew-orchestrator/internal/domain/model"
	"crew-orchestrator/internal/domain/ports/adapter"
	"crew-orchestrator/internal/domain/ports/crew"
	"crew-orchestrator/internal/domain/ports/repository"
	"crew-orchestrator/internal/infra/crews"
	"crew-orchestrator/internal/infra/logging"
	"crew-orchestrator/internal/infra/metrics"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

// Notifier delivers job status callbacks; deliveries must not block the
// caller.
type Notifier interface {
	Notify(job *model.Job)
}

// Submitter schedules background tasks; a saturated queue is reported as an
// error instead of blocking.
type Submitter interface {
	Submit(task func(ctx context.Context) error) error
}

// KickoffRequest carries everything needed to start a job.
type KickoffRequest struct {
	CrewName        string
	Inputs          map[string]any
	EnvVars         map[string]string
	WebhookURL      string
	RequireApproval bool
}

type JobUseCase interface {
	Kickoff(ctx context.Context, req KickoffRequest) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	Feedback(ctx context.Context, id string, approved bool, feedback string) (*model.Job, error)
	List(ctx context.Context, limit int, status string) ([]model.JobSummary, error)
	Delete(ctx context.Context, id string) error
	CrewNames() []string
	Models(ctx context.Context) ([]adapter.ModelInfo, error)
	Counts(ctx context.Context) (total, active int, err error)
}

type jobUC struct {
	jobs     repository.JobRepository
	registry *crews.Registry
	deps     crews.Deps
	pool     Submitter
	notifier Notifier
	log      *zerolog.Logger

	// maxFeedbackRounds caps rejection reruns per job; 0 means unbounded.
	maxFeedbackRounds int
}

func NewJobUseCase(
	jobs repository.JobRepository,
	registry *crews.Registry,
	deps crews.Deps,
	pool Submitter,
	notifier Notifier,
	maxFeedbackRounds int,
	log *zerolog.Logger,
) *jobUC {
	return &jobUC{
		jobs:              jobs,
		registry:          registry,
		deps:              deps,
		pool:              pool,
		notifier:          notifier,
		maxFeedbackRounds: maxFeedbackRounds,
		log:               log,
	}
}

func (u *jobUC) Kickoff(ctx context.Context, req KickoffRequest) (*model.Job, error) {
	defer logging.TraceDuration(u.log, "JobUC.Kickoff")()

	name := strings.TrimSpace(req.CrewName)
	if name == "" {
		return nil, fmt.Errorf("%w: crew name is required", domain.ErrInvalidArgument)
	}
	if !u.registry.Has(name) {
		return nil, fmt.Errorf("%w: %s", domain.ErrCrewNotFound, name)
	}

	inputs := req.Inputs
	if inputs == nil {
		inputs = make(map[string]any)
	}
	if len(req.EnvVars) > 0 {
		env := make(map[string]string, len(req.EnvVars))
		for k, v := range req.EnvVars {
			env[k] = v
		}
		inputs[crew.EnvKey] = env
	}

	job := &model.Job{
		ID:              uuid.NewString(),
		CrewName:        name,
		Inputs:          inputs,
		Status:          model.JobStatusQueued,
		WebhookURL:      req.WebhookURL,
		RequireApproval: req.RequireApproval,
		CreatedAt:       time.Now(),
	}
	if err := u.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	if err := u.submitExecution(job.ID); err != nil {
		// Queue is full: don't leave an orphan that would stay queued forever.
		_ = u.jobs.Delete(ctx, job.ID)
		return nil, err
	}

	u.log.Info().Str("job_id", job.ID).Str("crew", name).Msg("job accepted")
	return job.Clone(), nil
}

func (u *jobUC) Get(ctx context.Context, id string) (*model.Job, error) {
	return u.jobs.Find(ctx, id)
}

// Feedback records a human decision on a pending job. Approval finalizes the
// current result; rejection merges the feedback into the job inputs and
// schedules one rerun.
func (u *jobUC) Feedback(ctx context.Context, id string, approved bool, feedback string) (*model.Job, error) {
	defer logging.TraceDuration(u.log, "JobUC.Feedback")()

	feedback = strings.TrimSpace(feedback)
	if !approved && feedback == "" {
		return nil, fmt.Errorf("%w: rejection requires feedback text", domain.ErrInvalidArgument)
	}

	var rerun bool
	job, err := u.jobs.Update(ctx, id, func(j *model.Job) error {
		switch j.Status {
		case model.JobStatusPendingApproval:
		case model.JobStatusProcessing, model.JobStatusQueued:
			return fmt.Errorf("%w: %s", domain.ErrJobBusy, id)
		default:
			return fmt.Errorf("%w: job is %s", domain.ErrNotAwaitingApproval, j.Status)
		}

		j.Feedback = append(j.Feedback, model.FeedbackEntry{
			Approved:    approved,
			Feedback:    feedback,
			SubmittedAt: time.Now(),
		})

		if approved {
			now := time.Now()
			j.Status = model.JobStatusCompleted
			j.CompletedAt = &now
			return nil
		}

		j.FeedbackRounds++
		if u.maxFeedbackRounds > 0 && j.FeedbackRounds > u.maxFeedbackRounds {
			now := time.Now()
			j.Status = model.JobStatusFailed
			j.Result = nil
			j.Error = domain.ErrFeedbackLimit.Error()
			j.CompletedAt = &now
			return nil
		}

		if j.Inputs == nil {
			j.Inputs = make(map[string]any)
		}
		j.Inputs[crew.FeedbackKey] = feedback
		j.Status = model.JobStatusProcessing
		rerun = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case approved:
		metrics.IncFeedback("approved")
		metrics.IncJobProcessed(string(model.JobStatusCompleted))
		u.notifier.Notify(job)
	case job.Status == model.JobStatusFailed:
		metrics.IncFeedback("limit_reached")
		metrics.IncJobProcessed(string(model.JobStatusFailed))
		u.notifier.Notify(job)
	default:
		metrics.IncFeedback("rejected")
	}

	if rerun {
		if err := u.submitExecution(id); err != nil {
			// Rerun could not be scheduled: put the job back where the
			// caller can retry the decision later.
			restored, rerr := u.jobs.Update(ctx, id, func(j *model.Job) error {
				j.Status = model.JobStatusPendingApproval
				j.FeedbackRounds--
				delete(j.Inputs, crew.FeedbackKey)
				return nil
			})
			if rerr == nil {
				return restored, err
			}
			return nil, err
		}
	}

	return job, nil
}

func (u *jobUC) List(ctx context.Context, limit int, status string) ([]model.JobSummary, error) {
	st := model.JobStatus(status)
	if status != "" && !st.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidArgument, status)
	}
	return u.jobs.List(ctx, limit, st)
}

func (u *jobUC) Delete(ctx context.Context, id string) error {
	return u.jobs.Delete(ctx, id)
}

func (u *jobUC) CrewNames() []string { return u.registry.Names() }

// Models lists the models reachable through the configured adapter,
// enriched with per-model limits where the provider reports them.
func (u *jobUC) Models(ctx context.Context) ([]adapter.ModelInfo, error) {
	names, err := u.deps.AI.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]adapter.ModelInfo, 0, len(names))
	for _, name := range names {
		info, err := u.deps.AI.GetModelInfo(name)
		if err != nil {
			info = adapter.ModelInfo{Name: name}
		}
		out = append(out, info)
	}
	return out, nil
}

func (u *jobUC) Counts(ctx context.Context) (int, int, error) {
	total, err := u.jobs.Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	active, err := u.jobs.CountByStatus(ctx, model.JobStatusProcessing)
	if err != nil {
		return 0, 0, err
	}
	return total, active, nil
}

func (u *jobUC) submitExecution(jobID string) error {
	return u.pool.Submit(func(ctx context.Context) error {
		u.execute(ctx, jobID)
		return nil
	})
}

// execute runs one crew invocation for the job and settles its status.
// All failure paths, panics included, land the job in failed rather than
// wedging it in processing.
func (u *jobUC) execute(ctx context.Context, jobID string) {
	ctx = logging.WithJobID(ctx, jobID)
	log := logging.With(ctx, u.log)

	job, err := u.jobs.Update(ctx, jobID, func(j *model.Job) error {
		if j.Status.Terminal() {
			return fmt.Errorf("%w: job already %s", domain.ErrNotAwaitingApproval, j.Status)
		}
		j.Status = model.JobStatusProcessing
		return nil
	})
	if err != nil {
		// Deleted or settled between scheduling and execution.
		log.Debug().Err(err).Msg("skipping execution")
		return
	}

	metrics.JobStarted()
	defer metrics.JobFinished()

	start := time.Now()
	out, err := u.invoke(ctx, job)
	if err != nil {
		u.settleFailed(ctx, jobID, err, log)
		return
	}

	rerun := job.FeedbackRounds > 0
	settled, err := u.jobs.Update(ctx, jobID, func(j *model.Job) error {
		if rerun {
			out.FeedbackIncorporated = true
		}
		j.Result = out
		j.Error = ""
		if j.RequireApproval {
			j.Status = model.JobStatusPendingApproval
			return nil
		}
		now := time.Now()
		j.Status = model.JobStatusCompleted
		j.CompletedAt = &now
		return nil
	})
	if err != nil {
		log.Debug().Err(err).Msg("job vanished before settlement")
		return
	}

	metrics.IncJobProcessed(string(settled.Status))
	u.notifier.Notify(settled)
	log.Info().
		Str("crew", settled.CrewName).
		Str("status", string(settled.Status)).
		Dur("duration", time.Since(start)).
		Msg("invocation finished")
}

// invoke resolves and kicks off the crew with panic containment.
func (u *jobUC) invoke(ctx context.Context, job *model.Job) (out *model.CrewOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: panic: %v", domain.ErrCrewInvocation, r)
		}
	}()

	c, err := u.registry.Resolve(job.CrewName, u.deps, job.Inputs)
	if err != nil {
		return nil, err
	}
	out, err = c.Kickoff(ctx, job.Inputs)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: crew returned no output", domain.ErrCrewInvocation)
	}
	return out, nil
}

func (u *jobUC) settleFailed(ctx context.Context, jobID string, cause error, log *zerolog.Logger) {
	settled, err := u.jobs.Update(ctx, jobID, func(j *model.Job) error {
		now := time.Now()
		j.Status = model.JobStatusFailed
		j.Result = nil
		j.Error = cause.Error()
		j.CompletedAt = &now
		return nil
	})
	if err != nil {
		log.Debug().Err(err).Msg("job vanished before failure settlement")
		return
	}
	metrics.IncJobProcessed(string(model.JobStatusFailed))
	u.notifier.Notify(settled)
	log.Warn().Err(cause).Msg("invocation failed")

	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		log.Debug().Msg("invocation interrupted by shutdown")
	}
}
