package domain

import "errors"

var (
	// Common domain errors
	ErrJobNotFound         = errors.New("job not found")
	ErrCrewNotFound        = errors.New("crew not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotAwaitingApproval = errors.New("job is not awaiting approval")
	ErrJobBusy             = errors.New("job has an invocation in flight")
	ErrFeedbackLimit       = errors.New("feedback round limit reached")
	ErrQueueSaturated      = errors.New("worker queue full")

	// Crew adapter errors: no registered construction or invocation
	// strategy matched the crew implementation.
	ErrCrewInitialization = errors.New("crew could not be constructed")
	ErrCrewInvocation     = errors.New("crew could not be invoked")
)
