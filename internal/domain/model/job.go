package model

import "time"

type JobStatus string

const (
	JobStatusQueued          JobStatus = "queued"
	JobStatusProcessing      JobStatus = "processing"
	JobStatusPendingApproval JobStatus = "pending_approval"
	JobStatusCompleted       JobStatus = "completed"
	JobStatusFailed          JobStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is one of the five defined statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusPendingApproval,
		JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// CrewOutput is the payload a crew produces for one invocation.
type CrewOutput struct {
	Content              string    `json:"content"`
	Length               int       `json:"length"`
	Model                string    `json:"model,omitempty"`
	TokensUsed           int       `json:"tokens_used,omitempty"`
	FeedbackIncorporated bool      `json:"feedback_incorporated,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
}

// FeedbackEntry records one human review decision on a pending job.
type FeedbackEntry struct {
	Approved    bool      `json:"approved"`
	Feedback    string    `json:"feedback,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Job is the unit of crew execution tracked by the service. All fields are
// owned by the job runner; callers only observe snapshots.
type Job struct {
	ID              string
	CrewName        string
	Inputs          map[string]any
	Status          JobStatus
	Result          *CrewOutput
	Error           string
	WebhookURL      string
	RequireApproval bool
	Feedback        []FeedbackEntry
	FeedbackRounds  int
	CreatedAt       time.Time
	CompletedAt     *time.Time
}

// Clone returns a deep enough copy for handing out of the store: inputs and
// feedback get fresh containers, the result is copied by value.
func (j *Job) Clone() *Job {
	cp := *j
	if j.Inputs != nil {
		cp.Inputs = make(map[string]any, len(j.Inputs))
		for k, v := range j.Inputs {
			cp.Inputs[k] = v
		}
	}
	if j.Result != nil {
		r := *j.Result
		cp.Result = &r
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	if j.Feedback != nil {
		cp.Feedback = append([]FeedbackEntry(nil), j.Feedback...)
	}
	return &cp
}

// JobSummary is the listing projection: result/error bodies are elided so
// /jobs stays cheap even when outputs are large.
type JobSummary struct {
	ID          string     `json:"id"`
	CrewName    string     `json:"crew"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	HasResult   bool       `json:"has_result"`
	HasError    bool       `json:"has_error"`
}

// Summary projects the job into its listing form.
func (j *Job) Summary() JobSummary {
	return JobSummary{
		ID:          j.ID,
		CrewName:    j.CrewName,
		Status:      j.Status,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
		HasResult:   j.Result != nil,
		HasError:    j.Error != "",
	}
}
