package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"crew-orchestrator/internal/domain/model"
	"crew-orchestrator/internal/infra/metrics"
)

// Payload is the JSON body POSTed to a job's webhook URL on every
// notifiable transition.
type Payload struct {
	DeliveryID string            `json:"delivery_id"`
	JobID      string            `json:"job_id"`
	CrewName   string            `json:"crew"`
	Status     model.JobStatus   `json:"status"`
	Result     *model.CrewOutput `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Notifier delivers job status callbacks. Deliveries are best-effort:
// one attempt, no retry, failures are logged and counted but never affect
// the job.
type Notifier struct {
	client *http.Client
	log    *zerolog.Logger
	// entropy is shared by every Notify caller; jobs settle concurrently,
	// so the reader must be the locked variant.
	entropy *ulid.LockedMonotonicReader
}

func NewNotifier(timeout time.Duration, log *zerolog.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		client: &http.Client{Timeout: timeout},
		log:    log,
		entropy: &ulid.LockedMonotonicReader{
			MonotonicReader: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		},
	}
}

func (n *Notifier) deliveryID() string {
	id, err := ulid.New(ulid.Timestamp(time.Now()), n.entropy)
	if err != nil {
		// Monotonic overflow within a single millisecond; take a fresh id
		// rather than panicking on a caller goroutine.
		return ulid.Make().String()
	}
	return id.String()
}

// Notify fires a delivery for the job's current state in the background and
// returns immediately. The job snapshot must not be mutated by the caller
// afterwards; pass a clone.
func (n *Notifier) Notify(job *model.Job) {
	if job == nil || job.WebhookURL == "" {
		return
	}
	p := Payload{
		DeliveryID: n.deliveryID(),
		JobID:      job.ID,
		CrewName:   job.CrewName,
		Status:     job.Status,
		Result:     job.Result,
		Error:      job.Error,
		Timestamp:  time.Now().UTC(),
	}
	go n.deliver(job.WebhookURL, p)
}

func (n *Notifier) deliver(url string, p Payload) {
	log := n.log.With().
		Str("delivery_id", p.DeliveryID).
		Str("job_id", p.JobID).
		Str("status", string(p.Status)).
		Logger()

	body, err := json.Marshal(p)
	if err != nil {
		metrics.IncWebhookDelivery("failed")
		log.Error().Err(err).Msg("webhook payload marshal failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.client.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		metrics.IncWebhookDelivery("failed")
		log.Error().Err(err).Msg("webhook request build failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-ID", p.DeliveryID)

	resp, err := n.client.Do(req)
	if err != nil {
		metrics.IncWebhookDelivery("failed")
		log.Warn().Err(err).Msg("webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.IncWebhookDelivery("failed")
		log.Warn().Int("status_code", resp.StatusCode).Msg("webhook endpoint returned non-2xx")
		return
	}
	metrics.IncWebhookDelivery("delivered")
	log.Debug().Msg("webhook delivered")
}
