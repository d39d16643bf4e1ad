package worker

import (
	"context"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"crew-orchestrator/internal/domain"
)

// Task is one unit of background work. Alias, so any func with this shape
// satisfies interfaces declared over it.
type Task = func(ctx context.Context) error

// Pool runs submitted tasks on a fixed set of goroutines with a bounded
// queue. Submit never blocks: a full queue is reported to the caller so the
// HTTP layer can shed load instead of stalling.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
	quit chan struct{}
	n    int
	log  *zerolog.Logger
}

func NewPool(workers, queueSize int, log *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	return &Pool{
		jobs: make(chan Task, queueSize),
		quit: make(chan struct{}),
		n:    workers,
		log:  log,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					if task == nil {
						continue
					}
					if err := task(ctx); err != nil {
						p.log.Error().Int("worker", id).Err(err).Msg("task error")
					}
				}
			}
		}(i)
	}
}

// Stop signals workers and waits for in-flight tasks to finish. Tasks still
// queued are abandoned.
func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return domain.ErrInvalidArgument
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return domain.ErrQueueSaturated
	}
}
