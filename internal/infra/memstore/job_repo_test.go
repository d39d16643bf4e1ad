package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"crew-orchestrator/internal/domain"
	"crew-orchestrator/internal/domain/model"
)

func newJob(id string, status model.JobStatus) *model.Job {
	return &model.Job{
		ID:        id,
		CrewName:  "content_creation",
		Inputs:    map[string]any{"topic": "go"},
		Status:    status,
		CreatedAt: time.Now(),
	}
}

func TestCreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository()

	if err := repo.Create(ctx, newJob("a", model.JobStatusQueued)); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := repo.Find(ctx, "a")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != "a" || got.Status != model.JobStatusQueued {
		t.Fatalf("got %+v", got)
	}

	if err := repo.Create(ctx, newJob("a", model.JobStatusQueued)); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("duplicate create err = %v, want ErrInvalidArgument", err)
	}
	if _, err := repo.Find(ctx, "missing"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("find missing err = %v, want ErrJobNotFound", err)
	}
}

func TestFind_ReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository()
	if err := repo.Create(ctx, newJob("a", model.JobStatusQueued)); err != nil {
		t.Fatalf("create: %v", err)
	}

	snap, _ := repo.Find(ctx, "a")
	snap.Status = model.JobStatusFailed
	snap.Inputs["topic"] = "mutated"

	fresh, _ := repo.Find(ctx, "a")
	if fresh.Status != model.JobStatusQueued {
		t.Fatal("mutating a snapshot leaked into the store")
	}
	if fresh.Inputs["topic"] != "go" {
		t.Fatal("mutating snapshot inputs leaked into the store")
	}
}

func TestUpdate_FailedMutateLeavesJobUntouched(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository()
	if err := repo.Create(ctx, newJob("a", model.JobStatusQueued)); err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := errors.New("boom")
	_, err := repo.Update(ctx, "a", func(j *model.Job) error {
		j.Status = model.JobStatusFailed
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want mutate error passed through", err)
	}
	got, _ := repo.Find(ctx, "a")
	if got.Status != model.JobStatusQueued {
		t.Fatalf("status = %s, want queued after failed mutate", got.Status)
	}
}

func TestUpdate_SerializesPerJob(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository()
	if err := repo.Create(ctx, newJob("a", model.JobStatusQueued)); err != nil {
		t.Fatalf("create: %v", err)
	}

	const K = 64
	var wg sync.WaitGroup
	wg.Add(K)
	for i := 0; i < K; i++ {
		go func() {
			defer wg.Done()
			_, _ = repo.Update(ctx, "a", func(j *model.Job) error {
				j.FeedbackRounds++
				return nil
			})
		}()
	}
	wg.Wait()

	got, _ := repo.Find(ctx, "a")
	if got.FeedbackRounds != K {
		t.Fatalf("feedback_rounds = %d, want %d (lost updates)", got.FeedbackRounds, K)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository()
	if err := repo.Create(ctx, newJob("a", model.JobStatusQueued)); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Find(ctx, "a"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("find after delete err = %v, want ErrJobNotFound", err)
	}
	if err := repo.Delete(ctx, "a"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("double delete err = %v, want ErrJobNotFound", err)
	}
	if _, err := repo.Update(ctx, "a", func(*model.Job) error { return nil }); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("update after delete err = %v, want ErrJobNotFound", err)
	}
}

func TestDelete_WaitsOutInflightUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository()
	if err := repo.Create(ctx, newJob("a", model.JobStatusQueued)); err != nil {
		t.Fatalf("create: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	updated := make(chan error, 1)
	go func() {
		_, err := repo.Update(ctx, "a", func(j *model.Job) error {
			close(started)
			<-release
			j.Status = model.JobStatusProcessing
			return nil
		})
		updated <- err
	}()

	<-started
	deleted := make(chan error, 1)
	go func() { deleted <- repo.Delete(ctx, "a") }()
	close(release)

	if err := <-updated; err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := <-deleted; err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Whatever order the two landed in, the delete is final.
	if _, err := repo.Find(ctx, "a"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("find after delete err = %v, want ErrJobNotFound", err)
	}
}

func TestUpdate_RacingDeleteNeverResurrects(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository()

	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("job-%d", i)
		if err := repo.Create(ctx, newJob(id, model.JobStatusQueued)); err != nil {
			t.Fatalf("create: %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = repo.Update(ctx, id, func(j *model.Job) error {
				j.Status = model.JobStatusProcessing
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = repo.Delete(ctx, id)
		}()
		wg.Wait()

		if _, err := repo.Find(ctx, id); !errors.Is(err, domain.ErrJobNotFound) {
			t.Fatalf("iteration %d: job survived its delete: %v", i, err)
		}
		if n, _ := repo.Count(ctx); n != 0 {
			t.Fatalf("iteration %d: count = %d after delete", i, n)
		}
	}
}

func TestList_NewestFirstWithFilterAndLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository()

	base := time.Now()
	for i := 0; i < 5; i++ {
		j := newJob(fmt.Sprintf("job-%d", i), model.JobStatusQueued)
		j.CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
		if i%2 == 0 {
			j.Status = model.JobStatusCompleted
		}
		if err := repo.Create(ctx, j); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	all, err := repo.List(ctx, 0, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("len = %d, want 5", len(all))
	}
	if all[0].ID != "job-4" || all[4].ID != "job-0" {
		t.Fatalf("order = [%s ... %s], want newest first", all[0].ID, all[4].ID)
	}

	completed, err := repo.List(ctx, 0, model.JobStatusCompleted)
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if len(completed) != 3 {
		t.Fatalf("len = %d, want 3 completed", len(completed))
	}

	limited, err := repo.List(ctx, 2, "")
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != "job-4" {
		t.Fatalf("limited = %v, want two newest", limited)
	}
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository()
	for i := 0; i < 3; i++ {
		st := model.JobStatusQueued
		if i == 0 {
			st = model.JobStatusProcessing
		}
		if err := repo.Create(ctx, newJob(fmt.Sprintf("j%d", i), st)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	total, err := repo.Count(ctx)
	if err != nil || total != 3 {
		t.Fatalf("count = %d (%v), want 3", total, err)
	}
	active, err := repo.CountByStatus(ctx, model.JobStatusProcessing)
	if err != nil || active != 1 {
		t.Fatalf("active = %d (%v), want 1", active, err)
	}
}
