package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/proteindock/api/internal/model"
)

func testJob(project string) *model.Job {
	return &model.Job{ID: "job-" + project, Project: project, Status: model.JobStatusLaunching}
}

func TestAcquire_SecondRequestRejected(t *testing.T) {
	r := New()

	if err := r.Acquire("p1", testJob("p1")); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := r.Acquire("p1", testJob("p1")); !errors.Is(err, ErrJobAlreadyRunning) {
		t.Fatalf("expected ErrJobAlreadyRunning, got %v", err)
	}

	// Another project is unaffected.
	if err := r.Acquire("p2", testJob("p2")); err != nil {
		t.Fatalf("acquire on other project failed: %v", err)
	}

	r.Release("p1")
	if err := r.Acquire("p1", testJob("p1")); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}

func TestAcquire_ConcurrentRace(t *testing.T) {
	r := New()

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Acquire("p1", testJob("p1")); err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if won != 1 {
		t.Errorf("expected exactly one winner, got %d", won)
	}
}

func TestCancel_NoActiveJob(t *testing.T) {
	r := New()
	if r.Cancel("idle") {
		t.Error("cancel on idle project must report false")
	}
}

func TestCancel_AfterAttach(t *testing.T) {
	r := New()
	if err := r.Acquire("p1", testJob("p1")); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if already := r.Attach("p1", cancel); already {
		t.Fatal("fresh slot must not report a pending cancel")
	}

	if !r.Cancel("p1") {
		t.Fatal("cancel on active job must report true")
	}
	select {
	case <-ctx.Done():
	default:
		t.Error("cancel did not invoke the attached cancel function")
	}
}

func TestCancel_BeforeAttach(t *testing.T) {
	r := New()
	if err := r.Acquire("p1", testJob("p1")); err != nil {
		t.Fatal(err)
	}

	if !r.Cancel("p1") {
		t.Fatal("cancel on acquired slot must report true")
	}

	// The worker attaching later must learn the cancel already happened.
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	if already := r.Attach("p1", cancel); !already {
		t.Error("attach after cancel must report the pending cancel")
	}
}

func TestAttach_ReleasedSlot(t *testing.T) {
	r := New()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	if already := r.Attach("gone", cancel); !already {
		t.Error("attach on a missing slot must tell the worker to stop")
	}
}

func TestGet(t *testing.T) {
	r := New()
	job := testJob("p1")
	if err := r.Acquire("p1", job); err != nil {
		t.Fatal(err)
	}

	got, ok := r.Get("p1")
	if !ok || got.ID != job.ID {
		t.Errorf("expected active job %s, got %+v (ok=%v)", job.ID, got, ok)
	}
	if _, ok := r.Get("p2"); ok {
		t.Error("idle project must have no active job")
	}
}
