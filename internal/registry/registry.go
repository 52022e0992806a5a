// Package registry enforces the one-active-job-per-project rule. The
// running-check and the reservation are a single critical section, so two
// concurrent run requests can never both launch.
package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/proteindock/api/internal/model"
)

// ErrJobAlreadyRunning is returned when a project's slot is taken.
var ErrJobAlreadyRunning = errors.New("job already running")

// active is the slot state for one project. The worker attaches its cancel
// function after the run request has already returned, so a cancel arriving
// in that window is remembered and observed at attach time.
type active struct {
	job       *model.Job
	cancel    context.CancelFunc
	cancelled bool
}

type Registry struct {
	mu    sync.Mutex
	slots map[string]*active
}

func New() *Registry {
	return &Registry{slots: make(map[string]*active)}
}

// Acquire reserves the project's slot for job. Fails with
// ErrJobAlreadyRunning when a job is already launching or running.
func (r *Registry) Acquire(project string, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[project]; ok {
		return ErrJobAlreadyRunning
	}
	r.slots[project] = &active{job: job}
	return nil
}

// Attach registers the worker's cancel function for an acquired slot. The
// returned flag is true when a cancel request arrived before the worker
// started; the worker must then stop without launching the engine.
func (r *Registry) Attach(project string, cancel context.CancelFunc) (alreadyCancelled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.slots[project]
	if !ok {
		return true
	}
	a.cancel = cancel
	return a.cancelled
}

// Cancel signals the project's active job. Returns false when no job is
// active — a no-op, not an error.
func (r *Registry) Cancel(project string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.slots[project]
	if !ok {
		return false
	}
	a.cancelled = true
	if a.cancel != nil {
		a.cancel()
	}
	return true
}

// Release frees the project's slot once its job reached a terminal state.
func (r *Registry) Release(project string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slots, project)
}

// Get returns the active job for a project, if any.
func (r *Registry) Get(project string) (*model.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.slots[project]
	if !ok {
		return nil, false
	}
	return a.job, true
}
