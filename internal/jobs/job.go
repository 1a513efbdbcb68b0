// Package jobs owns all background job state: per-library scans, bulk
// thumbnail regeneration, and bulk auto-tagging, executed under a bounded
// worker pool. Job state lives only in memory; every unit of work commits
// its catalog write before advancing a counter, so a restart loses progress
// numbers but never catalog data.
package jobs

import (
	"sync"
	"time"
)

// Kind identifies what a job does.
type Kind string

const (
	KindScan       Kind = "scan"
	KindThumbnails Kind = "thumbnails"
	KindAutoTag    Kind = "autotag"
)

// State is the lifecycle of a job.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
)

// Job is one background job, addressed by an opaque handle. All state is
// behind the mutex; consumers read via Snapshot.
type Job struct {
	ID        string
	Kind      Kind
	LibraryID string // set for scan jobs

	mu        sync.RWMutex
	state     State
	total     int
	completed int
	errors    int
	lastError string
	startedAt time.Time
	endedAt   time.Time

	cancel func()
	done   chan struct{}
}

// Snapshot is a point-in-time copy of a job's state, safe to return to
// concurrent pollers.
type Snapshot struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	LibraryID string    `json:"library_id,omitempty"`
	State     State     `json:"state"`
	Running   bool      `json:"running"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Errors    int       `json:"errors"`
	LastError string    `json:"last_error,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
}

// Snapshot returns a copy of the job's current state.
func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Snapshot{
		ID:        j.ID,
		Kind:      j.Kind,
		LibraryID: j.LibraryID,
		State:     j.state,
		Running:   j.state == StateQueued || j.state == StateRunning,
		Total:     j.total,
		Completed: j.completed,
		Errors:    j.errors,
		LastError: j.lastError,
		StartedAt: j.startedAt,
		EndedAt:   j.endedAt,
	}
}

// Done returns a channel closed when the job finishes.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = StateRunning
	j.startedAt = time.Now()
}

func (j *Job) setTotal(total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.total = total
}

func (j *Job) addCompleted() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.completed++
}

func (j *Job) addError(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors++
	j.lastError = err.Error()
}

func (j *Job) setCancel(cancel func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancel = cancel
}

func (j *Job) requestCancel() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (j *Job) finish(state State, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = state
	j.endedAt = time.Now()
	if err != nil {
		j.lastError = err.Error()
	}
	close(j.done)
}
