package jobs

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrQueueFull rejects admission when the queue is at capacity.
	ErrQueueFull = errors.New("queue is full")
	// ErrDuplicate rejects admission while a job for the same media is live.
	ErrDuplicate = errors.New("already queued")
)

// Queue is the FIFO job queue. Exactly one job runs at a time; the lease
// transitions happen inside Admit, TakeNext and Finish so that a check and
// the matching state change are a single atomic step.
type Queue struct {
	mu      sync.Mutex
	logger  *slog.Logger
	items   []*Job
	current *Job
	working bool
	nextSeq int
}

// NewQueue returns an empty queue.
func NewQueue(logger *slog.Logger) *Queue {
	return &Queue{
		logger:  logger.With("component", "queue"),
		nextSeq: 1,
	}
}

// Admit accepts a job, assigning its sequence number. When the worker is
// idle and nothing waits, the job is leased to the caller for immediate
// execution and position 0 is returned. Otherwise the job is appended and
// its 1-based queue position is returned.
func (q *Queue) Admit(job *Job, maxSize int) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.containsLocked(job.DedupeKey) {
		return 0, ErrDuplicate
	}

	job.Seq = q.nextSeq
	q.nextSeq++

	if !q.working && len(q.items) == 0 {
		q.working = true
		q.current = job
		q.logger.Debug("job leased for immediate run", "seq", job.Seq, "id", job.ID)
		return 0, nil
	}

	if len(q.items) >= maxSize {
		return 0, ErrQueueFull
	}

	q.items = append(q.items, job)
	q.logger.Debug("job queued", "seq", job.Seq, "id", job.ID, "position", len(q.items))
	return len(q.items), nil
}

// TakeNext pops the head job and takes the worker lease. It returns nil
// when the queue is empty or another job is already running.
func (q *Queue) TakeNext() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.working || len(q.items) == 0 {
		return nil
	}

	job := q.items[0]
	q.items = q.items[1:]
	q.working = true
	q.current = job
	return job
}

// Finish releases the worker lease after a pipeline run terminates.
func (q *Queue) Finish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.working = false
	q.current = nil
}

// Working reports whether a job is currently running.
func (q *Queue) Working() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.working
}

// Size returns the number of queued (not running) jobs.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Contains reports whether a live job exists for the dedupe key.
func (q *Queue) Contains(dedupeKey string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.containsLocked(dedupeKey)
}

func (q *Queue) containsLocked(dedupeKey string) bool {
	if q.current != nil && q.current.DedupeKey == dedupeKey {
		return true
	}
	for _, job := range q.items {
		if job.DedupeKey == dedupeKey {
			return true
		}
	}
	return false
}

// Cancel flips the cancel token of the job with the given sequence number,
// running or queued. A cancelled queued job stays in line; its pipeline
// aborts immediately when the worker reaches it, so the usual terminal
// reporting still happens.
func (q *Queue) Cancel(seq int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current != nil && q.current.Seq == seq {
		q.current.Cancel()
		q.logger.Info("cancelled running job", "seq", seq, "id", q.current.ID)
		return true
	}
	for _, job := range q.items {
		if job.Seq == seq {
			job.Cancel()
			q.logger.Info("cancelled queued job", "seq", seq, "id", job.ID)
			return true
		}
	}
	return false
}

// JobView is one queue entry in a snapshot.
type JobView struct {
	Seq        int       `json:"seq"`
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Name       string    `json:"name"`
	UserID     int64     `json:"user_id"`
	Size       int64     `json:"size,omitempty"`
	Cancelled  bool      `json:"cancelled,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Snapshot is a point-in-time copy of the queue for diagnostics.
type Snapshot struct {
	Working bool      `json:"working"`
	Current *JobView  `json:"current,omitempty"`
	Queued  []JobView `json:"queued"`
}

// Snapshot returns the current queue state in admission order.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	snap := Snapshot{
		Working: q.working,
		Queued:  make([]JobView, 0, len(q.items)),
	}
	if q.current != nil {
		view := viewOf(q.current)
		snap.Current = &view
	}
	for _, job := range q.items {
		snap.Queued = append(snap.Queued, viewOf(job))
	}
	return snap
}

func viewOf(job *Job) JobView {
	view := JobView{
		Seq:        job.Seq,
		ID:         job.ID,
		Kind:       job.Kind(),
		Name:       job.Payload.Name(),
		UserID:     job.UserID,
		Cancelled:  job.Cancelled(),
		EnqueuedAt: job.EnqueuedAt,
	}
	if upload, ok := job.Payload.(UploadPayload); ok {
		view.Size = upload.Size
	}
	return view
}
