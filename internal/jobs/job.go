// Package jobs implements the transcode queue: FIFO admission with a
// single-worker lease, per-job cancellation, and the short-key registry
// inline buttons reference.
package jobs

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Payload is the media source of a job.
type Payload interface {
	// Name returns the filename suggested by the source, possibly empty.
	Name() string
	isPayload()
}

// UploadPayload references media already stored on the chat service.
type UploadPayload struct {
	// Locator is the transport file id used to fetch the media.
	Locator       string
	SuggestedName string
	Size          int64
}

func (p UploadPayload) Name() string { return p.SuggestedName }
func (UploadPayload) isPayload()     {}

// LinkPayload is a direct-download URL.
type LinkPayload struct {
	URL           string
	SuggestedName string
}

func (p LinkPayload) Name() string { return p.SuggestedName }
func (LinkPayload) isPayload()     {}

// Job is one unit of transcode work. Jobs are created on admission and
// destroyed when their pipeline terminates.
type Job struct {
	// ID is a time-sortable ULID used for run history and logging.
	ID string
	// Seq is the small queue sequence number used in callback payloads.
	// It is assigned by the queue on admission.
	Seq int
	// DedupeKey identifies the media: the transport locator for uploads,
	// the URL for link jobs. At most one live job per key.
	DedupeKey string

	Payload Payload

	UserID     int64
	ChatID     int64
	// StatusMsgID is the chat message progress edits go to. Zero until the
	// submission path sends the initial status message.
	StatusMsgID int

	EnqueuedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewUploadJob creates a job for media uploaded to the chat.
func NewUploadJob(ctx context.Context, userID, chatID int64, payload UploadPayload) *Job {
	return newJob(ctx, userID, chatID, payload.Locator, payload)
}

// NewLinkJob creates a job for a direct-download URL.
func NewLinkJob(ctx context.Context, userID, chatID int64, payload LinkPayload) *Job {
	return newJob(ctx, userID, chatID, payload.URL, payload)
}

func newJob(ctx context.Context, userID, chatID int64, dedupeKey string, payload Payload) *Job {
	jobCtx, cancel := context.WithCancel(ctx)
	return &Job{
		ID:         ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		DedupeKey:  dedupeKey,
		Payload:    payload,
		UserID:     userID,
		ChatID:     chatID,
		EnqueuedAt: time.Now(),
		ctx:        jobCtx,
		cancel:     cancel,
	}
}

// Context carries the job's cancellation signal. The transcode driver and
// the download path observe it.
func (j *Job) Context() context.Context {
	return j.ctx
}

// Cancel flips the job's cancel token. Safe to call more than once.
func (j *Job) Cancel() {
	j.cancel()
}

// Cancelled reports whether the job's cancel token was flipped.
func (j *Job) Cancelled() bool {
	return j.ctx.Err() != nil
}

// Kind returns "upload" or "link" for logging and run records.
func (j *Job) Kind() string {
	switch j.Payload.(type) {
	case UploadPayload:
		return "upload"
	case LinkPayload:
		return "link"
	}
	return "unknown"
}
