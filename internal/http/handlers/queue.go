package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/compressr/internal/jobs"
)

// QueueHandler exposes a point-in-time view of the transcode queue.
type QueueHandler struct {
	queue *jobs.Queue
}

// NewQueueHandler creates a queue handler.
func NewQueueHandler(queue *jobs.Queue) *QueueHandler {
	return &QueueHandler{queue: queue}
}

// QueueInput is the input for the queue endpoint.
type QueueInput struct{}

// QueueOutput is the output for the queue endpoint.
type QueueOutput struct {
	Body QueueResponse
}

// QueueResponse is the queue snapshot body.
type QueueResponse struct {
	Working bool        `json:"working" doc:"Whether a job is currently executing"`
	Depth   int         `json:"depth" doc:"Number of jobs waiting behind the current one"`
	Current *QueuedJob  `json:"current,omitempty" doc:"The job being worked on, if any"`
	Queued  []QueuedJob `json:"queued" doc:"Waiting jobs in admission order"`
}

// QueuedJob is one job in the queue snapshot.
type QueuedJob struct {
	Seq        int       `json:"seq" doc:"Queue sequence number"`
	ID         string    `json:"id" doc:"Job ULID"`
	Kind       string    `json:"kind" doc:"upload or link"`
	Name       string    `json:"name,omitempty" doc:"Source filename if known"`
	UserID     int64     `json:"user_id" doc:"Submitting user"`
	SizeBytes  int64     `json:"size_bytes,omitempty" doc:"Declared source size if known"`
	Cancelled  bool      `json:"cancelled,omitempty" doc:"Cancel requested but not yet observed"`
	EnqueuedAt time.Time `json:"enqueued_at" doc:"Admission time"`
}

// Register registers the queue route with the API.
func (h *QueueHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getQueue",
		Method:      "GET",
		Path:        "/api/v1/queue",
		Summary:     "Queue snapshot",
		Description: "Returns the in-flight job and the waiting jobs in admission order",
		Tags:        []string{"Queue"},
	}, h.GetQueue)
}

// GetQueue returns the current queue state.
func (h *QueueHandler) GetQueue(ctx context.Context, input *QueueInput) (*QueueOutput, error) {
	snap := h.queue.Snapshot()

	resp := QueueResponse{
		Working: snap.Working,
		Depth:   len(snap.Queued),
		Queued:  make([]QueuedJob, 0, len(snap.Queued)),
	}
	if snap.Current != nil {
		job := queuedJobOf(*snap.Current)
		resp.Current = &job
	}
	for _, view := range snap.Queued {
		resp.Queued = append(resp.Queued, queuedJobOf(view))
	}

	return &QueueOutput{Body: resp}, nil
}

func queuedJobOf(view jobs.JobView) QueuedJob {
	return QueuedJob{
		Seq:        view.Seq,
		ID:         view.ID,
		Kind:       view.Kind,
		Name:       view.Name,
		UserID:     view.UserID,
		SizeBytes:  view.Size,
		Cancelled:  view.Cancelled,
		EnqueuedAt: view.EnqueuedAt,
	}
}
