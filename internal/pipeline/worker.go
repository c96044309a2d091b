package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/compressr/internal/jobs"
)

const drainInterval = 3 * time.Second

// Worker owns job execution. Exactly one job runs at a time: either launched
// inline by the submitter after winning the admission lease, or picked off
// the queue by the drain tick.
type Worker struct {
	queue    *jobs.Queue
	pipeline *Pipeline
	logger   *slog.Logger
	interval time.Duration
	wg       sync.WaitGroup
}

func NewWorker(queue *jobs.Queue, pipeline *Pipeline, logger *slog.Logger) *Worker {
	return &Worker{
		queue:    queue,
		pipeline: pipeline,
		logger:   logger.With(slog.String("component", "worker")),
		interval: drainInterval,
	}
}

// Run drains the queue until ctx ends, then waits for the in-flight job.
// Queued jobs inherit ctx through their own cancel tokens, so shutdown
// interrupts a running transcode rather than abandoning it.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("worker started", "drain_interval", w.interval.String())
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			w.wg.Wait()
			return
		case <-ticker.C:
			if job := w.queue.TakeNext(); job != nil {
				w.Launch(job)
			}
		}
	}
}

// Launch runs a job that already holds the execution lease. The submitter
// calls this after Admit returns position zero; the drain tick calls it
// after TakeNext.
func (w *Worker) Launch(job *jobs.Job) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.execute(job)
	}()
}

// execute runs one job and always releases the lease, a panicking pipeline
// included. A stuck lease would wedge the queue for good.
func (w *Worker) execute(job *jobs.Job) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("pipeline panicked", "job_id", job.ID, "seq", job.Seq, "panic", r)
		}
		job.Cancel()
		w.queue.Finish()
	}()

	if err := w.pipeline.Run(job); err != nil {
		// Run already reported and persisted the failure.
		w.logger.Debug("job ended with error", "job_id", job.ID, "error", err)
	}
}
