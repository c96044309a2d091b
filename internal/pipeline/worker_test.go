package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/compressr/internal/jobs"
	"github.com/jmylchreest/compressr/internal/models"
)

func TestWorker_DrainsQueueInOrder(t *testing.T) {
	h := newHarness(t)
	h.transport.MediaFiles["m1"] = []byte("first-media")
	h.transport.MediaFiles["m2"] = []byte("second-media")

	w := NewWorker(h.queue, h.pipeline, newTestLogger())
	w.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j1 := jobs.NewUploadJob(ctx, 7, 7, jobs.UploadPayload{Locator: "m1", SuggestedName: "a.mkv", Size: 11})
	pos, err := h.queue.Admit(j1, 10)
	require.NoError(t, err)
	require.Equal(t, 0, pos)

	j2 := jobs.NewUploadJob(ctx, 7, 7, jobs.UploadPayload{Locator: "m2", SuggestedName: "b.mkv", Size: 12})
	pos, err = h.queue.Admit(j2, 10)
	require.NoError(t, err)
	require.Equal(t, 1, pos)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	// The submitter launches the leased job; the drain tick picks up the
	// queued one once the lease frees.
	w.Launch(j1)

	require.Eventually(t, func() bool {
		recs, err := h.runs.Recent(context.Background(), 10)
		return err == nil && len(recs) == 2
	}, 5*time.Second, 20*time.Millisecond)

	recs := h.recentRuns(t)
	require.Len(t, recs, 2)
	assert.Equal(t, "b [720p x264].mp4", recs[0].Filename)
	assert.Equal(t, "a [720p x264].mp4", recs[1].Filename)
	assert.Equal(t, models.RunStatusCompleted, recs[0].Status)
	assert.Equal(t, models.RunStatusCompleted, recs[1].Status)

	assert.False(t, h.queue.Working())
	assert.Zero(t, h.queue.Size())

	cancel()
	<-done
}

func TestWorker_RecoversFromPanicAndFreesLease(t *testing.T) {
	h := newHarness(t)
	w := NewWorker(h.queue, h.pipeline, newTestLogger())

	job := jobs.NewUploadJob(context.Background(), 7, 7, jobs.UploadPayload{
		Locator:       "m-panic",
		SuggestedName: "x.mkv",
		Size:          1,
	})
	pos, err := h.queue.Admit(job, 10)
	require.NoError(t, err)
	require.Equal(t, 0, pos)

	// A nil payload makes the pipeline panic on first touch.
	job.Payload = nil
	w.Launch(job)

	require.Eventually(t, func() bool {
		return !h.queue.Working()
	}, 2*time.Second, 10*time.Millisecond)
}
