package jobs

import (
	"strconv"
	"sync"
)

// CallbackEntry is what a short callback key points at: the files a running
// transcode owns and the job they belong to.
type CallbackEntry struct {
	OutputPath string
	InputPath  string
	JobSeq     int
}

// CallbackRegistry maps short opaque keys to callback entries. Inline
// buttons carry these keys because transports cap callback payload size;
// the echoed key resolves back to full paths here.
type CallbackRegistry struct {
	mu      sync.Mutex
	nextKey int
	entries map[string]CallbackEntry
}

// NewCallbackRegistry returns an empty registry.
func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{
		nextKey: 1,
		entries: make(map[string]CallbackEntry),
	}
}

// Register stores an entry and returns its key.
func (r *CallbackRegistry) Register(outputPath, inputPath string, jobSeq int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strconv.Itoa(r.nextKey)
	r.nextKey++
	r.entries[key] = CallbackEntry{
		OutputPath: outputPath,
		InputPath:  inputPath,
		JobSeq:     jobSeq,
	}
	return key
}

// Lookup resolves a key echoed back by the transport.
func (r *CallbackRegistry) Lookup(key string) (CallbackEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[key]
	return entry, ok
}

// ReleaseJob drops every entry registered for a job. Called when the job
// terminates so stale buttons stop resolving.
func (r *CallbackRegistry) ReleaseJob(jobSeq int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.entries {
		if entry.JobSeq == jobSeq {
			delete(r.entries, key)
		}
	}
}

// Len returns the number of live entries.
func (r *CallbackRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
