package models

// RunStatus represents the terminal state of a transcode run.
type RunStatus string

const (
	// RunStatusCompleted indicates the job finished and uploaded.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed indicates the job failed at some stage.
	RunStatusFailed RunStatus = "failed"
	// RunStatusCancelled indicates the job was cancelled by the owner.
	RunStatusCancelled RunStatus = "cancelled"
)

// Valid reports whether the status is a known terminal state.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// RunStats are the measurements collected across one pipeline pass before
// they are folded into a RunRecord.
type RunStats struct {
	OriginalBytes   int64  `json:"original_bytes"`
	CompressedBytes int64  `json:"compressed_bytes"`
	DownloadMS      int64  `json:"download_ms"`
	CompressMS      int64  `json:"compress_ms"`
	UploadMS        int64  `json:"upload_ms"`
	EngineLabel     string `json:"engine_label"`
}

// ReductionPercent returns how much smaller the output is than the input,
// as a 0-100 percentage. Unknown sizes yield 0.
func (s RunStats) ReductionPercent() float64 {
	if s.OriginalBytes <= 0 || s.CompressedBytes <= 0 {
		return 0
	}
	return 100 - (float64(s.CompressedBytes)/float64(s.OriginalBytes))*100
}

// RunRecord is the persisted outcome of one transcode job.
type RunRecord struct {
	BaseModel

	// JobSeq is the queue sequence number the job ran under.
	JobSeq int `gorm:"index" json:"job_seq"`

	// UserID is the submitting user.
	UserID int64 `gorm:"index" json:"user_id"`

	// DedupeKey identifies the source payload (file locator or URL).
	DedupeKey string `gorm:"not null;size:512;index" json:"dedupe_key"`

	// Kind is the submission kind, "upload" or "link".
	Kind string `gorm:"size:16" json:"kind"`

	// Filename is the rendered output filename.
	Filename string `gorm:"size:255" json:"filename"`

	// Preset names the encode profile the run used, "custom" included.
	Preset string `gorm:"size:64" json:"preset"`

	// Status is the terminal state.
	Status RunStatus `gorm:"not null;size:20;index" json:"status"`

	// Error holds a short failure summary for failed runs.
	Error string `gorm:"size:4096" json:"error,omitempty"`

	OriginalBytes   int64 `json:"original_bytes"`
	CompressedBytes int64 `json:"compressed_bytes"`
	DownloadMS      int64 `json:"download_ms"`
	CompressMS      int64 `json:"compress_ms"`
	UploadMS        int64 `json:"upload_ms"`

	// EngineLabel is the engine tag the run reported, e.g. "CPU" or
	// "NVIDIA GPU (GeForce RTX 3060)".
	EngineLabel string `gorm:"size:128" json:"engine_label"`

	// StartedAt is when the pipeline picked the job up.
	StartedAt Time `json:"started_at"`

	// FinishedAt is when the pipeline reached a terminal state.
	FinishedAt Time `json:"finished_at"`
}

// TableName returns the table name for run records.
func (RunRecord) TableName() string {
	return "run_records"
}

// Stats extracts the measurement fields as a RunStats value.
func (r *RunRecord) Stats() RunStats {
	return RunStats{
		OriginalBytes:   r.OriginalBytes,
		CompressedBytes: r.CompressedBytes,
		DownloadMS:      r.DownloadMS,
		CompressMS:      r.CompressMS,
		UploadMS:        r.UploadMS,
		EngineLabel:     r.EngineLabel,
	}
}

// ApplyStats copies measurement fields from a RunStats value.
func (r *RunRecord) ApplyStats(s RunStats) {
	r.OriginalBytes = s.OriginalBytes
	r.CompressedBytes = s.CompressedBytes
	r.DownloadMS = s.DownloadMS
	r.CompressMS = s.CompressMS
	r.UploadMS = s.UploadMS
	r.EngineLabel = s.EngineLabel
}

// Validate checks invariants before persistence.
func (r *RunRecord) Validate() error {
	if r.DedupeKey == "" {
		return ErrDedupeKeyRequired
	}
	if !r.Status.Valid() {
		return ErrInvalidRunStatus
	}
	return nil
}
