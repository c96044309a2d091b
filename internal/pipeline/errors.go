// Package pipeline drives one admitted job through download, transcode,
// artifact generation, upload and reporting, with cleanup guaranteed on
// every exit path.
package pipeline

import (
	"errors"
	"fmt"
)

// Stage names one phase of a pipeline run.
type Stage string

const (
	StagePrepare   Stage = "prepare"
	StageDownload  Stage = "download"
	StageTranscode Stage = "transcode"
	StageArtifacts Stage = "artifacts"
	StageUpload    Stage = "upload"
	StageReport    Stage = "report"
	StageCleanup   Stage = "cleanup"
)

var (
	// ErrCancelled marks a run that ended because its cancel token flipped.
	ErrCancelled = errors.New("job cancelled")

	// ErrTooLarge marks media over the configured size limit.
	ErrTooLarge = errors.New("file too large")
)

// Error is a stage-tagged pipeline failure. Summary is the short text shown
// in the chat status message; Err carries the full cause.
type Error struct {
	Stage   Stage
	Summary string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Summary)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, summary string, err error) *Error {
	return &Error{Stage: stage, Summary: summary, Err: err}
}
