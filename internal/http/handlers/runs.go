package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/compressr/internal/models"
	"github.com/jmylchreest/compressr/internal/repository"
)

// RunsHandler exposes recent run history.
type RunsHandler struct {
	runs repository.RunRepository
}

// NewRunsHandler creates a runs handler.
func NewRunsHandler(runs repository.RunRepository) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// ListRunsInput is the input for the runs endpoint.
type ListRunsInput struct {
	Limit int `query:"limit" default:"20" minimum:"1" maximum:"500" doc:"Maximum number of runs to return"`
}

// ListRunsOutput is the output for the runs endpoint.
type ListRunsOutput struct {
	Body RunListResponse
}

// RunListResponse is the run history body.
type RunListResponse struct {
	Runs   []RunSummary `json:"runs" doc:"Most recent runs first"`
	Totals RunTotals    `json:"totals" doc:"Aggregates over all completed runs"`
}

// RunSummary is one run in the history listing.
type RunSummary struct {
	ID              string    `json:"id" doc:"Run ULID"`
	JobSeq          int       `json:"job_seq" doc:"Queue sequence the job ran under"`
	UserID          int64     `json:"user_id" doc:"Submitting user"`
	Kind            string    `json:"kind" doc:"upload or link"`
	Filename        string    `json:"filename,omitempty" doc:"Rendered output filename"`
	Preset          string    `json:"preset,omitempty" doc:"Encode profile used"`
	Status          string    `json:"status" doc:"completed, failed or cancelled"`
	Error           string    `json:"error,omitempty" doc:"Failure summary for failed runs"`
	OriginalBytes   int64     `json:"original_bytes,omitempty" doc:"Source size"`
	CompressedBytes int64     `json:"compressed_bytes,omitempty" doc:"Output size"`
	DownloadMS      int64     `json:"download_ms,omitempty" doc:"Download duration"`
	CompressMS      int64     `json:"compress_ms,omitempty" doc:"Transcode duration"`
	UploadMS        int64     `json:"upload_ms,omitempty" doc:"Upload duration"`
	EngineLabel     string    `json:"engine_label,omitempty" doc:"Encode engine the run reported"`
	StartedAt       time.Time `json:"started_at" doc:"Pipeline start"`
	FinishedAt      time.Time `json:"finished_at" doc:"Pipeline end"`
}

// RunTotals aggregates byte counters over completed runs.
type RunTotals struct {
	Runs            int64 `json:"runs" doc:"Completed run count"`
	OriginalBytes   int64 `json:"original_bytes" doc:"Total bytes downloaded"`
	CompressedBytes int64 `json:"compressed_bytes" doc:"Total bytes produced"`
	SavedBytes      int64 `json:"saved_bytes" doc:"Total bytes saved"`
}

// Register registers the runs route with the API.
func (h *RunsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listRuns",
		Method:      "GET",
		Path:        "/api/v1/runs",
		Summary:     "Recent runs",
		Description: "Returns the newest run records with lifetime byte totals",
		Tags:        []string{"Runs"},
	}, h.ListRuns)
}

// ListRuns returns the newest run records.
func (h *RunsHandler) ListRuns(ctx context.Context, input *ListRunsInput) (*ListRunsOutput, error) {
	records, err := h.runs.Recent(ctx, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("querying run history", err)
	}

	totals, err := h.runs.Totals(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("aggregating run totals", err)
	}

	resp := RunListResponse{
		Runs: make([]RunSummary, 0, len(records)),
		Totals: RunTotals{
			Runs:            totals.Runs,
			OriginalBytes:   totals.OriginalBytes,
			CompressedBytes: totals.CompressedBytes,
			SavedBytes:      totals.SavedBytes(),
		},
	}
	for _, record := range records {
		resp.Runs = append(resp.Runs, runSummaryOf(record))
	}

	return &ListRunsOutput{Body: resp}, nil
}

func runSummaryOf(record *models.RunRecord) RunSummary {
	return RunSummary{
		ID:              record.ID.String(),
		JobSeq:          record.JobSeq,
		UserID:          record.UserID,
		Kind:            record.Kind,
		Filename:        record.Filename,
		Preset:          record.Preset,
		Status:          string(record.Status),
		Error:           record.Error,
		OriginalBytes:   record.OriginalBytes,
		CompressedBytes: record.CompressedBytes,
		DownloadMS:      record.DownloadMS,
		CompressMS:      record.CompressMS,
		UploadMS:        record.UploadMS,
		EngineLabel:     record.EngineLabel,
		StartedAt:       record.StartedAt,
		FinishedAt:      record.FinishedAt,
	}
}
