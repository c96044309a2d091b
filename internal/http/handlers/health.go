// Package handlers provides the diagnostics API handlers for compressr.
package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/compressr/internal/database"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        *database.DB
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithDB sets the database used by the readiness probe.
func (h *HealthHandler) WithDB(db *database.DB) *HealthHandler {
	h.db = db
	return h
}

// HealthzInput is the input for the liveness probe.
type HealthzInput struct{}

// HealthzOutput is the output for the liveness probe.
type HealthzOutput struct {
	Body HealthzResponse
}

// HealthzResponse is the liveness probe body.
type HealthzResponse struct {
	Status    string `json:"status" doc:"Always ok while the process is serving"`
	Version   string `json:"version" doc:"Build version"`
	Uptime    string `json:"uptime" doc:"Time since the service started"`
	Timestamp string `json:"timestamp" doc:"Current server time, RFC 3339"`
}

// ReadyzInput is the input for the readiness probe.
type ReadyzInput struct{}

// ReadyzOutput is the output for the readiness probe.
type ReadyzOutput struct {
	Body ReadyzResponse
}

// ReadyzResponse is the readiness probe body.
type ReadyzResponse struct {
	Status     string            `json:"status" doc:"ready or not_ready"`
	Components map[string]string `json:"components" doc:"Per-component readiness"`
}

// Register registers the probe routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealthz",
		Method:      "GET",
		Path:        "/healthz",
		Summary:     "Liveness probe",
		Description: "Returns ok while the process is up",
		Tags:        []string{"Health"},
	}, h.GetHealthz)

	huma.Register(api, huma.Operation{
		OperationID: "getReadyz",
		Method:      "GET",
		Path:        "/readyz",
		Summary:     "Readiness probe",
		Description: "Returns ready once dependencies answer",
		Tags:        []string{"Health"},
	}, h.GetReadyz)
}

// GetHealthz answers the liveness probe.
func (h *HealthHandler) GetHealthz(ctx context.Context, input *HealthzInput) (*HealthzOutput, error) {
	now := time.Now()
	return &HealthzOutput{
		Body: HealthzResponse{
			Status:    "ok",
			Version:   h.version,
			Uptime:    now.Sub(h.startTime).Round(time.Second).String(),
			Timestamp: now.UTC().Format(time.RFC3339),
		},
	}, nil
}

// GetReadyz answers the readiness probe. The service is ready when the
// run-history database responds to a ping.
func (h *HealthHandler) GetReadyz(ctx context.Context, input *ReadyzInput) (*ReadyzOutput, error) {
	components := map[string]string{}
	status := "ready"

	switch {
	case h.db == nil:
		components["database"] = "not_configured"
		status = "not_ready"
	default:
		if err := h.db.Ping(ctx); err != nil {
			components["database"] = "error"
			status = "not_ready"
		} else {
			components["database"] = "ok"
		}
	}

	return &ReadyzOutput{
		Body: ReadyzResponse{
			Status:     status,
			Components: components,
		},
	}, nil
}
