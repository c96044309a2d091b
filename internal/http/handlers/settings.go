package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/compressr/internal/settings"
)

// SettingsHandler exposes the effective global settings document. Chat
// credentials live in the service configuration and are never part of
// the settings document, so nothing here needs masking.
type SettingsHandler struct {
	store *settings.Store
}

// NewSettingsHandler creates a settings handler.
func NewSettingsHandler(store *settings.Store) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// SettingsInput is the input for the settings endpoint.
type SettingsInput struct{}

// SettingsOutput is the output for the settings endpoint.
type SettingsOutput struct {
	Body settings.Document
}

// Register registers the settings route with the API.
func (h *SettingsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSettings",
		Method:      "GET",
		Path:        "/api/v1/settings",
		Summary:     "Effective global settings",
		Description: "Returns the global settings document with defaults applied",
		Tags:        []string{"Settings"},
	}, h.GetSettings)
}

// GetSettings returns the effective global settings.
func (h *SettingsHandler) GetSettings(ctx context.Context, input *SettingsInput) (*SettingsOutput, error) {
	return &SettingsOutput{Body: h.store.GlobalDocument()}, nil
}
