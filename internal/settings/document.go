// Package settings implements the layered runtime configuration the chat menu
// edits: a global document persisted to bot_settings.json plus sparse per-user
// overrides in user_settings.json. Reads resolve the user layer, then the
// global layer, then compiled defaults.
package settings

import (
	"fmt"
)

// Category names as stored on disk and referenced by menu callbacks.
const (
	CategoryCompression = "custom_compression"
	CategoryOutput      = "output_settings"
	CategoryPreview     = "preview_settings"
	CategoryAdvanced    = "advanced_settings"
	CategoryThumbnail   = "thumbnail_settings"
)

// categoryKeys lists the keys of each category in menu display order.
var categoryKeys = map[string][]string{
	CategoryCompression: {
		"v_codec", "v_preset", "v_profile", "v_level", "v_qp",
		"v_scale", "v_fps", "a_bitrate", "enable_hardware_acceleration",
	},
	CategoryOutput: {
		"filename_template", "auto_delete_original", "default_upload_mode",
		"max_file_size", "max_queue_size",
	},
	CategoryPreview: {
		"enable_screenshots", "screenshot_count", "enable_video_preview",
		"preview_duration", "preview_quality",
	},
	CategoryAdvanced: {
		"watermark_enabled", "watermark_text", "watermark_position",
		"upload_connections", "progress_update_interval",
	},
	CategoryThumbnail: {
		"custom_thumbnail_url", "auto_generate_thumbnail", "thumbnail_timestamp_percent",
	},
}

// Document is the full settings tree for the global layer. The JSON shape
// matches the on-disk bot_settings.json.
type Document struct {
	CompressionPresets map[string]Preset   `json:"compression_presets"`
	ActivePreset       string              `json:"active_preset"`
	CustomCompression  CompressionSettings `json:"custom_compression"`
	Output             OutputSettings      `json:"output_settings"`
	Preview            PreviewSettings     `json:"preview_settings"`
	Advanced           AdvancedSettings    `json:"advanced_settings"`
	Thumbnail          ThumbnailSettings   `json:"thumbnail_settings"`
}

// CompressionSettings is the user-tunable encode profile base.
type CompressionSettings struct {
	Codec         string `json:"v_codec"`
	SpeedPreset   string `json:"v_preset"`
	Profile       string `json:"v_profile"`
	Level         string `json:"v_level"`
	QualityQP     int    `json:"v_qp"`
	ScaleHeight   int    `json:"v_scale"`
	FPS           int    `json:"v_fps"`
	AudioBitrate  string `json:"a_bitrate"`
	HardwareAccel bool   `json:"enable_hardware_acceleration"`
}

// OutputSettings controls naming, upload mode and admission limits.
type OutputSettings struct {
	FilenameTemplate   string `json:"filename_template"`
	AutoDeleteOriginal bool   `json:"auto_delete_original"`
	DefaultUploadMode  string `json:"default_upload_mode"`
	// MaxFileSize is whole MiB.
	MaxFileSize  int `json:"max_file_size"`
	MaxQueueSize int `json:"max_queue_size"`
}

// PreviewSettings controls screenshot and preview-clip generation.
type PreviewSettings struct {
	EnableScreenshots  bool `json:"enable_screenshots"`
	ScreenshotCount    int  `json:"screenshot_count"`
	EnableVideoPreview bool `json:"enable_video_preview"`
	// PreviewDuration is seconds of preview to assemble.
	PreviewDuration int `json:"preview_duration"`
	// PreviewQuality is the CRF used for preview clips.
	PreviewQuality int `json:"preview_quality"`
}

// AdvancedSettings controls the watermark and reporting cadence.
type AdvancedSettings struct {
	WatermarkEnabled  bool   `json:"watermark_enabled"`
	WatermarkText     string `json:"watermark_text"`
	WatermarkPosition string `json:"watermark_position"`
	UploadConnections int    `json:"upload_connections"`
	// ProgressUpdateInterval is seconds between progress edits.
	ProgressUpdateInterval int `json:"progress_update_interval"`
}

// ThumbnailSettings controls the upload thumbnail source.
type ThumbnailSettings struct {
	CustomThumbnailURL    string `json:"custom_thumbnail_url"`
	AutoGenerateThumbnail bool   `json:"auto_generate_thumbnail"`
	TimestampPercent      int    `json:"thumbnail_timestamp_percent"`
}

// UserOverlay holds one user's sparse overrides. Only keys the user changed
// are present; everything else falls through to the global layer.
type UserOverlay struct {
	ActivePreset string                    `json:"active_preset,omitempty"`
	Overrides    map[string]map[string]any `json:"overrides,omitempty"`
}

func (o *UserOverlay) empty() bool {
	return o.ActivePreset == "" && len(o.Overrides) == 0
}

func (c *CompressionSettings) get(key string) (any, bool) {
	switch key {
	case "v_codec":
		return c.Codec, true
	case "v_preset":
		return c.SpeedPreset, true
	case "v_profile":
		return c.Profile, true
	case "v_level":
		return c.Level, true
	case "v_qp":
		return c.QualityQP, true
	case "v_scale":
		return c.ScaleHeight, true
	case "v_fps":
		return c.FPS, true
	case "a_bitrate":
		return c.AudioBitrate, true
	case "enable_hardware_acceleration":
		return c.HardwareAccel, true
	}
	return nil, false
}

func (c *CompressionSettings) set(key string, value any) error {
	switch key {
	case "v_codec":
		return assignString(&c.Codec, key, value)
	case "v_preset":
		return assignString(&c.SpeedPreset, key, value)
	case "v_profile":
		return assignString(&c.Profile, key, value)
	case "v_level":
		return assignString(&c.Level, key, value)
	case "v_qp":
		return assignInt(&c.QualityQP, key, value)
	case "v_scale":
		return assignInt(&c.ScaleHeight, key, value)
	case "v_fps":
		return assignInt(&c.FPS, key, value)
	case "a_bitrate":
		return assignString(&c.AudioBitrate, key, value)
	case "enable_hardware_acceleration":
		return assignBool(&c.HardwareAccel, key, value)
	}
	return fmt.Errorf("unknown key %s.%s", CategoryCompression, key)
}

func (o *OutputSettings) get(key string) (any, bool) {
	switch key {
	case "filename_template":
		return o.FilenameTemplate, true
	case "auto_delete_original":
		return o.AutoDeleteOriginal, true
	case "default_upload_mode":
		return o.DefaultUploadMode, true
	case "max_file_size":
		return o.MaxFileSize, true
	case "max_queue_size":
		return o.MaxQueueSize, true
	}
	return nil, false
}

func (o *OutputSettings) set(key string, value any) error {
	switch key {
	case "filename_template":
		return assignString(&o.FilenameTemplate, key, value)
	case "auto_delete_original":
		return assignBool(&o.AutoDeleteOriginal, key, value)
	case "default_upload_mode":
		return assignString(&o.DefaultUploadMode, key, value)
	case "max_file_size":
		return assignInt(&o.MaxFileSize, key, value)
	case "max_queue_size":
		return assignInt(&o.MaxQueueSize, key, value)
	}
	return fmt.Errorf("unknown key %s.%s", CategoryOutput, key)
}

func (p *PreviewSettings) get(key string) (any, bool) {
	switch key {
	case "enable_screenshots":
		return p.EnableScreenshots, true
	case "screenshot_count":
		return p.ScreenshotCount, true
	case "enable_video_preview":
		return p.EnableVideoPreview, true
	case "preview_duration":
		return p.PreviewDuration, true
	case "preview_quality":
		return p.PreviewQuality, true
	}
	return nil, false
}

func (p *PreviewSettings) set(key string, value any) error {
	switch key {
	case "enable_screenshots":
		return assignBool(&p.EnableScreenshots, key, value)
	case "screenshot_count":
		return assignInt(&p.ScreenshotCount, key, value)
	case "enable_video_preview":
		return assignBool(&p.EnableVideoPreview, key, value)
	case "preview_duration":
		return assignInt(&p.PreviewDuration, key, value)
	case "preview_quality":
		return assignInt(&p.PreviewQuality, key, value)
	}
	return fmt.Errorf("unknown key %s.%s", CategoryPreview, key)
}

func (a *AdvancedSettings) get(key string) (any, bool) {
	switch key {
	case "watermark_enabled":
		return a.WatermarkEnabled, true
	case "watermark_text":
		return a.WatermarkText, true
	case "watermark_position":
		return a.WatermarkPosition, true
	case "upload_connections":
		return a.UploadConnections, true
	case "progress_update_interval":
		return a.ProgressUpdateInterval, true
	}
	return nil, false
}

func (a *AdvancedSettings) set(key string, value any) error {
	switch key {
	case "watermark_enabled":
		return assignBool(&a.WatermarkEnabled, key, value)
	case "watermark_text":
		return assignString(&a.WatermarkText, key, value)
	case "watermark_position":
		return assignString(&a.WatermarkPosition, key, value)
	case "upload_connections":
		return assignInt(&a.UploadConnections, key, value)
	case "progress_update_interval":
		return assignInt(&a.ProgressUpdateInterval, key, value)
	}
	return fmt.Errorf("unknown key %s.%s", CategoryAdvanced, key)
}

func (t *ThumbnailSettings) get(key string) (any, bool) {
	switch key {
	case "custom_thumbnail_url":
		return t.CustomThumbnailURL, true
	case "auto_generate_thumbnail":
		return t.AutoGenerateThumbnail, true
	case "thumbnail_timestamp_percent":
		return t.TimestampPercent, true
	}
	return nil, false
}

func (t *ThumbnailSettings) set(key string, value any) error {
	switch key {
	case "custom_thumbnail_url":
		return assignString(&t.CustomThumbnailURL, key, value)
	case "auto_generate_thumbnail":
		return assignBool(&t.AutoGenerateThumbnail, key, value)
	case "thumbnail_timestamp_percent":
		return assignInt(&t.TimestampPercent, key, value)
	}
	return fmt.Errorf("unknown key %s.%s", CategoryThumbnail, key)
}

// getKey reads one key from the document.
func (d *Document) getKey(category, key string) (any, bool) {
	switch category {
	case CategoryCompression:
		return d.CustomCompression.get(key)
	case CategoryOutput:
		return d.Output.get(key)
	case CategoryPreview:
		return d.Preview.get(key)
	case CategoryAdvanced:
		return d.Advanced.get(key)
	case CategoryThumbnail:
		return d.Thumbnail.get(key)
	}
	return nil, false
}

// setKey writes one already-validated value into the document.
func (d *Document) setKey(category, key string, value any) error {
	switch category {
	case CategoryCompression:
		return d.CustomCompression.set(key, value)
	case CategoryOutput:
		return d.Output.set(key, value)
	case CategoryPreview:
		return d.Preview.set(key, value)
	case CategoryAdvanced:
		return d.Advanced.set(key, value)
	case CategoryThumbnail:
		return d.Thumbnail.set(key, value)
	}
	return fmt.Errorf("unknown category %s", category)
}

// Validate checks every key of the document against its allowed range.
func (d *Document) Validate() error {
	for category, keys := range categoryKeys {
		for _, key := range keys {
			value, ok := d.getKey(category, key)
			if !ok {
				continue
			}
			if _, err := validateValue(category, key, value); err != nil {
				return err
			}
		}
	}
	if d.ActivePreset != PresetCustom {
		if _, ok := d.CompressionPresets[d.ActivePreset]; !ok {
			return fmt.Errorf("active_preset %q is not a known preset", d.ActivePreset)
		}
	}
	return nil
}
