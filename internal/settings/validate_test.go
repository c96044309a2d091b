package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValue(t *testing.T) {
	tests := []struct {
		name     string
		category string
		key      string
		value    any
		want     any
		wantErr  bool
	}{
		{"codec ok", CategoryCompression, "v_codec", "libx265", "libx265", false},
		{"codec vaapi ok", CategoryCompression, "v_codec", "hevc_vaapi", "hevc_vaapi", false},
		{"codec unknown", CategoryCompression, "v_codec", "av1", nil, true},
		{"speed preset ok", CategoryCompression, "v_preset", "veryslow", "veryslow", false},
		{"nvenc preset ok", CategoryCompression, "v_preset", "p7", "p7", false},
		{"speed preset unknown", CategoryCompression, "v_preset", "warp", nil, true},
		{"profile ok", CategoryCompression, "v_profile", "main10", "main10", false},
		{"level ok", CategoryCompression, "v_level", "5.1", "5.1", false},
		{"level unknown", CategoryCompression, "v_level", "6.0", nil, true},
		{"qp low edge", CategoryCompression, "v_qp", 0, 0, false},
		{"qp high edge", CategoryCompression, "v_qp", 51, 51, false},
		{"qp above", CategoryCompression, "v_qp", 52, nil, true},
		{"qp negative", CategoryCompression, "v_qp", -1, nil, true},
		{"qp float64", CategoryCompression, "v_qp", float64(30), 30, false},
		{"scale ok", CategoryCompression, "v_scale", 720, 720, false},
		{"scale disabled", CategoryCompression, "v_scale", 0, 0, false},
		{"scale legacy alias", CategoryCompression, "v_scale", -1, 0, false},
		{"scale unsupported", CategoryCompression, "v_scale", 900, nil, true},
		{"fps zero keeps source", CategoryCompression, "v_fps", 0, 0, false},
		{"fps above", CategoryCompression, "v_fps", 121, nil, true},
		{"audio bitrate ok", CategoryCompression, "a_bitrate", "320k", "320k", false},
		{"audio bitrate two digits", CategoryCompression, "a_bitrate", "96k", "96k", false},
		{"audio bitrate no suffix", CategoryCompression, "a_bitrate", "192", nil, true},
		{"audio bitrate word", CategoryCompression, "a_bitrate", "high", nil, true},
		{"hardware toggle", CategoryCompression, "enable_hardware_acceleration", true, true, false},
		{"hardware toggle string", CategoryCompression, "enable_hardware_acceleration", "yes", nil, true},
		{"template ok", CategoryOutput, "filename_template", "{original_name}", "{original_name}", false},
		{"template too long", CategoryOutput, "filename_template", string(make([]byte, 101)), nil, true},
		{"upload mode ok", CategoryOutput, "default_upload_mode", "File", "File", false},
		{"max file size edge", CategoryOutput, "max_file_size", 8000, 8000, false},
		{"max file size above", CategoryOutput, "max_file_size", 8001, nil, true},
		{"queue size edge", CategoryOutput, "max_queue_size", 50, 50, false},
		{"screenshot count ok", CategoryPreview, "screenshot_count", 20, 20, false},
		{"preview duration low", CategoryPreview, "preview_duration", 4, nil, true},
		{"preview quality low", CategoryPreview, "preview_quality", 17, nil, true},
		{"preview quality ok", CategoryPreview, "preview_quality", 18, 18, false},
		{"watermark text ok", CategoryAdvanced, "watermark_text", "sample", "sample", false},
		{"watermark text empty", CategoryAdvanced, "watermark_text", "", nil, true},
		{"watermark position center", CategoryAdvanced, "watermark_position", "center", "center", false},
		{"connections edge", CategoryAdvanced, "upload_connections", 10, 10, false},
		{"progress interval edge", CategoryAdvanced, "progress_update_interval", 30, 30, false},
		{"progress interval above", CategoryAdvanced, "progress_update_interval", 31, nil, true},
		{"thumbnail url https", CategoryThumbnail, "custom_thumbnail_url", "https://example.com/t.jpg", "https://example.com/t.jpg", false},
		{"thumbnail url empty clears", CategoryThumbnail, "custom_thumbnail_url", "", "", false},
		{"thumbnail url bad scheme", CategoryThumbnail, "custom_thumbnail_url", "file:///etc/passwd", nil, true},
		{"thumbnail percent edge", CategoryThumbnail, "thumbnail_timestamp_percent", 99, 99, false},
		{"thumbnail percent zero", CategoryThumbnail, "thumbnail_timestamp_percent", 0, nil, true},
		{"unknown key", CategoryCompression, "v_container", "mkv", nil, true},
		{"unknown category", "render_settings", "enabled", true, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validateValue(tt.category, tt.key, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateValue_ChoiceErrorListsOptions(t *testing.T) {
	_, err := validateValue(CategoryOutput, "default_upload_mode", "Stream")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Document")
	assert.Contains(t, err.Error(), "File")
}

func TestDocument_Validate(t *testing.T) {
	doc := DefaultDocument(testConfig(), false)
	assert.NoError(t, doc.Validate())

	doc.CustomCompression.QualityQP = 99
	assert.Error(t, doc.Validate())

	doc = DefaultDocument(testConfig(), false)
	doc.ActivePreset = "nope"
	assert.ErrorContains(t, doc.Validate(), "not a known preset")

	doc.ActivePreset = PresetCustom
	assert.NoError(t, doc.Validate())
}
