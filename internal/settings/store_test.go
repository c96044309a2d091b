package settings

import (
	"bytes"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/compressr/internal/config"
	"github.com/jmylchreest/compressr/internal/storage"
	"github.com/jmylchreest/compressr/pkg/bytesize"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{
			SettingsFile:     "bot_settings.json",
			UserSettingsFile: "user_settings.json",
		},
		Limits: config.LimitsConfig{
			MaxFileSize:      bytesize.FromMiB(2000),
			MaxQueueSize:     10,
			ProgressInterval: 5 * time.Second,
		},
		Encoding: config.EncodingConfig{
			Codec:                 "libx264",
			SpeedPreset:           "medium",
			Profile:               "high",
			Level:                 "4.0",
			QualityQP:             26,
			ScaleHeight:           1080,
			FPS:                   30,
			AudioBitrate:          "192k",
			FilenameTemplate:      "{original_name} [{resolution} {codec}]",
			UploadMode:            "Document",
			WatermarkText:         "Compressed by Bot",
			WatermarkPosition:     "bottom-right",
			ScreenshotCount:       5,
			PreviewDuration:       10,
			PreviewQuality:        28,
			AutoGenerateThumbnail: true,
			ThumbnailTimestampPct: 10,
		},
	}
}

func newTestStore(t *testing.T, nvidia bool) (*Store, *storage.Workspace) {
	t.Helper()

	ws, err := storage.NewWorkspace(t.TempDir())
	require.NoError(t, err)

	store, err := NewStore(ws, testConfig(), nvidia, newTestLogger())
	require.NoError(t, err)
	return store, ws
}

func TestNewStore_SeedsDefaults(t *testing.T) {
	store, ws := newTestStore(t, false)

	exists, err := ws.Exists("bot_settings.json")
	require.NoError(t, err)
	assert.True(t, exists, "settings file should be created on first start")

	assert.Equal(t, PresetBalanced, store.ActivePreset(0))
	assert.Equal(t, 2000, store.Output(0).MaxFileSize)
	assert.Equal(t, 10, store.Output(0).MaxQueueSize)
	assert.Equal(t, 5, store.Advanced(0).UploadConnections)
	assert.Equal(t, 5*time.Second, store.ProgressInterval(0))

	hw, ok := store.Get(CategoryCompression, "enable_hardware_acceleration", 0)
	require.True(t, ok)
	assert.Equal(t, false, hw)
}

func TestNewStore_NvidiaDefaults(t *testing.T) {
	store, _ := newTestStore(t, true)

	assert.Equal(t, "nvidia_balanced", store.ActivePreset(0))

	hw, ok := store.Get(CategoryCompression, "enable_hardware_acceleration", 0)
	require.True(t, ok)
	assert.Equal(t, true, hw)
}

func TestStore_PersistsAcrossRestarts(t *testing.T) {
	store, ws := newTestStore(t, false)

	require.NoError(t, store.Set(CategoryCompression, "v_qp", 30, 0))
	require.NoError(t, store.SetActivePreset("fast", 0))
	require.NoError(t, store.Set(CategoryCompression, "v_scale", 720, 42))
	require.NoError(t, store.SetActivePreset("quality", 42))

	reopened, err := NewStore(ws, testConfig(), false, newTestLogger())
	require.NoError(t, err)

	qp, ok := reopened.Get(CategoryCompression, "v_qp", 0)
	require.True(t, ok)
	assert.Equal(t, 30, qp)
	assert.Equal(t, "fast", reopened.ActivePreset(0))

	scale, ok := reopened.Get(CategoryCompression, "v_scale", 42)
	require.True(t, ok)
	assert.Equal(t, 720, scale)
	assert.Equal(t, "quality", reopened.ActivePreset(42))
}

func TestStore_UserLayerWinsOverGlobal(t *testing.T) {
	store, _ := newTestStore(t, false)

	require.NoError(t, store.Set(CategoryCompression, "v_qp", 20, 7))

	qp, ok := store.Get(CategoryCompression, "v_qp", 7)
	require.True(t, ok)
	assert.Equal(t, 20, qp)

	// Other users and the global view keep the default.
	qp, ok = store.Get(CategoryCompression, "v_qp", 99)
	require.True(t, ok)
	assert.Equal(t, 26, qp)
	qp, ok = store.Get(CategoryCompression, "v_qp", 0)
	require.True(t, ok)
	assert.Equal(t, 26, qp)

	view := store.GetCategory(CategoryCompression, 7)
	assert.Equal(t, 20, view["v_qp"])
	assert.Equal(t, "libx264", view["v_codec"])
}

func TestStore_SetRejectsInvalidValues(t *testing.T) {
	store, _ := newTestStore(t, false)

	tests := []struct {
		name     string
		category string
		key      string
		value    any
	}{
		{"qp above range", CategoryCompression, "v_qp", 99},
		{"unknown codec", CategoryCompression, "v_codec", "av1"},
		{"bad audio bitrate", CategoryCompression, "a_bitrate", "lots"},
		{"unsupported scale", CategoryCompression, "v_scale", 999},
		{"fps above range", CategoryCompression, "v_fps", 500},
		{"empty filename template", CategoryOutput, "filename_template", ""},
		{"file size above cap", CategoryOutput, "max_file_size", 9000},
		{"queue size zero", CategoryOutput, "max_queue_size", 0},
		{"bad upload mode", CategoryOutput, "default_upload_mode", "Stream"},
		{"zero screenshots", CategoryPreview, "screenshot_count", 0},
		{"preview too short", CategoryPreview, "preview_duration", 3},
		{"unknown watermark position", CategoryAdvanced, "watermark_position", "middle"},
		{"too many connections", CategoryAdvanced, "upload_connections", 11},
		{"non-http thumbnail url", CategoryThumbnail, "custom_thumbnail_url", "ftp://example.com/t.jpg"},
		{"bool for int key", CategoryCompression, "v_qp", true},
		{"unknown key", CategoryCompression, "v_bitrate", "1M"},
		{"unknown category", "secret_settings", "enabled", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Set(tt.category, tt.key, tt.value, 0)
			assert.Error(t, err)
		})
	}

	// Nothing was stored by the rejected writes.
	qp, ok := store.Get(CategoryCompression, "v_qp", 0)
	require.True(t, ok)
	assert.Equal(t, 26, qp)
}

func TestStore_SetCoercesJSONNumbers(t *testing.T) {
	store, _ := newTestStore(t, false)

	// Callback payloads decode numbers as float64.
	require.NoError(t, store.Set(CategoryCompression, "v_qp", float64(24), 0))

	qp, ok := store.Get(CategoryCompression, "v_qp", 0)
	require.True(t, ok)
	assert.Equal(t, 24, qp)
}

func TestStore_ScaleAcceptsLegacyDisableAlias(t *testing.T) {
	store, _ := newTestStore(t, false)

	require.NoError(t, store.Set(CategoryCompression, "v_scale", -1, 0))

	scale, ok := store.Get(CategoryCompression, "v_scale", 0)
	require.True(t, ok)
	assert.Equal(t, 0, scale)
}

func TestStore_SetActivePreset(t *testing.T) {
	store, _ := newTestStore(t, false)

	require.NoError(t, store.SetActivePreset("fast", 0))
	assert.Equal(t, "fast", store.ActivePreset(0))

	require.NoError(t, store.SetActivePreset(PresetCustom, 0))
	assert.Equal(t, PresetCustom, store.ActivePreset(0))

	err := store.SetActivePreset("turbo_plus", 0)
	assert.ErrorContains(t, err, "unknown preset")
}

func TestStore_UserActivePresetOverridesGlobal(t *testing.T) {
	store, _ := newTestStore(t, false)

	require.NoError(t, store.SetActivePreset("fast", 42))

	assert.Equal(t, "fast", store.ActivePreset(42))
	assert.Equal(t, PresetBalanced, store.ActivePreset(0))
	assert.Equal(t, PresetBalanced, store.ActivePreset(7))
}

func TestStore_UnknownActivePresetFallsBack(t *testing.T) {
	ws, err := storage.NewWorkspace(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, ws.WriteFile("bot_settings.json", []byte(`{"active_preset": "definitely_not_a_preset"}`)))

	store, err := NewStore(ws, testConfig(), false, newTestLogger())
	require.NoError(t, err)

	assert.Equal(t, PresetBalanced, store.ActivePreset(0))
}

func TestStore_ActiveProfile(t *testing.T) {
	t.Run("default balanced preset", func(t *testing.T) {
		store, _ := newTestStore(t, false)

		profile := store.ActiveProfile(0, false)
		assert.Equal(t, "libx264", profile.Codec)
		assert.Equal(t, "medium", profile.SpeedPreset)
		assert.Equal(t, 26, profile.QualityQP)
		assert.Equal(t, 1080, profile.ScaleHeight)
		// Profile, level, fps and audio come from the custom base.
		assert.Equal(t, "high", profile.Profile)
		assert.Equal(t, "4.0", profile.Level)
		assert.Equal(t, 30, profile.FPS)
		assert.Equal(t, "192k", profile.AudioBitrate)
		assert.False(t, profile.HardwareAccel)
	})

	t.Run("hardware preset with hardware available", func(t *testing.T) {
		store, _ := newTestStore(t, true)

		profile := store.ActiveProfile(0, true)
		assert.Equal(t, "h264_nvenc", profile.Codec)
		assert.Equal(t, "p3", profile.SpeedPreset)
		assert.True(t, profile.HardwareAccel)
	})

	t.Run("hardware preset without hardware falls back", func(t *testing.T) {
		store, _ := newTestStore(t, true)

		profile := store.ActiveProfile(0, false)
		assert.Equal(t, "libx264", profile.Codec)
		assert.Equal(t, "medium", profile.SpeedPreset)
		assert.False(t, profile.HardwareAccel)
	})

	t.Run("custom profile", func(t *testing.T) {
		store, _ := newTestStore(t, false)

		require.NoError(t, store.SetActivePreset(PresetCustom, 0))
		require.NoError(t, store.Set(CategoryCompression, "v_codec", "libx265", 0))
		require.NoError(t, store.Set(CategoryCompression, "v_qp", 23, 0))

		profile := store.ActiveProfile(0, false)
		assert.Equal(t, "libx265", profile.Codec)
		assert.Equal(t, 23, profile.QualityQP)
		assert.False(t, profile.HardwareAccel)
	})

	t.Run("custom hardware codec without hardware falls back", func(t *testing.T) {
		store, _ := newTestStore(t, false)

		require.NoError(t, store.SetActivePreset(PresetCustom, 0))
		require.NoError(t, store.Set(CategoryCompression, "v_codec", "h264_nvenc", 0))
		require.NoError(t, store.Set(CategoryCompression, "enable_hardware_acceleration", true, 0))

		profile := store.ActiveProfile(0, false)
		assert.Equal(t, "libx264", profile.Codec)
		assert.Equal(t, "medium", profile.SpeedPreset)
		assert.False(t, profile.HardwareAccel)
	})

	t.Run("user overrides feed the preset base", func(t *testing.T) {
		store, _ := newTestStore(t, false)

		require.NoError(t, store.Set(CategoryCompression, "v_fps", 60, 9))
		require.NoError(t, store.SetActivePreset("fast", 9))

		profile := store.ActiveProfile(9, false)
		assert.Equal(t, "libx264", profile.Codec)
		assert.Equal(t, 28, profile.QualityQP, "quality comes from the preset")
		assert.Equal(t, 60, profile.FPS, "fps comes from the user base")

		global := store.ActiveProfile(0, false)
		assert.Equal(t, 30, global.FPS)
		assert.Equal(t, 26, global.QualityQP)
	})
}

func TestStore_AvailablePresets(t *testing.T) {
	store, _ := newTestStore(t, false)

	cpu := store.AvailablePresets(false)
	require.Len(t, cpu, 6)
	names := make([]string, 0, len(cpu))
	for _, p := range cpu {
		names = append(names, p.Name)
		assert.NotEmpty(t, p.Description)
	}
	assert.Equal(t, []string{"ultra_fast", "fast", "balanced", "quality", "high_quality", PresetCustom}, names)

	all := store.AvailablePresets(true)
	require.Len(t, all, 9)
	assert.Equal(t, "nvidia_fast", all[5].Name)
	assert.Equal(t, PresetCustom, all[8].Name)
}

func TestStore_ExportImport(t *testing.T) {
	store, _ := newTestStore(t, false)

	var buf bytes.Buffer
	require.NoError(t, store.Export(&buf))

	require.NoError(t, store.Set(CategoryCompression, "v_qp", 30, 0))

	require.NoError(t, store.Import(bytes.NewReader(buf.Bytes())))
	qp, ok := store.Get(CategoryCompression, "v_qp", 0)
	require.True(t, ok)
	assert.Equal(t, 26, qp, "import should restore the exported value")
}

func TestStore_ImportRejectsBadDocuments(t *testing.T) {
	store, _ := newTestStore(t, false)

	err := store.Import(bytes.NewReader([]byte("{not json")))
	assert.ErrorContains(t, err, "decoding import")

	bad := []byte(`{"custom_compression": {"v_qp": 99}}`)
	err = store.Import(bytes.NewReader(bad))
	assert.ErrorContains(t, err, "validating import")

	// State is untouched after failed imports.
	qp, ok := store.Get(CategoryCompression, "v_qp", 0)
	require.True(t, ok)
	assert.Equal(t, 26, qp)
}

func TestStore_ResetToDefaults(t *testing.T) {
	store, _ := newTestStore(t, false)

	require.NoError(t, store.Set(CategoryCompression, "v_qp", 30, 0))
	require.NoError(t, store.Set(CategoryCompression, "v_qp", 18, 42))
	require.NoError(t, store.SetActivePreset("fast", 42))

	// User reset drops only that user's layer.
	require.NoError(t, store.ResetToDefaults(42))
	qp, ok := store.Get(CategoryCompression, "v_qp", 42)
	require.True(t, ok)
	assert.Equal(t, 30, qp, "user now sees the global value")
	assert.Equal(t, PresetBalanced, store.ActivePreset(42))

	// Global reset restores compiled defaults.
	require.NoError(t, store.ResetToDefaults(0))
	qp, ok = store.Get(CategoryCompression, "v_qp", 0)
	require.True(t, ok)
	assert.Equal(t, 26, qp)
}

func TestNewStore_CorruptGlobalFileUsesDefaults(t *testing.T) {
	ws, err := storage.NewWorkspace(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, ws.WriteFile("bot_settings.json", []byte("{definitely not json")))

	store, err := NewStore(ws, testConfig(), false, newTestLogger())
	require.NoError(t, err)

	assert.Equal(t, PresetBalanced, store.ActivePreset(0))
	qp, ok := store.Get(CategoryCompression, "v_qp", 0)
	require.True(t, ok)
	assert.Equal(t, 26, qp)
}

func TestNewStore_CorruptUserFileIsIgnored(t *testing.T) {
	ws, err := storage.NewWorkspace(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, ws.WriteFile("user_settings.json", []byte("[1,2,3")))

	store, err := NewStore(ws, testConfig(), false, newTestLogger())
	require.NoError(t, err)

	qp, ok := store.Get(CategoryCompression, "v_qp", 42)
	require.True(t, ok)
	assert.Equal(t, 26, qp)
}

func TestNewStore_DropsInvalidUserOverrides(t *testing.T) {
	ws, err := storage.NewWorkspace(t.TempDir())
	require.NoError(t, err)
	raw := []byte(`{"42": {"overrides": {"custom_compression": {"v_qp": 800, "v_fps": 60}}}}`)
	require.NoError(t, ws.WriteFile("user_settings.json", raw))

	store, err := NewStore(ws, testConfig(), false, newTestLogger())
	require.NoError(t, err)

	// The out-of-range override is dropped, the valid one survives.
	qp, ok := store.Get(CategoryCompression, "v_qp", 42)
	require.True(t, ok)
	assert.Equal(t, 26, qp)

	fps, ok := store.Get(CategoryCompression, "v_fps", 42)
	require.True(t, ok)
	assert.Equal(t, 60, fps)
}

func TestStore_PartialGlobalFileMergesOverDefaults(t *testing.T) {
	ws, err := storage.NewWorkspace(t.TempDir())
	require.NoError(t, err)
	raw := []byte(`{"active_preset": "fast", "output_settings": {"max_queue_size": 25}}`)
	require.NoError(t, ws.WriteFile("bot_settings.json", raw))

	store, err := NewStore(ws, testConfig(), false, newTestLogger())
	require.NoError(t, err)

	assert.Equal(t, "fast", store.ActivePreset(0))
	assert.Equal(t, 25, store.Output(0).MaxQueueSize)
	// Keys the file omits keep their defaults.
	assert.Equal(t, 2000, store.Output(0).MaxFileSize)
	assert.Equal(t, "libx264", store.ActiveProfile(0, false).Codec)
}

func TestStore_GetCategoryUnknown(t *testing.T) {
	store, _ := newTestStore(t, false)

	view := store.GetCategory("no_such_category", 0)
	assert.Empty(t, view)
}

func TestStore_TypedViewsApplyOverrides(t *testing.T) {
	store, _ := newTestStore(t, false)

	require.NoError(t, store.Set(CategoryOutput, "max_queue_size", 3, 42))
	require.NoError(t, store.Set(CategoryPreview, "screenshot_count", 12, 42))
	require.NoError(t, store.Set(CategoryAdvanced, "progress_update_interval", 10, 42))
	require.NoError(t, store.Set(CategoryThumbnail, "thumbnail_timestamp_percent", 50, 42))

	assert.Equal(t, 3, store.Output(42).MaxQueueSize)
	assert.Equal(t, 12, store.Preview(42).ScreenshotCount)
	assert.Equal(t, 10*time.Second, store.ProgressInterval(42))
	assert.Equal(t, 50, store.Thumbnail(42).TimestampPercent)

	// Global views are unaffected.
	assert.Equal(t, 10, store.Output(0).MaxQueueSize)
	assert.Equal(t, 5, store.Preview(0).ScreenshotCount)
	assert.Equal(t, 5*time.Second, store.ProgressInterval(0))
	assert.Equal(t, 10, store.Thumbnail(0).TimestampPercent)
}

func TestStore_GlobalDocumentIsACopy(t *testing.T) {
	store, _ := newTestStore(t, false)

	doc := store.GlobalDocument()
	doc.CompressionPresets["balanced"] = Preset{Codec: "hevc_nvenc", SpeedPreset: "p7", QualityQP: 1, ScaleHeight: 144}
	doc.CustomCompression.QualityQP = 51

	profile := store.ActiveProfile(0, false)
	assert.Equal(t, "libx264", profile.Codec)
	assert.Equal(t, 26, profile.QualityQP)
}
