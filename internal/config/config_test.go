package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/compressr/pkg/bytesize"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Server.Enabled)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "compressr.db", cfg.Database.DSN)

	assert.Equal(t, "./data", cfg.Storage.BaseDir)
	assert.Equal(t, filepath.Join("./data", "downloads"), cfg.Storage.DownloadPath())
	assert.Equal(t, filepath.Join("./data", "encode"), cfg.Storage.EncodePath())
	assert.Equal(t, filepath.Join("./data", "bot_settings.json"), cfg.Storage.SettingsPath())

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.Equal(t, int64(2000), cfg.Limits.MaxFileSize.MiBs())
	assert.Equal(t, 10, cfg.Limits.MaxQueueSize)
	assert.Equal(t, 5*time.Second, cfg.Limits.ProgressInterval)

	assert.Equal(t, "libx264", cfg.Encoding.Codec)
	assert.Equal(t, "medium", cfg.Encoding.SpeedPreset)
	assert.Equal(t, 26, cfg.Encoding.QualityQP)
	assert.Equal(t, 1080, cfg.Encoding.ScaleHeight)
	assert.Equal(t, "192k", cfg.Encoding.AudioBitrate)
	assert.Equal(t, "{original_name} [{resolution} {codec}]", cfg.Encoding.FilenameTemplate)
	assert.Equal(t, "Document", cfg.Encoding.UploadMode)

	assert.Equal(t, bytesize.MiB, cfg.Download.ChunkSize)
	assert.Equal(t, 3, cfg.Download.RetryAttempts)

	assert.True(t, cfg.FFmpeg.HardwareAccel)
	assert.True(t, cfg.Cleanup.Enabled)
	assert.Equal(t, "@hourly", cfg.Cleanup.Schedule)
	assert.Equal(t, time.Hour, cfg.Cleanup.MaxAge.Std())

	assert.Equal(t, "https://api.telegra.ph", cfg.Telegraph.BaseURL)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "compressr.yaml")
	content := `
server:
  port: 9090
limits:
  max_file_size: 1GB
  max_queue_size: 20
cleanup:
  max_age: 2 days
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(1024), cfg.Limits.MaxFileSize.MiBs())
	assert.Equal(t, 20, cfg.Limits.MaxQueueSize)
	assert.Equal(t, 48*time.Hour, cfg.Cleanup.MaxAge.Std())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadLegacyEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123456:abcdef")
	t.Setenv("OWNER", "100 200")
	t.Setenv("MAX_FILE_SIZE", "100")
	t.Setenv("MAX_QUEUE_SIZE", "5")
	t.Setenv("PROGRESS_UPDATE_INTERVAL", "10")
	t.Setenv("AUTO_DELETE_ORIGINAL", "true")
	t.Setenv("ENABLE_HARDWARE_ACCELERATION", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "123456:abcdef", cfg.Telegram.BotToken)
	assert.Equal(t, []int64{100, 200}, cfg.Telegram.OwnerIDs())
	assert.Equal(t, int64(100), cfg.Limits.MaxFileSize.MiBs())
	assert.Equal(t, 5, cfg.Limits.MaxQueueSize)
	assert.Equal(t, 10*time.Second, cfg.Limits.ProgressInterval)
	assert.True(t, cfg.Encoding.AutoDeleteOriginal)
	assert.False(t, cfg.FFmpeg.HardwareAccel)
}

func TestLegacyEnvShadowedByPrefixed(t *testing.T) {
	t.Setenv("MAX_QUEUE_SIZE", "5")
	t.Setenv("COMPRESSR_LIMITS_MAX_QUEUE_SIZE", "25")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Limits.MaxQueueSize)
}

func TestOwnerIDs(t *testing.T) {
	tests := []struct {
		name     string
		owner    string
		expected []int64
	}{
		{"single", "100", []int64{100}},
		{"whitespace separated", "100 200\t300", []int64{100, 200, 300}},
		{"comma separated", "100,200", []int64{100, 200}},
		{"mixed garbage skipped", "100 abc 200", []int64{100, 200}},
		{"empty", "", []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := TelegramConfig{Owner: tt.owner}
			assert.Equal(t, tt.expected, c.OwnerIDs())
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad driver", func(c *Config) { c.Database.Driver = "oracle" }, "database.driver"},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }, "database.dsn"},
		{"empty base dir", func(c *Config) { c.Storage.BaseDir = "" }, "storage.base_dir"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"file size too small", func(c *Config) { c.Limits.MaxFileSize = 0 }, "limits.max_file_size"},
		{"file size too large", func(c *Config) { c.Limits.MaxFileSize = bytesize.FromMiB(9000) }, "limits.max_file_size"},
		{"queue size zero", func(c *Config) { c.Limits.MaxQueueSize = 0 }, "limits.max_queue_size"},
		{"queue size too large", func(c *Config) { c.Limits.MaxQueueSize = 51 }, "limits.max_queue_size"},
		{"progress too fast", func(c *Config) { c.Limits.ProgressInterval = 100 * time.Millisecond }, "limits.progress_interval"},
		{"bad upload mode", func(c *Config) { c.Encoding.UploadMode = "Stream" }, "encoding.upload_mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCredentials(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.ValidateCredentials()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot_token")

	cfg.Telegram.BotToken = "123456:abcdef"
	err = cfg.ValidateCredentials()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner")

	cfg.Telegram.Owner = "100"
	assert.NoError(t, cfg.ValidateCredentials())
}
