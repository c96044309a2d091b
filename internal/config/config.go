// Package config provides configuration management for compressr using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/jmylchreest/compressr/pkg/bytesize"
	"github.com/jmylchreest/compressr/pkg/duration"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxIdleTime = 30 * time.Minute

	defaultMaxFileSizeMiB  = 2000
	defaultMaxQueueSize    = 10
	defaultProgressEvery   = 5 * time.Second
	defaultDownloadChunk   = bytesize.MiB
	defaultDownloadRetries = 3
	defaultRetryBaseDelay  = time.Second
	defaultSweepMaxAge     = time.Hour

	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"
)

// Config holds all configuration for the application.
type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Encoding  EncodingConfig  `mapstructure:"encoding"`
	Download  DownloadConfig  `mapstructure:"download"`
	FFmpeg    FFmpegConfig    `mapstructure:"ffmpeg"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	Telegraph TelegraphConfig `mapstructure:"telegraph"`
}

// TelegramConfig holds chat transport credentials and authorization.
type TelegramConfig struct {
	AppID    int    `mapstructure:"app_id"`
	APIHash  string `mapstructure:"api_hash" masq:"secret"`
	BotToken string `mapstructure:"bot_token" masq:"secret"`
	// Owner is a whitespace- or comma-separated list of authorized user ids.
	Owner string `mapstructure:"owner"`
}

// OwnerIDs parses the Owner field into user ids. Malformed entries are skipped.
func (c *TelegramConfig) OwnerIDs() []int64 {
	fields := strings.FieldsFunc(c.Owner, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == ','
	})
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		if id, err := strconv.ParseInt(f, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// ServerConfig holds the diagnostics HTTP server configuration.
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds run-history database configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds working-directory layout and settings file locations.
type StorageConfig struct {
	BaseDir          string `mapstructure:"base_dir"`
	DownloadDir      string `mapstructure:"download_dir"`
	EncodeDir        string `mapstructure:"encode_dir"`
	TempDir          string `mapstructure:"temp_dir"`
	ThumbDir         string `mapstructure:"thumb_dir"`
	SettingsFile     string `mapstructure:"settings_file"`
	UserSettingsFile string `mapstructure:"user_settings_file"`
}

// DownloadPath returns the full path to the download directory.
func (c *StorageConfig) DownloadPath() string {
	return filepath.Join(c.BaseDir, c.DownloadDir)
}

// EncodePath returns the full path to the encode output directory.
func (c *StorageConfig) EncodePath() string {
	return filepath.Join(c.BaseDir, c.EncodeDir)
}

// TempPath returns the full path to the temp directory.
func (c *StorageConfig) TempPath() string {
	return filepath.Join(c.BaseDir, c.TempDir)
}

// ThumbPath returns the full path to the thumbnail directory.
func (c *StorageConfig) ThumbPath() string {
	return filepath.Join(c.BaseDir, c.ThumbDir)
}

// SettingsPath returns the full path to the global settings file.
func (c *StorageConfig) SettingsPath() string {
	return filepath.Join(c.BaseDir, c.SettingsFile)
}

// UserSettingsPath returns the full path to the per-user settings file.
func (c *StorageConfig) UserSettingsPath() string {
	return filepath.Join(c.BaseDir, c.UserSettingsFile)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// LimitsConfig holds admission and reporting limits. These seed the
// corresponding settings-store defaults and remain overridable there.
type LimitsConfig struct {
	// MaxFileSize supports human-readable values like "2GB"; the legacy
	// MAX_FILE_SIZE environment variable is interpreted as whole MiB.
	MaxFileSize      bytesize.Size `mapstructure:"max_file_size"`
	MaxQueueSize     int           `mapstructure:"max_queue_size"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

// EncodingConfig seeds the default encode profile and output behaviour.
type EncodingConfig struct {
	Codec              string `mapstructure:"codec"`
	SpeedPreset        string `mapstructure:"speed_preset"`
	Profile            string `mapstructure:"profile"`
	Level              string `mapstructure:"level"`
	QualityQP          int    `mapstructure:"quality_qp"`
	ScaleHeight        int    `mapstructure:"scale_height"`
	FPS                int    `mapstructure:"fps"`
	AudioBitrate       string `mapstructure:"audio_bitrate"`
	FilenameTemplate   string `mapstructure:"filename_template"`
	AutoDeleteOriginal bool   `mapstructure:"auto_delete_original"`
	UploadMode         string `mapstructure:"upload_mode"` // Document, File

	WatermarkEnabled  bool   `mapstructure:"watermark_enabled"`
	WatermarkText     string `mapstructure:"watermark_text"`
	WatermarkPosition string `mapstructure:"watermark_position"`

	EnableScreenshots  bool `mapstructure:"enable_screenshots"`
	ScreenshotCount    int  `mapstructure:"screenshot_count"`
	EnableVideoPreview bool `mapstructure:"enable_video_preview"`
	PreviewDuration    int  `mapstructure:"preview_duration"`
	PreviewQuality     int  `mapstructure:"preview_quality"`

	ThumbnailURL          string `mapstructure:"thumbnail_url"`
	AutoGenerateThumbnail bool   `mapstructure:"auto_generate_thumbnail"`
	ThumbnailTimestampPct int    `mapstructure:"thumbnail_timestamp_pct"`
}

// DownloadConfig holds HTTP download behaviour for link jobs.
type DownloadConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	ChunkSize      bytesize.Size `mapstructure:"chunk_size"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	// Timeout of 0 means no wall-clock limit on a download.
	Timeout time.Duration `mapstructure:"timeout"`
}

// FFmpegConfig holds FFmpeg binary configuration.
type FFmpegConfig struct {
	BinaryPath string `mapstructure:"binary_path"` // empty = find in PATH
	ProbePath  string `mapstructure:"probe_path"`  // empty = find in PATH
	// HardwareAccel is the global kill switch; false forces the cpu engine
	// regardless of detected hardware.
	HardwareAccel bool `mapstructure:"hardware_accel"`
}

// CleanupConfig holds the stale-file sweeper configuration.
type CleanupConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"` // cron expression
	// MaxAge accepts extended forms like "90 minutes" or "2 days".
	MaxAge duration.Duration `mapstructure:"max_age"`
}

// TelegraphConfig holds the HTML paste host configuration.
type TelegraphConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	ShortName  string `mapstructure:"short_name"`
	AuthorName string `mapstructure:"author_name"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and are
// prefixed with COMPRESSR_ using underscores for nesting
// (COMPRESSR_SERVER_PORT=8080). The legacy unprefixed names from the original
// deployment (BOT_TOKEN, OWNER, MAX_FILE_SIZE, ...) are also honored.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("compressr")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/compressr")
		v.AddConfigPath("$HOME/.compressr")
	}

	v.SetEnvPrefix("COMPRESSR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - defaults and env vars suffice
	}

	applyLegacyEnv(v)

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// legacyStringKeys maps bare legacy environment names to config keys where the
// value carries over verbatim.
var legacyStringKeys = map[string]string{
	"API_HASH":          "telegram.api_hash",
	"BOT_TOKEN":         "telegram.bot_token",
	"OWNER":             "telegram.owner",
	"FILENAME_TEMPLATE": "encoding.filename_template",
	"THUMBNAIL":         "encoding.thumbnail_url",
	"TELEGRAPH_API":     "telegraph.base_url",
	"DEFAULT_CODEC":     "encoding.codec",
	"DEFAULT_PRESET":    "encoding.speed_preset",
	"AUDIO_BITRATE":     "encoding.audio_bitrate",
	"WATERMARK_TEXT":    "encoding.watermark_text",
	"WATERMARK_POS":     "encoding.watermark_position",
}

// legacyIntKeys maps bare legacy names whose values are plain integers.
var legacyIntKeys = map[string]string{
	"APP_ID":           "telegram.app_id",
	"MAX_QUEUE_SIZE":   "limits.max_queue_size",
	"DEFAULT_QP":       "encoding.quality_qp",
	"DEFAULT_SCALE":    "encoding.scale_height",
	"DEFAULT_FPS":      "encoding.fps",
	"SCREENSHOT_COUNT": "encoding.screenshot_count",
	"PREVIEW_DURATION": "encoding.preview_duration",
}

// legacyBoolKeys maps bare legacy names carrying booleans.
var legacyBoolKeys = map[string]string{
	"AUTO_DELETE_ORIGINAL":         "encoding.auto_delete_original",
	"ENABLE_HARDWARE_ACCELERATION": "ffmpeg.hardware_accel",
	"WATERMARK_ENABLED":            "encoding.watermark_enabled",
	"ENABLE_SCREENSHOTS":           "encoding.enable_screenshots",
	"ENABLE_VIDEO_PREVIEW":         "encoding.enable_video_preview",
}

// prefixedName returns the COMPRESSR_-prefixed environment name for a config key.
func prefixedName(key string) string {
	return "COMPRESSR_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// legacyValue returns the legacy environment value for key, or "" when the
// legacy name is unset or shadowed by the prefixed name. Values land via
// viper.Set, which outranks every other source, so the prefixed name must be
// checked explicitly to keep its precedence.
func legacyValue(env, key string) string {
	if os.Getenv(prefixedName(key)) != "" {
		return ""
	}
	s, ok := os.LookupEnv(env)
	if !ok {
		return ""
	}
	return s
}

// applyLegacyEnv overlays the original deployment's bare environment names.
func applyLegacyEnv(v *viper.Viper) {
	for env, key := range legacyStringKeys {
		if s := legacyValue(env, key); s != "" {
			v.Set(key, s)
		}
	}
	for env, key := range legacyIntKeys {
		if s := legacyValue(env, key); s != "" {
			if n, err := strconv.Atoi(s); err == nil {
				v.Set(key, n)
			}
		}
	}
	for env, key := range legacyBoolKeys {
		if s := legacyValue(env, key); s != "" {
			if b, err := strconv.ParseBool(s); err == nil {
				v.Set(key, b)
			}
		}
	}

	// MAX_FILE_SIZE is a whole MiB count in the legacy scheme; a value with a
	// unit suffix is passed through for bytesize parsing.
	if s := legacyValue("MAX_FILE_SIZE", "limits.max_file_size"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			v.Set("limits.max_file_size", bytesize.FromMiB(n).Bytes())
		} else {
			v.Set("limits.max_file_size", s)
		}
	}

	// PROGRESS_UPDATE_INTERVAL is whole seconds in the legacy scheme.
	if s := legacyValue("PROGRESS_UPDATE_INTERVAL", "limits.progress_interval"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			v.Set("limits.progress_interval", time.Duration(n)*time.Second)
		}
	}
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Telegram defaults (credentials intentionally have no defaults)
	v.SetDefault("telegram.app_id", 0)
	v.SetDefault("telegram.api_hash", "")
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.owner", "")

	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "compressr.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.download_dir", "downloads")
	v.SetDefault("storage.encode_dir", "encode")
	v.SetDefault("storage.temp_dir", "temp")
	v.SetDefault("storage.thumb_dir", "thumb")
	v.SetDefault("storage.settings_file", "bot_settings.json")
	v.SetDefault("storage.user_settings_file", "user_settings.json")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Limits defaults
	v.SetDefault("limits.max_file_size", bytesize.FromMiB(defaultMaxFileSizeMiB).Bytes())
	v.SetDefault("limits.max_queue_size", defaultMaxQueueSize)
	v.SetDefault("limits.progress_interval", defaultProgressEvery)

	// Encoding defaults
	v.SetDefault("encoding.codec", "libx264")
	v.SetDefault("encoding.speed_preset", "medium")
	v.SetDefault("encoding.profile", "high")
	v.SetDefault("encoding.level", "4.0")
	v.SetDefault("encoding.quality_qp", 26)
	v.SetDefault("encoding.scale_height", 1080)
	v.SetDefault("encoding.fps", 30)
	v.SetDefault("encoding.audio_bitrate", "192k")
	v.SetDefault("encoding.filename_template", "{original_name} [{resolution} {codec}]")
	v.SetDefault("encoding.auto_delete_original", false)
	v.SetDefault("encoding.upload_mode", "Document")
	v.SetDefault("encoding.watermark_enabled", false)
	v.SetDefault("encoding.watermark_text", "Compressed by Bot")
	v.SetDefault("encoding.watermark_position", "bottom-right")
	v.SetDefault("encoding.enable_screenshots", false)
	v.SetDefault("encoding.screenshot_count", 5)
	v.SetDefault("encoding.enable_video_preview", false)
	v.SetDefault("encoding.preview_duration", 10)
	v.SetDefault("encoding.preview_quality", 28)
	v.SetDefault("encoding.thumbnail_url", "")
	v.SetDefault("encoding.auto_generate_thumbnail", true)
	v.SetDefault("encoding.thumbnail_timestamp_pct", 10)

	// Download defaults
	v.SetDefault("download.user_agent", defaultUserAgent)
	v.SetDefault("download.chunk_size", defaultDownloadChunk.Bytes())
	v.SetDefault("download.retry_attempts", defaultDownloadRetries)
	v.SetDefault("download.retry_base_delay", defaultRetryBaseDelay)
	v.SetDefault("download.timeout", time.Duration(0))

	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")
	v.SetDefault("ffmpeg.hardware_accel", true)

	// Cleanup defaults
	v.SetDefault("cleanup.enabled", true)
	v.SetDefault("cleanup.schedule", "@hourly")
	v.SetDefault("cleanup.max_age", defaultSweepMaxAge)

	// Telegraph defaults
	v.SetDefault("telegraph.base_url", "https://api.telegra.ph")
	v.SetDefault("telegraph.short_name", "compressr")
	v.SetDefault("telegraph.author_name", "compressr")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if mib := c.Limits.MaxFileSize.MiBs(); mib < 1 || mib > 8000 {
		return fmt.Errorf("limits.max_file_size must be between 1MB and 8000MB")
	}
	if c.Limits.MaxQueueSize < 1 || c.Limits.MaxQueueSize > 50 {
		return fmt.Errorf("limits.max_queue_size must be between 1 and 50")
	}
	if c.Limits.ProgressInterval < time.Second || c.Limits.ProgressInterval > 30*time.Second {
		return fmt.Errorf("limits.progress_interval must be between 1s and 30s")
	}

	if c.Download.ChunkSize < 1 {
		return fmt.Errorf("download.chunk_size must be positive")
	}
	if c.Download.RetryAttempts < 1 {
		return fmt.Errorf("download.retry_attempts must be at least 1")
	}

	if c.Cleanup.MaxAge.Std() < time.Minute {
		return fmt.Errorf("cleanup.max_age must be at least 1m")
	}

	validModes := map[string]bool{"Document": true, "File": true}
	if !validModes[c.Encoding.UploadMode] {
		return fmt.Errorf("encoding.upload_mode must be Document or File")
	}

	return nil
}

// ValidateCredentials checks the fields required to open a transport session.
// Called by serve, not by Load, so offline commands work without credentials.
func (c *Config) ValidateCredentials() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required (BOT_TOKEN)")
	}
	if len(c.Telegram.OwnerIDs()) == 0 {
		return fmt.Errorf("telegram.owner must list at least one user id (OWNER)")
	}
	return nil
}
