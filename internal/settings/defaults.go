package settings

import (
	"github.com/jmylchreest/compressr/internal/config"
)

const defaultUploadConnections = 5

// DefaultDocument builds the compiled-in settings layer, seeded from the
// service configuration. When an NVIDIA encoder was detected the default
// active preset is its hardware variant.
func DefaultDocument(cfg *config.Config, nvidiaAvailable bool) Document {
	activePreset := PresetBalanced
	if nvidiaAvailable {
		activePreset = "nvidia_balanced"
	}

	enc := cfg.Encoding
	return Document{
		CompressionPresets: builtinPresets(),
		ActivePreset:       activePreset,
		CustomCompression: CompressionSettings{
			Codec:         enc.Codec,
			SpeedPreset:   enc.SpeedPreset,
			Profile:       enc.Profile,
			Level:         enc.Level,
			QualityQP:     enc.QualityQP,
			ScaleHeight:   enc.ScaleHeight,
			FPS:           enc.FPS,
			AudioBitrate:  enc.AudioBitrate,
			HardwareAccel: nvidiaAvailable,
		},
		Output: OutputSettings{
			FilenameTemplate:   enc.FilenameTemplate,
			AutoDeleteOriginal: enc.AutoDeleteOriginal,
			DefaultUploadMode:  enc.UploadMode,
			MaxFileSize:        int(cfg.Limits.MaxFileSize.MiBs()),
			MaxQueueSize:       cfg.Limits.MaxQueueSize,
		},
		Preview: PreviewSettings{
			EnableScreenshots:  enc.EnableScreenshots,
			ScreenshotCount:    enc.ScreenshotCount,
			EnableVideoPreview: enc.EnableVideoPreview,
			PreviewDuration:    enc.PreviewDuration,
			PreviewQuality:     enc.PreviewQuality,
		},
		Advanced: AdvancedSettings{
			WatermarkEnabled:       enc.WatermarkEnabled,
			WatermarkText:          enc.WatermarkText,
			WatermarkPosition:      enc.WatermarkPosition,
			UploadConnections:      defaultUploadConnections,
			ProgressUpdateInterval: int(cfg.Limits.ProgressInterval.Seconds()),
		},
		Thumbnail: ThumbnailSettings{
			CustomThumbnailURL:    enc.ThumbnailURL,
			AutoGenerateThumbnail: enc.AutoGenerateThumbnail,
			TimestampPercent:      enc.ThumbnailTimestampPct,
		},
	}
}
