package settings

import "strings"

// PresetCustom selects the custom_compression category as the active profile.
const PresetCustom = "custom"

// PresetBalanced is the fallback when an unknown or unavailable preset is
// selected.
const PresetBalanced = "balanced"

// Preset is a named partial profile. Fields a preset does not carry
// (profile/level/fps/audio) come from the custom_compression base when the
// preset is resolved.
type Preset struct {
	Codec       string `json:"v_codec"`
	SpeedPreset string `json:"v_preset"`
	QualityQP   int    `json:"v_qp"`
	ScaleHeight int    `json:"v_scale"`
}

// PresetInfo pairs a preset name with its menu description.
type PresetInfo struct {
	Name        string
	Description string
}

// presetOrder fixes the menu display order.
var presetOrder = []string{
	"ultra_fast", "fast", "balanced", "quality", "high_quality",
	"nvidia_fast", "nvidia_balanced", "nvidia_quality",
}

var presetDescriptions = map[string]string{
	"ultra_fast":      "🚀 Ultra Fast - Fastest compression, larger file size",
	"fast":            "⚡ Fast - Quick compression, good quality",
	"balanced":        "⚖️ Balanced - Good balance of speed and quality",
	"quality":         "🎯 Quality - Better quality, slower compression",
	"high_quality":    "💎 High Quality - Best quality, slowest compression",
	"nvidia_fast":     "🚀 NVIDIA Fast - Hardware accelerated, fast",
	"nvidia_balanced": "⚖️ NVIDIA Balanced - Hardware accelerated, balanced",
	"nvidia_quality":  "💎 NVIDIA Quality - Hardware accelerated, high quality",
	PresetCustom:      "🔧 Custom - User-defined settings",
}

// builtinPresets returns a fresh copy of the built-in preset table.
func builtinPresets() map[string]Preset {
	return map[string]Preset{
		"ultra_fast":      {Codec: "libx264", SpeedPreset: "ultrafast", QualityQP: 35, ScaleHeight: 720},
		"fast":            {Codec: "libx264", SpeedPreset: "fast", QualityQP: 28, ScaleHeight: 1080},
		"balanced":        {Codec: "libx264", SpeedPreset: "medium", QualityQP: 26, ScaleHeight: 1080},
		"quality":         {Codec: "libx264", SpeedPreset: "slow", QualityQP: 22, ScaleHeight: 1080},
		"high_quality":    {Codec: "libx264", SpeedPreset: "veryslow", QualityQP: 18, ScaleHeight: 1080},
		"nvidia_fast":     {Codec: "h264_nvenc", SpeedPreset: "p1", QualityQP: 28, ScaleHeight: 1080},
		"nvidia_balanced": {Codec: "h264_nvenc", SpeedPreset: "p3", QualityQP: 26, ScaleHeight: 1080},
		"nvidia_quality":  {Codec: "h264_nvenc", SpeedPreset: "p6", QualityQP: 22, ScaleHeight: 1080},
	}
}

// PresetDescription returns the menu description for a preset name.
func PresetDescription(name string) string {
	if desc, ok := presetDescriptions[name]; ok {
		return desc
	}
	return name
}

// isHardwareCodec reports whether a codec runs on a GPU encoder.
func isHardwareCodec(codec string) bool {
	return strings.HasSuffix(codec, "_nvenc") || strings.HasSuffix(codec, "_vaapi")
}
