package bot

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jmylchreest/compressr/internal/chat"
	"github.com/jmylchreest/compressr/internal/ffmpeg"
	"github.com/jmylchreest/compressr/internal/settings"
)

// menu is one rendered screen of the inline settings tree.
type menu struct {
	text string
	rows []chat.ButtonRow
}

var titleCaser = cases.Title(language.English)

// presetTitle turns "nvidia_balanced" into "Nvidia Balanced" for display.
func presetTitle(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

func onOff(enabled bool) string {
	if enabled {
		return "✅ Enabled"
	}
	return "❌ Disabled"
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func scaleText(v any) string {
	if n := asInt(v); n > 0 {
		return fmt.Sprintf("%dp", n)
	}
	return "Original"
}

func fpsText(v any) string {
	if n := asInt(v); n > 0 {
		return fmt.Sprintf("%d", n)
	}
	return "Original"
}

func backRow(target string) chat.ButtonRow {
	return chat.ButtonRow{{Label: "🔙 Back to Settings", Data: target}}
}

func (b *Bot) mainMenu(userID int64) menu {
	return menu{
		text: fmt.Sprintf(
			"⚙️ **Bot Settings Menu**\n\n"+
				"🎯 **Current Preset**: `%s`\n"+
				"🖥️ **Hardware**: `%s`\n\n"+
				"Select a category to configure:",
			presetTitle(b.deps.Settings.ActivePreset(userID)), b.deps.Engine.Label(),
		),
		rows: []chat.ButtonRow{
			{{Label: "🎯 Presets", Data: "settings_presets"}},
			{{Label: "🔧 Custom Settings", Data: "settings_custom"}},
			{{Label: "📤 Output Settings", Data: "settings_output"}},
			{{Label: "🖼 Preview Settings", Data: "settings_preview"}},
			{{Label: "⚙️ Advanced Settings", Data: "settings_advanced"}},
			{{Label: "🖼️ Thumbnail Settings", Data: "settings_thumbnail"}},
			{{Label: "📊 Current Settings", Data: "settings_current"}},
			{{Label: "🔄 Reset to Defaults", Data: "settings_reset"}},
			{{Label: "❌ Close", Data: "settings_close"}},
		},
	}
}

func (b *Bot) presetsMenu(userID int64) menu {
	active := b.deps.Settings.ActivePreset(userID)
	infos := b.deps.Settings.AvailablePresets(b.deps.Engine.Engine == ffmpeg.EngineNVIDIA)

	rows := make([]chat.ButtonRow, 0, len(infos)+1)
	for _, info := range infos {
		label := info.Description
		if info.Name == active {
			label += " ✅"
		}
		rows = append(rows, chat.ButtonRow{{Label: label, Data: "preset_" + info.Name}})
	}
	rows = append(rows, backRow("settings_main"))

	return menu{
		text: fmt.Sprintf(
			"🎯 **Compression Presets**\n\n"+
				"**Active**: `%s`\n\n"+
				"Select a preset to use:",
			presetTitle(active),
		),
		rows: rows,
	}
}

func (b *Bot) customMenu(userID int64) menu {
	kv := b.deps.Settings.GetCategory(settings.CategoryCompression, userID)
	hwaccel, _ := kv["enable_hardware_acceleration"].(bool)

	return menu{
		text: fmt.Sprintf(
			"🔧 **Custom Compression Settings**\n\n"+
				"**Codec**: `%v`\n"+
				"**Speed Preset**: `%v`\n"+
				"**Quality (CRF)**: `%v`\n"+
				"**Resolution**: `%s`\n"+
				"**FPS**: `%s`\n"+
				"**Audio Bitrate**: `%v`\n"+
				"**Hardware Accel**: %s\n\n"+
				"Select a setting to change:",
			kv["v_codec"], kv["v_preset"], kv["v_qp"],
			scaleText(kv["v_scale"]), fpsText(kv["v_fps"]), kv["a_bitrate"],
			onOff(hwaccel),
		),
		rows: []chat.ButtonRow{
			{{Label: "🎥 Codec", Data: "custom_codec"}},
			{{Label: "⚡ Speed Preset", Data: "custom_preset"}},
			{{Label: "🎯 Quality (CRF)", Data: "custom_quality"}},
			{{Label: "📐 Resolution", Data: "custom_resolution"}},
			{{Label: "🎬 FPS", Data: "custom_fps"}},
			{{Label: "🔊 Audio Bitrate", Data: "custom_audio"}},
			{{Label: "🖥️ Hardware Accel", Data: "custom_hwaccel"}},
			backRow("settings_main"),
		},
	}
}

func (b *Bot) outputMenu(userID int64) menu {
	out := b.deps.Settings.Output(userID)
	return menu{
		text: fmt.Sprintf(
			"📤 **Output Settings**\n\n"+
				"**Filename Template**: `%s`\n"+
				"**Upload Mode**: `%s`\n"+
				"**Auto Delete Original**: %s\n"+
				"**Max File Size**: `%d MB`\n"+
				"**Max Queue Size**: `%d`\n\n"+
				"Select a setting to change:",
			out.FilenameTemplate, out.DefaultUploadMode, onOff(out.AutoDeleteOriginal),
			out.MaxFileSize, out.MaxQueueSize,
		),
		rows: []chat.ButtonRow{
			{{Label: "📝 Filename Template", Data: "output_filename"}},
			{{Label: "📤 Upload Mode", Data: "output_upload_mode"}},
			{{Label: "🗑 Auto Delete Original", Data: "output_auto_delete"}},
			{{Label: "📦 Max File Size", Data: "output_max_size"}},
			{{Label: "📋 Max Queue Size", Data: "output_queue_size"}},
			backRow("settings_main"),
		},
	}
}

func (b *Bot) previewMenu(userID int64) menu {
	pv := b.deps.Settings.Preview(userID)
	return menu{
		text: fmt.Sprintf(
			"🖼 **Preview Settings**\n\n"+
				"**Screenshots**: %s\n"+
				"**Screenshot Count**: `%d`\n"+
				"**Video Preview**: %s\n"+
				"**Preview Duration**: `%ds`\n"+
				"**Preview Quality (CRF)**: `%d`\n\n"+
				"Select a setting to change:",
			onOff(pv.EnableScreenshots), pv.ScreenshotCount, onOff(pv.EnableVideoPreview),
			pv.PreviewDuration, pv.PreviewQuality,
		),
		rows: []chat.ButtonRow{
			{{Label: "📸 Screenshots", Data: "preview_screenshots"}},
			{{Label: "🔢 Screenshot Count", Data: "preview_count"}},
			{{Label: "🎞 Video Preview", Data: "preview_video"}},
			{{Label: "⏱ Preview Duration", Data: "preview_duration"}},
			{{Label: "🎯 Preview Quality", Data: "preview_quality"}},
			backRow("settings_main"),
		},
	}
}

func (b *Bot) advancedMenu(userID int64) menu {
	adv := b.deps.Settings.Advanced(userID)
	return menu{
		text: fmt.Sprintf(
			"⚙️ **Advanced Settings**\n\n"+
				"**Watermark**: %s\n"+
				"**Watermark Text**: `%s`\n"+
				"**Watermark Position**: `%s`\n"+
				"**Upload Connections**: `%d`\n"+
				"**Progress Interval**: `%ds`\n\n"+
				"Select a setting to change:",
			onOff(adv.WatermarkEnabled), adv.WatermarkText, adv.WatermarkPosition,
			adv.UploadConnections, adv.ProgressUpdateInterval,
		),
		rows: []chat.ButtonRow{
			{{Label: "💧 Watermark", Data: "advanced_watermark"}},
			{{Label: "📝 Watermark Text", Data: "advanced_watermark_text"}},
			{{Label: "📍 Watermark Position", Data: "advanced_watermark_pos"}},
			{{Label: "🔗 Upload Connections", Data: "advanced_upload_conn"}},
			{{Label: "⏱ Progress Interval", Data: "advanced_progress"}},
			backRow("settings_main"),
		},
	}
}

func (b *Bot) thumbnailMenu(userID int64) menu {
	th := b.deps.Settings.Thumbnail(userID)
	url := th.CustomThumbnailURL
	if url == "" {
		url = "Not set"
	} else if len(url) > 50 {
		url = url[:50] + "..."
	}

	return menu{
		text: fmt.Sprintf(
			"🖼️ **Thumbnail Settings**\n\n"+
				"**Auto Generate**: %s\n"+
				"**Custom URL**: `%s`\n"+
				"**Timestamp**: `%d%%`\n\n"+
				"Select a setting to change:",
			onOff(th.AutoGenerateThumbnail), url, th.TimestampPercent,
		),
		rows: []chat.ButtonRow{
			{{Label: "🤖 Auto Generate", Data: "thumb_auto_generate"}},
			{{Label: "🔗 Custom URL", Data: "thumb_custom_url"}},
			{{Label: "⏱ Timestamp", Data: "thumb_timestamp"}},
			{{Label: "👁 Preview Thumbnail", Data: "thumb_preview"}},
			{{Label: "🗑 Clear URL", Data: "thumb_clear_url"}},
			backRow("settings_main"),
		},
	}
}

func (b *Bot) currentMenu(userID int64) menu {
	profile := b.deps.Settings.ActiveProfile(userID, b.deps.Engine.Hardware())
	out := b.deps.Settings.Output(userID)

	return menu{
		text: fmt.Sprintf(
			"📊 **Current Settings**\n\n"+
				"🎯 **Preset**: `%s`\n\n"+
				"**Encoding**\n"+
				"**Codec**: `%s`\n"+
				"**Speed**: `%s`\n"+
				"**Quality (CRF)**: `%d`\n"+
				"**Resolution**: `%s`\n"+
				"**FPS**: `%s`\n"+
				"**Audio Bitrate**: `%s`\n"+
				"**Hardware**: %s\n\n"+
				"**Output**\n"+
				"**Template**: `%s`\n"+
				"**Upload Mode**: `%s`\n"+
				"**Max File Size**: `%d MB`\n"+
				"**Max Queue Size**: `%d`",
			presetTitle(b.deps.Settings.ActivePreset(userID)),
			profile.Codec, profile.SpeedPreset, profile.QualityQP,
			scaleText(profile.ScaleHeight), fpsText(profile.FPS), profile.AudioBitrate,
			onOff(profile.IsHardware()),
			out.FilenameTemplate, out.DefaultUploadMode, out.MaxFileSize, out.MaxQueueSize,
		),
		rows: []chat.ButtonRow{backRow("settings_main")},
	}
}

func resetMenu() menu {
	return menu{
		text: "🔄 **Reset Settings**\n\n" +
			"⚠️ This will reset ALL settings to default values.\n" +
			"This action cannot be undone.\n\n" +
			"Are you sure?",
		rows: []chat.ButtonRow{
			{{Label: "✅ Yes, Reset All", Data: "confirm_reset"}},
			{{Label: "❌ Cancel", Data: "settings_main"}},
		},
	}
}

func (b *Bot) codecMenu() menu {
	rows := []chat.ButtonRow{
		{{Label: "libx264 (H.264 CPU)", Data: "set_codec_libx264"}},
		{{Label: "libx265 (H.265 CPU)", Data: "set_codec_libx265"}},
	}
	switch b.deps.Engine.Engine {
	case ffmpeg.EngineNVIDIA:
		rows = append(rows,
			chat.ButtonRow{{Label: "h264_nvenc (H.264 GPU)", Data: "set_codec_h264_nvenc"}},
			chat.ButtonRow{{Label: "hevc_nvenc (H.265 GPU)", Data: "set_codec_hevc_nvenc"}},
		)
	case ffmpeg.EngineVAAPI:
		rows = append(rows,
			chat.ButtonRow{{Label: "h264_vaapi (H.264 GPU)", Data: "set_codec_h264_vaapi"}},
			chat.ButtonRow{{Label: "hevc_vaapi (H.265 GPU)", Data: "set_codec_hevc_vaapi"}},
		)
	}
	rows = append(rows, backRow("settings_custom"))

	return menu{
		text: "🎥 **Video Codec**\n\nSelect the encoder:",
		rows: rows,
	}
}

var cpuSpeedPresets = []string{"ultrafast", "superfast", "veryfast", "fast", "medium", "slow", "veryslow"}

var nvencSpeedPresets = []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7"}

func (b *Bot) speedMenu(userID int64) menu {
	kv := b.deps.Settings.GetCategory(settings.CategoryCompression, userID)
	codec, _ := kv["v_codec"].(string)

	names := cpuSpeedPresets
	if strings.HasSuffix(codec, "_nvenc") || strings.HasSuffix(codec, "_vaapi") {
		names = nvencSpeedPresets
	}

	rows := make([]chat.ButtonRow, 0, len(names)+1)
	for _, name := range names {
		rows = append(rows, chat.ButtonRow{{Label: name, Data: "set_speed_" + name}})
	}
	rows = append(rows, backRow("settings_custom"))

	return menu{
		text: fmt.Sprintf("⚡ **Speed Preset**\n\nCurrent codec: `%s`\nSelect the encoder speed:", codec),
		rows: rows,
	}
}

func resolutionMenu() menu {
	return menu{
		text: "📐 **Resolution**\n\nSelect the output height:",
		rows: []chat.ButtonRow{
			{{Label: "🔄 Keep Original", Data: "set_resolution_0"}},
			{{Label: "📱 720p (HD)", Data: "set_resolution_720"}},
			{{Label: "🖥️ 1080p (Full HD)", Data: "set_resolution_1080"}},
			{{Label: "📺 1440p (2K)", Data: "set_resolution_1440"}},
			{{Label: "🎬 2160p (4K)", Data: "set_resolution_2160"}},
			backRow("settings_custom"),
		},
	}
}

func audioMenu() menu {
	return menu{
		text: "🔊 **Audio Bitrate**\n\nSelect the audio bitrate:",
		rows: []chat.ButtonRow{
			{{Label: "96k (Low)", Data: "set_audio_96k"}},
			{{Label: "128k (Standard)", Data: "set_audio_128k"}},
			{{Label: "192k (Good)", Data: "set_audio_192k"}},
			{{Label: "256k (High)", Data: "set_audio_256k"}},
			{{Label: "320k (Best)", Data: "set_audio_320k"}},
			backRow("settings_custom"),
		},
	}
}

func watermarkPosMenu() menu {
	return menu{
		text: "📍 **Watermark Position**\n\nSelect where the watermark is drawn:",
		rows: []chat.ButtonRow{
			{{Label: "↖️ Top Left", Data: "set_watermark_pos_top-left"}},
			{{Label: "↗️ Top Right", Data: "set_watermark_pos_top-right"}},
			{{Label: "↙️ Bottom Left", Data: "set_watermark_pos_bottom-left"}},
			{{Label: "↘️ Bottom Right", Data: "set_watermark_pos_bottom-right"}},
			{{Label: "🎯 Center", Data: "set_watermark_pos_center"}},
			backRow("settings_advanced"),
		},
	}
}
