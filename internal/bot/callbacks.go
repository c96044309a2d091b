package bot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/jmylchreest/compressr/internal/chat"
	"github.com/jmylchreest/compressr/internal/settings"
	"github.com/jmylchreest/compressr/internal/util"
)

// renderMenu applies one menu screen to the message behind a callback:
// exactly one edit and one answer per callback.
func (b *Bot) renderMenu(ctx context.Context, cb chat.Callback, m menu, toast string) {
	b.edit(ctx, cb.Message, m.text, m.rows...)
	b.answer(ctx, cb.ID, toast)
}

func (b *Bot) settingsCallback(ctx context.Context, cb chat.Callback) {
	// Opening any menu abandons a pending text prompt.
	b.clearPrompt(cb.UserID)

	switch cb.Data {
	case "settings_main":
		b.renderMenu(ctx, cb, b.mainMenu(cb.UserID), "")
		return
	case "settings_presets":
		b.renderMenu(ctx, cb, b.presetsMenu(cb.UserID), "")
		return
	case "settings_custom":
		b.renderMenu(ctx, cb, b.customMenu(cb.UserID), "")
		return
	case "settings_output":
		b.renderMenu(ctx, cb, b.outputMenu(cb.UserID), "")
		return
	case "settings_preview":
		b.renderMenu(ctx, cb, b.previewMenu(cb.UserID), "")
		return
	case "settings_advanced":
		b.renderMenu(ctx, cb, b.advancedMenu(cb.UserID), "")
		return
	case "settings_thumbnail":
		b.renderMenu(ctx, cb, b.thumbnailMenu(cb.UserID), "")
		return
	case "settings_current":
		b.renderMenu(ctx, cb, b.currentMenu(cb.UserID), "")
		return
	case "settings_reset":
		b.renderMenu(ctx, cb, resetMenu(), "")
		return
	case "settings_close":
		b.delete(ctx, cb.Message)
		b.answer(ctx, cb.ID, "Settings closed")
		return
	case "confirm_reset":
		if err := b.deps.Settings.ResetToDefaults(cb.UserID); err != nil {
			b.logger.Warn("settings reset failed", slog.Any("error", err))
			b.answer(ctx, cb.ID, "❌ "+err.Error())
			return
		}
		b.renderMenu(ctx, cb, b.mainMenu(cb.UserID), "✅ Settings reset to defaults")
		return
	}

	switch {
	case strings.HasPrefix(cb.Data, "preset_"):
		b.selectPreset(ctx, cb, strings.TrimPrefix(cb.Data, "preset_"))
	case strings.HasPrefix(cb.Data, "custom_"):
		b.customCallback(ctx, cb, strings.TrimPrefix(cb.Data, "custom_"))
	case strings.HasPrefix(cb.Data, "output_"):
		b.outputCallback(ctx, cb, strings.TrimPrefix(cb.Data, "output_"))
	case strings.HasPrefix(cb.Data, "preview_"):
		b.previewCallback(ctx, cb, strings.TrimPrefix(cb.Data, "preview_"))
	case strings.HasPrefix(cb.Data, "advanced_"):
		b.advancedCallback(ctx, cb, strings.TrimPrefix(cb.Data, "advanced_"))
	case strings.HasPrefix(cb.Data, "thumb_"):
		b.thumbCallback(ctx, cb, strings.TrimPrefix(cb.Data, "thumb_"))
	case strings.HasPrefix(cb.Data, "set_codec_"):
		b.applyChoice(ctx, cb, settings.CategoryCompression, "v_codec",
			strings.TrimPrefix(cb.Data, "set_codec_"), b.customMenu(cb.UserID))
	case strings.HasPrefix(cb.Data, "set_speed_"):
		b.applyChoice(ctx, cb, settings.CategoryCompression, "v_preset",
			strings.TrimPrefix(cb.Data, "set_speed_"), b.customMenu(cb.UserID))
	case strings.HasPrefix(cb.Data, "set_resolution_"):
		height, err := strconv.Atoi(strings.TrimPrefix(cb.Data, "set_resolution_"))
		if err != nil {
			b.answer(ctx, cb.ID, "Unknown setting")
			return
		}
		b.applyChoice(ctx, cb, settings.CategoryCompression, "v_scale", height, b.customMenu(cb.UserID))
	case strings.HasPrefix(cb.Data, "set_audio_"):
		b.applyChoice(ctx, cb, settings.CategoryCompression, "a_bitrate",
			strings.TrimPrefix(cb.Data, "set_audio_"), b.customMenu(cb.UserID))
	case strings.HasPrefix(cb.Data, "set_watermark_pos_"):
		b.applyChoice(ctx, cb, settings.CategoryAdvanced, "watermark_position",
			strings.TrimPrefix(cb.Data, "set_watermark_pos_"), b.advancedMenu(cb.UserID))
	default:
		b.answer(ctx, cb.ID, "Unknown setting")
	}
}

func (b *Bot) selectPreset(ctx context.Context, cb chat.Callback, name string) {
	if err := b.deps.Settings.SetActivePreset(name, cb.UserID); err != nil {
		b.answer(ctx, cb.ID, "❌ "+err.Error())
		return
	}
	b.renderMenu(ctx, cb, b.presetsMenu(cb.UserID), "✅ Preset changed to "+presetTitle(name))
}

// applyChoice stores one validated value picked from a selection submenu,
// then re-renders the section the submenu belongs to.
func (b *Bot) applyChoice(ctx context.Context, cb chat.Callback, category, key string, value any, after menu) {
	if err := b.deps.Settings.Set(category, key, value, cb.UserID); err != nil {
		b.answer(ctx, cb.ID, "❌ "+err.Error())
		return
	}
	b.renderMenu(ctx, cb, after, fmt.Sprintf("✅ Updated to %v", value))
}

// toggle flips a boolean setting and re-renders its section menu. The menu
// is built after the write so it shows the new state.
func (b *Bot) toggle(ctx context.Context, cb chat.Callback, category, key, label string, after func(int64) menu) {
	current, _ := b.deps.Settings.Get(category, key, cb.UserID)
	enabled, _ := current.(bool)
	next := !enabled

	if err := b.deps.Settings.Set(category, key, next, cb.UserID); err != nil {
		b.answer(ctx, cb.ID, "❌ "+err.Error())
		return
	}
	b.renderMenu(ctx, cb, after(cb.UserID), label+" "+onOff(next))
}

func (b *Bot) customCallback(ctx context.Context, cb chat.Callback, action string) {
	switch action {
	case "codec":
		b.renderMenu(ctx, cb, b.codecMenu(), "")
	case "preset":
		b.renderMenu(ctx, cb, b.speedMenu(cb.UserID), "")
	case "quality":
		b.promptInput(ctx, cb, "custom_quality")
	case "resolution":
		b.renderMenu(ctx, cb, resolutionMenu(), "")
	case "fps":
		b.promptInput(ctx, cb, "custom_fps")
	case "audio":
		b.renderMenu(ctx, cb, audioMenu(), "")
	case "hwaccel":
		b.toggle(ctx, cb, settings.CategoryCompression, "enable_hardware_acceleration", "Hardware Accel", b.customMenu)
	default:
		b.answer(ctx, cb.ID, "Unknown setting")
	}
}

func (b *Bot) outputCallback(ctx context.Context, cb chat.Callback, action string) {
	switch action {
	case "filename":
		b.promptInput(ctx, cb, "output_filename")
	case "upload_mode":
		next := "Document"
		if b.deps.Settings.Output(cb.UserID).DefaultUploadMode == "Document" {
			next = "File"
		}
		b.applyChoice(ctx, cb, settings.CategoryOutput, "default_upload_mode", next, b.outputMenu(cb.UserID))
	case "auto_delete":
		b.toggle(ctx, cb, settings.CategoryOutput, "auto_delete_original", "Auto Delete", b.outputMenu)
	case "max_size":
		b.promptInput(ctx, cb, "output_max_size")
	case "queue_size":
		b.promptInput(ctx, cb, "output_queue_size")
	default:
		b.answer(ctx, cb.ID, "Unknown setting")
	}
}

func (b *Bot) previewCallback(ctx context.Context, cb chat.Callback, action string) {
	switch action {
	case "screenshots":
		b.toggle(ctx, cb, settings.CategoryPreview, "enable_screenshots", "Screenshots", b.previewMenu)
	case "count":
		b.promptInput(ctx, cb, "preview_count")
	case "video":
		b.toggle(ctx, cb, settings.CategoryPreview, "enable_video_preview", "Video Preview", b.previewMenu)
	case "duration":
		b.promptInput(ctx, cb, "preview_duration")
	case "quality":
		b.promptInput(ctx, cb, "preview_quality")
	default:
		b.answer(ctx, cb.ID, "Unknown setting")
	}
}

func (b *Bot) advancedCallback(ctx context.Context, cb chat.Callback, action string) {
	switch action {
	case "watermark":
		b.toggle(ctx, cb, settings.CategoryAdvanced, "watermark_enabled", "Watermark", b.advancedMenu)
	case "watermark_text":
		b.promptInput(ctx, cb, "advanced_watermark_text")
	case "watermark_pos":
		b.renderMenu(ctx, cb, watermarkPosMenu(), "")
	case "upload_conn":
		b.promptInput(ctx, cb, "advanced_upload_conn")
	case "progress":
		b.promptInput(ctx, cb, "advanced_progress")
	default:
		b.answer(ctx, cb.ID, "Unknown setting")
	}
}

func (b *Bot) thumbCallback(ctx context.Context, cb chat.Callback, action string) {
	switch action {
	case "auto_generate":
		b.toggle(ctx, cb, settings.CategoryThumbnail, "auto_generate_thumbnail", "Auto Generate", b.thumbnailMenu)
	case "custom_url":
		b.promptInput(ctx, cb, "thumb_custom_url")
	case "timestamp":
		b.promptInput(ctx, cb, "thumb_timestamp")
	case "preview":
		b.sendThumbnailPreview(ctx, cb)
	case "clear_url":
		b.applyChoice(ctx, cb, settings.CategoryThumbnail, "custom_thumbnail_url", "", b.thumbnailMenu(cb.UserID))
	default:
		b.answer(ctx, cb.ID, "Unknown setting")
	}
}

func (b *Bot) sendThumbnailPreview(ctx context.Context, cb chat.Callback) {
	const rel = "thumb/thumb.jpg"
	exists, err := b.deps.Workspace.Exists(rel)
	if err != nil || !exists {
		b.answer(ctx, cb.ID, "No thumbnail set")
		return
	}
	path, err := b.deps.Workspace.ResolvePath(rel)
	if err != nil {
		b.answer(ctx, cb.ID, "No thumbnail set")
		return
	}
	if err := b.deps.Transport.SendPhotos(ctx, cb.Message.ChatID, []string{path}); err != nil {
		b.logger.Warn("thumbnail preview failed", slog.Any("error", err))
		b.answer(ctx, cb.ID, "❌ Could not send thumbnail")
		return
	}
	b.answer(ctx, cb.ID, "")
}

func (b *Bot) statsCallback(ctx context.Context, cb chat.Callback, key string) {
	entry, ok := b.deps.Registry.Lookup(key)
	if !ok {
		b.answer(ctx, cb.ID, "Invalid stats request")
		return
	}

	in, inErr := os.Stat(entry.InputPath)
	out, outErr := os.Stat(entry.OutputPath)
	if inErr != nil || outErr != nil {
		b.answer(ctx, cb.ID, "Files not found")
		return
	}

	b.answer(ctx, cb.ID, fmt.Sprintf(
		"Downloaded:\n%s\n\nCompressing:\n%s\n🚀 Using: %s",
		util.HumanBytes(in.Size()), util.HumanBytes(out.Size()), b.deps.Engine.Label(),
	))
}

func (b *Bot) skipCallback(ctx context.Context, cb chat.Callback, key string) {
	entry, ok := b.deps.Registry.Lookup(key)
	if !ok {
		b.answer(ctx, cb.ID, "Invalid cancel request")
		return
	}
	if !b.deps.Queue.Cancel(entry.JobSeq) {
		b.answer(ctx, cb.ID, "Job already finished")
		return
	}
	b.answer(ctx, cb.ID, "✅ Cancelled")
}
