package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmylchreest/compressr/internal/chat"
	"github.com/jmylchreest/compressr/internal/settings"
)

// promptSpec describes one text-input setting: where the value lands, how
// the raw reply is parsed and which menu to show once it sticks.
type promptSpec struct {
	category string
	key      string
	numeric  bool
	text     string
	after    func(*Bot, int64) menu
}

var promptSpecs = map[string]promptSpec{
	"custom_quality": {
		category: settings.CategoryCompression,
		key:      "v_qp",
		numeric:  true,
		text: "🎯 **Set Quality (CRF)**\n\n" +
			"Enter a CRF value (0-51):\n" +
			"Lower = better quality, larger file\n\n" +
			"Recommended: 18-28",
		after: (*Bot).customMenu,
	},
	"custom_fps": {
		category: settings.CategoryCompression,
		key:      "v_fps",
		numeric:  true,
		text: "🎬 **Set FPS**\n\n" +
			"Enter the target FPS (0-120):\n" +
			"0 keeps the original frame rate\n\n" +
			"Common: 24, 30, 60",
		after: (*Bot).customMenu,
	},
	"output_filename": {
		category: settings.CategoryOutput,
		key:      "filename_template",
		text: "📝 **Set Filename Template**\n\n" +
			"Available variables:\n" +
			"`{original_name}` - source file name\n" +
			"`{preset}` - active preset\n" +
			"`{resolution}` - output height\n" +
			"`{codec}` - video codec\n" +
			"`{date}` / `{time}` - encode timestamp\n\n" +
			"Send the new template:",
		after: (*Bot).outputMenu,
	},
	"output_max_size": {
		category: settings.CategoryOutput,
		key:      "max_file_size",
		numeric:  true,
		text: "📦 **Set Max File Size**\n\n" +
			"Enter the admission limit in MB (1-8000):",
		after: (*Bot).outputMenu,
	},
	"output_queue_size": {
		category: settings.CategoryOutput,
		key:      "max_queue_size",
		numeric:  true,
		text: "📋 **Set Max Queue Size**\n\n" +
			"Enter how many jobs may wait in the queue (1-50):",
		after: (*Bot).outputMenu,
	},
	"preview_count": {
		category: settings.CategoryPreview,
		key:      "screenshot_count",
		numeric:  true,
		text: "🔢 **Set Screenshot Count**\n\n" +
			"Enter how many screenshots to take (1-20):",
		after: (*Bot).previewMenu,
	},
	"preview_duration": {
		category: settings.CategoryPreview,
		key:      "preview_duration",
		numeric:  true,
		text: "⏱ **Set Preview Duration**\n\n" +
			"Enter the preview clip length in seconds (5-60):",
		after: (*Bot).previewMenu,
	},
	"preview_quality": {
		category: settings.CategoryPreview,
		key:      "preview_quality",
		numeric:  true,
		text: "🎯 **Set Preview Quality**\n\n" +
			"Enter the preview CRF (18-35):",
		after: (*Bot).previewMenu,
	},
	"thumb_custom_url": {
		category: settings.CategoryThumbnail,
		key:      "custom_thumbnail_url",
		text: "🔗 **Set Custom Thumbnail URL**\n\n" +
			"Send a direct http(s) link to a JPEG or PNG image:",
		after: (*Bot).thumbnailMenu,
	},
	"thumb_timestamp": {
		category: settings.CategoryThumbnail,
		key:      "thumbnail_timestamp_percent",
		numeric:  true,
		text: "⏱ **Set Thumbnail Timestamp**\n\n" +
			"Enter where to grab the frame, as a percentage of the video (1-99):",
		after: (*Bot).thumbnailMenu,
	},
	"advanced_watermark_text": {
		category: settings.CategoryAdvanced,
		key:      "watermark_text",
		text: "📝 **Set Watermark Text**\n\n" +
			"Send the watermark text (1-50 characters):",
		after: (*Bot).advancedMenu,
	},
	"advanced_upload_conn": {
		category: settings.CategoryAdvanced,
		key:      "upload_connections",
		numeric:  true,
		text: "🔗 **Set Upload Connections**\n\n" +
			"Enter the number of parallel upload connections (1-10):",
		after: (*Bot).advancedMenu,
	},
	"advanced_progress": {
		category: settings.CategoryAdvanced,
		key:      "progress_update_interval",
		numeric:  true,
		text: "⏱ **Set Progress Interval**\n\n" +
			"Enter seconds between progress updates (1-30):",
		after: (*Bot).advancedMenu,
	},
}

// promptInput swaps the menu message for a prompt and arms the user's
// pending-input slot. The next plain message from that user is the value.
func (b *Bot) promptInput(ctx context.Context, cb chat.Callback, key string) {
	spec, ok := promptSpecs[key]
	if !ok {
		b.answer(ctx, cb.ID, "Unknown setting")
		return
	}
	b.setPrompt(cb.UserID, key)
	b.edit(ctx, cb.Message, spec.text, chat.ButtonRow{{Label: "❌ Cancel", Data: "settings_main"}})
	b.answer(ctx, cb.ID, "")
}

// consumePrompt resolves a pending text prompt against an inbound message.
// It reports whether the message was consumed. Invalid input re-arms the
// prompt so the user can try again without reopening the menu.
func (b *Bot) consumePrompt(ctx context.Context, msg chat.Message) bool {
	key, ok := b.takePrompt(msg.UserID)
	if !ok {
		return false
	}
	spec, ok := promptSpecs[key]
	if !ok {
		return true
	}

	raw := strings.TrimSpace(msg.Text)
	var value any = raw
	if spec.numeric {
		n, err := strconv.Atoi(raw)
		if err != nil {
			b.setPrompt(msg.UserID, key)
			b.reply(ctx, msg.Ref, "❌ Please send a number")
			return true
		}
		value = n
	}

	if err := b.deps.Settings.Set(spec.category, spec.key, value, msg.UserID); err != nil {
		b.setPrompt(msg.UserID, key)
		b.reply(ctx, msg.Ref, "❌ "+err.Error())
		return true
	}

	b.reply(ctx, msg.Ref, "✅ Setting updated")
	m := spec.after(b, msg.UserID)
	b.send(ctx, msg.Ref.ChatID, m.text, m.rows...)
	return true
}

func (b *Bot) setPrompt(userID int64, key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prompts[userID] = key
}

func (b *Bot) takePrompt(userID int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key, ok := b.prompts[userID]
	if ok {
		delete(b.prompts, userID)
	}
	return key, ok
}

func (b *Bot) clearPrompt(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.prompts, userID)
}
