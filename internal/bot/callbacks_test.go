package bot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/compressr/internal/chat"
	"github.com/jmylchreest/compressr/internal/ffmpeg"
	"github.com/jmylchreest/compressr/internal/jobs"
	"github.com/jmylchreest/compressr/internal/settings"
	"github.com/jmylchreest/compressr/internal/testutil"
)

func userCallback(userID int64, data string) chat.Callback {
	return chat.Callback{
		ID:      "cb1",
		UserID:  userID,
		Message: chat.MessageRef{ChatID: userID, MessageID: 50},
		Data:    data,
	}
}

func buttonData(rows []chat.ButtonRow) []string {
	var datas []string
	for _, row := range rows {
		for _, btn := range row {
			datas = append(datas, btn.Data)
		}
	}
	return datas
}

func (h *botHarness) lastEdit(t *testing.T) testutil.Edit {
	t.Helper()
	edits := h.transport.Edits()
	require.NotEmpty(t, edits)
	return edits[len(edits)-1]
}

func TestCallback_InlineHelpAndBack(t *testing.T) {
	h := newBotHarness(t)
	ctx := context.Background()

	h.bot.HandleCallback(ctx, userCallback(strangerID, "ihelp"))
	edit := h.lastEdit(t)
	assert.Equal(t, inlineHelpText, edit.Text)
	assert.Equal(t, []string{"beck"}, buttonData(edit.Rows))

	h.bot.HandleCallback(ctx, userCallback(strangerID, "beck"))
	edit = h.lastEdit(t)
	assert.Equal(t, startText, edit.Text)
	assert.Equal(t, []string{"ihelp", "qstatus"}, buttonData(edit.Rows))
}

func TestCallback_QueueStatusIsPublic(t *testing.T) {
	h := newBotHarness(t)

	h.bot.HandleCallback(context.Background(), userCallback(strangerID, "qstatus"))

	assert.Equal(t, []string{"cb1:Idle, 0 queued"}, h.transport.Answered())
}

func TestCallback_NonOwnerDenied(t *testing.T) {
	h := newBotHarness(t)

	h.bot.HandleCallback(context.Background(), userCallback(strangerID, "settings_main"))

	assert.Equal(t, []string{"cb1:❌ Access denied"}, h.transport.Answered())
	assert.Empty(t, h.transport.Edits())
}

func TestCallback_MenuNavigation(t *testing.T) {
	h := newBotHarness(t)
	ctx := context.Background()

	screens := []struct {
		data string
		want string
	}{
		{"settings_main", "⚙️ **Bot Settings Menu**"},
		{"settings_presets", "🎯 **Compression Presets**"},
		{"settings_custom", "🔧 **Custom Compression Settings**"},
		{"settings_output", "📤 **Output Settings**"},
		{"settings_preview", "🖼 **Preview Settings**"},
		{"settings_advanced", "⚙️ **Advanced Settings**"},
		{"settings_thumbnail", "🖼️ **Thumbnail Settings**"},
		{"settings_current", "📊 **Current Settings**"},
		{"settings_reset", "🔄 **Reset Settings**"},
	}
	for _, screen := range screens {
		h.bot.HandleCallback(ctx, userCallback(ownerID, screen.data))
		assert.Contains(t, h.lastEdit(t).Text, screen.want, "screen %s", screen.data)
	}

	// Every section carries a way back to the main menu.
	for _, screen := range screens[1:] {
		h.bot.HandleCallback(ctx, userCallback(ownerID, screen.data))
		assert.Contains(t, buttonData(h.lastEdit(t).Rows), "settings_main", "screen %s", screen.data)
	}
}

func TestCallback_CloseDeletesMenu(t *testing.T) {
	h := newBotHarness(t)

	cb := userCallback(ownerID, "settings_close")
	h.bot.HandleCallback(context.Background(), cb)

	require.Len(t, h.transport.Deleted(), 1)
	assert.Equal(t, cb.Message, h.transport.Deleted()[0])
	assert.Equal(t, []string{"cb1:Settings closed"}, h.transport.Answered())
}

func TestCallback_PresetSelection(t *testing.T) {
	h := newBotHarness(t)

	h.bot.HandleCallback(context.Background(), userCallback(ownerID, "preset_fast"))

	assert.Equal(t, "fast", h.store.ActivePreset(ownerID))
	assert.Contains(t, h.transport.Answered(), "cb1:✅ Preset changed to Fast")

	edit := h.lastEdit(t)
	assert.Contains(t, edit.Text, "**Active**: `Fast`")
	var fastLabel string
	for _, row := range edit.Rows {
		for _, btn := range row {
			if btn.Data == "preset_fast" {
				fastLabel = btn.Label
			}
		}
	}
	assert.Contains(t, fastLabel, " ✅", "active preset is marked in its button")
}

func TestCallback_PresetMenuFollowsHardware(t *testing.T) {
	cpu := newBotHarness(t)
	cpu.bot.HandleCallback(context.Background(), userCallback(ownerID, "settings_presets"))
	assert.NotContains(t, buttonData(cpu.lastEdit(t).Rows), "preset_nvidia_fast")

	nv := newBotHarnessWithEngine(t, ffmpeg.Detection{Engine: ffmpeg.EngineNVIDIA, GPUName: "GeForce RTX 3060"})
	nv.bot.HandleCallback(context.Background(), userCallback(ownerID, "settings_presets"))
	datas := buttonData(nv.lastEdit(t).Rows)
	assert.Contains(t, datas, "preset_nvidia_fast")
	assert.Contains(t, datas, "preset_custom")
}

func TestCallback_HwaccelToggle(t *testing.T) {
	h := newBotHarness(t)
	ctx := context.Background()

	h.bot.HandleCallback(ctx, userCallback(ownerID, "custom_hwaccel"))

	hw, _ := h.store.Get(settings.CategoryCompression, "enable_hardware_acceleration", ownerID)
	assert.Equal(t, true, hw)
	assert.Contains(t, h.transport.Answered(), "cb1:Hardware Accel ✅ Enabled")
	assert.Contains(t, h.lastEdit(t).Text, "**Hardware Accel**: ✅ Enabled")

	h.bot.HandleCallback(ctx, userCallback(ownerID, "custom_hwaccel"))
	hw, _ = h.store.Get(settings.CategoryCompression, "enable_hardware_acceleration", ownerID)
	assert.Equal(t, false, hw)
}

func TestCallback_CodecSelection(t *testing.T) {
	h := newBotHarness(t)
	ctx := context.Background()

	h.bot.HandleCallback(ctx, userCallback(ownerID, "custom_codec"))
	datas := buttonData(h.lastEdit(t).Rows)
	assert.Contains(t, datas, "set_codec_libx264")
	assert.Contains(t, datas, "set_codec_libx265")
	assert.NotContains(t, datas, "set_codec_h264_nvenc", "CPU engines hide GPU encoders")

	h.bot.HandleCallback(ctx, userCallback(ownerID, "set_codec_libx265"))
	codec, _ := h.store.Get(settings.CategoryCompression, "v_codec", ownerID)
	assert.Equal(t, "libx265", codec)
	assert.Contains(t, h.transport.Answered(), "cb1:✅ Updated to libx265")
	assert.Contains(t, h.lastEdit(t).Text, "**Codec**: `libx265`")
}

func TestCallback_NvidiaCodecMenu(t *testing.T) {
	h := newBotHarnessWithEngine(t, ffmpeg.Detection{Engine: ffmpeg.EngineNVIDIA, GPUName: "GeForce RTX 3060"})

	h.bot.HandleCallback(context.Background(), userCallback(ownerID, "custom_codec"))

	datas := buttonData(h.lastEdit(t).Rows)
	assert.Contains(t, datas, "set_codec_h264_nvenc")
	assert.Contains(t, datas, "set_codec_hevc_nvenc")
}

func TestCallback_SpeedMenuFollowsCodec(t *testing.T) {
	h := newBotHarness(t)
	ctx := context.Background()

	h.bot.HandleCallback(ctx, userCallback(ownerID, "custom_preset"))
	assert.Contains(t, buttonData(h.lastEdit(t).Rows), "set_speed_veryslow")

	require.NoError(t, h.store.Set(settings.CategoryCompression, "v_codec", "h264_nvenc", ownerID))
	h.bot.HandleCallback(ctx, userCallback(ownerID, "custom_preset"))
	datas := buttonData(h.lastEdit(t).Rows)
	assert.Contains(t, datas, "set_speed_p1")
	assert.NotContains(t, datas, "set_speed_veryslow")
}

func TestCallback_ResolutionSelection(t *testing.T) {
	h := newBotHarness(t)
	ctx := context.Background()

	h.bot.HandleCallback(ctx, userCallback(ownerID, "custom_resolution"))
	assert.Contains(t, buttonData(h.lastEdit(t).Rows), "set_resolution_720")

	h.bot.HandleCallback(ctx, userCallback(ownerID, "set_resolution_720"))
	scale, _ := h.store.Get(settings.CategoryCompression, "v_scale", ownerID)
	assert.Equal(t, 720, scale)

	h.bot.HandleCallback(ctx, userCallback(ownerID, "set_resolution_0"))
	scale, _ = h.store.Get(settings.CategoryCompression, "v_scale", ownerID)
	assert.Equal(t, 0, scale)
	assert.Contains(t, h.lastEdit(t).Text, "**Resolution**: `Original`")
}

func TestCallback_AudioSelection(t *testing.T) {
	h := newBotHarness(t)

	h.bot.HandleCallback(context.Background(), userCallback(ownerID, "set_audio_320k"))

	bitrate, _ := h.store.Get(settings.CategoryCompression, "a_bitrate", ownerID)
	assert.Equal(t, "320k", bitrate)
}

func TestCallback_WatermarkPosition(t *testing.T) {
	h := newBotHarness(t)
	ctx := context.Background()

	h.bot.HandleCallback(ctx, userCallback(ownerID, "advanced_watermark_pos"))
	assert.Contains(t, buttonData(h.lastEdit(t).Rows), "set_watermark_pos_center")

	h.bot.HandleCallback(ctx, userCallback(ownerID, "set_watermark_pos_center"))
	assert.Equal(t, "center", h.store.Advanced(ownerID).WatermarkPosition)
	assert.Contains(t, h.lastEdit(t).Text, "⚙️ **Advanced Settings**")
}

func TestCallback_UploadModeFlip(t *testing.T) {
	h := newBotHarness(t)

	h.bot.HandleCallback(context.Background(), userCallback(ownerID, "output_upload_mode"))

	assert.Equal(t, "File", h.store.Output(ownerID).DefaultUploadMode)
	assert.Contains(t, h.lastEdit(t).Text, "**Upload Mode**: `File`")
}

func TestCallback_PromptFlow(t *testing.T) {
	h := newBotHarness(t)
	ctx := context.Background()

	h.bot.HandleCallback(ctx, userCallback(ownerID, "custom_quality"))
	edit := h.lastEdit(t)
	assert.Contains(t, edit.Text, "🎯 **Set Quality (CRF)**")
	assert.Equal(t, []string{"settings_main"}, buttonData(edit.Rows), "prompt carries a cancel button")

	// Junk input re-arms the prompt.
	h.bot.HandleMessage(ctx, userMessage(ownerID, "abc"))
	assert.Equal(t, "❌ Please send a number", h.transport.LastMessage().Text)

	// Out-of-range input re-arms too, with the validator's message.
	h.bot.HandleMessage(ctx, userMessage(ownerID, "99"))
	assert.Contains(t, h.transport.LastMessage().Text, "must be between 0 and 51")

	h.bot.HandleMessage(ctx, userMessage(ownerID, "24"))
	qp, _ := h.store.Get(settings.CategoryCompression, "v_qp", ownerID)
	assert.Equal(t, 24, qp)

	msgs := h.transport.Messages()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, "✅ Setting updated", msgs[len(msgs)-2].Text)
	assert.Contains(t, msgs[len(msgs)-1].Text, "🔧 **Custom Compression Settings**", "the section menu is re-sent")

	// The prompt is spent; further text is ignored.
	before := len(h.transport.Messages())
	h.bot.HandleMessage(ctx, userMessage(ownerID, "30"))
	assert.Len(t, h.transport.Messages(), before)
}

func TestCallback_PromptStringSetting(t *testing.T) {
	h := newBotHarness(t)
	ctx := context.Background()

	h.bot.HandleCallback(ctx, userCallback(ownerID, "output_filename"))
	assert.Contains(t, h.lastEdit(t).Text, "📝 **Set Filename Template**")

	h.bot.HandleMessage(ctx, userMessage(ownerID, "{original_name} small"))
	assert.Equal(t, "{original_name} small", h.store.Output(ownerID).FilenameTemplate)
}

func TestCallback_PromptAbandonedByMenu(t *testing.T) {
	h := newBotHarness(t)
	ctx := context.Background()

	h.bot.HandleCallback(ctx, userCallback(ownerID, "custom_quality"))
	h.bot.HandleCallback(ctx, userCallback(ownerID, "settings_main"))

	before := len(h.transport.Messages())
	h.bot.HandleMessage(ctx, userMessage(ownerID, "24"))
	assert.Len(t, h.transport.Messages(), before, "cancelled prompts do not consume text")

	qp, _ := h.store.Get(settings.CategoryCompression, "v_qp", ownerID)
	assert.Equal(t, 26, qp)
}

func TestCallback_PromptAbandonedByCommand(t *testing.T) {
	h := newBotHarness(t)
	ctx := context.Background()

	h.bot.HandleCallback(ctx, userCallback(ownerID, "custom_quality"))
	h.bot.HandleMessage(ctx, userMessage(ownerID, "/ping"))

	before := len(h.transport.Messages())
	h.bot.HandleMessage(ctx, userMessage(ownerID, "24"))
	assert.Len(t, h.transport.Messages(), before)
}

func TestCallback_ThumbnailTimestampPrompt(t *testing.T) {
	h := newBotHarness(t)
	ctx := context.Background()

	h.bot.HandleCallback(ctx, userCallback(ownerID, "thumb_timestamp"))
	assert.Contains(t, h.lastEdit(t).Text, "percentage of the video (1-99)")

	h.bot.HandleMessage(ctx, userMessage(ownerID, "50"))
	assert.Equal(t, 50, h.store.Thumbnail(ownerID).TimestampPercent)
}

func TestCallback_ThumbnailURLAndClear(t *testing.T) {
	h := newBotHarness(t)
	ctx := context.Background()

	h.bot.HandleCallback(ctx, userCallback(ownerID, "thumb_custom_url"))
	h.bot.HandleMessage(ctx, userMessage(ownerID, "https://example.com/cover.jpg"))
	assert.Equal(t, "https://example.com/cover.jpg", h.store.Thumbnail(ownerID).CustomThumbnailURL)

	h.bot.HandleCallback(ctx, userCallback(ownerID, "thumb_clear_url"))
	assert.Empty(t, h.store.Thumbnail(ownerID).CustomThumbnailURL)
	assert.Contains(t, h.lastEdit(t).Text, "**Custom URL**: `Not set`")
}

func TestCallback_ThumbnailPreview(t *testing.T) {
	h := newBotHarness(t)
	ctx := context.Background()

	h.bot.HandleCallback(ctx, userCallback(ownerID, "thumb_preview"))
	assert.Contains(t, h.transport.Answered(), "cb1:No thumbnail set")
	assert.Empty(t, h.transport.Albums())

	require.NoError(t, h.ws.WriteFile("thumb/thumb.jpg", []byte("jpeg-bytes")))

	h.bot.HandleCallback(ctx, userCallback(ownerID, "thumb_preview"))
	albums := h.transport.Albums()
	require.Len(t, albums, 1)
	require.Len(t, albums[0], 1)
	assert.Equal(t, "thumb.jpg", filepath.Base(albums[0][0]))
}

func TestCallback_ResetToDefaults(t *testing.T) {
	h := newBotHarness(t)
	ctx := context.Background()

	require.NoError(t, h.store.Set(settings.CategoryCompression, "v_qp", 30, ownerID))
	require.NoError(t, h.store.SetActivePreset("fast", ownerID))

	h.bot.HandleCallback(ctx, userCallback(ownerID, "settings_reset"))
	assert.Contains(t, h.lastEdit(t).Text, "Are you sure?")

	h.bot.HandleCallback(ctx, userCallback(ownerID, "confirm_reset"))
	assert.Contains(t, h.transport.Answered(), "cb1:✅ Settings reset to defaults")
	assert.Contains(t, h.lastEdit(t).Text, "⚙️ **Bot Settings Menu**")

	qp, _ := h.store.Get(settings.CategoryCompression, "v_qp", ownerID)
	assert.Equal(t, 26, qp, "the overlay override is gone")
	assert.Equal(t, settings.PresetBalanced, h.store.ActivePreset(ownerID))
}

func TestCallback_StatsAlert(t *testing.T) {
	h := newBotHarness(t)
	ctx := context.Background()

	h.bot.HandleCallback(ctx, userCallback(ownerID, "stats404"))
	assert.Contains(t, h.transport.Answered(), "cb1:Invalid stats request")

	dir := t.TempDir()
	input := filepath.Join(dir, "input.mp4")
	output := filepath.Join(dir, "output.mp4")
	require.NoError(t, os.WriteFile(input, make([]byte, 2048), 0o644))
	require.NoError(t, os.WriteFile(output, make([]byte, 512), 0o644))

	key := h.registry.Register(output, input, 1)
	h.bot.HandleCallback(ctx, userCallback(ownerID, "stats"+key))

	answers := h.transport.Answered()
	last := answers[len(answers)-1]
	assert.Contains(t, last, "Downloaded:\n2 KB")
	assert.Contains(t, last, "Compressing:\n512 B")
	assert.Contains(t, last, "🚀 Using: CPU")

	// Paths gone: distinct alert.
	require.NoError(t, os.Remove(output))
	h.bot.HandleCallback(ctx, userCallback(ownerID, "stats"+key))
	answers = h.transport.Answered()
	assert.Contains(t, answers[len(answers)-1], "Files not found")
}

func TestCallback_SkipCancelsJob(t *testing.T) {
	h := newBotHarness(t)
	ctx := context.Background()

	job := jobs.NewUploadJob(ctx, ownerID, ownerID, jobs.UploadPayload{Locator: "m1", SuggestedName: "a.mp4", Size: 10})
	_, err := h.queue.Admit(job, 10)
	require.NoError(t, err)
	key := h.registry.Register("/tmp/out.mp4", "/tmp/in.mp4", job.Seq)

	h.bot.HandleCallback(ctx, userCallback(ownerID, "skip"+key))
	assert.True(t, job.Cancelled())
	assert.Contains(t, h.transport.Answered(), "cb1:✅ Cancelled")

	// After the job drains, the same button reports it is gone.
	h.queue.Finish()
	h.bot.HandleCallback(ctx, userCallback(ownerID, "skip"+key))
	answers := h.transport.Answered()
	assert.Contains(t, answers[len(answers)-1], "Job already finished")

	h.bot.HandleCallback(ctx, userCallback(ownerID, "skip404"))
	answers = h.transport.Answered()
	assert.Contains(t, answers[len(answers)-1], "Invalid cancel request")
}

func TestCallback_UnknownSetting(t *testing.T) {
	h := newBotHarness(t)

	h.bot.HandleCallback(context.Background(), userCallback(ownerID, "garbage_data"))

	assert.Equal(t, []string{"cb1:Unknown setting"}, h.transport.Answered())
}
