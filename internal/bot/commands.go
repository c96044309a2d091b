package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/compressr/internal/chat"
	"github.com/jmylchreest/compressr/internal/jobs"
	"github.com/jmylchreest/compressr/internal/models"
	"github.com/jmylchreest/compressr/internal/settings"
	"github.com/jmylchreest/compressr/internal/util"
)

const historyLimit = 10

const startText = "🚀 **Video Compressor**\n\n" +
	"Send a video file or a direct link and get a compressed copy back.\n" +
	"Features:\n" +
	"• GPU-accelerated encoding when available\n" +
	"• Queue system for multiple files\n" +
	"• Real-time progress tracking\n" +
	"• URL downloads via /link\n" +
	"• Configurable presets via /settings"

const inlineHelpText = "📖 **Help Guide**\n\n" +
	"**Commands:**\n" +
	"• /start - Start the bot\n" +
	"• /help - Show the help message\n" +
	"• /ping - Check bot response\n" +
	"• /status - Queue and engine status\n" +
	"• /link - Compress a video from a URL\n" +
	"• /usage - System statistics\n\n" +
	"**Features:**\n" +
	"• GPU-accelerated encoding\n" +
	"• Queue system\n" +
	"• Progress tracking\n" +
	"• URL support\n" +
	"• Hardware detection"

const helpText = "📖 **Help Guide**\n\n" +
	"**Commands:**\n" +
	"• /start - Start the bot\n" +
	"• /help - Show this help message\n" +
	"• /ping - Check bot response\n" +
	"• /status - Queue and engine status\n" +
	"• /link <url> [filename] - Compress a video from a URL\n" +
	"• /settings - Open the settings menu\n" +
	"• /custom - Tune the custom profile, e.g. /custom -qp 24 -scale 720\n" +
	"• /toggle_upload_mode - Switch document/media uploads\n" +
	"• /watermark - Toggle the watermark\n" +
	"• /usage - System statistics\n" +
	"• /history - Recent runs\n\n" +
	"**How to use:**\n" +
	"1. Send or forward a video file\n" +
	"2. The bot compresses it with the active preset\n" +
	"3. Additional files wait in the queue\n" +
	"4. Progress and stats are shown in real-time"

func startRows() []chat.ButtonRow {
	return []chat.ButtonRow{
		{{Label: "ℹ️ HELP", Data: "ihelp"}},
		{{Label: "📊 STATUS", Data: "qstatus"}},
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg chat.Message, cmd string, args []string) {
	switch cmd {
	case "start":
		b.cmdStart(ctx, msg)
		return
	case "ping":
		b.cmdPing(ctx, msg)
		return
	case "help":
		b.cmdHelp(ctx, msg)
		return
	}

	if !b.isOwner(msg.UserID) {
		return
	}

	switch cmd {
	case "link":
		b.cmdLink(ctx, msg, args)
	case "status":
		b.cmdStatus(ctx, msg)
	case "usage":
		b.cmdUsage(ctx, msg)
	case "history":
		b.cmdHistory(ctx, msg)
	case "settings":
		b.cmdSettings(ctx, msg)
	case "custom":
		b.cmdCustom(ctx, msg, args)
	case "toggle_upload_mode":
		b.cmdToggleUploadMode(ctx, msg)
	case "watermark":
		b.cmdWatermark(ctx, msg)
	}
}

func (b *Bot) cmdStart(ctx context.Context, msg chat.Message) {
	b.send(ctx, msg.Ref.ChatID, startText, startRows()...)
}

func (b *Bot) cmdHelp(ctx context.Context, msg chat.Message) {
	b.reply(ctx, msg.Ref, helpText)
}

func (b *Bot) cmdPing(ctx context.Context, msg chat.Message) {
	started := time.Now()
	ref, err := b.deps.Transport.ReplyMessage(ctx, msg.Ref, "Pinging...")
	if err != nil {
		b.logger.Warn("ping reply failed", slog.Any("error", err))
		return
	}
	latency := time.Since(started).Milliseconds()
	b.edit(ctx, ref, fmt.Sprintf("🏓 **Pong!**\n⚡ `%dms`\n🚀 Using %s", latency, b.deps.Engine.Label()))
}

func (b *Bot) cmdStatus(ctx context.Context, msg chat.Message) {
	snap := b.deps.Queue.Snapshot()
	working := "No"
	if snap.Working {
		working = "Yes"
	}
	out := b.deps.Settings.Output(msg.UserID)

	b.reply(ctx, msg.Ref, fmt.Sprintf(
		"🤖 **Bot Status**\n\n"+
			"🔧 **Working**: %s\n"+
			"📋 **Queue Size**: %d/%d\n"+
			"🚀 **Engine**: %s\n"+
			"⏰ **Uptime**: %s",
		working, len(snap.Queued), out.MaxQueueSize, b.deps.Engine.Label(),
		util.HumanDurationMS(time.Since(b.started).Milliseconds()),
	))
}

func (b *Bot) cmdUsage(ctx context.Context, msg chat.Message) {
	snap := b.deps.System.Collect(ctx)

	var sb strings.Builder
	sb.WriteString("💻 **System Statistics**\n\n")
	fmt.Fprintf(&sb, "**CPU Usage:** `%.1f%%`\n", snap.CPUPercent)
	fmt.Fprintf(&sb, "**RAM Usage:** `%.1f%%`\n", snap.MemoryPercent)
	fmt.Fprintf(&sb, "**Storage Used:** `%.1f%%`\n", snap.DiskPercent)
	fmt.Fprintf(&sb, "**Uptime:** `%s`\n\n", util.HumanDurationMS(snap.ServiceUptime.Milliseconds()))
	sb.WriteString("**Storage Info**\n")
	fmt.Fprintf(&sb, "**Total:** `%s`\n", util.HumanBytes(int64(snap.DiskTotal)))
	fmt.Fprintf(&sb, "**Used:** `%s`\n", util.HumanBytes(int64(snap.DiskUsed)))
	fmt.Fprintf(&sb, "**Free:** `%s`\n", util.HumanBytes(int64(snap.DiskFree)))
	for _, gpu := range snap.GPUs {
		sb.WriteString("\n**GPU Info**\n")
		fmt.Fprintf(&sb, "**Name:** `%s`\n", gpu.Name)
		fmt.Fprintf(&sb, "**GPU Usage:** `%.0f%%`\n", gpu.Utilization)
		fmt.Fprintf(&sb, "**GPU Memory:** `%s / %s`\n",
			util.HumanBytes(int64(gpu.MemoryUsed)), util.HumanBytes(int64(gpu.MemoryTotal)))
	}

	b.reply(ctx, msg.Ref, sb.String())
}

func (b *Bot) cmdHistory(ctx context.Context, msg chat.Message) {
	runs, err := b.deps.Runs.Recent(ctx, historyLimit)
	if err != nil {
		b.logger.Warn("history lookup failed", slog.Any("error", err))
		b.reply(ctx, msg.Ref, "❌ History unavailable")
		return
	}
	if len(runs) == 0 {
		b.reply(ctx, msg.Ref, "No runs yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("🗂 **Recent Runs**\n")
	for _, run := range runs {
		sb.WriteString("\n")
		sb.WriteString(historyLine(run))
	}
	b.reply(ctx, msg.Ref, sb.String())
}

func historyLine(run *models.RunRecord) string {
	icon := "❌"
	switch run.Status {
	case models.RunStatusCompleted:
		icon = "✅"
	case models.RunStatusCancelled:
		icon = "🚫"
	}

	line := fmt.Sprintf("%s `%s`", icon, run.Filename)
	if run.Status == models.RunStatusCompleted && run.OriginalBytes > 0 {
		line += fmt.Sprintf(" — %s → %s (%.1f%% saved)",
			util.HumanBytes(run.OriginalBytes),
			util.HumanBytes(run.CompressedBytes),
			run.Stats().ReductionPercent())
	}
	return line
}

func (b *Bot) cmdLink(ctx context.Context, msg chat.Message, args []string) {
	if len(args) == 0 {
		b.reply(ctx, msg.Ref, "❌ Please provide a valid link")
		return
	}
	link := args[0]
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		b.reply(ctx, msg.Ref, "❌ Invalid URL format")
		return
	}
	name := ""
	if len(args) > 1 {
		name = args[1]
	}

	payload := jobs.LinkPayload{URL: link, SuggestedName: name}
	b.submit(ctx, msg, jobs.NewLinkJob(b.jobContext(), msg.UserID, msg.Ref.ChatID, payload))
}

func (b *Bot) cmdSettings(ctx context.Context, msg chat.Message) {
	m := b.mainMenu(msg.UserID)
	b.send(ctx, msg.Ref.ChatID, m.text, m.rows...)
}

func (b *Bot) cmdToggleUploadMode(ctx context.Context, msg chat.Message) {
	next := "Document"
	if b.deps.Settings.Output(msg.UserID).DefaultUploadMode == "Document" {
		next = "File"
	}
	if err := b.deps.Settings.Set(settings.CategoryOutput, "default_upload_mode", next, msg.UserID); err != nil {
		b.reply(ctx, msg.Ref, "❌ "+err.Error())
		return
	}
	b.reply(ctx, msg.Ref, "✅ Upload mode: "+next)
}

func (b *Bot) cmdWatermark(ctx context.Context, msg chat.Message) {
	adv := b.deps.Settings.Advanced(msg.UserID)
	next := !adv.WatermarkEnabled
	if err := b.deps.Settings.Set(settings.CategoryAdvanced, "watermark_enabled", next, msg.UserID); err != nil {
		b.reply(ctx, msg.Ref, "❌ "+err.Error())
		return
	}
	if next {
		b.reply(ctx, msg.Ref, fmt.Sprintf("✅ Watermark enabled: `%s` at %s", adv.WatermarkText, adv.WatermarkPosition))
		return
	}
	b.reply(ctx, msg.Ref, "❌ Watermark disabled")
}

// customFlags maps /custom flag names onto custom_compression keys.
var customFlags = map[string]string{
	"codec":  "v_codec",
	"preset": "v_preset",
	"qp":     "v_qp",
	"crf":    "v_qp",
	"scale":  "v_scale",
	"fps":    "v_fps",
	"audio":  "a_bitrate",
}

const customUsage = "Usage: `/custom -qp 24 -scale 720`\nFlags: -codec -preset -qp -scale -fps -audio"

func (b *Bot) cmdCustom(ctx context.Context, msg chat.Message, args []string) {
	if len(args) == 0 {
		kv := b.deps.Settings.GetCategory(settings.CategoryCompression, msg.UserID)
		b.reply(ctx, msg.Ref, fmt.Sprintf(
			"🔧 **Custom Profile**\n\n"+
				"**Codec**: `%v`\n"+
				"**Preset**: `%v`\n"+
				"**Quality (CRF)**: `%v`\n"+
				"**Resolution**: `%s`\n"+
				"**FPS**: `%v`\n"+
				"**Audio Bitrate**: `%v`\n\n%s",
			kv["v_codec"], kv["v_preset"], kv["v_qp"], scaleText(kv["v_scale"]),
			kv["v_fps"], kv["a_bitrate"], customUsage,
		))
		return
	}

	applied, err := b.applyCustomArgs(args, msg.UserID)
	if err != nil {
		b.reply(ctx, msg.Ref, "❌ "+err.Error()+"\n\n"+customUsage)
		return
	}
	if err := b.deps.Settings.SetActivePreset(settings.PresetCustom, msg.UserID); err != nil {
		b.reply(ctx, msg.Ref, "❌ "+err.Error())
		return
	}
	b.reply(ctx, msg.Ref, fmt.Sprintf("✅ Custom profile updated (%s) and selected", strings.Join(applied, ", ")))
}

func (b *Bot) applyCustomArgs(args []string, userID int64) ([]string, error) {
	if len(args)%2 != 0 {
		return nil, fmt.Errorf("flags come in -name value pairs")
	}

	var applied []string
	for i := 0; i < len(args); i += 2 {
		flag := strings.TrimPrefix(args[i], "-")
		key, ok := customFlags[flag]
		if !ok || !strings.HasPrefix(args[i], "-") {
			return nil, fmt.Errorf("unknown flag %q", args[i])
		}

		raw := args[i+1]
		var value any = raw
		if n, err := strconv.Atoi(raw); err == nil {
			value = n
		}
		if err := b.deps.Settings.Set(settings.CategoryCompression, key, value, userID); err != nil {
			return nil, err
		}
		applied = append(applied, flag+"="+raw)
	}
	return applied, nil
}
