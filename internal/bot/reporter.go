package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jmylchreest/compressr/internal/chat"
	"github.com/jmylchreest/compressr/internal/ffmpeg"
	"github.com/jmylchreest/compressr/internal/settings"
	"github.com/jmylchreest/compressr/internal/util"
)

const progressSegments = 10

// Reporter throttles and renders progress edits during downloads and
// uploads. It implements pipeline.Reporter.
type Reporter struct {
	transport chat.Transport
	store     *settings.Store
	engine    ffmpeg.Detection
	logger    *slog.Logger
	floodPad  time.Duration

	mu   sync.Mutex
	last map[chat.MessageRef]time.Time
}

// NewReporter builds a reporter editing through transport. The edit cadence
// comes from the settings store per user.
func NewReporter(transport chat.Transport, store *settings.Store, engine ffmpeg.Detection, logger *slog.Logger) *Reporter {
	return &Reporter{
		transport: transport,
		store:     store,
		engine:    engine,
		logger:    logger.With(slog.String("component", "reporter")),
		floodPad:  time.Second,
		last:      make(map[chat.MessageRef]time.Time),
	}
}

// Report edits the status message with the current transfer position. Edits
// are throttled per message; the final position always goes out. Transport
// hiccups never propagate to the transfer.
func (r *Reporter) Report(ctx context.Context, current, total int64, ref chat.MessageRef, startedAt time.Time, label, filename string) {
	if ref.IsZero() || total <= 0 || current < 0 {
		return
	}
	final := current >= total

	// Private chats carry the user id as the chat id, so the per-user
	// cadence resolves straight from the handle.
	interval := r.store.ProgressInterval(ref.ChatID)
	if interval <= 0 {
		interval = 5 * time.Second
	}

	r.mu.Lock()
	last, seen := r.last[ref]
	if !final && seen && time.Since(last) < interval {
		r.mu.Unlock()
		return
	}
	if final {
		delete(r.last, ref)
	} else {
		r.last[ref] = time.Now()
	}
	r.mu.Unlock()

	r.edit(ctx, ref, renderProgress(current, total, startedAt, label, filename, r.engine))
}

func (r *Reporter) edit(ctx context.Context, ref chat.MessageRef, text string) {
	err := r.transport.EditMessage(ctx, ref, text)
	if err == nil || errors.Is(err, chat.ErrMessageNotModified) || errors.Is(err, chat.ErrMessageNotFound) {
		return
	}

	if wait, ok := chat.AsFloodWait(err); ok {
		select {
		case <-time.After(wait + r.floodPad):
		case <-ctx.Done():
			return
		}
		err = r.transport.EditMessage(ctx, ref, text)
		if err != nil && !errors.Is(err, chat.ErrMessageNotModified) && !errors.Is(err, chat.ErrMessageNotFound) {
			r.logger.Warn("progress edit failed after flood wait", slog.Any("error", err))
		}
		return
	}

	r.logger.Warn("progress edit failed", slog.Any("error", err))
}

// renderProgress draws the block bar with transfer totals, speed and ETA.
func renderProgress(current, total int64, startedAt time.Time, label, filename string, engine ffmpeg.Detection) string {
	percent := float64(current) * 100 / float64(total)
	if percent > 100 {
		percent = 100
	}
	filled := int(percent) / progressSegments
	if filled > progressSegments {
		filled = progressSegments
	}
	bar := strings.Repeat("■", filled) + strings.Repeat("□", progressSegments-filled)

	var speed float64
	if elapsed := time.Since(startedAt).Seconds(); elapsed > 0 {
		speed = float64(current) / elapsed
	}
	eta := "0s"
	if speed > 0 && current < total {
		eta = util.HumanDurationMS(int64(float64(total-current) / speed * 1000))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "✦ %s\n\n", label)
	if filename != "" {
		fmt.Fprintf(&sb, "File Name: %s\n\n", filename)
	}
	fmt.Fprintf(&sb, "[%s] %.2f%%\n\n", bar, percent)
	fmt.Fprintf(&sb, "%s of %s\n\n", util.HumanBytes(current), util.HumanBytes(total))
	fmt.Fprintf(&sb, "✦ Speed: %s/s\n✦ ETA: %s", util.HumanBytes(int64(speed)), eta)
	if engine.Hardware() {
		fmt.Fprintf(&sb, "\n🚀 GPU: %s", engine.Label())
	}
	return sb.String()
}
