package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmylchreest/compressr/internal/chat"
	"github.com/jmylchreest/compressr/internal/jobs"
	"github.com/jmylchreest/compressr/internal/util"
)

// submitMedia admits an uploaded video into the queue. Non-video media is
// ignored so stickers and photos do not produce error chatter.
func (b *Bot) submitMedia(ctx context.Context, msg chat.Message) {
	media := msg.Media
	if !strings.HasPrefix(media.MIME, "video/") {
		return
	}

	maxMB := b.deps.Settings.Output(msg.UserID).MaxFileSize
	if media.Size > int64(maxMB)*1024*1024 {
		b.reply(ctx, msg.Ref, fmt.Sprintf("❌ File too large: %s > %d MB", util.HumanBytes(media.Size), maxMB))
		return
	}

	name := media.Filename
	if name == "" {
		name = "video_" + time.Now().Format("20060102_150405") + ".mp4"
	}

	payload := jobs.UploadPayload{Locator: media.Locator, SuggestedName: name, Size: media.Size}
	b.submit(ctx, msg, jobs.NewUploadJob(b.jobContext(), msg.UserID, msg.Ref.ChatID, payload))
}

// submit runs queue admission and reports the outcome. A leased job gets
// its status message up front so progress edits thread off the submission.
func (b *Bot) submit(ctx context.Context, msg chat.Message, job *jobs.Job) {
	maxQueue := b.deps.Settings.Output(msg.UserID).MaxQueueSize

	pos, err := b.deps.Queue.Admit(job, maxQueue)
	switch {
	case errors.Is(err, jobs.ErrDuplicate):
		job.Cancel()
		b.reply(ctx, msg.Ref, "THIS FILE ALREADY IN QUEUE")
		return
	case errors.Is(err, jobs.ErrQueueFull):
		job.Cancel()
		b.reply(ctx, msg.Ref, fmt.Sprintf("❌ Queue is full (max %d)", maxQueue))
		return
	case err != nil:
		job.Cancel()
		b.logger.Warn("admission failed", slog.Any("error", err))
		b.reply(ctx, msg.Ref, "❌ "+err.Error())
		return
	}

	if pos > 0 {
		b.reply(ctx, msg.Ref, fmt.Sprintf("✅ Added to Queue #%d", pos))
		return
	}

	ref, err := b.deps.Transport.ReplyMessage(ctx, msg.Ref, "🔄 Processing...")
	if err != nil {
		b.logger.Warn("status message failed", slog.Any("error", err))
	} else {
		job.StatusMsgID = ref.MessageID
	}
	b.deps.Worker.Launch(job)
}
