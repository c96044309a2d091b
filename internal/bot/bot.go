// Package bot turns inbound chat events into queue admissions, settings
// edits and status replies. It owns the command surface, the inline settings
// menu and the progress reporter; the heavy lifting happens in the pipeline.
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
	"github.com/jmylchreest/compressr/internal/jobs"
	"github.com/jmylchreest/compressr/internal/repository"
	"github.com/jmylchreest/compressr/internal/settings"
	"github.com/jmylchreest/compressr/internal/storage"
	"github.com/jmylchreest/compressr/internal/sysinfo"
)

// Launcher starts a leased job. The pipeline worker implements it.
type Launcher interface {
	Launch(job *jobs.Job)
}

// Deps are the collaborators the bot needs. All fields are required.
type Deps struct {
	Transport chat.Transport
	Queue     *jobs.Queue
	Registry  *jobs.CallbackRegistry
	Worker    Launcher
	Settings  *settings.Store
	Workspace *storage.Workspace
	Runs      repository.RunRepository
	System    *sysinfo.Collector
	Engine    ffmpeg.Detection
	Owners    []int64
	Logger    *slog.Logger
}

// Bot is the chat front end. It implements chat.Handler.
type Bot struct {
	deps    Deps
	logger  *slog.Logger
	owners  map[int64]bool
	started time.Time

	mu      sync.Mutex
	runCtx  context.Context
	prompts map[int64]string
}

var _ chat.Handler = (*Bot)(nil)

// New builds the bot. Owners outside Deps.Owners are ignored for anything
// beyond the informational commands.
func New(deps Deps) *Bot {
	owners := make(map[int64]bool, len(deps.Owners))
	for _, id := range deps.Owners {
		owners[id] = true
	}
	return &Bot{
		deps:    deps,
		logger:  deps.Logger.With(slog.String("component", "bot")),
		owners:  owners,
		started: time.Now(),
		prompts: make(map[int64]string),
	}
}

// Run announces startup to the owners and then serves inbound events until
// ctx ends. Jobs admitted while running inherit ctx, so shutdown cancels
// anything still in flight.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	b.runCtx = ctx
	b.mu.Unlock()

	b.notifyStartup(ctx)
	return b.deps.Transport.Run(ctx, b)
}

func (b *Bot) notifyStartup(ctx context.Context) {
	text := fmt.Sprintf("✅ **Bot started**\n🚀 Engine: %s", b.deps.Engine.Label())
	for _, owner := range b.deps.Owners {
		if _, err := b.deps.Transport.SendMessage(ctx, owner, text); err != nil {
			b.logger.Warn("startup notice failed", slog.Int64("owner", owner), slog.Any("error", err))
		}
	}
}

// HandleMessage implements chat.Handler. Informational commands answer
// anyone; job submission and settings require an owner id and everything
// else is dropped silently.
func (b *Bot) HandleMessage(ctx context.Context, msg chat.Message) {
	if cmd, args, ok := parseCommand(msg.Text); ok {
		// A command abandons any prompt the user was typing an answer to.
		b.clearPrompt(msg.UserID)
		b.handleCommand(ctx, msg, cmd, args)
		return
	}

	if !b.isOwner(msg.UserID) {
		return
	}
	if b.consumePrompt(ctx, msg) {
		return
	}
	if msg.Media != nil {
		b.submitMedia(ctx, msg)
	}
}

// HandleCallback implements chat.Handler.
func (b *Bot) HandleCallback(ctx context.Context, cb chat.Callback) {
	b.logger.Debug("callback", slog.String("data", cb.Data), slog.Int64("user", cb.UserID))

	switch cb.Data {
	case "ihelp":
		b.edit(ctx, cb.Message, inlineHelpText, chat.ButtonRow{{Label: "🔙 BACK", Data: "beck"}})
		b.answer(ctx, cb.ID, "")
		return
	case "beck":
		b.edit(ctx, cb.Message, startText, startRows()...)
		b.answer(ctx, cb.ID, "")
		return
	case "qstatus":
		snap := b.deps.Queue.Snapshot()
		state := "Idle"
		if snap.Working {
			state = "Working"
		}
		b.answer(ctx, cb.ID, fmt.Sprintf("%s, %d queued", state, len(snap.Queued)))
		return
	}

	if !b.isOwner(cb.UserID) {
		b.answer(ctx, cb.ID, "❌ Access denied")
		return
	}

	switch {
	case strings.HasPrefix(cb.Data, "stats"):
		b.statsCallback(ctx, cb, strings.TrimPrefix(cb.Data, "stats"))
	case strings.HasPrefix(cb.Data, "skip"):
		b.skipCallback(ctx, cb, strings.TrimPrefix(cb.Data, "skip"))
	default:
		b.settingsCallback(ctx, cb)
	}
}

func (b *Bot) isOwner(userID int64) bool {
	return b.owners[userID]
}

// jobContext is the parent for job cancel tokens: the serve context once Run
// started, Background in tests that drive the handler directly.
func (b *Bot) jobContext() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.runCtx != nil {
		return b.runCtx
	}
	return context.Background()
}

// parseCommand splits "/cmd arg arg" into its parts. Bot-name suffixes
// ("/cmd@bot") are stripped.
func parseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	cmd := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	if cmd == "" {
		return "", nil, false
	}
	return strings.ToLower(cmd), fields[1:], true
}

// Outbound helpers. Handler paths never fail on transport errors; they log
// and move on.

func (b *Bot) reply(ctx context.Context, to chat.MessageRef, text string) {
	if _, err := b.deps.Transport.ReplyMessage(ctx, to, text); err != nil {
		b.logger.Warn("reply failed", slog.Any("error", err))
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, rows ...chat.ButtonRow) {
	if _, err := b.deps.Transport.SendMessage(ctx, chatID, text, rows...); err != nil {
		b.logger.Warn("send failed", slog.Any("error", err))
	}
}

func (b *Bot) edit(ctx context.Context, ref chat.MessageRef, text string, rows ...chat.ButtonRow) {
	err := b.deps.Transport.EditMessage(ctx, ref, text, rows...)
	if err != nil && !errors.Is(err, chat.ErrMessageNotModified) {
		b.logger.Warn("edit failed", slog.Any("error", err))
	}
}

func (b *Bot) delete(ctx context.Context, ref chat.MessageRef) {
	if err := b.deps.Transport.DeleteMessage(ctx, ref); err != nil {
		b.logger.Warn("delete failed", slog.Any("error", err))
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	if err := b.deps.Transport.AnswerCallback(ctx, callbackID, text); err != nil {
		b.logger.Warn("callback answer failed", slog.Any("error", err))
	}
}
