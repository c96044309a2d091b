package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/jmylchreest/compressr/internal/config"
)

// Transport is the messenger surface the core drives: the inbound event
// loop plus every outbound operation the pipeline and handlers need.
type Transport interface {
	// Run delivers inbound events to handler until ctx is cancelled.
	Run(ctx context.Context, handler Handler) error

	// Me identifies the connected bot account.
	Me(ctx context.Context) (BotInfo, error)

	SendMessage(ctx context.Context, chatID int64, text string, rows ...ButtonRow) (MessageRef, error)
	ReplyMessage(ctx context.Context, to MessageRef, text string) (MessageRef, error)
	EditMessage(ctx context.Context, ref MessageRef, text string, rows ...ButtonRow) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	AnswerCallback(ctx context.Context, callbackID, text string) error

	// SendFile uploads a finished output and returns the posted message.
	SendFile(ctx context.Context, chatID int64, spec FileSpec, progress Progress) (MessageRef, error)
	// SendPhotos posts an image set as one album.
	SendPhotos(ctx context.Context, chatID int64, paths []string) error
	// DownloadMedia streams a chat-hosted file into w.
	DownloadMedia(ctx context.Context, locator string, w io.Writer, progress Progress) error
}

// ErrNoBinding means Dial was called without a registered binding.
var ErrNoBinding = errors.New("no chat transport binding registered")

// DialFunc connects a concrete transport binding.
type DialFunc func(ctx context.Context, cfg config.TelegramConfig, logger *slog.Logger) (Transport, error)

var (
	bindingMu sync.Mutex
	binding   DialFunc
)

// RegisterBinding installs the messenger binding. The binding module calls
// this from init; the last registration wins.
func RegisterBinding(dial DialFunc) {
	bindingMu.Lock()
	defer bindingMu.Unlock()
	binding = dial
}

// Dial connects the registered binding.
func Dial(ctx context.Context, cfg config.TelegramConfig, logger *slog.Logger) (Transport, error) {
	bindingMu.Lock()
	dial := binding
	bindingMu.Unlock()

	if dial == nil {
		return nil, ErrNoBinding
	}
	return dial(ctx, cfg, logger)
}
