package chat

import (
	"errors"
	"fmt"
	"time"
)

// Transport errors the core reacts to. Bindings translate their library
// errors into these so the reporter and handlers stay transport-agnostic.
var (
	// ErrMessageNotModified means an edit produced identical content.
	ErrMessageNotModified = errors.New("message not modified")
	// ErrMessageNotFound means the message id no longer resolves.
	ErrMessageNotFound = errors.New("message not found")
)

// FloodWaitError reports transport rate limiting with a resume hint.
type FloodWaitError struct {
	RetryAfter time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait: retry after %s", e.RetryAfter)
}

// AsFloodWait extracts the retry hint from a flood-wait error.
func AsFloodWait(err error) (time.Duration, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw.RetryAfter, true
	}
	return 0, false
}
