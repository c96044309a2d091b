package chat

import "context"

// MediaAttachment describes media attached to an inbound message.
type MediaAttachment struct {
	// Locator is the transport's opaque file id, used to download the
	// media and to deduplicate jobs.
	Locator  string
	Filename string
	MIME     string
	Size     int64
}

// Message is one inbound chat message.
type Message struct {
	Ref    MessageRef
	UserID int64
	Text   string
	// Media is non-nil when the message carries an attachment.
	Media *MediaAttachment
}

// Callback is one inbound inline-button click.
type Callback struct {
	// ID acknowledges the click via AnswerCallback.
	ID     string
	UserID int64
	// Message is the message the button was attached to.
	Message MessageRef
	Data    string
}

// Handler receives inbound events from the transport. Implementations are
// called from the transport's event loop and should not block on long work.
type Handler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandleCallback(ctx context.Context, cb Callback)
}
