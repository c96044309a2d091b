// Package chat defines the contract between compressr's core and the
// messenger transport. The concrete binding lives outside this repo: it
// registers a dialer at init, delivers inbound events to a Handler, and
// converts its library errors into this package's error types.
package chat

// MessageRef addresses one chat message.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// IsZero reports whether the ref points at no message.
func (r MessageRef) IsZero() bool {
	return r.MessageID == 0
}

// Button is one inline button. Data is echoed back in a Callback.
type Button struct {
	Label string
	Data  string
}

// ButtonRow is one row of inline buttons.
type ButtonRow []Button

// Progress reports transfer position during streaming operations. A total
// of zero means the size is unknown.
type Progress func(current, total int64)

// FileSpec describes an outbound file upload.
type FileSpec struct {
	Path string
	// Name overrides the display filename; empty means the path basename.
	Name          string
	Caption       string
	ThumbnailPath string
	// AsDocument forces document semantics; otherwise the transport may
	// present the file as playable media.
	AsDocument bool
}

// BotInfo identifies the connected bot account.
type BotInfo struct {
	Name     string
	Username string
}
