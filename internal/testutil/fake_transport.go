// Package testutil provides test doubles shared across packages, chiefly an
// in-memory chat transport.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/jmylchreest/compressr/internal/chat"
)

// SentMessage is one recorded outbound message.
type SentMessage struct {
	Ref     chat.MessageRef
	Text    string
	Rows    []chat.ButtonRow
	ReplyTo chat.MessageRef
}

// Edit is one recorded message edit.
type Edit struct {
	Ref  chat.MessageRef
	Text string
	Rows []chat.ButtonRow
}

// SentFile is one recorded file upload.
type SentFile struct {
	Ref    chat.MessageRef
	ChatID int64
	Spec   chat.FileSpec
}

// FakeTransport implements chat.Transport in memory. Outbound operations
// are recorded; inbound events are delivered by tests through Deliver.
// Errors can be scripted per operation with FailNext.
type FakeTransport struct {
	mu sync.Mutex

	// Info is returned by Me.
	Info chat.BotInfo
	// MediaFiles maps a locator to the bytes DownloadMedia serves.
	MediaFiles map[string][]byte

	handler   chat.Handler
	nextMsgID int
	errQueues map[string][]error

	messages []SentMessage
	edits    []Edit
	deleted  []chat.MessageRef
	answered []string
	files    []SentFile
	albums   [][]string
}

var _ chat.Transport = (*FakeTransport)(nil)

// NewFakeTransport returns an empty fake.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		Info:       chat.BotInfo{Name: "compressr", Username: "compressr_bot"},
		MediaFiles: make(map[string][]byte),
		errQueues:  make(map[string][]error),
		nextMsgID:  100,
	}
}

// FailNext queues an error for the named operation ("EditMessage",
// "SendFile", ...). Each queued error fails exactly one call.
func (f *FakeTransport) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errQueues[op] = append(f.errQueues[op], err)
}

func (f *FakeTransport) popErr(op string) error {
	queue := f.errQueues[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	f.errQueues[op] = queue[1:]
	return err
}

// Run records the handler and blocks until ctx ends.
func (f *FakeTransport) Run(ctx context.Context, handler chat.Handler) error {
	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

// Deliver hands an inbound message to the handler registered by Run.
func (f *FakeTransport) Deliver(ctx context.Context, msg chat.Message) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler.HandleMessage(ctx, msg)
	}
}

// DeliverCallback hands an inbound button click to the registered handler.
func (f *FakeTransport) DeliverCallback(ctx context.Context, cb chat.Callback) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler.HandleCallback(ctx, cb)
	}
}

// Me implements chat.Transport.
func (f *FakeTransport) Me(context.Context) (chat.BotInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr("Me"); err != nil {
		return chat.BotInfo{}, err
	}
	return f.Info, nil
}

// SendMessage implements chat.Transport.
func (f *FakeTransport) SendMessage(_ context.Context, chatID int64, text string, rows ...chat.ButtonRow) (chat.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr("SendMessage"); err != nil {
		return chat.MessageRef{}, err
	}
	ref := f.newRefLocked(chatID)
	f.messages = append(f.messages, SentMessage{Ref: ref, Text: text, Rows: rows})
	return ref, nil
}

// ReplyMessage implements chat.Transport.
func (f *FakeTransport) ReplyMessage(_ context.Context, to chat.MessageRef, text string) (chat.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr("ReplyMessage"); err != nil {
		return chat.MessageRef{}, err
	}
	ref := f.newRefLocked(to.ChatID)
	f.messages = append(f.messages, SentMessage{Ref: ref, Text: text, ReplyTo: to})
	return ref, nil
}

// EditMessage implements chat.Transport.
func (f *FakeTransport) EditMessage(_ context.Context, ref chat.MessageRef, text string, rows ...chat.ButtonRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr("EditMessage"); err != nil {
		return err
	}
	f.edits = append(f.edits, Edit{Ref: ref, Text: text, Rows: rows})
	return nil
}

// DeleteMessage implements chat.Transport.
func (f *FakeTransport) DeleteMessage(_ context.Context, ref chat.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr("DeleteMessage"); err != nil {
		return err
	}
	f.deleted = append(f.deleted, ref)
	return nil
}

// AnswerCallback implements chat.Transport.
func (f *FakeTransport) AnswerCallback(_ context.Context, callbackID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr("AnswerCallback"); err != nil {
		return err
	}
	f.answered = append(f.answered, callbackID+":"+text)
	return nil
}

// SendFile implements chat.Transport. The file must exist; progress fires
// once at completion.
func (f *FakeTransport) SendFile(_ context.Context, chatID int64, spec chat.FileSpec, progress chat.Progress) (chat.MessageRef, error) {
	f.mu.Lock()
	err := f.popErr("SendFile")
	f.mu.Unlock()
	if err != nil {
		return chat.MessageRef{}, err
	}

	info, err := os.Stat(spec.Path)
	if err != nil {
		return chat.MessageRef{}, fmt.Errorf("sending file: %w", err)
	}
	if progress != nil {
		progress(info.Size(), info.Size())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	ref := f.newRefLocked(chatID)
	f.files = append(f.files, SentFile{Ref: ref, ChatID: chatID, Spec: spec})
	return ref, nil
}

// SendPhotos implements chat.Transport.
func (f *FakeTransport) SendPhotos(_ context.Context, chatID int64, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr("SendPhotos"); err != nil {
		return err
	}
	f.albums = append(f.albums, append([]string(nil), paths...))
	return nil
}

// DownloadMedia implements chat.Transport, streaming the registered bytes
// in two chunks so progress callbacks fire mid-transfer.
func (f *FakeTransport) DownloadMedia(ctx context.Context, locator string, w io.Writer, progress chat.Progress) error {
	f.mu.Lock()
	err := f.popErr("DownloadMedia")
	data, ok := f.MediaFiles[locator]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no media registered for locator %q", locator)
	}

	total := int64(len(data))
	half := len(data) / 2
	for _, chunk := range [][]byte{data[:half], data[half:]} {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := io.Copy(w, bytes.NewReader(chunk)); err != nil {
			return err
		}
	}
	if progress != nil {
		progress(total, total)
	}
	return nil
}

func (f *FakeTransport) newRefLocked(chatID int64) chat.MessageRef {
	f.nextMsgID++
	return chat.MessageRef{ChatID: chatID, MessageID: f.nextMsgID}
}

// Messages returns a copy of the recorded sends and replies.
func (f *FakeTransport) Messages() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentMessage(nil), f.messages...)
}

// LastMessage returns the most recent send, or a zero value.
func (f *FakeTransport) LastMessage() SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return SentMessage{}
	}
	return f.messages[len(f.messages)-1]
}

// Edits returns a copy of the recorded edits.
func (f *FakeTransport) Edits() []Edit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Edit(nil), f.edits...)
}

// Files returns a copy of the recorded uploads.
func (f *FakeTransport) Files() []SentFile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentFile(nil), f.files...)
}

// Albums returns a copy of the recorded photo albums.
func (f *FakeTransport) Albums() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.albums...)
}

// Deleted returns a copy of the deleted message refs.
func (f *FakeTransport) Deleted() []chat.MessageRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.MessageRef(nil), f.deleted...)
}

// Answered returns the acknowledged callback ids.
func (f *FakeTransport) Answered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.answered...)
}
