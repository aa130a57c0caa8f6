// Package mock provides a scripted telegram.Adapter test double that records
// every outbound operation and lets tests inject inbound messages.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/voxtela/voxtela/internal/telegram"
)

// Compile-time interface assertion.
var _ telegram.Adapter = (*Adapter)(nil)

// Sent records one outbound operation.
type Sent struct {
	Op       string // "message", "voice", "audio", "document", "edit", "delete"
	ChatID   int64
	Text     string
	Data     []byte
	Caption  string
	ReplyTo  int
	Duration int
	ID       int
}

// Adapter is an in-memory adapter for tests.
type Adapter struct {
	// SendErr, when set, is returned by every send/edit operation.
	SendErr error

	// DeleteResult is returned by DeleteMessage. Defaults to true.
	DeleteResult *bool

	mu        sync.Mutex
	sent      []Sent
	nextID    int
	started   bool
	stopped   bool
	onMessage telegram.MessageHandler
	onCallbck telegram.CallbackHandler
	onError   telegram.ErrorHandler
}

// New creates an empty mock adapter.
func New() *Adapter {
	return &Adapter{nextID: 1000}
}

// Name returns "mock".
func (a *Adapter) Name() string { return "mock" }

// Start implements telegram.Adapter. It returns immediately.
func (a *Adapter) Start(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.started = true
	return nil
}

// Stop implements telegram.Adapter.
func (a *Adapter) Stop(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	return nil
}

// Started reports whether Start ran.
func (a *Adapter) Started() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started
}

// Stopped reports whether Stop ran.
func (a *Adapter) Stopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

// Deliver feeds an inbound message to the registered message handler.
func (a *Adapter) Deliver(ctx context.Context, msg *telegram.InboundMessage) {
	a.mu.Lock()
	h := a.onMessage
	a.mu.Unlock()
	if h != nil {
		h(ctx, msg)
	}
}

// DeliverCallback feeds a callback payload to the registered callback handler.
func (a *Adapter) DeliverCallback(ctx context.Context, msg *telegram.InboundMessage) {
	a.mu.Lock()
	h := a.onCallbck
	a.mu.Unlock()
	if h != nil {
		h(ctx, msg)
	}
}

// Sends returns a copy of the recorded operations.
func (a *Adapter) Sends() []Sent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Sent(nil), a.sent...)
}

// SendsOf filters the recorded operations by op name.
func (a *Adapter) SendsOf(op string) []Sent {
	var out []Sent
	for _, s := range a.Sends() {
		if s.Op == op {
			out = append(out, s)
		}
	}
	return out
}

func (a *Adapter) record(s Sent) (*telegram.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.SendErr != nil {
		return nil, a.SendErr
	}
	a.nextID++
	s.ID = a.nextID
	a.sent = append(a.sent, s)
	return &telegram.InboundMessage{
		ID:      s.ID,
		ChatID:  s.ChatID,
		Text:    s.Text,
		Caption: s.Caption,
		Kind:    telegram.KindText,
	}, nil
}

// SendMessage implements telegram.Adapter.
func (a *Adapter) SendMessage(_ context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.InboundMessage, error) {
	s := Sent{Op: "message", ChatID: chatID, Text: text}
	if opts != nil {
		s.ReplyTo = opts.ReplyTo
	}
	return a.record(s)
}

// SendVoice implements telegram.Adapter.
func (a *Adapter) SendVoice(_ context.Context, chatID int64, data []byte, opts *telegram.VoiceOptions) (*telegram.InboundMessage, error) {
	s := Sent{Op: "voice", ChatID: chatID, Data: data}
	if opts != nil {
		s.Caption = opts.Caption
		s.ReplyTo = opts.ReplyTo
		s.Duration = opts.Duration
	}
	return a.record(s)
}

// SendAudio implements telegram.Adapter.
func (a *Adapter) SendAudio(_ context.Context, chatID int64, data []byte, opts *telegram.VoiceOptions) (*telegram.InboundMessage, error) {
	s := Sent{Op: "audio", ChatID: chatID, Data: data}
	if opts != nil {
		s.Caption = opts.Caption
		s.ReplyTo = opts.ReplyTo
		s.Duration = opts.Duration
	}
	return a.record(s)
}

// SendDocument implements telegram.Adapter.
func (a *Adapter) SendDocument(_ context.Context, chatID int64, data []byte, opts *telegram.VoiceOptions) (*telegram.InboundMessage, error) {
	s := Sent{Op: "document", ChatID: chatID, Data: data}
	if opts != nil {
		s.Caption = opts.Caption
		s.ReplyTo = opts.ReplyTo
	}
	return a.record(s)
}

// EditMessageText implements telegram.Adapter.
func (a *Adapter) EditMessageText(_ context.Context, chatID int64, messageID int, text string) (*telegram.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.SendErr != nil {
		return nil, a.SendErr
	}
	a.sent = append(a.sent, Sent{Op: "edit", ChatID: chatID, ID: messageID, Text: text})
	return &telegram.InboundMessage{ID: messageID, ChatID: chatID, Text: text, Kind: telegram.KindText}, nil
}

// DeleteMessage implements telegram.Adapter.
func (a *Adapter) DeleteMessage(_ context.Context, chatID int64, messageID int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, Sent{Op: "delete", ChatID: chatID, ID: messageID})
	if a.DeleteResult != nil {
		return *a.DeleteResult
	}
	return true
}

// GetChat implements telegram.Adapter.
func (a *Adapter) GetChat(_ context.Context, chatID int64) (*telegram.Chat, error) {
	return &telegram.Chat{ID: chatID, Type: telegram.ChatPrivate}, nil
}

// GetUser implements telegram.Adapter.
func (a *Adapter) GetUser(_ context.Context, userID int64) (*telegram.User, error) {
	if userID == 0 {
		return nil, fmt.Errorf("mock: unknown user")
	}
	return &telegram.User{ID: userID}, nil
}

// SetMessageHandler implements telegram.Adapter.
func (a *Adapter) SetMessageHandler(h telegram.MessageHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onMessage = h
}

// SetCallbackHandler implements telegram.Adapter.
func (a *Adapter) SetCallbackHandler(h telegram.CallbackHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onCallbck = h
}

// SetErrorHandler implements telegram.Adapter.
func (a *Adapter) SetErrorHandler(h telegram.ErrorHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onError = h
}

// ReportError invokes the registered error handler, for tests that exercise
// the error path.
func (a *Adapter) ReportError(err error) {
	a.mu.Lock()
	h := a.onError
	a.mu.Unlock()
	if h != nil {
		h(err)
	}
}
