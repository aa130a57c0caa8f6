package telegram

import "context"

// MessageHandler receives each normalized inbound message.
type MessageHandler func(ctx context.Context, msg *InboundMessage)

// CallbackHandler receives callback-query events. msg carries the payload in
// Text with the originating chat and user (zero ids if the provider supplied
// no source message).
type CallbackHandler func(ctx context.Context, msg *InboundMessage)

// ErrorHandler receives transport errors that the adapter swallowed rather
// than let escape into the upstream library.
type ErrorHandler func(err error)

// SendOptions refines an outbound text message.
type SendOptions struct {
	// ReplyTo quotes the given message id when non-zero.
	ReplyTo int
}

// VoiceOptions refines an outbound voice, audio, or document upload.
type VoiceOptions struct {
	// Caption is attached to the media when non-empty.
	Caption string

	// ReplyTo quotes the given message id when non-zero.
	ReplyTo int

	// Duration is the clip length in seconds. Zero lets the adapter derive
	// it from the audio bytes (fallback: 5 s).
	Duration int

	// Filename names document uploads.
	Filename string
}

// Adapter hides one upstream client library behind the uniform capability
// set. All outbound operations return the normalized form of what was sent so
// callers can chain edits and deletes.
//
// Start may block on the library's own update loop and must therefore be
// launched as a background task; send/edit/delete operations are safe to call
// concurrently with update delivery.
type Adapter interface {
	// Name returns the variant name the adapter was selected by.
	Name() string

	// Start connects and begins delivering updates to the registered
	// handlers. Blocking behaviour is variant-specific; run it in its own
	// goroutine.
	Start(ctx context.Context) error

	// Stop disconnects and stops update delivery.
	Stop(ctx context.Context) error

	SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (*InboundMessage, error)
	SendVoice(ctx context.Context, chatID int64, data []byte, opts *VoiceOptions) (*InboundMessage, error)
	SendAudio(ctx context.Context, chatID int64, data []byte, opts *VoiceOptions) (*InboundMessage, error)
	SendDocument(ctx context.Context, chatID int64, data []byte, opts *VoiceOptions) (*InboundMessage, error)

	EditMessageText(ctx context.Context, chatID int64, messageID int, text string) (*InboundMessage, error)

	// DeleteMessage reports success; it never returns an error.
	DeleteMessage(ctx context.Context, chatID int64, messageID int) bool

	GetChat(ctx context.Context, chatID int64) (*Chat, error)
	GetUser(ctx context.Context, userID int64) (*User, error)

	SetMessageHandler(h MessageHandler)
	SetCallbackHandler(h CallbackHandler)
	SetErrorHandler(h ErrorHandler)
}
