// Package gogram implements the transport adapter over
// github.com/amarnathcjd/gogram, an MTProto client. Being a user-client
// library it needs an API id/hash pair in addition to the bot token; missing
// credentials are a startup error. The MTProto session avoids Bot-API upload
// size limits, which matters for long syntheses sent as audio files.
package gogram

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	tg "github.com/amarnathcjd/gogram/telegram"

	"github.com/voxtela/voxtela/internal/telegram"
)

// Compile-time interface assertion.
var _ telegram.Adapter = (*Adapter)(nil)

// Adapter wraps a gogram client.
type Adapter struct {
	cfg    telegram.Config
	logger *slog.Logger

	mu        sync.RWMutex
	client    *tg.Client
	runCtx    context.Context
	onMessage telegram.MessageHandler
	onCallbck telegram.CallbackHandler
	onError   telegram.ErrorHandler
}

// New creates the adapter. Connection and bot login happen in Start.
func New(cfg telegram.Config) (*Adapter, error) {
	if err := cfg.Validate("gogram", true); err != nil {
		return nil, err
	}
	return &Adapter{
		cfg:    cfg,
		logger: slog.Default().With("adapter", "gogram"),
	}, nil
}

// Name returns "gogram".
func (a *Adapter) Name() string { return "gogram" }

// Start logs the bot in over MTProto and blocks on the client's idle loop
// until Stop is called or ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) error {
	session := ""
	if a.cfg.SessionDir != "" {
		session = filepath.Join(a.cfg.SessionDir, "gogram.session")
	}
	client, err := tg.NewClient(tg.ClientConfig{
		AppID:   int32(a.cfg.APIID),
		AppHash: a.cfg.APIHash,
		Session: session,
	})
	if err != nil {
		return fmt.Errorf("gogram: create client: %w", err)
	}
	if err := client.LoginBot(a.cfg.Token); err != nil {
		return fmt.Errorf("gogram: bot login: %w", err)
	}

	a.mu.Lock()
	a.client = client
	a.runCtx = ctx
	a.mu.Unlock()

	client.On(tg.OnMessage, func(m *tg.NewMessage) error {
		a.dispatch(func(ctx context.Context) {
			if h := a.messageHandler(); h != nil {
				h(ctx, convertMessage(m))
			}
		})
		return nil
	})
	client.On(tg.OnCallbackQuery, func(cb *tg.CallbackQuery) error {
		if _, err := cb.Answer(""); err != nil {
			a.logger.Debug("answer callback", "error", err)
		}
		a.dispatch(func(ctx context.Context) {
			if h := a.callbackHandler(); h != nil {
				h(ctx, convertCallback(cb))
			}
		})
		return nil
	})

	stop := context.AfterFunc(ctx, client.Stop)
	defer stop()

	a.logger.Info("connected, idling for updates")
	client.Idle()
	return nil
}

// Stop disconnects the client, unblocking Start.
func (a *Adapter) Stop(context.Context) error {
	a.mu.RLock()
	client := a.client
	a.mu.RUnlock()
	if client != nil {
		client.Stop()
	}
	return nil
}

// dispatch hands handler work off the update goroutine, under the context
// captured at Start (background context when Start has not run).
func (a *Adapter) dispatch(fn func(ctx context.Context)) {
	a.mu.RLock()
	ctx := a.runCtx
	a.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				a.reportError(fmt.Errorf("gogram: handler panic: %v", r))
			}
		}()
		fn(ctx)
	}()
}

// SendMessage implements telegram.Adapter.
func (a *Adapter) SendMessage(_ context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.InboundMessage, error) {
	client, err := a.conn()
	if err != nil {
		return nil, err
	}
	sendOpts := &tg.SendOptions{}
	if opts != nil && opts.ReplyTo != 0 {
		sendOpts.ReplyID = int32(opts.ReplyTo)
	}
	sent, err := client.SendMessage(chatID, text, sendOpts)
	if err != nil {
		return nil, fmt.Errorf("gogram: send message: %w", err)
	}
	return convertMessage(sent), nil
}

// SendVoice implements telegram.Adapter. The voice attribute marks the upload
// as a round voice note rather than a plain audio file.
func (a *Adapter) SendVoice(_ context.Context, chatID int64, data []byte, opts *telegram.VoiceOptions) (*telegram.InboundMessage, error) {
	return a.sendMedia(chatID, data, opts, "voice.ogg", true)
}

// SendAudio implements telegram.Adapter.
func (a *Adapter) SendAudio(_ context.Context, chatID int64, data []byte, opts *telegram.VoiceOptions) (*telegram.InboundMessage, error) {
	return a.sendMedia(chatID, data, opts, "audio.mp3", false)
}

func (a *Adapter) sendMedia(chatID int64, data []byte, opts *telegram.VoiceOptions, fallbackName string, voice bool) (*telegram.InboundMessage, error) {
	client, err := a.conn()
	if err != nil {
		return nil, err
	}
	mediaOpts := &tg.MediaOptions{FileName: fallbackName}
	duration := 0
	if opts != nil {
		mediaOpts.Caption = opts.Caption
		if opts.ReplyTo != 0 {
			mediaOpts.ReplyID = int32(opts.ReplyTo)
		}
		if opts.Filename != "" {
			mediaOpts.FileName = opts.Filename
		}
		duration = opts.Duration
	}
	mediaOpts.Attributes = []tg.DocumentAttribute{
		&tg.DocumentAttributeAudio{Voice: voice, Duration: int32(duration)},
	}
	sent, err := client.SendMedia(chatID, data, mediaOpts)
	if err != nil {
		return nil, fmt.Errorf("gogram: send media: %w", err)
	}
	return convertMessage(sent), nil
}

// SendDocument implements telegram.Adapter.
func (a *Adapter) SendDocument(_ context.Context, chatID int64, data []byte, opts *telegram.VoiceOptions) (*telegram.InboundMessage, error) {
	client, err := a.conn()
	if err != nil {
		return nil, err
	}
	mediaOpts := &tg.MediaOptions{FileName: "file.bin", ForceDocument: true}
	if opts != nil {
		mediaOpts.Caption = opts.Caption
		if opts.ReplyTo != 0 {
			mediaOpts.ReplyID = int32(opts.ReplyTo)
		}
		if opts.Filename != "" {
			mediaOpts.FileName = opts.Filename
		}
	}
	sent, err := client.SendMedia(chatID, data, mediaOpts)
	if err != nil {
		return nil, fmt.Errorf("gogram: send document: %w", err)
	}
	return convertMessage(sent), nil
}

// EditMessageText implements telegram.Adapter.
func (a *Adapter) EditMessageText(_ context.Context, chatID int64, messageID int, text string) (*telegram.InboundMessage, error) {
	client, err := a.conn()
	if err != nil {
		return nil, err
	}
	edited, err := client.EditMessage(chatID, int32(messageID), text)
	if err != nil {
		return nil, fmt.Errorf("gogram: edit message: %w", err)
	}
	return convertMessage(edited), nil
}

// DeleteMessage implements telegram.Adapter.
func (a *Adapter) DeleteMessage(_ context.Context, chatID int64, messageID int) bool {
	client, err := a.conn()
	if err != nil {
		return false
	}
	if _, err := client.DeleteMessages(chatID, []int32{int32(messageID)}); err != nil {
		a.logger.Debug("delete message", "chat_id", chatID, "message_id", messageID, "error", err)
		return false
	}
	return true
}

// GetChat implements telegram.Adapter.
func (a *Adapter) GetChat(_ context.Context, chatID int64) (*telegram.Chat, error) {
	client, err := a.conn()
	if err != nil {
		return nil, err
	}
	chat, err := client.GetChat(chatID)
	if err != nil {
		return nil, fmt.Errorf("gogram: get chat: %w", err)
	}
	return &telegram.Chat{
		ID:    chatID,
		Type:  telegram.ChatGroup,
		Title: chat.Title,
	}, nil
}

// GetUser implements telegram.Adapter.
func (a *Adapter) GetUser(_ context.Context, userID int64) (*telegram.User, error) {
	client, err := a.conn()
	if err != nil {
		return nil, err
	}
	user, err := client.GetUser(userID)
	if err != nil {
		return nil, fmt.Errorf("gogram: get user: %w", err)
	}
	return convertUser(user), nil
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

func (a *Adapter) messageHandler() telegram.MessageHandler {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.onMessage
}

func (a *Adapter) callbackHandler() telegram.CallbackHandler {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.onCallbck
}

func (a *Adapter) reportError(err error) {
	a.mu.RLock()
	h := a.onError
	a.mu.RUnlock()
	if h != nil {
		h(err)
		return
	}
	a.logger.Error("transport error", "error", err)
}

func (a *Adapter) conn() (*tg.Client, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.client == nil {
		return nil, fmt.Errorf("gogram: adapter not started")
	}
	return a.client, nil
}
