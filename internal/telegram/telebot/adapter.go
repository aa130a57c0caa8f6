// Package telebot implements the transport adapter over gopkg.in/telebot.v3,
// a Bot-API client that needs only the bot token. The library drives handlers
// from its own polling goroutine, so this adapter dispatches each update on a
// fresh goroutine bound to the context captured at Start; the polling
// goroutine itself never runs orchestration code.
//
// This is the one variant that validates the token shape before connecting.
package telebot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/voxtela/voxtela/internal/telegram"
)

// Compile-time interface assertion.
var _ telegram.Adapter = (*Adapter)(nil)

const pollTimeout = 30 * time.Second

// Adapter wraps a telebot bot instance.
type Adapter struct {
	cfg    telegram.Config
	logger *slog.Logger

	mu        sync.RWMutex
	bot       *tele.Bot
	runCtx    context.Context
	onMessage telegram.MessageHandler
	onCallbck telegram.CallbackHandler
	onError   telegram.ErrorHandler
}

// New creates the adapter after validating the token shape.
func New(cfg telegram.Config) (*Adapter, error) {
	if err := cfg.Validate("telebot", false); err != nil {
		return nil, err
	}
	if !telegram.ValidTokenShape(cfg.Token) {
		return nil, fmt.Errorf("telebot: token does not look like a bot token")
	}
	return &Adapter{
		cfg:    cfg,
		logger: slog.Default().With("adapter", "telebot"),
	}, nil
}

// Name returns "telebot".
func (a *Adapter) Name() string { return "telebot" }

// Start connects and blocks on the library's polling loop until Stop is
// called or ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) error {
	b, err := tele.NewBot(tele.Settings{
		Token:  a.cfg.Token,
		Poller: &tele.LongPoller{Timeout: pollTimeout},
		OnError: func(err error, _ tele.Context) {
			a.reportError(fmt.Errorf("telebot: %w", err))
		},
	})
	if err != nil {
		return fmt.Errorf("telebot: create bot: %w", err)
	}

	a.mu.Lock()
	a.bot = b
	a.runCtx = ctx
	a.mu.Unlock()

	b.Handle(tele.OnText, a.handleMessage)
	for _, event := range []string{
		tele.OnVoice, tele.OnAudio, tele.OnDocument, tele.OnPhoto,
		tele.OnVideo, tele.OnSticker, tele.OnLocation, tele.OnContact,
		tele.OnPoll,
	} {
		b.Handle(event, a.handleMessage)
	}
	b.Handle(tele.OnCallback, a.handleCallback)

	// Stop the poller when the context dies so Start unblocks.
	stop := context.AfterFunc(ctx, b.Stop)
	defer stop()

	a.logger.Info("starting long polling")
	b.Start()
	return nil
}

// Stop halts the polling loop.
func (a *Adapter) Stop(context.Context) error {
	a.mu.RLock()
	b := a.bot
	a.mu.RUnlock()
	if b != nil {
		b.Stop()
	}
	return nil
}

// handleMessage runs on the polling goroutine; the real work is handed off.
func (a *Adapter) handleMessage(c tele.Context) error {
	msg := c.Message()
	if msg == nil {
		return nil
	}
	a.dispatch(func(ctx context.Context) {
		if h := a.messageHandler(); h != nil {
			h(ctx, convertMessage(msg))
		}
	})
	return nil
}

func (a *Adapter) handleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	if err := c.Respond(&tele.CallbackResponse{}); err != nil {
		a.logger.Debug("respond callback", "error", err)
	}
	a.dispatch(func(ctx context.Context) {
		if h := a.callbackHandler(); h != nil {
			h(ctx, convertCallback(cb))
		}
	})
	return nil
}

// dispatch runs fn on a fresh goroutine under the context captured at Start,
// falling back to the background context when Start has not run (tests).
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
				a.reportError(fmt.Errorf("telebot: handler panic: %v", r))
			}
		}()
		fn(ctx)
	}()
}

// SendMessage implements telegram.Adapter.
func (a *Adapter) SendMessage(_ context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.InboundMessage, error) {
	b, err := a.client()
	if err != nil {
		return nil, err
	}
	var sendOpts []any
	if opts != nil && opts.ReplyTo != 0 {
		sendOpts = append(sendOpts, &tele.SendOptions{ReplyTo: &tele.Message{ID: opts.ReplyTo}})
	}
	sent, err := b.Send(tele.ChatID(chatID), text, sendOpts...)
	if err != nil {
		return nil, fmt.Errorf("telebot: send message: %w", err)
	}
	return convertMessage(sent), nil
}

// SendVoice implements telegram.Adapter.
func (a *Adapter) SendVoice(_ context.Context, chatID int64, data []byte, opts *telegram.VoiceOptions) (*telegram.InboundMessage, error) {
	b, err := a.client()
	if err != nil {
		return nil, err
	}
	voice := &tele.Voice{File: fileFromBytes(data, "voice.ogg")}
	var sendOpts []any
	if opts != nil {
		voice.Caption = opts.Caption
		voice.Duration = opts.Duration
		if opts.ReplyTo != 0 {
			sendOpts = append(sendOpts, &tele.SendOptions{ReplyTo: &tele.Message{ID: opts.ReplyTo}})
		}
	}
	sent, err := b.Send(tele.ChatID(chatID), voice, sendOpts...)
	if err != nil {
		return nil, fmt.Errorf("telebot: send voice: %w", err)
	}
	return convertMessage(sent), nil
}

// SendAudio implements telegram.Adapter.
func (a *Adapter) SendAudio(_ context.Context, chatID int64, data []byte, opts *telegram.VoiceOptions) (*telegram.InboundMessage, error) {
	b, err := a.client()
	if err != nil {
		return nil, err
	}
	audio := &tele.Audio{File: fileFromBytes(data, "audio.mp3")}
	var sendOpts []any
	if opts != nil {
		audio.Caption = opts.Caption
		audio.Duration = opts.Duration
		if opts.Filename != "" {
			audio.FileName = opts.Filename
		}
		if opts.ReplyTo != 0 {
			sendOpts = append(sendOpts, &tele.SendOptions{ReplyTo: &tele.Message{ID: opts.ReplyTo}})
		}
	}
	sent, err := b.Send(tele.ChatID(chatID), audio, sendOpts...)
	if err != nil {
		return nil, fmt.Errorf("telebot: send audio: %w", err)
	}
	return convertMessage(sent), nil
}

// SendDocument implements telegram.Adapter.
func (a *Adapter) SendDocument(_ context.Context, chatID int64, data []byte, opts *telegram.VoiceOptions) (*telegram.InboundMessage, error) {
	b, err := a.client()
	if err != nil {
		return nil, err
	}
	doc := &tele.Document{File: fileFromBytes(data, "file.bin")}
	var sendOpts []any
	if opts != nil {
		doc.Caption = opts.Caption
		if opts.Filename != "" {
			doc.FileName = opts.Filename
		}
		if opts.ReplyTo != 0 {
			sendOpts = append(sendOpts, &tele.SendOptions{ReplyTo: &tele.Message{ID: opts.ReplyTo}})
		}
	}
	sent, err := b.Send(tele.ChatID(chatID), doc, sendOpts...)
	if err != nil {
		return nil, fmt.Errorf("telebot: send document: %w", err)
	}
	return convertMessage(sent), nil
}

// EditMessageText implements telegram.Adapter.
func (a *Adapter) EditMessageText(_ context.Context, chatID int64, messageID int, text string) (*telegram.InboundMessage, error) {
	b, err := a.client()
	if err != nil {
		return nil, err
	}
	edited, err := b.Edit(tele.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    chatID,
	}, text)
	if err != nil {
		return nil, fmt.Errorf("telebot: edit message: %w", err)
	}
	return convertMessage(edited), nil
}

// DeleteMessage implements telegram.Adapter.
func (a *Adapter) DeleteMessage(_ context.Context, chatID int64, messageID int) bool {
	b, err := a.client()
	if err != nil {
		return false
	}
	err = b.Delete(tele.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    chatID,
	})
	if err != nil {
		a.logger.Debug("delete message", "chat_id", chatID, "message_id", messageID, "error", err)
		return false
	}
	return true
}

// GetChat implements telegram.Adapter.
func (a *Adapter) GetChat(_ context.Context, chatID int64) (*telegram.Chat, error) {
	b, err := a.client()
	if err != nil {
		return nil, err
	}
	chat, err := b.ChatByID(chatID)
	if err != nil {
		return nil, fmt.Errorf("telebot: get chat: %w", err)
	}
	return &telegram.Chat{
		ID:          chat.ID,
		Type:        telegram.ChatType(chat.Type),
		Title:       chat.Title,
		Username:    chat.Username,
		Description: chat.Description,
	}, nil
}

// GetUser implements telegram.Adapter via the private-chat lookup.
func (a *Adapter) GetUser(_ context.Context, userID int64) (*telegram.User, error) {
	b, err := a.client()
	if err != nil {
		return nil, err
	}
	chat, err := b.ChatByID(userID)
	if err != nil {
		return nil, fmt.Errorf("telebot: get user: %w", err)
	}
	return &telegram.User{
		ID:        chat.ID,
		Username:  chat.Username,
		FirstName: chat.FirstName,
		LastName:  chat.LastName,
	}, nil
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

func (a *Adapter) client() (*tele.Bot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.bot == nil {
		return nil, fmt.Errorf("telebot: adapter not started")
	}
	return a.bot, nil
}
