// Package tgbot implements the transport adapter over
// github.com/go-telegram/bot, a Bot-API client that needs only the bot token.
// Updates arrive through the library's own long-polling loop, which runs
// inside Start until the context is cancelled.
package tgbot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/voxtela/voxtela/internal/telegram"
)

// Compile-time interface assertion.
var _ telegram.Adapter = (*Adapter)(nil)

// Adapter wraps a go-telegram bot instance.
type Adapter struct {
	cfg    telegram.Config
	logger *slog.Logger

	mu        sync.RWMutex
	bot       *bot.Bot
	cancel    context.CancelFunc
	onMessage telegram.MessageHandler
	onCallbck telegram.CallbackHandler
	onError   telegram.ErrorHandler
}

// New creates the adapter. The bot connection is established in Start.
func New(cfg telegram.Config) (*Adapter, error) {
	if err := cfg.Validate("tgbot", false); err != nil {
		return nil, err
	}
	return &Adapter{
		cfg:    cfg,
		logger: slog.Default().With("adapter", "tgbot"),
	}, nil
}

// Name returns "tgbot".
func (a *Adapter) Name() string { return "tgbot" }

// Start connects and blocks on the library's long-polling loop until ctx is
// done or Stop is called.
func (a *Adapter) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	b, err := bot.New(a.cfg.Token, bot.WithDefaultHandler(a.handleUpdate))
	if err != nil {
		cancel()
		return fmt.Errorf("tgbot: create bot: %w", err)
	}

	a.mu.Lock()
	a.bot = b
	a.cancel = cancel
	a.mu.Unlock()

	a.logger.Info("starting long polling")
	b.Start(ctx)
	return nil
}

// Stop cancels the polling loop.
func (a *Adapter) Stop(context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// handleUpdate fans one update out to the registered handlers. Handler
// panics are contained and routed to the error handler so nothing escapes
// into the library's polling goroutine.
func (a *Adapter) handleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	defer func() {
		if r := recover(); r != nil {
			a.reportError(fmt.Errorf("tgbot: handler panic: %v", r))
		}
	}()

	switch {
	case update.Message != nil:
		if h := a.messageHandler(); h != nil {
			h(ctx, convertMessage(update.Message))
		}
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		// Answer first so the client stops showing the spinner even if the
		// handler is slow.
		if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: cb.ID,
		}); err != nil {
			a.logger.Debug("answer callback query", "error", err)
		}
		if h := a.callbackHandler(); h != nil {
			h(ctx, convertCallback(cb))
		}
	}
}

// SendMessage implements telegram.Adapter.
func (a *Adapter) SendMessage(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.InboundMessage, error) {
	b, err := a.client()
	if err != nil {
		return nil, err
	}
	params := &bot.SendMessageParams{ChatID: chatID, Text: text}
	if opts != nil && opts.ReplyTo != 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: opts.ReplyTo}
	}
	sent, err := b.SendMessage(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("tgbot: send message: %w", err)
	}
	return convertMessage(sent), nil
}

// SendVoice implements telegram.Adapter. Duration comes from opts; the
// orchestrator probes it from the bytes before calling.
func (a *Adapter) SendVoice(ctx context.Context, chatID int64, data []byte, opts *telegram.VoiceOptions) (*telegram.InboundMessage, error) {
	b, err := a.client()
	if err != nil {
		return nil, err
	}
	params := &bot.SendVoiceParams{
		ChatID: chatID,
		Voice:  &models.InputFileUpload{Filename: "voice.ogg", Data: bytes.NewReader(data)},
	}
	applyVoiceOptions(opts, &params.Caption, &params.Duration, &params.ReplyParameters)
	sent, err := b.SendVoice(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("tgbot: send voice: %w", err)
	}
	return convertMessage(sent), nil
}

// SendAudio implements telegram.Adapter.
func (a *Adapter) SendAudio(ctx context.Context, chatID int64, data []byte, opts *telegram.VoiceOptions) (*telegram.InboundMessage, error) {
	b, err := a.client()
	if err != nil {
		return nil, err
	}
	params := &bot.SendAudioParams{
		ChatID: chatID,
		Audio:  &models.InputFileUpload{Filename: fileName(opts, "audio.mp3"), Data: bytes.NewReader(data)},
	}
	applyVoiceOptions(opts, &params.Caption, &params.Duration, &params.ReplyParameters)
	sent, err := b.SendAudio(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("tgbot: send audio: %w", err)
	}
	return convertMessage(sent), nil
}

// SendDocument implements telegram.Adapter.
func (a *Adapter) SendDocument(ctx context.Context, chatID int64, data []byte, opts *telegram.VoiceOptions) (*telegram.InboundMessage, error) {
	b, err := a.client()
	if err != nil {
		return nil, err
	}
	params := &bot.SendDocumentParams{
		ChatID:   chatID,
		Document: &models.InputFileUpload{Filename: fileName(opts, "file.bin"), Data: bytes.NewReader(data)},
	}
	var duration int
	applyVoiceOptions(opts, &params.Caption, &duration, &params.ReplyParameters)
	sent, err := b.SendDocument(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("tgbot: send document: %w", err)
	}
	return convertMessage(sent), nil
}

// EditMessageText implements telegram.Adapter.
func (a *Adapter) EditMessageText(ctx context.Context, chatID int64, messageID int, text string) (*telegram.InboundMessage, error) {
	b, err := a.client()
	if err != nil {
		return nil, err
	}
	edited, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	})
	if err != nil {
		return nil, fmt.Errorf("tgbot: edit message: %w", err)
	}
	return convertMessage(edited), nil
}

// DeleteMessage implements telegram.Adapter. Failures are reported to the
// error handler, never raised.
func (a *Adapter) DeleteMessage(ctx context.Context, chatID int64, messageID int) bool {
	b, err := a.client()
	if err != nil {
		return false
	}
	ok, err := b.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: messageID})
	if err != nil {
		a.logger.Debug("delete message", "chat_id", chatID, "message_id", messageID, "error", err)
		return false
	}
	return ok
}

// GetChat implements telegram.Adapter.
func (a *Adapter) GetChat(ctx context.Context, chatID int64) (*telegram.Chat, error) {
	b, err := a.client()
	if err != nil {
		return nil, err
	}
	info, err := b.GetChat(ctx, &bot.GetChatParams{ChatID: chatID})
	if err != nil {
		return nil, fmt.Errorf("tgbot: get chat: %w", err)
	}
	return &telegram.Chat{
		ID:          info.ID,
		Type:        telegram.ChatType(info.Type),
		Title:       info.Title,
		Username:    info.Username,
		Description: info.Description,
		InviteLink:  info.InviteLink,
	}, nil
}

// GetUser implements telegram.Adapter. The Bot API has no direct user lookup;
// a private chat shares the user's id, so the chat endpoint serves.
func (a *Adapter) GetUser(ctx context.Context, userID int64) (*telegram.User, error) {
	b, err := a.client()
	if err != nil {
		return nil, err
	}
	info, err := b.GetChat(ctx, &bot.GetChatParams{ChatID: userID})
	if err != nil {
		return nil, fmt.Errorf("tgbot: get user: %w", err)
	}
	return &telegram.User{
		ID:        info.ID,
		Username:  info.Username,
		FirstName: info.FirstName,
		LastName:  info.LastName,
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

func (a *Adapter) client() (*bot.Bot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.bot == nil {
		return nil, fmt.Errorf("tgbot: adapter not started")
	}
	return a.bot, nil
}

func applyVoiceOptions(opts *telegram.VoiceOptions, caption *string, duration *int, reply **models.ReplyParameters) {
	if opts == nil {
		return
	}
	*caption = opts.Caption
	*duration = opts.Duration
	if opts.ReplyTo != 0 {
		*reply = &models.ReplyParameters{MessageID: opts.ReplyTo}
	}
}

func fileName(opts *telegram.VoiceOptions, fallback string) string {
	if opts != nil && opts.Filename != "" {
		return opts.Filename
	}
	return fallback
}
