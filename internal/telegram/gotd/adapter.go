// Package gotd implements the transport adapter over github.com/gotd/td, an
// MTProto client. Like the gogram variant it is user-client style and needs
// an API id/hash pair in addition to the bot token.
//
// gotd addresses peers by id plus access hash, which bots can only obtain
// from updates they receive. The adapter therefore learns peers lazily from
// each update's entity list; sends to a chat the bot has never heard from
// fail with an unknown-peer error, which is acceptable for a reply-driven
// bot.
package gotd

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"

	voxtg "github.com/voxtela/voxtela/internal/telegram"
)

// Compile-time interface assertion.
var _ voxtg.Adapter = (*Adapter)(nil)

// Adapter wraps a gotd client.
type Adapter struct {
	cfg    voxtg.Config
	logger *slog.Logger
	peers  *peerStore

	mu        sync.RWMutex
	api       *tg.Client
	upload    *uploader.Uploader
	cancel    context.CancelFunc
	onMessage voxtg.MessageHandler
	onCallbck voxtg.CallbackHandler
	onError   voxtg.ErrorHandler
}

// New creates the adapter. Connection and bot login happen in Start.
func New(cfg voxtg.Config) (*Adapter, error) {
	if err := cfg.Validate("gotd", true); err != nil {
		return nil, err
	}
	return &Adapter{
		cfg:    cfg,
		logger: slog.Default().With("adapter", "gotd"),
		peers:  newPeerStore(),
	}, nil
}

// Name returns "gotd".
func (a *Adapter) Name() string { return "gotd" }

// Start authenticates as a bot and blocks inside the client's run loop until
// Stop is called or ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		a.peers.learn(e)
		a.deliverMessage(ctx, u.Message)
		return nil
	})
	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		a.peers.learn(e)
		a.deliverMessage(ctx, u.Message)
		return nil
	})
	dispatcher.OnBotCallbackQuery(func(ctx context.Context, e tg.Entities, u *tg.UpdateBotCallbackQuery) error {
		a.peers.learn(e)
		a.deliverCallback(ctx, u)
		return nil
	})

	opts := telegram.Options{UpdateHandler: dispatcher}
	if a.cfg.SessionDir != "" {
		opts.SessionStorage = &session.FileStorage{
			Path: filepath.Join(a.cfg.SessionDir, "gotd.session"),
		}
	}
	client := telegram.NewClient(a.cfg.APIID, a.cfg.APIHash, opts)

	return client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("gotd: auth status: %w", err)
		}
		if !status.Authorized {
			if _, err := client.Auth().Bot(ctx, a.cfg.Token); err != nil {
				return fmt.Errorf("gotd: bot login: %w", err)
			}
		}
		api := client.API()
		a.mu.Lock()
		a.api = api
		a.upload = uploader.NewUploader(api)
		a.mu.Unlock()

		a.logger.Info("connected, waiting for updates")
		<-ctx.Done()
		return ctx.Err()
	})
}

// Stop cancels the run loop.
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

func (a *Adapter) deliverMessage(ctx context.Context, msg tg.MessageClass) {
	m, ok := msg.(*tg.Message)
	if !ok || m.Out {
		return
	}
	h := a.messageHandler()
	if h == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				a.reportError(fmt.Errorf("gotd: handler panic: %v", r))
			}
		}()
		h(ctx, a.convertMessage(m))
	}()
}

func (a *Adapter) deliverCallback(ctx context.Context, u *tg.UpdateBotCallbackQuery) {
	// Dismiss the client-side spinner before handling.
	if api := a.client(); api != nil {
		req := &tg.MessagesSetBotCallbackAnswerRequest{QueryID: u.QueryID}
		if _, err := api.MessagesSetBotCallbackAnswer(ctx, req); err != nil {
			a.logger.Debug("answer callback", "error", err)
		}
	}
	h := a.callbackHandler()
	if h == nil {
		return
	}
	msg := &voxtg.InboundMessage{
		ID:     u.MsgID,
		ChatID: peerChatID(u.Peer),
		Text:   string(u.Data),
		Kind:   voxtg.KindText,
		Raw:    u,
	}
	if user, ok := a.peers.user(u.UserID); ok {
		msg.From = convertUser(user)
	} else {
		msg.From = &voxtg.User{ID: u.UserID}
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				a.reportError(fmt.Errorf("gotd: handler panic: %v", r))
			}
		}()
		h(ctx, msg)
	}()
}

// SendMessage implements telegram.Adapter.
func (a *Adapter) SendMessage(ctx context.Context, chatID int64, text string, opts *voxtg.SendOptions) (*voxtg.InboundMessage, error) {
	api := a.client()
	if api == nil {
		return nil, fmt.Errorf("gotd: adapter not started")
	}
	peer, err := a.peers.resolve(chatID)
	if err != nil {
		return nil, err
	}
	req := &tg.MessagesSendMessageRequest{
		Peer:     peer,
		Message:  text,
		RandomID: randomID(),
	}
	if opts != nil && opts.ReplyTo != 0 {
		req.SetReplyTo(&tg.InputReplyToMessage{ReplyToMsgID: opts.ReplyTo})
	}
	updates, err := api.MessagesSendMessage(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("gotd: send message: %w", err)
	}
	return sentStub(updates, chatID, text), nil
}

// SendVoice implements telegram.Adapter.
func (a *Adapter) SendVoice(ctx context.Context, chatID int64, data []byte, opts *voxtg.VoiceOptions) (*voxtg.InboundMessage, error) {
	return a.sendMedia(ctx, chatID, data, opts, "voice.ogg", "audio/ogg", true, false)
}

// SendAudio implements telegram.Adapter.
func (a *Adapter) SendAudio(ctx context.Context, chatID int64, data []byte, opts *voxtg.VoiceOptions) (*voxtg.InboundMessage, error) {
	return a.sendMedia(ctx, chatID, data, opts, "audio.mp3", "audio/mpeg", false, false)
}

// SendDocument implements telegram.Adapter.
func (a *Adapter) SendDocument(ctx context.Context, chatID int64, data []byte, opts *voxtg.VoiceOptions) (*voxtg.InboundMessage, error) {
	return a.sendMedia(ctx, chatID, data, opts, "file.bin", "application/octet-stream", false, true)
}

func (a *Adapter) sendMedia(ctx context.Context, chatID int64, data []byte, opts *voxtg.VoiceOptions, name, mime string, voice, forceFile bool) (*voxtg.InboundMessage, error) {
	a.mu.RLock()
	api, up := a.api, a.upload
	a.mu.RUnlock()
	if api == nil {
		return nil, fmt.Errorf("gotd: adapter not started")
	}
	peer, err := a.peers.resolve(chatID)
	if err != nil {
		return nil, err
	}

	caption := ""
	duration := 0
	if opts != nil {
		caption = opts.Caption
		duration = opts.Duration
		if opts.Filename != "" {
			name = opts.Filename
		}
	}

	file, err := up.FromBytes(ctx, name, data)
	if err != nil {
		return nil, fmt.Errorf("gotd: upload: %w", err)
	}
	attrs := []tg.DocumentAttributeClass{
		&tg.DocumentAttributeFilename{FileName: name},
	}
	if !forceFile {
		attrs = append(attrs, &tg.DocumentAttributeAudio{Voice: voice, Duration: duration})
	}
	media := &tg.InputMediaUploadedDocument{
		File:       file,
		MimeType:   mime,
		Attributes: attrs,
	}

	req := &tg.MessagesSendMediaRequest{
		Peer:     peer,
		Media:    media,
		Message:  caption,
		RandomID: randomID(),
	}
	if opts != nil && opts.ReplyTo != 0 {
		req.SetReplyTo(&tg.InputReplyToMessage{ReplyToMsgID: opts.ReplyTo})
	}
	updates, err := api.MessagesSendMedia(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("gotd: send media: %w", err)
	}
	sent := sentStub(updates, chatID, "")
	sent.Caption = caption
	sent.Kind = voxtg.KindVoice
	if !voice {
		sent.Kind = voxtg.KindAudio
	}
	if forceFile {
		sent.Kind = voxtg.KindDocument
	}
	return sent, nil
}

// EditMessageText implements telegram.Adapter.
func (a *Adapter) EditMessageText(ctx context.Context, chatID int64, messageID int, text string) (*voxtg.InboundMessage, error) {
	api := a.client()
	if api == nil {
		return nil, fmt.Errorf("gotd: adapter not started")
	}
	peer, err := a.peers.resolve(chatID)
	if err != nil {
		return nil, err
	}
	req := &tg.MessagesEditMessageRequest{Peer: peer, ID: messageID}
	req.SetMessage(text)
	if _, err := api.MessagesEditMessage(ctx, req); err != nil {
		return nil, fmt.Errorf("gotd: edit message: %w", err)
	}
	return &voxtg.InboundMessage{ID: messageID, ChatID: chatID, Text: text, Kind: voxtg.KindText}, nil
}

// DeleteMessage implements telegram.Adapter. Channels use their own deletion
// call; everything else goes through the common one.
func (a *Adapter) DeleteMessage(ctx context.Context, chatID int64, messageID int) bool {
	api := a.client()
	if api == nil {
		return false
	}
	peer, err := a.peers.resolve(chatID)
	if err != nil {
		a.logger.Debug("delete message", "chat_id", chatID, "error", err)
		return false
	}
	if ch, ok := peer.(*tg.InputPeerChannel); ok {
		_, err = api.ChannelsDeleteMessages(ctx, &tg.ChannelsDeleteMessagesRequest{
			Channel: &tg.InputChannel{ChannelID: ch.ChannelID, AccessHash: ch.AccessHash},
			ID:      []int{messageID},
		})
	} else {
		_, err = api.MessagesDeleteMessages(ctx, &tg.MessagesDeleteMessagesRequest{
			ID:     []int{messageID},
			Revoke: true,
		})
	}
	if err != nil {
		a.logger.Debug("delete message", "chat_id", chatID, "message_id", messageID, "error", err)
		return false
	}
	return true
}

// GetChat implements telegram.Adapter from the learned entities.
func (a *Adapter) GetChat(_ context.Context, chatID int64) (*voxtg.Chat, error) {
	title, ok := a.peers.chatTitle(chatID)
	if !ok {
		return nil, fmt.Errorf("gotd: unknown chat %d", chatID)
	}
	chatType := voxtg.ChatPrivate
	switch {
	case chatID < -channelIDOffset:
		chatType = voxtg.ChatSupergroup
	case chatID < 0:
		chatType = voxtg.ChatGroup
	}
	return &voxtg.Chat{ID: chatID, Type: chatType, Title: title}, nil
}

// GetUser implements telegram.Adapter from the learned entities.
func (a *Adapter) GetUser(_ context.Context, userID int64) (*voxtg.User, error) {
	user, ok := a.peers.user(userID)
	if !ok {
		return nil, fmt.Errorf("gotd: unknown user %d", userID)
	}
	return convertUser(user), nil
}

// SetMessageHandler implements telegram.Adapter.
func (a *Adapter) SetMessageHandler(h voxtg.MessageHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onMessage = h
}

// SetCallbackHandler implements telegram.Adapter.
func (a *Adapter) SetCallbackHandler(h voxtg.CallbackHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onCallbck = h
}

// SetErrorHandler implements telegram.Adapter.
func (a *Adapter) SetErrorHandler(h voxtg.ErrorHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onError = h
}

func (a *Adapter) messageHandler() voxtg.MessageHandler {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.onMessage
}

func (a *Adapter) callbackHandler() voxtg.CallbackHandler {
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

func (a *Adapter) client() *tg.Client {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.api
}

// randomID supplies the client-chosen message id MTProto requires per send.
func randomID() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 1
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) &^ (1 << 63))
}

// sentStub builds the normalized form of a just-sent message by pulling the
// assigned id out of the updates response.
func sentStub(updates tg.UpdatesClass, chatID int64, text string) *voxtg.InboundMessage {
	return &voxtg.InboundMessage{
		ID:     sentMessageID(updates),
		ChatID: chatID,
		Text:   text,
		Kind:   voxtg.KindText,
		Raw:    updates,
	}
}

// sentMessageID digs the server-assigned message id out of an updates result.
func sentMessageID(updates tg.UpdatesClass) int {
	switch u := updates.(type) {
	case *tg.UpdateShortSentMessage:
		return u.ID
	case *tg.Updates:
		for _, upd := range u.Updates {
			switch m := upd.(type) {
			case *tg.UpdateMessageID:
				return m.ID
			case *tg.UpdateNewMessage:
				if msg, ok := m.Message.(*tg.Message); ok {
					return msg.ID
				}
			case *tg.UpdateNewChannelMessage:
				if msg, ok := m.Message.(*tg.Message); ok {
					return msg.ID
				}
			}
		}
	}
	return 0
}
