package tgbot

import (
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/voxtela/voxtela/internal/telegram"
)

// convertMessage maps a Bot-API message to the uniform inbound form. The
// media kind follows the documented priority order: voice before audio before
// document and so on, with text as the final fallback.
func convertMessage(msg *models.Message) *telegram.InboundMessage {
	if msg == nil {
		return nil
	}
	out := &telegram.InboundMessage{
		ID:           msg.ID,
		ChatID:       msg.Chat.ID,
		From:         convertUser(msg.From),
		Text:         msg.Text,
		Kind:         classify(msg),
		Caption:      msg.Caption,
		MediaGroupID: msg.MediaGroupID,
		Raw:          msg,
	}
	if msg.ReplyToMessage != nil {
		out.ReplyToID = msg.ReplyToMessage.ID
	}
	if msg.Date != 0 {
		out.SentAt = time.Unix(int64(msg.Date), 0)
	}
	if msg.EditDate != 0 {
		out.EditedAt = time.Unix(int64(msg.EditDate), 0)
	}
	for _, e := range msg.Entities {
		out.Entities = append(out.Entities, telegram.Entity{
			Type:   string(e.Type),
			Offset: e.Offset,
			Length: e.Length,
			URL:    e.URL,
		})
	}
	return out
}

func classify(msg *models.Message) telegram.Kind {
	switch {
	case msg.Voice != nil:
		return telegram.KindVoice
	case msg.Audio != nil:
		return telegram.KindAudio
	case msg.Document != nil:
		return telegram.KindDocument
	case len(msg.Photo) > 0:
		return telegram.KindPhoto
	case msg.Video != nil:
		return telegram.KindVideo
	case msg.Sticker != nil:
		return telegram.KindSticker
	case msg.Location != nil:
		return telegram.KindLocation
	case msg.Contact != nil:
		return telegram.KindContact
	case msg.Poll != nil:
		return telegram.KindPoll
	case msg.Text != "":
		return telegram.KindText
	default:
		return telegram.KindUnknown
	}
}

func convertUser(u *models.User) *telegram.User {
	if u == nil {
		return nil
	}
	return &telegram.User{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Language:  u.LanguageCode,
		IsBot:     u.IsBot,
		IsPremium: u.IsPremium,
	}
}

// convertCallback builds the uniform form of a callback query: the payload
// rides in Text with Kind text, ids fall back to zero when the source message
// is inaccessible.
func convertCallback(cb *models.CallbackQuery) *telegram.InboundMessage {
	out := &telegram.InboundMessage{
		Text: cb.Data,
		Kind: telegram.KindText,
		From: convertUser(&cb.From),
		Raw:  cb,
	}
	if src := cb.Message.Message; src != nil {
		out.ID = src.ID
		out.ChatID = src.Chat.ID
	}
	return out
}
