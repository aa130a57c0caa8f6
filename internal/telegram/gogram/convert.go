package gogram

import (
	"time"

	tg "github.com/amarnathcjd/gogram/telegram"

	"github.com/voxtela/voxtela/internal/telegram"
)

// convertMessage maps a gogram message to the uniform inbound form. Media
// classification follows the voice-first priority order; gogram folds the
// caption into Text() for media messages, so it is copied to Caption there.
func convertMessage(m *tg.NewMessage) *telegram.InboundMessage {
	if m == nil {
		return nil
	}
	kind := classify(m)
	out := &telegram.InboundMessage{
		ID:     int(m.ID),
		ChatID: m.ChatID(),
		From:   convertUser(m.Sender),
		Kind:   kind,
		Raw:    m,
	}
	if kind == telegram.KindText || kind == telegram.KindUnknown {
		out.Text = m.Text()
	} else {
		out.Caption = m.Text()
	}
	if id := m.ReplyToMsgID(); id != 0 {
		out.ReplyToID = int(id)
	}
	if m.Message != nil {
		if m.Message.Date != 0 {
			out.SentAt = time.Unix(int64(m.Message.Date), 0)
		}
		if m.Message.EditDate != 0 {
			out.EditedAt = time.Unix(int64(m.Message.EditDate), 0)
		}
	}
	return out
}

func classify(m *tg.NewMessage) telegram.Kind {
	if !m.IsMedia() {
		if m.Text() != "" {
			return telegram.KindText
		}
		return telegram.KindUnknown
	}
	switch {
	case m.Voice() != nil:
		return telegram.KindVoice
	case m.Audio() != nil:
		return telegram.KindAudio
	case m.Document() != nil:
		return telegram.KindDocument
	case m.Photo() != nil:
		return telegram.KindPhoto
	case m.Video() != nil:
		return telegram.KindVideo
	case m.Sticker() != nil:
		return telegram.KindSticker
	case m.Contact() != nil:
		return telegram.KindContact
	case m.Geo() != nil:
		return telegram.KindLocation
	default:
		return telegram.KindUnknown
	}
}

func convertUser(u *tg.UserObj) *telegram.User {
	if u == nil {
		return nil
	}
	return &telegram.User{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Language:  u.LangCode,
		IsBot:     u.Bot,
		IsPremium: u.Premium,
	}
}

// convertCallback builds the uniform form of a callback query with the
// payload in Text.
func convertCallback(cb *tg.CallbackQuery) *telegram.InboundMessage {
	return &telegram.InboundMessage{
		ID:     int(cb.MessageID),
		ChatID: cb.ChatID,
		Text:   cb.DataString(),
		Kind:   telegram.KindText,
		From:   convertUser(cb.Sender),
		Raw:    cb,
	}
}
