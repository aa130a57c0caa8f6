package telebot

import (
	"bytes"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/voxtela/voxtela/internal/telegram"
)

func fileFromBytes(data []byte, name string) tele.File {
	f := tele.FromReader(bytes.NewReader(data))
	f.FileName = name
	return f
}

// convertMessage maps a telebot message to the uniform inbound form.
func convertMessage(msg *tele.Message) *telegram.InboundMessage {
	if msg == nil {
		return nil
	}
	out := &telegram.InboundMessage{
		ID:           msg.ID,
		Text:         msg.Text,
		Kind:         classify(msg),
		From:         convertUser(msg.Sender),
		Caption:      msg.Caption,
		MediaGroupID: msg.AlbumID,
		Raw:          msg,
	}
	if msg.Chat != nil {
		out.ChatID = msg.Chat.ID
	}
	if msg.ReplyTo != nil {
		out.ReplyToID = msg.ReplyTo.ID
	}
	if msg.Unixtime != 0 {
		out.SentAt = time.Unix(msg.Unixtime, 0)
	}
	if msg.LastEdit != 0 {
		out.EditedAt = time.Unix(msg.LastEdit, 0)
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

func classify(msg *tele.Message) telegram.Kind {
	switch {
	case msg.Voice != nil:
		return telegram.KindVoice
	case msg.Audio != nil:
		return telegram.KindAudio
	case msg.Document != nil:
		return telegram.KindDocument
	case msg.Photo != nil:
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

func convertUser(u *tele.User) *telegram.User {
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

// convertCallback builds the uniform form of a callback query with the
// payload in Text. Ids are zero when the source message is gone.
func convertCallback(cb *tele.Callback) *telegram.InboundMessage {
	out := &telegram.InboundMessage{
		Text: cb.Data,
		Kind: telegram.KindText,
		From: convertUser(cb.Sender),
		Raw:  cb,
	}
	if cb.Message != nil {
		out.ID = cb.Message.ID
		if cb.Message.Chat != nil {
			out.ChatID = cb.Message.Chat.ID
		}
	}
	return out
}
