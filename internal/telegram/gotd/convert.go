package gotd

import (
	"strconv"
	"time"

	"github.com/gotd/td/tg"

	voxtg "github.com/voxtela/voxtela/internal/telegram"
)

// convertMessage maps a raw MTProto message to the uniform inbound form.
func (a *Adapter) convertMessage(m *tg.Message) *voxtg.InboundMessage {
	out := &voxtg.InboundMessage{
		ID:     m.ID,
		ChatID: peerChatID(m.PeerID),
		Kind:   classify(m),
		Raw:    m,
	}
	if out.Kind == voxtg.KindText || out.Kind == voxtg.KindUnknown {
		out.Text = m.Message
	} else {
		out.Caption = m.Message
	}
	if from, ok := m.FromID.(*tg.PeerUser); ok {
		if user, found := a.peers.user(from.UserID); found {
			out.From = convertUser(user)
		} else {
			out.From = &voxtg.User{ID: from.UserID}
		}
	} else if out.ChatID > 0 {
		// Private chats omit FromID; the peer is the sender.
		if user, found := a.peers.user(out.ChatID); found {
			out.From = convertUser(user)
		} else {
			out.From = &voxtg.User{ID: out.ChatID}
		}
	}
	if reply, ok := m.ReplyTo.(*tg.MessageReplyHeader); ok {
		out.ReplyToID = reply.ReplyToMsgID
	}
	if m.Date != 0 {
		out.SentAt = time.Unix(int64(m.Date), 0)
	}
	if m.EditDate != 0 {
		out.EditedAt = time.Unix(int64(m.EditDate), 0)
	}
	if m.GroupedID != 0 {
		out.MediaGroupID = strconv.FormatInt(m.GroupedID, 10)
	}
	for _, e := range m.Entities {
		if url, ok := e.(*tg.MessageEntityTextURL); ok {
			out.Entities = append(out.Entities, voxtg.Entity{
				Type:   "text_link",
				Offset: url.Offset,
				Length: url.Length,
				URL:    url.URL,
			})
		}
	}
	return out
}

func classify(m *tg.Message) voxtg.Kind {
	switch media := m.Media.(type) {
	case nil:
		if m.Message != "" {
			return voxtg.KindText
		}
		return voxtg.KindUnknown
	case *tg.MessageMediaDocument:
		doc, ok := media.Document.AsNotEmpty()
		if !ok {
			return voxtg.KindDocument
		}
		for _, attr := range doc.Attributes {
			switch at := attr.(type) {
			case *tg.DocumentAttributeAudio:
				if at.Voice {
					return voxtg.KindVoice
				}
				return voxtg.KindAudio
			case *tg.DocumentAttributeSticker:
				return voxtg.KindSticker
			case *tg.DocumentAttributeVideo:
				return voxtg.KindVideo
			}
		}
		return voxtg.KindDocument
	case *tg.MessageMediaPhoto:
		return voxtg.KindPhoto
	case *tg.MessageMediaGeo, *tg.MessageMediaGeoLive, *tg.MessageMediaVenue:
		return voxtg.KindLocation
	case *tg.MessageMediaContact:
		return voxtg.KindContact
	case *tg.MessageMediaPoll:
		return voxtg.KindPoll
	default:
		return voxtg.KindUnknown
	}
}

func convertUser(u *tg.User) *voxtg.User {
	return &voxtg.User{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Language:  u.LangCode,
		IsBot:     u.Bot,
		IsPremium: u.Premium,
	}
}
