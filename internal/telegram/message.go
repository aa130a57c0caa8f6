// Package telegram defines the uniform transport contract: a normalized
// inbound message model, the Adapter interface each client-library variant
// implements, and the TTS command grammar parser.
//
// Four interchangeable adapter variants exist under this package, one per
// upstream client library. Two of them (the user-client style) additionally
// require an API id/hash pair; see [New] for selection by name.
package telegram

import "time"

// Kind classifies an inbound message by its dominant content.
type Kind int

const (
	KindUnknown Kind = iota
	KindText
	KindVoice
	KindAudio
	KindDocument
	KindPhoto
	KindVideo
	KindSticker
	KindLocation
	KindContact
	KindPoll
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindVoice:
		return "voice"
	case KindAudio:
		return "audio"
	case KindDocument:
		return "document"
	case KindPhoto:
		return "photo"
	case KindVideo:
		return "video"
	case KindSticker:
		return "sticker"
	case KindLocation:
		return "location"
	case KindContact:
		return "contact"
	case KindPoll:
		return "poll"
	default:
		return "unknown"
	}
}

// User is the normalized sender record.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	Language  string
	IsBot     bool
	IsPremium bool
}

// ChatType is the normalized chat classification.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// Chat is the normalized chat record, read through an adapter on demand.
type Chat struct {
	ID          int64
	Type        ChatType
	Title       string
	Username    string
	Description string
	InviteLink  string
}

// Entity is one text-entity record (mention, url, bold, …) carried through
// verbatim from the provider.
type Entity struct {
	Type   string
	Offset int
	Length int
	URL    string
}

// InboundMessage is the uniform event every adapter variant produces. It is
// created once per received update and never mutated.
//
// ID and ChatID are always present. For a callback event, Text carries the
// callback payload string and Kind is [KindText].
type InboundMessage struct {
	ID     int
	ChatID int64
	From   *User
	Text   string
	Kind   Kind

	ReplyToID    int
	SentAt       time.Time
	EditedAt     time.Time
	MediaGroupID string
	Caption      string
	Entities     []Entity

	// Raw is the provider's original message object, kept for debugging
	// only. Never type-assert on it in orchestration code.
	Raw any
}
