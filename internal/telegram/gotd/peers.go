package gotd

import (
	"fmt"
	"sync"

	"github.com/gotd/td/tg"
)

// Chat ids follow the Bot-API convention shared by the other adapter
// variants: users keep their positive id, basic groups are negated, and
// channels get the -100… prefix. MTProto needs the raw id plus an access
// hash to address a peer, so the store remembers both.
const channelIDOffset int64 = 1_000_000_000_000

func userChatID(id int64) int64    { return id }
func groupChatID(id int64) int64   { return -id }
func channelChatID(id int64) int64 { return -(channelIDOffset + id) }

// peerStore accumulates input peers from the entity lists attached to
// updates. Bots only ever talk to peers they have seen an update from, so
// learning peers lazily covers every send the orchestrator issues.
type peerStore struct {
	mu    sync.RWMutex
	peers map[int64]tg.InputPeerClass
	users map[int64]*tg.User
	chats map[int64]*tg.Chat
	chans map[int64]*tg.Channel
}

func newPeerStore() *peerStore {
	return &peerStore{
		peers: make(map[int64]tg.InputPeerClass),
		users: make(map[int64]*tg.User),
		chats: make(map[int64]*tg.Chat),
		chans: make(map[int64]*tg.Channel),
	}
}

// learn records every entity of one update batch.
func (s *peerStore) learn(e tg.Entities) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range e.Users {
		s.users[id] = u
		s.peers[userChatID(id)] = &tg.InputPeerUser{UserID: id, AccessHash: u.AccessHash}
	}
	for id, c := range e.Chats {
		s.chats[id] = c
		s.peers[groupChatID(id)] = &tg.InputPeerChat{ChatID: id}
	}
	for id, c := range e.Channels {
		s.chans[id] = c
		s.peers[channelChatID(id)] = &tg.InputPeerChannel{ChannelID: id, AccessHash: c.AccessHash}
	}
}

// resolve returns the input peer for a Bot-API style chat id.
func (s *peerStore) resolve(chatID int64) (tg.InputPeerClass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.peers[chatID]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("gotd: unknown peer %d (no update seen from it yet)", chatID)
}

// user returns a previously learned user entity.
func (s *peerStore) user(id int64) (*tg.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// chatTitle returns whatever title is known for a chat id.
func (s *peerStore) chatTitle(chatID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case chatID < -channelIDOffset:
		if c, ok := s.chans[-chatID-channelIDOffset]; ok {
			return c.Title, true
		}
	case chatID < 0:
		if c, ok := s.chats[-chatID]; ok {
			return c.Title, true
		}
	default:
		if u, ok := s.users[chatID]; ok {
			return u.FirstName, true
		}
	}
	return "", false
}

// peerChatID converts an update's peer to the Bot-API style chat id.
func peerChatID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return userChatID(p.UserID)
	case *tg.PeerChat:
		return groupChatID(p.ChatID)
	case *tg.PeerChannel:
		return channelChatID(p.ChannelID)
	default:
		return 0
	}
}
