package gotd

import (
	"testing"

	"github.com/gotd/td/tg"
)

func TestPeerStore_LearnAndResolve(t *testing.T) {
	s := newPeerStore()
	s.learn(tg.Entities{
		Users:    map[int64]*tg.User{7: {ID: 7, AccessHash: 111, FirstName: "Sam"}},
		Chats:    map[int64]*tg.Chat{55: {ID: 55, Title: "group"}},
		Channels: map[int64]*tg.Channel{99: {ID: 99, AccessHash: 222, Title: "chan"}},
	})

	peer, err := s.resolve(7)
	if err != nil {
		t.Fatalf("resolve user: %v", err)
	}
	if u, ok := peer.(*tg.InputPeerUser); !ok || u.AccessHash != 111 {
		t.Fatalf("user peer = %#v", peer)
	}

	peer, err = s.resolve(-55)
	if err != nil {
		t.Fatalf("resolve chat: %v", err)
	}
	if _, ok := peer.(*tg.InputPeerChat); !ok {
		t.Fatalf("chat peer = %#v", peer)
	}

	peer, err = s.resolve(channelChatID(99))
	if err != nil {
		t.Fatalf("resolve channel: %v", err)
	}
	if c, ok := peer.(*tg.InputPeerChannel); !ok || c.AccessHash != 222 {
		t.Fatalf("channel peer = %#v", peer)
	}

	if _, err := s.resolve(12345); err == nil {
		t.Fatal("unseen peer resolved")
	}
}

func TestPeerChatID_RoundTrip(t *testing.T) {
	if got := peerChatID(&tg.PeerUser{UserID: 7}); got != 7 {
		t.Errorf("user chat id = %d", got)
	}
	if got := peerChatID(&tg.PeerChat{ChatID: 55}); got != -55 {
		t.Errorf("group chat id = %d", got)
	}
	if got := peerChatID(&tg.PeerChannel{ChannelID: 99}); got != channelChatID(99) {
		t.Errorf("channel chat id = %d", got)
	}
}

func TestChatTitle(t *testing.T) {
	s := newPeerStore()
	s.learn(tg.Entities{
		Chats: map[int64]*tg.Chat{55: {ID: 55, Title: "the group"}},
	})
	title, ok := s.chatTitle(-55)
	if !ok || title != "the group" {
		t.Fatalf("chatTitle = (%q, %v)", title, ok)
	}
	if _, ok := s.chatTitle(-999); ok {
		t.Fatal("unknown chat produced a title")
	}
}
