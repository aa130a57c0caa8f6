package tgbot

import (
	"testing"

	"github.com/go-telegram/bot/models"

	"github.com/voxtela/voxtela/internal/telegram"
)

func TestConvertMessage_Text(t *testing.T) {
	msg := convertMessage(&models.Message{
		ID:   12,
		Chat: models.Chat{ID: 34},
		From: &models.User{ID: 56, Username: "sam", LanguageCode: "fa", IsPremium: true},
		Text: "hello",
		Date: 1_700_000_000,
	})
	if msg.ID != 12 || msg.ChatID != 34 {
		t.Fatalf("ids = (%d, %d)", msg.ID, msg.ChatID)
	}
	if msg.Kind != telegram.KindText || msg.Text != "hello" {
		t.Fatalf("kind/text = (%v, %q)", msg.Kind, msg.Text)
	}
	if msg.From == nil || msg.From.ID != 56 || msg.From.Language != "fa" || !msg.From.IsPremium {
		t.Fatalf("from = %+v", msg.From)
	}
	if msg.SentAt.Unix() != 1_700_000_000 {
		t.Fatalf("SentAt = %v", msg.SentAt)
	}
}

func TestConvertMessage_MediaPriority(t *testing.T) {
	// Voice wins over audio and document when several fields are set.
	msg := convertMessage(&models.Message{
		ID:       1,
		Chat:     models.Chat{ID: 2},
		Voice:    &models.Voice{},
		Audio:    &models.Audio{},
		Document: &models.Document{},
		Caption:  "cap",
	})
	if msg.Kind != telegram.KindVoice {
		t.Fatalf("Kind = %v, want voice", msg.Kind)
	}
	if msg.Caption != "cap" {
		t.Fatalf("Caption = %q", msg.Caption)
	}

	msg = convertMessage(&models.Message{ID: 1, Chat: models.Chat{ID: 2}, Document: &models.Document{}})
	if msg.Kind != telegram.KindDocument {
		t.Fatalf("Kind = %v, want document", msg.Kind)
	}

	msg = convertMessage(&models.Message{ID: 1, Chat: models.Chat{ID: 2}})
	if msg.Kind != telegram.KindUnknown {
		t.Fatalf("Kind = %v, want unknown", msg.Kind)
	}
}

func TestConvertCallback_PayloadInText(t *testing.T) {
	src := &models.Message{ID: 77, Chat: models.Chat{ID: 88}}
	msg := convertCallback(&models.CallbackQuery{
		From:    models.User{ID: 9},
		Data:    "engine_edge:fa",
		Message: models.MaybeInaccessibleMessage{Message: src},
	})
	if msg.Text != "engine_edge:fa" || msg.Kind != telegram.KindText {
		t.Fatalf("payload = (%q, %v)", msg.Text, msg.Kind)
	}
	if msg.ID != 77 || msg.ChatID != 88 {
		t.Fatalf("source ids = (%d, %d)", msg.ID, msg.ChatID)
	}
}

func TestConvertCallback_NoSourceMessage(t *testing.T) {
	msg := convertCallback(&models.CallbackQuery{From: models.User{ID: 9}, Data: "x"})
	if msg.ID != 0 || msg.ChatID != 0 {
		t.Fatalf("ids = (%d, %d), want zeros", msg.ID, msg.ChatID)
	}
}
