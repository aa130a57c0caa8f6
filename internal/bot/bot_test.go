package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/voxtela/voxtela/internal/cache"
	"github.com/voxtela/voxtela/internal/engine"
	enginemock "github.com/voxtela/voxtela/internal/engine/mock"
	"github.com/voxtela/voxtela/internal/ratelimit"
	"github.com/voxtela/voxtela/internal/router"
	"github.com/voxtela/voxtela/internal/telegram"
	tgmock "github.com/voxtela/voxtela/internal/telegram/mock"
)

var errSynth = errors.New("engine down")

type fixture struct {
	bot     *Bot
	adapter *tgmock.Adapter
	cache   *cache.Cache
	router  *router.Router
	reg     *engine.Registry
}

func newFixture(t *testing.T, opts Options, engines ...engine.Engine) *fixture {
	t.Helper()
	reg := engine.NewRegistry()
	for _, e := range engines {
		if err := reg.Register(e); err != nil {
			t.Fatalf("register %s: %v", e.Name(), err)
		}
	}
	c, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	rt := router.New(reg)
	adapter := tgmock.New()
	if opts.Requirements == nil {
		opts.Requirements = engine.Requirements{}
	}
	b := New(adapter, reg, rt, c, ratelimit.New(1000, 1000), opts)
	return &fixture{bot: b, adapter: adapter, cache: c, router: rt, reg: reg}
}

func textMsg(id int, chatID int64, userID int64, body string) *telegram.InboundMessage {
	return &telegram.InboundMessage{
		ID:     id,
		ChatID: chatID,
		From:   &telegram.User{ID: userID},
		Text:   body,
		Kind:   telegram.KindText,
	}
}

func TestProcessTTS_FreshSynthesis(t *testing.T) {
	f := newFixture(t, Options{CacheEnabled: true}, enginemock.New("gtts", []byte("audio-bytes")))
	ctx := context.Background()

	f.adapter.Deliver(ctx, textMsg(1, 42, 7, "hello"))

	voices := f.adapter.SendsOf("voice")
	if len(voices) != 1 {
		t.Fatalf("voice sends = %d, want 1", len(voices))
	}
	if !strings.HasPrefix(voices[0].Caption, "hello") {
		t.Fatalf("caption = %q, want prefix hello", voices[0].Caption)
	}
	if voices[0].ReplyTo != 1 {
		t.Fatalf("voice ReplyTo = %d, want 1", voices[0].ReplyTo)
	}
	if len(f.adapter.SendsOf("delete")) != 1 {
		t.Fatal("status message was not deleted")
	}
	if f.cache.Len() != 1 {
		t.Fatalf("cache entries = %d, want 1", f.cache.Len())
	}

	snap := f.bot.Stats().Snapshot()
	if snap.SynthRequests != 1 || snap.CacheMisses != 1 || snap.CacheHits != 0 {
		t.Fatalf("stats = %+v, want 1 request, 1 miss", snap)
	}
}

func TestProcessTTS_CacheHitSkipsEngine(t *testing.T) {
	eng := enginemock.New("gtts", []byte("audio-bytes"))
	f := newFixture(t, Options{CacheEnabled: true}, eng)
	ctx := context.Background()

	f.adapter.Deliver(ctx, textMsg(1, 42, 7, "hello"))
	f.adapter.Deliver(ctx, textMsg(2, 42, 7, "hello"))

	if calls := len(eng.Calls()); calls != 1 {
		t.Fatalf("engine calls = %d, want 1 (second request served from cache)", calls)
	}
	if len(f.adapter.SendsOf("voice")) != 2 {
		t.Fatal("second voice reply missing")
	}
	snap := f.bot.Stats().Snapshot()
	if snap.CacheHits != 1 {
		t.Fatalf("cache hits = %d, want 1", snap.CacheHits)
	}
	if f.router.AllStats()["gtts"].Requests != 1 {
		t.Fatal("engine stats changed on a cache hit")
	}
}

func TestProcessTTS_PolicyFallback(t *testing.T) {
	f := newFixture(t, Options{CacheEnabled: true},
		enginemock.Failing("edge", errSynth),
		enginemock.New("piper", []byte("piper-bytes")),
		enginemock.New("gtts", []byte("gtts-bytes")),
	)
	f.reg.SetPolicy("fa", []string{"edge", "piper", "gtts"})
	ctx := context.Background()

	f.adapter.Deliver(ctx, textMsg(1, 42, 7, "[fa]: سلام دنیا"))

	voices := f.adapter.SendsOf("voice")
	if len(voices) != 1 {
		t.Fatalf("voice sends = %d, want 1", len(voices))
	}
	if string(voices[0].Data) != "piper-bytes" {
		t.Fatalf("voice data from %q, want piper output", voices[0].Data)
	}
	stats := f.router.AllStats()
	if stats["edge"].Failures != 1 || stats["piper"].Successes != 1 {
		t.Fatalf("router stats = %+v, want edge failure and piper success", stats)
	}
}

func TestProcessTTS_PinnedEngineAbsent(t *testing.T) {
	f := newFixture(t, Options{CacheEnabled: true}, enginemock.New("gtts", []byte("x")))
	ctx := context.Background()

	f.adapter.Deliver(ctx, textMsg(1, 42, 7, "/tts {edge} hi"))

	if len(f.adapter.SendsOf("voice")) != 0 {
		t.Fatal("voice sent despite absent pinned engine")
	}
	if f.bot.Stats().Snapshot().EngineFailures != 1 {
		t.Fatal("engine_failures not counted")
	}
	// The status message is edited into the error reply.
	edits := f.adapter.SendsOf("edit")
	if len(edits) != 1 || !strings.Contains(edits[0].Text, "No engine") {
		t.Fatalf("edits = %+v, want engine-not-found text", edits)
	}
}

func TestProcessTTS_AllEnginesFail(t *testing.T) {
	f := newFixture(t, Options{CacheEnabled: true},
		enginemock.Failing("a", errSynth),
		enginemock.Failing("b", errSynth),
		enginemock.Failing("c", errSynth),
	)
	ctx := context.Background()

	f.adapter.Deliver(ctx, textMsg(1, 42, 7, "hello"))

	if len(f.adapter.SendsOf("voice")) != 0 {
		t.Fatal("voice sent although every engine failed")
	}
	if f.cache.Len() != 0 {
		t.Fatal("failed synthesis wrote a cache entry")
	}
	if f.bot.Stats().Snapshot().EngineFailures != 1 {
		t.Fatal("engine_failures not counted")
	}
	edits := f.adapter.SendsOf("edit")
	if len(edits) != 1 || !strings.Contains(edits[0].Text, "failed") {
		t.Fatalf("edits = %+v, want generic TTS error", edits)
	}
}

func TestCallback_EngineSelection(t *testing.T) {
	f := newFixture(t, Options{CacheEnabled: true},
		enginemock.New("piper", []byte("x")),
		enginemock.New("edge", []byte("y")),
		enginemock.New("gtts", []byte("z")),
	)
	f.reg.SetPolicy("fa", []string{"piper", "edge", "gtts"})
	ctx := context.Background()

	f.adapter.DeliverCallback(ctx, &telegram.InboundMessage{
		ID:     9,
		ChatID: 42,
		From:   &telegram.User{ID: 7},
		Text:   "engine_edge:fa",
		Kind:   telegram.KindText,
	})

	policy, _ := f.reg.Policy("fa")
	want := "edge piper gtts"
	if got := strings.Join(policy, " "); got != want {
		t.Fatalf("policy after callback = %q, want %q", got, want)
	}
	msgs := f.adapter.SendsOf("message")
	if len(msgs) != 1 || !strings.Contains(msgs[0].Text, "edge") {
		t.Fatalf("confirmation missing: %+v", msgs)
	}
}

func TestCallback_SettingsToggle(t *testing.T) {
	f := newFixture(t, Options{CacheEnabled: true}, enginemock.New("gtts", []byte("x")))
	ctx := context.Background()

	f.adapter.DeliverCallback(ctx, &telegram.InboundMessage{
		ChatID: 42, From: &telegram.User{ID: 7}, Text: "settings_cache_off", Kind: telegram.KindText,
	})
	if f.bot.cacheEnabled.Load() {
		t.Fatal("cache toggle still on after settings_cache_off")
	}

	f.adapter.DeliverCallback(ctx, &telegram.InboundMessage{
		ChatID: 42, From: &telegram.User{ID: 7}, Text: "settings_audio_on", Kind: telegram.KindText,
	})
	if !f.bot.audioProc.Load() {
		t.Fatal("audio toggle off after settings_audio_on")
	}
}

func TestCallback_AdminGated(t *testing.T) {
	f := newFixture(t, Options{CacheEnabled: true, SudoUsers: []int64{1}}, enginemock.New("gtts", []byte("x")))
	ctx := context.Background()
	f.cache.Put(cache.Fingerprint("x", "en", ""), []byte("blob"), "ogg", nil)

	// Non-privileged sender: ignored.
	f.adapter.DeliverCallback(ctx, &telegram.InboundMessage{
		ChatID: 42, From: &telegram.User{ID: 7}, Text: "admin_clear_cache", Kind: telegram.KindText,
	})
	if f.cache.Len() != 1 {
		t.Fatal("non-sudo admin callback was executed")
	}

	// Privileged sender: executed.
	f.adapter.DeliverCallback(ctx, &telegram.InboundMessage{
		ChatID: 42, From: &telegram.User{ID: 1}, Text: "admin_clear_cache", Kind: telegram.KindText,
	})
	if f.cache.Len() != 0 {
		t.Fatal("sudo admin callback did not run")
	}
}

func TestCommand_AdminGated(t *testing.T) {
	f := newFixture(t, Options{CacheEnabled: true, SudoUsers: []int64{1}}, enginemock.New("gtts", []byte("x")))
	ctx := context.Background()

	f.adapter.Deliver(ctx, textMsg(1, 42, 7, "/stats"))
	if len(f.adapter.SendsOf("message")) != 0 {
		t.Fatal("/stats answered a non-privileged user")
	}

	f.adapter.Deliver(ctx, textMsg(2, 42, 1, "/stats"))
	if len(f.adapter.SendsOf("message")) != 1 {
		t.Fatal("/stats did not answer the sudo user")
	}
}

func TestEmptyTextRejected(t *testing.T) {
	f := newFixture(t, Options{CacheEnabled: true}, enginemock.New("gtts", []byte("x")))
	ctx := context.Background()

	f.adapter.Deliver(ctx, textMsg(1, 42, 7, "/tts"))

	if f.bot.Stats().Snapshot().SynthRequests != 0 {
		t.Fatal("empty text reached the router")
	}
	msgs := f.adapter.SendsOf("message")
	if len(msgs) != 1 || !strings.Contains(msgs[0].Text, "Nothing to say") {
		t.Fatalf("empty-text reply missing: %+v", msgs)
	}
}

func TestNonTextIgnored(t *testing.T) {
	f := newFixture(t, Options{CacheEnabled: true}, enginemock.New("gtts", []byte("x")))
	ctx := context.Background()

	f.adapter.Deliver(ctx, &telegram.InboundMessage{
		ID: 1, ChatID: 42, From: &telegram.User{ID: 7}, Kind: telegram.KindPhoto, Caption: "nice",
	})
	if len(f.adapter.Sends()) != 0 {
		t.Fatal("non-text message produced a reply")
	}
	if f.bot.Stats().Snapshot().Messages != 1 {
		t.Fatal("non-text message not counted")
	}
}

func TestRateLimitDenial(t *testing.T) {
	reg := engine.NewRegistry()
	if err := reg.Register(enginemock.New("gtts", []byte("x"))); err != nil {
		t.Fatal(err)
	}
	c, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	adapter := tgmock.New()
	gate := ratelimit.New(1, 1)
	New(adapter, reg, router.New(reg), c, gate, Options{
		CacheEnabled: true, Requirements: engine.Requirements{},
	})
	ctx := context.Background()

	adapter.Deliver(ctx, textMsg(1, 42, 7, "first"))
	adapter.Deliver(ctx, textMsg(2, 42, 7, "second"))

	if got := len(adapter.SendsOf("voice")); got != 1 {
		t.Fatalf("voice sends = %d, want 1 (second denied)", got)
	}
	msgs := adapter.SendsOf("message")
	denied := false
	for _, m := range msgs {
		if strings.Contains(m.Text, "Too many requests") {
			denied = true
		}
	}
	if !denied {
		t.Fatal("rate-limit denial message missing")
	}
}

func TestShutdownCommand(t *testing.T) {
	f := newFixture(t, Options{CacheEnabled: true, SudoUsers: []int64{1}}, enginemock.New("gtts", []byte("x")))
	ctx := context.Background()

	f.adapter.Deliver(ctx, textMsg(1, 42, 1, "/shutdown"))
	if f.bot.running.Load() {
		t.Fatal("bot still running after /shutdown")
	}
	// Messages after shutdown are dropped.
	f.adapter.Deliver(ctx, textMsg(2, 42, 1, "hello"))
	if len(f.adapter.SendsOf("voice")) != 0 {
		t.Fatal("message processed after shutdown")
	}
}
