package bot

import (
	"context"
	"testing"

	"github.com/voxtela/voxtela/internal/cache"
	"github.com/voxtela/voxtela/internal/engine"
	enginemock "github.com/voxtela/voxtela/internal/engine/mock"
	"github.com/voxtela/voxtela/internal/ratelimit"
	"github.com/voxtela/voxtela/internal/router"
	"github.com/voxtela/voxtela/internal/telegram"
	tgmock "github.com/voxtela/voxtela/internal/telegram/mock"
)

func newBareBot(t *testing.T, sudo ...int64) *Bot {
	t.Helper()
	reg := engine.NewRegistry()
	if err := reg.Register(enginemock.New("gtts", []byte("x"))); err != nil {
		t.Fatal(err)
	}
	c, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return New(tgmock.New(), reg, router.New(reg), c, ratelimit.New(10, 3), Options{SudoUsers: sudo})
}

func TestNormalizeCommandKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/start", "start"},
		{"/START", "start"},
		{"/stats@voxtela_bot", "stats"},
		{"help", "help"},
		{"/", ""},
	}
	for _, tt := range tests {
		if got := normalizeCommandKey(tt.in); got != tt.want {
			t.Errorf("normalizeCommandKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCommandRegistry_DispatchByFirstToken(t *testing.T) {
	b := newBareBot(t)
	r := NewCommandRegistry()
	var gotArgs string
	r.Register("echo", func(_ context.Context, _ *Bot, msg *inbound) error {
		gotArgs = msg.Text
		return nil
	}, false)

	msg := &telegram.InboundMessage{Text: "/Echo@voxtela_bot some args", From: &telegram.User{ID: 1}}
	if !r.Dispatch(context.Background(), b, msg) {
		t.Fatal("registered command not handled")
	}
	if gotArgs != "/Echo@voxtela_bot some args" {
		t.Fatalf("handler got %q", gotArgs)
	}
	if r.Dispatch(context.Background(), b, &telegram.InboundMessage{Text: "/missing"}) {
		t.Fatal("unregistered command reported handled")
	}
}

func TestCommandRegistry_AdminSubset(t *testing.T) {
	b := newBareBot(t, 1)
	r := NewCommandRegistry()
	called := false
	r.Register("wipe", func(context.Context, *Bot, *inbound) error {
		called = true
		return nil
	}, true)

	notSudo := &telegram.InboundMessage{Text: "/wipe", From: &telegram.User{ID: 2}}
	if r.Dispatch(context.Background(), b, notSudo) || called {
		t.Fatal("admin command ran for non-privileged sender")
	}
	sudo := &telegram.InboundMessage{Text: "/wipe", From: &telegram.User{ID: 1}}
	if !r.Dispatch(context.Background(), b, sudo) || !called {
		t.Fatal("admin command did not run for privileged sender")
	}
}

func TestCommandRegistry_HandlerErrorMeansUnhandled(t *testing.T) {
	b := newBareBot(t)
	r := NewCommandRegistry()
	r.Register("boom", func(context.Context, *Bot, *inbound) error {
		return context.DeadlineExceeded
	}, false)
	msg := &telegram.InboundMessage{Text: "/boom", From: &telegram.User{ID: 1}}
	if r.Dispatch(context.Background(), b, msg) {
		t.Fatal("erroring handler reported handled")
	}
}

func TestCallbackRegistry_ExactBeforePrefix(t *testing.T) {
	b := newBareBot(t)
	r := NewCallbackRegistry()
	var which string
	r.RegisterPrefix("engine_", func(_ context.Context, _ *Bot, _ *inbound, _ string) error {
		which = "prefix"
		return nil
	}, false)
	r.Register("engine_edge", func(_ context.Context, _ *Bot, _ *inbound, _ string) error {
		which = "exact"
		return nil
	}, false)

	msg := &telegram.InboundMessage{Text: "engine_edge", From: &telegram.User{ID: 1}}
	if !r.Dispatch(context.Background(), b, msg) {
		t.Fatal("callback not handled")
	}
	if which != "exact" {
		t.Fatalf("dispatched to %q, want exact handler", which)
	}

	msg = &telegram.InboundMessage{Text: "engine_piper:fa", From: &telegram.User{ID: 1}}
	if !r.Dispatch(context.Background(), b, msg) {
		t.Fatal("prefix callback not handled")
	}
	if which != "prefix" {
		t.Fatalf("dispatched to %q, want prefix handler", which)
	}
}

func TestParseEngineSelection(t *testing.T) {
	sel, err := parseEngineSelection("engine_edge:fa")
	if err != nil || sel.engine != "edge" || sel.lang != "fa" {
		t.Fatalf("got (%+v, %v)", sel, err)
	}
	sel, err = parseEngineSelection("engine_piper")
	if err != nil || sel.engine != "piper" || sel.lang != "" {
		t.Fatalf("got (%+v, %v)", sel, err)
	}
	if _, err := parseEngineSelection("engine_"); err == nil {
		t.Fatal("empty engine name accepted")
	}
}

func TestParseSettingToggle(t *testing.T) {
	toggle, err := parseSettingToggle("settings_cache_off")
	if err != nil || toggle.key != "cache" || toggle.on {
		t.Fatalf("got (%+v, %v)", toggle, err)
	}
	toggle, err = parseSettingToggle("settings_audio_on")
	if err != nil || toggle.key != "audio" || !toggle.on {
		t.Fatalf("got (%+v, %v)", toggle, err)
	}
	if _, err := parseSettingToggle("settings_cache_maybe"); err == nil {
		t.Fatal("invalid state accepted")
	}
}
