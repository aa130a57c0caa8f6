package router

import (
	"context"
	"errors"
	"testing"

	"github.com/voxtela/voxtela/internal/engine"
	enginemock "github.com/voxtela/voxtela/internal/engine/mock"
)

var errSynth = errors.New("synthesis blew up")

func newRegistry(t *testing.T, engines ...engine.Engine) *engine.Registry {
	t.Helper()
	reg := engine.NewRegistry()
	for _, e := range engines {
		if err := reg.Register(e); err != nil {
			t.Fatalf("register %s: %v", e.Name(), err)
		}
	}
	return reg
}

func TestSynthesize_Success(t *testing.T) {
	payload := []byte("mp3-bytes")
	reg := newRegistry(t, enginemock.New("gtts", payload))
	r := New(reg)

	audio, name, err := r.Synthesize(context.Background(), Request{Text: "hello", Lang: "en"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "gtts" {
		t.Fatalf("engine = %q, want gtts", name)
	}
	if string(audio.Data) != string(payload) {
		t.Fatalf("audio = %q, want %q", audio.Data, payload)
	}

	snap := r.AllStats()["gtts"]
	if snap.Requests != 1 || snap.Successes != 1 || snap.Failures != 0 {
		t.Fatalf("stats = %+v, want 1 request, 1 success", snap)
	}
}

func TestSynthesize_FallsBackInPolicyOrder(t *testing.T) {
	reg := newRegistry(t,
		enginemock.Failing("edge", errSynth),
		enginemock.New("piper", []byte("wav")),
		enginemock.New("gtts", []byte("mp3")),
	)
	reg.SetPolicy("fa", []string{"edge", "piper", "gtts"})
	r := New(reg)

	_, name, err := r.Synthesize(context.Background(), Request{Text: "سلام دنیا", Lang: "fa"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "piper" {
		t.Fatalf("engine = %q, want piper (first healthy in policy)", name)
	}

	stats := r.AllStats()
	if stats["edge"].Failures != 1 {
		t.Errorf("edge failures = %d, want 1", stats["edge"].Failures)
	}
	if stats["piper"].Successes != 1 {
		t.Errorf("piper successes = %d, want 1", stats["piper"].Successes)
	}
	if stats["gtts"].Requests != 0 {
		t.Errorf("gtts requests = %d, want 0 (never tried)", stats["gtts"].Requests)
	}
}

func TestSynthesize_AllFail(t *testing.T) {
	reg := newRegistry(t,
		enginemock.Failing("a", errSynth),
		enginemock.Failing("b", errSynth),
	)
	r := New(reg)

	_, _, err := r.Synthesize(context.Background(), Request{Text: "x", Lang: "en"})
	if !errors.Is(err, ErrAllEnginesFailed) {
		t.Fatalf("err = %v, want ErrAllEnginesFailed", err)
	}
}

func TestSynthesize_NoCandidates(t *testing.T) {
	reg := newRegistry(t)
	r := New(reg)

	_, _, err := r.Synthesize(context.Background(), Request{Text: "x", Lang: "en"})
	if !errors.Is(err, ErrEngineNotFound) {
		t.Fatalf("err = %v, want ErrEngineNotFound", err)
	}
}

func TestSynthesize_PinnedEngineAbsent(t *testing.T) {
	reg := newRegistry(t, enginemock.New("gtts", []byte("x")))
	r := New(reg)

	_, _, err := r.Synthesize(context.Background(), Request{Text: "hi", Lang: "en", Engine: "edge"})
	if !errors.Is(err, ErrEngineNotFound) {
		t.Fatalf("err = %v, want ErrEngineNotFound for absent pinned engine", err)
	}
}

func TestSynthesize_PinnedEngineNoFallback(t *testing.T) {
	reg := newRegistry(t,
		enginemock.Failing("edge", errSynth),
		enginemock.New("gtts", []byte("x")),
	)
	r := New(reg)

	_, _, err := r.Synthesize(context.Background(), Request{Text: "hi", Lang: "en", Engine: "edge"})
	if !errors.Is(err, ErrAllEnginesFailed) {
		t.Fatalf("err = %v, want ErrAllEnginesFailed (no fallback past the pin)", err)
	}
	if r.AllStats()["gtts"].Requests != 0 {
		t.Fatal("fallback engine was tried despite the pin")
	}
}

func TestSynthesize_LanguageFilter(t *testing.T) {
	only := enginemock.New("only-fa", []byte("x"))
	only.Desc = engine.Descriptor{Name: "only-fa", Languages: engine.LanguageSet("fa")}
	reg := newRegistry(t, only)
	r := New(reg)

	if _, _, err := r.Synthesize(context.Background(), Request{Text: "hi", Lang: "en"}); !errors.Is(err, ErrEngineNotFound) {
		t.Fatalf("err = %v, want ErrEngineNotFound for unsupported language", err)
	}
	if _, _, err := r.Synthesize(context.Background(), Request{Text: "hi", Lang: "fa"}); err != nil {
		t.Fatalf("supported language failed: %v", err)
	}
}

func TestSynthesize_RequirementsFilter(t *testing.T) {
	online := enginemock.New("online", []byte("x"))
	offline := enginemock.New("offline", []byte("y"))
	offline.Desc = engine.Descriptor{Name: "offline", Offline: true, Languages: engine.LanguageSet("en")}
	reg := newRegistry(t, online, offline)
	r := New(reg)

	_, name, err := r.Synthesize(context.Background(), Request{
		Text: "hi", Lang: "en",
		Requirements: engine.Requirements{engine.ReqOffline: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "offline" {
		t.Fatalf("engine = %q, want offline", name)
	}
}

func TestSynthesize_VoiceFilter(t *testing.T) {
	voiced := enginemock.New("voiced", []byte("x"))
	voiced.Desc = engine.Descriptor{
		Name:      "voiced",
		Languages: engine.LanguageSet("en"),
		Voices:    map[string]bool{"aria": true},
	}
	anyVoice := enginemock.New("anyvoice", []byte("y"))
	reg := newRegistry(t, voiced, anyVoice)
	reg.SetPolicy("en", []string{"voiced", "anyvoice"})
	r := New(reg)

	_, name, err := r.Synthesize(context.Background(), Request{Text: "hi", Lang: "en", Voice: "aria"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "voiced" {
		t.Fatalf("engine = %q, want voiced", name)
	}

	// An unknown voice skips the strict engine but still matches the
	// empty-voice-set engine.
	_, name, err = r.Synthesize(context.Background(), Request{Text: "hi", Lang: "en", Voice: "nope"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "anyvoice" {
		t.Fatalf("engine = %q, want anyvoice", name)
	}
}

func TestStatsInvariant_RequestsEqualSuccessPlusFailure(t *testing.T) {
	flaky := &enginemock.Engine{NameValue: "flaky"}
	calls := 0
	flaky.SynthFunc = func(context.Context, engine.Request) (engine.Audio, error) {
		calls++
		if calls%2 == 0 {
			return engine.Audio{}, errSynth
		}
		return engine.Audio{Data: []byte("x"), Format: "mp3"}, nil
	}
	backup := enginemock.New("backup", []byte("y"))
	reg := newRegistry(t, flaky, backup)
	reg.SetPolicy("en", []string{"flaky", "backup"})
	r := New(reg)

	for range 10 {
		if _, _, err := r.Synthesize(context.Background(), Request{Text: "x", Lang: "en"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	for name, snap := range r.AllStats() {
		if snap.Requests != snap.Successes+snap.Failures {
			t.Errorf("%s: requests %d != successes %d + failures %d",
				name, snap.Requests, snap.Successes, snap.Failures)
		}
	}
}

func TestRanking_PrefersProvenSuccess(t *testing.T) {
	good := enginemock.New("good", []byte("x"))
	bad := enginemock.Failing("bad", errSynth)
	reg := newRegistry(t, good, bad)
	reg.SetPolicy("en", []string{"bad", "good"})
	r := New(reg)

	// Build history: bad fails, good succeeds.
	for range 3 {
		if _, _, err := r.Synthesize(context.Background(), Request{Text: "x", Lang: "en"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	ranking := r.Ranking("en")
	if len(ranking) != 2 {
		t.Fatalf("ranking has %d entries, want 2", len(ranking))
	}
	if ranking[0].Name != "good" {
		t.Fatalf("ranking[0] = %q, want good (proven success outranks policy order)", ranking[0].Name)
	}
}

func TestResetStats(t *testing.T) {
	reg := newRegistry(t, enginemock.New("gtts", []byte("x")))
	r := New(reg)
	if _, _, err := r.Synthesize(context.Background(), Request{Text: "x", Lang: "en"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.ResetStats()
	if snap := r.AllStats()["gtts"]; snap.Requests != 0 || snap.AvgLatencySecs != 0 {
		t.Fatalf("stats after reset = %+v, want zeroed", snap)
	}
}

func TestSynthesize_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &enginemock.Engine{NameValue: "first"}
	first.SynthFunc = func(ctx context.Context, _ engine.Request) (engine.Audio, error) {
		cancel()
		return engine.Audio{}, ctx.Err()
	}
	second := enginemock.New("second", []byte("x"))
	reg := newRegistry(t, first, second)
	reg.SetPolicy("en", []string{"first", "second"})
	r := New(reg)

	_, _, err := r.Synthesize(ctx, Request{Text: "x", Lang: "en"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if r.AllStats()["second"].Requests != 0 {
		t.Fatal("router kept iterating after cancellation")
	}
}
