package gtts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voxtela/voxtela/internal/engine"
)

func TestSplitChunks(t *testing.T) {
	if got := splitChunks("short", 200); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short input split: %v", got)
	}

	long := strings.Repeat("word ", 100) // 500 runes
	chunks := splitChunks(strings.TrimSpace(long), 200)
	if len(chunks) < 3 {
		t.Fatalf("chunks = %d, want at least 3", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 200 {
			t.Errorf("chunk %d has %d runes", i, len([]rune(c)))
		}
		if strings.HasPrefix(c, " ") || strings.HasSuffix(c, " ") {
			t.Errorf("chunk %d has ragged whitespace: %q", i, c)
		}
	}
	if strings.Join(chunks, " ") != strings.TrimSpace(long) {
		t.Error("chunks do not reassemble to the input")
	}
}

func TestSynthesize_QueryAndConcatenation(t *testing.T) {
	var langs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		langs = append(langs, r.URL.Query().Get("tl"))
		if r.URL.Query().Get("q") == "" {
			t.Error("empty q parameter")
		}
		w.Write([]byte("mp3!"))
	}))
	defer srv.Close()

	e := New(WithBaseURL(srv.URL))
	audio, err := e.Synthesize(context.Background(), engine.Request{Text: "hello", Lang: "fa", Rate: 1})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if audio.Format != "mp3" || string(audio.Data) != "mp3!" {
		t.Fatalf("audio = (%q, %q)", audio.Format, audio.Data)
	}
	if len(langs) != 1 || langs[0] != "fa" {
		t.Fatalf("tl params = %v", langs)
	}
}

func TestSynthesize_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := New(WithBaseURL(srv.URL))
	if _, err := e.Synthesize(context.Background(), engine.Request{Text: "x", Lang: "en", Rate: 1}); err == nil {
		t.Fatal("HTTP error swallowed")
	}
}

func TestDescribe(t *testing.T) {
	d := New().Describe()
	if d.Name != "gtts" || d.Offline {
		t.Fatalf("descriptor = %+v", d)
	}
	if !d.SupportsLanguage("fa") || !d.SupportsLanguage("en") {
		t.Fatal("expected language support missing")
	}
	if d.SupportsRate || d.SupportsPitch || d.SupportsSSML {
		t.Fatal("gtts must not advertise prosody support")
	}
}
