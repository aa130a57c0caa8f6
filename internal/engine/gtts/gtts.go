// Package gtts provides a TTS engine backed by the Google Translate
// text-to-speech endpoint. It needs no API key, produces MP3, and supports a
// broad language set, which makes it the fallback of last resort in most
// policies. Rate, pitch, and voice selection are not supported.
package gtts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/voxtela/voxtela/internal/engine"
)

// Compile-time interface assertion.
var _ engine.Engine = (*Engine)(nil)

const (
	defaultBaseURL = "https://translate.google.com/translate_tts"
	defaultTimeout = 15 * time.Second

	// maxChunkRunes is the longest input the endpoint accepts per call.
	maxChunkRunes = 200
)

// languages is the tag set the translate endpoint is known to speak.
var languages = engine.LanguageSet(
	"af", "ar", "bg", "bn", "ca", "cs", "da", "de", "el", "en", "es", "et",
	"fa", "fi", "fr", "gu", "he", "hi", "hr", "hu", "id", "it", "ja", "kn",
	"ko", "lt", "lv", "ml", "mr", "ms", "nl", "no", "pl", "pt", "ro", "ru",
	"sk", "sl", "sr", "sv", "sw", "ta", "te", "th", "tr", "uk", "ur", "vi",
	"zh",
)

// Option is a functional option for configuring the engine.
type Option func(*Engine)

// WithBaseURL overrides the synthesis endpoint. Used in tests.
func WithBaseURL(u string) Option {
	return func(e *Engine) { e.baseURL = u }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 15 s.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.httpClient.Timeout = d }
}

// WithHTTPClient replaces the HTTP client entirely.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.httpClient = c }
}

// Engine synthesises speech through the Google Translate TTS endpoint.
type Engine struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a gtts engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Name returns "gtts".
func (e *Engine) Name() string { return "gtts" }

// Describe returns the engine's capabilities.
func (e *Engine) Describe() engine.Descriptor {
	return engine.Descriptor{
		Name:      "gtts",
		Offline:   false,
		Languages: languages,
	}
}

// Synthesize fetches MP3 audio for req.Text, chunking long input at the
// endpoint's length limit and concatenating the MP3 frames.
func (e *Engine) Synthesize(ctx context.Context, req engine.Request) (engine.Audio, error) {
	var out []byte
	for _, chunk := range splitChunks(req.Text, maxChunkRunes) {
		data, err := e.fetch(ctx, chunk, req.Lang)
		if err != nil {
			return engine.Audio{}, err
		}
		out = append(out, data...)
	}
	if len(out) == 0 {
		return engine.Audio{}, fmt.Errorf("gtts: endpoint returned no audio")
	}
	return engine.Audio{Data: out, Format: "mp3"}, nil
}

func (e *Engine) fetch(ctx context.Context, text, lang string) ([]byte, error) {
	q := url.Values{
		"ie":     {"UTF-8"},
		"client": {"tw-ob"},
		"tl":     {lang},
		"q":      {text},
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("gtts: build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gtts: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gtts: endpoint returned %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gtts: read response: %w", err)
	}
	return data, nil
}

// splitChunks cuts text into rune-bounded chunks, preferring to break on
// whitespace so words stay intact.
func splitChunks(text string, maxRunes int) []string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return []string{text}
	}
	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= maxRunes {
			chunks = append(chunks, string(runes))
			break
		}
		cut := maxRunes
		for i := maxRunes; i > maxRunes/2; i-- {
			if runes[i] == ' ' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	return chunks
}
