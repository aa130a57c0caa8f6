// Package piper provides a TTS engine backed by a local Piper HTTP server.
// Piper runs entirely on the host, so this is the only engine that satisfies
// the offline requirement. Output is 16-bit WAV at the voice model's native
// sample rate.
package piper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voxtela/voxtela/internal/engine"
)

// Compile-time interface assertion.
var _ engine.Engine = (*Engine)(nil)

const (
	defaultBaseURL = "http://localhost:5000"
	defaultTimeout = 60 * time.Second
)

// Option is a functional option for configuring the engine.
type Option func(*Engine)

// WithBaseURL points the engine at a Piper server. Defaults to
// http://localhost:5000.
func WithBaseURL(u string) Option {
	return func(e *Engine) { e.baseURL = u }
}

// WithTimeout sets the per-request HTTP timeout. Local synthesis of long
// texts can be slow on small machines; defaults to 60 s.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.httpClient.Timeout = d }
}

// WithLanguages overrides the advertised language set to match the voice
// models actually installed on the server.
func WithLanguages(tags ...string) Option {
	return func(e *Engine) { e.languages = engine.LanguageSet(tags...) }
}

// WithVoices overrides the advertised voice names.
func WithVoices(names ...string) Option {
	return func(e *Engine) {
		e.voices = make(map[string]bool, len(names))
		for _, n := range names {
			e.voices[n] = true
		}
	}
}

// Engine synthesises speech through a local Piper server.
type Engine struct {
	baseURL    string
	httpClient *http.Client
	languages  map[string]bool
	voices     map[string]bool
}

// New creates a piper engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		languages:  engine.LanguageSet("en", "de", "es", "fa", "fr", "it", "ru"),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Name returns "piper".
func (e *Engine) Name() string { return "piper" }

// Describe returns the engine's capabilities.
func (e *Engine) Describe() engine.Descriptor {
	return engine.Descriptor{
		Name:         "piper",
		Offline:      true,
		Languages:    e.languages,
		Voices:       e.voices,
		SupportsRate: true,
	}
}

// synthesisRequest is the Piper HTTP API request body.
type synthesisRequest struct {
	Text        string  `json:"text"`
	Voice       string  `json:"voice,omitempty"`
	LengthScale float64 `json:"length_scale,omitempty"`
}

// Synthesize posts the text to the Piper server and returns the WAV payload.
func (e *Engine) Synthesize(ctx context.Context, req engine.Request) (engine.Audio, error) {
	body := synthesisRequest{
		Text:  req.Text,
		Voice: req.Voice,
	}
	// Piper's length_scale stretches duration, the inverse of speaking rate.
	if req.Rate > 0 && req.Rate != 1.0 {
		body.LengthScale = 1.0 / req.Rate
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return engine.Audio{}, fmt.Errorf("piper: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL, bytes.NewReader(payload))
	if err != nil {
		return engine.Audio{}, fmt.Errorf("piper: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return engine.Audio{}, fmt.Errorf("piper: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return engine.Audio{}, fmt.Errorf("piper: server returned %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return engine.Audio{}, fmt.Errorf("piper: read response: %w", err)
	}
	if len(data) == 0 {
		return engine.Audio{}, fmt.Errorf("piper: server returned no audio")
	}
	return engine.Audio{Data: data, Format: "wav"}, nil
}
