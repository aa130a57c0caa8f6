// Package openai provides a TTS engine backed by the OpenAI speech API.
// Output is requested in Opus, so voice replies from this engine skip the
// conversion step of the audio pipeline.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxtela/voxtela/internal/engine"
)

// Compile-time interface assertion.
var _ engine.Engine = (*Engine)(nil)

const defaultModel = oai.SpeechModelTTS1

// voiceNames is the speech API voice catalogue.
var voiceNames = map[string]bool{
	"alloy": true, "ash": true, "coral": true, "echo": true,
	"fable": true, "nova": true, "onyx": true, "sage": true, "shimmer": true,
}

// languages the speech models handle well. The API itself is not
// language-gated; this set drives candidate filtering.
var languages = engine.LanguageSet(
	"de", "en", "es", "fr", "it", "ja", "ko", "nl", "pl", "pt", "ru", "tr", "zh",
)

// config holds optional configuration for the engine.
type config struct {
	baseURL string
	model   oai.SpeechModel
	timeout time.Duration
}

// Option is a functional option for the engine.
type Option func(*config)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel selects the speech model. Defaults to tts-1.
func WithModel(model string) Option {
	return func(c *config) { c.model = oai.SpeechModel(model) }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// Engine synthesises speech through the OpenAI speech API.
type Engine struct {
	client oai.Client
	model  oai.SpeechModel
}

// New constructs an openai engine.
func New(apiKey string, opts ...Option) (*Engine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Engine{client: oai.NewClient(reqOpts...), model: cfg.model}, nil
}

// Name returns "openai".
func (e *Engine) Name() string { return "openai" }

// Describe returns the engine's capabilities.
func (e *Engine) Describe() engine.Descriptor {
	return engine.Descriptor{
		Name:         "openai",
		Offline:      false,
		Languages:    languages,
		Voices:       voiceNames,
		SupportsRate: true,
	}
}

// Synthesize calls the speech endpoint and returns the Opus audio.
func (e *Engine) Synthesize(ctx context.Context, req engine.Request) (engine.Audio, error) {
	voice := req.Voice
	if voice == "" {
		voice = "alloy"
	}
	params := oai.AudioSpeechNewParams{
		Model:          e.model,
		Input:          req.Text,
		Voice:          oai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatOpus,
	}
	if req.Rate > 0 && req.Rate != 1.0 {
		params.Speed = oai.Float(req.Rate)
	}

	resp, err := e.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return engine.Audio{}, fmt.Errorf("openai: speech request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return engine.Audio{}, fmt.Errorf("openai: read audio: %w", err)
	}
	if len(data) == 0 {
		return engine.Audio{}, fmt.Errorf("openai: empty audio response")
	}
	return engine.Audio{Data: data, Format: "ogg"}, nil
}
