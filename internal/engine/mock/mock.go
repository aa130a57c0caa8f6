// Package mock provides a scripted engine.Engine test double.
package mock

import (
	"context"
	"sync"

	"github.com/voxtela/voxtela/internal/engine"
)

// Compile-time interface assertion.
var _ engine.Engine = (*Engine)(nil)

// Engine is a scriptable engine for tests. Configure the exported fields
// before use; the zero value answers every request with empty MP3 audio.
type Engine struct {
	// NameValue is returned by Name and used in the descriptor.
	NameValue string

	// Desc overrides the returned descriptor when non-zero. Name is filled
	// in from NameValue if left empty.
	Desc engine.Descriptor

	// SynthFunc, when set, handles Synthesize calls.
	SynthFunc func(ctx context.Context, req engine.Request) (engine.Audio, error)

	mu    sync.Mutex
	calls []engine.Request
}

// New creates a mock engine that succeeds with the given payload.
func New(name string, payload []byte) *Engine {
	return &Engine{
		NameValue: name,
		SynthFunc: func(context.Context, engine.Request) (engine.Audio, error) {
			return engine.Audio{Data: payload, Format: "mp3"}, nil
		},
	}
}

// Failing creates a mock engine that always returns err.
func Failing(name string, err error) *Engine {
	return &Engine{
		NameValue: name,
		SynthFunc: func(context.Context, engine.Request) (engine.Audio, error) {
			return engine.Audio{}, err
		},
	}
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return e.NameValue }

// Describe implements engine.Engine.
func (e *Engine) Describe() engine.Descriptor {
	d := e.Desc
	if d.Name == "" {
		d.Name = e.NameValue
	}
	if d.Languages == nil {
		d.Languages = engine.LanguageSet("en", "fa")
	}
	return d
}

// Synthesize implements engine.Engine and records the request.
func (e *Engine) Synthesize(ctx context.Context, req engine.Request) (engine.Audio, error) {
	e.mu.Lock()
	e.calls = append(e.calls, req)
	e.mu.Unlock()
	if e.SynthFunc != nil {
		return e.SynthFunc(ctx, req)
	}
	return engine.Audio{Data: []byte{0xFF, 0xF3}, Format: "mp3"}, nil
}

// Calls returns a copy of the recorded requests.
func (e *Engine) Calls() []engine.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.Request(nil), e.calls...)
}
