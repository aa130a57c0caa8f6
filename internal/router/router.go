// Package router selects the best TTS engine for a request and falls back
// across the remaining candidates on failure.
//
// Candidate order starts from the per-language policy in the engine registry,
// is filtered by capability requirements and voice availability, and is then
// re-ranked by live per-engine statistics (success rate minus a latency
// penalty). Engines with no recorded requests get a neutral score between the
// best and worst proven candidates, so new engines are tried without being
// preferred over proven ones. The candidate loop is sequential; statistics
// updates are atomic per counter and the router holds no per-request locks.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/voxtela/voxtela/internal/engine"
)

// ErrEngineNotFound is returned when no registered engine satisfies the
// request's language, voice, and requirement constraints.
var ErrEngineNotFound = errors.New("router: no engine satisfies the request")

// ErrAllEnginesFailed is returned when every candidate engine was tried and
// failed.
var ErrAllEnginesFailed = errors.New("router: all engines failed")

// Request is a routed synthesis request.
type Request struct {
	Text  string
	Lang  string
	Voice string
	Rate  float64
	Pitch float64

	// Engine, when non-empty, pins the request to that single engine and
	// disables fallback.
	Engine string

	Requirements engine.Requirements
}

// Ranked pairs an engine name with the score the next routing call would use.
type Ranked struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Router picks engines for synthesis requests and records their outcomes.
// Safe for concurrent use.
type Router struct {
	registry *engine.Registry

	mu    sync.RWMutex
	stats map[string]*Stats
}

// New creates a router over the given registry.
func New(registry *engine.Registry) *Router {
	return &Router{
		registry: registry,
		stats:    make(map[string]*Stats),
	}
}

// Synthesize routes req to the best candidate engine, falling back in score
// order until one succeeds. It returns the audio together with the name of
// the engine that produced it.
func (r *Router) Synthesize(ctx context.Context, req Request) (engine.Audio, string, error) {
	if req.Rate == 0 {
		req.Rate = 1.0
	}
	var candidates []string
	if req.Engine != "" {
		candidates = r.pinnedCandidate(req.Engine, req.Lang, req.Voice, req.Requirements)
	} else {
		candidates = r.rankedCandidates(req.Lang, req.Voice, req.Requirements)
	}
	if len(candidates) == 0 {
		return engine.Audio{}, "", fmt.Errorf("%w: engine=%q lang=%q voice=%q",
			ErrEngineNotFound, req.Engine, req.Lang, req.Voice)
	}

	var lastErr error
	for _, name := range candidates {
		eng, ok := r.registry.Get(name)
		if !ok {
			continue
		}
		start := time.Now()
		audio, err := eng.Synthesize(ctx, engine.Request{
			Text:  req.Text,
			Lang:  req.Lang,
			Voice: req.Voice,
			Rate:  req.Rate,
			Pitch: req.Pitch,
		})
		elapsed := time.Since(start).Seconds()
		if err != nil {
			r.statsFor(name).recordFailure(elapsed, errKind(err))
			if ctx.Err() != nil {
				// Cancellation aborts the loop; do not burn the remaining
				// candidates on a dead request.
				return engine.Audio{}, "", ctx.Err()
			}
			slog.Warn("engine failed, trying next",
				"engine", name, "lang", req.Lang, "error", err)
			lastErr = err
			continue
		}
		r.statsFor(name).recordSuccess(elapsed)
		return audio, name, nil
	}
	return engine.Audio{}, "", fmt.Errorf("%w: %v", ErrAllEnginesFailed, lastErr)
}

// pinnedCandidate returns the single-entry candidate list for an explicitly
// requested engine, or nil if it is absent or fails the filters.
func (r *Router) pinnedCandidate(name, lang, voice string, reqs engine.Requirements) []string {
	desc, ok := r.registry.Describe(name)
	if !ok {
		return nil
	}
	if !desc.SupportsLanguage(lang) || !desc.Meets(reqs) {
		return nil
	}
	if voice != "" && !desc.SupportsVoice(voice) {
		return nil
	}
	return []string{name}
}

// rankedCandidates builds, filters, and score-orders the candidate list.
func (r *Router) rankedCandidates(lang, voice string, reqs engine.Requirements) []string {
	policy, _ := r.registry.Policy(lang)

	type candidate struct {
		name   string
		order  int
		snap   Snapshot
		proven bool
	}
	var cands []candidate
	for i, name := range policy {
		desc, ok := r.registry.Describe(name)
		if !ok {
			// Policies may name engines that were never installed.
			continue
		}
		if !desc.SupportsLanguage(lang) {
			continue
		}
		if !desc.Meets(reqs) {
			continue
		}
		if voice != "" && !desc.SupportsVoice(voice) {
			continue
		}
		snap := r.statsFor(name).snapshot()
		cands = append(cands, candidate{
			name:   name,
			order:  i,
			snap:   snap,
			proven: snap.Requests > 0,
		})
	}
	if len(cands) == 0 {
		return nil
	}

	// Unproven engines score at the midpoint of the proven field, so they are
	// tried but never jump ahead of a well-performing engine.
	neutral := 0.0
	best, worst := -2.0, 2.0
	anyProven := false
	for _, c := range cands {
		if !c.proven {
			continue
		}
		anyProven = true
		s := c.snap.score()
		if s > best {
			best = s
		}
		if s < worst {
			worst = s
		}
	}
	if anyProven {
		neutral = (best + worst) / 2
	}

	scoreOf := func(c candidate) float64 {
		if !c.proven {
			return neutral
		}
		return c.snap.score()
	}
	sort.SliceStable(cands, func(i, j int) bool {
		si, sj := scoreOf(cands[i]), scoreOf(cands[j])
		if si != sj {
			return si > sj
		}
		return cands[i].order < cands[j].order
	})

	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.name
	}
	return names
}

// Ranking returns the ordered (name, score) list the next call for lang would
// produce, ignoring voice and requirement filters.
func (r *Router) Ranking(lang string) []Ranked {
	names := r.rankedCandidates(lang, "", nil)
	out := make([]Ranked, len(names))
	for i, name := range names {
		snap := r.statsFor(name).snapshot()
		score := snap.score()
		if snap.Requests == 0 {
			score = 0
		}
		out[i] = Ranked{Name: name, Score: score}
	}
	return out
}

// AllStats returns a snapshot of every engine's counters, keyed by name.
func (r *Router) AllStats() map[string]Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Snapshot, len(r.stats))
	for name, s := range r.stats {
		out[name] = s.snapshot()
	}
	return out
}

// ResetStats zeroes every engine's counters.
func (r *Router) ResetStats() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.stats {
		s.reset()
	}
}

// statsFor returns the stats bucket for name, creating it on first use.
func (r *Router) statsFor(name string) *Stats {
	r.mu.RLock()
	s, ok := r.stats[name]
	r.mu.RUnlock()
	if ok {
		return s
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.stats[name]; ok {
		return s
	}
	s = &Stats{}
	r.stats[name] = s
	return s
}

// errKind reduces an error to a short stable label for the stats record.
func errKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "synthesis"
	}
}
