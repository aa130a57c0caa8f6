package bot

import (
	"sync/atomic"
	"time"
)

// Stats holds the bot-level counters. All fields are atomic; derived values
// (averages, rates) are computed on read, never on update.
type Stats struct {
	messages        atomic.Int64
	synthRequests   atomic.Int64
	cacheHits       atomic.Int64
	cacheMisses     atomic.Int64
	engineFailures  atomic.Int64
	processingNanos atomic.Int64
}

// StatsSnapshot is a point-in-time copy with derived values filled in.
type StatsSnapshot struct {
	Messages          int64   `json:"messages"`
	SynthRequests     int64   `json:"synthesis_requests"`
	CacheHits         int64   `json:"cache_hits"`
	CacheMisses       int64   `json:"cache_misses"`
	EngineFailures    int64   `json:"engine_failures"`
	ProcessingSecs    float64 `json:"processing_secs"`
	AvgProcessingSecs float64 `json:"avg_processing_secs"`
	CacheHitRate      float64 `json:"cache_hit_rate"`
}

func (s *Stats) addProcessing(d time.Duration) {
	s.processingNanos.Add(int64(d))
}

// Snapshot copies the counters and derives averages.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Messages:       s.messages.Load(),
		SynthRequests:  s.synthRequests.Load(),
		CacheHits:      s.cacheHits.Load(),
		CacheMisses:    s.cacheMisses.Load(),
		EngineFailures: s.engineFailures.Load(),
		ProcessingSecs: time.Duration(s.processingNanos.Load()).Seconds(),
	}
	if snap.SynthRequests > 0 {
		snap.AvgProcessingSecs = snap.ProcessingSecs / float64(snap.SynthRequests)
	}
	if lookups := snap.CacheHits + snap.CacheMisses; lookups > 0 {
		snap.CacheHitRate = float64(snap.CacheHits) / float64(lookups)
	}
	return snap
}

// Reset zeroes every counter.
func (s *Stats) Reset() {
	s.messages.Store(0)
	s.synthRequests.Store(0)
	s.cacheHits.Store(0)
	s.cacheMisses.Store(0)
	s.engineFailures.Store(0)
	s.processingNanos.Store(0)
}
