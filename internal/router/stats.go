package router

import (
	"sync"
	"sync/atomic"
)

// latencyWindow is the number of recent latency samples kept per engine.
const latencyWindow = 32

// Stats tracks one engine's request outcomes. Integer counters are atomic so
// concurrent attempts never lose an increment; the latency ring is guarded by
// a small mutex because appends come from many request goroutines.
type Stats struct {
	requests  atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64

	mu        sync.Mutex
	latencies [latencyWindow]float64
	latCount  int
	latNext   int
	lastError string
}

// recordSuccess notes one successful attempt with its latency in seconds.
func (s *Stats) recordSuccess(seconds float64) {
	s.requests.Add(1)
	s.successes.Add(1)
	s.mu.Lock()
	s.pushLatency(seconds)
	s.mu.Unlock()
}

// recordFailure notes one failed attempt with its latency and error kind.
func (s *Stats) recordFailure(seconds float64, errKind string) {
	s.requests.Add(1)
	s.failures.Add(1)
	s.mu.Lock()
	s.pushLatency(seconds)
	s.lastError = errKind
	s.mu.Unlock()
}

func (s *Stats) pushLatency(seconds float64) {
	s.latencies[s.latNext] = seconds
	s.latNext = (s.latNext + 1) % latencyWindow
	if s.latCount < latencyWindow {
		s.latCount++
	}
}

// reset zeroes every counter.
func (s *Stats) reset() {
	s.requests.Store(0)
	s.successes.Store(0)
	s.failures.Store(0)
	s.mu.Lock()
	s.latCount = 0
	s.latNext = 0
	s.lastError = ""
	s.mu.Unlock()
}

// Snapshot is a point-in-time copy of one engine's statistics.
type Snapshot struct {
	Requests       int64   `json:"requests"`
	Successes      int64   `json:"successes"`
	Failures       int64   `json:"failures"`
	SuccessRate    float64 `json:"success_rate"`
	AvgLatencySecs float64 `json:"avg_latency_secs"`
	LastError      string  `json:"last_error,omitempty"`
}

// snapshot copies the live counters.
func (s *Stats) snapshot() Snapshot {
	snap := Snapshot{
		Requests:  s.requests.Load(),
		Successes: s.successes.Load(),
		Failures:  s.failures.Load(),
	}
	if snap.Requests > 0 {
		snap.SuccessRate = float64(snap.Successes) / float64(snap.Requests)
	}
	s.mu.Lock()
	if s.latCount > 0 {
		var sum float64
		for i := range s.latCount {
			sum += s.latencies[i]
		}
		snap.AvgLatencySecs = sum / float64(s.latCount)
	}
	snap.LastError = s.lastError
	s.mu.Unlock()
	return snap
}

// score folds a snapshot into the single ordering value the router sorts by:
// success rate minus a latency penalty. The penalty saturates at 1.0 for
// averages of ten seconds and beyond, so a reliable-but-glacial engine ranks
// below a moderately flaky fast one.
func (snap Snapshot) score() float64 {
	penalty := snap.AvgLatencySecs / 10
	if penalty > 1 {
		penalty = 1
	}
	return snap.SuccessRate - penalty
}
