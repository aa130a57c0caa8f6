// Package cache implements the content-addressed audio cache: one blob file
// per synthesised utterance plus a JSON index, bounded by entry count and age.
//
// The cache key is the hex SHA-256 fingerprint of text, language, and the
// requested engine (or the literal "auto" when none is pinned), so two
// processes on two hosts address identical requests identically. Disk errors
// are never fatal: a failed read is a miss, a failed write is a forfeited put.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const indexFile = "cache_index.json"

// Entry is one index record. Timestamps are Unix seconds.
type Entry struct {
	Format         string            `json:"format"`
	Size           int64             `json:"size"`
	CreatedAt      int64             `json:"created_at"`
	LastAccessedAt int64             `json:"last_accessed_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Stats is the counters and limits snapshot returned by [Cache.Stats].
type Stats struct {
	Entries    int     `json:"entries"`
	TotalBytes int64   `json:"total_bytes"`
	TotalMB    float64 `json:"total_mb"`
	MaxEntries int     `json:"max_entries"`
	MaxAgeSecs int64   `json:"max_age_secs"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Requests   int64   `json:"requests"`
	HitRate    float64 `json:"hit_rate"`
}

// Cache is a disk-backed audio blob store with an in-memory index.
// A single mutex serialises index mutation; blob reads happen outside it.
type Cache struct {
	dir        string
	maxEntries int
	maxAge     time.Duration

	mu    sync.Mutex
	index map[string]*Entry

	hits   atomic.Int64
	misses atomic.Int64

	// now is swappable in tests.
	now func() time.Time
}

// Option is a functional option for [New].
type Option func(*Cache)

// WithMaxEntries bounds the number of cached blobs. Defaults to 100.
func WithMaxEntries(n int) Option {
	return func(c *Cache) { c.maxEntries = n }
}

// WithMaxAge bounds how long a blob stays valid. Defaults to 24 h.
func WithMaxAge(d time.Duration) Option {
	return func(c *Cache) { c.maxAge = d }
}

// New opens (or creates) the cache directory and loads the index. A missing
// or malformed index file is treated as empty and replaced on the next write.
func New(dir string, opts ...Option) (*Cache, error) {
	c := &Cache{
		dir:        dir,
		maxEntries: 100,
		maxAge:     24 * time.Hour,
		index:      make(map[string]*Entry),
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir %q: %w", dir, err)
	}
	c.loadIndex()
	return c, nil
}

// Fingerprint computes the stable cache key for a request. engineName may be
// empty, which keys the entry under the literal "auto".
func Fingerprint(text, lang, engineName string) string {
	if engineName == "" {
		engineName = "auto"
	}
	sum := sha256.Sum256([]byte(text + "_" + lang + "_" + engineName))
	return hex.EncodeToString(sum[:])
}

// Get looks up the blob for (text, lang, engine). It returns the audio bytes
// and format on a hit, updating the entry's access time. Invalid or missing
// entries count as misses and are pruned.
func (c *Cache) Get(text, lang, engineName string) ([]byte, string, bool) {
	return c.GetByKey(Fingerprint(text, lang, engineName))
}

// GetByKey is Get for a precomputed fingerprint.
func (c *Cache) GetByKey(key string) ([]byte, string, bool) {
	c.mu.Lock()
	entry, ok := c.index[key]
	var path string
	if ok {
		path = c.blobPath(key, entry.Format)
	} else {
		// Loose-blob fallback: caches written by older versions may have the
		// blob without an index record.
		path, ok = c.findLooseBlob(key)
		if ok {
			entry = &Entry{
				Format:    strings.TrimPrefix(filepath.Ext(path), "."),
				CreatedAt: c.now().Unix(),
			}
		}
	}
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, "", false
	}
	if !c.validLocked(key, entry, path) {
		c.removeLocked(key, entry.Format)
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, "", false
	}
	entry.LastAccessedAt = c.now().Unix()
	c.index[key] = entry
	c.persistLocked()
	format := entry.Format
	c.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil || int64(len(data)) != fileSize(path) {
		slog.Warn("cache blob unreadable, purging", "key", key, "error", err)
		c.Invalidate(key)
		c.misses.Add(1)
		return nil, "", false
	}
	c.hits.Add(1)
	return data, format, true
}

// Put stores a blob under key and runs eviction. Errors are logged and the
// put is forfeited.
func (c *Cache) Put(key string, data []byte, format string, metadata map[string]string) {
	if len(data) == 0 {
		return
	}
	path := c.blobPath(key, format)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.Error("cache write failed, forfeiting put", "key", key, "error", err)
		return
	}
	now := c.now().Unix()
	c.mu.Lock()
	c.index[key] = &Entry{
		Format:         format,
		Size:           int64(len(data)),
		CreatedAt:      now,
		LastAccessedAt: now,
		Metadata:       metadata,
	}
	c.evictLocked()
	c.persistLocked()
	c.mu.Unlock()
}

// Invalidate removes one entry and its blob. It reports whether anything was
// removed.
func (c *Cache) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.index[key]
	if !ok {
		return false
	}
	c.removeLocked(key, entry.Format)
	c.persistLocked()
	return true
}

// Clear deletes every blob and empties the index. Idempotent.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.index {
		c.removeLocked(key, entry.Format)
	}
	// Sweep loose blobs the index never knew about.
	matches, _ := filepath.Glob(filepath.Join(c.dir, "*.*"))
	for _, m := range matches {
		if filepath.Base(m) == indexFile {
			continue
		}
		if err := os.Remove(m); err != nil {
			slog.Warn("cache clear: remove blob", "path", m, "error", err)
		}
	}
	c.index = make(map[string]*Entry)
	c.persistLocked()
}

// CleanupOld removes blobs older than maxAge (zero means the configured
// bound) and drops index entries whose blob is missing. Returns the number of
// entries removed.
func (c *Cache) CleanupOld(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = c.maxAge
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.index {
		path := c.blobPath(key, entry.Format)
		mtime, err := fileMtime(path)
		if err != nil || c.now().Sub(mtime) > maxAge {
			c.removeLocked(key, entry.Format)
			removed++
		}
	}
	if removed > 0 {
		c.persistLocked()
	}
	return removed
}

// Export copies all valid blobs to dir under human-readable names of the form
// <engine>_<lang>_<key8>.<format>, derived from entry metadata.
func (c *Cache) Export(dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("cache: create export dir: %w", err)
	}
	c.mu.Lock()
	type job struct{ src, dst string }
	var jobs []job
	for key, entry := range c.index {
		engineName := entry.Metadata["engine"]
		if engineName == "" {
			engineName = "auto"
		}
		lang := entry.Metadata["lang"]
		if lang == "" {
			lang = "xx"
		}
		name := fmt.Sprintf("%s_%s_%s.%s", engineName, lang, key[:8], entry.Format)
		jobs = append(jobs, job{src: c.blobPath(key, entry.Format), dst: filepath.Join(dir, name)})
	}
	c.mu.Unlock()

	exported := 0
	for _, j := range jobs {
		data, err := os.ReadFile(j.src)
		if err != nil {
			continue
		}
		if err := os.WriteFile(j.dst, data, 0o644); err != nil {
			return exported, fmt.Errorf("cache: export %q: %w", j.dst, err)
		}
		exported++
	}
	return exported, nil
}

// Stats returns the current counters and configured limits.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	var total int64
	entries := len(c.index)
	for _, e := range c.index {
		total += e.Size
	}
	c.mu.Unlock()

	s := Stats{
		Entries:    entries,
		TotalBytes: total,
		TotalMB:    float64(total) / (1 << 20),
		MaxEntries: c.maxEntries,
		MaxAgeSecs: int64(c.maxAge.Seconds()),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
	}
	s.Requests = s.Hits + s.Misses
	if s.Requests > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Requests)
	}
	return s
}

// ResetStats zeroes the hit/miss counters.
func (c *Cache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
}

// Len returns the number of indexed entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// ── internals ────────────────────────────────────────────────────────────────

func (c *Cache) blobPath(key, format string) string {
	return filepath.Join(c.dir, key+"."+format)
}

// findLooseBlob looks for any <key>.<ext> file on disk. Caller holds mu.
func (c *Cache) findLooseBlob(key string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(c.dir, key+".*"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

// validLocked reports whether an entry's blob exists, is non-empty, and is
// young enough. Caller holds mu.
func (c *Cache) validLocked(key string, entry *Entry, path string) bool {
	st, err := os.Stat(path)
	if err != nil || st.Size() == 0 {
		return false
	}
	if entry.Size > 0 && st.Size() != entry.Size {
		// Half-written blob from a crash.
		return false
	}
	return c.now().Sub(st.ModTime()) <= c.maxAge
}

// evictLocked removes the least recently used entries beyond maxEntries.
// Caller holds mu.
func (c *Cache) evictLocked() {
	excess := len(c.index) - c.maxEntries
	if excess <= 0 {
		return
	}
	type aged struct {
		key      string
		accessed int64
	}
	entries := make([]aged, 0, len(c.index))
	for key, e := range c.index {
		entries = append(entries, aged{key: key, accessed: e.LastAccessedAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].accessed != entries[j].accessed {
			return entries[i].accessed < entries[j].accessed
		}
		return entries[i].key < entries[j].key
	})
	for _, victim := range entries[:excess] {
		c.removeLocked(victim.key, c.index[victim.key].Format)
	}
}

// removeLocked drops an entry and best-effort deletes its blob. Caller holds mu.
func (c *Cache) removeLocked(key, format string) {
	delete(c.index, key)
	if err := os.Remove(c.blobPath(key, format)); err != nil && !os.IsNotExist(err) {
		slog.Warn("cache: remove blob", "key", key, "error", err)
	}
}

// persistLocked rewrites the index file. Caller holds mu.
func (c *Cache) persistLocked() {
	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		slog.Error("cache: marshal index", "error", err)
		return
	}
	if err := os.WriteFile(filepath.Join(c.dir, indexFile), data, 0o644); err != nil {
		slog.Error("cache: write index", "error", err)
	}
}

// loadIndex reads the index file into memory. Malformed files start empty.
func (c *Cache) loadIndex() {
	data, err := os.ReadFile(filepath.Join(c.dir, indexFile))
	if err != nil {
		return
	}
	var index map[string]*Entry
	if err := json.Unmarshal(data, &index); err != nil {
		slog.Warn("cache: malformed index, starting empty", "error", err)
		return
	}
	c.index = index
	if c.index == nil {
		c.index = make(map[string]*Entry)
	}
}

func fileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return st.Size()
}

func fileMtime(path string) (time.Time, error) {
	st, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return st.ModTime(), nil
}
