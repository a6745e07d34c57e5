// Package observability provides transfer statistics tracking for cache
// effectiveness monitoring.
package observability

import (
	"sort"
	"sync"
	"time"
)

// Access outcomes recorded per source.
const (
	// OutcomeLedgerHit: served from the in-memory ledger, no disk check beyond verification
	OutcomeLedgerHit = "ledger_hit"

	// OutcomeDiskHit: file already on disk from an earlier process, admitted without transfer
	OutcomeDiskHit = "disk_hit"

	// OutcomeFetch: transferred from the remote source
	OutcomeFetch = "fetch"

	// OutcomeFailure: the transfer was attempted and failed
	OutcomeFailure = "failure"
)

// TransferStats tracks per-source access frequency and transfer volume.
type TransferStats struct {
	mu      sync.RWMutex
	sources map[string]*SourceStats
	window  time.Duration
}

// SourceStats holds statistics for one source URL.
type SourceStats struct {
	URL      string
	Accesses int64
	Bytes    int64
	LastSeen time.Time
	Outcomes map[string]int // outcome → count (e.g. "ledger_hit" → 5)
}

// Summary aggregates outcome counts across every source.
type Summary struct {
	LedgerHits int64
	DiskHits   int64
	Fetches    int64
	Failures   int64
	Bytes      int64
}

// NewTransferStats creates a new transfer statistics tracker.
// window: time duration for pruning idle sources (e.g. 24 hours)
func NewTransferStats(window time.Duration) *TransferStats {
	return &TransferStats{
		sources: make(map[string]*SourceStats),
		window:  window,
	}
}

// RecordAccess records one cache access for a source.
// url: the source URL
// outcome: how the access was served (OutcomeLedgerHit, OutcomeDiskHit, ...)
// This method is O(1) and thread-safe.
func (t *TransferStats) RecordAccess(url, outcome string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats, exists := t.sources[url]
	if !exists {
		stats = &SourceStats{
			URL:      url,
			Outcomes: make(map[string]int),
		}
		t.sources[url] = stats
	}

	stats.Accesses++
	stats.LastSeen = time.Now()
	stats.Outcomes[outcome]++
}

// RecordBytes adds transferred bytes to a source's tally.
func (t *TransferStats) RecordBytes(url string, n int64) {
	if n <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	stats, exists := t.sources[url]
	if !exists {
		stats = &SourceStats{
			URL:      url,
			Outcomes: make(map[string]int),
		}
		t.sources[url] = stats
	}
	stats.Bytes += n
}

// GetTopSources returns the top N sources by access count.
// Returns a copy of the stats sorted by access count (descending).
func (t *TransferStats) GetTopSources(n int) []SourceStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if n <= 0 || len(t.sources) == 0 {
		return []SourceStats{}
	}

	// Convert map to slice
	stats := make([]SourceStats, 0, len(t.sources))
	for _, s := range t.sources {
		// Deep copy the SourceStats to prevent external modification
		statsCopy := SourceStats{
			URL:      s.URL,
			Accesses: s.Accesses,
			Bytes:    s.Bytes,
			LastSeen: s.LastSeen,
			Outcomes: make(map[string]int),
		}
		// Copy the outcomes map
		for outcome, count := range s.Outcomes {
			statsCopy.Outcomes[outcome] = count
		}
		stats = append(stats, statsCopy)
	}

	// Sort by access count descending
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Accesses > stats[j].Accesses
	})

	// Return top N
	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// GetSummary aggregates outcome counts across all sources.
func (t *TransferStats) GetSummary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var sum Summary
	for _, s := range t.sources {
		sum.LedgerHits += int64(s.Outcomes[OutcomeLedgerHit])
		sum.DiskHits += int64(s.Outcomes[OutcomeDiskHit])
		sum.Fetches += int64(s.Outcomes[OutcomeFetch])
		sum.Failures += int64(s.Outcomes[OutcomeFailure])
		sum.Bytes += s.Bytes
	}
	return sum
}

// Prune removes sources where time.Since(LastSeen) > window.
// This should be called periodically by long-lived processes.
func (t *TransferStats) Prune() {
	t.mu.Lock()
	defer t.mu.Unlock()

	threshold := time.Now().Add(-t.window)
	for url, stats := range t.sources {
		if stats.LastSeen.Before(threshold) {
			delete(t.sources, url)
		}
	}
}
