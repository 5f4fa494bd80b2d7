// Package metrics provides in-memory query history and retrieval
// quality tracking for the API surface.
package metrics

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// maxQueryEntries bounds the query history ring.
	maxQueryEntries = 100
	// maxMetricsEntries bounds the metrics history ring.
	maxMetricsEntries = 500
	// DefaultRecentLimit is the page size when the caller does not ask for one.
	DefaultRecentLimit = 50
)

// QueryEntry is one answered query, as exposed by the history endpoints.
type QueryEntry struct {
	ID               string   `json:"id"`
	Query            string   `json:"query"`
	Language         string   `json:"language"`
	Answer           string   `json:"answer"`
	Sources          []string `json:"sources"`
	RetrievalTimeMs  float64  `json:"retrieval_time_ms"`
	GenerationTimeMs float64  `json:"generation_time_ms"`
	Timestamp        string   `json:"timestamp"`
	FastMode         bool     `json:"fast_mode"`
	SecurityLevel    string   `json:"security_level"`
}

// MetricsEntry is a per-query retrieval quality snapshot.
type MetricsEntry struct {
	Timestamp  string  `json:"timestamp"`
	Accuracy   float64 `json:"accuracy"`
	Precision  float64 `json:"precision"`
	Efficiency float64 `json:"efficiency"`
	Throughput float64 `json:"throughput"`
	QueryCount int     `json:"query_count"`
}

// Stats aggregates the recorded metrics snapshots.
type Stats struct {
	TotalQueries  int            `json:"total_queries"`
	AvgAccuracy   float64        `json:"avg_accuracy"`
	AvgPrecision  float64        `json:"avg_precision"`
	AvgEfficiency float64        `json:"avg_efficiency"`
	AvgThroughput float64        `json:"avg_throughput"`
	History       []MetricsEntry `json:"metrics_history"`
}

// History is an in-memory, newest-first store of answered queries and
// their quality snapshots. Entries past the cap or past the TTL are dropped.
type History struct {
	mu      sync.RWMutex
	queries []QueryEntry
	metrics []MetricsEntry
	updated []time.Time // parallel to queries, for TTL cleanup
	ttl     time.Duration
	done    chan struct{}
}

// NewHistory creates a history store. A zero ttl disables expiry.
func NewHistory(ttl time.Duration) *History {
	h := &History{
		ttl:  ttl,
		done: make(chan struct{}),
	}
	if ttl > 0 {
		go h.cleanupLoop()
	}
	return h
}

// DefaultHistory keeps entries for 24 hours.
func DefaultHistory() *History {
	return NewHistory(24 * time.Hour)
}

// RecordQuery prepends an answered query and returns its generated ID.
func (h *History) RecordQuery(e QueryEntry) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	h.queries = append([]QueryEntry{e}, h.queries...)
	h.updated = append([]time.Time{time.Now()}, h.updated...)
	if len(h.queries) > maxQueryEntries {
		h.queries = h.queries[:maxQueryEntries]
		h.updated = h.updated[:maxQueryEntries]
	}
	return e.ID
}

// RecordMetrics prepends a quality snapshot.
func (h *History) RecordMetrics(e MetricsEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if e.QueryCount == 0 {
		e.QueryCount = 1
	}

	h.metrics = append([]MetricsEntry{e}, h.metrics...)
	if len(h.metrics) > maxMetricsEntries {
		h.metrics = h.metrics[:maxMetricsEntries]
	}
}

// Recent returns up to limit of the newest query entries plus the total
// count currently stored. limit <= 0 falls back to DefaultRecentLimit.
func (h *History) Recent(limit int) ([]QueryEntry, int) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	n := limit
	if n > len(h.queries) {
		n = len(h.queries)
	}
	out := make([]QueryEntry, n)
	copy(out, h.queries[:n])
	return out, len(h.queries)
}

// Clear drops all query history entries.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queries = nil
	h.updated = nil
}

// Delete removes the query entry with the given ID.
// Returns false if no entry matched.
func (h *History) Delete(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, e := range h.queries {
		if e.ID == id {
			h.queries = append(h.queries[:i], h.queries[i+1:]...)
			h.updated = append(h.updated[:i], h.updated[i+1:]...)
			return true
		}
	}
	return false
}

// Aggregate averages the recorded quality snapshots. The returned history
// is capped at DefaultRecentLimit entries, newest first.
func (h *History) Aggregate() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.metrics) == 0 {
		return Stats{History: []MetricsEntry{}}
	}

	var acc, prec, eff, thr float64
	for _, e := range h.metrics {
		acc += e.Accuracy
		prec += e.Precision
		eff += e.Efficiency
		thr += e.Throughput
	}
	total := len(h.metrics)

	n := DefaultRecentLimit
	if n > total {
		n = total
	}
	hist := make([]MetricsEntry, n)
	copy(hist, h.metrics[:n])

	return Stats{
		TotalQueries:  total,
		AvgAccuracy:   round2(acc / float64(total)),
		AvgPrecision:  round2(prec / float64(total)),
		AvgEfficiency: round2(eff / float64(total)),
		AvgThroughput: round2(thr / float64(total)),
		History:       hist,
	}
}

// Close stops the cleanup goroutine.
func (h *History) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// cleanupLoop periodically removes expired query entries.
func (h *History) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.cleanup()
		}
	}
}

func (h *History) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	// Entries are newest first, so the first expired index truncates the rest.
	for i, ts := range h.updated {
		if now.Sub(ts) > h.ttl {
			h.queries = h.queries[:i]
			h.updated = h.updated[:i]
			return
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
