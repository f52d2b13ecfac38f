package usecase

import (
	"sort"
	"time"

	"github.com/user/login-stream-processor/internal/domain"
)

// AggregationWindow accumulates usage counters between flushes. It is owned
// exclusively by the processing loop: single writer, no locking.
type AggregationWindow struct {
	start       time.Time
	locations   map[string]int64
	devices     map[string]int64
	appVersions map[string]int64
	recordCount int64
	flushCount  int64
}

// NewAggregationWindow creates an empty window starting at now.
func NewAggregationWindow(now time.Time) *AggregationWindow {
	return &AggregationWindow{
		start:       now,
		locations:   make(map[string]int64),
		devices:     make(map[string]int64),
		appVersions: make(map[string]int64),
	}
}

// Observe counts one enriched event into the current window.
func (w *AggregationWindow) Observe(e domain.EnrichedEvent) {
	w.locations[e.Locale]++
	w.devices[e.DeviceType]++
	w.appVersions[e.AppVersion]++
	w.recordCount++
}

// Start returns the current window's start time.
func (w *AggregationWindow) Start() time.Time { return w.start }

// RecordCount returns the number of events observed since the last flush.
func (w *AggregationWindow) RecordCount() int64 { return w.recordCount }

// Flush emits the window's snapshot and resets the counters, handing the
// accumulated maps to the snapshot so it stays detached from the live window.
// An empty window still produces a snapshot with empty (non-nil) maps.
//
// The batch_size divisor is the lifetime flush count, not the per-window one,
// so the reported value drifts below the true per-window mean over long runs.
// That matches the output of the previous reporter and is kept on purpose;
// changing it would silently alter the aggregate stream's meaning.
func (w *AggregationWindow) Flush(now time.Time) domain.UsageSnapshot {
	w.flushCount++

	snap := domain.UsageSnapshot{
		CurrentTime:   float64(now.UnixNano()) / float64(time.Second),
		TimeWindow:    now.Sub(w.start).Seconds(),
		BatchSize:     float64(w.recordCount) / float64(w.flushCount),
		LocationStats: w.locations,
		DeviceStats:   w.devices,
	}

	w.start = now
	w.locations = make(map[string]int64)
	w.devices = make(map[string]int64)
	w.appVersions = make(map[string]int64)
	w.recordCount = 0

	return snap
}

// TopAppVersions returns the n most-seen app versions in the current window,
// most frequent first. Used only for the periodic summary log.
func (w *AggregationWindow) TopAppVersions(n int) []string {
	return topKeys(w.appVersions, n)
}

func topKeys(m map[string]int64, n int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
