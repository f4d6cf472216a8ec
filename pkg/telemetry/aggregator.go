package telemetry

import (
	"sort"
	"sync"
)

// Aggregator accumulates per-event counters and duration percentiles in
// memory. All methods are safe for concurrent use.
type Aggregator struct {
	mu        sync.Mutex
	counts    map[string]int            // event -> total
	outcomes  map[string]map[string]int // event -> outcome -> count
	durations map[string][]int64        // event -> duration samples (ms)
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		counts:    make(map[string]int),
		outcomes:  make(map[string]map[string]int),
		durations: make(map[string][]int64),
	}
}

// Record feeds one event into the aggregate.
func (a *Aggregator) Record(ev Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.counts[ev.Event]++
	if a.outcomes[ev.Event] == nil {
		a.outcomes[ev.Event] = make(map[string]int)
	}
	a.outcomes[ev.Event][ev.Outcome]++
	if ev.DurationMS > 0 {
		a.durations[ev.Event] = append(a.durations[ev.Event], ev.DurationMS)
	}
}

// EventStats summarizes one event kind.
type EventStats struct {
	Count       int            `json:"count"`
	Outcomes    map[string]int `json:"outcomes"`
	P50Duration int64          `json:"p50_duration_ms"`
	P95Duration int64          `json:"p95_duration_ms"`
}

// Snapshot returns a copy of the current aggregate state.
func (a *Aggregator) Snapshot() map[string]EventStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]EventStats, len(a.counts))
	for event, count := range a.counts {
		stats := EventStats{
			Count:    count,
			Outcomes: make(map[string]int, len(a.outcomes[event])),
		}
		for outcome, n := range a.outcomes[event] {
			stats.Outcomes[outcome] = n
		}
		if samples := a.durations[event]; len(samples) > 0 {
			sorted := make([]int64, len(samples))
			copy(sorted, samples)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
			stats.P50Duration = sorted[len(sorted)/2]
			stats.P95Duration = sorted[(len(sorted)*95)/100]
		}
		out[event] = stats
	}
	return out
}
