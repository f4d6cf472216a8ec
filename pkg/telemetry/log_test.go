package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestLog_AppendWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLog(dir, 0)
	require.NoError(t, err)

	log.Append(Event{SessionID: "s1", Event: EventSessionStart, Outcome: OutcomeOK})
	log.Append(Event{SessionID: "s1", Event: EventSessionEnd, Outcome: OutcomeOK, DurationMS: 42})
	require.NoError(t, log.Close())

	day := time.Now().Format("2006-01-02")
	events := readEvents(t, filepath.Join(dir, "events-"+day+".jsonl"))
	require.Len(t, events, 2)
	assert.Equal(t, EventSessionStart, events[0].Event)
	assert.Equal(t, int64(42), events[1].DurationMS)
	assert.False(t, events[0].Timestamp.IsZero(), "zero timestamp should be filled in")
}

func TestLog_AppendSurvivesAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	log, err := NewLog(dir, 0)
	require.NoError(t, err)
	log.Append(Event{SessionID: "s1", Event: EventError, Outcome: OutcomeFailed})
	require.NoError(t, log.Close())

	log, err = NewLog(dir, 0)
	require.NoError(t, err)
	log.Append(Event{SessionID: "s2", Event: EventError, Outcome: OutcomeFailed})
	require.NoError(t, log.Close())

	day := time.Now().Format("2006-01-02")
	events := readEvents(t, filepath.Join(dir, "events-"+day+".jsonl"))
	assert.Len(t, events, 2, "reopening must append, not truncate")
}

func TestLog_RotatesWhenSizeCapExceeded(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLog(dir, 200)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		log.Append(Event{
			SessionID: "s1",
			Event:     EventToolCall,
			Outcome:   OutcomeOK,
			Payload:   map[string]any{"tool": strings.Repeat("x", 64)},
		})
	}
	require.NoError(t, log.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Greater(t, len(entries), 1, "size rollover should leave rotated files behind")

	// Every file, rotated or current, holds intact JSON lines.
	total := 0
	for _, e := range entries {
		total += len(readEvents(t, filepath.Join(dir, e.Name())))
	}
	assert.Equal(t, 10, total)
}

func TestAggregator_CountsOutcomesAndPercentiles(t *testing.T) {
	agg := NewAggregator()
	for i := 1; i <= 100; i++ {
		outcome := OutcomeOK
		if i%10 == 0 {
			outcome = OutcomeFailed
		}
		agg.Record(Event{Event: EventQueryAttempt, Outcome: outcome, DurationMS: int64(i)})
	}
	agg.Record(Event{Event: EventError, Outcome: OutcomeFailed})

	snap := agg.Snapshot()
	q := snap[EventQueryAttempt]
	assert.Equal(t, 100, q.Count)
	assert.Equal(t, 90, q.Outcomes[OutcomeOK])
	assert.Equal(t, 10, q.Outcomes[OutcomeFailed])
	assert.Equal(t, int64(51), q.P50Duration)
	assert.Equal(t, int64(96), q.P95Duration)

	assert.Equal(t, 1, snap[EventError].Count)
	assert.Zero(t, snap[EventError].P50Duration, "events without durations have no percentiles")
}

func TestLog_FeedsAggregator(t *testing.T) {
	log, err := NewLog(t.TempDir(), 0)
	require.NoError(t, err)
	defer log.Close()

	log.Append(Event{SessionID: "s1", Event: EventIngestStep, Outcome: OutcomeOK})
	log.Append(Event{SessionID: "s1", Event: EventIngestStep, Outcome: OutcomeRetried})

	snap := log.Aggregator().Snapshot()
	assert.Equal(t, 2, snap[EventIngestStep].Count)
	assert.Equal(t, 1, snap[EventIngestStep].Outcomes[OutcomeRetried])
}
