package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-ai/chronicle/pkg/config"
	"github.com/chronicle-ai/chronicle/pkg/ingest"
)

type fakeStore struct {
	mu      sync.Mutex
	objects []Object
	data    map[string][]byte
	listErr error
}

func (f *fakeStore) List(_ context.Context) ([]Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]Object(nil), f.objects...), nil
}

func (f *fakeStore) Fetch(_ context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.data[id]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

type fakeIngestor struct {
	mu    sync.Mutex
	runs  []string
	fail  map[string]bool
	block chan struct{}
}

func (f *fakeIngestor) Run(ctx context.Context, art *ingest.Artifact) (*ingest.Outcome, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	f.runs = append(f.runs, art.FileID)
	failed := f.fail[art.FileID]
	f.mu.Unlock()
	if failed {
		return &ingest.Outcome{SourceID: art.FileID, Succeeded: false}, errors.New("ingest failed")
	}
	return &ingest.Outcome{SourceID: art.FileID, Succeeded: true, ChunkCount: 1}, nil
}

func (f *fakeIngestor) ran() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.runs...)
}

func testConfig(t *testing.T) *config.MonitorConfig {
	t.Helper()
	return &config.MonitorConfig{
		IntervalSeconds: 3600,
		Workers:         2,
		GraceSeconds:    5,
		LedgerPath:      filepath.Join(t.TempDir(), "processed_files.json"),
	}
}

func newTestMonitor(t *testing.T, store ObjectStore, ingestor Ingestor, cfg *config.MonitorConfig) (*Monitor, *Ledger) {
	t.Helper()
	ledger, err := LoadLedger(cfg.LedgerPath)
	require.NoError(t, err)
	return New(store, ledger, ingestor, cfg), ledger
}

func TestLedger_ShouldProcessTransitions(t *testing.T) {
	ledger, err := LoadLedger(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)

	// Never seen.
	assert.True(t, ledger.ShouldProcess("a.txt", "h1"))

	require.NoError(t, ledger.Mark("a.txt", "h1", StateSucceeded))
	assert.False(t, ledger.ShouldProcess("a.txt", "h1"))

	// Content changed upstream.
	assert.True(t, ledger.ShouldProcess("a.txt", "h2"))

	// Failed files are always retried, even with the same hash.
	require.NoError(t, ledger.Mark("b.txt", "h1", StateFailed))
	assert.True(t, ledger.ShouldProcess("b.txt", "h1"))
}

func TestLedger_PersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")

	ledger, err := LoadLedger(path)
	require.NoError(t, err)
	require.NoError(t, ledger.Mark("a.txt", "h1", StateSucceeded))
	require.NoError(t, ledger.Mark("b.txt", "h2", StateFailed))

	reloaded, err := LoadLedger(path)
	require.NoError(t, err)
	records := reloaded.Snapshot()
	require.Len(t, records, 2)
	assert.Equal(t, "a.txt", records[0].ID)
	assert.Equal(t, StateSucceeded, records[0].State)
	assert.Equal(t, "b.txt", records[1].ID)
	assert.Equal(t, StateFailed, records[1].State)

	// No stray temp files survive a persist.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestLedger_TouchKeepsState(t *testing.T) {
	ledger, err := LoadLedger(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)
	require.NoError(t, ledger.Mark("a.txt", "h1", StateSucceeded))
	before := ledger.Snapshot()[0]

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, ledger.Touch("a.txt"))

	after := ledger.Snapshot()[0]
	assert.Equal(t, StateSucceeded, after.State)
	assert.Equal(t, "h1", after.Hash)
	assert.True(t, after.LastSeen.After(before.LastSeen))
}

func TestMonitor_ScanProcessesNewFiles(t *testing.T) {
	store := &fakeStore{
		objects: []Object{
			{ID: "inbox/a.txt", Name: "a.txt", Hash: "h1"},
			{ID: "inbox/b.txt", Name: "b.txt", Hash: "h2"},
		},
		data: map[string][]byte{
			"inbox/a.txt": []byte("alpha"),
			"inbox/b.txt": []byte("beta"),
		},
	}
	ingestor := &fakeIngestor{}
	m, ledger := newTestMonitor(t, store, ingestor, testConfig(t))

	m.scan(context.Background())

	assert.ElementsMatch(t, []string{"inbox/a.txt", "inbox/b.txt"}, ingestor.ran())
	for _, rec := range ledger.Snapshot() {
		assert.Equal(t, StateSucceeded, rec.State)
	}
	status := m.Status()
	assert.Equal(t, 2, status.Processed)
	assert.Equal(t, 0, status.Pending)
	assert.Equal(t, 0, status.Errors)
	require.NotNil(t, status.LastScan)
}

func TestMonitor_SkipsUnchangedSucceededFiles(t *testing.T) {
	store := &fakeStore{
		objects: []Object{{ID: "inbox/a.txt", Name: "a.txt", Hash: "h1"}},
		data:    map[string][]byte{"inbox/a.txt": []byte("alpha")},
	}
	ingestor := &fakeIngestor{}
	m, _ := newTestMonitor(t, store, ingestor, testConfig(t))

	m.scan(context.Background())
	m.scan(context.Background())

	assert.Len(t, ingestor.ran(), 1)
	assert.Equal(t, 1, m.Status().Processed)
}

func TestMonitor_RetriesFailedAndChangedFiles(t *testing.T) {
	store := &fakeStore{
		objects: []Object{{ID: "inbox/a.txt", Name: "a.txt", Hash: "h1"}},
		data:    map[string][]byte{"inbox/a.txt": []byte("alpha")},
	}
	ingestor := &fakeIngestor{fail: map[string]bool{"inbox/a.txt": true}}
	m, ledger := newTestMonitor(t, store, ingestor, testConfig(t))

	m.scan(context.Background())
	require.Equal(t, StateFailed, ledger.Snapshot()[0].State)
	assert.Equal(t, 1, m.Status().Errors)

	// The ingestor recovers; the Failed entry re-qualifies the file.
	ingestor.fail = nil
	m.scan(context.Background())
	assert.Len(t, ingestor.ran(), 2)
	assert.Equal(t, StateSucceeded, ledger.Snapshot()[0].State)

	// A changed hash re-qualifies a Succeeded file.
	store.mu.Lock()
	store.objects[0].Hash = "h2"
	store.mu.Unlock()
	m.scan(context.Background())
	assert.Len(t, ingestor.ran(), 3)
	assert.Equal(t, "h2", ledger.Snapshot()[0].Hash)
}

func TestMonitor_ListFailureCountsError(t *testing.T) {
	store := &fakeStore{listErr: errors.New("bucket unreachable")}
	ingestor := &fakeIngestor{}
	m, _ := newTestMonitor(t, store, ingestor, testConfig(t))

	m.scan(context.Background())

	assert.Empty(t, ingestor.ran())
	assert.Equal(t, 1, m.Status().Errors)
}

func TestMonitor_TriggerNowRunsScan(t *testing.T) {
	store := &fakeStore{
		objects: []Object{{ID: "inbox/a.txt", Name: "a.txt", Hash: "h1"}},
		data:    map[string][]byte{"inbox/a.txt": []byte("alpha")},
	}
	ingestor := &fakeIngestor{}
	m, _ := newTestMonitor(t, store, ingestor, testConfig(t))

	m.Start(context.Background())
	defer m.Stop()

	// The startup scan already processed the file; add a second one and
	// force an immediate rescan rather than waiting out the interval.
	require.Eventually(t, func() bool { return m.Status().Processed == 1 },
		2*time.Second, 10*time.Millisecond)

	store.mu.Lock()
	store.objects = append(store.objects, Object{ID: "inbox/b.txt", Name: "b.txt", Hash: "h2"})
	store.data["inbox/b.txt"] = []byte("beta")
	store.mu.Unlock()

	m.TriggerNow()
	require.Eventually(t, func() bool { return m.Status().Processed == 2 },
		2*time.Second, 10*time.Millisecond)
}

func TestMonitor_StopCancelsInFlightWithoutLedgerEntry(t *testing.T) {
	store := &fakeStore{
		objects: []Object{{ID: "inbox/slow.txt", Name: "slow.txt", Hash: "h1"}},
		data:    map[string][]byte{"inbox/slow.txt": []byte("slow")},
	}
	ingestor := &fakeIngestor{block: make(chan struct{})}
	cfg := testConfig(t)
	cfg.GraceSeconds = 0
	m, ledger := newTestMonitor(t, store, ingestor, cfg)

	m.Start(context.Background())
	// Give the startup scan time to dispatch the blocked ingest.
	require.Eventually(t, func() bool { return m.Status().Pending == 1 },
		2*time.Second, 10*time.Millisecond)

	m.Stop()

	// The interrupted file has no terminal state and is retried later.
	assert.Empty(t, ledger.Snapshot())
	assert.True(t, ledger.ShouldProcess("inbox/slow.txt", "h1"))
	assert.False(t, m.Status().Running)
}

func TestMonitor_CanRestartAfterStop(t *testing.T) {
	store := &fakeStore{
		objects: []Object{{ID: "inbox/a.txt", Name: "a.txt", Hash: "h1"}},
		data:    map[string][]byte{"inbox/a.txt": []byte("alpha")},
	}
	ingestor := &fakeIngestor{}
	m, _ := newTestMonitor(t, store, ingestor, testConfig(t))

	m.Start(context.Background())
	require.Eventually(t, func() bool { return m.Status().Processed == 1 },
		2*time.Second, 10*time.Millisecond)
	m.Stop()
	require.False(t, m.Status().Running)

	store.mu.Lock()
	store.objects = append(store.objects, Object{ID: "inbox/b.txt", Name: "b.txt", Hash: "h2"})
	store.data["inbox/b.txt"] = []byte("beta")
	store.mu.Unlock()

	m.Start(context.Background())
	defer m.Stop()
	require.Eventually(t, func() bool { return m.Status().Processed == 2 },
		2*time.Second, 10*time.Millisecond)
	assert.True(t, m.Status().Running)
}
