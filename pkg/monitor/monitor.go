// Package monitor discovers new source artifacts in the external
// object store and drives them through the ingestion pipeline.
package monitor

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chronicle-ai/chronicle/pkg/config"
	"github.com/chronicle-ai/chronicle/pkg/ingest"
)

// Ingestor runs one artifact end-to-end. Satisfied by ingest.Pipeline.
type Ingestor interface {
	Run(ctx context.Context, artifact *ingest.Artifact) (*ingest.Outcome, error)
}

// Status is the monitor's externally visible state.
type Status struct {
	Running   bool       `json:"running"`
	LastScan  *time.Time `json:"last_scan,omitempty"`
	Pending   int        `json:"pending"`
	Processed int        `json:"processed"`
	Errors    int        `json:"errors"`
}

// Monitor is the background scanner: a single cooperative loop that
// lists the object store, diffs against the ledger, and dispatches
// eligible files to a bounded worker group.
type Monitor struct {
	store    ObjectStore
	ledger   *Ledger
	ingestor Ingestor
	interval time.Duration
	workers  int
	grace    time.Duration
	logger   *slog.Logger

	startMu   sync.Mutex
	running   bool
	stopCh    chan struct{}
	done      chan struct{}
	cancel    context.CancelFunc
	triggerCh chan struct{}

	mu        sync.Mutex
	lastScan  *time.Time
	pending   int
	processed int
	errors    int
}

// New builds a monitor from configuration.
func New(store ObjectStore, ledger *Ledger, ingestor Ingestor, cfg *config.MonitorConfig) *Monitor {
	return &Monitor{
		store:     store,
		ledger:    ledger,
		ingestor:  ingestor,
		interval:  cfg.Interval(),
		workers:   cfg.Workers,
		grace:     cfg.Grace(),
		logger:    slog.Default().With("component", "monitor"),
		triggerCh: make(chan struct{}, 1),
	}
}

// Start launches the scan loop. Starting a running monitor is a no-op;
// a stopped monitor can be started again.
func (m *Monitor) Start(ctx context.Context) {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})

	ctx, m.cancel = context.WithCancel(ctx)
	go m.run(ctx, m.stopCh, m.done)
	m.logger.Info("Source monitor started",
		"interval", m.interval, "workers", m.workers)
}

// Stop signals the loop to exit and waits for in-flight files up to the
// grace deadline, then hard-cancels them. Files cut off by the hard
// cancel keep no ledger entry and are retried on next start.
func (m *Monitor) Stop() {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	if !m.running {
		return
	}
	m.running = false

	close(m.stopCh)
	select {
	case <-m.done:
	case <-time.After(m.grace):
		m.logger.Warn("Grace deadline exceeded, cancelling in-flight ingests")
		m.cancel()
		<-m.done
	}
	m.cancel()
	m.logger.Info("Source monitor stopped")
}

// TriggerNow forces an immediate scan. Non-blocking; a scan already
// queued is not duplicated.
func (m *Monitor) TriggerNow() {
	select {
	case m.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns a snapshot of the monitor's counters.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *time.Time
	if m.lastScan != nil {
		t := *m.lastScan
		last = &t
	}
	m.startMu.Lock()
	running := m.running
	m.startMu.Unlock()
	return Status{
		Running:   running,
		LastScan:  last,
		Pending:   m.pending,
		Processed: m.processed,
		Errors:    m.errors,
	}
}

// Ledger exposes a read snapshot of the processed-file records.
func (m *Monitor) Ledger() []Record { return m.ledger.Snapshot() }

func (m *Monitor) run(ctx context.Context, stopCh, done chan struct{}) {
	defer close(done)

	m.scan(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-m.triggerCh:
			m.scan(ctx)
		case <-time.After(jittered(m.interval)):
			m.scan(ctx)
		}
	}
}

// scan runs one cycle: list, diff, dispatch. File processing within the
// cycle is bounded by the worker count; the scan itself blocks until
// every dispatched file reaches a terminal state or ctx is cancelled.
func (m *Monitor) scan(ctx context.Context) {
	now := time.Now().UTC()
	m.mu.Lock()
	m.lastScan = &now
	m.mu.Unlock()

	objects, err := m.store.List(ctx)
	if err != nil {
		m.logger.Error("Object store listing failed", "error", err)
		m.addError()
		return
	}

	var eligible []Object
	for _, obj := range objects {
		if m.ledger.ShouldProcess(obj.ID, obj.Hash) {
			eligible = append(eligible, obj)
		} else if err := m.ledger.Touch(obj.ID); err != nil {
			m.logger.Warn("Ledger touch failed", "file", obj.ID, "error", err)
		}
	}
	if len(eligible) == 0 {
		return
	}

	m.setPending(len(eligible))
	m.logger.Info("Scan found eligible files", "count", len(eligible))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for _, obj := range eligible {
		obj := obj
		g.Go(func() error {
			m.processFile(gctx, obj)
			m.decPending()
			return nil
		})
	}
	_ = g.Wait()
}

// processFile ingests one file and persists its terminal ledger state.
// A cancelled ingest leaves the entry unset so the next scan retries.
func (m *Monitor) processFile(ctx context.Context, obj Object) {
	data, err := m.store.Fetch(ctx, obj.ID)
	if err != nil {
		m.logger.Error("Fetch failed", "file", obj.ID, "error", err)
		m.addError()
		if ctx.Err() == nil {
			m.markFailed(obj)
		}
		return
	}

	outcome, err := m.ingestor.Run(ctx, &ingest.Artifact{
		FileID: obj.ID,
		Name:   obj.Name,
		Data:   data,
	})
	if ctx.Err() != nil {
		// Shutdown cut this file off; no terminal state is recorded.
		m.logger.Warn("Ingest interrupted by shutdown", "file", obj.ID)
		return
	}
	if err != nil || !outcome.Succeeded {
		m.logger.Error("Ingest failed", "file", obj.ID, "error", err)
		m.addError()
		m.markFailed(obj)
		return
	}

	if err := m.ledger.Mark(obj.ID, obj.Hash, StateSucceeded); err != nil {
		m.logger.Error("Ledger write failed", "file", obj.ID, "error", err)
		m.addError()
		return
	}
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
	m.logger.Info("File processed", "file", obj.ID, "chunks", outcome.ChunkCount,
		"partial", outcome.Partial)
}

func (m *Monitor) markFailed(obj Object) {
	if err := m.ledger.Mark(obj.ID, obj.Hash, StateFailed); err != nil {
		m.logger.Error("Ledger write failed", "file", obj.ID, "error", err)
	}
}

func (m *Monitor) addError() {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}

func (m *Monitor) setPending(n int) {
	m.mu.Lock()
	m.pending = n
	m.mu.Unlock()
}

func (m *Monitor) decPending() {
	m.mu.Lock()
	if m.pending > 0 {
		m.pending--
	}
	m.mu.Unlock()
}

// jittered spreads poll wakeups by up to 10% to avoid thundering herds
// across replicas.
func jittered(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d)/10+1))
}
