package config

import "errors"

// minMonitorIntervalSeconds is the floor for the monitor poll period.
const minMonitorIntervalSeconds = 10

// Validator performs cross-field validation on loaded configuration.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll runs all validation checks and returns the first failure.
func (v *Validator) ValidateAll() error {
	checks := []func() error{
		v.validateMonitor,
		v.validateIngest,
		v.validateStores,
		v.validateSupervisor,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateMonitor() error {
	m := v.cfg.Monitor
	if m.IntervalSeconds < minMonitorIntervalSeconds {
		return &ValidationError{Section: "monitor", Field: "interval_s",
			Err: errors.New("must be at least 10 seconds")}
	}
	if m.Workers < 1 {
		return &ValidationError{Section: "monitor", Field: "workers",
			Err: errors.New("must be at least 1")}
	}
	if m.LedgerPath == "" {
		return &ValidationError{Section: "monitor", Field: "ledger_path",
			Err: errors.New("must not be empty")}
	}
	return nil
}

func (v *Validator) validateIngest() error {
	i := v.cfg.Ingest
	if i.ChunkMinChars <= 0 || i.ChunkMaxChars <= i.ChunkMinChars {
		return &ValidationError{Section: "ingest", Field: "chunk_min_chars/chunk_max_chars",
			Err: errors.New("require 0 < min < max")}
	}
	if i.ChunkCeiling < i.ChunkMaxChars {
		return &ValidationError{Section: "ingest", Field: "chunk_ceiling",
			Err: errors.New("must be >= chunk_max_chars")}
	}
	if i.EmbeddingDim <= 0 {
		return &ValidationError{Section: "ingest", Field: "embedding_dim",
			Err: errors.New("must be positive")}
	}
	if i.EmbeddingBatch <= 0 {
		return &ValidationError{Section: "ingest", Field: "embedding_batch",
			Err: errors.New("must be positive")}
	}
	return nil
}

func (v *Validator) validateStores() error {
	s := v.cfg.Stores
	if !s.Graph.IsEnabled() && !s.Relational.IsEnabled() {
		return &ValidationError{Section: "stores",
			Err: errors.New("at least one of graph/relational must be enabled")}
	}
	if s.Graph.IsEnabled() && s.Graph.URI == "" {
		return &ValidationError{Section: "stores.graph", Field: "uri",
			Err: errors.New("must not be empty when enabled")}
	}
	return nil
}

func (v *Validator) validateSupervisor() error {
	s := v.cfg.Supervisor
	if s.MaxIterations < 1 {
		return &ValidationError{Section: "supervisor", Field: "max_iterations",
			Err: errors.New("must be at least 1")}
	}
	if s.HistoryTurns < 0 {
		return &ValidationError{Section: "supervisor", Field: "history_turns",
			Err: errors.New("must not be negative")}
	}
	return nil
}
