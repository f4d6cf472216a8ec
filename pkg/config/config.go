// Package config loads and validates the chronicle.yaml configuration.
package config

import "time"

// Config is the umbrella configuration object returned by Initialize()
// and used throughout the application. Loaded once at startup; hot
// reload is not supported.
type Config struct {
	configDir string

	Monitor    *MonitorConfig    `yaml:"monitor"`
	Ingest     *IngestConfig     `yaml:"ingest"`
	Stores     *StoresConfig     `yaml:"stores"`
	Supervisor *SupervisorConfig `yaml:"supervisor"`
	Whitelist  *WhitelistConfig  `yaml:"whitelist"`
	Messaging  *MessagingConfig  `yaml:"messaging"`
	LLM        *LLMConfig        `yaml:"llm"`
	Embedding  *EmbeddingConfig  `yaml:"embedding"`
	Telemetry  *TelemetryConfig  `yaml:"telemetry"`
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string { return c.configDir }

// MonitorConfig controls the background source monitor.
type MonitorConfig struct {
	// IntervalSeconds is the poll period for listing the object store.
	// Minimum 10 seconds, enforced at validation.
	IntervalSeconds int `yaml:"interval_s"`

	// Workers bounds concurrent ingests within one scan cycle.
	Workers int `yaml:"workers"`

	// Bucket and Prefix identify the object-store folder to scan.
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`

	// GraceSeconds is how long running workers may finish the current
	// file after a shutdown signal.
	GraceSeconds int `yaml:"grace_s"`

	// LedgerPath is the processed-file ledger location on disk.
	LedgerPath string `yaml:"ledger_path"`
}

// Interval returns the poll period as a duration.
func (m *MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalSeconds) * time.Second
}

// Grace returns the shutdown grace deadline as a duration.
func (m *MonitorConfig) Grace() time.Duration {
	return time.Duration(m.GraceSeconds) * time.Second
}

// IngestConfig controls chunking and embedding.
type IngestConfig struct {
	ChunkMinChars  int `yaml:"chunk_min_chars"`
	ChunkMaxChars  int `yaml:"chunk_max_chars"`
	ChunkCeiling   int `yaml:"chunk_ceiling"`
	EmbeddingDim   int `yaml:"embedding_dim"`
	EmbeddingBatch int `yaml:"embedding_batch"`

	// RawRetentionDays is how long the raw payload blob is retained on
	// the source row before it may be purged. 0 disables purging.
	RawRetentionDays int `yaml:"raw_retention_days"`
}

// StoresConfig toggles and configures the two durable stores.
// At least one store must be enabled.
type StoresConfig struct {
	Graph      *GraphStoreConfig      `yaml:"graph"`
	Relational *RelationalStoreConfig `yaml:"relational"`
}

// GraphStoreConfig configures the Neo4j property graph.
// Enabled is a pointer so an explicit `enabled: false` survives the
// merge over defaults.
type GraphStoreConfig struct {
	Enabled     *bool  `yaml:"enabled"`
	URI         string `yaml:"uri"`
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
	Database    string `yaml:"database"`
	TimeoutMS   int    `yaml:"timeout_ms"`
}

// IsEnabled resolves the enabled flag with its default.
func (g *GraphStoreConfig) IsEnabled() bool {
	if g.Enabled == nil {
		return true
	}
	return *g.Enabled
}

// Timeout returns the per-query timeout.
func (g *GraphStoreConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutMS) * time.Millisecond
}

// RelationalStoreConfig configures the Postgres mirror.
// Connection parameters come from the standard DB_* environment
// variables (see relational.LoadConfigFromEnv).
type RelationalStoreConfig struct {
	Enabled   *bool `yaml:"enabled"`
	TimeoutMS int   `yaml:"timeout_ms"`
}

// IsEnabled resolves the enabled flag with its default.
func (r *RelationalStoreConfig) IsEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

// Timeout returns the per-query timeout.
func (r *RelationalStoreConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

// SupervisorConfig controls the query orchestrator.
type SupervisorConfig struct {
	// MaxIterations caps state transitions per session: each tool call,
	// sub-agent round-trip, and planning update counts as one.
	MaxIterations int `yaml:"max_iterations"`

	// HistoryTurns is how many prior conversation turns the supervisor
	// receives as previous context. Sub-agents never receive history.
	HistoryTurns int `yaml:"history_turns"`

	// FreshnessDays is the source age beyond which the synthesized
	// answer carries a confidence qualifier.
	FreshnessDays int `yaml:"freshness_days"`
}

// WhitelistConfig controls the messaging authorization gate.
type WhitelistConfig struct {
	// Enabled defaults to true; disabling bypasses the check entirely.
	Enabled *bool `yaml:"enabled"`

	// CacheTTLSeconds bounds the in-memory lookup cache.
	CacheTTLSeconds int `yaml:"cache_ttl_s"`
}

// IsEnabled resolves the enabled flag with its default.
func (w *WhitelistConfig) IsEnabled() bool {
	if w.Enabled == nil {
		return true
	}
	return *w.Enabled
}

// CacheTTL returns the cache lifetime as a duration.
func (w *WhitelistConfig) CacheTTL() time.Duration {
	return time.Duration(w.CacheTTLSeconds) * time.Second
}

// MessagingConfig configures the inbound messaging channel.
type MessagingConfig struct {
	// TriggerTokens opt a group-channel message into processing.
	TriggerTokens []string `yaml:"trigger_tokens"`

	AccountSIDEnv string `yaml:"account_sid_env"`
	AuthTokenEnv  string `yaml:"auth_token_env"`
	FromNumber    string `yaml:"from_number"`
}

// LLMConfig configures the completion provider.
type LLMConfig struct {
	Model           string `yaml:"model"`
	APIKeyEnv       string `yaml:"api_key_env"`
	TimeoutMS       int    `yaml:"timeout_ms"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
}

// Timeout returns the per-call timeout.
func (l *LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutMS) * time.Millisecond
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// Timeout returns the per-batch timeout.
func (e *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutMS) * time.Millisecond
}

// TelemetryConfig configures the append-only event log.
type TelemetryConfig struct {
	Dir          string `yaml:"dir"`
	MaxFileBytes int64  `yaml:"max_file_bytes"`
}
