package config

// DefaultConfig returns the built-in defaults. User YAML is merged on
// top; non-zero user values override.
func DefaultConfig() *Config {
	enabled := true
	return &Config{
		Monitor: &MonitorConfig{
			IntervalSeconds: 60,
			Workers:         1,
			GraceSeconds:    120,
			LedgerPath:      "./data/processed_files.json",
		},
		Ingest: &IngestConfig{
			ChunkMinChars:    500,
			ChunkMaxChars:    1500,
			ChunkCeiling:     2000,
			EmbeddingDim:     1024,
			EmbeddingBatch:   50,
			RawRetentionDays: 0,
		},
		Stores: &StoresConfig{
			Graph: &GraphStoreConfig{
				Enabled:     &enabled,
				URI:         "bolt://localhost:7687",
				Username:    "neo4j",
				PasswordEnv: "NEO4J_PASSWORD",
				Database:    "neo4j",
				TimeoutMS:   30_000,
			},
			Relational: &RelationalStoreConfig{
				Enabled:   &enabled,
				TimeoutMS: 30_000,
			},
		},
		Supervisor: &SupervisorConfig{
			MaxIterations: 50,
			HistoryTurns:  5,
			FreshnessDays: 60,
		},
		Whitelist: &WhitelistConfig{
			Enabled:         &enabled,
			CacheTTLSeconds: 60,
		},
		Messaging: &MessagingConfig{
			TriggerTokens: []string{"@agent", "@bot", "hey agent"},
			AccountSIDEnv: "TWILIO_ACCOUNT_SID",
			AuthTokenEnv:  "TWILIO_AUTH_TOKEN",
		},
		LLM: &LLMConfig{
			Model:           "claude-sonnet-4-5",
			APIKeyEnv:       "ANTHROPIC_API_KEY",
			TimeoutMS:       60_000,
			MaxOutputTokens: 4096,
		},
		Embedding: &EmbeddingConfig{
			Model:     "text-embedding-3-large",
			APIKeyEnv: "OPENAI_API_KEY",
			TimeoutMS: 120_000,
		},
		Telemetry: &TelemetryConfig{
			Dir:          "./data/telemetry",
			MaxFileBytes: 64 << 20,
		},
	}
}
