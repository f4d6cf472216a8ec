// Chronicle server: ingests organizational sources into the knowledge
// base, answers questions over the messaging channel and admin API, and
// runs the background source monitor.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/chronicle-ai/chronicle/pkg/api"
	"github.com/chronicle-ai/chronicle/pkg/config"
	"github.com/chronicle-ai/chronicle/pkg/gate"
	"github.com/chronicle-ai/chronicle/pkg/graph"
	"github.com/chronicle-ai/chronicle/pkg/ingest"
	"github.com/chronicle-ai/chronicle/pkg/llm"
	"github.com/chronicle-ai/chronicle/pkg/messaging"
	"github.com/chronicle-ai/chronicle/pkg/monitor"
	"github.com/chronicle-ai/chronicle/pkg/relational"
	"github.com/chronicle-ai/chronicle/pkg/supervisor"
	"github.com/chronicle-ai/chronicle/pkg/telemetry"
	"github.com/chronicle-ai/chronicle/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Parse command-line flags
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")

	slog.Info("Starting Chronicle",
		"version", version.Full(),
		"http_port", httpPort,
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Open the telemetry event log
	events, err := telemetry.NewLog(cfg.Telemetry.Dir, cfg.Telemetry.MaxFileBytes)
	if err != nil {
		slog.Error("Failed to open telemetry log", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := events.Close(); err != nil {
			slog.Error("Error closing telemetry log", "error", err)
		}
	}()

	// 3. Connect the enabled stores
	var relClient *relational.Client
	if cfg.Stores.Relational.IsEnabled() {
		dbConfig, err := relational.LoadConfigFromEnv()
		if err != nil {
			slog.Error("Failed to load database config", "error", err)
			os.Exit(1)
		}
		relClient, err = relational.NewClient(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer relClient.Close()
		slog.Info("Connected to PostgreSQL")
	}

	var graphClient *graph.Client
	if cfg.Stores.Graph.IsEnabled() {
		graphClient, err = graph.NewClient(ctx, cfg.Stores.Graph)
		if err != nil {
			slog.Error("Failed to connect to graph store", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := graphClient.Close(ctx); err != nil {
				slog.Error("Error closing graph client", "error", err)
			}
		}()
		slog.Info("Connected to Neo4j", "uri", cfg.Stores.Graph.URI)
	}

	// 4. Create the LLM and embedding clients
	llmClient, err := llm.NewAnthropicClient(cfg.LLM)
	if err != nil {
		slog.Error("Failed to initialize LLM client", "error", err)
		os.Exit(1)
	}
	embedder, err := llm.NewOpenAIEmbedder(cfg.Embedding)
	if err != nil {
		slog.Error("Failed to initialize embedding client", "error", err)
		os.Exit(1)
	}
	slog.Info("LLM clients initialized",
		"model", cfg.LLM.Model, "embedding_model", cfg.Embedding.Model)

	// 5. Assemble the ingestion pipeline over the enabled stores
	var writers []ingest.StoreWriter
	if graphClient != nil {
		writers = append(writers, graph.NewWriter(graphClient))
	}
	if relClient != nil {
		writers = append(writers, relational.NewWriter(relClient, cfg.Stores.Relational.Timeout()))
	}
	pipeline, err := ingest.NewPipeline(
		ingest.NewChunker(cfg.Ingest),
		ingest.NewEntityExtractor(llmClient),
		ingest.NewChunkEmbedder(embedder, cfg.Ingest),
		writers, events,
	)
	if err != nil {
		slog.Error("Failed to assemble ingestion pipeline", "error", err)
		os.Exit(1)
	}

	// 6. Start the source monitor
	objectStore, err := monitor.NewS3Store(ctx, cfg.Monitor.Bucket, cfg.Monitor.Prefix)
	if err != nil {
		slog.Error("Failed to initialize object store", "error", err)
		os.Exit(1)
	}
	ledger, err := monitor.LoadLedger(cfg.Monitor.LedgerPath)
	if err != nil {
		slog.Error("Failed to load ingestion ledger", "error", err)
		os.Exit(1)
	}
	mon := monitor.New(objectStore, ledger, pipeline, cfg.Monitor)
	mon.Start(ctx)
	slog.Info("Source monitor started",
		"bucket", cfg.Monitor.Bucket,
		"interval", cfg.Monitor.Interval())

	// 7. Start the raw-payload retention loop
	var retention *relational.Retention
	if relClient != nil && cfg.Ingest.RawRetentionDays > 0 {
		retention = relational.NewRetention(relClient, cfg.Ingest.RawRetentionDays)
		retention.Start(ctx)
	}

	// 8. Wire the query supervisor
	var graphQuerier supervisor.GraphQuerier
	if graphClient != nil {
		graphQuerier = graphClient
	}
	var searcher supervisor.ContentSearcher
	if relClient != nil {
		searcher = relClient
	}
	sup := supervisor.New(llmClient, graphQuerier, searcher, graph.SchemaText, cfg.Supervisor, events)

	// 9. Wire the messaging channel behind the whitelist gate
	var whitelistLookup gate.Lookup
	var whitelistStore *relational.WhitelistStore
	if relClient != nil {
		whitelistStore = relational.NewWhitelistStore(relClient)
		whitelistLookup = whitelistStore
	}
	authGate := gate.New(whitelistLookup, cfg.Whitelist, events)

	sender, err := messaging.NewTwilioSender(cfg.Messaging)
	if err != nil {
		slog.Error("Failed to initialize messaging sender", "error", err)
		os.Exit(1)
	}
	msgService := messaging.NewService(sup, authGate, sender, cfg.Messaging, events)
	slog.Info("Messaging channel initialized", "from", cfg.Messaging.FromNumber)

	// 10. Create the HTTP server
	deps := api.Deps{
		Query:   sup,
		Inbound: msgService,
		Monitor: mon,
		LLM:     llmClient,
	}
	if graphClient != nil {
		deps.Graph = graphClient
	}
	if relClient != nil {
		deps.Relational = relClient
		deps.Whitelist = whitelistStore
	}
	httpServer := api.NewServer(deps)

	// 11. Start HTTP server (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(":" + httpPort); err != nil {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Chronicle started successfully")

	// 12. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 13. Graceful shutdown: stop accepting HTTP first, then drain the
	// workers, then close the stores (via the deferred closers above).
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	msgDone := make(chan struct{})
	go func() {
		msgService.Stop()
		close(msgDone)
	}()
	select {
	case <-msgDone:
		slog.Info("Messaging service drained")
	case <-time.After(30 * time.Second):
		slog.Warn("Messaging drain timeout exceeded")
	}

	// Monitor.Stop blocks up to the configured grace deadline.
	mon.Stop()
	slog.Info("Source monitor stopped")

	if retention != nil {
		retention.Stop()
	}

	slog.Info("Shutdown complete")
}
