// Knowledged is a personal knowledge base assistant daemon.
//
// It ingests text, files, and web pages into per-user knowledge bases and
// answers questions against them with cited sources over an HTTP API.
//
// Usage:
//
//	# Start the server with defaults
//	knowledged serve
//
//	# Configure via file and environment
//	knowledged serve --config /etc/knowledged/config.yaml
//	KNOWLEDGED_SERVER_PORT=9090 knowledged serve
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowledged/internal/assistant"
	"github.com/fyrsmithlabs/knowledged/internal/config"
	"github.com/fyrsmithlabs/knowledged/internal/docstore"
	"github.com/fyrsmithlabs/knowledged/internal/embeddings"
	"github.com/fyrsmithlabs/knowledged/internal/extract"
	"github.com/fyrsmithlabs/knowledged/internal/generation"
	"github.com/fyrsmithlabs/knowledged/internal/ingest"
	"github.com/fyrsmithlabs/knowledged/internal/logging"
	"github.com/fyrsmithlabs/knowledged/internal/prompt"
	"github.com/fyrsmithlabs/knowledged/internal/search"
	"github.com/fyrsmithlabs/knowledged/internal/server"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "knowledged",
	Short: "Personal knowledge base assistant daemon",
	Long: `knowledged ingests text, files, and web pages into per-user knowledge
bases and answers questions against them with cited sources.`,
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the knowledged HTTP server",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show detailed version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("knowledged\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Built:      %s\n", buildDate)
		fmt.Printf("Go version: %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logging.Sync(logger) }()

	logger.Info("starting knowledged",
		zap.String("version", version),
		zap.String("store_driver", cfg.Store.Driver),
	)

	store, err := newStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}()

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		APIKey:  cfg.Embeddings.APIKey,
	}, logger.Named("embeddings"))
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	generator, err := generation.NewClient(generation.Config{
		BaseURL: cfg.Generation.BaseURL,
		Model:   cfg.Generation.Model,
		APIKey:  cfg.Generation.APIKey,
	})
	if err != nil {
		return fmt.Errorf("creating generator: %w", err)
	}

	pipeline := ingest.NewPipeline(store, embedder, ingest.Config{
		MaxChunkSize:     cfg.Ingest.MaxChunkSize,
		CorrectionWindow: cfg.Ingest.CorrectionWindow,
	}, logger.Named("ingest"))

	engine := search.NewEngine(store, cfg.Retrieval.SimilarityFloor, logger.Named("search"))
	builder := prompt.NewBuilder(cfg.Retrieval.HistoryWindow)
	querier := assistant.NewService(embedder, engine, builder, generator, cfg.Retrieval.TopK, logger.Named("assistant"))
	fetcher := extract.NewURLExtractor(logger.Named("extract"))

	srv, err := server.NewServer(pipeline, querier, fetcher, logger.Named("http"), &server.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func newStore(cfg *config.Config, logger *zap.Logger) (docstore.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return docstore.NewMemoryStore(), nil
	default:
		return docstore.NewSQLiteStore(cfg.Store.Path, logger.Named("docstore"))
	}
}
