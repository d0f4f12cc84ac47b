package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gazette/internal/config"
	"gazette/internal/core"
	"gazette/internal/dedup"
	"gazette/internal/editorial"
	"gazette/internal/jobs"
	"gazette/internal/llmclient"
	"gazette/internal/logger"
	"gazette/internal/logstore"
	"gazette/internal/pipeline"
	"gazette/internal/recordstore"
	"gazette/internal/server"
	"gazette/internal/sources"
	"gazette/internal/vectorindex"
)

// rootCmd is the base command; gazette does nothing without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "gazette",
	Short: "gazette ingests, deduplicates, and editorially rewrites posts from several source kinds",
}

// Execute runs the selected subcommand. Exit codes follow the CLI surface
// contract: 0 success, 1 generic failure, 130 user interrupt.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if ctxErr, ok := err.(interrupted); ok {
			fmt.Fprintln(os.Stderr, ctxErr)
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// interrupted marks an error as "the user asked us to stop," distinct from
// a genuine failure, so Execute can map it to exit code 130.
type interrupted struct{ error }

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(migrateCmd)
}

// services bundles every component a job needs to run, built once per
// process from config and shared between the serve and ingest commands.
type services struct {
	store     recordstore.Store
	index     vectorindex.Index
	embedder  llmclient.Embedder
	generator llmclient.Generator
	dedupSvc  *dedup.Service
	editorial *editorial.Service
	orch      *pipeline.Orchestrator
	logs      logstore.Store
	cfg       *config.Config
}

// buildServices wires C1-C6 and C8 from cfg. Callers are responsible for
// closing store/index/logs when done.
func buildServices(ctx context.Context, cfg *config.Config) (*services, error) {
	store, err := recordstore.NewPostgresStore(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("cmd: connect record store: %w", err)
	}

	index, err := vectorindex.NewQdrantIndex(fmt.Sprintf("%s:%d", cfg.Qdrant.Host, cfg.Qdrant.Port))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("cmd: connect vector index: %w", err)
	}

	embedder, generator, err := buildLLM(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	dedupSvc := dedup.New(embedder, index, float32(cfg.Dedup.Threshold))

	editorialSvc, err := editorial.New(generator)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("cmd: load editorial prompts: %w", err)
	}

	pipelineCfg := pipeline.DefaultConfig()
	pipelineCfg.MaxParallelTasks = cfg.Pipeline.MaxParallelTasks
	pipelineCfg.MinBodyLength = cfg.Pipeline.MinBodyLength
	orch := pipeline.New(store, dedupSvc, editorialSvc, embedder, generator, pipelineCfg)

	logs, err := logstore.Open(cfg.LogStore.Address, cfg.LogStore.LocalDir, cfg.LogStore.MaxLogs)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("cmd: open log store: %w", err)
	}

	return &services{
		store: store, index: index, embedder: embedder, generator: generator,
		dedupSvc: dedupSvc, editorial: editorialSvc, orch: orch, logs: logs, cfg: cfg,
	}, nil
}

// buildLLM constructs the configured backend eagerly; ingest/serve call it
// at startup, before any job states whether it wants LLM enrichment. A
// missing gemini API key therefore fails startup even when no job sets
// enable_llm (config validation also rejects llm.backend=gemini without
// llm.api_key).
func buildLLM(ctx context.Context, cfg *config.Config) (llmclient.Embedder, llmclient.Generator, error) {
	switch cfg.LLM.Backend {
	case "gemini":
		client, err := llmclient.NewGeminiClient(ctx, cfg.LLM.GenerationModel, cfg.LLM.EmbeddingModel, int32(cfg.Qdrant.VectorDimensions))
		if err != nil {
			return nil, nil, fmt.Errorf("cmd: build gemini client: %w", err)
		}
		return client, client, nil
	default:
		client := llmclient.NewOllamaClient(
			cfg.LLM.BaseURL, cfg.LLM.GenerationModel, cfg.LLM.EmbeddingModel,
			cfg.Qdrant.VectorDimensions, cfg.LLM.ContextWindow, cfg.LLM.MaxRetries, cfg.LLM.Timeout,
		)
		return client, client, nil
	}
}

func (s *services) close() {
	s.store.Close()
	s.index.Close()
	s.logs.Close()
}

// driverFactory wraps sources.NewDriver with the process's source
// descriptors and endpoints so the job runner never needs to know how a
// driver is built.
func driverFactory(cfg *config.Config) jobs.DriverFactory {
	endpoints := sources.Endpoints{
		ForumBaseURL:       os.Getenv("GAZETTE_FORUM_BASE_URL"),
		TechArticleBaseURL: os.Getenv("GAZETTE_TECH_ARTICLE_BASE_URL"),
		ChatMessageBaseURL: os.Getenv("GAZETTE_CHAT_MESSAGE_BASE_URL"),
		BlogListingBaseURL: os.Getenv("GAZETTE_BLOG_LISTING_BASE_URL"),
		BlogReaderBaseURL:  os.Getenv("GAZETTE_BLOG_READER_BASE_URL"),
		UserAgent:          "gazette/1.0",
	}
	return func(kind core.SourceKind, filter map[string]any) (sources.Driver, error) {
		return sources.NewDriver(kind, cfg.Sources, endpoints)
	}
}

// notifyContext returns a context canceled on SIGINT/SIGTERM, and a func
// reporting whether the cancellation came from that signal rather than a
// parent context or deadline.
func notifyContext() (context.Context, func() bool, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx, func() bool { return ctx.Err() != nil }, stop
}
