package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"gazette/internal/config"
	"gazette/internal/core"
	"gazette/internal/logger"
)

var (
	ingestMaxItems  int
	ingestEnableLLM bool
	ingestDedup     bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <source_kind>",
	Short: "Run exactly one ingestion job to completion, synchronously",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := core.SourceKind(args[0])
		if !kind.Valid() {
			return fmt.Errorf("ingest: unknown source_kind %q", args[0])
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("ingest: load config: %w", err)
		}
		logger.InitWithLevel(cfg.App.LogLevel)

		ctx, interruptedFn, stop := notifyContext()
		defer stop()

		svc, err := buildServices(ctx, cfg)
		if err != nil {
			return err
		}
		defer svc.close()

		driver, err := driverFactory(cfg)(kind, nil)
		if err != nil {
			return fmt.Errorf("ingest: build driver: %w", err)
		}

		params := core.JobParams{
			MaxItems:            ingestMaxItems,
			EnableLLM:           ingestEnableLLM,
			EnableDeduplication: ingestDedup,
		}

		result, _, err := svc.orch.Run(ctx, driver, params)
		if interruptedFn() {
			return interrupted{fmt.Errorf("ingest: interrupted")}
		}
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}

		fmt.Printf("saved=%d skipped=%d semantic_duplicates=%d editorial_processed=%d errors=%d\n",
			result.Saved, result.Skipped, result.SemanticDuplicates, result.EditorialProcessed, result.Errors)
		return nil
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestMaxItems, "max-items", 50, "maximum items to fetch")
	ingestCmd.Flags().BoolVar(&ingestEnableLLM, "enable-llm", true, "run editorial enrichment")
	ingestCmd.Flags().BoolVar(&ingestDedup, "enable-dedup", true, "run semantic duplicate detection")
}
