package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gazette/internal/config"
	"gazette/internal/jobs"
	"gazette/internal/logger"
	"gazette/internal/logstore"
	"gazette/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP read API and the in-process job runner",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("serve: load config: %w", err)
		}
		logger.InitWithLevel(cfg.App.LogLevel)

		ctx, interruptedFn, stop := notifyContext()
		defer stop()

		svc, err := buildServices(ctx, cfg)
		if err != nil {
			return err
		}
		defer svc.close()

		runnerCfg := jobs.DefaultConfig()
		runnerCfg.MaxConcurrentJobs = cfg.Server.MaxWorkers
		runner := jobs.New(svc.orch, driverFactory(cfg), logstore.Sink{Store: svc.logs}, runnerCfg)

		srv := server.New(svc.store, runner, svc.logs, cfg.Server)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("serve: shutdown: %w", err)
		}
		if interruptedFn() {
			return interrupted{fmt.Errorf("serve: interrupted")}
		}
		return nil
	},
}
