package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"CurriculumSpider/internal/app"
	"CurriculumSpider/internal/config"
	"CurriculumSpider/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /spider, /chat and /healthcheck over HTTP",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application failed to start", "error", err)
		return err
	}
	defer application.Close()

	return application.Serve(ctx)
}
