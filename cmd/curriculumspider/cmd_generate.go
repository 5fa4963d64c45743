package main

import (
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"CurriculumSpider/internal/app"
	"CurriculumSpider/internal/config"
	"CurriculumSpider/internal/logging"
)

var (
	genTopic  string
	genIntent string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the curriculum pipeline once and print the report as JSON",
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genTopic, "topic", "", "subject to learn (required)")
	generateCmd.Flags().StringVar(&genIntent, "intent", "", "learning goal and current level (required)")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	if genTopic == "" || genIntent == "" {
		return errors.New("--topic and --intent are required")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	report, err := application.Course().Generate(ctx, genTopic, genIntent)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
