package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trade-risk-analyzer-go/internal/analysis"
	"trade-risk-analyzer-go/internal/config"
	"trade-risk-analyzer-go/internal/logger"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "riskradar",
		Short:        "Trade-history risk analyzer",
		Long:         "riskradar ingests trade exports (CSV or broker HTML reports), computes behavioral metrics, detects risk patterns and produces a weighted risk score.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./configs", "config directory")

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newRisksCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger, the first two steps of
// every command.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("could not load config: %w", err)
	}
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("could not initialize logger: %w", err)
	}
	return cfg, log, nil
}

func toThresholds(t config.Thresholds) analysis.Thresholds {
	return analysis.Thresholds{
		MaxPositionSizePct:   t.MaxPositionSizePct,
		MinWinRate:           t.MinWinRate,
		MaxDrawdownPct:       t.MaxDrawdownPct,
		MinRRRatio:           t.MinRRRatio,
		MaxRevengeTradingPct: t.MaxRevengeTradingPct,
		MinSLUsageRate:       t.MinSLUsageRate,
	}
}
