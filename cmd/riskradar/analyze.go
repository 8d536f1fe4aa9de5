package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trade-risk-analyzer-go/internal/analysis"
	"trade-risk-analyzer-go/internal/ingest"
	"trade-risk-analyzer-go/internal/models"
)

func newAnalyzeCmd() *cobra.Command {
	var useSample bool

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyze a trade export and print the risk scorecard",
		Long:  "Normalizes a CSV or broker HTML export into canonical trade records, computes metrics, detects risks and prints the weighted score.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			var records []models.TradeRecord
			source := "sample"

			if useSample {
				records = ingest.SampleRecords()
			} else {
				if len(args) == 0 {
					return fmt.Errorf("no file given; pass a path or use --sample")
				}
				source = args[0]
				content, err := os.ReadFile(source)
				if err != nil {
					return fmt.Errorf("could not read %s: %w", source, err)
				}
				normalizer := ingest.NewNormalizer(log)
				records, err = normalizer.Parse(filepath.Base(source), content)
				if err != nil {
					return fmt.Errorf("could not normalize %s: %w", source, err)
				}
			}

			log.Info("Normalized trade records",
				zap.String("source", source),
				zap.Int("count", len(records)),
			)

			result := analysis.Run(records, toThresholds(cfg.Thresholds))

			log.Info("Analysis complete",
				zap.Float64("score", result.Score.Score),
				zap.String("grade", result.Score.Grade),
				zap.Int("findings", len(result.Findings)),
				zap.Float64("win_rate", result.Metrics.WinRate),
				zap.Float64("net_profit", result.Metrics.NetProfit),
			)

			fmt.Print(analysis.Scorecard(result.Score))
			return nil
		},
	}

	cmd.Flags().BoolVar(&useSample, "sample", false, "analyze the built-in sample trade set")
	return cmd
}
