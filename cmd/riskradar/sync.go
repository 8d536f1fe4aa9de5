package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trade-risk-analyzer-go/internal/database"
	"trade-risk-analyzer-go/internal/syncer"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run the background broker sync engine",
		Long:  "Periodically fetches trades for every enabled broker connection, reconciles them into the local store and re-scores the merged history.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()
			log.Info("Configuration loaded")

			db, err := database.NewDatabase(&cfg)
			if err != nil {
				log.Fatal("Failed to connect to database", zap.Error(err))
			}
			log.Info("Database connection successful and schema migrated.")

			// Setup context for graceful shutdown
			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				sigchan := make(chan os.Signal, 1)
				signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
				<-sigchan
				log.Info("Shutdown signal received, gracefully shutting down...")
				cancel()
			}()

			reconciler := syncer.NewReconciler(db, &cfg, log, syncer.PlainTokenSource{}, syncer.DefaultClientFactory)
			engine := syncer.NewEngine(log, &cfg, db, reconciler)
			engine.Run(ctx)

			log.Info("Sync engine has been shut down.")
			return nil
		},
	}
}
