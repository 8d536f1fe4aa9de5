package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"trade-risk-analyzer-go/internal/config"
	"trade-risk-analyzer-go/internal/models"
)

// Engine periodically reconciles every enabled connection. Connections sync
// concurrently with each other; the reconciler's per-connection
// serialization keeps individual connections sequential.
type Engine struct {
	log *zap.Logger
	cfg *config.Config
	db  *gorm.DB
	rec *Reconciler
}

// NewEngine creates a sync engine.
func NewEngine(log *zap.Logger, cfg *config.Config, db *gorm.DB, rec *Reconciler) *Engine {
	return &Engine{log: log, cfg: cfg, db: db, rec: rec}
}

// Run starts the engine's main loop and blocks until the context is done.
func (e *Engine) Run(ctx context.Context) {
	interval := time.Duration(e.cfg.Sync.TickInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.log.Info("Starting sync loop", zap.Duration("interval", interval))
	e.syncAll(ctx)

	for {
		select {
		case <-ctx.Done():
			e.log.Info("Stopping sync engine...")
			return
		case <-ticker.C:
			e.syncAll(ctx)
		}
	}
}

func (e *Engine) syncAll(ctx context.Context) {
	var connections []models.BrokerConnection
	if err := e.db.Where("enabled = ?", true).Find(&connections).Error; err != nil {
		e.log.Error("Failed to list connections", zap.Error(err))
		return
	}
	if len(connections) == 0 {
		e.log.Debug("No enabled connections to sync")
		return
	}

	opts := Options{
		DaysBack: e.cfg.Sync.DaysBack,
		SyncType: SyncTypeScheduled,
		Analyze:  e.cfg.Sync.AnalyzeAfterSync,
	}

	var wg sync.WaitGroup
	for _, conn := range connections {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			// Errors are already recorded on the connection and sync log;
			// nothing to do here beyond the reconciler's own logging.
			_, _ = e.rec.Sync(ctx, id, opts)
		}(conn.ID)
	}
	wg.Wait()
}
