// Package syncer reconciles externally fetched broker trades into the local
// canonical trade store and keeps per-connection sync state. Reconciliation
// is purely additive: trades are inserted or updated by their external id,
// never deleted, so a retried sync always converges.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"trade-risk-analyzer-go/internal/analysis"
	"trade-risk-analyzer-go/internal/broker"
	"trade-risk-analyzer-go/internal/config"
	"trade-risk-analyzer-go/internal/models"
)

// defaultAccountBalance stands in for the account balance the broker feed
// does not carry; position sizing over synced trades is approximate.
const defaultAccountBalance = 10000.0

// stakeToLotDivisor approximates a lot size from the stake amount.
const stakeToLotDivisor = 100.0

// Sync types.
const (
	SyncTypeManual      = "manual"
	SyncTypeIncremental = "incremental"
	SyncTypeScheduled   = "scheduled"
)

// TokenSource resolves a connection's stored credential to a usable API
// token. Credential encryption lives outside this package; the default
// source is a passthrough.
type TokenSource interface {
	Token(conn *models.BrokerConnection) (string, error)
}

// PlainTokenSource returns the stored token as-is.
type PlainTokenSource struct{}

func (PlainTokenSource) Token(conn *models.BrokerConnection) (string, error) {
	if conn.APITokenEncrypted == "" {
		return "", fmt.Errorf("connection %d has no API token", conn.ID)
	}
	return conn.APITokenEncrypted, nil
}

// ClientFactory builds a broker client for one connection. Tests inject a
// fake here.
type ClientFactory func(cfg *config.Broker, token string, conn *models.BrokerConnection, log *zap.Logger) broker.ClientInterface

// DefaultClientFactory builds the real REST client.
func DefaultClientFactory(cfg *config.Broker, token string, conn *models.BrokerConnection, log *zap.Logger) broker.ClientInterface {
	return broker.NewClient(cfg, token, conn.AppID, log)
}

// Options controls one sync run.
type Options struct {
	DaysBack int
	SyncType string
	Analyze  bool // run the scoring pipeline after a sync that changed data
}

// Result summarizes one completed sync run.
type Result struct {
	Fetched    int
	New        int
	Updated    int
	AnalysisID *uint
	Score      *float64
}

// Reconciler merges broker trades into the local store.
type Reconciler struct {
	db         *gorm.DB
	cfg        *config.Config
	log        *zap.Logger
	thresholds analysis.Thresholds
	tokens     TokenSource
	newClient  ClientFactory
	group      singleflight.Group
}

// NewReconciler creates a Reconciler.
func NewReconciler(db *gorm.DB, cfg *config.Config, log *zap.Logger, tokens TokenSource, factory ClientFactory) *Reconciler {
	return &Reconciler{
		db:  db,
		cfg: cfg,
		log: log,
		thresholds: analysis.Thresholds{
			MaxPositionSizePct:   cfg.Thresholds.MaxPositionSizePct,
			MinWinRate:           cfg.Thresholds.MinWinRate,
			MaxDrawdownPct:       cfg.Thresholds.MaxDrawdownPct,
			MinRRRatio:           cfg.Thresholds.MinRRRatio,
			MaxRevengeTradingPct: cfg.Thresholds.MaxRevengeTradingPct,
			MinSLUsageRate:       cfg.Thresholds.MinSLUsageRate,
		},
		tokens:    tokens,
		newClient: factory,
	}
}

// Sync runs one reconciliation for a connection. Two syncs for the same
// connection never run concurrently: the singleflight group keyed by
// connection id makes a second caller wait for and share the in-flight run.
// Syncs for different connections proceed independently.
//
// A failed sync is recorded on the connection state and the sync log; the
// returned error exists so a scheduling caller can log it.
func (r *Reconciler) Sync(ctx context.Context, connectionID uint, opts Options) (*Result, error) {
	key := strconv.FormatUint(uint64(connectionID), 10)
	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.doSync(ctx, connectionID, opts)
	})
	if v == nil {
		return nil, err
	}
	return v.(*Result), err
}

func (r *Reconciler) doSync(ctx context.Context, connectionID uint, opts Options) (*Result, error) {
	var conn models.BrokerConnection
	if err := r.db.First(&conn, connectionID).Error; err != nil {
		return nil, fmt.Errorf("connection %d not found: %w", connectionID, err)
	}

	syncLog := models.SyncLog{
		ConnectionID: conn.ID,
		SyncType:     opts.SyncType,
		Status:       models.SyncStatusStarted,
		StartedAt:    time.Now(),
	}
	if err := r.db.Create(&syncLog).Error; err != nil {
		return nil, fmt.Errorf("failed to create sync log: %w", err)
	}

	result, err := r.run(ctx, &conn, &syncLog, opts)
	if err != nil {
		r.recordFailure(&conn, &syncLog, err)
		return nil, err
	}
	return result, nil
}

func (r *Reconciler) run(ctx context.Context, conn *models.BrokerConnection, syncLog *models.SyncLog, opts Options) (*Result, error) {
	l := r.log.With(zap.Uint("connection_id", conn.ID), zap.String("sync_type", opts.SyncType))

	token, err := r.tokens.Token(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve API token: %w", err)
	}
	client := r.newClient(&r.cfg.Broker, token, conn, r.log)

	if _, err := client.TestConnection(ctx); err != nil {
		return nil, fmt.Errorf("connection test failed: %w", err)
	}
	conn.ConnectionStatus = models.ConnectionStatusConnected

	daysBack := opts.DaysBack
	if daysBack <= 0 {
		daysBack = r.cfg.Sync.DaysBack
	}
	trades, err := client.GetTrades(ctx, daysBack)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", err)
	}

	// Each upsert commits on its own; trades applied before a later failure
	// stay committed and a retried sync converges without duplication.
	result := &Result{Fetched: len(trades)}
	for _, trade := range trades {
		created, err := r.upsertTrade(conn, trade)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert trade %s: %w", trade.ExternalID, err)
		}
		if created {
			result.New++
		} else {
			result.Updated++
		}
	}

	now := time.Now()
	conn.LastSyncAt = &now
	conn.LastSuccessfulSync = &now
	conn.LastSyncStatus = models.SyncStatusSuccess
	conn.TotalSyncs++
	conn.TotalTradesSynced += result.New
	conn.ErrorCount = 0
	conn.LastError = ""
	if err := r.db.Save(conn).Error; err != nil {
		return nil, fmt.Errorf("failed to update connection state: %w", err)
	}

	if opts.Analyze && result.New+result.Updated > 0 {
		// Analysis is an add-on: its failure must not fail the sync.
		if analysisID, score, err := r.analyzeConnection(conn); err != nil {
			l.Error("Post-sync analysis failed", zap.Error(err))
		} else {
			result.AnalysisID = analysisID
			result.Score = score
			syncLog.AnalysisID = analysisID
			syncLog.Score = score
		}
	}

	syncLog.Status = models.SyncStatusSuccess
	syncLog.TradesFetched = result.Fetched
	syncLog.TradesNew = result.New
	syncLog.TradesUpdated = result.Updated
	r.completeLog(syncLog)

	l.Info("Sync complete",
		zap.Int("fetched", result.Fetched),
		zap.Int("new", result.New),
		zap.Int("updated", result.Updated),
	)
	return result, nil
}

// upsertTrade inserts or updates by the (connection_id, external_trade_id)
// dedup key. Updates touch only mutable fields; identity and creation
// fields are preserved.
func (r *Reconciler) upsertTrade(conn *models.BrokerConnection, trade broker.Trade) (bool, error) {
	var existing models.BrokerTrade
	err := r.db.Where("connection_id = ? AND external_trade_id = ?", conn.ID, trade.ExternalID).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		record := models.BrokerTrade{
			ConnectionID:    conn.ID,
			ExternalTradeID: trade.ExternalID,
		}
		applyTradeFields(&record, trade)
		return true, r.db.Create(&record).Error
	}
	if err != nil {
		return false, err
	}

	applyTradeFields(&existing, trade)
	return false, r.db.Save(&existing).Error
}

func applyTradeFields(record *models.BrokerTrade, trade broker.Trade) {
	record.TransactionID = trade.TransactionID
	record.ContractID = trade.ContractID
	record.Symbol = trade.Symbol
	record.ContractType = trade.ContractType
	record.Currency = trade.Currency
	record.BuyPrice = trade.BuyPrice
	record.SellPrice = trade.SellPrice
	record.Stake = trade.Stake
	record.Payout = trade.Payout
	record.Profit = trade.Profit
	record.PurchaseTime = trade.PurchaseTime
	record.ExpiryTime = trade.ExpiryTime
	record.SellTime = trade.SellTime
	record.Status = trade.Status
	record.ExitSpot = trade.ExitSpot
}

// analyzeConnection runs the scoring pipeline over the connection's full
// trade set and persists the result.
func (r *Reconciler) analyzeConnection(conn *models.BrokerConnection) (*uint, *float64, error) {
	var stored []models.BrokerTrade
	if err := r.db.Where("connection_id = ?", conn.ID).Order("purchase_time").Find(&stored).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load trades: %w", err)
	}
	if len(stored) == 0 {
		return nil, nil, nil
	}

	result := analysis.Run(ToRecords(stored), r.thresholds)

	metricsJSON, err := json.Marshal(result.Metrics)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode metrics: %w", err)
	}
	findingsJSON, err := json.Marshal(result.Findings)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode findings: %w", err)
	}
	scoreJSON, err := json.Marshal(result.Score)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode score: %w", err)
	}

	now := time.Now()
	row := models.Analysis{
		Source:       "sync",
		Filename:     fmt.Sprintf("broker_sync_%d", conn.ID),
		TradeCount:   len(stored),
		Score:        result.Score.Score,
		Grade:        result.Score.Grade,
		MetricsJSON:  string(metricsJSON),
		FindingsJSON: string(findingsJSON),
		ScoreJSON:    string(scoreJSON),
		CompletedAt:  &now,
	}
	if err := r.db.Create(&row).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to save analysis: %w", err)
	}

	if err := r.db.Model(&models.BrokerTrade{}).
		Where("connection_id = ?", conn.ID).
		Update("analysis_id", row.ID).Error; err != nil {
		r.log.Warn("Failed to link trades to analysis", zap.Error(err))
	}

	score := result.Score.Score
	return &row.ID, &score, nil
}

func (r *Reconciler) recordFailure(conn *models.BrokerConnection, syncLog *models.SyncLog, cause error) {
	now := time.Now()
	conn.ConnectionStatus = models.ConnectionStatusError
	conn.LastSyncAt = &now
	conn.LastSyncStatus = models.SyncStatusFailed
	conn.LastError = cause.Error()
	conn.ErrorCount++
	if err := r.db.Save(conn).Error; err != nil {
		r.log.Error("Failed to record connection error state", zap.Error(err))
	}

	syncLog.Status = models.SyncStatusFailed
	syncLog.ErrorMessage = cause.Error()
	r.completeLog(syncLog)

	r.log.Error("Sync failed",
		zap.Uint("connection_id", conn.ID),
		zap.Int("error_count", conn.ErrorCount),
		zap.Error(cause),
	)
}

func (r *Reconciler) completeLog(syncLog *models.SyncLog) {
	now := time.Now()
	syncLog.CompletedAt = &now
	syncLog.DurationSeconds = now.Sub(syncLog.StartedAt).Seconds()
	if err := r.db.Save(syncLog).Error; err != nil {
		r.log.Error("Failed to update sync log", zap.Error(err))
	}
}

// ToRecords converts stored broker trades to canonical records. The broker
// feed carries neither stop levels nor balance history, so the balance is a
// fixed default and stop loss stays absent.
func ToRecords(trades []models.BrokerTrade) []models.TradeRecord {
	records := make([]models.TradeRecord, 0, len(trades))
	for _, t := range trades {
		balance := defaultAccountBalance
		exitTime := t.PurchaseTime
		if t.SellTime != nil {
			exitTime = *t.SellTime
		} else if t.ExpiryTime != nil {
			exitTime = *t.ExpiryTime
		}

		tradeType := t.ContractType
		if tradeType == "" {
			tradeType = "buy"
		}

		records = append(records, models.TradeRecord{
			TradeID:              t.ExternalTradeID,
			Symbol:               t.Symbol,
			TradeType:            tradeType,
			LotSize:              t.Stake / stakeToLotDivisor,
			ProfitLoss:           t.Profit,
			EntryTime:            t.PurchaseTime,
			ExitTime:             exitTime,
			EntryPrice:           t.BuyPrice,
			ExitPrice:            t.ExitSpot,
			AccountBalanceBefore: &balance,
		})
	}
	return records
}
