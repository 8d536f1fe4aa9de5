// Package broker is the REST client for the external broker API. It handles
// auth headers, rate limiting, retries and pagination; the reconciler
// consumes its transformed Trade values.
package broker

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"trade-risk-analyzer-go/internal/config"
)

// Trade status values as reported by the broker.
const (
	StatusOpen    = "open"
	StatusSold    = "sold"
	StatusExpired = "expired"
	StatusUnknown = "unknown"
)

// actionBuy marks the transactions that represent trades.
const actionBuy = "buy"

// ClientInterface defines the broker API surface the reconciler depends on.
type ClientInterface interface {
	TestConnection(ctx context.Context) (AccountInfo, error)
	GetAccountBalance(ctx context.Context) (float64, error)
	GetTrades(ctx context.Context, daysBack int) ([]Trade, error)
}

// AccountInfo is the broker's account payload, passed through untouched.
type AccountInfo map[string]any

// Transaction is one raw entry from the transactions endpoint.
type Transaction struct {
	TransactionID   int64   `json:"transaction_id"`
	ContractID      string  `json:"contract_id"`
	Symbol          string  `json:"symbol"`
	ContractType    string  `json:"contract_type"`
	Currency        string  `json:"currency"`
	BuyPrice        float64 `json:"buy_price"`
	Amount          float64 `json:"amount"`
	TransactionTime int64   `json:"transaction_time"`
	Action          string  `json:"action"`
}

// ContractInfo carries settlement details for a contract.
type ContractInfo struct {
	SellPrice     float64 `json:"sell_price"`
	SellTime      int64   `json:"sell_time"`
	ExpiryTime    int64   `json:"expiry_time"`
	Status        string  `json:"status"`
	IsExpired     bool    `json:"is_expired"`
	IsValidToSell bool    `json:"is_valid_to_sell"`
	Profit        float64 `json:"profit"`
	Payout        float64 `json:"payout"`
	ExitSpot      float64 `json:"exit_spot"`
}

// Trade is a broker transaction in the shape the reconciler stores.
type Trade struct {
	ExternalID    string
	TransactionID string
	ContractID    string
	Symbol        string
	ContractType  string
	Currency      string
	BuyPrice      float64
	SellPrice     float64
	Stake         float64
	Payout        float64
	Profit        float64
	PurchaseTime  time.Time
	ExpiryTime    *time.Time
	SellTime      *time.Time
	Status        string
	ExitSpot      float64
}

// Client is a client for the broker REST API.
// It implements ClientInterface.
type Client struct {
	client         *resty.Client
	logger         *zap.Logger
	limiter        *rate.Limiter
	timeout        time.Duration
	pageLimit      int
	fetchContracts bool
}

// ensure Client implements the interface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a broker API client for one connection's credentials.
func NewClient(cfg *config.Broker, apiToken, appID string, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("Authorization", "Token "+apiToken).
		SetHeader("X-App-ID", appID)

	return &Client{
		client:         client,
		logger:         logger,
		limiter:        rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		timeout:        time.Duration(cfg.RequestTimeout) * time.Second,
		pageLimit:      cfg.PageLimit,
		fetchContracts: cfg.FetchContracts,
	}
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.SetContext(callCtx).Execute(method, url)
		cancel()

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && resp.StatusCode() != 0 {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// TestConnection verifies the credentials and returns the account payload.
func (c *Client) TestConnection(ctx context.Context) (AccountInfo, error) {
	type userResponse struct {
		User map[string]any `json:"user"`
	}

	req := c.client.R().SetResult(&userResponse{})
	resp, err := c.doRequest(ctx, "GET", "/api/v1/user", req)
	if err != nil {
		c.logger.Error("Connection test failed", zap.Error(err))
		return nil, fmt.Errorf("connection test failed: %w", err)
	}

	result := resp.Result().(*userResponse)
	return AccountInfo(result.User), nil
}

// GetAccountBalance fetches the current account balance.
func (c *Client) GetAccountBalance(ctx context.Context) (float64, error) {
	type balanceResponse struct {
		Balance float64 `json:"balance"`
	}

	req := c.client.R().SetResult(&balanceResponse{})
	resp, err := c.doRequest(ctx, "GET", "/api/v1/balance", req)
	if err != nil {
		return 0, fmt.Errorf("failed to get account balance: %w", err)
	}

	return resp.Result().(*balanceResponse).Balance, nil
}

// getTransactions pages through the transaction history for the window.
func (c *Client) getTransactions(ctx context.Context, daysBack int) ([]Transaction, error) {
	type transactionsResponse struct {
		Transactions []Transaction `json:"transactions"`
		HasMore      bool          `json:"has_more"`
	}

	endTime := time.Now().Unix()
	startTime := endTime - int64(daysBack)*24*60*60

	var all []Transaction
	offset := 0

	for {
		req := c.client.R().
			SetResult(&transactionsResponse{}).
			SetQueryParams(map[string]string{
				"limit":      strconv.Itoa(c.pageLimit),
				"offset":     strconv.Itoa(offset),
				"start_time": strconv.FormatInt(startTime, 10),
				"end_time":   strconv.FormatInt(endTime, 10),
				"action":     actionBuy,
			})

		resp, err := c.doRequest(ctx, "GET", "/api/v1/transactions", req)
		if err != nil {
			return nil, fmt.Errorf("failed to get transactions: %w", err)
		}

		page := resp.Result().(*transactionsResponse)
		all = append(all, page.Transactions...)

		if !page.HasMore {
			break
		}
		offset += c.pageLimit
	}

	return all, nil
}

// getContractInfo fetches settlement details for one contract. Errors are
// soft: a trade without contract details still syncs as open.
func (c *Client) getContractInfo(ctx context.Context, contractID string) *ContractInfo {
	req := c.client.R().SetResult(&ContractInfo{})
	resp, err := c.doRequest(ctx, "GET", "/api/v1/contract/"+contractID, req)
	if err != nil {
		c.logger.Warn("Failed to get contract info",
			zap.String("contract_id", contractID),
			zap.Error(err),
		)
		return nil
	}
	return resp.Result().(*ContractInfo)
}

// GetTrades fetches the full trade history for the window and transforms it
// into the reconciler's shape.
func (c *Client) GetTrades(ctx context.Context, daysBack int) ([]Trade, error) {
	transactions, err := c.getTransactions(ctx, daysBack)
	if err != nil {
		return nil, err
	}

	trades := make([]Trade, 0, len(transactions))
	for _, tx := range transactions {
		if tx.Action != actionBuy {
			continue
		}
		var contract *ContractInfo
		if c.fetchContracts && tx.ContractID != "" {
			contract = c.getContractInfo(ctx, tx.ContractID)
		}
		trades = append(trades, transformTransaction(tx, contract))
	}

	c.logger.Info("Fetched trades from broker",
		zap.Int("transactions", len(transactions)),
		zap.Int("trades", len(trades)),
	)
	return trades, nil
}

// transformTransaction maps a raw transaction (plus optional contract
// settlement) into a Trade. An expired contract loses its whole stake.
func transformTransaction(tx Transaction, contract *ContractInfo) Trade {
	trade := Trade{
		ExternalID:    strconv.FormatInt(tx.TransactionID, 10),
		TransactionID: strconv.FormatInt(tx.TransactionID, 10),
		ContractID:    tx.ContractID,
		Symbol:        tx.Symbol,
		ContractType:  tx.ContractType,
		Currency:      tx.Currency,
		BuyPrice:      tx.BuyPrice,
		Stake:         math.Abs(tx.Amount),
		PurchaseTime:  time.Unix(tx.TransactionTime, 0).UTC(),
		Status:        StatusOpen,
	}
	if trade.Currency == "" {
		trade.Currency = "USD"
	}

	if contract == nil {
		return trade
	}

	trade.SellPrice = contract.SellPrice
	trade.Payout = contract.Payout
	trade.ExitSpot = contract.ExitSpot
	if contract.ExpiryTime > 0 {
		t := time.Unix(contract.ExpiryTime, 0).UTC()
		trade.ExpiryTime = &t
	}
	if contract.SellTime > 0 {
		t := time.Unix(contract.SellTime, 0).UTC()
		trade.SellTime = &t
	}

	switch {
	case contract.Status == StatusSold:
		trade.Status = StatusSold
		trade.Profit = contract.Profit
	case contract.IsExpired:
		trade.Status = StatusExpired
		trade.Profit = -trade.Stake
	case contract.IsValidToSell:
		trade.Status = StatusOpen
	default:
		trade.Status = StatusUnknown
	}

	return trade
}
