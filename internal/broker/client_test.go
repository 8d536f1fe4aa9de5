package broker

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func newTestClient(baseURL string, fetchContracts bool) *Client {
	return &Client{
		client: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Authorization", "Token test-token").
			SetHeader("X-App-ID", "test-app"),
		logger:         zap.NewNop(),
		limiter:        rate.NewLimiter(rate.Inf, 1),
		timeout:        5 * time.Second,
		pageLimit:      2,
		fetchContracts: fetchContracts,
	}
}

func TestTestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/user", r.URL.Path)
		assert.Equal(t, "Token test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "test-app", r.Header.Get("X-App-ID"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"user": {"email": "trader@example.com", "account_id": "CR123"}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, false)

	info, err := client.TestConnection(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "trader@example.com", info["email"])
	assert.Equal(t, "CR123", info["account_id"])
}

func TestGetAccountBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/balance", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"balance": 1234.56, "currency": "USD"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, false)

	balance, err := client.GetAccountBalance(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1234.56, balance)
}

func TestGetTradesPagination(t *testing.T) {
	var offsets []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/transactions", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "buy", r.URL.Query().Get("action"))

		offset := r.URL.Query().Get("offset")
		offsets = append(offsets, offset)
		w.Header().Set("Content-Type", "application/json")
		if offset == "0" {
			fmt.Fprint(w, `{"transactions": [
				{"transaction_id": 1, "contract_id": "c1", "symbol": "R_100", "contract_type": "CALL", "buy_price": 10, "amount": -10, "transaction_time": 1700000000, "action": "buy"},
				{"transaction_id": 2, "contract_id": "c2", "symbol": "R_50", "contract_type": "PUT", "buy_price": 5, "amount": -5, "transaction_time": 1700000100, "action": "buy"}
			], "has_more": true}`)
			return
		}
		fmt.Fprint(w, `{"transactions": [
			{"transaction_id": 3, "contract_id": "c3", "symbol": "R_100", "contract_type": "CALL", "buy_price": 7, "amount": -7, "transaction_time": 1700000200, "action": "sell"}
		], "has_more": false}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, false)

	trades, err := client.GetTrades(context.Background(), 30)

	require.NoError(t, err)
	assert.Equal(t, []string{"0", "2"}, offsets)
	// The sell-action transaction on the second page is filtered out.
	require.Len(t, trades, 2)

	assert.Equal(t, "1", trades[0].ExternalID)
	assert.Equal(t, "R_100", trades[0].Symbol)
	assert.Equal(t, 10.0, trades[0].Stake, "stake is the absolute amount")
	assert.Equal(t, StatusOpen, trades[0].Status)
	assert.Equal(t, "USD", trades[0].Currency, "missing currency defaults to USD")
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), trades[0].PurchaseTime)
}

func TestGetTradesWithContracts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/transactions":
			fmt.Fprint(w, `{"transactions": [
				{"transaction_id": 1, "contract_id": "sold-1", "symbol": "R_100", "currency": "EUR", "buy_price": 10, "amount": -10, "transaction_time": 1700000000, "action": "buy"},
				{"transaction_id": 2, "contract_id": "expired-1", "symbol": "R_50", "buy_price": 5, "amount": -5, "transaction_time": 1700000100, "action": "buy"}
			], "has_more": false}`)
		case "/api/v1/contract/sold-1":
			fmt.Fprint(w, `{"status": "sold", "profit": 8.5, "payout": 18.5, "sell_price": 18.5, "sell_time": 1700003600, "exit_spot": 101.5}`)
		case "/api/v1/contract/expired-1":
			fmt.Fprint(w, `{"status": "open", "is_expired": true, "expiry_time": 1700007200}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL, true)

	trades, err := client.GetTrades(context.Background(), 30)

	require.NoError(t, err)
	require.Len(t, trades, 2)

	sold := trades[0]
	assert.Equal(t, StatusSold, sold.Status)
	assert.Equal(t, 8.5, sold.Profit)
	assert.Equal(t, 18.5, sold.SellPrice)
	assert.Equal(t, "EUR", sold.Currency)
	require.NotNil(t, sold.SellTime)
	assert.Equal(t, time.Unix(1700003600, 0).UTC(), *sold.SellTime)

	expired := trades[1]
	assert.Equal(t, StatusExpired, expired.Status)
	assert.Equal(t, -5.0, expired.Profit, "an expired contract loses the stake")
	require.NotNil(t, expired.ExpiryTime)
	assert.Equal(t, time.Unix(1700007200, 0).UTC(), *expired.ExpiryTime)
}

func TestDoRequestRetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"balance": 99}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, false)

	balance, err := client.GetAccountBalance(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 99.0, balance)
	assert.Equal(t, 2, calls)
}

func TestDoRequestDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(server.URL, false)

	_, err := client.TestConnection(context.Background())

	require.Error(t, err)
	assert.Equal(t, 1, calls, "4xx responses are not retried")
}

func TestContractInfoErrorsAreSoft(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/v1/transactions" {
			fmt.Fprint(w, `{"transactions": [
				{"transaction_id": 1, "contract_id": "gone", "symbol": "R_100", "buy_price": 10, "amount": -10, "transaction_time": 1700000000, "action": "buy"}
			], "has_more": false}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL, true)

	trades, err := client.GetTrades(context.Background(), 30)

	require.NoError(t, err, "a missing contract does not fail the sync")
	require.Len(t, trades, 1)
	assert.Equal(t, StatusOpen, trades[0].Status)
}

func TestTransformTransaction(t *testing.T) {
	tx := Transaction{
		TransactionID:   42,
		ContractID:      "c42",
		Symbol:          "R_100",
		ContractType:    "CALL",
		Amount:          -12.5,
		TransactionTime: 1700000000,
		Action:          "buy",
	}

	t.Run("WithoutContract", func(t *testing.T) {
		trade := transformTransaction(tx, nil)
		assert.Equal(t, "42", trade.ExternalID)
		assert.Equal(t, 12.5, trade.Stake)
		assert.Equal(t, StatusOpen, trade.Status)
		assert.Equal(t, 0.0, trade.Profit)
	})

	t.Run("StillRunning", func(t *testing.T) {
		trade := transformTransaction(tx, &ContractInfo{IsValidToSell: true})
		assert.Equal(t, StatusOpen, trade.Status)
	})

	t.Run("IndeterminateContract", func(t *testing.T) {
		trade := transformTransaction(tx, &ContractInfo{})
		assert.Equal(t, StatusUnknown, trade.Status)
	})
}
