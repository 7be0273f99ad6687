package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/vending-machine/internal/core/domain"
	"github.com/rl1809/vending-machine/internal/core/service"
)

type mockCache struct {
	keys map[string]bool
	err  error
	mu   sync.Mutex
}

func newMockCache() *mockCache {
	return &mockCache{keys: make(map[string]bool)}
}

func (m *mockCache) GetStock(ctx context.Context, itemID string) (int, bool, error) {
	return 0, false, nil
}

func (m *mockCache) SetStock(ctx context.Context, itemID string, quantity int) error {
	return nil
}

func (m *mockCache) DecrementStock(ctx context.Context, itemID string, quantity int) (bool, error) {
	return true, nil
}

func (m *mockCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

type mockArchive struct {
	txs []domain.Transaction
	err error
}

func (m *mockArchive) SaveTransaction(ctx context.Context, tx domain.Transaction) error {
	m.txs = append(m.txs, tx)
	return nil
}

func (m *mockArchive) ListTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.txs) > limit {
		return m.txs[:limit], nil
	}
	return m.txs, nil
}

func newTestMachine(t *testing.T, opts ...service.Option) *service.VendingService {
	t.Helper()
	inv, err := domain.NewInventory(
		domain.Item{ID: "A3", Name: "Water", Price: 100, Stock: 15},
		domain.Item{ID: "B1", Name: "Chips", Price: 200, Stock: 12},
		domain.Item{ID: "B2", Name: "Chocolate", Price: 250, Stock: 7},
		domain.Item{ID: "B3", Name: "Candy", Price: 175, Stock: 20},
		domain.Item{ID: "Z0", Name: "Sold Out Soda", Price: 150, Stock: 0},
	)
	require.NoError(t, err)
	return service.NewVendingService(inv, nil, 0, opts...)
}

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T, svc *service.VendingService, archive *mockArchive) *testServer {
	h := NewHTTPHandler(svc, nil, nil)
	if archive != nil {
		h = NewHTTPHandler(svc, archive, nil)
	}
	return &testServer{t: t, handler: NewRouter(h, nil)}
}

func (s *testServer) do(method, path, body string, headers ...string) (int, map[string]any) {
	s.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return w.Code, out
}

func TestHTTP_HealthCheck(t *testing.T) {
	srv := newTestServer(t, newTestMachine(t), nil)

	code, body := srv.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestHTTP_PurchaseFlow(t *testing.T) {
	srv := newTestServer(t, newTestMachine(t), nil)

	code, body := srv.do(http.MethodPost, "/api/insert-coin", `{"amount": 2.00}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 2.0, body["balance"])
	assert.Equal(t, "coin_inserted", body["state"])

	code, body = srv.do(http.MethodPost, "/api/select-item", `{"item_id": "B1"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"B1"}, body["cart"])
	assert.Equal(t, "item_selected", body["state"])

	code, body = srv.do(http.MethodPost, "/api/purchase", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 0.0, body["change"])
	assert.Equal(t, "idle", body["state"])
	tx, ok := body["transaction"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2.0, tx["total_price"])

	code, body = srv.do(http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, body["count"])
	assert.Len(t, body["data"], 1)
}

func TestHTTP_MoneyIsExact(t *testing.T) {
	svc := newTestMachine(t)
	srv := newTestServer(t, svc, nil)

	srv.do(http.MethodPost, "/api/insert-coin", `{"amount": 1.00}`)
	srv.do(http.MethodPost, "/api/select-item", `{"item_id": "A3"}`)
	srv.do(http.MethodPost, "/api/insert-coin", `{"amount": "2.00"}`)
	srv.do(http.MethodPost, "/api/select-item", `{"item_id": "B3"}`)

	_, body := srv.do(http.MethodPost, "/api/purchase", "")
	assert.Equal(t, 0.25, body["change"])
	assert.Equal(t, domain.Money(0), svc.Status().Balance)
}

func TestHTTP_Failures(t *testing.T) {
	tests := []struct {
		name   string
		setup  []string
		method string
		path   string
		body   string
		code   int
		kind   string
	}{
		{"invalid denomination", nil, http.MethodPost, "/api/insert-coin", `{"amount": 0.33}`, http.StatusBadRequest, "InvalidDenomination"},
		{"sub-cent amount", nil, http.MethodPost, "/api/insert-coin", `{"amount": 0.333}`, http.StatusBadRequest, "InvalidRequest"},
		{"overflowing amount", nil, http.MethodPost, "/api/insert-coin", `{"amount": 184467440737095516.41}`, http.StatusBadRequest, "InvalidRequest"},
		{"malformed body", nil, http.MethodPost, "/api/insert-coin", `{`, http.StatusBadRequest, "InvalidRequest"},
		{"malformed purchase body", nil, http.MethodPost, "/api/purchase", `{"request_id":`, http.StatusBadRequest, "InvalidRequest"},
		{"select before coins", nil, http.MethodPost, "/api/select-item", `{"item_id": "A3"}`, http.StatusBadRequest, "InvalidStateTransition"},
		{"purchase from idle", nil, http.MethodPost, "/api/purchase", "", http.StatusBadRequest, "InvalidStateTransition"},
		{"refund from idle", nil, http.MethodPost, "/api/refund", "", http.StatusBadRequest, "InvalidStateTransition"},
		{"unknown item", []string{`{"amount": 1.00}`}, http.MethodPost, "/api/select-item", `{"item_id": "Q7"}`, http.StatusNotFound, "ItemNotFound"},
		{"unknown item lookup", nil, http.MethodGet, "/api/items/Q7", "", http.StatusNotFound, "ItemNotFound"},
		{"negative restock", nil, http.MethodPost, "/api/items/A3/restock", `{"quantity": -2}`, http.StatusBadRequest, "InvalidItem"},
		{"negative price", nil, http.MethodPut, "/api/items/A3/price", `{"price": "-1.00"}`, http.StatusBadRequest, "InvalidAmount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, newTestMachine(t), nil)
			for _, coin := range tt.setup {
				code, _ := srv.do(http.MethodPost, "/api/insert-coin", coin)
				require.Equal(t, http.StatusOK, code)
			}

			code, body := srv.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.kind, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestHTTP_InsufficientBalance(t *testing.T) {
	srv := newTestServer(t, newTestMachine(t), nil)
	srv.do(http.MethodPost, "/api/insert-coin", `{"amount": 2.00}`)
	srv.do(http.MethodPost, "/api/select-item", `{"item_id": "B2"}`)

	code, body := srv.do(http.MethodPost, "/api/purchase", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InsufficientBalance", body["error"])
	assert.Equal(t, "item_selected", body["state"])
	assert.Equal(t, "Insufficient balance. Need $2.50, have $2.00", body["message"])
}

func TestHTTP_OutOfStockSelection(t *testing.T) {
	srv := newTestServer(t, newTestMachine(t), nil)
	srv.do(http.MethodPost, "/api/insert-coin", `{"amount": 2.00}`)

	code, body := srv.do(http.MethodPost, "/api/select-item", `{"item_id": "Z0"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "out_of_stock", body["state"])
	assert.Nil(t, body["error"])

	code, body = srv.do(http.MethodPost, "/api/refund", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2.0, body["refund_amount"])
	assert.Equal(t, "idle", body["state"])
}

func TestHTTP_StatusAndReset(t *testing.T) {
	srv := newTestServer(t, newTestMachine(t), nil)
	srv.do(http.MethodPost, "/api/insert-coin", `{"amount": 1.00}`)
	srv.do(http.MethodPost, "/api/select-item", `{"item_id": "A3"}`)

	_, body := srv.do(http.MethodGet, "/api/status", "")
	data := body["data"].(map[string]any)
	assert.Equal(t, "item_selected", data["state"])
	assert.Equal(t, 1.0, data["balance"])
	assert.Equal(t, "A3", data["selected_item"])
	assert.Equal(t, 1.0, data["cart_count"])

	code, body := srv.do(http.MethodPost, "/api/reset", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Vending machine reset to idle state", body["message"])

	_, body = srv.do(http.MethodGet, "/api/status", "")
	data = body["data"].(map[string]any)
	assert.Equal(t, "idle", data["state"])
	assert.Nil(t, data["selected_item"])
	assert.Equal(t, []any{}, data["cart"])
}

func TestHTTP_Items(t *testing.T) {
	srv := newTestServer(t, newTestMachine(t), nil)

	_, body := srv.do(http.MethodGet, "/api/items", "")
	assert.Len(t, body["data"], 5)

	code, body := srv.do(http.MethodGet, "/api/items/B3", "")
	assert.Equal(t, http.StatusOK, code)
	item := body["data"].(map[string]any)
	assert.Equal(t, "Candy", item["name"])
	assert.Equal(t, 1.75, item["price"])

	code, body = srv.do(http.MethodPost, "/api/items/Z0/restock", `{"quantity": 4}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 4.0, body["data"].(map[string]any)["stock"])

	code, body = srv.do(http.MethodPut, "/api/items/B3/price", `{"price": 1.95}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.95, body["data"].(map[string]any)["price"])
}

func TestHTTP_IdempotencyKey(t *testing.T) {
	cache := newMockCache()
	srv := newTestServer(t, newTestMachine(t, service.WithIdempotencyCache(cache)), nil)

	code, _ := srv.do(http.MethodPost, "/api/insert-coin", `{"amount": 1.00}`, IdempotencyKeyHeader, "coin-1")
	assert.Equal(t, http.StatusOK, code)

	code, body := srv.do(http.MethodPost, "/api/insert-coin", `{"amount": 1.00}`, IdempotencyKeyHeader, "coin-1")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "duplicate request", body["message"])

	_, body = srv.do(http.MethodGet, "/api/status", "")
	assert.Equal(t, 1.0, body["data"].(map[string]any)["balance"], "duplicate never reached the machine")

	srv.do(http.MethodPost, "/api/select-item", `{"item_id": "A3"}`)
	code, body = srv.do(http.MethodPost, "/api/purchase", `{"request_id": "buy-1"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	srv.do(http.MethodPost, "/api/insert-coin", `{"amount": 1.00}`)
	srv.do(http.MethodPost, "/api/select-item", `{"item_id": "A3"}`)
	code, body = srv.do(http.MethodPost, "/api/purchase", `{"request_id": "buy-1"}`)
	assert.Equal(t, http.StatusConflict, code, "replayed body request_id is rejected")
	assert.Equal(t, "duplicate request", body["message"])
	assert.True(t, cache.keys["request:buy-1"])

	_, body = srv.do(http.MethodGet, "/api/history", "")
	assert.Equal(t, 1.0, body["count"], "replay never settled")

	cache.err = errors.New("redis down")
	code, _ = srv.do(http.MethodPost, "/api/purchase", "", IdempotencyKeyHeader, "buy-2")
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestHTTP_History(t *testing.T) {
	archive := &mockArchive{}
	svc := newTestMachine(t)
	srv := newTestServer(t, svc, archive)

	for i := 0; i < 3; i++ {
		srv.do(http.MethodPost, "/api/insert-coin", `{"amount": 1.00}`)
		srv.do(http.MethodPost, "/api/select-item", `{"item_id": "A3"}`)
		srv.do(http.MethodPost, "/api/purchase", "")
	}
	archive.txs = svc.History()

	_, body := srv.do(http.MethodGet, "/api/history?limit=2", "")
	assert.Equal(t, 2.0, body["count"])

	code, body := srv.do(http.MethodGet, "/api/history?source=archive&limit=1", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, body["count"])

	code, _ = srv.do(http.MethodGet, "/api/history?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, code)

	archive.err = errors.New("mysql gone")
	code, _ = srv.do(http.MethodGet, "/api/history?source=archive", "")
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestHTTP_HistoryArchiveDisabled(t *testing.T) {
	srv := newTestServer(t, newTestMachine(t), nil)

	code, body := srv.do(http.MethodGet, "/api/history?source=archive", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["success"])

	_, body = srv.do(http.MethodGet, "/api/history", "")
	assert.Equal(t, []any{}, body["data"])
	assert.Equal(t, 0.0, body["count"])
}
