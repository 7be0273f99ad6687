package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rl1809/vending-machine/internal/core/domain"
	"github.com/rl1809/vending-machine/internal/core/service"
	"github.com/rl1809/vending-machine/internal/port"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type HTTPHandler struct {
	ops    operations
	logger *zap.Logger
}

// NewHTTPHandler serves svc over HTTP. archive may be nil, in which case
// history is only available from memory.
func NewHTTPHandler(svc *service.VendingService, archive port.TransactionArchive, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{ops: operations{svc: svc, archive: archive}, logger: logger}
}

func (h *HTTPHandler) InsertCoin(w http.ResponseWriter, r *http.Request) {
	var req InsertCoinRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.claim(w, r, req.RequestID) {
		return
	}

	resp := h.ops.insertCoin(req.Amount)
	writeJSON(w, statusFor(resp.Error), resp)
}

func (h *HTTPHandler) SelectItem(w http.ResponseWriter, r *http.Request) {
	var req SelectItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ItemID == "" {
		writeJSON(w, http.StatusBadRequest, Outcome{Success: false, Message: "item_id is required"})
		return
	}

	resp := h.ops.selectItem(req.ItemID)
	writeJSON(w, statusFor(resp.Error), resp)
}

// Purchase takes an optional body; an empty one is allowed.
func (h *HTTPHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	if !h.claim(w, r, req.RequestID) {
		return
	}

	resp := h.ops.purchase()
	writeJSON(w, statusFor(resp.Error), resp)
}

func (h *HTTPHandler) Refund(w http.ResponseWriter, r *http.Request) {
	resp := h.ops.refund()
	writeJSON(w, statusFor(resp.Error), resp)
}

func (h *HTTPHandler) Reset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ops.reset())
}

func (h *HTTPHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ops.status())
}

func (h *HTTPHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ops.listItems())
}

func (h *HTTPHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	resp := h.ops.getItem(chi.URLParam(r, "id"))
	writeJSON(w, statusFor(resp.Error), resp)
}

func (h *HTTPHandler) Restock(w http.ResponseWriter, r *http.Request) {
	var req RestockRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp := h.ops.restock(chi.URLParam(r, "id"), req.Quantity)
	writeJSON(w, statusFor(resp.Error), resp)
}

func (h *HTTPHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp := h.ops.setPrice(chi.URLParam(r, "id"), req.Price)
	writeJSON(w, statusFor(resp.Error), resp)
}

func (h *HTTPHandler) History(w http.ResponseWriter, r *http.Request) {
	req := HistoryRequest{Source: r.URL.Query().Get("source")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, Outcome{Success: false, Message: "invalid limit"})
			return
		}
		req.Limit = limit
	}

	resp, err := h.ops.history(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errArchiveDisabled) {
			status = http.StatusNotFound
		} else {
			h.logger.Error("failed to read transaction archive", zap.Error(err))
		}
		writeJSON(w, status, Outcome{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		msg := "invalid request body"
		if errors.Is(err, domain.ErrInvalidAmount) {
			msg = "invalid amount"
		}
		writeJSON(w, http.StatusBadRequest, Outcome{Success: false, Message: msg, Error: "InvalidRequest"})
		return false
	}
	return true
}

func (h *HTTPHandler) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, Outcome{Success: false, Message: "invalid request body", Error: "InvalidRequest"})
	return false
}

// claim checks the request's idempotency key, taken from the header or, when
// the header is absent, from fallback. It writes the response and returns
// false when the request must not proceed.
func (h *HTTPHandler) claim(w http.ResponseWriter, r *http.Request, fallback string) bool {
	key := r.Header.Get(IdempotencyKeyHeader)
	if key == "" {
		key = fallback
	}

	err := h.ops.svc.ClaimRequest(r.Context(), key)
	switch {
	case err == nil:
		return true
	case errors.Is(err, service.ErrDuplicateRequest):
		writeJSON(w, http.StatusConflict, Outcome{Success: false, Message: "duplicate request"})
	default:
		h.logger.Error("idempotency check failed", zap.String("key", key), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Outcome{Success: false, Message: "internal error"})
	}
	return false
}

func statusFor(kind string) int {
	switch kind {
	case "":
		return http.StatusOK
	case "InvalidDenomination", "InvalidStateTransition", "InsufficientBalance", "InvalidAmount", "InvalidItem":
		return http.StatusBadRequest
	case "ItemNotFound":
		return http.StatusNotFound
	case "StockChangedDuringTransaction":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
