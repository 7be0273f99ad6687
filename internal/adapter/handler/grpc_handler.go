package handler

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/vending-machine/internal/core/service"
	"github.com/rl1809/vending-machine/internal/port"
)

// GRPCHandler serves vending.v1.VendingMachine. Rejected machine inputs are
// reported in the response body; gRPC status errors are reserved for
// transport and infrastructure failures.
type GRPCHandler struct {
	ops    operations
	logger *zap.Logger
}

func NewGRPCHandler(svc *service.VendingService, archive port.TransactionArchive, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{ops: operations{svc: svc, archive: archive}, logger: logger}
}

func (h *GRPCHandler) InsertCoin(ctx context.Context, req *InsertCoinRequest) (*InsertCoinResponse, error) {
	if dup := h.claim(ctx, req.RequestID); dup != nil {
		return &InsertCoinResponse{Outcome: *dup}, nil
	}
	resp := h.ops.insertCoin(req.Amount)
	return &resp, nil
}

func (h *GRPCHandler) SelectItem(ctx context.Context, req *SelectItemRequest) (*SelectItemResponse, error) {
	if req.ItemID == "" {
		return nil, status.Error(codes.InvalidArgument, "item_id is required")
	}
	resp := h.ops.selectItem(req.ItemID)
	return &resp, nil
}

func (h *GRPCHandler) Purchase(ctx context.Context, req *PurchaseRequest) (*PurchaseResponse, error) {
	if dup := h.claim(ctx, req.RequestID); dup != nil {
		return &PurchaseResponse{Outcome: *dup}, nil
	}
	resp := h.ops.purchase()
	return &resp, nil
}

func (h *GRPCHandler) Refund(ctx context.Context, _ *Empty) (*RefundResponse, error) {
	resp := h.ops.refund()
	return &resp, nil
}

func (h *GRPCHandler) Reset(ctx context.Context, _ *Empty) (*ResetResponse, error) {
	resp := h.ops.reset()
	return &resp, nil
}

func (h *GRPCHandler) GetStatus(ctx context.Context, _ *Empty) (*StatusResponse, error) {
	resp := h.ops.status()
	return &resp, nil
}

func (h *GRPCHandler) ListItems(ctx context.Context, _ *Empty) (*ItemsResponse, error) {
	resp := h.ops.listItems()
	return &resp, nil
}

func (h *GRPCHandler) GetHistory(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	resp, err := h.ops.history(ctx, *req)
	if errors.Is(err, errArchiveDisabled) {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	if err != nil {
		h.logger.Error("failed to read transaction archive", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to read transaction archive")
	}
	return &resp, nil
}

// claim returns a failure outcome when key was already used.
func (h *GRPCHandler) claim(ctx context.Context, key string) *Outcome {
	err := h.ops.svc.ClaimRequest(ctx, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrDuplicateRequest):
		return &Outcome{Success: false, Message: "duplicate request"}
	default:
		h.logger.Error("idempotency check failed", zap.String("key", key), zap.Error(err))
		return &Outcome{Success: false, Message: "internal error"}
	}
}
