package handler

import (
	"context"
	"errors"

	"github.com/rl1809/vending-machine/internal/core/domain"
	"github.com/rl1809/vending-machine/internal/core/service"
	"github.com/rl1809/vending-machine/internal/port"
)

var errArchiveDisabled = errors.New("transaction archive is not configured")

// Outcome is the envelope shared by every response. Error carries the kind
// name of a rejected input and is empty otherwise.
type Outcome struct {
	Success bool                 `json:"success"`
	Message string               `json:"message,omitempty"`
	Error   string               `json:"error,omitempty"`
	State   *domain.MachineState `json:"state,omitempty"`
}

type InsertCoinRequest struct {
	Amount    domain.Money `json:"amount"`
	RequestID string       `json:"request_id,omitempty"`
}

type SelectItemRequest struct {
	ItemID string `json:"item_id"`
}

type PurchaseRequest struct {
	RequestID string `json:"request_id,omitempty"`
}

type HistoryRequest struct {
	Limit  int    `json:"limit,omitempty"`
	Source string `json:"source,omitempty"`
}

type RestockRequest struct {
	Quantity int `json:"quantity"`
}

type PriceRequest struct {
	Price domain.Money `json:"price"`
}

type Empty struct{}

type InsertCoinResponse struct {
	Outcome
	Balance *domain.Money `json:"balance,omitempty"`
}

type SelectItemResponse struct {
	Outcome
	Cart []string `json:"cart,omitempty"`
}

type PurchaseResponse struct {
	Outcome
	Change      *domain.Money       `json:"change,omitempty"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
}

type RefundResponse struct {
	Outcome
	RefundAmount *domain.Money `json:"refund_amount,omitempty"`
}

type ResetResponse struct {
	Outcome
}

type StatusResponse struct {
	Success bool           `json:"success"`
	Data    service.Status `json:"data"`
}

type ItemsResponse struct {
	Success bool          `json:"success"`
	Data    []domain.Item `json:"data"`
}

type ItemResponse struct {
	Outcome
	Data *domain.Item `json:"data,omitempty"`
}

type HistoryResponse struct {
	Outcome
	Data  []domain.Transaction `json:"data"`
	Count int                  `json:"count"`
}

// operations adapts VendingService results to the wire shapes above. It is
// shared by the HTTP and gRPC handlers.
type operations struct {
	svc     *service.VendingService
	archive port.TransactionArchive
}

func succeeded(message string, state domain.MachineState) Outcome {
	return Outcome{Success: true, Message: message, State: &state}
}

// failed reports the state carried by a MachineError, which was captured
// inside the rejecting call.
func (o operations) failed(err error) Outcome {
	out := Outcome{Success: false, Message: err.Error(), Error: domain.KindName(err)}
	var merr *domain.MachineError
	if errors.As(err, &merr) {
		out.Message = merr.Message
		state := merr.State
		out.State = &state
		return out
	}
	state := o.svc.Status().State
	out.State = &state
	return out
}

func (o operations) insertCoin(amount domain.Money) InsertCoinResponse {
	res, err := o.svc.InsertCoin(amount)
	if err != nil {
		return InsertCoinResponse{Outcome: o.failed(err)}
	}
	return InsertCoinResponse{
		Outcome: succeeded(res.Message, res.Status.State),
		Balance: &res.Balance,
	}
}

// selectItem reports an out-of-stock selection as success=false with no
// error kind: the machine accepted the input and moved to OutOfStock.
func (o operations) selectItem(itemID string) SelectItemResponse {
	res, err := o.svc.SelectItem(itemID)
	if err != nil {
		return SelectItemResponse{Outcome: o.failed(err)}
	}
	out := SelectItemResponse{
		Outcome: succeeded(res.Message, res.Status.State),
		Cart:    res.Status.Cart,
	}
	out.Success = res.Available
	return out
}

func (o operations) purchase() PurchaseResponse {
	res, err := o.svc.Purchase()
	if err != nil {
		return PurchaseResponse{Outcome: o.failed(err)}
	}
	return PurchaseResponse{
		Outcome:     succeeded(res.Message, res.Status.State),
		Change:      &res.Change,
		Transaction: &res.Transaction,
	}
}

func (o operations) refund() RefundResponse {
	res, err := o.svc.Refund()
	if err != nil {
		return RefundResponse{Outcome: o.failed(err)}
	}
	return RefundResponse{
		Outcome:      succeeded(res.Message, res.Status.State),
		RefundAmount: &res.Amount,
	}
}

func (o operations) reset() ResetResponse {
	res := o.svc.Reset()
	return ResetResponse{Outcome: succeeded(res.Message, res.Status.State)}
}

func (o operations) status() StatusResponse {
	return StatusResponse{Success: true, Data: o.svc.Status()}
}

func (o operations) listItems() ItemsResponse {
	return ItemsResponse{Success: true, Data: o.svc.ListItems()}
}

func (o operations) getItem(itemID string) ItemResponse {
	item, err := o.svc.GetItem(itemID)
	if err != nil {
		return ItemResponse{Outcome: o.failed(err)}
	}
	return ItemResponse{Outcome: Outcome{Success: true}, Data: &item}
}

func (o operations) restock(itemID string, quantity int) ItemResponse {
	item, err := o.svc.Restock(itemID, quantity)
	if err != nil {
		return ItemResponse{Outcome: o.failed(err)}
	}
	return ItemResponse{Outcome: Outcome{Success: true, Message: item.Name + " restocked"}, Data: &item}
}

func (o operations) setPrice(itemID string, price domain.Money) ItemResponse {
	item, err := o.svc.SetPrice(itemID, price)
	if err != nil {
		return ItemResponse{Outcome: o.failed(err)}
	}
	return ItemResponse{Outcome: Outcome{Success: true, Message: item.Name + " repriced"}, Data: &item}
}

// history serves the in-memory log, oldest first, or with source "archive"
// the configured archive, newest first. A positive limit keeps the most
// recent entries.
func (o operations) history(ctx context.Context, req HistoryRequest) (HistoryResponse, error) {
	var txs []domain.Transaction
	if req.Source == "archive" {
		if o.archive == nil {
			return HistoryResponse{}, errArchiveDisabled
		}
		limit := req.Limit
		if limit <= 0 {
			limit = 100
		}
		var err error
		if txs, err = o.archive.ListTransactions(ctx, limit); err != nil {
			return HistoryResponse{}, err
		}
	} else {
		txs = o.svc.History()
		if req.Limit > 0 && len(txs) > req.Limit {
			txs = txs[len(txs)-req.Limit:]
		}
	}

	if txs == nil {
		txs = []domain.Transaction{}
	}
	return HistoryResponse{Outcome: Outcome{Success: true}, Data: txs, Count: len(txs)}, nil
}
