package port

import (
	"context"

	"github.com/rl1809/vending-machine/internal/core/domain"
)

type TransactionArchive interface {
	// SaveTransaction persists a settled transaction with its item snapshot
	SaveTransaction(ctx context.Context, tx domain.Transaction) error

	// ListTransactions returns up to limit archived transactions, newest first
	ListTransactions(ctx context.Context, limit int) ([]domain.Transaction, error)
}
