package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/vending-machine/internal/core/domain"
	"github.com/rl1809/vending-machine/internal/port"
)

const archiveTimeout = 5 * time.Second

// Archiver copies settled transactions out of the machine: into the
// transaction archive and onto the stock mirror. Either may be nil. Failures
// are logged and never reach the machine, whose in-memory log stays
// authoritative.
type Archiver struct {
	archive  port.TransactionArchive
	mirror   port.CacheRepository
	logger   *zap.Logger
	lastSync func() time.Time
}

type ArchiverOption func(*Archiver)

// WithSyncWatermark skips the mirror update for transactions settled at or
// before lastSync(), whose stock a full resync has already written.
func WithSyncWatermark(lastSync func() time.Time) ArchiverOption {
	return func(a *Archiver) { a.lastSync = lastSync }
}

func NewArchiver(archive port.TransactionArchive, mirror port.CacheRepository, logger *zap.Logger, opts ...ArchiverOption) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Archiver{archive: archive, mirror: mirror, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run drains queue until it is closed.
func (a *Archiver) Run(workerID int, queue <-chan domain.Transaction) {
	for tx := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		a.Handle(ctx, workerID, tx)
		cancel()
	}
}

func (a *Archiver) Handle(ctx context.Context, workerID int, tx domain.Transaction) {
	log := a.logger.With(zap.Int("worker", workerID), zap.String("transaction_id", tx.ID))

	if a.archive != nil {
		if err := a.archive.SaveTransaction(ctx, tx); err != nil {
			log.Error("failed to archive transaction", zap.Error(err))
		} else {
			log.Debug("archived transaction")
		}
	}

	if a.mirror == nil {
		return
	}
	if a.lastSync != nil && !tx.Timestamp.After(a.lastSync()) {
		log.Debug("stock mirror already resynced past transaction")
		return
	}
	for itemID, qty := range quantities(tx) {
		ok, err := a.mirror.DecrementStock(ctx, itemID, qty)
		if err != nil {
			log.Warn("failed to update stock mirror", zap.String("item_id", itemID), zap.Error(err))
			continue
		}
		if !ok {
			// the next scheduled resync overwrites the mirror
			log.Warn("stock mirror behind machine", zap.String("item_id", itemID), zap.Int("quantity", qty))
		}
	}
}

func quantities(tx domain.Transaction) map[string]int {
	out := make(map[string]int, len(tx.Items))
	for _, it := range tx.Items {
		out[it.ID]++
	}
	return out
}
