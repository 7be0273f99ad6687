package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rl1809/vending-machine/internal/core/domain"
	"github.com/rl1809/vending-machine/internal/port"
)

const syncTimeout = 30 * time.Second

// ItemLister is the read side of the machine the sync job needs.
type ItemLister interface {
	ListItems() []domain.Item
}

// Scheduler periodically republishes the machine's stock levels to the
// mirror, overwriting any drift left by dropped settlements.
type Scheduler struct {
	cron   *cron.Cron
	items  ItemLister
	mirror port.CacheRepository
	logger *zap.Logger

	lastSync atomic.Pointer[time.Time]
}

// New registers the stock sync job on schedule, a standard five-field cron
// expression or a descriptor such as "@every 1m".
func New(schedule string, items ItemLister, mirror port.CacheRepository, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		cron:   cron.New(),
		items:  items,
		mirror: mirror,
		logger: logger,
	}

	if _, err := s.cron.AddFunc(schedule, s.runSync); err != nil {
		return nil, fmt.Errorf("schedule stock sync %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs one sync immediately, then hands over to the cron loop.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler")
	s.runSync()
	s.cron.Start()
}

// Stop waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("stopping scheduler")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) runSync() {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	synced, err := s.SyncStock(ctx)
	if err != nil {
		s.logger.Error("stock sync incomplete", zap.Int("synced", synced), zap.Error(err))
		return
	}
	s.logger.Debug("stock mirror synced", zap.Int("items", synced))
}

// LastSync returns the time taken just before the stock snapshot of the last
// fully successful sync, or the zero time if none has completed. Every
// purchase settled at or before it is already reflected in the mirror.
func (s *Scheduler) LastSync() time.Time {
	if mark := s.lastSync.Load(); mark != nil {
		return *mark
	}
	return time.Time{}
}

// SyncStock writes every item's stock to the mirror and returns how many
// items were written.
func (s *Scheduler) SyncStock(ctx context.Context) (int, error) {
	var errs []error
	synced := 0
	mark := time.Now()

	for _, item := range s.items.ListItems() {
		mirrored, ok, err := s.mirror.GetStock(ctx, item.ID)
		if err == nil && ok && mirrored != item.Stock {
			s.logger.Warn("stock mirror drift",
				zap.String("item_id", item.ID),
				zap.Int("mirror", mirrored),
				zap.Int("machine", item.Stock))
		}

		if err := s.mirror.SetStock(ctx, item.ID, item.Stock); err != nil {
			errs = append(errs, fmt.Errorf("set stock %s: %w", item.ID, err))
			continue
		}
		synced++
	}
	if len(errs) > 0 {
		return synced, errors.Join(errs...)
	}
	s.lastSync.Store(&mark)
	return synced, nil
}
