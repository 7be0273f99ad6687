package port

import "context"

type CacheRepository interface {
	// GetStock reads the mirrored stock level, ok is false when the item has never been mirrored
	GetStock(ctx context.Context, itemID string) (quantity int, ok bool, err error)

	// SetStock overwrites the mirrored stock level of an item
	SetStock(ctx context.Context, itemID string, quantity int) error

	// DecrementStock atomically decreases mirrored stock, returns false if insufficient
	DecrementStock(ctx context.Context, itemID string, quantity int) (bool, error)

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)
}
