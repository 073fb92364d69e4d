// Package cartcache holds read-through copies of customer carts. Postgres stays
// the source of truth; entries are dropped after every committed cart mutation.
package cartcache

import (
	"context"
	"errors"

	"github.com/safar/go-order-engine/internal/models"
)

type Cache interface {
	Get(ctx context.Context, customerID int64) (*models.Cart, error)
	Set(ctx context.Context, customerID int64, cart *models.Cart) error
	Delete(ctx context.Context, customerID int64) error
}

var ErrCacheMiss = errors.New("cache miss")

// Noop is used when no Redis address is configured; every lookup misses.
type Noop struct{}

func (Noop) Get(context.Context, int64) (*models.Cart, error) { return nil, ErrCacheMiss }

func (Noop) Set(context.Context, int64, *models.Cart) error { return nil }

func (Noop) Delete(context.Context, int64) error { return nil }
