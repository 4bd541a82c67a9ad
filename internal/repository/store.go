package repository

import (
	"context"
	"errors"

	"github.com/cartloop/coupon-engine/internal/models"
)

var ErrNotFound = errors.New("coupon not found")

// CatalogStore holds the coupon catalog keyed by code. Upsert replaces the
// whole record; there is no field-level merge.
type CatalogStore interface {
	Upsert(ctx context.Context, c models.Coupon) error
	Get(ctx context.Context, code string) (*models.Coupon, error)
	All(ctx context.Context) ([]models.Coupon, error)
}

// UsageStore maps a (userID, coupon code) pair to a redemption count.
// Counts start at zero, are incremented only by the selection engine's
// commit step, and never decrease.
type UsageStore interface {
	Count(ctx context.Context, userID, code string) (int, error)
	Increment(ctx context.Context, userID, code string) error
	// CountsFor returns all counts for one user, for read-only diagnostics.
	CountsFor(ctx context.Context, userID string) (map[string]int, error)
}
