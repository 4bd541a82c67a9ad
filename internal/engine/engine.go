package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cartloop/coupon-engine/internal/concurrency"
	"github.com/cartloop/coupon-engine/internal/metrics"
	"github.com/cartloop/coupon-engine/internal/models"
	"github.com/cartloop/coupon-engine/internal/repository"
)

// Reasons reported by Evaluate for failures ahead of the eligibility rules.
const (
	ReasonNotFound       = "coupon_not_found"
	ReasonNotInWindow    = "not_in_valid_window"
	ReasonMalformedEntry = "malformed_catalog_entry"
	ReasonUsageLimit     = "usage_limit_reached"
	ReasonApplicable     = "coupon_applicable"
)

// defaultWorkers bounds the fan-out for per-candidate rule evaluation.
const defaultWorkers = 4

// Candidate pairs a surviving coupon with its computed discount.
type Candidate struct {
	Coupon   models.Coupon `json:"coupon"`
	Discount float64       `json:"discount"`
}

// Engine picks the single best coupon for a shopper and cart: filter the
// catalog by validity window, per-user usage cap and eligibility rules,
// compute each survivor's discount, rank, and commit one usage increment
// for the winner. The mutex makes each selection's usage check and commit
// atomic with respect to other selections in this process.
type Engine struct {
	catalog repository.CatalogStore
	usage   repository.UsageStore
	logger  *slog.Logger

	mu sync.Mutex
}

func New(catalog repository.CatalogStore, usage repository.UsageStore, logger *slog.Logger) *Engine {
	return &Engine{
		catalog: catalog,
		usage:   usage,
		logger:  logger,
	}
}

// SelectBest returns the winning coupon and its discount, or (nil, 0) when
// nothing qualifies. A win records one redemption for (user, code); a miss
// mutates nothing. Business non-matches are never errors; the error return
// covers store failures only.
func (e *Engine) SelectBest(ctx context.Context, user models.UserContext, cart models.Cart, now time.Time) (*models.Coupon, float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ranked, err := e.rank(ctx, user, cart, now)
	if err != nil {
		return nil, 0, err
	}
	if len(ranked) == 0 {
		metrics.SelectionsTotal.WithLabelValues("no_match").Inc()
		return nil, 0, nil
	}

	winner := ranked[0]
	if err := e.usage.Increment(ctx, user.UserID, winner.Coupon.Code); err != nil {
		return nil, 0, err
	}

	metrics.SelectionsTotal.WithLabelValues("matched").Inc()
	metrics.DiscountGranted.Observe(winner.Discount)
	e.logger.Info("coupon selected",
		"user_id", user.UserID,
		"code", winner.Coupon.Code,
		"discount", winner.Discount,
	)
	return &winner.Coupon, winner.Discount, nil
}

// Rank returns every currently-usable coupon for the shopper and cart in
// winner-first order, without committing any usage.
func (e *Engine) Rank(ctx context.Context, user models.UserContext, cart models.Cart, now time.Time) ([]Candidate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rank(ctx, user, cart, now)
}

// Evaluate dry-runs a single named coupon through the same checks the
// selection pipeline applies, returning whether it would be usable, the
// discount it would grant, and the first rejection reason otherwise. Never
// commits usage.
func (e *Engine) Evaluate(ctx context.Context, code string, user models.UserContext, cart models.Cart, now time.Time) (bool, float64, string, error) {
	c, err := e.catalog.Get(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, 0, ReasonNotFound, nil
		}
		return false, 0, "", err
	}

	if !c.WindowValid() {
		return false, 0, ReasonMalformedEntry, nil
	}
	if !c.ActiveAt(now) {
		return false, 0, ReasonNotInWindow, nil
	}
	if c.UsageLimitPerUser != nil {
		n, err := e.usage.Count(ctx, user.UserID, code)
		if err != nil {
			return false, 0, "", err
		}
		if n >= *c.UsageLimitPerUser {
			return false, 0, ReasonUsageLimit, nil
		}
	}
	if ok, reason := CheckEligibility(*c, user, cart); !ok {
		return false, 0, reason, nil
	}
	return true, ComputeDiscount(*c, cart), ReasonApplicable, nil
}

// rank runs the filter, map and sort stages of the pipeline. Callers hold
// e.mu when the result feeds a commit.
func (e *Engine) rank(ctx context.Context, user models.UserContext, cart models.Cart, now time.Time) ([]Candidate, error) {
	coupons, err := e.catalog.All(ctx)
	if err != nil {
		return nil, err
	}

	// Validity filter. Entries with an inverted window or non-positive
	// magnitude slipped past upsert validation; they are skipped, not fatal.
	active := coupons[:0]
	for _, c := range coupons {
		if !c.WindowValid() || c.DiscountValue <= 0 {
			e.logger.Warn("skipping malformed catalog entry", "code", c.Code)
			continue
		}
		if c.ActiveAt(now) {
			active = append(active, c)
		}
	}

	// Usage filter. Coupons with no limit always pass.
	usable := active[:0]
	for _, c := range active {
		if c.UsageLimitPerUser != nil {
			n, err := e.usage.Count(ctx, user.UserID, c.Code)
			if err != nil {
				return nil, err
			}
			if n >= *c.UsageLimitPerUser {
				continue
			}
		}
		usable = append(usable, c)
	}

	// Eligibility and discount are pure per coupon; fan out and collect
	// into index-disjoint slots.
	slots := make([]*Candidate, len(usable))
	concurrency.ForEach(ctx, defaultWorkers, len(usable), func(_ context.Context, i int) {
		c := usable[i]
		if ok, _ := CheckEligibility(c, user, cart); !ok {
			return
		}
		slots[i] = &Candidate{Coupon: c, Discount: ComputeDiscount(c, cart)}
	})

	ranked := make([]Candidate, 0, len(usable))
	for _, s := range slots {
		if s != nil {
			ranked = append(ranked, *s)
		}
	}

	// Total order: discount descending, then earlier-expiring window, then
	// code ascending.
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Discount != b.Discount {
			return a.Discount > b.Discount
		}
		if !a.Coupon.ValidTo.Equal(b.Coupon.ValidTo) {
			return a.Coupon.ValidTo.Before(b.Coupon.ValidTo)
		}
		return a.Coupon.Code < b.Coupon.Code
	})
	return ranked, nil
}
