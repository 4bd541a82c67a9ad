package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartloop/coupon-engine/internal/models"
	"github.com/cartloop/coupon-engine/internal/repository"
)

var (
	now      = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lastYear = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	midYear  = time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	yearEnd  = time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
)

func newTestEngine(t *testing.T) (*Engine, *repository.MemoryCatalog, *repository.MemoryUsage) {
	t.Helper()
	catalog := repository.NewMemoryCatalog()
	usage := repository.NewMemoryUsage()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(catalog, usage, logger), catalog, usage
}

func seed(t *testing.T, catalog *repository.MemoryCatalog, coupons ...models.Coupon) {
	t.Helper()
	for _, c := range coupons {
		c.Normalize()
		require.NoError(t, catalog.Upsert(context.Background(), c))
	}
}

func flatCoupon(code string, amount float64) models.Coupon {
	return models.Coupon{
		Code:          code,
		DiscountType:  models.DiscountFlat,
		DiscountValue: amount,
		ValidFrom:     lastYear,
		ValidTo:       yearEnd,
	}
}

func testUser() models.UserContext {
	return models.UserContext{UserID: "u1", Tier: "gold", Country: "DE", LifetimeSpend: 100, OrdersPlaced: 2}
}

func TestSelectBest_HighestDiscountWins(t *testing.T) {
	eng, catalog, _ := newTestEngine(t)
	seed(t, catalog, flatCoupon("FLAT50", 50), flatCoupon("FLAT100", 100))

	coupon, discount, err := eng.SelectBest(context.Background(), testUser(), cartWorth(1000), now)
	require.NoError(t, err)
	require.NotNil(t, coupon)
	assert.Equal(t, "FLAT100", coupon.Code)
	assert.Equal(t, 100.0, discount)
}

func TestSelectBest_TieBreakEarlierExpiry(t *testing.T) {
	eng, catalog, _ := newTestEngine(t)
	late := flatCoupon("LATE", 100)
	late.ValidTo = yearEnd
	early := flatCoupon("EARLY", 100)
	early.ValidTo = midYear
	seed(t, catalog, late, early)

	coupon, discount, err := eng.SelectBest(context.Background(), testUser(), cartWorth(1000), now)
	require.NoError(t, err)
	require.NotNil(t, coupon)
	assert.Equal(t, "EARLY", coupon.Code)
	assert.Equal(t, 100.0, discount)
}

func TestSelectBest_TieBreakCodeOrder(t *testing.T) {
	eng, catalog, _ := newTestEngine(t)
	seed(t, catalog, flatCoupon("Z_COUPON", 100), flatCoupon("A_COUPON", 100))

	coupon, _, err := eng.SelectBest(context.Background(), testUser(), cartWorth(1000), now)
	require.NoError(t, err)
	require.NotNil(t, coupon)
	assert.Equal(t, "A_COUPON", coupon.Code)
}

func TestSelectBest_ExpiredNeverSelected(t *testing.T) {
	eng, catalog, _ := newTestEngine(t)
	expired := flatCoupon("EXPIRED", 500)
	expired.ValidTo = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	seed(t, catalog, expired, flatCoupon("SMALL", 10))

	coupon, discount, err := eng.SelectBest(context.Background(), testUser(), cartWorth(1000), now)
	require.NoError(t, err)
	require.NotNil(t, coupon)
	assert.Equal(t, "SMALL", coupon.Code)
	assert.Equal(t, 10.0, discount)
}

func TestSelectBest_ValidityWindowInclusive(t *testing.T) {
	eng, catalog, _ := newTestEngine(t)
	edge := flatCoupon("EDGE", 25)
	edge.ValidFrom = now
	edge.ValidTo = now
	seed(t, catalog, edge)

	coupon, _, err := eng.SelectBest(context.Background(), testUser(), cartWorth(100), now)
	require.NoError(t, err)
	require.NotNil(t, coupon)
	assert.Equal(t, "EDGE", coupon.Code)
}

func TestSelectBest_UsageLimitExhausted(t *testing.T) {
	eng, catalog, usage := newTestEngine(t)
	once := flatCoupon("ONCE", 40)
	once.UsageLimitPerUser = iptr(1)
	seed(t, catalog, once)

	user := testUser()
	cart := cartWorth(200)

	coupon, discount, err := eng.SelectBest(context.Background(), user, cart, now)
	require.NoError(t, err)
	require.NotNil(t, coupon)
	assert.Equal(t, "ONCE", coupon.Code)
	assert.Equal(t, 40.0, discount)

	n, err := usage.Count(context.Background(), user.UserID, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// same user immediately again: the only candidate is now capped out
	coupon, discount, err = eng.SelectBest(context.Background(), user, cart, now)
	require.NoError(t, err)
	assert.Nil(t, coupon)
	assert.Equal(t, 0.0, discount)

	// a different user is unaffected
	other := models.UserContext{UserID: "u2", Tier: "gold", Country: "DE"}
	coupon, _, err = eng.SelectBest(context.Background(), other, cart, now)
	require.NoError(t, err)
	require.NotNil(t, coupon)
	assert.Equal(t, "ONCE", coupon.Code)
}

func TestSelectBest_NoMatchMutatesNothing(t *testing.T) {
	eng, catalog, usage := newTestEngine(t)
	picky := flatCoupon("PICKY", 30)
	picky.Rules.AllowedTiers = []string{"platinum"}
	seed(t, catalog, picky)

	user := testUser()
	coupon, discount, err := eng.SelectBest(context.Background(), user, cartWorth(100), now)
	require.NoError(t, err)
	assert.Nil(t, coupon)
	assert.Equal(t, 0.0, discount)

	counts, err := usage.CountsFor(context.Background(), user.UserID)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestSelectBest_CategoryRulesCaseInsensitive(t *testing.T) {
	eng, catalog, _ := newTestEngine(t)
	electronics := flatCoupon("TECH", 20)
	electronics.Rules.ApplicableCategories = []string{"ELECTRONICS"}
	seed(t, catalog, electronics) // seed normalizes, as upsert does

	cart := models.Cart{Items: []models.CartItem{
		{ProductID: "tv", Category: "electronics", UnitPrice: 400, Qty: 1},
	}}
	coupon, _, err := eng.SelectBest(context.Background(), testUser(), cart, now)
	require.NoError(t, err)
	require.NotNil(t, coupon)
	assert.Equal(t, "TECH", coupon.Code)
}

func TestSelectBest_MalformedEntrySkipped(t *testing.T) {
	eng, catalog, _ := newTestEngine(t)
	broken := flatCoupon("BROKEN", 999)
	broken.ValidFrom = yearEnd
	broken.ValidTo = lastYear // inverted window
	seed(t, catalog, broken, flatCoupon("OK", 5))

	coupon, discount, err := eng.SelectBest(context.Background(), testUser(), cartWorth(100), now)
	require.NoError(t, err)
	require.NotNil(t, coupon)
	assert.Equal(t, "OK", coupon.Code)
	assert.Equal(t, 5.0, discount)
}

func TestRank_OrderedWithoutCommit(t *testing.T) {
	eng, catalog, usage := newTestEngine(t)
	seed(t, catalog, flatCoupon("FLAT50", 50), flatCoupon("FLAT100", 100), flatCoupon("FLAT10", 10))

	user := testUser()
	ranked, err := eng.Rank(context.Background(), user, cartWorth(1000), now)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, "FLAT100", ranked[0].Coupon.Code)
	assert.Equal(t, "FLAT50", ranked[1].Coupon.Code)
	assert.Equal(t, "FLAT10", ranked[2].Coupon.Code)

	counts, err := usage.CountsFor(context.Background(), user.UserID)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestEvaluate(t *testing.T) {
	eng, catalog, usage := newTestEngine(t)
	once := flatCoupon("ONCE", 40)
	once.UsageLimitPerUser = iptr(1)
	expired := flatCoupon("OLD", 10)
	expired.ValidTo = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seed(t, catalog, once, expired)

	user := testUser()
	cart := cartWorth(200)
	ctx := context.Background()

	usable, discount, reason, err := eng.Evaluate(ctx, "ONCE", user, cart, now)
	require.NoError(t, err)
	assert.True(t, usable)
	assert.Equal(t, 40.0, discount)
	assert.Equal(t, ReasonApplicable, reason)

	// dry-run must not consume usage
	n, err := usage.Count(ctx, user.UserID, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	usable, _, reason, err = eng.Evaluate(ctx, "OLD", user, cart, now)
	require.NoError(t, err)
	assert.False(t, usable)
	assert.Equal(t, ReasonNotInWindow, reason)

	usable, _, reason, err = eng.Evaluate(ctx, "MISSING", user, cart, now)
	require.NoError(t, err)
	assert.False(t, usable)
	assert.Equal(t, ReasonNotFound, reason)

	require.NoError(t, usage.Increment(ctx, user.UserID, "ONCE"))
	usable, _, reason, err = eng.Evaluate(ctx, "ONCE", user, cart, now)
	require.NoError(t, err)
	assert.False(t, usable)
	assert.Equal(t, ReasonUsageLimit, reason)
}

func TestSelectBest_EmptyCatalog(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	coupon, discount, err := eng.SelectBest(context.Background(), testUser(), cartWorth(100), now)
	require.NoError(t, err)
	assert.Nil(t, coupon)
	assert.Equal(t, 0.0, discount)
}
