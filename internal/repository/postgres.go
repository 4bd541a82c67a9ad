package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/cartloop/coupon-engine/internal/models"
)

// PostgresCatalog persists the coupon catalog in a single coupons table.
// Rule sets are stored as array and nullable columns; upsert is a full-row
// replace via ON CONFLICT, so no prior field survives an overwrite.
type PostgresCatalog struct {
	db *sql.DB
}

func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

func (r *PostgresCatalog) Upsert(ctx context.Context, c models.Coupon) error {
	query := `
		INSERT INTO coupons
		(code, description, discount_type, discount_value, max_discount,
		 valid_from, valid_to, usage_limit_per_user,
		 allowed_tiers, min_lifetime_spend, min_orders_placed, first_order_only, allowed_countries,
		 min_cart_value, applicable_categories, excluded_categories, min_item_count,
		 created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,NOW(),NOW())
		ON CONFLICT (code) DO UPDATE SET
		 description = EXCLUDED.description,
		 discount_type = EXCLUDED.discount_type,
		 discount_value = EXCLUDED.discount_value,
		 max_discount = EXCLUDED.max_discount,
		 valid_from = EXCLUDED.valid_from,
		 valid_to = EXCLUDED.valid_to,
		 usage_limit_per_user = EXCLUDED.usage_limit_per_user,
		 allowed_tiers = EXCLUDED.allowed_tiers,
		 min_lifetime_spend = EXCLUDED.min_lifetime_spend,
		 min_orders_placed = EXCLUDED.min_orders_placed,
		 first_order_only = EXCLUDED.first_order_only,
		 allowed_countries = EXCLUDED.allowed_countries,
		 min_cart_value = EXCLUDED.min_cart_value,
		 applicable_categories = EXCLUDED.applicable_categories,
		 excluded_categories = EXCLUDED.excluded_categories,
		 min_item_count = EXCLUDED.min_item_count,
		 updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		c.Code,
		c.Description,
		string(c.DiscountType),
		c.DiscountValue,
		nullFloat(c.MaxDiscount),
		c.ValidFrom,
		c.ValidTo,
		nullInt(c.UsageLimitPerUser),
		pq.Array(c.Rules.AllowedTiers),
		nullFloat(c.Rules.MinLifetimeSpend),
		nullInt(c.Rules.MinOrdersPlaced),
		c.Rules.FirstOrderOnly,
		pq.Array(c.Rules.AllowedCountries),
		nullFloat(c.Rules.MinCartValue),
		pq.Array(c.Rules.ApplicableCategories),
		pq.Array(c.Rules.ExcludedCategories),
		nullInt(c.Rules.MinItemCount),
	)
	if err != nil {
		return fmt.Errorf("upsert coupon %s: %w", c.Code, err)
	}
	return nil
}

const couponColumns = `
	code, description, discount_type, discount_value, max_discount,
	valid_from, valid_to, usage_limit_per_user,
	allowed_tiers, min_lifetime_spend, min_orders_placed, first_order_only, allowed_countries,
	min_cart_value, applicable_categories, excluded_categories, min_item_count,
	created_at, updated_at
`

func (r *PostgresCatalog) Get(ctx context.Context, code string) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`
	c, err := scanCoupon(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *PostgresCatalog) All(ctx context.Context) ([]models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCoupon(row rowScanner) (*models.Coupon, error) {
	var (
		c                models.Coupon
		discountType     string
		maxDiscount      sql.NullFloat64
		usageLimit       sql.NullInt64
		minLifetimeSpend sql.NullFloat64
		minOrders        sql.NullInt64
		minCartValue     sql.NullFloat64
		minItemCount     sql.NullInt64
		tiers            pq.StringArray
		countries        pq.StringArray
		applicable       pq.StringArray
		excluded         pq.StringArray
	)

	err := row.Scan(
		&c.Code,
		&c.Description,
		&discountType,
		&c.DiscountValue,
		&maxDiscount,
		&c.ValidFrom,
		&c.ValidTo,
		&usageLimit,
		&tiers,
		&minLifetimeSpend,
		&minOrders,
		&c.Rules.FirstOrderOnly,
		&countries,
		&minCartValue,
		&applicable,
		&excluded,
		&minItemCount,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.DiscountType = models.DiscountType(discountType)
	c.MaxDiscount = floatPtr(maxDiscount)
	c.UsageLimitPerUser = intPtr(usageLimit)
	c.Rules.AllowedTiers = tiers
	c.Rules.AllowedCountries = countries
	c.Rules.MinLifetimeSpend = floatPtr(minLifetimeSpend)
	c.Rules.MinOrdersPlaced = intPtr(minOrders)
	c.Rules.MinCartValue = floatPtr(minCartValue)
	c.Rules.ApplicableCategories = applicable
	c.Rules.ExcludedCategories = excluded
	c.Rules.MinItemCount = intPtr(minItemCount)
	return &c, nil
}

// PostgresUsage keeps redemption counts in coupon_usage with a composite
// primary key on (user_id, coupon_code).
type PostgresUsage struct {
	db *sql.DB
}

func NewPostgresUsage(db *sql.DB) *PostgresUsage {
	return &PostgresUsage{db: db}
}

func (r *PostgresUsage) Count(ctx context.Context, userID, code string) (int, error) {
	var n int
	query := `SELECT usage_count FROM coupon_usage WHERE user_id = $1 AND coupon_code = $2`
	err := r.db.QueryRowContext(ctx, query, userID, code).Scan(&n)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (r *PostgresUsage) Increment(ctx context.Context, userID, code string) error {
	query := `
		INSERT INTO coupon_usage (user_id, coupon_code, usage_count, last_used)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (user_id, coupon_code) DO UPDATE
		SET usage_count = coupon_usage.usage_count + 1,
		    last_used = $3
	`
	_, err := r.db.ExecContext(ctx, query, userID, code, time.Now().UTC())
	return err
}

func (r *PostgresUsage) CountsFor(ctx context.Context, userID string) (map[string]int, error) {
	query := `SELECT coupon_code, usage_count FROM coupon_usage WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, err
		}
		out[code] = n
	}
	return out, rows.Err()
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
