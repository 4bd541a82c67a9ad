package models

import (
	"strings"
	"time"
)

type DiscountType string

const (
	DiscountFlat    DiscountType = "FLAT"
	DiscountPercent DiscountType = "PERCENT"
)

// Coupon is a catalog entry keyed by its code. Writes replace the whole
// record; usage history stays keyed by the unchanged code.
type Coupon struct {
	Code              string           `json:"code"`
	Description       string           `json:"description,omitempty"`
	DiscountType      DiscountType     `json:"discount_type"`
	DiscountValue     float64          `json:"discount_value"`
	MaxDiscount       *float64         `json:"max_discount,omitempty"`
	ValidFrom         time.Time        `json:"valid_from"`
	ValidTo           time.Time        `json:"valid_to"`
	UsageLimitPerUser *int             `json:"usage_limit_per_user,omitempty"`
	Rules             EligibilityRules `json:"rules"`
	CreatedAt         time.Time        `json:"created_at,omitempty"`
	UpdatedAt         time.Time        `json:"updated_at,omitempty"`
}

// EligibilityRules holds the optional predicates a coupon requires of the
// shopper and cart. An absent field imposes no restriction.
type EligibilityRules struct {
	AllowedTiers     []string `json:"allowed_tiers,omitempty"`
	MinLifetimeSpend *float64 `json:"min_lifetime_spend,omitempty"`
	MinOrdersPlaced  *int     `json:"min_orders_placed,omitempty"`
	FirstOrderOnly   bool     `json:"first_order_only,omitempty"`
	AllowedCountries []string `json:"allowed_countries,omitempty"`

	MinCartValue         *float64 `json:"min_cart_value,omitempty"`
	ApplicableCategories []string `json:"applicable_categories,omitempty"`
	ExcludedCategories   []string `json:"excluded_categories,omitempty"`
	MinItemCount         *int     `json:"min_item_count,omitempty"`
}

// Normalize lowercases the category sets once, so later comparisons are
// case-insensitive without per-check folding. Called on upsert before the
// coupon reaches the catalog.
func (c *Coupon) Normalize() {
	c.Rules.ApplicableCategories = lowerAll(c.Rules.ApplicableCategories)
	c.Rules.ExcludedCategories = lowerAll(c.Rules.ExcludedCategories)
}

// WindowValid reports whether the validity window is well-formed. Entries
// that fail this slipped past upsert validation and are excluded from
// selection rather than ranked.
func (c *Coupon) WindowValid() bool {
	return !c.ValidFrom.After(c.ValidTo)
}

// ActiveAt reports whether now falls inside the validity window, inclusive
// at both ends.
func (c *Coupon) ActiveAt(now time.Time) bool {
	return !now.Before(c.ValidFrom) && !now.After(c.ValidTo)
}

func lowerAll(ss []string) []string {
	if len(ss) == 0 {
		return ss
	}
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(s)
	}
	return out
}
