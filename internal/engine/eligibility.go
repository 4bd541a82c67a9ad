package engine

import (
	"strings"

	"github.com/cartloop/coupon-engine/internal/models"
)

// Rejection reasons, reported by CheckEligibility for the first failing
// check. Wire-stable strings; used in evaluate responses and debug logs.
const (
	ReasonTierNotAllowed      = "tier_not_allowed"
	ReasonLifetimeSpendTooLow = "min_lifetime_spend_not_met"
	ReasonTooFewOrders        = "min_orders_not_met"
	ReasonNotFirstOrder       = "first_order_only"
	ReasonCountryNotAllowed   = "country_not_allowed"
	ReasonCartValueTooLow     = "min_cart_value_not_met"
	ReasonNoApplicableItems   = "no_applicable_category_in_cart"
	ReasonExcludedCategory    = "excluded_category_in_cart"
	ReasonTooFewItems         = "min_item_count_not_met"
)

// CheckEligibility evaluates a coupon's rule set against the shopper and
// cart. Every rule field is optional and absent fields always pass; present
// fields are conjunctive. Checks run in a fixed order, user-side then
// cart-side, and evaluation stops at the first failure so the reason names
// the earliest rejecting rule. Pure.
func CheckEligibility(c models.Coupon, user models.UserContext, cart models.Cart) (bool, string) {
	if ok, reason := checkUserRules(c.Rules, user); !ok {
		return false, reason
	}
	return checkCartRules(c.Rules, cart)
}

func checkUserRules(r models.EligibilityRules, user models.UserContext) (bool, string) {
	if len(r.AllowedTiers) > 0 && !contains(r.AllowedTiers, user.Tier) {
		return false, ReasonTierNotAllowed
	}
	if r.MinLifetimeSpend != nil && user.LifetimeSpend < *r.MinLifetimeSpend {
		return false, ReasonLifetimeSpendTooLow
	}
	if r.MinOrdersPlaced != nil && user.OrdersPlaced < *r.MinOrdersPlaced {
		return false, ReasonTooFewOrders
	}
	if r.FirstOrderOnly && user.OrdersPlaced > 0 {
		return false, ReasonNotFirstOrder
	}
	if len(r.AllowedCountries) > 0 && !contains(r.AllowedCountries, user.Country) {
		return false, ReasonCountryNotAllowed
	}
	return true, ""
}

func checkCartRules(r models.EligibilityRules, cart models.Cart) (bool, string) {
	if r.MinCartValue != nil && cart.Value() < *r.MinCartValue {
		return false, ReasonCartValueTooLow
	}
	if len(r.ApplicableCategories) > 0 && !anyCategoryIn(cart, r.ApplicableCategories) {
		return false, ReasonNoApplicableItems
	}
	if len(r.ExcludedCategories) > 0 && anyCategoryIn(cart, r.ExcludedCategories) {
		return false, ReasonExcludedCategory
	}
	if r.MinItemCount != nil && cart.ItemCount() < *r.MinItemCount {
		return false, ReasonTooFewItems
	}
	return true, ""
}

// anyCategoryIn reports whether any cart item's category, lowercased,
// appears in set. Rule sets are lowercased once at upsert, so the set side
// needs no folding here.
func anyCategoryIn(cart models.Cart, set []string) bool {
	for _, it := range cart.Items {
		if contains(set, strings.ToLower(it.Category)) {
			return true
		}
	}
	return false
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
