package engine

import "github.com/cartloop/coupon-engine/internal/models"

// ComputeDiscount returns the monetary discount a coupon grants against a
// cart. FLAT coupons discount their magnitude, PERCENT coupons a share of
// the cart value capped by MaxDiscount when one is set. The result never
// exceeds the cart value, so a FLAT coupon larger than the cart discounts
// exactly the cart value. Pure; empty carts yield 0.
func ComputeDiscount(c models.Coupon, cart models.Cart) float64 {
	cartValue := cart.Value()

	var raw float64
	switch c.DiscountType {
	case models.DiscountPercent:
		raw = cartValue * c.DiscountValue / 100.0
		if c.MaxDiscount != nil && raw > *c.MaxDiscount {
			raw = *c.MaxDiscount
		}
	default: // FLAT is not scaled by cart value
		raw = c.DiscountValue
	}

	if raw > cartValue {
		raw = cartValue
	}
	if raw < 0 {
		raw = 0
	}
	return raw
}
