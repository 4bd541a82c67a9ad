package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cartloop/coupon-engine/internal/models"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func cartWorth(value float64) models.Cart {
	return models.Cart{Items: []models.CartItem{
		{ProductID: "p1", Category: "misc", UnitPrice: value, Qty: 1},
	}}
}

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name   string
		coupon models.Coupon
		cart   models.Cart
		want   float64
	}{
		{
			name:   "flat within cart value",
			coupon: models.Coupon{DiscountType: models.DiscountFlat, DiscountValue: 50},
			cart:   cartWorth(1000),
			want:   50,
		},
		{
			name:   "flat larger than cart clamps to cart value",
			coupon: models.Coupon{DiscountType: models.DiscountFlat, DiscountValue: 500},
			cart:   cartWorth(120),
			want:   120,
		},
		{
			name:   "percent of cart value",
			coupon: models.Coupon{DiscountType: models.DiscountPercent, DiscountValue: 10},
			cart:   cartWorth(1000),
			want:   100,
		},
		{
			name:   "percent capped by max discount",
			coupon: models.Coupon{DiscountType: models.DiscountPercent, DiscountValue: 50, MaxDiscount: fptr(75)},
			cart:   cartWorth(1000),
			want:   75,
		},
		{
			name:   "percent cap above raw amount is inert",
			coupon: models.Coupon{DiscountType: models.DiscountPercent, DiscountValue: 10, MaxDiscount: fptr(500)},
			cart:   cartWorth(1000),
			want:   100,
		},
		{
			name:   "hundred percent discounts whole cart",
			coupon: models.Coupon{DiscountType: models.DiscountPercent, DiscountValue: 100},
			cart:   cartWorth(250),
			want:   250,
		},
		{
			name:   "empty cart yields zero",
			coupon: models.Coupon{DiscountType: models.DiscountFlat, DiscountValue: 50},
			cart:   models.Cart{},
			want:   0,
		},
		{
			name: "multi-item cart value",
			coupon: models.Coupon{
				DiscountType: models.DiscountPercent, DiscountValue: 20,
			},
			cart: models.Cart{Items: []models.CartItem{
				{ProductID: "a", Category: "x", UnitPrice: 100, Qty: 2},
				{ProductID: "b", Category: "y", UnitPrice: 50, Qty: 4},
			}},
			want: 80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDiscount(tt.coupon, tt.cart)
			assert.InDelta(t, tt.want, got, 1e-9)

			// result is always within [0, cartValue]
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, tt.cart.Value())
		})
	}
}
