package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "coupon_engine"

var (
	SelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Best-coupon selections by outcome",
		},
		[]string{"outcome"},
	)

	DiscountGranted = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discount_granted",
			Help:      "Discount amounts committed by winning selections",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	CouponUpsertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_upserts_total",
			Help:      "Catalog writes accepted through the admin API",
		},
	)
)
