package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cartloop/coupon-engine/internal/api/handlers"
	"github.com/cartloop/coupon-engine/internal/api/middleware"
	"github.com/cartloop/coupon-engine/internal/repository"
)

// NewRouter builds the HTTP router for the coupon engine.
func NewRouter(catalog repository.CatalogStore, usage repository.UsageStore, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))

	couponHandler := handlers.NewCouponHandler(catalog, usage, logger)

	// Shopper-facing selection endpoints
	r.Route("/coupons", func(r chi.Router) {
		r.Post("/best", couponHandler.BestCoupon)
		r.Post("/applicable", couponHandler.ApplicableCoupons)
		r.Post("/evaluate", couponHandler.EvaluateCoupon)
	})

	// Admin catalog endpoints
	r.Route("/admin/coupons", func(r chi.Router) {
		r.Post("/", couponHandler.UpsertCoupon)
		r.Get("/", couponHandler.ListCoupons)
		r.Get("/{code}", couponHandler.GetCoupon)
	})

	// Operator diagnostics
	r.Get("/usage/{userID}", couponHandler.UserUsage)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
