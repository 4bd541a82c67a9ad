package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cartloop/coupon-engine/internal/engine"
	"github.com/cartloop/coupon-engine/internal/metrics"
	"github.com/cartloop/coupon-engine/internal/models"
	"github.com/cartloop/coupon-engine/internal/repository"
)

// --- Request / Response DTOs ---

type CreateCouponRequest struct {
	Code              string                  `json:"code"`
	Description       string                  `json:"description,omitempty"`
	DiscountType      string                  `json:"discount_type"`
	DiscountValue     float64                 `json:"discount_value"`
	MaxDiscount       *float64                `json:"max_discount,omitempty"`
	ValidFrom         string                  `json:"valid_from"` // RFC3339
	ValidTo           string                  `json:"valid_to"`   // RFC3339
	UsageLimitPerUser *int                    `json:"usage_limit_per_user,omitempty"`
	Rules             models.EligibilityRules `json:"rules"`
}

type SelectionRequestBody struct {
	User      models.UserContext `json:"user"`
	Cart      models.Cart        `json:"cart"`
	Timestamp string             `json:"timestamp,omitempty"` // RFC3339, defaults to now
}

type EvaluateRequestBody struct {
	Code string `json:"code"`
	SelectionRequestBody
}

type BestCouponResponse struct {
	Coupon   *models.Coupon `json:"coupon"`
	Discount float64        `json:"discount"`
}

type ApplicableCoupon struct {
	Code     string  `json:"code"`
	Discount float64 `json:"discount"`
}

type ApplicableResponse struct {
	ApplicableCoupons []ApplicableCoupon `json:"applicable_coupons"`
}

type EvaluateResponse struct {
	Usable   bool    `json:"usable"`
	Discount float64 `json:"discount"`
	Reason   string  `json:"reason"`
}

type UsageResponse struct {
	UserID string         `json:"user_id"`
	Counts map[string]int `json:"counts"`
}

// --- Handler struct & constructor ---

type CouponHandler struct {
	catalog repository.CatalogStore
	usage   repository.UsageStore
	engine  *engine.Engine
	logger  *slog.Logger
}

func NewCouponHandler(catalog repository.CatalogStore, usage repository.UsageStore, logger *slog.Logger) *CouponHandler {
	return &CouponHandler{
		catalog: catalog,
		usage:   usage,
		engine:  engine.New(catalog, usage, logger),
		logger:  logger,
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// parseTimestamp returns the request's instant in UTC, now when absent.
func parseTimestamp(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// validateCreate enforces the catalog-write rules so no malformed coupon
// ever reaches the selection engine.
func validateCreate(req CreateCouponRequest) (models.Coupon, error) {
	var c models.Coupon

	if strings.TrimSpace(req.Code) == "" {
		return c, errors.New("code is required")
	}
	dt := models.DiscountType(req.DiscountType)
	if dt != models.DiscountFlat && dt != models.DiscountPercent {
		return c, fmt.Errorf("discount_type must be %s or %s", models.DiscountFlat, models.DiscountPercent)
	}
	if req.DiscountValue <= 0 {
		return c, errors.New("discount_value must be positive")
	}
	if req.MaxDiscount != nil && *req.MaxDiscount <= 0 {
		return c, errors.New("max_discount must be positive when present")
	}
	validFrom, err := time.Parse(time.RFC3339, req.ValidFrom)
	if err != nil {
		return c, errors.New("invalid valid_from; use RFC3339")
	}
	validTo, err := time.Parse(time.RFC3339, req.ValidTo)
	if err != nil {
		return c, errors.New("invalid valid_to; use RFC3339")
	}
	if validFrom.After(validTo) {
		return c, errors.New("valid_from must not be after valid_to")
	}
	if req.UsageLimitPerUser != nil && *req.UsageLimitPerUser < 0 {
		return c, errors.New("usage_limit_per_user must not be negative")
	}
	if err := validateRules(req.Rules); err != nil {
		return c, err
	}

	c = models.Coupon{
		Code:              req.Code,
		Description:       req.Description,
		DiscountType:      dt,
		DiscountValue:     req.DiscountValue,
		MaxDiscount:       req.MaxDiscount,
		ValidFrom:         validFrom.UTC(),
		ValidTo:           validTo.UTC(),
		UsageLimitPerUser: req.UsageLimitPerUser,
		Rules:             req.Rules,
	}
	c.Normalize()
	return c, nil
}

func validateRules(r models.EligibilityRules) error {
	if r.MinLifetimeSpend != nil && *r.MinLifetimeSpend < 0 {
		return errors.New("rules.min_lifetime_spend must not be negative")
	}
	if r.MinOrdersPlaced != nil && *r.MinOrdersPlaced < 0 {
		return errors.New("rules.min_orders_placed must not be negative")
	}
	if r.MinCartValue != nil && *r.MinCartValue < 0 {
		return errors.New("rules.min_cart_value must not be negative")
	}
	if r.MinItemCount != nil && *r.MinItemCount < 0 {
		return errors.New("rules.min_item_count must not be negative")
	}
	return nil
}

// validateSelection shape-checks the user context and cart before they
// reach the engine.
func validateSelection(req SelectionRequestBody) error {
	if strings.TrimSpace(req.User.UserID) == "" {
		return errors.New("user.user_id is required")
	}
	if strings.TrimSpace(req.User.Tier) == "" {
		return errors.New("user.tier is required")
	}
	if strings.TrimSpace(req.User.Country) == "" {
		return errors.New("user.country is required")
	}
	if req.User.LifetimeSpend < 0 {
		return errors.New("user.lifetime_spend must not be negative")
	}
	if req.User.OrdersPlaced < 0 {
		return errors.New("user.orders_placed must not be negative")
	}
	for i, it := range req.Cart.Items {
		if it.UnitPrice <= 0 {
			return fmt.Errorf("cart.items[%d].unit_price must be positive", i)
		}
		if it.Qty <= 0 {
			return fmt.Errorf("cart.items[%d].qty must be positive", i)
		}
	}
	return nil
}

// --- Handlers ---

// UpsertCoupon handles POST /admin/coupons. Re-submitting an existing code
// replaces the whole record; usage history stays keyed by the code.
func (h *CouponHandler) UpsertCoupon(w http.ResponseWriter, r *http.Request) {
	var req CreateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	coupon, err := validateCreate(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.catalog.Upsert(r.Context(), coupon); err != nil {
		h.logger.Error("catalog upsert failed", "code", coupon.Code, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	metrics.CouponUpsertsTotal.Inc()
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "coupon_upserted",
		"code":    coupon.Code,
	})
}

// GetCoupon handles GET /admin/coupons/{code}.
func (h *CouponHandler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	coupon, err := h.catalog.Get(r.Context(), code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "coupon_not_found")
			return
		}
		h.logger.Error("catalog get failed", "code", code, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, coupon)
}

// BestCoupon handles POST /coupons/best: run the full selection pipeline
// and commit the winner's usage. "No winner" is a normal 200 with a null
// coupon and zero discount.
func (h *CouponHandler) BestCoupon(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if err := validateSelection(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	now, err := parseTimestamp(req.Timestamp)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timestamp; use RFC3339")
		return
	}

	coupon, discount, err := h.engine.SelectBest(r.Context(), req.User, req.Cart, now)
	if err != nil {
		h.logger.Error("selection failed", "user_id", req.User.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, BestCouponResponse{Coupon: coupon, Discount: discount})
}

// ApplicableCoupons handles POST /coupons/applicable: the ranked candidate
// list without committing any usage.
func (h *CouponHandler) ApplicableCoupons(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if err := validateSelection(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	now, err := parseTimestamp(req.Timestamp)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timestamp; use RFC3339")
		return
	}

	ranked, err := h.engine.Rank(r.Context(), req.User, req.Cart, now)
	if err != nil {
		h.logger.Error("ranking failed", "user_id", req.User.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	out := make([]ApplicableCoupon, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, ApplicableCoupon{Code: c.Coupon.Code, Discount: c.Discount})
	}
	writeJSON(w, http.StatusOK, ApplicableResponse{ApplicableCoupons: out})
}

// EvaluateCoupon handles POST /coupons/evaluate: dry-run one named coupon
// through the selection checks. Never consumes usage.
func (h *CouponHandler) EvaluateCoupon(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	if err := validateSelection(req.SelectionRequestBody); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	now, err := parseTimestamp(req.Timestamp)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timestamp; use RFC3339")
		return
	}

	usable, discount, reason, err := h.engine.Evaluate(r.Context(), req.Code, req.User, req.Cart, now)
	if err != nil {
		h.logger.Error("evaluation failed", "code", req.Code, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, EvaluateResponse{Usable: usable, Discount: discount, Reason: reason})
}

// UserUsage handles GET /usage/{userID}: read-only redemption counts for
// diagnostics.
func (h *CouponHandler) UserUsage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user id required")
		return
	}

	counts, err := h.usage.CountsFor(r.Context(), userID)
	if err != nil {
		h.logger.Error("usage lookup failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, UsageResponse{UserID: userID, Counts: counts})
}

// ListCoupons handles GET /admin/coupons, sorted by code for stable output.
func (h *CouponHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.catalog.All(r.Context())
	if err != nil {
		h.logger.Error("catalog list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	sort.Slice(coupons, func(i, j int) bool { return coupons[i].Code < coupons[j].Code })
	writeJSON(w, http.StatusOK, map[string]interface{}{"coupons": coupons})
}
