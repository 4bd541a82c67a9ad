package models

// UserContext carries the shopper attributes the eligibility rules are
// evaluated against. Shape validation happens at the HTTP boundary.
type UserContext struct {
	UserID        string  `json:"user_id"`
	Tier          string  `json:"tier"`
	Country       string  `json:"country"`
	LifetimeSpend float64 `json:"lifetime_spend"`
	OrdersPlaced  int     `json:"orders_placed"`
}
