package domain

import "time"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderStatus string

const (
	StatusPending  OrderStatus = "pending"
	StatusFinished OrderStatus = "finished"
	StatusCanceled OrderStatus = "canceled"
)

// Price grid for prediction-market outcome tokens. Prices live on a
// 0.001 tick grid and never leave (0, 1).
const (
	MinPrice = 0.001
	MaxPrice = 0.999
	TickSize = 0.001

	DefaultRepositionThresholdCents = 0.5
)

// Order is a resting limit order pinned a fixed number of ticks away from
// top-of-book. The exchange-assigned OrderID changes on every successful
// reposition; the logical position is continuous across id changes, the
// offset is the contract with the user.
type Order struct {
	OrderID                  string      `json:"order_id"`
	UserID                   int64       `json:"user_id"`
	MarketID                 int64       `json:"market_id"`
	MarketTitle              string      `json:"market_title"`
	MarketSlug               string      `json:"market_slug"`
	TokenID                  string      `json:"token_id"`
	TokenName                string      `json:"token_name"`
	Side                     Side        `json:"side"`
	OffsetTicks              int         `json:"offset_ticks"`
	OffsetCents              float64     `json:"offset_cents"`
	RepositionThresholdCents float64     `json:"reposition_threshold_cents"`
	CurrentPrice             float64     `json:"current_price"`
	TargetPrice              float64     `json:"target_price"`
	Amount                   float64     `json:"amount"`
	Status                   OrderStatus `json:"status"`
	CreatedAt                time.Time   `json:"created_at"`
}

// Terminal reports whether the status can never change again.
func (s OrderStatus) Terminal() bool {
	return s == StatusFinished || s == StatusCanceled
}
