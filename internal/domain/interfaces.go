package domain

import "context"

// OrderStore persists the logical open orders. Only the sync engine
// mutates records, and only through SetStatus and ReplaceOrder.
type OrderStore interface {
	GetPendingOrders(ctx context.Context, userID int64) ([]*Order, error)
	ListUsersWithPending(ctx context.Context) ([]int64, error)
	SetStatus(ctx context.Context, orderID string, status OrderStatus) error
	ReplaceOrder(ctx context.Context, oldID, newID string, newCurrent, newTarget float64) error
	CountByStatus(ctx context.Context) (map[OrderStatus]int, error)
}

// MarketData returns the live top-of-book price for a token: best bid
// for BUY repositioning, best ask for SELL.
type MarketData interface {
	BestPrice(ctx context.Context, tokenID string, side Side) (float64, error)
}

// ExchangeGateway is the venue seam: status lookup plus batched
// mutation. Signing, auth and transport details stay behind it.
type ExchangeGateway interface {
	GetOrderStatus(ctx context.Context, orderID string) (*OrderState, error)
	CancelBatch(ctx context.Context, orderIDs []string) (*CancelResult, error)
	PlaceBatch(ctx context.Context, specs []PlacementSpec) (*PlaceResult, error)
}

// NotificationSink delivers user-facing messages. Delivery failures are
// the caller's to log and swallow; they never affect order handling.
type NotificationSink interface {
	Notify(ctx context.Context, userID int64, text string) error
}
