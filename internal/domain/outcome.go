package domain

// OutcomeKind classifies one item of a batch cancel or place call.
type OutcomeKind string

const (
	// OutcomeSuccess: the order was actively removed (cancel) or accepted (place).
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeNoOp: the cancel found the order already resolved on the exchange.
	OutcomeNoOp OutcomeKind = "noop"
	// OutcomeFailed: the venue rejected the item; Code and Message say why.
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome is the normalized per-item result of a batch cancel or place.
// OrderID is always the id the caller submitted (for placements, the old
// id being replaced); NewOrderID is set only on successful placements.
type Outcome struct {
	OrderID    string
	Kind       OutcomeKind
	Code       int
	Message    string
	NewOrderID string
}

// OK reports whether the item counts as succeeded. NoOp counts: a cancel
// that finds the order already gone has achieved what it was asked for.
func (o Outcome) OK() bool { return o.Kind != OutcomeFailed }

// PlacementSpec describes one replacement order to submit. OldOrderID is
// carried for correlation only; the venue never sees it.
type PlacementSpec struct {
	OldOrderID   string
	UserID       int64
	MarketID     int64
	TokenID      string
	TokenName    string
	Side         Side
	Price        float64
	CurrentPrice float64
	Amount       float64
}

// CancelResult is the venue response to a batch cancel: ids actively
// removed, ids that were already resolved, and a cause on failure.
type CancelResult struct {
	Success bool
	Removed []string
	NoOp    []string
	Cause   string
}

// PlaceResult is the venue response to a batch place. Success is the
// call-level flag; each item still carries its own result code, and an
// item only succeeded if both agree.
type PlaceResult struct {
	Success bool
	Cause   string
	Items   []PlaceResultItem
}

type PlaceResultItem struct {
	Code    int
	Message string
	OrderID string
}

// OrderState is the venue view of one order's lifecycle.
type OrderState struct {
	Status       OrderStatus
	FilledAmount float64
	FillPrice    float64
}
