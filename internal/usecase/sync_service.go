package usecase

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
	"pinbot/internal/domain"
)

// SyncService keeps each user's pending orders pinned at their tick
// offset from top-of-book. One cycle per user: resolve orders that
// filled or were canceled on the venue, recompute targets from fresh
// prices, then cancel-and-replace every order whose target drifted past
// its threshold. Cancels and placements run as one batch per user, and
// nothing is placed until every paired cancel is confirmed.
type SyncService struct {
	store    domain.OrderStore
	market   domain.MarketData
	gateway  domain.ExchangeGateway
	executor *BatchExecutor
	notifier domain.NotificationSink
	logger   *zap.Logger
}

func NewSyncService(
	store domain.OrderStore,
	market domain.MarketData,
	gateway domain.ExchangeGateway,
	executor *BatchExecutor,
	notifier domain.NotificationSink,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		store:    store,
		market:   market,
		gateway:  gateway,
		executor: executor,
		notifier: notifier,
		logger:   logger,
	}
}

// repositionPlan pairs one order's cancel with its replacement.
type repositionPlan struct {
	order      *domain.Order
	newCurrent float64
	newTarget  float64
	deltaCents float64
}

// SyncUser runs one reconciliation cycle for one user. The returned
// error is non-nil only for faults that abort the whole cycle; per-order
// problems are absorbed into the result counters.
func (s *SyncService) SyncUser(ctx context.Context, userID int64) (domain.UserSyncResult, error) {
	var res domain.UserSyncResult

	orders, err := s.store.GetPendingOrders(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("failed to load pending orders: %w", err)
	}
	if len(orders) == 0 {
		return res, nil
	}

	// Classification pass. Cancel ids and placement specs are appended
	// in the same step so the two batches can only grow together.
	var cancelIDs []string
	var placements []domain.PlacementSpec
	byOldID := make(map[string]*domain.Order, len(orders))

	for _, o := range orders {
		plan := s.checkOrder(ctx, o, &res)
		if plan == nil {
			continue
		}
		cancelIDs = append(cancelIDs, plan.order.OrderID)
		placements = append(placements, domain.PlacementSpec{
			OldOrderID:   plan.order.OrderID,
			UserID:       plan.order.UserID,
			MarketID:     plan.order.MarketID,
			TokenID:      plan.order.TokenID,
			TokenName:    plan.order.TokenName,
			Side:         plan.order.Side,
			Price:        plan.newTarget,
			CurrentPrice: plan.newCurrent,
			Amount:       plan.order.Amount,
		})
		byOldID[plan.order.OrderID] = plan.order
	}

	if len(cancelIDs) == 0 {
		return res, nil
	}

	// Regression guard. The append above keeps the batches in lockstep;
	// if they ever diverge the cycle must stop before touching anything.
	if len(cancelIDs) != len(placements) {
		s.logger.Error("Cancel and place batches out of step, aborting user cycle",
			zap.Int64("user_id", userID),
			zap.Int("cancels", len(cancelIDs)),
			zap.Int("placements", len(placements)))
		return res, domain.ErrBatchMismatch
	}

	// Cancel first. Any failed cancel parks every placement for this
	// user until the next cycle; a half-cancelled batch must never get
	// new orders stacked on top of it.
	cancelOutcomes := s.executor.CancelAll(ctx, cancelIDs)
	var stuck []domain.Outcome
	for _, out := range cancelOutcomes {
		if !out.OK() {
			stuck = append(stuck, out)
		}
	}
	if len(stuck) > 0 {
		res.Failed += len(stuck)
		s.logger.Error("Cancellation incomplete, holding all placements for user",
			zap.Int64("user_id", userID),
			zap.Int("failed", len(stuck)),
			zap.Int("submitted", len(cancelIDs)))
		s.notify(ctx, userID, cancelFailureMessage(stuck))
		return res, nil
	}

	// All cancels confirmed (removed or already resolved); place the
	// replacements. Items succeed or fail one by one.
	placeOutcomes := s.executor.PlaceAll(ctx, placements)
	for i, out := range placeOutcomes {
		spec := placements[i]
		o := byOldID[spec.OldOrderID]

		if !out.OK() {
			res.Failed++
			s.logger.Error("Placement failed, position is uncovered",
				zap.Int64("user_id", userID),
				zap.String("old_order_id", spec.OldOrderID),
				zap.Int("code", out.Code),
				zap.String("message", out.Message))
			s.notify(ctx, userID, placementFailureMessage(o, spec, out))
			continue
		}

		// Persist only after the venue confirmed the new order.
		if err := s.store.ReplaceOrder(ctx, spec.OldOrderID, out.NewOrderID, spec.CurrentPrice, spec.Price); err != nil {
			res.Failed++
			s.logger.Error("Failed to persist replaced order",
				zap.String("old_order_id", spec.OldOrderID),
				zap.String("new_order_id", out.NewOrderID),
				zap.Error(err))
			continue
		}
		res.Repositioned++
		s.logger.Info("Order repositioned",
			zap.Int64("user_id", userID),
			zap.String("old_order_id", spec.OldOrderID),
			zap.String("new_order_id", out.NewOrderID),
			zap.Float64("target_price", spec.Price),
			zap.Float64("current_price", spec.CurrentPrice))
		s.notify(ctx, userID, repositionedMessage(o, spec, out.NewOrderID))
	}

	return res, nil
}

// checkOrder decides what one pending order needs this cycle: nothing, a
// terminal status write, or a cancel-and-replace. It never mutates the
// venue. A panic anywhere inside is recovered and the order is skipped,
// so one bad order cannot take down its siblings.
func (s *SyncService) checkOrder(ctx context.Context, o *domain.Order, res *domain.UserSyncResult) (plan *repositionPlan) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered panic while checking order",
				zap.String("order_id", o.OrderID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			res.Skipped++
			plan = nil
		}
	}()

	res.Checked++

	// Resolve orders that finished or were canceled on the venue. A
	// failed lookup downgrades to "still pending": a flaky status call
	// must not stall repositioning.
	state, err := s.gateway.GetOrderStatus(ctx, o.OrderID)
	switch {
	case err != nil:
		s.logger.Warn("Order status lookup failed, treating as pending",
			zap.String("order_id", o.OrderID),
			zap.Error(err))
	case state.Status == domain.StatusFinished:
		if err := s.store.SetStatus(ctx, o.OrderID, domain.StatusFinished); err != nil {
			s.logger.Error("Failed to mark order finished",
				zap.String("order_id", o.OrderID),
				zap.Error(err))
			res.Skipped++
			return nil
		}
		res.Resolved++
		s.logger.Info("Order filled on venue",
			zap.String("order_id", o.OrderID),
			zap.String("token", o.TokenName),
			zap.Float64("filled_amount", state.FilledAmount))
		s.notify(ctx, o.UserID, fillMessage(o, state))
		return nil
	case state.Status == domain.StatusCanceled:
		if err := s.store.SetStatus(ctx, o.OrderID, domain.StatusCanceled); err != nil {
			s.logger.Error("Failed to mark order canceled",
				zap.String("order_id", o.OrderID),
				zap.Error(err))
			res.Skipped++
			return nil
		}
		res.Resolved++
		s.logger.Info("Order canceled on venue",
			zap.String("order_id", o.OrderID),
			zap.String("token", o.TokenName))
		return nil
	}

	// Fresh top-of-book for the order's side of the book.
	price, err := s.market.BestPrice(ctx, o.TokenID, o.Side)
	if err != nil {
		s.logger.Warn("Price fetch failed, skipping order this cycle",
			zap.String("order_id", o.OrderID),
			zap.String("token_id", o.TokenID),
			zap.Error(err))
		res.Skipped++
		return nil
	}

	newTarget := domain.TargetPrice(price, o.Side, o.OffsetTicks)
	deltaCents := domain.DriftCents(o.TargetPrice, newTarget)
	threshold := o.RepositionThresholdCents
	if threshold <= 0 {
		threshold = domain.DefaultRepositionThresholdCents
	}

	if deltaCents < threshold {
		// Explicit no-op: nothing stored, nothing sent.
		s.logger.Debug("Drift below threshold",
			zap.String("order_id", o.OrderID),
			zap.Float64("new_target", newTarget),
			zap.Float64("delta_cents", deltaCents),
			zap.Float64("threshold_cents", threshold))
		return nil
	}

	s.logger.Info("Order drifted past threshold, repositioning",
		zap.String("order_id", o.OrderID),
		zap.String("token", o.TokenName),
		zap.String("side", string(o.Side)),
		zap.Float64("current_price", price),
		zap.Float64("old_target", o.TargetPrice),
		zap.Float64("new_target", newTarget),
		zap.Float64("delta_cents", deltaCents))

	// Tell the user before touching the venue, so intent is known even
	// if execution fails afterwards.
	s.notify(ctx, o.UserID, priceChangeMessage(o, price, newTarget, deltaCents, threshold))

	return &repositionPlan{
		order:      o,
		newCurrent: price,
		newTarget:  newTarget,
		deltaCents: deltaCents,
	}
}

// notify is best effort. A sink failure is logged and swallowed; it
// never feeds back into order handling.
func (s *SyncService) notify(ctx context.Context, userID int64, text string) {
	if err := s.notifier.Notify(ctx, userID, text); err != nil {
		s.logger.Warn("Notification delivery failed",
			zap.Int64("user_id", userID),
			zap.Error(err))
	}
}
