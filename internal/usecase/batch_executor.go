package usecase

import (
	"context"

	"go.uber.org/zap"
	"pinbot/internal/domain"
)

// BatchExecutor turns the venue's batch cancel/place responses into one
// outcome per submitted item, in submission order. Everything downstream
// reasons about outcomes only; quirks of the wire shapes stop here.
type BatchExecutor struct {
	gateway domain.ExchangeGateway
	logger  *zap.Logger
}

func NewBatchExecutor(gateway domain.ExchangeGateway, logger *zap.Logger) *BatchExecutor {
	return &BatchExecutor{gateway: gateway, logger: logger}
}

// CancelAll cancels the given ids in one venue call. An id already
// resolved on the exchange comes back as NoOp, which callers treat the
// same as an active removal.
func (e *BatchExecutor) CancelAll(ctx context.Context, orderIDs []string) []domain.Outcome {
	if len(orderIDs) == 0 {
		return nil
	}

	res, err := e.gateway.CancelBatch(ctx, orderIDs)
	if err != nil {
		e.logger.Error("Batch cancel call failed",
			zap.Int("orders", len(orderIDs)),
			zap.Error(err))
		return failAll(orderIDs, 0, err.Error())
	}
	if !res.Success {
		cause := res.Cause
		if cause == "" {
			cause = "cancel rejected by venue"
		}
		e.logger.Error("Batch cancel rejected",
			zap.Int("orders", len(orderIDs)),
			zap.String("cause", cause))
		return failAll(orderIDs, 0, cause)
	}

	removed := make(map[string]bool, len(res.Removed))
	for _, id := range res.Removed {
		removed[id] = true
	}
	noop := make(map[string]bool, len(res.NoOp))
	for _, id := range res.NoOp {
		noop[id] = true
	}

	outcomes := make([]domain.Outcome, 0, len(orderIDs))
	for _, id := range orderIDs {
		switch {
		case removed[id]:
			outcomes = append(outcomes, domain.Outcome{OrderID: id, Kind: domain.OutcomeSuccess})
		case noop[id]:
			outcomes = append(outcomes, domain.Outcome{OrderID: id, Kind: domain.OutcomeNoOp})
		default:
			// The venue accepted the call but never accounted for this id.
			outcomes = append(outcomes, domain.Outcome{
				OrderID: id,
				Kind:    domain.OutcomeFailed,
				Message: "cancel not confirmed by venue",
			})
		}
	}
	return outcomes
}

// PlaceAll submits the replacement orders in one venue call. An item
// succeeds only when the call-level flag and its own result code agree;
// outcomes keep the old order id for correlation and carry the newly
// assigned id on success.
func (e *BatchExecutor) PlaceAll(ctx context.Context, specs []domain.PlacementSpec) []domain.Outcome {
	if len(specs) == 0 {
		return nil
	}

	res, err := e.gateway.PlaceBatch(ctx, specs)
	if err != nil {
		e.logger.Error("Batch place call failed",
			zap.Int("orders", len(specs)),
			zap.Error(err))
		return failAllSpecs(specs, 0, err.Error())
	}
	if !res.Success {
		cause := res.Cause
		if cause == "" {
			cause = "place rejected by venue"
		}
		e.logger.Error("Batch place rejected",
			zap.Int("orders", len(specs)),
			zap.String("cause", cause))
		return failAllSpecs(specs, 0, cause)
	}

	outcomes := make([]domain.Outcome, 0, len(specs))
	for i, spec := range specs {
		if i >= len(res.Items) {
			outcomes = append(outcomes, domain.Outcome{
				OrderID: spec.OldOrderID,
				Kind:    domain.OutcomeFailed,
				Message: "venue returned no result for item",
			})
			continue
		}
		item := res.Items[i]
		switch {
		case item.Code != 0:
			outcomes = append(outcomes, domain.Outcome{
				OrderID: spec.OldOrderID,
				Kind:    domain.OutcomeFailed,
				Code:    item.Code,
				Message: item.Message,
			})
		case item.OrderID == "":
			outcomes = append(outcomes, domain.Outcome{
				OrderID: spec.OldOrderID,
				Kind:    domain.OutcomeFailed,
				Message: "venue returned no order id",
			})
		default:
			outcomes = append(outcomes, domain.Outcome{
				OrderID:    spec.OldOrderID,
				Kind:       domain.OutcomeSuccess,
				NewOrderID: item.OrderID,
			})
		}
	}
	return outcomes
}

func failAll(orderIDs []string, code int, message string) []domain.Outcome {
	outcomes := make([]domain.Outcome, 0, len(orderIDs))
	for _, id := range orderIDs {
		outcomes = append(outcomes, domain.Outcome{
			OrderID: id,
			Kind:    domain.OutcomeFailed,
			Code:    code,
			Message: message,
		})
	}
	return outcomes
}

func failAllSpecs(specs []domain.PlacementSpec, code int, message string) []domain.Outcome {
	ids := make([]string, 0, len(specs))
	for _, spec := range specs {
		ids = append(ids, spec.OldOrderID)
	}
	return failAll(ids, code, message)
}
