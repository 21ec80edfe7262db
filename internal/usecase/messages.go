package usecase

import (
	"fmt"
	"strings"

	"pinbot/internal/domain"
)

// Telegram message bodies, Markdown parse mode. Prices print on the
// 3-decimal tick grid, drifts in cents.

func priceChangeMessage(o *domain.Order, newCurrent, newTarget, deltaCents, thresholdCents float64) string {
	priceDelta := domain.DriftCents(o.CurrentPrice, newCurrent)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Price moved: %s* (%s)\n", o.TokenName, o.Side)
	if o.MarketTitle != "" {
		fmt.Fprintf(&b, "Market: %s\n", o.MarketTitle)
	}
	fmt.Fprintf(&b, "Top of book: %.3f → %.3f (%.1f¢)\n", o.CurrentPrice, newCurrent, priceDelta)
	fmt.Fprintf(&b, "Target: %.3f → %.3f (%.1f¢)\n", o.TargetPrice, newTarget, deltaCents)
	fmt.Fprintf(&b, "Offset: %d ticks, threshold: %.1f¢\n", o.OffsetTicks, thresholdCents)
	fmt.Fprintf(&b, "Repositioning order `%s`...", o.OrderID)
	return b.String()
}

func repositionedMessage(o *domain.Order, spec domain.PlacementSpec, newOrderID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ *Order repositioned: %s* (%s)\n", o.TokenName, o.Side)
	fmt.Fprintf(&b, "New target: %.3f (top of book %.3f)\n", spec.Price, spec.CurrentPrice)
	fmt.Fprintf(&b, "Amount: %.2f USDT\n", o.Amount)
	fmt.Fprintf(&b, "Order id: `%s` → `%s`", o.OrderID, newOrderID)
	return b.String()
}

func placementFailureMessage(o *domain.Order, spec domain.PlacementSpec, out domain.Outcome) string {
	reason := out.Message
	if reason == "" {
		reason = "unknown error"
	}
	if out.Code != 0 {
		reason = fmt.Sprintf("%d: %s", out.Code, reason)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ *Failed to replace order* `%s`\n", o.OrderID)
	fmt.Fprintf(&b, "%s (%s) at %.3f, %.2f USDT\n", o.TokenName, o.Side, spec.Price, o.Amount)
	fmt.Fprintf(&b, "Venue says: %s\n", reason)
	b.WriteString("The old order was already cancelled, so this position is NOT protected. Please place a new order manually.")
	return b.String()
}

func cancelFailureMessage(stuck []domain.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚫 *Could not cancel %d order(s)*\n", len(stuck))
	for _, out := range stuck {
		reason := out.Message
		if reason == "" {
			reason = "unknown error"
		}
		fmt.Fprintf(&b, "`%s`: %s\n", out.OrderID, reason)
	}
	b.WriteString("New orders will NOT be placed this cycle. Will retry on the next sync.")
	return b.String()
}

func fillMessage(o *domain.Order, state *domain.OrderState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎯 *Order filled: %s* (%s)\n", o.TokenName, o.Side)
	if o.MarketTitle != "" {
		fmt.Fprintf(&b, "Market: %s\n", o.MarketTitle)
	}
	fmt.Fprintf(&b, "Amount: %.2f USDT at %.3f\n", o.Amount, o.TargetPrice)
	if state.FilledAmount > 0 {
		fmt.Fprintf(&b, "Filled: %.2f", state.FilledAmount)
		if state.FillPrice > 0 {
			fmt.Fprintf(&b, " @ %.3f", state.FillPrice)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Order id: `%s`", o.OrderID)
	return b.String()
}
