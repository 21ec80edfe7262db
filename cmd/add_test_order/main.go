package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"pinbot/internal/domain"
	"pinbot/internal/infrastructure/storage"
)

func main() {
	dbPath := flag.String("db", "pinbot.db", "path to sqlite database")
	userID := flag.Int64("user", 1, "telegram chat id that owns the order")
	orderID := flag.String("order", "", "venue order id (defaults to a generated one)")
	marketID := flag.Int64("market", 1, "market id")
	tokenID := flag.String("token", "test-token", "outcome token id")
	tokenName := flag.String("name", "YES", "outcome token name")
	side := flag.String("side", "BUY", "order side: BUY or SELL")
	price := flag.Float64("price", 0.500, "current top-of-book price")
	offset := flag.Int("offset", 10, "offset from top-of-book in ticks")
	amount := flag.Float64("amount", 10.0, "order amount")
	flag.Parse()

	store, err := storage.NewSQLiteStore(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	id := *orderID
	if id == "" {
		id = fmt.Sprintf("test-%d", time.Now().UnixNano())
	}

	orderSide := domain.Side(*side)
	target := domain.TargetPrice(*price, orderSide, *offset)

	order := &domain.Order{
		OrderID:      id,
		UserID:       *userID,
		MarketID:     *marketID,
		MarketTitle:  "Test market",
		MarketSlug:   "test-market",
		TokenID:      *tokenID,
		TokenName:    *tokenName,
		Side:         orderSide,
		OffsetTicks:  *offset,
		CurrentPrice: *price,
		TargetPrice:  target,
		Amount:       *amount,
		Status:       domain.StatusPending,
		CreatedAt:    time.Now(),
	}

	if err := store.InsertOrder(ctx, order); err != nil {
		log.Fatalf("Failed to save order: %v", err)
	}

	fmt.Printf("✅ Test order added successfully!\n")
	fmt.Printf("Order ID: %s\n", order.OrderID)
	fmt.Printf("User: %d\n", order.UserID)
	fmt.Printf("Token: %s (%s)\n", order.TokenName, order.TokenID)
	fmt.Printf("Side: %s, offset %d ticks\n", order.Side, order.OffsetTicks)
	fmt.Printf("Current price: %.3f, target price: %.3f\n", order.CurrentPrice, order.TargetPrice)
	fmt.Printf("Amount: %.2f\n", order.Amount)
	fmt.Printf("\nRun the bot and the order will be re-pinned once top-of-book drifts.\n")
}
