package main

import (
	"context"
	"fmt"
	"os"

	"pinbot/internal/infrastructure/storage"
)

func main() {
	dbPath := "pinbot.db"
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		fmt.Printf("Failed to init sqlite: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	counts, err := store.CountByStatus(ctx)
	if err != nil {
		fmt.Printf("Failed to count orders: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Orders by status: %v\n", counts)

	users, err := store.ListUsersWithPending(ctx)
	if err != nil {
		fmt.Printf("Failed to list users: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d user(s) with pending orders:\n", len(users))
	for _, userID := range users {
		orders, err := store.GetPendingOrders(ctx, userID)
		if err != nil {
			fmt.Printf("  ❌ Failed to load orders for %d: %v\n", userID, err)
			continue
		}
		fmt.Printf("- User %d: %d order(s)\n", userID, len(orders))
		for _, o := range orders {
			fmt.Printf("  %s %s %s: current=%.3f target=%.3f offset=%d ticks threshold=%.1f¢ amount=%.2f\n",
				o.OrderID, o.TokenName, o.Side, o.CurrentPrice, o.TargetPrice,
				o.OffsetTicks, o.RepositionThresholdCents, o.Amount)
		}
	}
}
