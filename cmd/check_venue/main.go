package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"pinbot/internal/domain"
	"pinbot/internal/infrastructure/exchange"
)

func main() {
	tokenID := flag.String("token", "", "token id to fetch the book for")
	orderID := flag.String("order", "", "order id to look up (optional)")
	baseURL := flag.String("url", exchange.PredictBaseURL, "venue REST endpoint")
	flag.Parse()

	if *tokenID == "" && *orderID == "" {
		fmt.Println("Usage: check_venue -token <token_id> [-order <order_id>]")
		os.Exit(1)
	}

	_ = godotenv.Load()
	apiKey := os.Getenv("PREDICT_API_KEY")
	if apiKey == "" {
		fmt.Println("PREDICT_API_KEY is not set")
		os.Exit(1)
	}

	fmt.Printf("Testing venue interaction...\n")
	fmt.Printf("Endpoint: %s\n", *baseURL)

	client := exchange.NewPredictClient(apiKey, *baseURL)
	ctx := context.Background()

	if *tokenID != "" {
		book, err := client.GetOrderBook(ctx, *tokenID)
		if err != nil {
			fmt.Printf("❌ Failed to get order book: %v\n", err)
		} else {
			fmt.Printf("✅ Book for %s: %d bids, %d asks\n", *tokenID, len(book.Bids), len(book.Asks))
			if len(book.Bids) > 0 {
				fmt.Printf("   Best bid: %.3f (size %.2f)\n", book.Bids[0].Price, book.Bids[0].Size)
			}
			if len(book.Asks) > 0 {
				fmt.Printf("   Best ask: %.3f (size %.2f)\n", book.Asks[0].Price, book.Asks[0].Size)
			}
		}

		bid, err := client.BestPrice(ctx, *tokenID, domain.SideBuy)
		if err != nil {
			fmt.Printf("❌ Failed to get best bid: %v\n", err)
		} else {
			fmt.Printf("✅ BestPrice(BUY) = %.3f\n", bid)
		}
	}

	if *orderID != "" {
		state, err := client.GetOrderStatus(ctx, *orderID)
		if err != nil {
			fmt.Printf("❌ Failed to get order status: %v\n", err)
		} else {
			fmt.Printf("✅ Order %s: status=%s filled=%.2f @ %.3f\n",
				*orderID, state.Status, state.FilledAmount, state.FillPrice)
		}
	}
}
