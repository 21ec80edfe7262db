package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pinbot/internal/domain"
)

const (
	PredictBaseURL = "https://api.predict.fun"
	PredictWSURL   = "wss://ws.predict.fun/v1/book"
)

// PredictClient talks to a predict.fun style prediction-market API.
// Status and book reads fail fast; batch mutations get a longer timeout
// since they are costlier to retry.
type PredictClient struct {
	apiKey      string
	baseURL     string
	client      *http.Client
	batchClient *http.Client
}

func NewPredictClient(apiKey, baseURL string) *PredictClient {
	if baseURL == "" {
		baseURL = PredictBaseURL
	}
	return &PredictClient{
		apiKey:      apiKey,
		baseURL:     baseURL,
		client:      &http.Client{Timeout: 10 * time.Second},
		batchClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *PredictClient) do(ctx context.Context, httpClient *http.Client, method, path string, payload map[string]interface{}) ([]byte, error) {
	var body []byte
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = jsonBody
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// mapOrderStatus folds the venue's order statuses onto the three the
// store knows. Current API reports strings; deployments that predate it
// still answer with numeric codes, so both are accepted.
func mapOrderStatus(s string) (domain.OrderStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OPEN", "LIVE", "PENDING", "1":
		return domain.StatusPending, nil
	case "FILLED", "MATCHED", "2":
		return domain.StatusFinished, nil
	case "CANCELLED", "CANCELED", "EXPIRED", "INVALIDATED", "3":
		return domain.StatusCanceled, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

func (c *PredictClient) GetOrderStatus(ctx context.Context, orderID string) (*domain.OrderState, error) {
	resp, err := c.do(ctx, c.client, "GET", "/v1/orders/"+orderID, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool   `json:"success"`
		Cause   string `json:"cause"`
		Order   struct {
			Status     string `json:"status"`
			FilledSize string `json:"filledSize"`
			AvgPrice   string `json:"avgPrice"`
		} `json:"order"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("predict order lookup error: %s", result.Cause)
	}

	status, err := mapOrderStatus(result.Order.Status)
	if err != nil {
		return nil, err
	}

	filled, _ := strconv.ParseFloat(result.Order.FilledSize, 64)
	avgPrice, _ := strconv.ParseFloat(result.Order.AvgPrice, 64)

	return &domain.OrderState{
		Status:       status,
		FilledAmount: filled,
		FillPrice:    avgPrice,
	}, nil
}

type BookLevel struct {
	Price float64
	Size  float64
}

// Book holds one token's order book, best price first on both sides.
type Book struct {
	TokenID string
	Bids    []BookLevel
	Asks    []BookLevel
}

func (c *PredictClient) GetOrderBook(ctx context.Context, tokenID string) (*Book, error) {
	resp, err := c.do(ctx, c.client, "GET", "/v1/orderbook?token_id="+tokenID, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}

	book := &Book{
		TokenID: tokenID,
		Bids:    make([]BookLevel, 0, len(result.Bids)),
		Asks:    make([]BookLevel, 0, len(result.Asks)),
	}

	for _, bid := range result.Bids {
		if len(bid) < 2 {
			continue
		}
		price, _ := strconv.ParseFloat(bid[0], 64)
		size, _ := strconv.ParseFloat(bid[1], 64)
		book.Bids = append(book.Bids, BookLevel{Price: price, Size: size})
	}

	for _, ask := range result.Asks {
		if len(ask) < 2 {
			continue
		}
		price, _ := strconv.ParseFloat(ask[0], 64)
		size, _ := strconv.ParseFloat(ask[1], 64)
		book.Asks = append(book.Asks, BookLevel{Price: price, Size: size})
	}

	return book, nil
}

// BestPrice returns the top of the side a pinned order tracks: best bid
// for BUY orders, best ask for SELL.
func (c *PredictClient) BestPrice(ctx context.Context, tokenID string, side domain.Side) (float64, error) {
	book, err := c.GetOrderBook(ctx, tokenID)
	if err != nil {
		return 0, err
	}
	if side == domain.SideSell {
		if len(book.Asks) == 0 {
			return 0, domain.ErrNoLiquidity
		}
		return book.Asks[0].Price, nil
	}
	if len(book.Bids) == 0 {
		return 0, domain.ErrNoLiquidity
	}
	return book.Bids[0].Price, nil
}

func (c *PredictClient) CancelBatch(ctx context.Context, orderIDs []string) (*domain.CancelResult, error) {
	payload := map[string]interface{}{
		"orderIds": orderIDs,
	}

	resp, err := c.do(ctx, c.batchClient, "POST", "/v1/orders/remove", payload)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool     `json:"success"`
		Removed []string `json:"removed"`
		NoOp    []string `json:"noop"`
		Cause   string   `json:"cause"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}

	return &domain.CancelResult{
		Success: result.Success,
		Removed: result.Removed,
		NoOp:    result.NoOp,
		Cause:   result.Cause,
	}, nil
}

func (c *PredictClient) PlaceBatch(ctx context.Context, specs []domain.PlacementSpec) (*domain.PlaceResult, error) {
	orders := make([]map[string]interface{}, 0, len(specs))
	for _, spec := range specs {
		orders = append(orders, map[string]interface{}{
			"marketId": spec.MarketID,
			"tokenId":  spec.TokenID,
			"side":     string(spec.Side),
			"price":    fmt.Sprintf("%.3f", spec.Price),
			"amount":   fmt.Sprintf("%.2f", spec.Amount),
		})
	}
	payload := map[string]interface{}{
		"orders": orders,
	}

	resp, err := c.do(ctx, c.batchClient, "POST", "/v1/orders/batch", payload)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool   `json:"success"`
		Cause   string `json:"cause"`
		Results []struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			OrderID string `json:"orderId"`
		} `json:"results"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}

	placed := &domain.PlaceResult{
		Success: result.Success,
		Cause:   result.Cause,
		Items:   make([]domain.PlaceResultItem, 0, len(result.Results)),
	}
	for _, item := range result.Results {
		placed.Items = append(placed.Items, domain.PlaceResultItem{
			Code:    item.Code,
			Message: item.Message,
			OrderID: item.OrderID,
		})
	}

	return placed, nil
}
