package exchange

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"pinbot/internal/domain"
)

const bookTTL = 30 * time.Second

// BookFeed keeps a live top-of-book cache over the venue websocket and
// serves BestPrice from it. Tokens are subscribed lazily on first use;
// a cold or stale entry falls back to the REST book, so the feed only
// ever saves calls, never blocks them. After a dropped connection the
// next lookup re-dials and re-subscribes everything.
type BookFeed struct {
	wsURL  string
	rest   *PredictClient
	ttl    time.Duration
	logger *zap.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	subs  map[string]bool
	books map[string]bookTop
}

type bookTop struct {
	bid float64
	ask float64
	at  time.Time
}

func NewBookFeed(wsURL string, rest *PredictClient, logger *zap.Logger) *BookFeed {
	if wsURL == "" {
		wsURL = PredictWSURL
	}
	return &BookFeed{
		wsURL:  wsURL,
		rest:   rest,
		ttl:    bookTTL,
		logger: logger,
		subs:   make(map[string]bool),
		books:  make(map[string]bookTop),
	}
}

// BestPrice serves from the websocket cache when it is fresh and falls
// back to REST otherwise.
func (f *BookFeed) BestPrice(ctx context.Context, tokenID string, side domain.Side) (float64, error) {
	f.mu.Lock()
	top, ok := f.books[tokenID]
	f.mu.Unlock()

	if ok && time.Since(top.at) <= f.ttl {
		if side == domain.SideSell && top.ask > 0 {
			return top.ask, nil
		}
		if side != domain.SideSell && top.bid > 0 {
			return top.bid, nil
		}
	}

	// Cold, stale or one-sided: track the token for next time and serve
	// this call over REST.
	if err := f.ensureSubscribed(tokenID); err != nil {
		f.logger.Warn("Book feed subscription failed, serving REST only",
			zap.String("token_id", tokenID),
			zap.Error(err))
	}
	return f.rest.BestPrice(ctx, tokenID, side)
}

func (f *BookFeed) ensureSubscribed(tokenID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn != nil && f.subs[tokenID] {
		return nil
	}

	if f.conn == nil {
		c, _, err := websocket.DefaultDialer.Dial(f.wsURL, nil)
		if err != nil {
			return err
		}
		f.conn = c
		go f.readLoop(c)

		// Re-subscribe everything we were tracking before the drop.
		for id := range f.subs {
			if err := f.writeSubscribe(id); err != nil {
				return err
			}
		}
	}

	if !f.subs[tokenID] {
		if err := f.writeSubscribe(tokenID); err != nil {
			return err
		}
		f.subs[tokenID] = true
	}
	return nil
}

// writeSubscribe assumes f.mu is held.
func (f *BookFeed) writeSubscribe(tokenID string) error {
	subMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": []string{"book." + tokenID},
	}
	return f.conn.WriteJSON(subMsg)
}

func (f *BookFeed) readLoop(c *websocket.Conn) {
	defer func() {
		c.Close()
		f.mu.Lock()
		if f.conn == c {
			f.conn = nil
		}
		f.mu.Unlock()
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			f.logger.Warn("Book feed read error, connection dropped", zap.Error(err))
			return
		}

		var event map[string]interface{}
		if err := json.Unmarshal(message, &event); err != nil {
			f.logger.Warn("Book feed unmarshal error", zap.Error(err))
			continue
		}

		topic, ok := event["topic"].(string)
		if !ok || !strings.HasPrefix(topic, "book.") {
			continue
		}
		data, ok := event["data"].(map[string]interface{})
		if !ok {
			continue
		}

		tokenID := strings.TrimPrefix(topic, "book.")
		bid := topOfSide(data["bids"])
		ask := topOfSide(data["asks"])
		if bid == 0 && ask == 0 {
			continue
		}

		f.mu.Lock()
		f.books[tokenID] = bookTop{bid: bid, ask: ask, at: time.Now()}
		f.mu.Unlock()
	}
}

// topOfSide pulls the price from the first [price, size] entry of one
// book side, tolerating missing or short payloads.
func topOfSide(raw interface{}) float64 {
	side, ok := raw.([]interface{})
	if !ok || len(side) == 0 {
		return 0
	}
	entry, ok := side[0].([]interface{})
	if !ok || len(entry) < 1 {
		return 0
	}
	priceStr, ok := entry[0].(string)
	if !ok {
		return 0
	}
	price, _ := strconv.ParseFloat(priceStr, 64)
	return price
}

// Close shuts the websocket down; BestPrice keeps working over REST.
func (f *BookFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		err := f.conn.Close()
		f.conn = nil
		return err
	}
	return nil
}
