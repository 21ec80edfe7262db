package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram delivers user messages through the Bot API. The chat id is
// the user id, so every user gets a direct message from the bot.
type Telegram struct {
	BotToken string
	BaseURL  string
	Client   *http.Client
}

func NewTelegram(botToken string) *Telegram {
	return &Telegram{
		BotToken: botToken,
		BaseURL:  telegramAPIBase,
		Client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Notify sends one Markdown message, retrying twice with linear backoff.
// The last error is returned for the caller to log and swallow.
func (t *Telegram) Notify(ctx context.Context, userID int64, text string) error {
	if t.BotToken == "" {
		return fmt.Errorf("telegram bot token is empty")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.BaseURL, t.BotToken)
	payload := map[string]interface{}{
		"chat_id":    userID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	const attempts = 3
	var lastErr error
	for i := 1; i <= attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.Client.Do(req)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			lastErr = fmt.Errorf("telegram returned status %d", resp.StatusCode)
		} else {
			lastErr = err
		}

		if i < attempts {
			select {
			case <-time.After(time.Duration(i) * 2 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("telegram send failed after %d attempts: %w", attempts, lastErr)
}
