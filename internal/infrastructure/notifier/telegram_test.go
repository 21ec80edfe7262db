package notifier_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinbot/internal/infrastructure/notifier"
)

func newTestTelegram(url string) *notifier.Telegram {
	return &notifier.Telegram{
		BotToken: "test-token",
		BaseURL:  url,
		Client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func TestNotify_SendsMarkdownMessage(t *testing.T) {
	var captured struct {
		ChatID    int64  `json:"chat_id"`
		Text      string `json:"text"`
		ParseMode string `json:"parse_mode"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tg := newTestTelegram(server.URL)
	err := tg.Notify(context.Background(), 42, "📊 *Price moved*")
	require.NoError(t, err)

	assert.Equal(t, int64(42), captured.ChatID)
	assert.Equal(t, "📊 *Price moved*", captured.Text)
	assert.Equal(t, "Markdown", captured.ParseMode)
}

func TestNotify_RetriesOnServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tg := newTestTelegram(server.URL)
	err := tg.Notify(context.Background(), 42, "hello")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestNotify_ContextCancelStopsRetrying(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	tg := newTestTelegram(server.URL)
	err := tg.Notify(ctx, 42, "hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNotify_EmptyTokenFailsFast(t *testing.T) {
	tg := &notifier.Telegram{Client: http.DefaultClient}
	err := tg.Notify(context.Background(), 42, "hello")
	assert.Error(t, err)
}
