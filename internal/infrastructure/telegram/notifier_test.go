package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(t *testing.T, handler http.HandlerFunc) *Notifier {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	notifier := NewNotifier("bot-token", "chat-42")
	notifier.baseURL = server.URL
	return notifier
}

func TestPublishRunSummary(t *testing.T) {
	t.Parallel()

	notifier := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botbot-token/sendMessage", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "chat-42", r.PostForm.Get("chat_id"))
		assert.Equal(t, "2 new papers added", r.PostForm.Get("text"))
		assert.Equal(t, "Markdown", r.PostForm.Get("parse_mode"))

		fmt.Fprint(w, `{"ok":true,"result":{"message_id":1}}`)
	})

	err := notifier.PublishRunSummary(context.Background(), "2 new papers added")
	assert.NoError(t, err)
}

func TestPublishRunSummaryRejected(t *testing.T) {
	t.Parallel()

	notifier := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok":false,"description":"chat not found"}`)
	})

	err := notifier.PublishRunSummary(context.Background(), "summary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestPublishRunSummaryMisconfigured(t *testing.T) {
	t.Parallel()

	notifier := NewNotifier("", "")
	assert.Error(t, notifier.PublishRunSummary(context.Background(), "summary"))
}
