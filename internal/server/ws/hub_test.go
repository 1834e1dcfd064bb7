package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbilo/arbilod/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startHub(t *testing.T, auth Authenticator) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(auth, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return hub, srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitForSubscribers(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.SubscriberCount() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("subscriber count never reached %d", n)
}

func TestHubBroadcastReachesSubscribers(t *testing.T) {
	hub, srv := startHub(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	waitForSubscribers(t, hub, 1)

	env := domain.Envelope{
		Key:             "arbipair_data",
		Data:            json.RawMessage(`[{"pair":"BTC / ETH"}]`),
		LastRefreshTime: 1700000000000,
		TTL:             300,
	}
	hub.Broadcast(env)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got domain.Envelope
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "arbipair_data", got.Key)
	assert.Equal(t, int64(1700000000000), got.LastRefreshTime)
	assert.JSONEq(t, `[{"pair":"BTC / ETH"}]`, string(got.Data))
}

func TestHubRejectsFailedHandshakeAuth(t *testing.T) {
	_, srv := startHub(t, func(r *http.Request) error {
		if r.URL.Query().Get("token") != "good" {
			return errors.New("invalid token")
		}
		return nil
	})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?token=good", nil)
	require.NoError(t, err)
	conn.Close()
}

func TestHubUnregistersClosedConnections(t *testing.T) {
	hub, srv := startHub(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	waitForSubscribers(t, hub, 1)

	conn.Close()
	waitForSubscribers(t, hub, 0)
}
