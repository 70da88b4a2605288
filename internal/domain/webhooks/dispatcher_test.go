package webhooks

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDeliverSignsPayload(t *testing.T) {
	const secret = "whsec_testsecret"
	payload, _ := json.Marshal(map[string]string{"event_id": "01HYX3KQW7ERTV9XNBM2P8QJE1"})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, string(payload), string(body))
		require.Equal(t, "event.published", r.Header.Get("X-Eventops-Kind"))

		ts, err := strconv.ParseInt(r.Header.Get("X-Eventops-Timestamp"), 10, 64)
		require.NoError(t, err)

		signature := strings.TrimPrefix(r.Header.Get("X-Eventops-Signature"), "v1=")
		require.True(t, hmac.Equal([]byte(signature), []byte(Sign(secret, ts, body))))

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	dispatcher := NewDispatcher(5*time.Second, zerolog.Nop())
	status, err := dispatcher.Deliver(context.Background(), Endpoint{
		ULID:   "01HYX3KQW7ERTV9XNBM2P8QJW1",
		URL:    server.URL,
		Secret: secret,
	}, Delivery{Kind: KindEventPublished, Payload: payload})

	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, status)
}

func TestDeliverTreatsNon2xxAsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	dispatcher := NewDispatcher(5*time.Second, zerolog.Nop())
	status, err := dispatcher.Deliver(context.Background(), Endpoint{
		URL:    server.URL,
		Secret: "whsec_x",
	}, Delivery{Kind: KindEventCancelled, Payload: []byte(`{}`)})

	require.Error(t, err)
	require.Equal(t, http.StatusBadGateway, status)
}

func TestDeliverReportsTransportErrors(t *testing.T) {
	dispatcher := NewDispatcher(time.Second, zerolog.Nop())
	status, err := dispatcher.Deliver(context.Background(), Endpoint{
		URL:    "http://127.0.0.1:1",
		Secret: "whsec_x",
	}, Delivery{Kind: KindEventCancelled, Payload: []byte(`{}`)})

	require.Error(t, err)
	require.Zero(t, status)
}
