package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	headerSignature = "X-Eventops-Signature"
	headerTimestamp = "X-Eventops-Timestamp"
	headerKind      = "X-Eventops-Kind"
)

// Dispatcher performs the actual HTTP delivery of one signed payload.
type Dispatcher struct {
	client *http.Client
	logger zerolog.Logger
}

func NewDispatcher(timeout time.Duration, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "webhook_dispatcher").Logger(),
	}
}

// Sign computes the hex HMAC-SHA256 of "<timestamp>.<payload>" under the
// endpoint secret. Receivers recompute it to verify origin and freshness.
func Sign(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Deliver posts the payload to the endpoint. Any 2xx response counts as
// delivered; everything else, including transport errors, is a failure the
// queue will retry.
func (d *Dispatcher) Deliver(ctx context.Context, endpoint Endpoint, delivery Delivery) (int, error) {
	now := time.Now().Unix()
	signature := Sign(endpoint.Secret, now, delivery.Payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(delivery.Payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerKind, string(delivery.Kind))
	req.Header.Set(headerTimestamp, strconv.FormatInt(now, 10))
	req.Header.Set(headerSignature, "v1="+signature)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}

	d.logger.Debug().Str("endpoint", endpoint.ULID).Str("kind", string(delivery.Kind)).Int("status", resp.StatusCode).Msg("webhook delivered")
	return resp.StatusCode, nil
}
