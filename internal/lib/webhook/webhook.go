// Package webhook builds, signs and delivers outgoing webhook payloads.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/deppfellow/partners/internal/model"
)

const (
	SignatureHeader = "Partners-Signature"
	EventHeader     = "Partners-Event"
	userAgent       = "Partners-Webhooks/1.0"
)

// Sign returns hex(hmac_sha256(secret, body)).
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body under secret.
func Verify(secret string, body []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// NewSecret returns a random signing secret prefixed with whsec_.
func NewSecret() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(b), nil
}

// BuildPayload wraps data in the envelope receivers expect.
func BuildPayload(event model.WebhookEvent, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal webhook data")
	}
	return json.Marshal(model.WebhookPayload{
		ID:        model.NewID(model.PrefixWebhookEvent),
		Event:     event,
		CreatedAt: time.Now().UTC(),
		Data:      raw,
	})
}

// DeliveryError is returned when the receiver answered with a non-2xx status.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook receiver responded with status %d", e.StatusCode)
}

// Sender posts signed payloads.
type Sender struct {
	client *http.Client
}

func NewSender(timeout time.Duration) *Sender {
	return &Sender{client: &http.Client{Timeout: timeout}}
}

// Send posts body to url with the signature header.
func (s *Sender) Send(ctx context.Context, url, secret string, event model.WebhookEvent, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(EventHeader, string(event))
	req.Header.Set(SignatureHeader, Sign(secret, body))

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to deliver webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &DeliveryError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	return nil
}
