// Package webhook delivers signed event payloads to a single configured
// HTTP endpoint.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ehr/fhirtransform/internal/platform/notification"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderEventID   = "X-Webhook-ID"
	HeaderTimestamp = "X-Webhook-Timestamp"
)

// SignPayload returns the hex HMAC-SHA256 of payload under secret.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

type Config struct {
	URL        string
	Secret     string
	MaxRetries int
	Timeout    time.Duration
	RetryWait  time.Duration
}

// Deliverer POSTs events to Config.URL. Transport errors, 429 and 5xx
// responses are retried by the resty client up to MaxRetries times with
// exponential backoff starting at RetryWait.
type Deliverer struct {
	client *resty.Client
	url    string
	secret string
}

func New(cfg Config) (*Deliverer, error) {
	if err := validateURL(cfg.URL); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "fhir-transformer-webhook/1").
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(maxRetryWait(cfg.RetryWait, cfg.MaxRetries)).
		AddRetryCondition(retryable)

	return &Deliverer{client: client, url: cfg.URL, secret: cfg.Secret}, nil
}

// maxRetryWait is the wait before the last retry, capped at a minute.
func maxRetryWait(wait time.Duration, retries int) time.Duration {
	for i := 0; i < retries && wait < time.Minute; i++ {
		wait *= 2
	}
	return min(wait, time.Minute)
}

// retryable reports whether an attempt is worth repeating.
func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= 500
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("webhook url must use http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("webhook url %q has no host", raw)
	}
	return nil
}

func (d *Deliverer) Name() string { return "webhook" }

// Publish implements notification.Publisher.
func (d *Deliverer) Publish(ctx context.Context, evt notification.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req := d.client.R().
		SetContext(ctx).
		SetHeader(HeaderEventID, evt.ID).
		SetHeader(HeaderTimestamp, evt.Timestamp.UTC().Format(time.RFC3339)).
		SetBody(payload)
	if d.secret != "" {
		req.SetHeader(HeaderSignature, "sha256="+SignPayload(payload, d.secret))
	}

	resp, err := req.Post(d.url)
	if err != nil {
		return fmt.Errorf("deliver %s: %w", evt.Type, err)
	}
	if resp.IsError() {
		return fmt.Errorf("deliver %s: endpoint responded %d", evt.Type, resp.StatusCode())
	}
	return nil
}
