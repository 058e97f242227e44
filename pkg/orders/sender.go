package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/plugup/shipment-tracking/pkg/common/logger"
	"github.com/plugup/shipment-tracking/pkg/httpclient"
	"github.com/plugup/shipment-tracking/pkg/observability/metrics"
)

const (
	maxRetryDelay  = 30 * time.Second
	maxBodySnippet = 100
	maxBodyRead    = 64 << 10
)

type Options struct {
	URL        string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

type Result struct {
	Total      int      `json:"total_orders"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

// Sender posts one order at a time to the order webhook. Server errors and
// timeouts are retried; other failures are final.
type Sender struct {
	url     string
	timeout time.Duration
	client  *http.Client
	backoff httpclient.Backoff
}

func NewSender(opts Options) *Sender {
	return &Sender{
		url:     opts.URL,
		timeout: opts.Timeout,
		client:  httpclient.NewBearer(opts.Timeout, opts.Token),
		backoff: httpclient.Backoff{
			Attempts:  opts.MaxRetries + 1,
			BaseDelay: opts.BaseDelay,
			MaxDelay:  maxRetryDelay,
			OnRetry: func(attempt int, err error) {
				metrics.OrderWebhookRetries.Inc()
				logger.Log.WithError(err).WithField("attempt", attempt).Warn("Retrying order webhook")
			},
		},
	}
}

func (s *Sender) Send(ctx context.Context, payloads []Payload) Result {
	result := Result{Total: len(payloads)}
	logger.Log.WithField("total_orders", len(payloads)).Info("Starting order webhook batch")

	for _, p := range payloads {
		if err := s.sendOne(ctx, p); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("Order %s (%s): %s", p.Order, p.MarketPlace, s.describe(err)))
			metrics.OrderWebhooks.WithLabelValues("failed").Inc()
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"order":       p.Order,
				"marketplace": p.MarketPlace,
			}).Error("Order webhook failed")
			continue
		}
		result.Successful++
		metrics.OrderWebhooks.WithLabelValues("success").Inc()
	}

	logger.Log.WithFields(map[string]interface{}{
		"total_orders": result.Total,
		"successful":   result.Successful,
		"failed":       result.Failed,
	}).Info("Order webhook batch completed")
	return result
}

func (s *Sender) sendOne(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	return s.backoff.Retry(ctx, func() error {
		status, payload, err := s.post(ctx, body)
		if err != nil {
			if httpclient.IsTimeout(err) {
				return err
			}
			return httpclient.Permanent(err)
		}
		if status == http.StatusOK || status == http.StatusCreated {
			return nil
		}
		statusErr := &httpclient.StatusError{StatusCode: status, Body: snippet(payload)}
		if status >= 500 {
			return statusErr
		}
		return httpclient.Permanent(statusErr)
	})
}

func (s *Sender) post(ctx context.Context, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyRead))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, payload, nil
}

func (s *Sender) describe(err error) string {
	var statusErr *httpclient.StatusError
	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf("Failed: %d - %s", statusErr.StatusCode, statusErr.Body)
	case httpclient.IsTimeout(err):
		return fmt.Sprintf("Timeout after %s", s.timeout)
	default:
		return fmt.Sprintf("Exception: %v", err)
	}
}

func snippet(b []byte) string {
	if len(b) > maxBodySnippet {
		return string(b[:maxBodySnippet])
	}
	return string(b)
}
