// Package dispatch delivers canonical tracking events to the tracking store
// in fixed-size batches.
package dispatch

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
	"github.com/plugup/shipment-tracking/pkg/common/models"
	"github.com/plugup/shipment-tracking/pkg/httpclient"
	"github.com/plugup/shipment-tracking/pkg/observability/metrics"
)

const (
	connectivityTimeout = 10 * time.Second
	maxBodySnippet      = 200
	maxRetryDelay       = 30 * time.Second
)

// Publisher receives batches that could not be delivered.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType, source, key string, data map[string]interface{}) error
}

type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	BatchSize  int
	MaxRetries int
	BaseDelay  time.Duration
	DLQ        Publisher
}

type Dispatcher struct {
	client    *http.Client
	endpoint  string
	batchSize int
	backoff   httpclient.Backoff
	dlq       Publisher
}

// Result summarizes one Send call.
type Result struct {
	Total      int      `json:"total_events"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Created    int      `json:"created"`
	Updated    int      `json:"updated"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors"`
}

func New(opts Options) *Dispatcher {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	}

	client := httpclient.NewBearer(opts.Timeout, opts.Token)

	return &Dispatcher{
		client:    client,
		endpoint:  opts.BaseURL + models.TrackingEndpointPath,
		batchSize: batchSize,
		backoff: httpclient.Backoff{
			Attempts:  retries + 1,
			BaseDelay: opts.BaseDelay,
			MaxDelay:  maxRetryDelay,
			OnRetry: func(attempt int, err error) {
				metrics.DispatchRetries.Inc()
				logger.Log.WithError(err).WithField("attempt", attempt).Warn("Retrying tracking batch")
			},
		},
		dlq: opts.DLQ,
	}
}

// Chunk splits events into consecutive batches of at most size events.
func Chunk(events []models.TrackingEvent, size int) [][]models.TrackingEvent {
	if size <= 0 {
		size = len(events)
	}
	var batches [][]models.TrackingEvent
	for start := 0; start < len(events); start += size {
		end := min(start+size, len(events))
		batches = append(batches, events[start:end])
	}
	return batches
}

// Send delivers every batch. A failed batch is counted against the result
// and handed to the DLQ; later batches are still attempted.
func (d *Dispatcher) Send(ctx context.Context, events []models.TrackingEvent) Result {
	result := Result{Total: len(events)}
	if len(events) == 0 {
		logger.Log.Info("No tracking events to send")
		return result
	}

	batches := Chunk(events, d.batchSize)
	logger.Log.WithFields(map[string]interface{}{
		"total_events":  len(events),
		"total_batches": len(batches),
		"batch_size":    d.batchSize,
	}).Info("Starting tracking batch delivery")

	for i, batch := range batches {
		n := i + 1
		resp, err := d.sendBatch(ctx, batch)
		if err != nil {
			metrics.DispatchBatches.WithLabelValues("failed").Inc()
			result.Failed += len(batch)
			result.Errors = append(result.Errors, fmt.Sprintf("batch %d: %v", n, err))
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"batch_index": n,
				"batch_size":  len(batch),
			}).Error("Tracking batch delivery failed")
			d.deadLetter(ctx, n, batch, err)
			continue
		}

		metrics.DispatchBatches.WithLabelValues("delivered").Inc()
		if resp == nil {
			result.Successful += len(batch)
			continue
		}
		result.Successful += resp.Created + resp.Updated
		result.Created += resp.Created
		result.Updated += resp.Updated
		result.Skipped += resp.Skipped
		result.Failed += resp.Errors
		result.Errors = append(result.Errors, resp.Details.ErrorMessages...)

		logger.Log.WithFields(map[string]interface{}{
			"batch_index": n,
			"created":     resp.Created,
			"updated":     resp.Updated,
			"skipped":     resp.Skipped,
			"errors":      resp.Errors,
		}).Info("Tracking batch processed")
	}

	logger.Log.WithFields(map[string]interface{}{
		"total_events": result.Total,
		"successful":   result.Successful,
		"failed":       result.Failed,
	}).Info("Tracking batch delivery completed")
	return result
}

// sendBatch returns a nil response when the store answered 200 without a
// JSON object body.
func (d *Dispatcher) sendBatch(ctx context.Context, batch []models.TrackingEvent) (*models.BatchResponse, error) {
	body, err := json.Marshal(models.BatchRequest{Events: batch})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch: %w", err)
	}

	var out *models.BatchResponse
	err = d.backoff.Retry(ctx, func() error {
		status, payload, err := d.post(ctx, body)
		if err != nil {
			if httpclient.IsRetriable(err) {
				return err
			}
			return httpclient.Permanent(err)
		}
		if status != http.StatusOK {
			statusErr := &httpclient.StatusError{StatusCode: status, Body: snippet(payload)}
			if httpclient.IsRetriable(statusErr) {
				return statusErr
			}
			return httpclient.Permanent(statusErr)
		}

		var fields map[string]json.RawMessage
		if json.Unmarshal(payload, &fields) != nil || len(fields) == 0 {
			return nil
		}
		var resp models.BatchResponse
		if json.Unmarshal(payload, &resp) == nil {
			out = &resp
		}
		return nil
	})
	return out, err
}

func (d *Dispatcher) post(ctx context.Context, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, payload, nil
}

func (d *Dispatcher) deadLetter(ctx context.Context, n int, batch []models.TrackingEvent, cause error) {
	if d.dlq == nil {
		return
	}
	data := map[string]interface{}{
		"batch":  n,
		"error":  cause.Error(),
		"events": batch,
	}
	if err := d.dlq.PublishEvent(ctx, models.EventTypeBatchFailed, "tracking-sync", "", data); err != nil {
		logger.Log.WithError(err).WithField("batch_index", n).Error("Failed to dead-letter tracking batch")
	}
}

// ErrUnreachable is returned when the connectivity probe rules out delivery.
var ErrUnreachable = errors.New("tracking store unreachable")

// CheckConnectivity posts an empty batch. The store answers 400 to that, so
// 400 means reachable; 401 and 404 mean misconfigured.
func (d *Dispatcher) CheckConnectivity(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, connectivityTimeout)
	defer cancel()

	body, _ := json.Marshal(models.BatchRequest{Events: []models.TrackingEvent{}})
	status, payload, err := d.post(ctx, body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	text := snippet(payload)
	switch status {
	case http.StatusBadRequest:
		return fmt.Sprintf("Connectivity OK - got expected validation error (400): %s", text), nil
	case http.StatusUnauthorized:
		return "", fmt.Errorf("%w: authentication failed (401): %s", ErrUnreachable, text)
	case http.StatusNotFound:
		return "", fmt.Errorf("%w: endpoint not found (404): %s", ErrUnreachable, text)
	default:
		return fmt.Sprintf("Connectivity OK - got response (%d): %s", status, text), nil
	}
}

func snippet(b []byte) string {
	if len(b) > maxBodySnippet {
		return string(b[:maxBodySnippet])
	}
	return string(b)
}
