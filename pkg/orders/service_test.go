package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/plugup/shipment-tracking/pkg/tracking"
	"github.com/plugup/shipment-tracking/pkg/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)

type fakeSource struct {
	rows  []warehouse.OrderItemRow
	err   error
	since time.Time
}

func (f *fakeSource) FetchRecentOrderItems(_ context.Context, _ []tracking.Marketplace, since time.Time) ([]warehouse.OrderItemRow, error) {
	f.since = since
	return f.rows, f.err
}

type fakeSink struct {
	sent    []Payload
	failed  map[string]bool
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeSink) Send(_ context.Context, payloads []Payload) Result {
	if f.block != nil {
		close(f.entered)
		<-f.block
	}
	result := Result{Total: len(payloads)}
	for _, p := range payloads {
		f.sent = append(f.sent, p)
		if f.failed[p.Order] {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("Order %s (%s): Failed: 400 - bad", p.Order, p.MarketPlace))
			continue
		}
		result.Successful++
	}
	return result
}

func newService(source *fakeSource, sink *fakeSink) *Service {
	svc := NewService(source, sink, tracking.Marketplaces, 65*time.Minute)
	svc.now = func() time.Time { return asOf }
	return svc
}

func TestRunSendsOrders(t *testing.T) {
	missing := item("W-3", "SKU-1", 1)
	missing.OrderCreatedAt = nil
	source := &fakeSource{rows: []warehouse.OrderItemRow{
		item("W-1", "SKU-1", 1), item("W-1", "SKU-2", 1), item("W-2", "SKU-1", 1), missing,
	}}
	sink := &fakeSink{failed: map[string]bool{"W-2": true}}

	summary, err := newService(source, sink).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, summary.Status)
	assert.Equal(t, asOf.Add(-65*time.Minute), source.since)
	assert.Equal(t, 4, summary.OrderItems)
	assert.Equal(t, 1, summary.TransformErrors)
	assert.Equal(t, 2, summary.TotalOrders)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 2)
	assert.Contains(t, summary.Errors[0], "W-3")
	assert.Contains(t, summary.Errors[1], "W-2")
	assert.Len(t, sink.sent, 2)
}

func TestRunNoOrders(t *testing.T) {
	sink := &fakeSink{}

	summary, err := newService(&fakeSource{}, sink).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunNoOrders, summary.Status)
	assert.Equal(t, "No orders to process", summary.Message)
	assert.Empty(t, sink.sent)
}

func TestRunCapsSummaryErrors(t *testing.T) {
	var rows []warehouse.OrderItemRow
	for i := 0; i < 15; i++ {
		rows = append(rows, item(fmt.Sprintf("W-%02d", i), "SKU-1", 1))
	}
	failed := map[string]bool{}
	for _, r := range rows {
		failed[r.OrderID] = true
	}

	summary, err := newService(&fakeSource{rows: rows}, &fakeSink{failed: failed}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15, summary.Failed)
	assert.Len(t, summary.Errors, maxSummaryErrors)
}

func TestOrderSyncEndpoint(t *testing.T) {
	source := &fakeSource{rows: []warehouse.OrderItemRow{item("W-1", "SKU-1", 1)}}
	router := mux.NewRouter()
	NewHTTPHandler(newService(source, &fakeSink{})).Register(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders/sync", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var summary RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, RunCompleted, summary.Status)
	assert.Equal(t, 1, summary.Successful)

	source.err = errors.New("warehouse down")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders/sync", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "warehouse down")
}

func TestOrderRunsDoNotOverlap(t *testing.T) {
	source := &fakeSource{rows: []warehouse.OrderItemRow{item("W-1", "SKU-1", 1)}}
	sink := &fakeSink{block: make(chan struct{}), entered: make(chan struct{})}
	svc := newService(source, sink)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Run(context.Background())
		done <- err
	}()
	<-sink.entered

	router := mux.NewRouter()
	NewHTTPHandler(svc).Register(router)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders/sync", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(sink.block)
	require.NoError(t, <-done)
}
