package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(id string) Payload {
	return Payload{Order: id, MarketPlace: "walm", OrderCreatedAt: "2025-03-10T09:00:00-03:00", SKU: map[string]SKU{}}
}

func newSender(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Sender {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewSender(Options{
		URL:        server.URL + "/webhooks/orders",
		Token:      "webhook-token",
		Timeout:    timeout,
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
	})
}

func TestSendPostsEachOrderWithBearerToken(t *testing.T) {
	var mu sync.Mutex
	var got []string
	s := newSender(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhooks/orders", r.URL.Path)
		assert.Equal(t, "Bearer webhook-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var p Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		mu.Lock()
		got = append(got, p.Order)
		mu.Unlock()
		if p.Order == "W-2" {
			w.WriteHeader(http.StatusCreated)
		}
	}, time.Second)

	result := s.Send(context.Background(), []Payload{payload("W-1"), payload("W-2")})
	assert.Equal(t, []string{"W-1", "W-2"}, got)
	assert.Equal(t, Result{Total: 2, Successful: 2}, result)
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls int32
	s := newSender(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}, time.Second)

	result := s.Send(context.Background(), []Payload{payload("W-1")})
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, result.Successful)
}

func TestSendGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	s := newSender(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(strings.Repeat("x", 300)))
	}, time.Second)

	result := s.Send(context.Background(), []Payload{payload("W-1")})
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Order W-1 (walm): Failed: 502 - "+strings.Repeat("x", 100), result.Errors[0])
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusTooManyRequests} {
		var calls int32
		s := newSender(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(status)
			w.Write([]byte(`{"error":"rejected"}`))
		}, time.Second)

		result := s.Send(context.Background(), []Payload{payload("W-1"), payload("W-2")})
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls), status)
		assert.Equal(t, 2, result.Failed)
		assert.Contains(t, result.Errors[0], `rejected`)
	}
}

func TestSendRetriesTimeouts(t *testing.T) {
	var calls int32
	s := newSender(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		w.WriteHeader(http.StatusCreated)
	}, 50*time.Millisecond)

	result := s.Send(context.Background(), []Payload{payload("W-1")})
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, result.Successful)
}

func TestSendReportsTimeout(t *testing.T) {
	s := newSender(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, 20*time.Millisecond)

	result := s.Send(context.Background(), []Payload{payload("W-1")})
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, "Order W-1 (walm): Timeout after 20ms", result.Errors[0])
}

func TestSendConnectionErrorIsFinal(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	s := NewSender(Options{URL: url, Token: "t", Timeout: time.Second, MaxRetries: 3, BaseDelay: time.Second})
	start := time.Now()
	result := s.Send(context.Background(), []Payload{payload("W-1")})
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Errors[0], "Exception:")
}
