package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/plugup/shipment-tracking/pkg/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(store *memStore, token string) *mux.Router {
	router := mux.NewRouter()
	gate := NewGate(store, NewLocalLocker(), nil, 4)
	NewHTTPHandler(gate, store, token, 1<<20).Register(router)
	return router
}

func post(t *testing.T, h http.Handler, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBatchEndpointRequiresBearerToken(t *testing.T) {
	router := newTestRouter(newMemStore(), "secret")

	rec := post(t, router, models.TrackingEndpointPath, "", models.BatchRequest{Events: []models.TrackingEvent{event("W-1", "delivered")}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(t, router, models.TrackingEndpointPath, "wrong", models.BatchRequest{Events: []models.TrackingEvent{event("W-1", "delivered")}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBatchEndpointRejectsEmptyBatch(t *testing.T) {
	router := newTestRouter(newMemStore(), "secret")

	rec := post(t, router, models.TrackingEndpointPath, "secret", models.BatchRequest{Events: []models.TrackingEvent{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "non-empty")

	req := httptest.NewRequest(http.MethodPost, models.TrackingEndpointPath, bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer secret")
	bad := httptest.NewRecorder()
	router.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestBatchEndpointAppliesEvents(t *testing.T) {
	store := newMemStore()
	store.addOrder("walm", "W-1", tenantA)
	router := newTestRouter(store, "secret")

	invalid := event("W-1", "delivered")
	invalid.Marketplace = "ebay"
	rec := post(t, router, models.TrackingEndpointPath, "secret", models.BatchRequest{Events: []models.TrackingEvent{
		event("W-1", "delivered"),
		event("W-9", "delivered"),
		invalid,
	}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.BatchStatusPartialSuccess, resp.Status)
	assert.Equal(t, 3, resp.Processed)
	assert.Equal(t, 1, resp.Created)
	assert.Equal(t, 1, resp.Skipped)
	assert.Equal(t, 1, resp.Errors)
	assert.Len(t, resp.Details.CreatedIDs, 1)
	assert.NotNil(t, resp.Details.UpdatedIDs)
}

func TestRegisterOrderEndpoint(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store, "")

	req := models.RegisterOrderRequest{Marketplace: "WALM", MarketplaceOrderID: "W-1", CompanyID: tenantA}
	rec := post(t, router, "/api/v1/orders", "", req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.RegisterOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Created)

	rec = post(t, router, "/api/v1/orders", "", req)
	require.Equal(t, http.StatusOK, rec.Code)
	var again models.RegisterOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Equal(t, created.ID, again.ID)

	order, err := store.FindOrder(context.Background(), "walm", "W-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, order.ID)

	req.CompanyID = tenantB
	assert.Equal(t, http.StatusConflict, post(t, router, "/api/v1/orders", "", req).Code)

	req.Marketplace = "ebay"
	assert.Equal(t, http.StatusBadRequest, post(t, router, "/api/v1/orders", "", req).Code)
}
