package reconcile

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/plugup/shipment-tracking/pkg/common/logger"
	"github.com/plugup/shipment-tracking/pkg/common/models"
	"github.com/plugup/shipment-tracking/pkg/tracking"
)

type HTTPHandler struct {
	gate    *Gate
	store   Store
	token   string
	maxBody int64
}

// NewHTTPHandler serves the tracking store endpoints. An empty token turns
// off the bearer check.
func NewHTTPHandler(gate *Gate, store Store, token string, maxBody int64) *HTTPHandler {
	return &HTTPHandler{gate: gate, store: store, token: token, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	api := router.NewRoute().Subrouter()
	api.Use(h.authenticate)
	api.HandleFunc(models.TrackingEndpointPath, h.handleBatch).Methods(http.MethodPost)
	api.HandleFunc("/api/v1/orders", h.handleRegisterOrder).Methods(http.MethodPost)
}

func (h *HTTPHandler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *HTTPHandler) handleBatch(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req models.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid tracking batch payload")
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateBatch(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := Summarize(h.gate.ApplyBatch(r.Context(), req.Events))
	logger.Log.WithFields(map[string]interface{}{
		"status":    resp.Status,
		"processed": resp.Processed,
		"created":   resp.Created,
		"updated":   resp.Updated,
		"skipped":   resp.Skipped,
		"errors":    resp.Errors,
	}).Info("Tracking batch applied")

	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) handleRegisterOrder(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req models.RegisterOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	m, ok := tracking.ParseMarketplace(req.Marketplace)
	if !ok {
		writeError(w, http.StatusBadRequest, "marketplace must be one of meli, fala, walm, cenc")
		return
	}
	if strings.TrimSpace(req.MarketplaceOrderID) == "" || strings.TrimSpace(req.CompanyID) == "" {
		writeError(w, http.StatusBadRequest, "marketplace_order_id and company_id are required")
		return
	}

	order, created, err := h.store.RegisterOrder(r.Context(), Order{
		Marketplace:        m.Code(),
		MarketplaceOrderID: strings.TrimSpace(req.MarketplaceOrderID),
		CompanyID:          strings.TrimSpace(req.CompanyID),
	})
	if errors.Is(err, ErrTenantMismatch) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		logger.Log.WithError(err).Error("failed to register order")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, models.RegisterOrderResponse{ID: order.ID, Created: created})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
