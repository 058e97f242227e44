package pipeline

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/api/v1/sync", h.handleSync).Methods(http.MethodPost)
}

func (h *HTTPHandler) handleSync(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Run(r.Context())
	if errors.Is(err, ErrRunInProgress) {
		writeJSON(w, http.StatusConflict, map[string]string{"status": RunError, "message": err.Error()})
		return
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, summary)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
