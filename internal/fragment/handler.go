package handler

import (
	"encoding/json"
	"errors"
	"fragmentone/internal/fragment/model"
	"fragmentone/internal/fragment/service"
	"fragmentone/middleware"
	"fragmentone/pkg/logger"
	"net/http"
	"time"
)

type FragmentHandler struct {
	Service *service.FragmentService
}

func NewFragmentHandler(service *service.FragmentService) *FragmentHandler {
	return &FragmentHandler{Service: service}
}

func (h *FragmentHandler) CreateFragment(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req model.CreateFragmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	f, err := h.Service.CreateFragment(r.Context(), userID, req)
	if errors.Is(err, service.ErrInvalid) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create fragment: %v", err)
		http.Error(w, "Failed to create fragment", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, f)
}

func (h *FragmentHandler) ListFragments(w http.ResponseWriter, r *http.Request) {
	since, ok := instantParam(w, r, "since")
	if !ok {
		return
	}

	fragments, err := h.Service.ListSince(r.Context(), since)
	if err != nil {
		logger.Sugar.Errorf("Error fetching fragments: %v", err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, fragments)
}

func (h *FragmentHandler) ListMyFragments(w http.ResponseWriter, r *http.Request) {
	since, ok := instantParam(w, r, "since")
	if !ok {
		return
	}

	userID := middleware.UserID(r.Context())
	fragments, err := h.Service.ListByAuthorSince(r.Context(), userID, since)
	if err != nil {
		logger.Sugar.Errorf("Error fetching fragments for %s: %v", userID, err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, fragments)
}

func (h *FragmentHandler) DeleteFragments(w http.ResponseWriter, r *http.Request) {
	before, ok := instantParam(w, r, "before")
	if !ok {
		return
	}

	deleted, err := h.Service.Sweep(r.Context(), middleware.UserID(r.Context()), before)
	if errors.Is(err, service.ErrInvalid) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to sweep fragments: %v", err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, model.DeleteResponse{Deleted: deleted})
}

func instantParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		http.Error(w, "Missing "+name+" parameter", http.StatusBadRequest)
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		http.Error(w, "Invalid "+name+" parameter: want RFC3339", http.StatusBadRequest)
		return time.Time{}, false
	}
	return t, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
