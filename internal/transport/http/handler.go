package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/EricGoldwein/run320-sub001/internal/model"
	"github.com/EricGoldwein/run320-sub001/internal/repository"
	"github.com/EricGoldwein/run320-sub001/internal/service"
)

type Handler struct {
	svc service.Ledger
}

func NewHandler(svc service.Ledger) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.Health)
	r.Route("/wingo", func(r chi.Router) {
		r.Post("/award", h.Award)
		r.Post("/spend", h.Spend)
		r.Get("/history/{userID}", h.History)
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) Award(w http.ResponseWriter, r *http.Request) {
	var req model.AwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID <= 0 {
		h.respondError(w, http.StatusBadRequest, "userId is required")
		return
	}
	res, err := h.svc.Award(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

func (h *Handler) Spend(w http.ResponseWriter, r *http.Request) {
	var req model.SpendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID <= 0 {
		h.respondError(w, http.StatusBadRequest, "userId is required")
		return
	}
	res, err := h.svc.Spend(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		h.respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	res, err := h.svc.History(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// respondServiceError maps the ledger error taxonomy onto HTTP statuses.
// Anything outside the taxonomy is a store failure: logged server-side,
// opaque to the client.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrInvalidAmount):
		h.respondError(w, http.StatusBadRequest, "Amount must be positive")
	case errors.Is(err, repository.ErrInsufficientBalance):
		h.respondError(w, http.StatusBadRequest, "Insufficient WINGO balance")
	case errors.Is(err, repository.ErrUnknownUser):
		h.respondError(w, http.StatusBadRequest, "Unknown user")
	case errors.Is(err, repository.ErrUnknownEvent):
		h.respondError(w, http.StatusBadRequest, "Unknown event")
	case errors.Is(err, repository.ErrDuplicateRequest):
		h.respondError(w, http.StatusConflict, "Request already processed")
	default:
		slog.Error("wingo: store failure", "error", err)
		h.respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
