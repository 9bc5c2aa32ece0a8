package schedule

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shanmugaclinic/clinic-platform/internal/appointments"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

// Handler handles HTTP requests for doctor leave and day status management.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new schedule handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type leaveRequest struct {
	Date    string `json:"date"`
	Message string `json:"message"`
}

// ListLeaves handles GET /admin/leaves requests.
func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	leaves, err := h.service.ListLeaves(r.Context())
	if err != nil {
		h.logger.Error("failed to list leaves", "error", err)
		http.Error(w, `{"error": "something went wrong"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"leaves": leaves,
		"count":  len(leaves),
	})
}

// SetLeave handles POST /admin/leaves requests marking a date as leave.
func (h *Handler) SetLeave(w http.ResponseWriter, r *http.Request) {
	var req leaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if _, err := time.Parse(appointments.DateLayout, req.Date); err != nil {
		http.Error(w, `{"error": "date must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}
	leave, err := h.service.SetLeave(r.Context(), req.Date, req.Message)
	if err != nil {
		h.logger.Error("failed to set leave", "error", err, "date", req.Date)
		http.Error(w, `{"error": "something went wrong"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, leave)
}

// RemoveLeave handles DELETE /admin/leaves/{date} requests.
func (h *Handler) RemoveLeave(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse(appointments.DateLayout, date); err != nil {
		http.Error(w, `{"error": "date must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}
	if err := h.service.RemoveLeave(r.Context(), date); err != nil {
		h.logger.Error("failed to remove leave", "error", err, "date", date)
		http.Error(w, `{"error": "something went wrong"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DayStatus handles GET /doctor-status requests. Public so the booking
// page can show the on-leave banner before a patient fills the form.
func (h *Handler) DayStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.TodayStatus(r.Context())
	if err != nil {
		h.logger.Error("failed to load day status", "error", err)
		http.Error(w, `{"error": "something went wrong"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type dayStatusRequest struct {
	OnLeave bool   `json:"isOnLeave"`
	Message string `json:"message"`
}

// SetDayStatus handles POST /admin/doctor-status requests toggling
// today's availability.
func (h *Handler) SetDayStatus(w http.ResponseWriter, r *http.Request) {
	var req dayStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	status, err := h.service.SetTodayStatus(r.Context(), req.OnLeave, req.Message)
	if err != nil {
		h.logger.Error("failed to set day status", "error", err)
		http.Error(w, `{"error": "something went wrong"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
