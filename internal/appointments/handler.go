package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

// Handler handles HTTP requests for booking and appointment management.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new appointments handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type rejectionResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Book handles POST /appointments requests.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var req BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode booking request", "error", err)
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	// QR entry points land with ?source=qr; keep it on the record.
	if src := r.URL.Query().Get("source"); src != "" {
		req.Source = src
	}

	appt, err := h.service.Book(r.Context(), req)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(appt)
}

func (h *Handler) writeBookingError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrInvalidInput) {
		writeJSON(w, http.StatusBadRequest, rejectionResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}
	if rej, ok := AsRejection(err); ok {
		writeJSON(w, http.StatusConflict, rejectionResponse{
			Error:   "booking_rejected",
			Reason:  string(rej.Reason),
			Message: rej.Message,
		})
		return
	}
	h.logger.Error("booking failed", "error", err)
	http.Error(w, `{"error": "something went wrong"}`, http.StatusInternalServerError)
}

// BookedTimes handles GET /appointments/booked-times?date=YYYY-MM-DD, used
// by the booking form to grey out taken slots.
func (h *Handler) BookedTimes(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, `{"error": "date required"}`, http.StatusBadRequest)
		return
	}
	times, err := h.service.BookedTimes(r.Context(), date)
	if err != nil {
		h.logger.Error("failed to load booked times", "error", err, "date", date)
		http.Error(w, `{"error": "something went wrong"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  date,
		"times": times,
		"slots": TimeSlots,
	})
}

// Queue handles GET /queue requests with the current projection snapshot.
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.TodayQueue(r.Context())
	if err != nil {
		h.logger.Error("failed to build queue snapshot", "error", err)
		http.Error(w, `{"error": "something went wrong"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// ListResponse is the response for listing appointments.
type ListResponse struct {
	Appointments []Appointment `json:"appointments"`
	Count        int           `json:"count"`
}

// List handles GET /admin/appointments requests, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	appts, err := h.service.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err)
		http.Error(w, `{"error": "something went wrong"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{
		Appointments: appts,
		Count:        len(appts),
	})
}

// Cancel handles POST /admin/appointments/{id}/cancel requests.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, `{"error": "id required"}`, http.StatusBadRequest)
		return
	}
	appt, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		h.writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type statusRequest struct {
	Status Status `json:"status"`
}

// UpdateStatus handles POST /admin/appointments/{id}/status requests.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, `{"error": "id required"}`, http.StatusBadRequest)
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	appt, err := h.service.Advance(r.Context(), id, req.Status)
	if err != nil {
		h.writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, `{"error": "appointment not found"}`, http.StatusNotFound)
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, `{"error": "invalid status transition"}`, http.StatusConflict)
	default:
		h.logger.Error("status update failed", "error", err)
		http.Error(w, `{"error": "something went wrong"}`, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
