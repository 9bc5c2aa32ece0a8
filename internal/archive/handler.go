package archive

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

// Handler exposes the admin trigger for day exports.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a new archive handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// ExportDay handles POST /admin/archive/{date} requests.
func (h *Handler) ExportDay(w http.ResponseWriter, r *http.Request) {
	if !h.store.Enabled() {
		http.Error(w, `{"error": "archival not configured"}`, http.StatusServiceUnavailable)
		return
	}
	date := chi.URLParam(r, "date")
	export, err := h.store.ExportDay(r.Context(), date)
	if err != nil {
		h.logger.Error("day export failed", "error", err, "date", date)
		http.Error(w, `{"error": "export failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"date":  export.Date,
		"count": export.Count,
	})
}
