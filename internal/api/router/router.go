package router

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shanmugaclinic/clinic-platform/internal/admin"
	"github.com/shanmugaclinic/clinic-platform/internal/appointments"
	"github.com/shanmugaclinic/clinic-platform/internal/archive"
	httpmiddleware "github.com/shanmugaclinic/clinic-platform/internal/http/middleware"
	"github.com/shanmugaclinic/clinic-platform/internal/livequeue"
	"github.com/shanmugaclinic/clinic-platform/internal/schedule"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	AppointmentsHandler *appointments.Handler
	ScheduleHandler     *schedule.Handler
	AdminAuthHandler    *admin.Handler
	LiveQueueHandler    *livequeue.Handler
	ArchiveHandler      *archive.Handler
	AdminAuthSecret     string
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string

	// PublicBaseURL is where the booking page lives; /qr redirects there.
	PublicBaseURL string

	// BookingRateLimit is requests/sec per IP on the booking endpoint.
	// Zero disables rate limiting.
	BookingRateLimit float64
	BookingBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)

		book := public
		if cfg.BookingRateLimit > 0 {
			burst := cfg.BookingBurst
			if burst <= 0 {
				burst = 5
			}
			book = public.With(httpmiddleware.RateLimit(cfg.BookingRateLimit, burst))
		}
		book.Post("/appointments", cfg.AppointmentsHandler.Book)

		public.Get("/appointments/booked-times", cfg.AppointmentsHandler.BookedTimes)
		public.Get("/queue", cfg.AppointmentsHandler.Queue)
		public.Get("/doctor-status", cfg.ScheduleHandler.DayStatus)
		if cfg.LiveQueueHandler != nil {
			public.Handle("/queue/live", cfg.LiveQueueHandler.Live())
		}
		if cfg.PublicBaseURL != "" {
			public.Get("/qr", qrRedirect(cfg.PublicBaseURL))
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.AdminAuthHandler != nil {
			public.Post("/admin/login", cfg.AdminAuthHandler.Login)
		}
	})

	// Admin routes (protected by HMAC JWT)
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(adminRoutes chi.Router) {
			adminRoutes.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

			adminRoutes.Get("/appointments", cfg.AppointmentsHandler.List)
			adminRoutes.Post("/appointments/{id}/cancel", cfg.AppointmentsHandler.Cancel)
			adminRoutes.Post("/appointments/{id}/status", cfg.AppointmentsHandler.UpdateStatus)

			adminRoutes.Get("/leaves", cfg.ScheduleHandler.ListLeaves)
			adminRoutes.Post("/leaves", cfg.ScheduleHandler.SetLeave)
			adminRoutes.Delete("/leaves/{date}", cfg.ScheduleHandler.RemoveLeave)
			adminRoutes.Get("/doctor-status", cfg.ScheduleHandler.DayStatus)
			adminRoutes.Post("/doctor-status", cfg.ScheduleHandler.SetDayStatus)

			if cfg.ArchiveHandler != nil {
				adminRoutes.Post("/archive/{date}", cfg.ArchiveHandler.ExportDay)
			}
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// qrRedirect sends scanners of the printed clinic QR code to the booking
// page with the source tag so bookings record how the patient arrived.
func qrRedirect(baseURL string) http.HandlerFunc {
	target := baseURL
	if u, err := url.Parse(baseURL); err == nil {
		q := u.Query()
		q.Set("source", "qr")
		u.RawQuery = q.Encode()
		target = u.String()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, http.StatusFound)
	}
}
