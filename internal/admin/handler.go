package admin

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shanmugaclinic/clinic-platform/internal/http/middleware"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

// Handler exchanges the shared admin password for a short-lived session
// token used by the admin dashboard.
type Handler struct {
	password string
	secret   string
	tokenTTL time.Duration
	logger   *logging.Logger

	now func() time.Time
}

// NewHandler creates an admin auth handler.
func NewHandler(password, secret string, tokenTTL time.Duration, logger *logging.Logger) *Handler {
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		password: password,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   logger,
		now:      time.Now,
	}
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login handles POST /admin/login requests.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.password == "" || h.secret == "" {
		http.Error(w, `{"error": "admin auth disabled"}`, http.StatusServiceUnavailable)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.password)) != 1 {
		h.logger.Warn("admin login rejected", "remote_ip", r.RemoteAddr)
		http.Error(w, `{"error": "invalid credentials"}`, http.StatusUnauthorized)
		return
	}

	issued := h.now()
	expires := issued.Add(h.tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   middleware.AdminSubject,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.secret))
	if err != nil {
		h.logger.Error("failed to sign admin token", "error", err)
		http.Error(w, `{"error": "something went wrong"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{Token: signed, ExpiresAt: expires})
}
