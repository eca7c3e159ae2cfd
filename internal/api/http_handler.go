package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/kraabmod/profiles-service/internal/database"
	"github.com/kraabmod/profiles-service/internal/logging"
	"github.com/kraabmod/profiles-service/internal/mailer"
	"github.com/kraabmod/profiles-service/internal/store"
)

const (
	serviceName = "ProfilesService"

	defaultMaxUploadBytes = 25 << 20
	multipartMemory       = 8 << 20
)

// DBHealth is the view of the connection manager used by the health check.
type DBHealth interface {
	Ping(ctx context.Context) error
	State() database.State
}

// Options tune the HTTP handler.
type Options struct {
	// MaxUploadBytes bounds the multipart body of /api/sendEmail.
	MaxUploadBytes int64
	// MailRateLimit is the number of email requests per client IP per minute; 0 disables limiting.
	MailRateLimit int
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	profileStore store.ProfileStorer
	mailer       mailer.Sender
	db           DBHealth
	validate     *validator.Validate
	opts         Options
}

// NewHTTPHandler creates a new HTTPHandler with dependencies. db may be nil,
// in which case the health check reports the database as unknown.
func NewHTTPHandler(ps store.ProfileStorer, ms mailer.Sender, db DBHealth, opts Options) *HTTPHandler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &HTTPHandler{
		profileStore: ps,
		mailer:       ms,
		db:           db,
		validate:     validator.New(),
		opts:         opts,
	}
}

// --- Helpers ---

// MessageResponse is the body of every error and of plain acknowledgements.
type MessageResponse struct {
	Message string `json:"message"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, MessageResponse{Message: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"Internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

// --- Misc Handlers ---

// Ping answers liveness probes.
func (h *HTTPHandler) Ping(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "pong"})
}

// Health reports the database status. It always answers 200; the payload
// carries the detail.
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	dbStatus := "unknown"
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		switch err := h.db.Ping(ctx); {
		case h.db.State() == database.StateReconnecting:
			dbStatus = "reconnecting"
		case err != nil:
			dbStatus = "unhealthy"
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Health check DB ping failed")
		default:
			dbStatus = "healthy"
		}
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"serviceName": serviceName,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"database":    dbStatus,
	})
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/ping", h.Ping)
	r.Get("/api/v1/healthz", h.Health)

	r.Route("/api/profiles", func(r chi.Router) {
		r.Get("/", h.ListProfiles)
		r.Post("/", h.CreateProfile)
		// Registered before /{id} so "slug" is never taken for an id.
		r.Get("/slug/{slug}", h.GetProfileBySlug)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetProfileByID)
			r.Patch("/", h.UpdateProfile)
			r.Delete("/", h.DeleteProfile)
		})
	})

	r.Group(func(r chi.Router) {
		if h.opts.MailRateLimit > 0 {
			r.Use(httprate.LimitByIP(h.opts.MailRateLimit, time.Minute))
		}
		r.Post("/api/sendEmail", h.SendEmail)
		r.Post("/api/sendEmailFromCalculator", h.SendEmailFromCalculator)
	})
}
