package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/libradesk/libradesk/internal/apperrors"
	"github.com/libradesk/libradesk/internal/audit"
	"github.com/libradesk/libradesk/internal/auth"
	"github.com/libradesk/libradesk/internal/books"
	"github.com/libradesk/libradesk/internal/config"
	"github.com/libradesk/libradesk/internal/identity"
	"github.com/libradesk/libradesk/internal/invites"
	"github.com/libradesk/libradesk/internal/mailer"
	"github.com/libradesk/libradesk/internal/roles"
)

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(pool *pgxpool.Pool, cfg *config.Config, tracker *auth.LockoutTracker) *chi.Mux {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)   // Set RemoteAddr to real IP
	r.Use(RequestIDMiddleware) // Add request ID to context
	r.Use(LoggingMiddleware)   // Structured request logging
	r.Use(RecoveryMiddleware)  // Recover from panics
	r.Use(auth.AuthMiddleware(cfg.JWTSecret))

	identities := identity.NewStore(pool)
	roleStore := roles.NewStore(pool)
	auditor := audit.NewWriter(pool)
	sender := mailer.NewClient(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailTimeoutMS)

	inviteService := invites.NewService(invites.Deps{
		Identities: identities,
		Roles:      roleStore,
		Ledger:     invites.NewStore(pool),
		Sender:     sender,
		Auditor:    auditor,

		InviteTTL: time.Duration(cfg.InviteTTLHours) * time.Hour,
		LoginURL:  cfg.BaseURL + "/login",
		EmailFrom: cfg.EmailFrom,
	})

	// Health check routes (no authentication required)
	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(pool))

	// Serverless-function surface with its own permissive CORS contract;
	// the invite handlers set their headers on every response.
	r.Route("/functions", func(r chi.Router) {
		r.Options("/invite-admin", invites.HandlePreflight)
		r.Post("/invite-admin", invites.HandleInviteAdmin(inviteService))
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{cfg.BaseURL},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))

		// Authentication
		r.Route("/auth", func(r chi.Router) {
			r.With(LoginRateLimitMiddleware(cfg.LoginRateLimitRPM)).
				Post("/login", auth.HandleLogin(identities, auditor, tracker, cfg.JWTSecret, cfg.SessionDays))
			r.Post("/accept-invite", auth.HandleAcceptInvite(identities, auditor))
		})

		// Book catalog: reads are public, writes are admin-only
		r.Route("/books", func(r chi.Router) {
			r.Get("/", books.HandleList(pool))
			r.Get("/{book_id}", books.HandleGet(pool))

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin(roleStore))
				r.Post("/", books.HandleCreate(pool, auditor))
				r.Put("/{book_id}", books.HandleUpdate(pool, auditor))
				r.Delete("/{book_id}", books.HandleDelete(pool, auditor))
			})
		})
	})

	return r
}

// handleHealthz returns a simple liveness check
// Always returns 200 OK if the service is running
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleReadyz returns a readiness check that includes database connectivity
// Returns 200 OK if service is ready to accept traffic, 503 if not
func handleReadyz(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			apperrors.WriteServiceUnavailable(w, r, "Database connection failed")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "ready",
			"db":     "ok",
		})
	}
}
