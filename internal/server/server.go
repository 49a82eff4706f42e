package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/config"
	"github.com/dukerupert/allowance/internal/currency"
	"github.com/dukerupert/allowance/internal/handler"
	"github.com/dukerupert/allowance/internal/middleware"
	"github.com/dukerupert/allowance/internal/store"
	ws "github.com/dukerupert/allowance/internal/websocket"
)

var (
	loginLimit  = middleware.Limit{Requests: 10, Window: time.Minute}
	toggleLimit = middleware.Limit{Requests: 120, Window: time.Minute}
)

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	authH          *handler.AuthHandler
	familyH        *handler.FamilyHandler
	personH        *handler.PersonHandler
	choreH         *handler.ChoreHandler
	assignmentH    *handler.AssignmentHandler
	commissionH    *handler.CommissionHandler
	chartH         *handler.ChartHandler
	paymentH       *handler.PaymentHandler
	sessionStore   *store.SessionStore
	familyStore    *store.FamilyStore
	rateLimiter    *middleware.RateLimiter
	allowedOrigins []string
	logger         *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	familyStore := store.NewFamilyStore(db)
	personStore := store.NewPersonStore(db)
	choreStore := store.NewChoreStore(db)
	assignmentStore := store.NewAssignmentStore(db)
	commissionStore := store.NewCommissionStore(db)

	formatter, err := currency.NewFormatter(currency.DefaultCacheSize, cfg.Locale)
	if err != nil {
		return nil, fmt.Errorf("currency formatter: %w", err)
	}

	var google *auth.GoogleProvider
	if cfg.GoogleEnabled() {
		google = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.BaseURL)
	}

	return &Server{
		db:             db,
		hub:            hub,
		authH:          handler.NewAuthHandler(userStore, sessionStore, google, cfg.CookieSecure, logger.With("component", "auth")),
		familyH:        handler.NewFamilyHandler(familyStore, hub, logger.With("component", "family")),
		personH:        handler.NewPersonHandler(personStore, hub, logger.With("component", "person")),
		choreH:         handler.NewChoreHandler(choreStore, hub, logger.With("component", "chore")),
		assignmentH:    handler.NewAssignmentHandler(assignmentStore, personStore, choreStore, hub, logger.With("component", "assignment")),
		commissionH:    handler.NewCommissionHandler(commissionStore, personStore, choreStore, hub, cfg.Location, logger.With("component", "commission")),
		chartH:         handler.NewChartHandler(personStore, choreStore, assignmentStore, commissionStore, hub, cfg.Location, logger.With("component", "chart")),
		paymentH:       handler.NewPaymentHandler(familyStore, personStore, commissionStore, formatter, hub, logger.With("component", "payment")),
		sessionStore:   sessionStore,
		familyStore:    familyStore,
		rateLimiter:    middleware.NewRateLimiter(),
		allowedOrigins: cfg.AllowedOrigins,
		logger:         logger,
	}, nil
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("POST /register", s.limited(middleware.RealIP, loginLimit, s.authH.Register))
	outerMux.Handle("POST /login", s.limited(middleware.RealIP, loginLimit, s.authH.Login))
	outerMux.HandleFunc("POST /logout", s.authH.Logout)
	outerMux.HandleFunc("GET /auth/google", s.authH.GoogleLogin)
	outerMux.HandleFunc("GET /auth/google/callback", s.authH.GoogleCallback)

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)
	outerMux.Handle("/", middleware.RequireAuth(s.sessionStore)(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) limited(keyFunc func(*http.Request) string, l middleware.Limit, h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, keyFunc, l)(h)
}

// family wraps h so it only runs for members of {familyID}.
func (s *Server) family(h http.HandlerFunc) http.Handler {
	return middleware.RequireFamily(s.familyStore, s.logger.With("component", "family_auth"))(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/me", s.authH.Me)
	mux.HandleFunc("DELETE /api/me", s.authH.DeleteMe)

	mux.HandleFunc("GET /api/families", s.familyH.List)
	mux.HandleFunc("POST /api/families", s.familyH.Create)
	mux.Handle("GET /api/families/{familyID}", s.family(s.familyH.Get))
	mux.Handle("PUT /api/families/{familyID}", s.family(s.familyH.Update))
	mux.Handle("DELETE /api/families/{familyID}", s.family(s.familyH.Delete))
	mux.Handle("PUT /api/families/{familyID}/payment-categories", s.family(s.familyH.UpdatePaymentCategories))

	// People
	mux.Handle("GET /api/families/{familyID}/people", s.family(s.personH.List))
	mux.Handle("POST /api/families/{familyID}/people", s.family(s.personH.Create))
	mux.Handle("PUT /api/families/{familyID}/people/{id}", s.family(s.personH.Update))
	mux.Handle("DELETE /api/families/{familyID}/people/{id}", s.family(s.personH.Delete))

	// Chores
	mux.Handle("GET /api/families/{familyID}/chores", s.family(s.choreH.List))
	mux.Handle("POST /api/families/{familyID}/chores", s.family(s.choreH.Create))
	mux.Handle("PUT /api/families/{familyID}/chores/{id}", s.family(s.choreH.Update))
	mux.Handle("DELETE /api/families/{familyID}/chores/{id}", s.family(s.choreH.Delete))

	// Weekly assignments
	mux.Handle("GET /api/families/{familyID}/assignments", s.family(s.assignmentH.List))
	mux.Handle("POST /api/families/{familyID}/assignments", s.family(s.assignmentH.Create))
	mux.Handle("PUT /api/families/{familyID}/assignments/{id}", s.family(s.assignmentH.Update))
	mux.Handle("DELETE /api/families/{familyID}/assignments/{id}", s.family(s.assignmentH.Delete))

	// Commissions
	mux.Handle("GET /api/families/{familyID}/commissions", s.family(s.commissionH.List))
	mux.Handle("POST /api/families/{familyID}/commissions", s.family(s.commissionH.CreateBonus))
	mux.Handle("GET /api/families/{familyID}/commissions/export", s.family(s.commissionH.Export))
	mux.Handle("DELETE /api/families/{familyID}/commissions/{id}", s.family(s.commissionH.Delete))

	// Chart
	mux.Handle("GET /api/families/{familyID}/chart", s.family(s.chartH.Get))
	mux.Handle("POST /api/families/{familyID}/chart/toggle",
		s.family(s.limited(middleware.UserKey, toggleLimit, s.chartH.Toggle).ServeHTTP))

	// Payments
	mux.Handle("GET /api/families/{familyID}/people/{personID}/payment", s.family(s.paymentH.Get))
	mux.Handle("POST /api/families/{familyID}/people/{personID}/payment", s.family(s.paymentH.Pay))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.familyStore, s.allowedOrigins, s.logger.With("component", "websocket")))
}
