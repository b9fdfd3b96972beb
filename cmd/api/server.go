package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"depositflow/auth"
	"depositflow/protection"
	"depositflow/scheme"
)

// AuthService is the authentication surface the server depends on.
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	GetUserByID(ctx context.Context, userID string) (*auth.User, error)
	VerifyToken(token string) (string, auth.Role, error)
}

// SchemeService exposes the scheme catalog reads.
type SchemeService interface {
	ListActive(ctx context.Context) ([]scheme.Scheme, error)
}

// ProtectionService exposes the deposit protection workflows.
type ProtectionService interface {
	Register(ctx context.Context, params protection.RegisterParams) (protection.RegisterResult, error)
	Renew(ctx context.Context, params protection.RenewParams) (protection.RenewResult, error)
	RaiseDispute(ctx context.Context, params protection.DisputeParams) (protection.DisputeResult, error)
	GetByTenancy(ctx context.Context, tenancyID string) (protection.Details, error)
	History(ctx context.Context, protectionID string) ([]protection.LogEntry, error)
}

// Server wires the HTTP surface to the domain services.
type Server struct {
	authService       AuthService
	schemeService     SchemeService
	protectionService ProtectionService
	log               *logrus.Logger
}

func NewServer(authService AuthService, schemeService SchemeService, protectionService ProtectionService, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	return &Server{
		authService:       authService,
		schemeService:     schemeService,
		protectionService: protectionService,
		log:               log,
	}
}

// Router builds the chi router with the full API surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.requestLogger)
	r.Use(s.optionalAuth)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleAuthRegister)
			r.Post("/login", s.handleAuthLogin)
			r.Get("/me", s.handleAuthMe)
		})

		r.Route("/deposits", func(r chi.Router) {
			r.Post("/register", s.handleRegisterDeposit)
			r.Get("/schemes", s.handleListSchemes)
			r.Get("/tenancy/{tenancyId}", s.handleTenancyProtection)
			r.Post("/{id}/renew", s.handleRenewDeposit)
			r.Post("/{id}/dispute", s.handleRaiseDispute)
			r.Get("/{id}/history", s.handleProtectionHistory)
		})
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
