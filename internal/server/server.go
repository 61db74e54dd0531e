package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/esgportal/apiserver/config"
	"github.com/esgportal/apiserver/internal/db"
	"github.com/esgportal/apiserver/internal/handlers"
	"github.com/esgportal/apiserver/internal/logger"
	"github.com/esgportal/apiserver/internal/metrics"
	"github.com/esgportal/apiserver/internal/mq"
	"github.com/esgportal/apiserver/internal/services"
	"github.com/esgportal/apiserver/internal/storage"
	"github.com/esgportal/apiserver/internal/store"
)

// Deps are the persistence and infrastructure dependencies of the router.
type Deps struct {
	Users          services.UserRepository
	Companies      services.CompanyRepository
	Funds          services.FundRepository
	Entitlements   services.EntitlementRepository
	AccessRequests services.AccessRequestRepository
	Notes          services.NoteRepository
	Artifacts      services.ArtifactStore
	// Publisher may be nil, in which case access requests are only persisted.
	Publisher services.Publisher
}

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
}

// New connects to postgres, object storage and the message queue and
// builds the HTTP server.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open mq: %w", err)
	}

	router, err := NewRouter(cfg, log, Deps{
		Users:          store.NewUserRepository(dbConn),
		Companies:      store.NewCompanyRepository(dbConn),
		Funds:          store.NewFundRepository(dbConn),
		Entitlements:   store.NewEntitlementRepository(dbConn),
		AccessRequests: store.NewAccessRequestRepository(dbConn),
		Notes:          store.NewNoteRepository(dbConn),
		Artifacts:      objects,
		Publisher:      queue,
	})
	if err != nil {
		_ = queue.Close()
		_ = dbConn.Close()
		return nil, err
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		mq:         queue,
	}, nil
}

// NewRouter wires services and handlers over deps.
func NewRouter(cfg config.Config, log zerolog.Logger, deps Deps) (*chi.Mux, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	metrics.Init()

	userService := services.NewUserService(deps.Users)
	tokens := services.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	catalog := services.NewCatalogService(deps.Companies, deps.Funds, deps.Artifacts)
	ledger := services.NewLedgerService(deps.Users, catalog, deps.Entitlements)
	gateway := services.NewGatewayService(catalog, ledger, deps.Artifacts)
	requests := services.NewRequestService(deps.AccessRequests, catalog, ledger, deps.Publisher, cfg.MQ.RequestsChannel)
	admin := services.NewAdminService(deps.Users)
	notes := services.NewNoteService(deps.Notes)

	var loginLimiter *handlers.IPRateLimiter
	if cfg.Auth.LoginPerSecond > 0 {
		loginLimiter = handlers.NewIPRateLimiter(cfg.Auth.LoginPerSecond, cfg.Auth.LoginBurst)
	}
	requireSession := handlers.RequireSession(userService, tokens)

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	router := chi.NewRouter()
	router.Use(
		middleware.StripSlashes,
		middleware.RequestID,
		middleware.RealIP,
	)
	router.Use(logger.Middleware(log)...)
	router.Use(
		middleware.Recoverer,
		metrics.Instrument,
		cors(cfg.AllowedOrigin),
		middleware.Timeout(timeout),
	)

	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	handlers.AuthRouter(router, userService, tokens, loginLimiter)
	router.Route("/companies", func(r chi.Router) {
		handlers.CompanyRouter(r, catalog)
	})
	router.Route("/funds", func(r chi.Router) {
		handlers.FundRouter(r, catalog)
	})
	router.Group(func(r chi.Router) {
		r.Use(requireSession)
		handlers.ReportRouter(r, ledger, gateway, requests)
		r.Route("/notes", func(r chi.Router) {
			handlers.NoteRouter(r, notes)
		})
	})
	router.Route("/admin", func(r chi.Router) {
		r.Use(requireSession, handlers.RequireStaff)
		handlers.AdminRouter(r, admin, ledger, catalog, requests)
	})

	return router, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the queue and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		_ = s.mq.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
