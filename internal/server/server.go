// Package server wires the daemon together: database, services, handlers,
// routes, and the background sync and purge loops.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cliptray/cliptrayd/internal/auth"
	"github.com/cliptray/cliptrayd/internal/cloud"
	"github.com/cliptray/cliptrayd/internal/events"
	"github.com/cliptray/cliptrayd/internal/handler"
	"github.com/cliptray/cliptrayd/internal/middleware"
	"github.com/cliptray/cliptrayd/internal/netx"
	"github.com/cliptray/cliptrayd/internal/obs"
	sqliteRepo "github.com/cliptray/cliptrayd/internal/repository/sqlite"
	"github.com/cliptray/cliptrayd/internal/service"
	"github.com/cliptray/cliptrayd/internal/updater"
)

// Config holds everything the daemon needs at startup. Cloud pieces are
// optional; the daemon runs fully local when they are absent.
type Config struct {
	Port     int
	DBPath   string
	HintPath string
	Version  string

	FirebaseProjectID string
	OAuthClientID     string
	OAuthClientSecret string
	OAuthRedirectURL  string

	S3 cloud.S3Config

	PaymentsBaseURL string
	PaymentSiteURL  string
	GitHubRepo      string

	RateLimitPerSecond int
	RateLimitBurst     int
	PurgeCheckInterval time.Duration
}

// Server owns the router, the database, and the background loops.
type Server struct {
	router   *chi.Mux
	config   Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	bus      *events.Bus
	sessions *auth.SessionManager
	sync     *service.SyncEngine
	purge    *service.PurgeService
	update   *updater.Manager
	stop     chan struct{}
	stopOnce sync.Once
	ready    atomic.Bool
}

// New assembles the full dependency graph. Each layer receives only the
// interfaces it needs; handlers never touch the database directly.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		bus:    events.NewBus(),
		stop:   make(chan struct{}),
	}

	if err := s.setupRoutes(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	s.ready.Store(true)

	return s, nil
}

func (s *Server) setupRoutes(ctx context.Context) error {
	obs.Init()

	entryRepo := sqliteRepo.NewEntryRepo(s.db)
	tagRepo := sqliteRepo.NewTagRepo(s.db)
	userRepo := sqliteRepo.NewUserRepo(s.db)
	paymentRepo := sqliteRepo.NewPaymentRepo(s.db)

	network := netx.NewMonitor()
	s.sessions = auth.NewSessionManager(userRepo, s.config.HintPath, s.logger)

	var authority cloud.PaymentAuthority
	if s.config.PaymentsBaseURL != "" {
		authority = cloud.NewHTTPPaymentAuthority(s.config.PaymentsBaseURL)
	}
	plans := service.NewPlanService(paymentRepo, authority, s.logger)

	var store cloud.EntryStore
	if s.config.S3.Bucket != "" {
		var err error
		store, err = cloud.NewS3Store(ctx, s.config.S3)
		if err != nil {
			return fmt.Errorf("creating entry store: %w", err)
		}
	}

	entries := service.NewEntryService(entryRepo, s.sessions, plans, s.bus, s.logger)
	tags := service.NewTagService(tagRepo, entryRepo, s.sessions, network, s.bus, s.logger)
	s.purge = service.NewPurgeService(entryRepo, userRepo, s.sessions, plans, s.bus, s.logger)
	s.sync = service.NewSyncEngine(entryRepo, store, s.sessions, network, s.bus, s.logger)
	network.OnChange(func(online bool) {
		if !online {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := s.sync.SyncNow(ctx); err != nil {
			s.logger.Warn("reconnect sync failed", "error", err)
		}
	})

	verifier := auth.NewGoogleVerifier(s.config.FirebaseProjectID)
	provider := auth.NewGoogleProvider(s.config.OAuthClientID, s.config.OAuthClientSecret, s.config.OAuthRedirectURL)
	s.update = updater.New(s.config.GitHubRepo, s.config.Version, s.bus, s.logger,
		updater.WithShutdown(s.requestStop))

	entryHandler := handler.NewEntryHandler(entries, s.logger)
	tagHandler := handler.NewTagHandler(tags, s.logger)
	purgeHandler := handler.NewPurgeHandler(s.purge, s.logger)
	authHandler := handler.NewAuthHandler(provider, verifier, s.sessions, plans, s.logger)
	planHandler := handler.NewPlanHandler(plans, s.sessions, s.config.PaymentSiteURL, s.logger)
	syncHandler := handler.NewSyncHandler(s.sync, network, s.logger)
	updateHandler := handler.NewUpdateHandler(s.update, s.logger)
	statusHandler := handler.NewStatusHandler(&s.ready, s.config.Version, s.bus, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(obs.Instrument)

	s.router.Handle("/metrics", obs.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.config.RateLimitPerSecond, s.config.RateLimitBurst))

		r.Get("/health", statusHandler.HandleHealth)
		r.Get("/events", statusHandler.HandleEvents)

		r.Post("/auth/url", authHandler.HandleLoginURL)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)
		r.Post("/auth/restore", authHandler.HandleRestore)
		r.Get("/auth/session", authHandler.HandleSession)

		r.Get("/plan", planHandler.HandleGet)
		r.Post("/plan/refresh", planHandler.HandleRefresh)

		r.Post("/entries", entryHandler.HandleSave)
		r.Get("/entries", entryHandler.HandleList)
		r.Delete("/entries", entryHandler.HandleClear)
		r.Get("/entries/{id}", entryHandler.HandleGet)
		r.Patch("/entries/{id}", entryHandler.HandleUpdate)
		r.Delete("/entries/{id}", entryHandler.HandleDelete)
		r.Post("/entries/{id}/tags", tagHandler.HandleAssign)
		r.Delete("/entries/{id}/tags/{name}", tagHandler.HandleRemove)

		r.Post("/tags", tagHandler.HandleCreate)
		r.Get("/tags", tagHandler.HandleList)
		r.Patch("/tags/{id}", tagHandler.HandleUpdate)
		r.Delete("/tags/{id}", tagHandler.HandleDelete)

		r.Get("/purge/settings", purgeHandler.HandleGetSettings)
		r.Put("/purge/settings", purgeHandler.HandleUpdateSettings)
		r.Post("/purge/run", purgeHandler.HandlePurgeNow)

		r.Post("/sync", syncHandler.HandleSyncNow)
		r.Get("/network", syncHandler.HandleNetworkStatus)
		r.Put("/network", syncHandler.HandleNetworkHint)

		r.Get("/update/check", updateHandler.HandleCheck)
		r.Post("/update/download", updateHandler.HandleDownload)
		r.Post("/update/cancel", updateHandler.HandleCancel)
		r.Post("/update/install", updateHandler.HandleInstall)
	})

	return nil
}

// announceUpdate runs one release check at startup and publishes the result
// so clients can offer the update without polling.
func (s *Server) announceUpdate(ctx context.Context) {
	info, err := s.update.Check(ctx)
	if err != nil {
		s.logger.Debug("startup update check failed", "error", err)
		return
	}
	if info.UpdateNeeded {
		s.bus.Publish(events.UpdateAvailable, info)
	}
}

// Start runs the HTTP server and the background loops, blocking until a
// shutdown signal arrives. The database is closed on the way out.
func (s *Server) Start() error {
	defer s.db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// previous session survives daemon restarts
	if err := s.sessions.Restore(ctx); err != nil {
		s.logger.Info("no session restored", "reason", err)
	}

	go s.sync.Run(ctx)
	go s.purge.Run(ctx, s.config.PurgeCheckInterval)
	go s.announceUpdate(ctx)

	// no WriteTimeout: the event stream on /api/events stays open indefinitely
	srv := &http.Server{
		Addr:        fmt.Sprintf("127.0.0.1:%d", s.config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("daemon listening",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case <-s.stop:
		s.logger.Info("shutdown requested by installer")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	s.logger.Info("daemon stopped")
	return nil
}

// requestStop triggers the same graceful shutdown path as a signal.
// Safe to call more than once.
func (s *Server) requestStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
