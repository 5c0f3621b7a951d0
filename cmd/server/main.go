package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/api"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/auth"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/callgen"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/clock"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/config"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/events"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/metrics"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/session"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/storage"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/ticker"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/websocket"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/pkg/middleware"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Bool("auth_enabled", cfg.AuthEnabled).
		Msg("starting call center server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Call archive
	store, err := storage.NewStore(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize call archive")
	}

	// Lifecycle event mirror
	publisher, err := newPublisher(cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	var verifier *auth.Verifier
	if cfg.AuthEnabled {
		verifier, err = auth.NewVerifier(ctx, cfg.OIDCIssuer, cfg.JWTSecret, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize auth")
		}
	}

	a := newApp(cfg, appDeps{
		Clock:     clock.New(),
		Store:     store,
		Publisher: publisher,
		Verifier:  verifier,
		Logger:    log.Logger,
	})
	a.start(ctx)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop hub and tickers
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Flush pending archive writes before closing the mirror
	a.router.Wait()
	if err := publisher.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close event publisher")
	}

	log.Info().Msg("server stopped")
}

func newPublisher(cfg *config.Config, logger zerolog.Logger) (events.Publisher, error) {
	if cfg.RedisAddr == "" {
		return events.NewNoopPublisher(), nil
	}
	return events.NewRedisPublisher(events.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Channel:  cfg.RedisChannel,
	}, logger)
}

// appDeps are the externally built collaborators of the server
type appDeps struct {
	Clock     clock.Clock
	Store     storage.Store
	Publisher events.Publisher
	Verifier  *auth.Verifier // nil disables auth
	Logger    zerolog.Logger
}

// app is the wired server: session router, WebSocket hub, interval jobs and HTTP routes
type app struct {
	router  *session.Router
	hub     *websocket.Hub
	tickers []*ticker.Ticker
	handler http.Handler
}

func routerOptions(cfg *config.Config) session.Options {
	return session.Options{
		ConnectDelay:       cfg.ConnectDelay,
		QueueNoticeDelay:   cfg.QueueNoticeDelay,
		QueueFallbackDelay: cfg.QueueFallbackDelay,
		QueueWaitEstimate:  cfg.QueueWaitEstimate,
		RingTimeout:        cfg.RingTimeout,
		DemoRingTimeout:    cfg.DemoRingTimeout,
		TestCallDelay:      cfg.TestCallDelay,
	}
}

func newApp(cfg *config.Config, deps appDeps) *app {
	seed := deps.Clock.Now().UnixNano()
	gen := callgen.NewGenerator(callgen.NewIDGenerator(deps.Clock, seed), seed)

	router := session.NewRouter(session.Deps{
		Clock:     deps.Clock,
		Generator: gen,
		Store:     deps.Store,
		Publisher: deps.Publisher,
		Options:   routerOptions(cfg),
		Logger:    deps.Logger,
	})
	hub := websocket.NewHub(router, deps.Logger)
	router.SetSender(hub)

	rest := api.NewServer(router, gen.IDs(), deps.Store, deps.Clock, deps.Logger)
	wsHandler := websocket.NewHandler(hub, cfg, deps.Logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/metrics", metrics.Get().Handler())

	r.Group(func(r chi.Router) {
		if deps.Verifier != nil {
			r.Use(deps.Verifier.Middleware)
		}
		r.Get("/ws", wsHandler.ServeHTTP)
		rest.Mount(r)
	})
	r.NotFound(api.NotFound)

	return &app{
		router: router,
		hub:    hub,
		tickers: []*ticker.Ticker{
			ticker.NewStatsTicker(router, deps.Clock, cfg.StatsInterval, deps.Logger),
			ticker.NewDemoTicker(router, deps.Clock, cfg.DemoCallInterval, deps.Logger),
		},
		handler: r,
	}
}

// start runs the hub and interval jobs until ctx is cancelled
func (a *app) start(ctx context.Context) {
	go a.hub.Run(ctx)
	for _, t := range a.tickers {
		go t.Start(ctx)
	}
}
