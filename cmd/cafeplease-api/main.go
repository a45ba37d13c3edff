package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cafeplease/internal/api"
	"cafeplease/internal/auth"
	"cafeplease/internal/config"
	"cafeplease/internal/db"
	"cafeplease/internal/jobs"
	"cafeplease/internal/model"
	"cafeplease/internal/pkg/clock"
	"cafeplease/internal/pubsub"
	"cafeplease/internal/scheduler"
	"cafeplease/internal/schema"
	"cafeplease/internal/service"
	"cafeplease/internal/store"
	"cafeplease/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Check for goose migrate command
	if len(os.Args) > 1 && os.Args[1] == "goose-migrate" {
		if err := runGooseMigrations(cfg.Store.DatabaseURL); err != nil {
			log.Fatalf("Goose migration failed: %v", err)
		}
		os.Exit(0)
	}
	if len(os.Args) > 1 && os.Args[1] != "serve" {
		log.Fatalf("Unknown command: %s (use 'serve' or 'goose-migrate')", os.Args[1])
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Redis backs the store (redis backend), event streams and the job queue.
	var rdb *redis.Client
	if cfg.Store.Backend == config.BackendRedis || cfg.Jobs.Enabled {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
	}

	var st store.Store
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		dbPool, err := db.NewPool(ctx, cfg.Store.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer dbPool.Close()
		st = store.NewCollections(store.NewPostgresBlobs(dbPool.Queries))
	case config.BackendRedis:
		st = store.NewCollections(store.NewRedisBlobs(rdb, cfg.Store.KeyPrefix))
	default:
		logger.Warn("Using in-memory store, data is lost on restart")
		st = store.NewMemory()
	}

	// Pub/sub bus
	bus := pubsub.New(rdb, logger)

	// WebSocket hub
	hub := ws.NewHub(logger)
	if streams := bus.GetStreams(); streams != nil {
		hub.SetStreamsProvider(&wsStreamsAdapter{streams: streams})
	}
	go hub.Run()
	bus.SetWSHub(hub)

	desk := service.NewDesk(st, bus, clock.NewRealClock(), logger)

	seeded, err := desk.EnsureAdmin(ctx, model.User{
		ID:   cfg.Bootstrap.AdminID,
		Name: cfg.Bootstrap.AdminName,
		Role: model.RoleAdmin,
	})
	if err != nil {
		logger.Fatal("Failed to seed admin user", zap.Error(err))
	}
	if seeded {
		logger.Info("Empty roster, created bootstrap admin", zap.String("user_id", cfg.Bootstrap.AdminID))
	}

	// Background jobs
	if cfg.Jobs.Enabled {
		jobServer, jobClient := jobs.NewJobServer(cfg.Redis.Addr, desk, logger)
		desk.SetJobClient(service.NewAsynqJobClient(jobClient))
		go func() {
			if err := jobServer.Start(); err != nil {
				logger.Fatal("Job server failed", zap.Error(err))
			}
		}()
		defer jobServer.Stop()
	}

	// Auto-approval scheduler follows the per-team toggles.
	runner := scheduler.NewRunner(desk, cfg.Scheduler.Interval, logger)
	if cfg.Scheduler.Enabled {
		desk.OnSettingsChanged(runner.Reconcile)
		settings, err := desk.Settings(ctx)
		if err != nil {
			logger.Fatal("Failed to load settings", zap.Error(err))
		}
		runner.Reconcile(settings)
	}

	schemaComp, err := schema.NewCompilerWithCache(64)
	if err != nil {
		logger.Fatal("Failed to load schemas", zap.Error(err))
	}
	jwtConfig := auth.NewJWTConfig(cfg.JWT.Secret, cfg.JWT.AllowDevHeaders)

	hub.SetCommandHandler(ws.NewCommandHandler(desk, logger))

	// HTTP router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Timeout middleware - skip for WebSocket upgrades
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, req)
				return
			}
			middleware.Timeout(cfg.Server.RequestTimeout)(next).ServeHTTP(w, req)
		})
	})

	r.Mount("/v1", api.Routes(api.Dependencies{
		Desk:   desk,
		Hub:    hub,
		Schema: schemaComp,
		JWT:    jwtConfig,
		Log:    logger,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	logger.Info("Starting server",
		zap.String("addr", cfg.Server.Addr),
		zap.String("store", cfg.Store.Backend),
		zap.Bool("jobs", cfg.Jobs.Enabled),
		zap.Bool("scheduler", cfg.Scheduler.Enabled),
	)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// No tick may run once the store goes away.
	runner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	return zc.Build()
}

// wsStreamsAdapter adapts pubsub.Streams to ws.StreamsProvider
type wsStreamsAdapter struct {
	streams *pubsub.Streams
}

func (a *wsStreamsAdapter) AcknowledgeSequence(channel, connectionID string, sequence int64) error {
	return a.streams.AcknowledgeSequence(channel, connectionID, sequence)
}

func (a *wsStreamsAdapter) ReplayEvents(channel string, sinceSeq int64, limit int64) ([]ws.StreamEvent, error) {
	events, err := a.streams.ReplayEvents(channel, sinceSeq, limit)
	if err != nil {
		return nil, err
	}

	wsEvents := make([]ws.StreamEvent, len(events))
	for i, e := range events {
		wsEvents[i] = ws.StreamEvent{
			Channel:   e.Channel,
			Sequence:  e.Sequence,
			Event:     e.Event,
			Timestamp: e.Timestamp,
		}
	}
	return wsEvents, nil
}
