package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/medisetu/platform/pkg/analysis"
	"github.com/medisetu/platform/pkg/common/config"
	"github.com/medisetu/platform/pkg/common/database"
	"github.com/medisetu/platform/pkg/common/kafka"
	"github.com/medisetu/platform/pkg/common/logger"
	"github.com/medisetu/platform/pkg/common/middleware"
	"github.com/medisetu/platform/pkg/idgen"
	"github.com/medisetu/platform/pkg/kvstore"
	"github.com/medisetu/platform/pkg/observability/metrics"
	"github.com/medisetu/platform/pkg/portal"
	"github.com/medisetu/platform/pkg/records"
	"github.com/medisetu/platform/pkg/seed"
	"github.com/medisetu/platform/pkg/session"
)

func main() {
	logger.Init()
	cfg := config.Load()

	backend, err := openBackend(context.Background(), cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to open store backend")
	}
	defer database.CloseRedis()
	defer database.ClosePostgres()

	store := kvstore.New(backend)

	gen, err := idgen.FromScheme(cfg.IDScheme)
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid id scheme")
	}

	if cfg.SeedOnStart {
		fixtures, err := seed.LoadFixtures(cfg.SeedFile)
		if err != nil {
			logger.Log.WithError(err).WithField("file", cfg.SeedFile).Warn("seed file unusable, using built-in fixtures")
			fixtures = seed.DefaultFixtures()
		}
		if err := seed.NewSeeder(store, fixtures).Run(context.Background()); err != nil {
			logger.Log.WithError(err).Fatal("failed to seed store")
		}
	}

	repos := records.New(store, gen)
	sessions := session.NewResolver(store, repos)

	events := kafka.NewPublisher(cfg, "portal-service")
	defer events.Close()

	patients := portal.NewPatientService(repos, sessions, analysis.New(cfg), events, cfg.AnalysisTimeout)
	doctors := portal.NewDoctorService(repos, sessions, events)
	handler := portal.NewHTTPHandler(patients, doctors, sessions)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging, metrics.Instrument, middleware.CORS, middleware.MaxBody(cfg.MaxRequestBody))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if _, err := store.Has(r.Context(), records.KeyDoctors); err != nil {
			logger.Log.WithError(err).Warn("readiness check failed")
			http.Error(w, `{"status":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":    cfg.ServerHost,
			"port":    cfg.ServerPort,
			"backend": cfg.StoreBackend,
		}).Info("Portal Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Portal Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Portal Service stopped")
}

func openBackend(ctx context.Context, cfg *config.Config) (kvstore.Backend, error) {
	switch cfg.StoreBackend {
	case "memory", "":
		logger.Log.Warn("using in-memory store, data is lost on restart")
		return kvstore.NewMemoryBackend(), nil
	case "redis":
		client, err := database.GetRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return kvstore.NewRedisBackend(client, cfg.KeyNamespace), nil
	case "postgres":
		db, err := database.GetPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		backend := kvstore.NewPostgresBackend(db)
		if err := backend.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("migrating kv table: %w", err)
		}
		return backend, nil
	default:
		return nil, errors.New("unknown STORE_BACKEND " + cfg.StoreBackend)
	}
}
