package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"vigil/internal/config"
	"vigil/internal/detector"
	"vigil/internal/ingest"
	"vigil/internal/logger"
	"vigil/internal/middleware"
	"vigil/internal/notify"
	"vigil/internal/rulesapi"
	"vigil/internal/store"
)

// Service is the high-level coordinator wiring stores, the alert publisher,
// the sweep coordinator, and the HTTP surface. Collaborators are constructed
// once here and injected; the detection core never owns their lifecycle.
type Service struct {
	cfg *config.Config

	ruleStore  store.RuleStore
	eventStore store.EventStore
	publisher  notify.Publisher
	sweeper    *detector.Sweeper

	cron       *cron.Cron
	httpServer *http.Server
	wg         sync.WaitGroup
}

// New constructs a Service with the given config.
func New(cfg *config.Config) *Service {
	return &Service{cfg: cfg}
}

// Run starts background components and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	log := logger.WithComponent("service")
	log.Info().Msg("service starting")

	if err := s.initStores(ctx); err != nil {
		return fmt.Errorf("failed to initialize stores: %w", err)
	}
	defer s.ruleStore.Close()
	defer s.eventStore.Close()

	if err := s.initPublisher(); err != nil {
		return fmt.Errorf("failed to initialize publisher: %w", err)
	}
	defer s.publisher.Close()

	s.sweeper = detector.NewSweeper(detector.SweeperConfig{
		Rules:        s.ruleStore,
		Events:       s.eventStore,
		Dispatcher:   notify.NewDispatcher(s.publisher),
		Concurrency:  s.cfg.Sweep.Concurrency,
		FetchTimeout: s.cfg.Sweep.GetFetchTimeout(),
	})

	if err := s.initScheduler(ctx); err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	s.initHTTPServer()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info().Str("addr", s.cfg.HTTP.Listen).Msg("starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	s.cron.Start()
	log.Info().Str("schedule", s.cfg.Sweep.Schedule).Msg("sweep schedule registered")

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	return s.shutdown()
}

// initStores builds the rule store and the configured event store backend.
// Rules always live in Postgres; events can be served from Elasticsearch.
func (s *Service) initStores(ctx context.Context) error {
	log := logger.WithComponent("service")

	pg, err := store.NewPostgresStore(ctx, s.cfg.Storage.Postgres.DSN)
	if err != nil {
		return err
	}
	s.ruleStore = pg
	log.Info().Msg("postgres rule store initialized")

	switch s.cfg.Storage.Events.Backend {
	case "postgres":
		s.eventStore = pg
	case "elasticsearch":
		esStore, err := store.NewElasticEventStore(s.cfg.Storage.Events.Elasticsearch)
		if err != nil {
			pg.Close()
			return err
		}
		s.eventStore = esStore
	default:
		pg.Close()
		return fmt.Errorf("unknown event store backend %q", s.cfg.Storage.Events.Backend)
	}
	log.Info().Str("backend", s.cfg.Storage.Events.Backend).Msg("event store initialized")

	return nil
}

func (s *Service) initPublisher() error {
	publisher, err := notify.BuildPublisher(s.cfg.Notify)
	if err != nil {
		return err
	}
	s.publisher = publisher
	log := logger.WithComponent("service")
	log.Info().
		Str("backend", publisher.Name()).
		Str("channel", s.cfg.Notify.Channel).
		Msg("alert publisher initialized")
	return nil
}

// initScheduler registers the periodic sweep trigger. The sweeper itself is
// trigger-agnostic; the cron here plays the external scheduler.
func (s *Service) initScheduler(ctx context.Context) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.cfg.Sweep.Schedule, func() { s.runSweep(ctx) })
	if err != nil {
		return fmt.Errorf("register sweep schedule %q: %w", s.cfg.Sweep.Schedule, err)
	}
	return nil
}

func (s *Service) runSweep(ctx context.Context) {
	log := logger.WithComponent("service")

	sweepCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	summary, err := s.sweeper.Run(sweepCtx)
	if err != nil {
		log.Error().Err(err).Msg("sweep failed")
		return
	}

	log.Info().
		Int("rules_evaluated", summary.RulesEvaluated).
		Int("anomalies_found", summary.AnomaliesFound).
		Msg("sweep finished")
}

func (s *Service) initHTTPServer() {
	mux := http.NewServeMux()

	ingestHandler := ingest.NewHandler(ingest.Config{Events: s.eventStore})
	mux.Handle("/events", middleware.Chain(
		ingestHandler,
		middleware.Recovery,
		middleware.Logging,
	))

	rulesHandler := rulesapi.NewHandler(s.ruleStore)
	rulesMux := http.NewServeMux()
	rulesHandler.Register(rulesMux)
	mux.Handle("/rules", middleware.Chain(rulesMux, middleware.Recovery, middleware.Logging))
	mux.Handle("/rules/", middleware.Chain(rulesMux, middleware.Recovery, middleware.Logging))

	mux.HandleFunc("/healthz", s.healthHandler)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         s.cfg.HTTP.Listen,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (s *Service) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339))
}

// shutdown performs graceful shutdown
func (s *Service) shutdown() error {
	log := logger.WithComponent("service")
	log.Info().Msg("initiating graceful shutdown")

	// 1. Stop scheduling new sweeps and wait for a running one to finish
	cronCtx := s.cron.Stop()
	select {
	case <-cronCtx.Done():
		log.Info().Msg("scheduler stopped")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("scheduler stop timeout, a sweep may have been interrupted")
	}

	// 2. Stop accepting new HTTP requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	s.wg.Wait()
	log.Info().Msg("service stopped gracefully")
	return nil
}
