// Command server runs the claim wizard API: session issuing, the itinerary
// store, search collaborators, report intake, and the audit pipeline.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"flightclaim/internal/audit"
	"flightclaim/internal/platform/config"
	"flightclaim/internal/platform/httpserver"
	"flightclaim/internal/platform/logger"
	"flightclaim/internal/platform/metrics"
	platformredis "flightclaim/internal/platform/redis"
	"flightclaim/internal/report"
	"flightclaim/internal/search"
	"flightclaim/internal/session"
	httptransport "flightclaim/internal/transport/http"
	"flightclaim/internal/wizard"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Snapshot store: redis when configured, else in-memory.
	var snapshots wizard.SnapshotStore
	var health func() error
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		snapshots = wizard.NewRedisSnapshotStore(redisClient.Client, cfg.SnapshotTTL)
		health = func() error { return redisClient.Health(context.Background()) }
		log.Info("using redis snapshot store")
	} else {
		snapshots = wizard.NewInMemorySnapshotStore()
		log.Warn("REDIS_URL not set, wizard snapshots will not survive restarts")
	}

	// Claim store: postgres when configured, else in-memory.
	var claims wizard.ClaimStore
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			log.Error("postgres connect failed", "error", err.Error())
			os.Exit(1)
		}
		defer pool.Close()
		store := wizard.NewPostgresClaimStore(pool)
		if err := store.Init(ctx); err != nil {
			log.Error("claims schema init failed", "error", err.Error())
			os.Exit(1)
		}
		claims = store
		log.Info("using postgres claim store")
	} else {
		claims = wizard.NewInMemoryClaimStore()
		log.Warn("POSTGRES_URL not set, claims will not survive restarts")
	}

	// Audit pipeline: kafka sink when brokers are configured.
	publisher := audit.NewPublisher(256, log)
	var sink audit.Sink = audit.NewMemorySink()
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka connect failed", "error", err.Error())
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
		log.Info("audit events go to kafka", "topic", cfg.Kafka.Topic)
	}
	go audit.NewWorker(publisher, sink, log).Run(ctx)

	tokens := session.NewTokenService(cfg.JWTSigningKey, cfg.SessionTTL)
	wizardSvc := wizard.NewService(
		wizard.NewSynchronizer(snapshots, log),
		claims,
		wizard.NewSegmentBandCalculator(),
		publisher,
		log,
		m,
	)
	reportSvc := report.NewService(report.NewInMemoryStore(), publisher, log)

	router := httptransport.NewRouter(httptransport.Deps{
		Session:   httptransport.NewSessionHandler(tokens, publisher, log),
		Wizard:    httptransport.NewWizardHandler(wizardSvc, log),
		Search:    httptransport.NewSearchHandler(search.NewAirportClient(cfg.AirportSearchURL, m), search.NewFlightClient(cfg.FlightSearchURL, m), wizardSvc, log),
		Report:    httptransport.NewReportHandler(reportSvc, log),
		Validator: tokens,
		Metrics:   m,
		Logger:    log,
		Health:    health,
	})

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("claim wizard listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
	}
	// Give the audit worker a moment to drain.
	time.Sleep(100 * time.Millisecond)
}
