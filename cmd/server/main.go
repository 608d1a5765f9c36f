package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/example/trip-matching/internal/config"
	"github.com/example/trip-matching/internal/dispatch"
	"github.com/example/trip-matching/internal/events"
	"github.com/example/trip-matching/internal/geo"
	httpapi "github.com/example/trip-matching/internal/http"
	"github.com/example/trip-matching/internal/logging"
	"github.com/example/trip-matching/internal/match"
	"github.com/example/trip-matching/internal/meeting"
	"github.com/example/trip-matching/internal/payments"
	"github.com/example/trip-matching/internal/routing"
	"github.com/example/trip-matching/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	// Routing collaborator: Google when a key is set, OSRM as the
	// self-hosted alternative, nil otherwise (scorers fall back to
	// straight-line heuristics).
	var router routing.Router
	switch {
	case cfg.GoogleMapsAPIKey != "":
		gr, err := routing.NewGoogleRouter(cfg.GoogleMapsAPIKey)
		if err != nil {
			logger.Error("google router init failed", "error", err)
			os.Exit(1)
		}
		router = gr
	case cfg.OSRMEndpoint != "":
		router = routing.NewOSRMRouter(cfg.OSRMEndpoint)
	}
	if router != nil && cfg.RouteCacheTTL > 0 {
		router = routing.NewCachedRouter(router, cfg.RouteCacheTTL)
	}

	var matchStore storage.MatchStore
	var tripStore storage.TripStore
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		if cfg.RunMigrations {
			runMigrations(ps, logger)
		}
		matchStore, tripStore = ps, ps
	} else {
		mem := storage.NewMemoryStore()
		matchStore, tripStore = mem, mem
	}

	var index geo.TripIndex
	if cfg.RedisAddr != "" {
		index = geo.NewRedisIndex(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		index = geo.NewIndex()
	}

	overlap := &match.OverlapAnalyzer{Router: router, Cfg: cfg.Scoring, Logger: logger}
	detour := &match.DetourCalculator{Router: router, Logger: logger}
	scorer := match.NewScorer(overlap, detour, cfg.Scoring)

	wsreg := dispatch.NewWSRegistry(logger)
	sinks := events.Fanout{&httpapi.WSSink{Registry: wsreg, Trips: tripStore}}
	if len(cfg.KafkaBrokers) > 0 {
		sinks = append(sinks, events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic))
	}

	matcher := match.NewService(scorer, matchStore, tripStore, sinks, cfg.Scoring, logger)
	matcher.Index = index
	if cfg.StripeAPIKey != "" {
		matcher.Fare = payments.NewStripeClient(cfg.StripeAPIKey)
	}

	ranker := meeting.NewRanker(router, cfg.Scoring, logger)

	srv := httpapi.NewServer(cfg, logger, matcher, ranker, tripStore, index)
	srv.WSReg = wsreg

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("trip-matching listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	_ = sinks.Close()
}

func runMigrations(ps *storage.PostgresStore, logger *slog.Logger) {
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_matches.sql"))
	if err != nil {
		logger.Error("migration read failed", "error", err)
		return
	}
	if _, err := ps.DB().Exec(string(b)); err != nil {
		logger.Error("migration exec failed", "error", err)
		return
	}
	logger.Info("migration applied", "file", "001_create_matches.sql")
}
