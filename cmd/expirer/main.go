package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/trip-matching/internal/config"
	"github.com/example/trip-matching/internal/events"
	"github.com/example/trip-matching/internal/logging"
	"github.com/example/trip-matching/internal/match"
	"github.com/example/trip-matching/internal/storage"
)

// The expirer sweeps overdue matches to expired on a fixed interval. It runs
// as its own process so sweep cadence and API traffic scale independently.
func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	interval := time.Minute
	if v := os.Getenv("EXPIRE_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("invalid EXPIRE_SWEEP_INTERVAL: %v", err)
		}
		interval = d
	}

	var matchStore storage.MatchStore
	var tripStore storage.TripStore
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		matchStore, tripStore = ps, ps
	} else {
		mem := storage.NewMemoryStore()
		matchStore, tripStore = mem, mem
	}

	var sink events.Sink = events.NopSink{}
	if len(cfg.KafkaBrokers) > 0 {
		sink = events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	svc := match.NewService(nil, matchStore, tripStore, sink, cfg.Scoring, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go serveOps(ctx, logger)

	logger.Info("expirer started", "interval", interval.String())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			logger.Info("expirer stopping")
			_ = sink.Close()
			return
		case <-ticker.C:
			n, err := svc.ExpireMatches(ctx)
			if err != nil {
				logger.Error("expiry sweep failed", "error", err, "retry_in", backoff.String())
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
				}
				if backoff < 30*time.Second {
					backoff *= 2
				}
				continue
			}
			backoff = time.Second
			if n > 0 {
				logger.Info("expiry sweep done", "expired", n)
			}
		}
	}
}

func serveOps(ctx context.Context, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	ok := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
	mux.HandleFunc("/healthz", ok)
	mux.HandleFunc("/ready", ok)
	addr := os.Getenv("OPS_ADDR")
	if addr == "" {
		addr = ":9091"
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("ops server failed", "error", err)
	}
}
