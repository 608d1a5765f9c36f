package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/trip-matching/internal/config"
	"github.com/example/trip-matching/internal/dispatch"
	"github.com/example/trip-matching/internal/events"
	"github.com/example/trip-matching/internal/logging"
)

// The notifier consumes match-lifecycle events from Kafka and forwards them
// to the push gateway. Delivery is retried with exponential backoff; a
// message that keeps failing is logged and skipped rather than blocking the
// partition.
func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required for the notifier")
	}
	if cfg.PushEndpoint == "" {
		log.Fatal("PUSH_ENDPOINT is required for the notifier")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		GroupID: "trip-matching-notifier",
	})
	defer reader.Close()

	n := &notifier{
		sender:     dispatch.NewHTTPPush(cfg.PushEndpoint, os.Getenv("PUSH_API_KEY")),
		logger:     logger,
		maxRetries: 5,
		baseDelay:  200 * time.Millisecond,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("notifier started", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("notifier stopping")
				return
			}
			logger.Error("kafka read failed", "error", err)
			continue
		}
		if err := n.handle(ctx, msg.Value); err != nil {
			logger.Error("event delivery abandoned", "key", string(msg.Key), "error", err)
		}
	}
}

type notifier struct {
	sender     dispatch.PushSender
	logger     *slog.Logger
	maxRetries int
	baseDelay  time.Duration
}

// handle decodes one event and pushes it, retrying transient failures with
// exponential backoff until maxRetries is exhausted.
func (n *notifier) handle(ctx context.Context, payload []byte) error {
	var e events.Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}

	delay := n.baseDelay
	var lastErr error
	for attempt := 0; attempt < n.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
		if lastErr = n.sender.Send(ctx, e); lastErr == nil {
			return nil
		}
		n.logger.Warn("push send failed", "type", e.Type, "match_id", e.Match.ID, "attempt", attempt+1, "error", lastErr)
	}
	return fmt.Errorf("after %d attempts: %w", n.maxRetries, lastErr)
}
