// Package events publishes match-lifecycle events for downstream consumers.
// Delivery is fire-and-forget from the orchestrator's perspective.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/example/trip-matching/internal/models"
)

const (
	TypeMatchCreated       = "match.created"
	TypeMatchStatusChanged = "match.status_changed"
)

// Event is one match-lifecycle occurrence.
type Event struct {
	Type       string             `json:"type"`
	Match      models.Match       `json:"match"`
	PrevStatus models.MatchStatus `json:"prev_status,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopSink discards events; used when no broker is configured.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) error { return nil }
func (NopSink) Close() error                         { return nil }

// Fanout publishes to every sink, collecting errors.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, s := range f {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
