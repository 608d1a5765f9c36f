package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_matching", Name: "analyses_total", Help: "Total compatibility analyses performed"})
	AnalysisLatency  = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "trip_matching", Name: "analysis_latency_seconds", Help: "Per-candidate analysis latency"})
	RoutingFallbacks = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_matching", Name: "routing_fallbacks_total", Help: "Scoring operations that fell back to straight-line heuristics"})

	MatchesCreated   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_matching", Name: "matches_created_total", Help: "Match rows created"})
	MatchesDuplicate = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_matching", Name: "matches_duplicate_total", Help: "Create attempts resolved as already-exists"})
	MatchesExpired   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_matching", Name: "matches_expired_total", Help: "Matches swept to expired"})

	MeetingPointsRanked = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_matching", Name: "meeting_points_ranked_total", Help: "Meeting point candidates scored"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_matching", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trip_matching",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
