package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// ScoringConfig holds the compatibility weights and thresholds. It is
// validated once at load and passed by value; invalid combinations are
// rejected before any scoring runs.
type ScoringConfig struct {
	RouteWeight       float64
	TimeWeight        float64
	PreferencesWeight float64
	DistanceWeight    float64
	PriceWeight       float64

	MinOverallScore     float64 // candidates below this are dropped
	MinMeetingScore     float64 // meeting points at or below this are dropped
	SegmentToleranceKm  float64 // endpoint proximity for overlapping segments
	NearIdenticalKm     float64 // fast-path endpoint distance
	FallbackDecayKm     float64 // straight-line heuristic zero point
	MaxMeetingPoints    int
	MeetingSampleCount  int
	MatchExpiry         time.Duration
	AnalysisConcurrency int
}

func defaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		RouteWeight:         0.4,
		TimeWeight:          0.25,
		PreferencesWeight:   0.2,
		DistanceWeight:      0.1,
		PriceWeight:         0.05,
		MinOverallScore:     0.3,
		MinMeetingScore:     0.3,
		SegmentToleranceKm:  0.5,
		NearIdenticalKm:     1.0,
		FallbackDecayKm:     10.0,
		MaxMeetingPoints:    5,
		MeetingSampleCount:  20,
		MatchExpiry:         30 * 24 * time.Hour,
		AnalysisConcurrency: 8,
	}
}

// Validate rejects weight/threshold combinations that would make scoring
// meaningless. Fatal at configuration load.
func (c ScoringConfig) Validate() error {
	var errs []error
	for name, w := range map[string]float64{
		"route": c.RouteWeight, "time": c.TimeWeight, "preferences": c.PreferencesWeight,
		"distance": c.DistanceWeight, "price": c.PriceWeight,
	} {
		if w < 0 {
			errs = append(errs, fmt.Errorf("%s weight must be >= 0, got %v", name, w))
		}
	}
	sum := c.RouteWeight + c.TimeWeight + c.PreferencesWeight + c.DistanceWeight + c.PriceWeight
	if math.Abs(sum-1) > 1e-6 {
		errs = append(errs, fmt.Errorf("score weights must sum to 1, got %v", sum))
	}
	if c.MinOverallScore < 0 || c.MinOverallScore > 1 {
		errs = append(errs, fmt.Errorf("min overall score must be in [0,1], got %v", c.MinOverallScore))
	}
	if c.SegmentToleranceKm <= 0 || c.NearIdenticalKm <= 0 || c.FallbackDecayKm <= 0 {
		errs = append(errs, errors.New("segment tolerance, near-identical and fallback decay distances must be > 0"))
	}
	if c.MaxMeetingPoints <= 0 || c.MeetingSampleCount <= 0 {
		errs = append(errs, errors.New("meeting point counts must be > 0"))
	}
	if c.MatchExpiry <= 0 {
		errs = append(errs, errors.New("match expiry must be > 0"))
	}
	if c.AnalysisConcurrency <= 0 {
		errs = append(errs, errors.New("analysis concurrency must be > 0"))
	}
	return errors.Join(errs...)
}

// ServerConfig captures all tunable parameters for the API process. Values
// are loaded from environment variables with defaults so the binary can run
// locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	GoogleMapsAPIKey string
	OSRMEndpoint     string
	RouteCacheTTL    time.Duration

	StripeAPIKey string
	PushEndpoint string

	Scoring ScoringConfig

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RedisGeoKey:     "trips_geo",
		KafkaTopic:      "match-events",
		RouteCacheTTL:   5 * time.Minute,
		Scoring:         defaultScoringConfig(),
		LogLevel:        "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	cfg.GoogleMapsAPIKey = os.Getenv("GOOGLE_MAPS_API_KEY")
	setStringFromEnv(&cfg.OSRMEndpoint, "OSRM_ENDPOINT")
	setDurationFromEnv(&cfg.RouteCacheTTL, "ROUTE_CACHE_TTL", &errs)

	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")
	setStringFromEnv(&cfg.PushEndpoint, "PUSH_ENDPOINT")

	setFloatFromEnv(&cfg.Scoring.RouteWeight, "SCORE_ROUTE_WEIGHT", &errs)
	setFloatFromEnv(&cfg.Scoring.TimeWeight, "SCORE_TIME_WEIGHT", &errs)
	setFloatFromEnv(&cfg.Scoring.PreferencesWeight, "SCORE_PREFS_WEIGHT", &errs)
	setFloatFromEnv(&cfg.Scoring.DistanceWeight, "SCORE_DISTANCE_WEIGHT", &errs)
	setFloatFromEnv(&cfg.Scoring.PriceWeight, "SCORE_PRICE_WEIGHT", &errs)
	setFloatFromEnv(&cfg.Scoring.MinOverallScore, "SCORE_MIN_OVERALL", &errs)
	setIntFromEnv(&cfg.Scoring.MaxMeetingPoints, "MEETING_MAX_POINTS", &errs)
	setIntFromEnv(&cfg.Scoring.MeetingSampleCount, "MEETING_SAMPLE_COUNT", &errs)
	setIntFromEnv(&cfg.Scoring.AnalysisConcurrency, "ANALYSIS_CONCURRENCY", &errs)
	setDurationFromEnv(&cfg.Scoring.MatchExpiry, "MATCH_EXPIRY", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if err := cfg.Scoring.Validate(); err != nil {
		errs = append(errs, err)
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
