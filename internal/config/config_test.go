package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	if err := defaultScoringConfig().Validate(); err != nil {
		t.Fatalf("default scoring config must validate: %v", err)
	}
}

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("default addr = %q", cfg.HTTPAddr)
	}
	if cfg.Scoring.RouteWeight != 0.4 {
		t.Errorf("default route weight = %v", cfg.Scoring.RouteWeight)
	}
	if cfg.Scoring.MatchExpiry != 30*24*time.Hour {
		t.Errorf("default match expiry = %v", cfg.Scoring.MatchExpiry)
	}
}

func TestLoadServerConfigOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("MATCH_EXPIRY", "72h")
	t.Setenv("ANALYSIS_CONCURRENCY", "4")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("addr = %q", cfg.HTTPAddr)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("brokers = %v", cfg.KafkaBrokers)
	}
	if cfg.Scoring.MatchExpiry != 72*time.Hour {
		t.Errorf("expiry = %v", cfg.Scoring.MatchExpiry)
	}
	if cfg.Scoring.AnalysisConcurrency != 4 {
		t.Errorf("concurrency = %v", cfg.Scoring.AnalysisConcurrency)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestLoadServerConfigBadValues(t *testing.T) {
	t.Setenv("MATCH_EXPIRY", "not-a-duration")
	t.Setenv("SCORE_ROUTE_WEIGHT", "abc")

	_, err := LoadServerConfig()
	if err == nil {
		t.Fatal("expected error for malformed environment values")
	}
	msg := err.Error()
	if !strings.Contains(msg, "MATCH_EXPIRY") || !strings.Contains(msg, "SCORE_ROUTE_WEIGHT") {
		t.Errorf("error should name every bad variable, got %q", msg)
	}
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := defaultScoringConfig()
	cfg.RouteWeight = 0.9 // sum now exceeds 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected weight sum error")
	}

	cfg = defaultScoringConfig()
	cfg.TimeWeight = -0.25
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected negative weight error")
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cfg := defaultScoringConfig()
	cfg.MinOverallScore = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected min score range error")
	}

	cfg = defaultScoringConfig()
	cfg.MatchExpiry = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected match expiry error")
	}
}

func TestWeightOverridesMustStillSumToOne(t *testing.T) {
	t.Setenv("SCORE_ROUTE_WEIGHT", "0.5")

	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected validation error when overridden weights no longer sum to 1")
	}
}
