package config

import (
	"testing"
	"time"
)

func TestParse_DefaultsAndEnv(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "from-env")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Parse([]byte(`
http:
  addr: ":9000"
store:
  backend: memory
translate:
  apiKey: from-file
  timeout: 3s
  maxInFlight: 2
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Translate.APIKey != "from-env" {
		t.Fatalf("env override not applied: %q", cfg.Translate.APIKey)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Topic != "messages.created" {
		t.Fatalf("unexpected kafka config: %+v", cfg.Kafka)
	}
	if cfg.Logging.Service != "chat-service" || cfg.Logging.Backend != "std" {
		t.Fatalf("logging defaults not applied: %+v", cfg.Logging)
	}
	if cfg.Translate.MaxInFlight != 2 {
		t.Fatalf("maxInFlight: %d", cfg.Translate.MaxInFlight)
	}
	if cfg.TranslateTimeout() != 3*time.Second || cfg.PingEvery() != 15*time.Second {
		t.Fatalf("durations: %v %v", cfg.TranslateTimeout(), cfg.PingEvery())
	}
}

func TestParse_Validation(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("REDIS_ADDR", "")

	bad := map[string]string{
		"no addr":         "store: {backend: memory}",
		"postgres no dsn": "http: {addr: ':1'}",
		"redis no addr":   "http: {addr: ':1'}\nstore: {backend: redis}",
		"unknown backend": "http: {addr: ':1'}\nstore: {backend: mongo}",
	}
	for name, doc := range bad {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParse_TranslateMaxInFlightDefault(t *testing.T) {
	cfg, err := Parse([]byte("http: {addr: ':1'}\nstore: {backend: memory}"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Translate.MaxInFlight != 8 {
		t.Fatalf("expected default 8, got %d", cfg.Translate.MaxInFlight)
	}
}
