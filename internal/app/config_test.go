package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"

	server "sharedspace/server"
	"sharedspace/server/internal/telemetry"
	"sharedspace/server/logging"
)

type captureLogger struct {
	lines []string
}

func (c *captureLogger) Printf(format string, args ...any) {
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoadSettingsDefaults(t *testing.T) {
	logger := &captureLogger{}
	s := loadSettings(Config{Getenv: envMap(nil)}, logger)

	if s.addr != defaultAddr {
		t.Fatalf("expected default addr, got %q", s.addr)
	}
	if s.hub.Authority != server.AuthorityServer || s.hub.Session.Capacity != 3 {
		t.Fatalf("unexpected hub defaults %+v", s.hub)
	}
	if !s.logging.HasSink("console") {
		t.Fatalf("expected console sink enabled by default")
	}
	if len(logger.lines) != 0 {
		t.Fatalf("expected no warnings, got %v", logger.lines)
	}
}

func TestLoadSettingsOverrides(t *testing.T) {
	logger := &captureLogger{}
	s := loadSettings(Config{Getenv: envMap(map[string]string{
		"ADDR":                ":9000",
		"AUTHORITY":           "client",
		"CAPACITY":            "5",
		"MAX_FOOD":            "4",
		"ARENA_WIDTH":         "1024",
		"ARENA_HEIGHT":        "768",
		"TICK_INTERVAL":       "40ms",
		"FOOD_SPAWN_INTERVAL": "10s",
		"SEED":                "fixed",
		"RATE_LIMIT":          "15.5",
		"RATE_BURST":          "30",
		"LOG_SINKS":           "console, json,zap",
		"LOG_JSON_PATH":       "/tmp/events.jsonl",
		"LOG_MIN_SEVERITY":    "warn",
		"ENABLE_PPROF_TRACE":  "true",
	})}, logger)

	if s.addr != ":9000" || s.hub.Authority != server.AuthorityClient {
		t.Fatalf("unexpected addr/authority %q %q", s.addr, s.hub.Authority)
	}
	if s.hub.Session.Capacity != 5 || s.hub.World.MaxFood != 4 {
		t.Fatalf("unexpected capacity/food %+v", s.hub)
	}
	if s.hub.World.Arena.Width != 1024 || s.hub.World.Arena.Height != 768 {
		t.Fatalf("unexpected arena %+v", s.hub.World.Arena)
	}
	if s.hub.TickInterval != 40*time.Millisecond || s.hub.FoodSpawnInterval != 10*time.Second {
		t.Fatalf("unexpected intervals %v %v", s.hub.TickInterval, s.hub.FoodSpawnInterval)
	}
	if s.hub.World.Seed != "fixed" {
		t.Fatalf("unexpected seed %q", s.hub.World.Seed)
	}
	if s.websocket.RateLimit != 15.5 || s.websocket.RateBurst != 30 {
		t.Fatalf("unexpected rate limit %+v", s.websocket)
	}
	if strings.Join(s.logging.EnabledSinks, ",") != "console,json,zap" {
		t.Fatalf("unexpected sinks %v", s.logging.EnabledSinks)
	}
	if s.logging.JSON.FilePath != "/tmp/events.jsonl" || s.logging.MinimumSeverity != logging.SeverityWarn {
		t.Fatalf("unexpected logging config %+v", s.logging)
	}
	if !s.observability.EnablePprofTrace {
		t.Fatalf("expected pprof enabled")
	}
}

func TestLoadSettingsKeepsDefaultsOnInvalidValues(t *testing.T) {
	logger := &captureLogger{}
	s := loadSettings(Config{Getenv: envMap(map[string]string{
		"CAPACITY":      "three",
		"TICK_INTERVAL": "fast",
		"AUTHORITY":     "peer",
	})}, logger)

	if s.hub.Session.Capacity != 3 || s.hub.TickInterval != 50*time.Millisecond || s.hub.Authority != server.AuthorityServer {
		t.Fatalf("expected defaults kept, got %+v", s.hub)
	}
	if len(logger.lines) != 3 {
		t.Fatalf("expected three warnings, got %v", logger.lines)
	}
	if !strings.HasPrefix(logger.lines[0], `invalid AUTHORITY="peer"`) {
		t.Fatalf("unexpected warning %q", logger.lines[0])
	}
}

func TestEnvFileFeedsSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("CAPACITY=4\nSEED=from-file\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	values, err := godotenv.Read(path)
	if err != nil {
		t.Fatalf("read env file: %v", err)
	}

	s := loadSettings(Config{Getenv: envMap(values)}, telemetry.LoggerFunc(func(string, ...any) {}))
	if s.hub.Session.Capacity != 4 || s.hub.World.Seed != "from-file" {
		t.Fatalf("expected env file values, got %+v", s.hub)
	}
}

func TestBuildSinksSkipsUnknownNames(t *testing.T) {
	logger := &captureLogger{}
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"console", "carrier-pigeon"}

	named, err := buildSinks(cfg, logger)
	if err != nil {
		t.Fatalf("build sinks: %v", err)
	}
	if len(named) != 1 || named[0].Name != "console" {
		t.Fatalf("unexpected sinks %+v", named)
	}
	if len(logger.lines) != 1 {
		t.Fatalf("expected a warning for the unknown sink, got %v", logger.lines)
	}
}

func TestBuildSinksOpensJSONFile(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"json"}
	cfg.JSON.FilePath = filepath.Join(t.TempDir(), "events.jsonl")

	named, err := buildSinks(cfg, &captureLogger{})
	if err != nil {
		t.Fatalf("build sinks: %v", err)
	}
	if len(named) != 1 {
		t.Fatalf("expected one sink, got %d", len(named))
	}
	if _, err := os.Stat(cfg.JSON.FilePath); err != nil {
		t.Fatalf("expected json file created: %v", err)
	}
	named[0].Sink.Close(context.Background())
}
