package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	server "sharedspace/server"
	"sharedspace/server/internal/net/ws"
	"sharedspace/server/internal/observability"
	"sharedspace/server/internal/telemetry"
	"sharedspace/server/logging"
)

const defaultAddr = ":8080"

type Config struct {
	Logger        telemetry.Logger
	Observability observability.Config
	// EnvFile is loaded before reading the environment. A missing file is
	// not an error.
	EnvFile   string
	ClientDir string
	// Getenv overrides os.Getenv.
	Getenv func(string) string
}

// settings is the resolved runtime configuration.
type settings struct {
	addr          string
	hub           server.HubConfig
	websocket     ws.HandlerConfig
	logging       logging.Config
	observability observability.Config
}

func loadSettings(cfg Config, logger telemetry.Logger) settings {
	getenv := cfg.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	env := envReader{getenv: getenv, logger: logger}

	s := settings{
		addr:          defaultAddr,
		hub:           server.DefaultHubConfig(),
		logging:       logging.DefaultConfig(),
		observability: cfg.Observability,
	}

	if raw := strings.TrimSpace(getenv("ADDR")); raw != "" {
		s.addr = raw
	}
	if raw := getenv("AUTHORITY"); raw != "" {
		if authority, err := server.ParseAuthority(raw); err == nil {
			s.hub.Authority = authority
		} else {
			logger.Printf("invalid AUTHORITY=%q: %v", raw, err)
		}
	}
	env.int("CAPACITY", &s.hub.Session.Capacity)
	env.int("MAX_FOOD", &s.hub.World.MaxFood)
	env.float("ARENA_WIDTH", &s.hub.World.Arena.Width)
	env.float("ARENA_HEIGHT", &s.hub.World.Arena.Height)
	env.duration("TICK_INTERVAL", &s.hub.TickInterval)
	env.duration("FOOD_SPAWN_INTERVAL", &s.hub.FoodSpawnInterval)
	env.bool("DEBUG_TELEMETRY", &s.hub.DebugTelemetry)
	if raw := getenv("SEED"); raw != "" {
		s.hub.World.Seed = raw
	}

	var limit float64
	if env.float("RATE_LIMIT", &limit) {
		s.websocket.RateLimit = rate.Limit(limit)
	}
	env.int("RATE_BURST", &s.websocket.RateBurst)

	if raw := getenv("LOG_SINKS"); raw != "" {
		s.logging.EnabledSinks = logging.ParseSinks(raw)
	}
	s.logging.JSON.FilePath = strings.TrimSpace(getenv("LOG_JSON_PATH"))
	if raw := getenv("LOG_MIN_SEVERITY"); raw != "" {
		if severity, err := logging.ParseSeverity(raw); err == nil {
			s.logging.MinimumSeverity = severity
		} else {
			logger.Printf("invalid LOG_MIN_SEVERITY=%q: %v", raw, err)
		}
	}
	env.bool("LOG_ZAP_DEVELOPMENT", &s.logging.Zap.Development)
	env.bool("ENABLE_PPROF_TRACE", &s.observability.EnablePprofTrace)

	return s
}

// envReader parses optional variables, keeping the default and logging
// when a value does not parse.
type envReader struct {
	getenv func(string) string
	logger telemetry.Logger
}

func (e envReader) int(key string, dst *int) bool {
	raw := e.getenv(key)
	if raw == "" {
		return false
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		e.logger.Printf("invalid %s=%q: %v", key, raw, err)
		return false
	}
	*dst = value
	return true
}

func (e envReader) float(key string, dst *float64) bool {
	raw := e.getenv(key)
	if raw == "" {
		return false
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		e.logger.Printf("invalid %s=%q: %v", key, raw, err)
		return false
	}
	*dst = value
	return true
}

func (e envReader) duration(key string, dst *time.Duration) bool {
	raw := e.getenv(key)
	if raw == "" {
		return false
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		e.logger.Printf("invalid %s=%q: %v", key, raw, err)
		return false
	}
	*dst = value
	return true
}

func (e envReader) bool(key string, dst *bool) bool {
	raw := e.getenv(key)
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		e.logger.Printf("invalid %s=%q: %v", key, raw, err)
		return false
	}
	*dst = value
	return true
}
