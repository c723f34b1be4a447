package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	server "sharedspace/server"
	servernet "sharedspace/server/internal/net"
	"sharedspace/server/internal/telemetry"
	"sharedspace/server/logging"
	loggingSinks "sharedspace/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

// Run serves until ctx is cancelled or the listener fails.
func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	envFile := cfg.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		telemetryLogger.Printf("failed to load %s: %v", envFile, err)
	}

	s := loadSettings(cfg, telemetryLogger)

	sinks, err := buildSinks(s.logging, telemetryLogger)
	if err != nil {
		return fmt.Errorf("failed to construct logging sinks: %w", err)
	}
	router := logging.NewRouter(nil, s.logging, sinks)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	hubCfg := s.hub
	hubCfg.Logger = log.Default()
	hub := server.NewHubWithConfig(hubCfg, router)

	simCtx, stopSim := context.WithCancel(ctx)
	defer stopSim()
	go hub.RunSimulation(simCtx)

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		ClientDir:     cfg.ClientDir,
		Logger:        hubCfg.Logger,
		WebSocket:     s.websocket,
		Observability: s.observability,
		RouterStats:   router.Stats,
	})

	srv := &http.Server{Addr: s.addr, Handler: handler}
	telemetryLogger.Printf("server listening on %s (authority=%s capacity=%d)", srv.Addr, hub.Config().Authority, hub.Capacity())

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	hub.Close(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildSinks opens the sinks named in cfg.EnabledSinks.
func buildSinks(cfg logging.Config, logger telemetry.Logger) ([]logging.NamedSink, error) {
	named := make([]logging.NamedSink, 0, len(cfg.EnabledSinks))
	for _, name := range cfg.EnabledSinks {
		switch name {
		case "console":
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewConsoleSink(os.Stdout, cfg.Console)})
		case "json":
			var w io.Writer = struct{ io.Writer }{os.Stdout}
			if cfg.JSON.FilePath != "" {
				file, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					return nil, fmt.Errorf("open %s: %w", cfg.JSON.FilePath, err)
				}
				w = file
			}
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewJSON(w, cfg.JSON.FlushInterval)})
		case "zap":
			sink, err := loggingSinks.NewZapFromConfig(cfg.Zap)
			if err != nil {
				return nil, fmt.Errorf("zap sink: %w", err)
			}
			named = append(named, logging.NamedSink{Name: name, Sink: sink})
		default:
			logger.Printf("unknown log sink %q ignored", name)
		}
	}
	return named, nil
}
