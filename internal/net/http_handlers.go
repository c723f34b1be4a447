package net

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"time"

	"sharedspace/server"
	"sharedspace/server/internal/net/proto"
	"sharedspace/server/internal/net/ws"
	"sharedspace/server/internal/observability"
	"sharedspace/server/logging"
)

type HTTPHandlerConfig struct {
	ClientDir     string
	Logger        *log.Logger
	WebSocket     ws.HandlerConfig
	Observability observability.Config
	// RouterStats reports the logging router counters on /diagnostics.
	RouterStats func() logging.RouterStats
}

func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if cfg.WebSocket.Logger == nil {
		cfg.WebSocket.Logger = logger
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status       string               `json:"status"`
			ServerTime   int64                `json:"serverTime"`
			Participants any                  `json:"participants"`
			TickMillis   int64                `json:"tickMillis"`
			Telemetry    any                  `json:"telemetry"`
			Logging      *logging.RouterStats `json:"logging,omitempty"`
		}{
			Status:       "ok",
			ServerTime:   time.Now().UnixMilli(),
			Participants: hub.DiagnosticsSnapshot(),
			TickMillis:   hub.Config().TickInterval.Milliseconds(),
			Telemetry:    hub.TelemetrySnapshot(),
		}
		if cfg.RouterStats != nil {
			stats := cfg.RouterStats()
			payload.Logging = &stats
		}
		writeJSON(w, payload)
	})

	mux.HandleFunc("/protocol/schema", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, proto.Schema())
	})

	mux.HandleFunc("/world/reset", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		hub.ResetWorld(r.Context())
		logger.Printf("world reset requested by %s", r.RemoteAddr)

		response := struct {
			Status       string `json:"status"`
			Participants int    `json:"participants"`
		}{
			Status:       "ok",
			Participants: len(hub.Participants()),
		}
		writeJSON(w, response)
	})

	mux.HandleFunc("/ws", ws.NewHandler(hub, cfg.WebSocket).Handle)

	cfg.Observability.Register(mux)

	if cfg.ClientDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.ClientDir))
		mux.Handle("/", fs)
	}

	return mux
}

func writeJSON(w nethttp.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
