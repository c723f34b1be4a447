package server

import (
	"sync/atomic"
	"time"

	"sharedspace/server/internal/telemetry"
)

type telemetryCounters struct {
	metrics            *telemetry.Counters
	logger             telemetry.Logger
	tickDurationMillis atomic.Int64
	debug              bool
}

type telemetrySnapshot struct {
	Authority    string            `json:"authority"`
	Tick         uint64            `json:"tick"`
	TickDuration int64             `json:"tickDurationMillis"`
	Participants int               `json:"participants"`
	Capacity     int               `json:"capacity"`
	Food         int               `json:"food"`
	Counters     map[string]uint64 `json:"counters"`
}

func newTelemetryCounters(metrics *telemetry.Counters, debug bool, logger telemetry.Logger) *telemetryCounters {
	return &telemetryCounters{metrics: metrics, debug: debug, logger: logger}
}

func (t *telemetryCounters) RecordTickDuration(duration time.Duration) {
	millis := duration.Milliseconds()
	if millis < 0 {
		millis = 0
	}
	t.tickDurationMillis.Store(millis)
	if t.debug && t.logger != nil {
		t.logger.Printf(
			"[telemetry] tick=%dms frames=%d bytes=%d lastBytes=%d",
			millis,
			t.metrics.Value("broadcast_frames_total"),
			t.metrics.Value("broadcast_bytes_total"),
			t.metrics.Value("broadcast_last_bytes"),
		)
	}
}

// TelemetrySnapshot exposes the hub counters for the diagnostics endpoint.
func (h *Hub) TelemetrySnapshot() telemetrySnapshot {
	return telemetrySnapshot{
		Authority:    string(h.cfg.Authority),
		Tick:         h.loop.Tick(),
		TickDuration: h.telemetry.tickDurationMillis.Load(),
		Participants: h.registry.Len(),
		Capacity:     h.registry.Capacity(),
		Food:         h.store.FoodCount(),
		Counters:     h.metrics.Snapshot(),
	}
}
