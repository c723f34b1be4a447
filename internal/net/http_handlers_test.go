package net

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"sharedspace/server"
	"sharedspace/server/internal/net/proto"
	"sharedspace/server/internal/observability"
	"sharedspace/server/logging"
)

type nopLink struct{}

func (nopLink) Send([]byte) error { return nil }
func (nopLink) Close() error      { return nil }

func newTestHandler(t *testing.T, cfg HTTPHandlerConfig) (*server.Hub, http.Handler) {
	t.Helper()
	hubCfg := server.DefaultHubConfig()
	hubCfg.World.Seed = "http-test"
	hubCfg.Logger = log.New(io.Discard, "", 0)
	hub := server.NewHubWithConfig(hubCfg, nil)
	cfg.Logger = log.New(io.Discard, "", 0)
	return hub, NewHTTPHandler(hub, cfg)
}

func TestHealth(t *testing.T) {
	_, handler := newTestHandler(t, HTTPHandlerConfig{})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.Code, resp.Body.String())
	}
}

func TestDiagnosticsListsParticipantsAndTelemetry(t *testing.T) {
	hub, handler := newTestHandler(t, HTTPHandlerConfig{
		RouterStats: func() logging.RouterStats { return logging.RouterStats{EventsTotal: 7} },
	})
	participant, err := hub.Join(context.Background(), "Ada", nopLink{})
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	if contentType := resp.Header().Get("Content-Type"); contentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", contentType)
	}

	var payload struct {
		Participants []struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Length int    `json:"length"`
		} `json:"participants"`
		Telemetry struct {
			Participants int               `json:"participants"`
			Capacity     int               `json:"capacity"`
			Food         int               `json:"food"`
			Counters     map[string]uint64 `json:"counters"`
		} `json:"telemetry"`
		Logging struct {
			EventsTotal uint64 `json:"eventsTotal"`
		} `json:"logging"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode diagnostics payload: %v", err)
	}
	if len(payload.Participants) != 1 || payload.Participants[0].ID != participant.ID {
		t.Fatalf("expected the joined participant, got %+v", payload.Participants)
	}
	if payload.Participants[0].Length != 15 {
		t.Fatalf("expected initial length 15, got %d", payload.Participants[0].Length)
	}
	if payload.Telemetry.Capacity != 3 || payload.Telemetry.Participants != 1 || payload.Telemetry.Food != 1 {
		t.Fatalf("unexpected telemetry %+v", payload.Telemetry)
	}
	if payload.Telemetry.Counters["joins_total"] != 1 {
		t.Fatalf("expected joins_total counter, got %v", payload.Telemetry.Counters)
	}
	if payload.Logging.EventsTotal != 7 {
		t.Fatalf("expected router stats, got %+v", payload.Logging)
	}
}

func TestProtocolSchemaServed(t *testing.T) {
	_, handler := newTestHandler(t, HTTPHandlerConfig{})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/protocol/schema", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}

	var payload struct {
		Definitions map[string]any `json:"$defs"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode schema: %v", err)
	}
	for _, name := range []string{"client", proto.TypeInitialState, proto.TypeRoomFull} {
		if _, ok := payload.Definitions[name]; !ok {
			t.Fatalf("expected schema definition %q, got %v", name, payload.Definitions)
		}
	}
}

func TestWorldResetRejectsWrongMethod(t *testing.T) {
	_, handler := newTestHandler(t, HTTPHandlerConfig{})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/world/reset", nil))
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405 Method Not Allowed, got %d", resp.Code)
	}
}

func TestWorldResetRecentersParticipants(t *testing.T) {
	hub, handler := newTestHandler(t, HTTPHandlerConfig{})
	if _, err := hub.Join(context.Background(), "Ada", nopLink{}); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/world/reset", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}

	center := hub.Config().World.Arena.Center()
	for _, entry := range hub.DiagnosticsSnapshot() {
		if entry.Position != center || entry.Trail != 0 {
			t.Fatalf("expected %s at the center with no trail, got %+v", entry.ID, entry)
		}
	}
}

func TestPprofMountedWhenEnabled(t *testing.T) {
	_, disabled := newTestHandler(t, HTTPHandlerConfig{})
	resp := httptest.NewRecorder()
	disabled.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected pprof hidden by default, got %d", resp.Code)
	}

	_, enabled := newTestHandler(t, HTTPHandlerConfig{Observability: observability.Config{EnablePprofTrace: true}})
	resp = httptest.NewRecorder()
	enabled.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected pprof index, got %d", resp.Code)
	}
}
