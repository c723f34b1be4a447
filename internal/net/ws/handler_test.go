package ws

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"sharedspace/server"
	"sharedspace/server/internal/net/proto"
	"sharedspace/server/logging/network"
	"sharedspace/server/logging/sinks"
)

func newTestServer(t *testing.T, mutate func(*server.HubConfig), handlerCfg HandlerConfig) (*server.Hub, *sinks.MemorySink, string) {
	t.Helper()
	cfg := server.DefaultHubConfig()
	cfg.World.Seed = "ws-test"
	cfg.Logger = log.New(io.Discard, "", 0)
	if mutate != nil {
		mutate(&cfg)
	}
	memory := sinks.NewMemorySink()
	hub := server.NewHubWithConfig(cfg, memory)

	handlerCfg.Logger = log.New(io.Discard, "", 0)
	handlerCfg.Publisher = memory
	handler := NewHandler(hub, handlerCfg)
	srv := httptest.NewServer(http.HandlerFunc(handler.Handle))
	t.Cleanup(srv.Close)
	return hub, memory, websocketURL(t, srv.URL)
}

func websocketURL(t *testing.T, baseURL string) string {
	t.Helper()

	parsed, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("failed to parse test server url: %v", err)
	}
	parsed.Scheme = "ws"
	parsed.Path = "/ws"
	return parsed.String()
}

func dial(t *testing.T, rawURL string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(rawURL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	return conn
}

func send(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

// readType reads frames until one of the given type arrives.
func readType(t *testing.T, conn *websocket.Conn, messageType string) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", messageType, err)
		}
		var frame map[string]any
		if err := json.Unmarshal(payload, &frame); err != nil {
			t.Fatalf("failed to decode websocket payload: %v", err)
		}
		if frame["type"] == messageType {
			return frame
		}
	}
}

func join(t *testing.T, conn *websocket.Conn, name string) string {
	t.Helper()
	send(t, conn, `{"type":"join","name":"`+name+`"}`)
	frame := readType(t, conn, proto.TypeInitialState)
	id, _ := frame["selfId"].(string)
	if id == "" {
		t.Fatalf("expected selfId in initial state, got %v", frame)
	}
	return id
}

func TestJoinAndLeaveAnnounced(t *testing.T) {
	_, _, wsURL := newTestServer(t, nil, HandlerConfig{})

	first := dial(t, wsURL)
	join(t, first, "Ada")

	second := dial(t, wsURL)
	secondID := join(t, second, "Bob")

	joined := readType(t, first, proto.TypeUserJoined)
	player, _ := joined["player"].(map[string]any)
	if player["id"] != secondID || player["name"] != "Bob" {
		t.Fatalf("unexpected user-joined %v", joined)
	}

	send(t, second, `{"type":"leave"}`)
	left := readType(t, first, proto.TypeUserLeft)
	if left["userId"] != secondID {
		t.Fatalf("unexpected user-left %v", left)
	}
}

func TestRoomFullClosesWithTryAgainLater(t *testing.T) {
	_, _, wsURL := newTestServer(t, func(cfg *server.HubConfig) { cfg.Session.Capacity = 1 }, HandlerConfig{})

	join(t, dial(t, wsURL), "Ada")

	late := dial(t, wsURL)
	send(t, late, `{"type":"join","name":"late"}`)
	notice := readType(t, late, proto.TypeRoomFull)
	if notice["capacity"] != float64(1) {
		t.Fatalf("unexpected room-full %v", notice)
	}

	late.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := late.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
		t.Fatalf("expected try-again-later close, got %v", err)
	}
}

func TestMessagesBeforeJoinAreRejected(t *testing.T) {
	_, _, wsURL := newTestServer(t, nil, HandlerConfig{})

	conn := dial(t, wsURL)
	send(t, conn, `{"type":"player-move","direction":{"x":0,"y":1}}`)
	frame := readType(t, conn, proto.TypeError)
	if frame["code"] != proto.CodeNotJoined {
		t.Fatalf("expected not_joined error, got %v", frame)
	}
}

func TestMalformedMessageKeepsConnectionOpen(t *testing.T) {
	_, memory, wsURL := newTestServer(t, nil, HandlerConfig{})

	conn := dial(t, wsURL)
	id := join(t, conn, "Ada")

	send(t, conn, `{not json`)
	frame := readType(t, conn, proto.TypeError)
	if frame["code"] != proto.CodeMalformed {
		t.Fatalf("expected malformed error, got %v", frame)
	}

	send(t, conn, `{"type":"rename","name":"Grace"}`)
	updated := readType(t, conn, proto.TypeUserUpdated)
	player, _ := updated["player"].(map[string]any)
	if player["id"] != id || player["name"] != "Grace" {
		t.Fatalf("unexpected user-updated %v", updated)
	}
	if len(memory.EventsOfType(network.EventMalformedMessage)) != 1 {
		t.Fatalf("expected a malformed message event")
	}
}

func TestSecondJoinIsRejected(t *testing.T) {
	hub, _, wsURL := newTestServer(t, nil, HandlerConfig{})

	conn := dial(t, wsURL)
	join(t, conn, "Ada")
	send(t, conn, `{"type":"join","name":"again"}`)
	frame := readType(t, conn, proto.TypeError)
	if frame["code"] != proto.CodeAlreadyJoined {
		t.Fatalf("expected already_joined error, got %v", frame)
	}
	if len(hub.Participants()) != 1 {
		t.Fatalf("expected a single participant, got %d", len(hub.Participants()))
	}
}

func TestBlankRenameRejected(t *testing.T) {
	_, _, wsURL := newTestServer(t, nil, HandlerConfig{})

	conn := dial(t, wsURL)
	join(t, conn, "Ada")
	send(t, conn, `{"type":"rename","name":"   "}`)
	frame := readType(t, conn, proto.TypeError)
	if frame["code"] != proto.CodeInvalidName {
		t.Fatalf("expected invalid_name error, got %v", frame)
	}
}

func TestSignalForwardedVerbatim(t *testing.T) {
	_, _, wsURL := newTestServer(t, nil, HandlerConfig{})

	caller := dial(t, wsURL)
	callerID := join(t, caller, "caller")
	callee := dial(t, wsURL)
	calleeID := join(t, callee, "callee")

	send(t, caller, `{"type":"signal","targetId":"`+calleeID+`","signal":{"type":"offer","sdp":"v=0"}}`)
	frame := readType(t, callee, proto.TypeSignal)
	if frame["from"] != callerID {
		t.Fatalf("expected signal from %s, got %v", callerID, frame)
	}
	signal, _ := frame["signal"].(map[string]any)
	if signal["type"] != "offer" || signal["sdp"] != "v=0" {
		t.Fatalf("expected payload forwarded verbatim, got %v", frame["signal"])
	}
}

func TestRateLimitRepliesWithError(t *testing.T) {
	_, memory, wsURL := newTestServer(t, nil, HandlerConfig{RateLimit: 0.001, RateBurst: 2})

	conn := dial(t, wsURL)
	join(t, conn, "Ada")
	send(t, conn, `{"type":"draw","start":{"x":1,"y":1},"end":{"x":2,"y":2}}`)
	send(t, conn, `{"type":"draw","start":{"x":1,"y":1},"end":{"x":2,"y":2}}`)

	frame := readType(t, conn, proto.TypeError)
	if frame["code"] != proto.CodeRateLimited {
		t.Fatalf("expected rate_limited error, got %v", frame)
	}
	if len(memory.EventsOfType(network.EventRateLimited)) == 0 {
		t.Fatalf("expected a rate limited event")
	}
}

func TestUnknownTypeWithForeignFieldsIsIgnored(t *testing.T) {
	_, memory, wsURL := newTestServer(t, nil, HandlerConfig{})

	conn := dial(t, wsURL)
	join(t, conn, "Ada")
	send(t, conn, `{"type":"cursor-move","direction":"north","state":[1,2]}`)
	send(t, conn, `{"type":"rename","name":"Grace"}`)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for user-updated: %v", err)
		}
		kind := proto.PeekType(payload)
		if kind == proto.TypeError {
			t.Fatalf("expected no reply to an unknown type, got %s", payload)
		}
		if kind == proto.TypeUserUpdated {
			break
		}
	}

	events := memory.EventsOfType(network.EventUnknownMessage)
	if len(events) != 1 {
		t.Fatalf("expected one unknown message event, got %d", len(events))
	}
	if payload, _ := events[0].Payload.(network.UnknownMessagePayload); payload.MessageType != "cursor-move" {
		t.Fatalf("unexpected unknown message payload %+v", events[0].Payload)
	}
	if addr, _ := events[0].Extra["remoteAddr"].(string); addr == "" {
		t.Fatalf("expected the connection address on the event, got %v", events[0].Extra)
	}
}
