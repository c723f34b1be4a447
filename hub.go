package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"sharedspace/server/internal/broadcast"
	"sharedspace/server/internal/net/proto"
	"sharedspace/server/internal/session"
	"sharedspace/server/internal/signaling"
	"sharedspace/server/internal/sim"
	"sharedspace/server/internal/telemetry"
	"sharedspace/server/internal/world"
	"sharedspace/server/logging"
	"sharedspace/server/logging/lifecycle"
	"sharedspace/server/logging/simulation"
)

var (
	// ErrNotJoined rejects participant messages from a link that has not joined.
	ErrNotJoined = errors.New("server: participant has not joined")
	// ErrAlreadyJoined rejects a second join on the same link.
	ErrAlreadyJoined = errors.New("server: participant already joined")
)

// Disconnect reasons reported in lifecycle events.
const (
	ReasonLeave      = "leave"
	ReasonClosed     = "closed"
	ReasonSendFailed = "send_failed"
	ReasonShutdown   = "shutdown"
)

// Hub owns the room: the participant registry, the world store, the
// simulation loop, the signaling relay and the broadcast dispatcher.
type Hub struct {
	cfg       HubConfig
	registry  *session.Registry
	store     *world.Store
	engine    *sim.Engine
	loop      *sim.Loop
	relay     *signaling.Relay
	dispatch  *broadcast.Dispatcher
	publisher logging.Publisher
	logger    telemetry.Logger
	metrics   *telemetry.Counters
	telemetry *telemetryCounters
}

// NewHub creates a hub with the default configuration.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig(), nil)
}

// NewHubWithConfig creates a hub publishing structured events to pub.
func NewHubWithConfig(cfg HubConfig, pub logging.Publisher) *Hub {
	cfg = cfg.Normalized()
	if pub == nil {
		pub = logging.NopPublisher()
	}
	stdLogger := cfg.Logger
	if stdLogger == nil {
		stdLogger = log.Default()
	}

	h := &Hub{
		cfg:       cfg,
		registry:  session.NewRegistry(cfg.Session),
		store:     world.NewStore(cfg.World),
		publisher: pub,
		logger:    telemetry.WrapLogger(stdLogger),
		metrics:   telemetry.NewCounters(),
	}
	h.telemetry = newTelemetryCounters(h.metrics, cfg.DebugTelemetry, h.logger)
	h.engine = sim.NewEngine(h.store, cfg.Rules)
	h.relay = signaling.NewRelay(h.registry, pub, h.metrics)
	h.dispatch = broadcast.NewDispatcher(h.registry, broadcast.Config{
		Publisher: pub,
		Metrics:   h.metrics,
		OnFailure: func(ctx context.Context, id string, err error) {
			h.Disconnect(ctx, id, ReasonSendFailed)
		},
	})
	h.loop = sim.NewLoop(h.engine, sim.LoopConfig{
		TickInterval:      cfg.TickInterval,
		FoodSpawnInterval: cfg.FoodSpawnInterval,
		Simulate:          cfg.Authority == AuthorityServer,
		CommandCapacity:   cfg.CommandCapacity,
		PerActorLimit:     cfg.PerActorCommands,
	}, sim.Deps{
		Logger:    h.logger,
		Metrics:   h.metrics,
		Publisher: pub,
	}, sim.LoopHooks{
		AfterStep: h.afterStep,
		OnFoodSpawned: func(item world.FoodItem, food []world.FoodItem) {
			h.dispatch.Broadcast(context.Background(), proto.FoodUpdate{Food: proto.FoodFromItems(food)}, "")
		},
		OnCommandDrop: func(reason string, cmd sim.Command) {
			simulation.CommandDropped(context.Background(), h.publisher, h.loop.Tick(), logging.ParticipantRef(cmd.ActorID), simulation.CommandDroppedPayload{
				Reason:  reason,
				Command: string(cmd.Type),
			})
		},
	})
	return h
}

// Config returns the normalized configuration.
func (h *Hub) Config() HubConfig {
	return h.cfg
}

// Capacity returns the participant limit.
func (h *Hub) Capacity() int {
	return h.registry.Capacity()
}

// Participants lists the connected participants in join order.
func (h *Hub) Participants() []session.Participant {
	return h.registry.List()
}

// Join admits a participant for link, sends it the initial state and
// announces it to everyone else. A full room gets a room-full notice and
// session.ErrCapacityExceeded; nothing else changes.
func (h *Hub) Join(ctx context.Context, nameHint string, link session.Link) (session.Participant, error) {
	participant, err := h.registry.Admit(nameHint, link)
	if err != nil {
		if errors.Is(err, session.ErrCapacityExceeded) {
			h.metrics.Add("joins_rejected_total", 1)
			lifecycle.JoinRejected(ctx, h.publisher, lifecycle.JoinRejectedPayload{Capacity: h.registry.Capacity()})
			if data, encErr := proto.Encode(proto.RoomFull{Capacity: h.registry.Capacity()}); encErr == nil {
				link.Send(data)
			}
		}
		return session.Participant{}, fmt.Errorf("join: %w", err)
	}

	state, err := h.store.InitMovement(participant.ID, h.store.RandomSpawn())
	if err != nil {
		h.registry.Remove(participant.ID)
		return session.Participant{}, fmt.Errorf("join %s: %w", participant.ID, err)
	}

	snapshot := h.store.Snapshot()
	initial := proto.InitialState{
		SelfID:   participant.ID,
		Users:    h.registry.List(),
		Players:  snapshot.Movement,
		Food:     proto.FoodFromItems(snapshot.Food),
		Arena:    h.store.Arena(),
		Capacity: h.registry.Capacity(),
	}
	if err := h.dispatch.Send(ctx, participant.ID, link, initial); err != nil {
		return session.Participant{}, fmt.Errorf("join %s: initial state: %w", participant.ID, err)
	}

	h.metrics.Add("joins_total", 1)
	lifecycle.ParticipantJoined(ctx, h.publisher, logging.ParticipantRef(participant.ID), lifecycle.ParticipantJoinedPayload{
		Name:   participant.Name,
		Color:  participant.Color.String(),
		SpawnX: state.Position.X,
		SpawnY: state.Position.Y,
	})
	h.dispatch.Broadcast(ctx, proto.UserJoined{Player: participant, State: &state}, participant.ID)
	return participant, nil
}

// Disconnect removes a participant and announces the departure. It is safe
// to call any number of times; only the first call for an id has effect.
func (h *Hub) Disconnect(ctx context.Context, id, reason string) bool {
	if id == "" {
		return false
	}
	link, _ := h.registry.Lookup(id)

	// Movement goes first so every movement owner stays registered.
	h.store.DeleteMovement(id)
	if _, err := h.registry.Remove(id); err != nil {
		return false
	}
	if link != nil {
		link.Close()
	}

	h.metrics.Add("disconnects_total", 1)
	lifecycle.ParticipantLeft(ctx, h.publisher, logging.ParticipantRef(id), lifecycle.ParticipantLeftPayload{Reason: reason})
	h.dispatch.Broadcast(ctx, proto.UserLeft{UserID: id}, id)
	return true
}

// HandleMove applies a movement message. Under server authority only the
// heading is read and queued for the next tick; under client authority the
// reported state is sanitized, stored and relayed to the others.
func (h *Hub) HandleMove(ctx context.Context, id string, msg proto.ClientMessage) error {
	if _, ok := h.registry.Get(id); !ok {
		return ErrNotJoined
	}

	if h.cfg.Authority == AuthorityServer {
		heading, ok := msg.Heading()
		if !ok {
			return nil
		}
		h.loop.Enqueue(sim.Command{
			ActorID:  id,
			Type:     sim.CommandTurn,
			IssuedAt: time.Now(),
			Turn:     &sim.TurnCommand{Heading: heading},
		})
		return nil
	}

	if msg.State == nil {
		return nil
	}
	clean, err := h.engine.ApplyReported(id, *msg.State)
	if err != nil {
		return err
	}
	h.dispatch.Broadcast(ctx, proto.PlayerMove{UserID: id, State: clean}, id)
	return nil
}

// HandleFoodEaten consumes a food item reported by a client. Under server
// authority the engine detects consumption itself and reports are ignored.
// A stale id or index returns world.ErrStaleFood or world.ErrStaleIndex.
func (h *Hub) HandleFoodEaten(ctx context.Context, id string, msg proto.ClientMessage) error {
	if _, ok := h.registry.Get(id); !ok {
		return ErrNotJoined
	}
	if h.cfg.Authority == AuthorityServer {
		h.metrics.Add("food_reports_ignored_total", 1)
		return nil
	}

	var err error
	switch {
	case msg.FoodID != "":
		_, err = h.store.ConsumeFood(world.FoodID(msg.FoodID))
	case msg.FoodIndex != nil:
		_, err = h.store.ConsumeFoodAt(*msg.FoodIndex)
	default:
		return nil
	}
	if err != nil {
		h.metrics.Add("food_reports_stale_total", 1)
		return err
	}
	h.dispatch.Broadcast(ctx, proto.FoodUpdate{Food: proto.FoodFromItems(h.store.Food())}, "")
	return nil
}

// HandleSignal relays an opaque negotiation payload to targetID.
func (h *Hub) HandleSignal(ctx context.Context, id, targetID string, payload json.RawMessage) error {
	if _, ok := h.registry.Get(id); !ok {
		return ErrNotJoined
	}
	if _, err := h.relay.Relay(ctx, id, targetID, payload); err != nil {
		h.Disconnect(ctx, targetID, ReasonSendFailed)
	}
	return nil
}

// HandleDraw stamps a canvas segment with its author and relays it.
func (h *Hub) HandleDraw(ctx context.Context, id string, start, end world.Point) error {
	participant, ok := h.registry.Get(id)
	if !ok {
		return ErrNotJoined
	}
	h.dispatch.Broadcast(ctx, proto.DrawingData{
		UserID: id,
		Color:  participant.Color,
		Start:  start,
		End:    end,
	}, id)
	return nil
}

// Rename changes a participant's display name and announces it to everyone.
func (h *Hub) Rename(ctx context.Context, id, name string) (session.Participant, error) {
	before, ok := h.registry.Get(id)
	if !ok {
		return session.Participant{}, ErrNotJoined
	}
	participant, err := h.registry.Rename(id, name)
	if err != nil {
		return session.Participant{}, err
	}
	lifecycle.ParticipantRenamed(ctx, h.publisher, logging.ParticipantRef(id), lifecycle.ParticipantRenamedPayload{
		From: before.Name,
		To:   participant.Name,
	})
	h.dispatch.Broadcast(ctx, proto.UserUpdated{Player: participant}, "")
	return participant, nil
}

// ResetWorld sends every participant back to the arena center and reseeds
// the food collection.
func (h *Hub) ResetWorld(ctx context.Context) {
	center := h.store.Arena().Center()
	for _, id := range h.store.IDs() {
		state, err := h.store.UpdateMovement(id, func(state *world.MovementState) error {
			*state = world.NewMovementState(center, h.engine.Rules().InitialLength)
			return nil
		})
		if err != nil {
			continue
		}
		h.dispatch.Broadcast(ctx, proto.PlayerMove{UserID: id, State: state, Reset: true}, "")
	}
	food := h.store.ResetFood()
	h.dispatch.Broadcast(ctx, proto.FoodUpdate{Food: proto.FoodFromItems(food)}, "")
}

// RunSimulation drives the tick and food spawn timers until ctx is done.
func (h *Hub) RunSimulation(ctx context.Context) {
	h.loop.Run(ctx)
}

// Close disconnects every participant.
func (h *Hub) Close(ctx context.Context) {
	for _, participant := range h.registry.List() {
		h.Disconnect(ctx, participant.ID, ReasonShutdown)
	}
}

func (h *Hub) afterStep(result sim.LoopStepResult) {
	ctx := context.Background()
	h.telemetry.RecordTickDuration(result.Duration)
	for _, move := range result.Moves {
		h.dispatch.Broadcast(ctx, proto.PlayerMove{UserID: move.ID, State: move.State, Reset: move.Reset}, "")
	}
	if result.FoodChanged {
		h.dispatch.Broadcast(ctx, proto.FoodUpdate{Food: proto.FoodFromItems(result.Food)}, "")
	}
}

type diagnosticsParticipant struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Color    string      `json:"color"`
	Position world.Point `json:"position"`
	Length   int         `json:"length"`
	Trail    int         `json:"trail"`
}

// DiagnosticsSnapshot exposes per-participant state for the diagnostics endpoint.
func (h *Hub) DiagnosticsSnapshot() []diagnosticsParticipant {
	participants := h.registry.List()
	out := make([]diagnosticsParticipant, 0, len(participants))
	for _, p := range participants {
		entry := diagnosticsParticipant{ID: p.ID, Name: p.Name, Color: p.Color.String()}
		if state, ok := h.store.Movement(p.ID); ok {
			entry.Position = state.Position
			entry.Length = state.Length
			entry.Trail = len(state.Trail)
		}
		out = append(out, entry)
	}
	return out
}
