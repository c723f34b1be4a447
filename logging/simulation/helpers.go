package simulation

import (
	"context"

	"sharedspace/server/logging"
)

const (
	// EventParticipantReset is emitted when a tick ends in a collision reset.
	EventParticipantReset logging.EventType = "simulation.participant_reset"
	// EventFoodConsumed is emitted when a food item is removed by a participant.
	EventFoodConsumed logging.EventType = "simulation.food_consumed"
	// EventFoodSpawned is emitted when the spawn timer adds a food item.
	EventFoodSpawned logging.EventType = "simulation.food_spawned"
	// EventTickOverrun is emitted when a movement tick takes longer than its interval.
	EventTickOverrun logging.EventType = "simulation.tick_overrun"
	// EventCommandDropped is emitted when a queued command is refused.
	EventCommandDropped logging.EventType = "simulation.command_dropped"
)

// ParticipantResetPayload names the collision that caused the reset.
type ParticipantResetPayload struct {
	Cause  string `json:"cause"`
	Length int    `json:"length"`
}

// FoodConsumedPayload identifies the consumed item.
type FoodConsumedPayload struct {
	FoodID    string `json:"foodId"`
	Remaining int    `json:"remaining"`
}

// FoodSpawnedPayload locates the new item.
type FoodSpawnedPayload struct {
	FoodID string  `json:"foodId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Total  int     `json:"total"`
}

// TickOverrunPayload captures timing details for a slow tick.
type TickOverrunPayload struct {
	DurationMillis int64 `json:"durationMillis"`
	BudgetMillis   int64 `json:"budgetMillis"`
}

// CommandDroppedPayload names the refused command and why.
type CommandDroppedPayload struct {
	Reason  string `json:"reason"`
	Command string `json:"command"`
}

func ParticipantReset(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ParticipantResetPayload) {
	publish(ctx, pub, EventParticipantReset, logging.SeverityDebug, tick, actor, payload)
}

func FoodConsumed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload FoodConsumedPayload) {
	publish(ctx, pub, EventFoodConsumed, logging.SeverityInfo, tick, actor, payload)
}

func FoodSpawned(ctx context.Context, pub logging.Publisher, tick uint64, payload FoodSpawnedPayload) {
	publish(ctx, pub, EventFoodSpawned, logging.SeverityDebug, tick, logging.EntityRef{ID: payload.FoodID, Kind: logging.EntityKindFood}, payload)
}

func TickOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickOverrunPayload) {
	publish(ctx, pub, EventTickOverrun, logging.SeverityWarn, tick, logging.EntityRef{Kind: logging.EntityKindWorld}, payload)
}

func CommandDropped(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CommandDroppedPayload) {
	publish(ctx, pub, EventCommandDropped, logging.SeverityDebug, tick, actor, payload)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}
