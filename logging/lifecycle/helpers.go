package lifecycle

import (
	"context"

	"sharedspace/server/logging"
)

const (
	// EventParticipantJoined is emitted when a participant is admitted.
	EventParticipantJoined logging.EventType = "lifecycle.participant_joined"
	// EventParticipantLeft is emitted when a participant leaves or disconnects.
	EventParticipantLeft logging.EventType = "lifecycle.participant_left"
	// EventJoinRejected is emitted when a join is refused because the room is full.
	EventJoinRejected logging.EventType = "lifecycle.join_rejected"
	// EventParticipantRenamed is emitted when a participant changes display name.
	EventParticipantRenamed logging.EventType = "lifecycle.participant_renamed"
)

// ParticipantJoinedPayload captures spawn metadata for a new participant.
type ParticipantJoinedPayload struct {
	Name   string  `json:"name"`
	Color  string  `json:"color"`
	SpawnX float64 `json:"spawnX"`
	SpawnY float64 `json:"spawnY"`
}

// ParticipantLeftPayload captures the reason a participant left.
type ParticipantLeftPayload struct {
	Reason string `json:"reason"`
}

// JoinRejectedPayload captures the occupancy at rejection time.
type JoinRejectedPayload struct {
	Capacity int `json:"capacity"`
}

// ParticipantRenamedPayload captures the name transition.
type ParticipantRenamedPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func ParticipantJoined(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ParticipantJoinedPayload) {
	publish(ctx, pub, EventParticipantJoined, logging.SeverityInfo, actor, payload)
}

func ParticipantLeft(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ParticipantLeftPayload) {
	publish(ctx, pub, EventParticipantLeft, logging.SeverityInfo, actor, payload)
}

func JoinRejected(ctx context.Context, pub logging.Publisher, payload JoinRejectedPayload) {
	publish(ctx, pub, EventJoinRejected, logging.SeverityWarn, logging.EntityRef{Kind: logging.EntityKindLink}, payload)
}

func ParticipantRenamed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ParticipantRenamedPayload) {
	publish(ctx, pub, EventParticipantRenamed, logging.SeverityInfo, actor, payload)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, actor logging.EntityRef, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}
