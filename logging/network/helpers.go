package network

import (
	"context"

	"sharedspace/server/logging"
)

const (
	// EventMalformedMessage is emitted when an inbound frame is not valid JSON.
	EventMalformedMessage logging.EventType = "network.malformed_message"
	// EventSendFailed is emitted when an outbound frame could not be written to a link.
	EventSendFailed logging.EventType = "network.send_failed"
	// EventRateLimited is emitted when a link exceeds its inbound message budget.
	EventRateLimited logging.EventType = "network.rate_limited"
	// EventSignalDropped is emitted when a signaling payload has no live target.
	EventSignalDropped logging.EventType = "network.signal_dropped"
	// EventUnknownMessage is emitted for message types the server does not handle.
	EventUnknownMessage logging.EventType = "network.unknown_message"
)

// MalformedMessagePayload describes the rejected frame.
type MalformedMessagePayload struct {
	Error string `json:"error"`
	Bytes int    `json:"bytes"`
}

// SendFailedPayload describes a failed write.
type SendFailedPayload struct {
	MessageType string `json:"messageType"`
	Error       string `json:"error"`
}

// RateLimitedPayload describes the dropped message.
type RateLimitedPayload struct {
	MessageBytes int `json:"messageBytes"`
}

// SignalDroppedPayload names the missing target.
type SignalDroppedPayload struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// UnknownMessagePayload names the unhandled type.
type UnknownMessagePayload struct {
	MessageType string `json:"messageType"`
}

// MalformedMessage publishes a warning for an undecodable frame.
func MalformedMessage(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload MalformedMessagePayload) {
	publish(ctx, pub, EventMalformedMessage, logging.SeverityWarn, actor, nil, payload)
}

// SendFailed publishes a warning for a failed write; the link is scheduled for cleanup.
func SendFailed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SendFailedPayload) {
	publish(ctx, pub, EventSendFailed, logging.SeverityWarn, actor, nil, payload)
}

// RateLimited publishes a debug event for a throttled link.
func RateLimited(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload RateLimitedPayload) {
	publish(ctx, pub, EventRateLimited, logging.SeverityDebug, actor, nil, payload)
}

// SignalDropped publishes a debug event; missing targets are expected while peers disconnect.
func SignalDropped(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SignalDroppedPayload) {
	target := logging.ParticipantRef(payload.Target)
	publish(ctx, pub, EventSignalDropped, logging.SeverityDebug, actor, []logging.EntityRef{target}, payload)
}

// UnknownMessage publishes a debug event for an unhandled message type.
func UnknownMessage(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload UnknownMessagePayload) {
	publish(ctx, pub, EventUnknownMessage, logging.SeverityDebug, actor, nil, payload)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, actor logging.EntityRef, targets []logging.EntityRef, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Actor:    actor,
		Targets:  targets,
		Severity: severity,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
