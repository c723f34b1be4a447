// Package signaling forwards opaque peer negotiation payloads between
// participants. Payloads are never parsed.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"

	"sharedspace/server/internal/net/proto"
	"sharedspace/server/internal/session"
	"sharedspace/server/internal/telemetry"
	"sharedspace/server/logging"
	"sharedspace/server/logging/network"
)

const (
	metricRelayed = "signal_relayed_total"
	metricDropped = "signal_dropped_total"
)

// Drop reasons reported in network.SignalDroppedPayload.
const (
	ReasonUnknownTarget = "unknown_target"
	ReasonSelfTarget    = "self_target"
	ReasonEmptyTarget   = "empty_target"
)

// Directory resolves a participant id to its link.
type Directory interface {
	Lookup(id string) (session.Link, bool)
}

// Relay delivers signals to the link registered for the target id.
type Relay struct {
	dir     Directory
	pub     logging.Publisher
	metrics telemetry.Metrics
}

func NewRelay(dir Directory, pub logging.Publisher, metrics telemetry.Metrics) *Relay {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &Relay{dir: dir, pub: pub, metrics: metrics}
}

// Relay forwards payload from one participant to another. It reports
// whether the payload was handed to a link. A missing target is not an
// error: the peer may have left mid-negotiation. The returned error is the
// target link's send failure, if any.
func (r *Relay) Relay(ctx context.Context, from, to string, payload json.RawMessage) (bool, error) {
	switch {
	case to == "":
		r.drop(ctx, from, to, ReasonEmptyTarget)
		return false, nil
	case to == from:
		r.drop(ctx, from, to, ReasonSelfTarget)
		return false, nil
	}

	link, ok := r.dir.Lookup(to)
	if !ok {
		r.drop(ctx, from, to, ReasonUnknownTarget)
		return false, nil
	}

	data, err := proto.Encode(proto.Signal{From: from, Payload: payload})
	if err != nil {
		return false, err
	}
	if err := link.Send(data); err != nil {
		return false, fmt.Errorf("relay signal to %s: %w", to, err)
	}
	r.metrics.Add(metricRelayed, 1)
	return true, nil
}

func (r *Relay) drop(ctx context.Context, from, to, reason string) {
	r.metrics.Add(metricDropped, 1)
	network.SignalDropped(ctx, r.pub, logging.ParticipantRef(from), network.SignalDroppedPayload{
		Target: to,
		Reason: reason,
	})
}
