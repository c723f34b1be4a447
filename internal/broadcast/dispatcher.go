// Package broadcast fans typed server messages out to participant links.
package broadcast

import (
	"context"

	"sharedspace/server/internal/net/proto"
	"sharedspace/server/internal/session"
	"sharedspace/server/internal/telemetry"
	"sharedspace/server/logging"
	"sharedspace/server/logging/network"
)

const (
	metricMessages  = "broadcast_messages_total"
	metricFrames    = "broadcast_frames_total"
	metricBytes     = "broadcast_bytes_total"
	metricLastBytes = "broadcast_last_bytes"
	metricFailures  = "broadcast_failures_total"
)

// Source lists the current recipients.
type Source interface {
	Recipients(exclude string) []session.Recipient
}

// Failure is one recipient whose send failed.
type Failure struct {
	ID  string
	Err error
}

// Result summarises one fan-out.
type Result struct {
	Sent   int
	Failed []Failure
}

// Config wires the dispatcher's collaborators. OnFailure runs once per
// failed recipient after every recipient has been attempted.
type Config struct {
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	OnFailure func(ctx context.Context, id string, err error)
}

// Dispatcher encodes each message once and sends it to every recipient.
// A failed send never stops delivery to the others.
type Dispatcher struct {
	src       Source
	pub       logging.Publisher
	metrics   telemetry.Metrics
	onFailure func(ctx context.Context, id string, err error)
}

func NewDispatcher(src Source, cfg Config) *Dispatcher {
	d := &Dispatcher{
		src:       src,
		pub:       cfg.Publisher,
		metrics:   cfg.Metrics,
		onFailure: cfg.OnFailure,
	}
	if d.pub == nil {
		d.pub = logging.NopPublisher()
	}
	if d.metrics == nil {
		d.metrics = telemetry.NopMetrics()
	}
	return d
}

// Broadcast sends msg to every recipient except exclude.
func (d *Dispatcher) Broadcast(ctx context.Context, msg proto.Outbound, exclude string) Result {
	data, err := proto.Encode(msg)
	if err != nil {
		network.SendFailed(ctx, d.pub, logging.EntityRef{Kind: logging.EntityKindWorld}, network.SendFailedPayload{
			MessageType: msg.MessageType(),
			Error:       err.Error(),
		})
		return Result{}
	}
	d.metrics.Add(metricMessages, 1)
	d.metrics.Store(metricLastBytes, uint64(len(data)))

	var result Result
	for _, recipient := range d.src.Recipients(exclude) {
		if err := d.write(recipient.Link, data); err != nil {
			result.Failed = append(result.Failed, Failure{ID: recipient.ID, Err: err})
			continue
		}
		result.Sent++
	}

	for _, failure := range result.Failed {
		d.fail(ctx, failure.ID, msg.MessageType(), failure.Err)
	}
	return result
}

// Send delivers msg to a single link. A failure is handled the same way as
// a failed broadcast recipient.
func (d *Dispatcher) Send(ctx context.Context, id string, link session.Link, msg proto.Outbound) error {
	data, err := proto.Encode(msg)
	if err != nil {
		return err
	}
	d.metrics.Add(metricMessages, 1)
	if err := d.write(link, data); err != nil {
		d.fail(ctx, id, msg.MessageType(), err)
		return err
	}
	return nil
}

func (d *Dispatcher) write(link session.Link, data []byte) error {
	if err := link.Send(data); err != nil {
		return err
	}
	d.metrics.Add(metricFrames, 1)
	d.metrics.Add(metricBytes, uint64(len(data)))
	return nil
}

func (d *Dispatcher) fail(ctx context.Context, id, messageType string, err error) {
	d.metrics.Add(metricFailures, 1)
	network.SendFailed(ctx, d.pub, logging.ParticipantRef(id), network.SendFailedPayload{
		MessageType: messageType,
		Error:       err.Error(),
	})
	if d.onFailure != nil {
		d.onFailure(ctx, id, err)
	}
}
