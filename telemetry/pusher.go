// Package telemetry pushes the simulator counters to an external collector.
//
// Delivery is best effort. A slow or missing collector never holds up the
// simulator: only the most recent counters wait to be sent and anything
// offered while disconnected is dropped.
package telemetry

import (
	"context"
	"log/slog"

	"github.com/sarchlab/beltsim/conveyor"
	"github.com/sarchlab/beltsim/sim"
)

// A Sink delivers counters to a collector.
type Sink interface {
	Send(c conveyor.Counters) error
}

// Pusher is a hook that forwards counter changes to a Sink. The hook only
// places the counters in a one-slot mailbox. Run does the sending.
type Pusher struct {
	sink    Sink
	mailbox chan conveyor.Counters
	logger  *slog.Logger
}

// NewPusher creates a Pusher that sends to sink.
func NewPusher(sink Sink) *Pusher {
	return &Pusher{
		sink:    sink,
		mailbox: make(chan conveyor.Counters, 1),
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger for failed sends.
func (p *Pusher) WithLogger(l *slog.Logger) *Pusher {
	p.logger = l
	return p
}

// Func offers the counters carried by a CountersChanged hook.
func (p *Pusher) Func(ctx sim.HookCtx) {
	if ctx.Pos != conveyor.HookPosCountersChanged {
		return
	}

	c, ok := ctx.Item.(conveyor.Counters)
	if !ok {
		return
	}

	p.Offer(c)
}

// Offer replaces whatever is waiting in the mailbox with c. It never blocks.
func (p *Pusher) Offer(c conveyor.Counters) {
	for {
		select {
		case p.mailbox <- c:
			return
		default:
		}

		select {
		case <-p.mailbox:
		default:
		}
	}
}

// Run sends offered counters until ctx is done.
func (p *Pusher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-p.mailbox:
			err := p.sink.Send(c)
			if err != nil {
				p.logger.Debug("telemetry dropped",
					"current_rate", c.CurrentRate,
					"total_produced", c.TotalProduced,
					"error", err)
			}
		}
	}
}
