package pipeline

import (
	"context"
	"log/slog"

	"github.com/kittoju/flume/internal/activity"
	"github.com/kittoju/flume/internal/logger"
	"github.com/kittoju/flume/internal/source"
)

// Pipeline chains normalize, map and validate over a merged raw event
// stream. Every stage is a 1:1-or-drop transform, so per-source arrival
// order survives to the output.
type Pipeline struct {
	normalizer Normalizer
	mapper     *Mapper
	gate       Gate
	out        chan *activity.Envelope
}

// New builds a pipeline around a platform normalizer.
func New(normalizer Normalizer, mapper *Mapper, buffer int) *Pipeline {
	if buffer <= 0 {
		buffer = 64
	}
	return &Pipeline{
		normalizer: normalizer,
		mapper:     mapper,
		out:        make(chan *activity.Envelope, buffer),
	}
}

// Envelopes is the validated output stream. Closed when Run returns.
func (p *Pipeline) Envelopes() <-chan *activity.Envelope {
	return p.out
}

// Run consumes events until the channel closes or ctx is canceled.
// Nothing is emitted after Run returns.
func (p *Pipeline) Run(ctx context.Context, events <-chan source.RawEvent) error {
	defer close(p.out)

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			p.process(ctx, evt)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pipeline) process(ctx context.Context, evt source.RawEvent) {
	rec, err := p.normalizer.Normalize(ctx, evt)
	if err != nil {
		slog.Debug("Event dropped, normalize failed",
			"connector", logger.GetConnector(ctx), "source", evt.Source, "error", err)
		return
	}
	if rec == nil {
		return
	}

	env := p.gate.Validate(p.mapper.Map(rec))
	if env == nil {
		return
	}

	select {
	case p.out <- env:
	case <-ctx.Done():
	}
}
