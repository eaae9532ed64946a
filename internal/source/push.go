package source

import (
	"context"
	"log/slog"

	"github.com/kittoju/flume/internal/errors"
)

// PushSource is a Source fed externally, typically by a webhook HTTP
// handler. Submit and Run are the two halves: the transport submits,
// Run drains into the merged stream.
type PushSource struct {
	name string
	ch   chan any
}

// NewPushSource builds a push source with a bounded intake buffer.
func NewPushSource(name string, buffer int) *PushSource {
	if buffer <= 0 {
		buffer = 64
	}
	return &PushSource{
		name: name,
		ch:   make(chan any, buffer),
	}
}

func (p *PushSource) Name() string { return p.name }

// Submit hands one payload to the source. It blocks when the intake
// buffer is full.
func (p *PushSource) Submit(ctx context.Context, payload any) error {
	select {
	case p.ch <- payload:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "submit to "+p.name)
	}
}

// Run drains submitted payloads into emit, preserving submission order.
func (p *PushSource) Run(ctx context.Context, emit EmitFunc) error {
	for {
		select {
		case payload := <-p.ch:
			if err := emit(ctx, RawEvent{Source: p.name, Payload: payload}); err != nil {
				return err
			}
		case <-ctx.Done():
			slog.Debug("Push source stopped", "source", p.name)
			return nil
		}
	}
}
