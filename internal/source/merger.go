package source

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kittoju/flume/internal/concurrency"
	"github.com/kittoju/flume/internal/errors"
	"github.com/kittoju/flume/internal/logger"
)

type registration struct {
	src  Source
	role Role
}

// Merger combines N sources into one bounded stream. Per-source order
// is preserved; interleaving between sources is unspecified.
type Merger struct {
	out     chan RawEvent
	sources []registration
}

// NewMerger builds a merger with the given output buffer. Sources block
// on emit when the buffer is full.
func NewMerger(buffer int) *Merger {
	if buffer <= 0 {
		buffer = 128
	}
	return &Merger{
		out: make(chan RawEvent, buffer),
	}
}

// Add registers a source. Must be called before Run.
func (m *Merger) Add(src Source, role Role) {
	m.sources = append(m.sources, registration{src: src, role: role})
}

// Events is the merged stream. It is closed when Run returns.
func (m *Merger) Events() <-chan RawEvent {
	return m.out
}

// Run pumps every registered source until ctx is canceled or a primary
// source terminates. An auxiliary failure is logged and the remaining
// sources keep running.
func (m *Merger) Run(ctx context.Context) error {
	if len(m.sources) == 0 {
		close(m.out)
		return errors.Internal("no sources registered")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		fatalErr error
	)

	fail := func(err error) {
		mu.Lock()
		if fatalErr == nil {
			fatalErr = err
		}
		mu.Unlock()
		cancel()
	}

	for _, reg := range m.sources {
		reg := reg
		srcCtx := logger.WithSource(runCtx, reg.src.Name())
		wg.Add(1)
		concurrency.SafeGo(func() {
			defer wg.Done()
			err := reg.src.Run(srcCtx, m.emit)
			if err == nil || runCtx.Err() != nil {
				return
			}
			if reg.role == RolePrimary {
				slog.Error("Primary source terminated", "source", reg.src.Name(), "error", err)
				fail(errors.Wrap(err, "source "+reg.src.Name()))
				return
			}
			slog.Warn("Auxiliary source terminated", "source", reg.src.Name(), "error", err)
		}, func(any) {
			if reg.role == RolePrimary {
				fail(errors.Internal("source " + reg.src.Name() + " panicked"))
			}
		})
	}

	wg.Wait()
	close(m.out)

	mu.Lock()
	defer mu.Unlock()
	if fatalErr != nil {
		return errors.Wrap(errors.ErrTransportClosed, fatalErr.Error())
	}
	return nil
}

func (m *Merger) emit(ctx context.Context, evt RawEvent) error {
	select {
	case m.out <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
