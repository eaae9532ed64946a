// Package connector owns the externally visible connector object: the
// connect/disconnect lifecycle, the pipeline wiring and the outbound
// send dispatch. Platform specifics live behind the Platform interface.
package connector

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/kittoju/flume/internal/activity"
	"github.com/kittoju/flume/internal/cache"
	"github.com/kittoju/flume/internal/concurrency"
	"github.com/kittoju/flume/internal/errors"
	"github.com/kittoju/flume/internal/logger"
	"github.com/kittoju/flume/internal/pipeline"
	"github.com/kittoju/flume/internal/schemas"
	"github.com/kittoju/flume/internal/source"
)

// State of the connector lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Status is the acknowledgment returned by Connect and Send.
type Status struct {
	Type       string `json:"type"`
	ServiceID  string `json:"serviceID"`
	CallbackID string `json:"callbackID,omitempty"`
}

// Registration pairs a source with its termination policy.
type Registration struct {
	Source source.Source
	Role   source.Role
}

// Session is what a platform hands back from a successful dial: the
// sources to merge, the metadata fetcher backing the cache, optional
// connect-time cache seeds, and the normalizer factory.
type Session struct {
	Sources    []Registration
	Fetcher    cache.Fetcher
	Seed       map[string]any
	Normalizer func(meta *cache.Store) pipeline.Normalizer
}

// Platform is the per-service half of a connector.
type Platform interface {
	Name() string
	// Connect dials the transport. It must fail without side effects
	// when credentials are missing.
	Connect(ctx context.Context) (*Session, error)
	// Send transmits one outbound intent that already passed the send
	// schema. The returned status echoes the service id.
	Send(ctx context.Context, serviceID string, intent *activity.Intent) (*Status, error)
	// Close releases transport resources. Safe to call repeatedly.
	Close(ctx context.Context) error
}

// Connector composes sources, merger, normalizer, mapper and validator
// gate for one platform, and owns the only mutable shared state: the
// metadata cache and the live session.
type Connector struct {
	platform  Platform
	serviceID string
	buffer    int
	policy    cache.Policy

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	meta    *cache.Store
	pipe    *pipeline.Pipeline
	runErr  error
	done    chan struct{}
}

// Option tweaks connector construction.
type Option func(*Connector)

// WithServiceID pins the generator id instead of generating one.
func WithServiceID(id string) Option {
	return func(c *Connector) { c.serviceID = id }
}

// WithBuffer sets the merged stream and output buffer sizes.
func WithBuffer(n int) Option {
	return func(c *Connector) { c.buffer = n }
}

// WithCachePolicy swaps the metadata cache eviction policy.
func WithCachePolicy(p cache.Policy) Option {
	return func(c *Connector) { c.policy = p }
}

// New builds a connector for a platform.
func New(platform Platform, opts ...Option) *Connector {
	c := &Connector{
		platform: platform,
		buffer:   128,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.serviceID == "" {
		c.serviceID = ulid.Make().String()
	}
	return c
}

// Name returns the platform name.
func (c *Connector) Name() string { return c.platform.Name() }

// ServiceID returns the generator id stamped on every envelope.
func (c *Connector) ServiceID() string { return c.serviceID }

// State returns the current lifecycle state.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Metadata exposes the cache for tests and diagnostics. Nil until
// connected.
func (c *Connector) Metadata() *cache.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta
}

// Connect dials the platform and wires the pipeline. Calling it while
// connected returns the current status without side effects.
func (c *Connector) Connect(ctx context.Context) (*Status, error) {
	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return &Status{Type: "connected", ServiceID: c.serviceID}, nil
	}
	if c.state == StateConnecting {
		c.mu.Unlock()
		return nil, errors.Transient("connect already in progress")
	}
	c.state = StateConnecting
	c.mu.Unlock()

	session, err := c.platform.Connect(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return nil, errors.Wrap(err, "connecting "+c.platform.Name())
	}

	runCtx, cancel := context.WithCancel(context.Background())
	runCtx = logger.WithConnector(runCtx, c.platform.Name())

	meta := cache.New(session.Fetcher, c.policy)
	for key, value := range session.Seed {
		meta.Seed(key, value)
	}

	merger := source.NewMerger(c.buffer)
	for _, reg := range session.Sources {
		merger.Add(reg.Source, reg.Role)
	}

	pipe := pipeline.New(
		session.Normalizer(meta),
		pipeline.NewMapper(c.serviceID, c.platform.Name()),
		c.buffer,
	)

	done := make(chan struct{})

	c.mu.Lock()
	c.cancel = cancel
	c.meta = meta
	c.pipe = pipe
	c.done = done
	c.runErr = nil
	c.state = StateConnected
	c.mu.Unlock()

	concurrency.SafeGo(func() {
		err := merger.Run(runCtx)
		if err != nil && runCtx.Err() == nil {
			c.fail(err)
		}
	}, func(any) {
		c.fail(errors.Internal("source merger panicked"))
	})

	concurrency.SafeGo(func() {
		defer close(done)
		if err := pipe.Run(runCtx, merger.Events()); err != nil && runCtx.Err() == nil {
			c.fail(err)
		}
	}, func(any) {
		c.fail(errors.Internal("pipeline panicked"))
	})

	slog.Info("Connector connected", "platform", c.platform.Name(), "service_id", c.serviceID)
	return &Status{Type: "connected", ServiceID: c.serviceID}, nil
}

// Envelopes is the validated output stream for the current connection.
// Nil before the first connect; closed when the connection ends.
func (c *Connector) Envelopes() <-chan *activity.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pipe == nil {
		return nil
	}
	return c.pipe.Envelopes()
}

// Done is closed when the event stream has fully stopped.
func (c *Connector) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Err reports the stream-terminating error, if any. Meaningful once
// Done is closed.
func (c *Connector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runErr
}

// Disconnect tears the transport down and returns the connector to the
// disconnected state. Safe to call multiple times.
func (c *Connector) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	c.cancel = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	err := c.platform.Close(ctx)
	slog.Info("Connector disconnected", "platform", c.platform.Name())
	return err
}

// Send validates the outbound intent and dispatches it to the platform.
// Shape violations and unsupported object types fail fast; no transport
// call is attempted for them.
func (c *Connector) Send(ctx context.Context, intent *activity.Intent) (*Status, error) {
	if intent == nil {
		return nil, errors.SchemaViolation("intent is nil")
	}

	switch intent.Object.Type {
	case activity.TypeNote, activity.TypeImage, activity.TypeVideo:
	default:
		return nil, errors.UnsupportedType(
			"object type " + intent.Object.Type + " is not supported; supported types are Note, Image, Video")
	}

	if err := schemas.Validate(intent, "send"); err != nil {
		return nil, err
	}

	c.mu.Lock()
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected {
		return nil, errors.NotConnected(c.platform.Name() + " connector")
	}

	slog.Debug("Sending outbound message", "platform", c.platform.Name(), "type", intent.Object.Type)
	return c.platform.Send(ctx, c.serviceID, intent)
}

func (c *Connector) fail(err error) {
	c.mu.Lock()
	if c.runErr == nil {
		c.runErr = err
	}
	c.mu.Unlock()
	slog.Error("Connector stream failed", "platform", c.platform.Name(), "error", err)
}
