// Package source models the concurrent origins of raw platform events
// (socket streams, webhook endpoints, poll loops) and merges them into
// one stream for the pipeline.
package source

import "context"

// RawEvent is an opaque platform payload tagged with the source that
// produced it. Only the platform normalizer may interpret Payload.
type RawEvent struct {
	Source  string
	Payload any
}

// EmitFunc delivers one raw event downstream. It blocks when the merged
// stream is full, which is how backpressure reaches the transport.
type EmitFunc func(ctx context.Context, evt RawEvent) error

// Source is one named producer of raw events. Run pushes events into
// emit until ctx is canceled or the underlying transport terminates; a
// malformed individual payload must never terminate the source.
type Source interface {
	Name() string
	Run(ctx context.Context, emit EmitFunc) error
}

// Role decides how the merger treats a source's termination.
type Role int

const (
	// RolePrimary source failure is fatal to the whole merged stream.
	RolePrimary Role = iota
	// RoleAuxiliary source failure is logged and the stream continues.
	RoleAuxiliary
)
