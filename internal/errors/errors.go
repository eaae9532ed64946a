package errors

import (
	"errors"
)

// Sentinel errors for the connector taxonomy
var (
	// ErrMissingCredential - a required credential or option is absent (fatal to connect, no state change)
	ErrMissingCredential = errors.New("missing credential")

	// ErrNotConnected - operation requires a live connection
	ErrNotConnected = errors.New("not connected")

	// ErrUnsupportedType - outbound object type is not one of Note, Image, Video
	ErrUnsupportedType = errors.New("unsupported object type")

	// ErrSchemaViolation - payload failed schema validation (hard for outbound, soft-drop for inbound)
	ErrSchemaViolation = errors.New("schema violation")

	// ErrNotFound - metadata descriptor could not be resolved
	ErrNotFound = errors.New("not found")

	// ErrTransient - transient transport error, safe to retry upstream
	ErrTransient = errors.New("transient error")

	// ErrTransportClosed - the primary event source terminated
	ErrTransportClosed = errors.New("transport closed")

	// ErrInternal - internal error
	ErrInternal = errors.New("internal error")
)
