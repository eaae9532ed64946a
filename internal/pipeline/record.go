// Package pipeline turns raw platform events into validated canonical
// envelopes through a fixed normalize, map, validate sequence.
package pipeline

import (
	"context"

	"github.com/kittoju/flume/internal/source"
)

// FileRef describes a media attachment on a raw event.
type FileRef struct {
	URL       string
	MediaType string
	Name      string
	Preview   string
	Content   string
}

// Record is the flat, platform-neutral form of one raw event. It is
// produced once per event and not mutated afterwards.
type Record struct {
	EventID    string
	SenderID   string
	SenderName string
	SenderBot  bool
	TargetID   string
	TargetName string
	TargetIM   bool
	Text       string
	File       *FileRef
	// Timestamp is epoch seconds. Every platform clock representation
	// is normalized to this unit before the record leaves the
	// normalizer.
	Timestamp int64
	Subtype   string

	// Interactive callback routing, when Subtype is an interactive
	// message.
	CallbackID  string
	ResponseURL string

	// Meta holds raw descriptor references resolved from the metadata
	// cache. Downstream stages treat it as opaque.
	Meta map[string]any
}

// Normalizer is the per-platform stage interpreting raw payloads. A
// (nil, nil) return means discard: unsupported type, bot echo,
// malformed body. It never returns an error for expected noise.
type Normalizer interface {
	Normalize(ctx context.Context, evt source.RawEvent) (*Record, error)
}
