package pipeline

import (
	"log/slog"

	"github.com/kittoju/flume/internal/activity"
	"github.com/kittoju/flume/internal/schemas"
)

// Gate is the validation stage. It returns the envelope when it passes
// schema validation and nil for everything else: empty envelopes,
// envelopes without a type discriminant, schema failures. Downstream
// consumers cannot tell "invalid" from "absent", which keeps the
// pipeline a pure pass-or-drop chain.
type Gate struct{}

// Validate runs the envelope through the activity schema.
func (Gate) Validate(env *activity.Envelope) *activity.Envelope {
	if env == nil || env.Empty() {
		return nil
	}

	if env.Type == "" {
		slog.Debug("Envelope dropped, type missing")
		return nil
	}

	if err := schemas.Validate(env, "activity"); err != nil {
		slog.Debug("Envelope dropped, schema validation failed", "error", err)
		return nil
	}

	return env
}
