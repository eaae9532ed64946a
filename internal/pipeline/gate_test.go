package pipeline

import (
	"testing"

	"github.com/kittoju/flume/internal/activity"
)

func validEnvelope() *activity.Envelope {
	env := activity.NewEnvelope("svc-1", "slack", 1483589416)
	env.Actor = &activity.Entity{ID: "u1", Name: "alice", Type: activity.TypePerson}
	env.Target = &activity.Entity{ID: "c1", Name: "general", Type: activity.TypeGroup}
	env.Object = &activity.Object{ID: "e1", Type: activity.TypeNote, Content: "hi"}
	return env
}

func TestGateDropsNilAndEmpty(t *testing.T) {
	var gate Gate

	if gate.Validate(nil) != nil {
		t.Error("nil envelope should validate to nil")
	}

	empty := activity.NewEnvelope("svc-1", "slack", 1)
	if gate.Validate(empty) != nil {
		t.Error("empty envelope should validate to nil")
	}
}

func TestGateDropsMissingType(t *testing.T) {
	env := validEnvelope()
	env.Type = ""
	if (Gate{}).Validate(env) != nil {
		t.Error("envelope without type should validate to nil")
	}
}

func TestGatePassesValidEnvelope(t *testing.T) {
	env := validEnvelope()
	if got := (Gate{}).Validate(env); got != env {
		t.Errorf("valid envelope should pass through, got %+v", got)
	}
}

func TestGateIdempotent(t *testing.T) {
	var gate Gate
	env := validEnvelope()

	once := gate.Validate(env)
	if once == nil {
		t.Fatal("first validation should pass")
	}
	twice := gate.Validate(once)
	if twice != once {
		t.Error("validate(validate(x)) must equal validate(x)")
	}
}

func TestGateDropsSchemaViolations(t *testing.T) {
	env := validEnvelope()
	env.Object.Type = "Poll"
	if (Gate{}).Validate(env) != nil {
		t.Error("envelope with unknown object type should drop")
	}

	env = validEnvelope()
	env.Actor.Type = "Robot"
	if (Gate{}).Validate(env) != nil {
		t.Error("envelope with unknown actor type should drop")
	}
}
