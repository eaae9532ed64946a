package activity

import (
	"testing"
)

func TestCallbackRoundTrip(t *testing.T) {
	cases := []struct {
		name        string
		callbackID  string
		responseURL string
	}{
		{"plain", "cb-1", "https://hooks.example.com/r/T123"},
		{"url with fragment", "cb-2", "https://hooks.example.com/r/T123#section"},
		{"url with many hashes", "cb-3", "https://hooks.example.com/a#b#c#d"},
		{"empty url", "cb-4", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			octx := EncodeCallback(tc.callbackID, tc.responseURL)

			if octx.Name != CallbackContextName {
				t.Errorf("context name: got %q", octx.Name)
			}

			id, url, ok := DecodeCallback(octx.Content)
			if !ok {
				t.Fatal("DecodeCallback reported no separator")
			}
			if id != tc.callbackID {
				t.Errorf("callback id: got %q, want %q", id, tc.callbackID)
			}
			if url != tc.responseURL {
				t.Errorf("response url: got %q, want %q", url, tc.responseURL)
			}
		})
	}
}

func TestDecodeCallbackWithoutSeparator(t *testing.T) {
	_, _, ok := DecodeCallback("no-separator-here")
	if ok {
		t.Error("expected ok=false for content without '#'")
	}
}

func TestNewEnvelopeDefaults(t *testing.T) {
	env := NewEnvelope("svc-1", "slack", 0)

	if env.AtContext != Context {
		t.Errorf("@context: got %q", env.AtContext)
	}
	if env.Type != "Create" {
		t.Errorf("type: got %q", env.Type)
	}
	if env.Published <= 0 {
		t.Error("published should fall back to current time")
	}
	if env.Generator.ID != "svc-1" || env.Generator.Name != "slack" || env.Generator.Type != TypeService {
		t.Errorf("generator: got %+v", env.Generator)
	}
}

func TestNewEnvelopeKeepsTimestamp(t *testing.T) {
	env := NewEnvelope("svc-1", "sms", 1483589416)
	if env.Published != 1483589416 {
		t.Errorf("published: got %d", env.Published)
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestEnvelopeEmpty(t *testing.T) {
	var env *Envelope
	if !env.Empty() {
		t.Error("nil envelope should be empty")
	}

	env = NewEnvelope("svc", "slack", 1)
	if !env.Empty() {
		t.Error("skeleton without actor/target/object should be empty")
	}

	env.Actor = &Entity{ID: "u1", Type: TypePerson}
	if env.Empty() {
		t.Error("envelope with actor should not be empty")
	}
}
