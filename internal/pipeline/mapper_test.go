package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/kittoju/flume/internal/activity"
)

func newTestMapper() *Mapper {
	return NewMapper("svc-1", "slack")
}

func TestMapNoteFromText(t *testing.T) {
	env := newTestMapper().Map(&Record{
		EventID:   "e1",
		SenderID:  "u1",
		TargetID:  "c1",
		Text:      "hello world",
		Timestamp: 1483589416,
	})

	if env.Published != 1483589416 {
		t.Errorf("published: got %d", env.Published)
	}
	if env.Object == nil || env.Object.Type != activity.TypeNote {
		t.Fatalf("object: got %+v", env.Object)
	}
	if env.Object.Content != "hello world" {
		t.Errorf("content: got %q", env.Object.Content)
	}
	if env.Object.ID != "e1" {
		t.Errorf("object id: got %q", env.Object.ID)
	}
}

func TestMapImageURLWinsOverNote(t *testing.T) {
	// Text that is both a valid image URL and non-empty must map to an
	// Image, never a Note.
	env := newTestMapper().Map(&Record{
		SenderID: "u1",
		TargetID: "c1",
		Text:     "https://x/y.png",
	})

	if env.Object == nil || env.Object.Type != activity.TypeImage {
		t.Fatalf("object: got %+v", env.Object)
	}
	if env.Object.URL != "https://x/y.png" {
		t.Errorf("url: got %q", env.Object.URL)
	}
	if env.Object.MediaType != "image/png" {
		t.Errorf("mediaType: got %q", env.Object.MediaType)
	}
	if env.Object.ID == "" {
		t.Error("object id should be generated when the record has none")
	}
}

func TestMapVideoURL(t *testing.T) {
	env := newTestMapper().Map(&Record{
		SenderID: "u1",
		TargetID: "c1",
		Text:     "https://cdn.example.com/clip.mp4",
	})

	if env.Object == nil || env.Object.Type != activity.TypeVideo {
		t.Fatalf("object: got %+v", env.Object)
	}
	if !strings.HasPrefix(env.Object.MediaType, "video/") {
		t.Errorf("mediaType: got %q", env.Object.MediaType)
	}
}

func TestMapFileRefWinsOverTextURL(t *testing.T) {
	env := newTestMapper().Map(&Record{
		SenderID: "u1",
		TargetID: "c1",
		Text:     "https://x/y.png",
		File: &FileRef{
			URL:       "https://files.example.com/v.mp4",
			MediaType: "video/mp4",
			Name:      "v.mp4",
			Preview:   "https://files.example.com/v_thumb.jpg",
		},
	})

	if env.Object == nil || env.Object.Type != activity.TypeVideo {
		t.Fatalf("object: got %+v", env.Object)
	}
	if env.Object.URL != "https://files.example.com/v.mp4" {
		t.Errorf("url: got %q", env.Object.URL)
	}
	if env.Object.Preview != "https://files.example.com/v_thumb.jpg" {
		t.Errorf("preview: got %q", env.Object.Preview)
	}
}

func TestMapNonMediaFileFallsThrough(t *testing.T) {
	env := newTestMapper().Map(&Record{
		SenderID: "u1",
		TargetID: "c1",
		Text:     "see attachment",
		File:     &FileRef{URL: "https://x/doc.pdf", MediaType: "application/pdf"},
	})

	if env.Object == nil || env.Object.Type != activity.TypeNote {
		t.Fatalf("object: got %+v", env.Object)
	}
}

func TestMapEmptyTextNoObject(t *testing.T) {
	env := newTestMapper().Map(&Record{SenderID: "u1", TargetID: "c1"})
	if env.Object != nil {
		t.Errorf("object should be absent, got %+v", env.Object)
	}
	if env.Actor == nil || env.Target == nil {
		t.Error("actor and target are still filled")
	}
}

func TestMapActorAndTargetTypes(t *testing.T) {
	m := newTestMapper()

	env := m.Map(&Record{SenderID: "b1", SenderBot: true, TargetID: "c1", Text: "hi"})
	if env.Actor.Type != activity.TypeApplication {
		t.Errorf("bot actor type: got %q", env.Actor.Type)
	}
	if env.Target.Type != activity.TypeGroup {
		t.Errorf("channel target type: got %q", env.Target.Type)
	}

	env = m.Map(&Record{SenderID: "u1", TargetID: "d1", TargetIM: true, Text: "hi"})
	if env.Actor.Type != activity.TypePerson {
		t.Errorf("person actor type: got %q", env.Actor.Type)
	}
	if env.Target.Type != activity.TypePerson {
		t.Errorf("im target type: got %q", env.Target.Type)
	}
}

func TestMapInteractiveCallbackContext(t *testing.T) {
	env := newTestMapper().Map(&Record{
		SenderID:    "u1",
		TargetID:    "c1",
		Text:        "approve",
		Subtype:     "interactive_message",
		CallbackID:  "cb-9",
		ResponseURL: "https://hooks.example.com/r/1#frag",
	})

	if env.Object == nil || env.Object.Context == nil {
		t.Fatalf("object context missing: %+v", env.Object)
	}

	id, url, ok := activity.DecodeCallback(env.Object.Context.Content)
	if !ok || id != "cb-9" || url != "https://hooks.example.com/r/1#frag" {
		t.Errorf("decoded context: %q %q %v", id, url, ok)
	}
}

func TestMapPublishedFallsBackToNow(t *testing.T) {
	before := time.Now().Unix()
	env := newTestMapper().Map(&Record{SenderID: "u1", TargetID: "c1", Text: "hi"})
	after := time.Now().Unix()

	if env.Published < before || env.Published > after {
		t.Errorf("published %d not in [%d, %d]", env.Published, before, after)
	}
}

func TestMapNilRecord(t *testing.T) {
	if env := newTestMapper().Map(nil); env != nil {
		t.Errorf("nil record should map to nil, got %+v", env)
	}
}

func TestSniffMediaURLRejectsNonURLs(t *testing.T) {
	for _, text := range []string{
		"",
		"hello world",
		"not a url.png",
		"ftp://x/y.png",
		"https://x/y",
		"https://x/page.html",
	} {
		if _, _, ok := sniffMediaURL(text); ok {
			t.Errorf("sniffMediaURL(%q) should not classify as media", text)
		}
	}
}
