package activity

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Context is the fixed @context value of every envelope.
const Context = "https://www.w3.org/ns/activitystreams"

// Entity types used for actor, target and generator.
const (
	TypePerson      = "Person"
	TypeApplication = "Application"
	TypeGroup       = "Group"
	TypeService     = "Service"
)

// Object types the pipeline can emit and the outbound path accepts.
const (
	TypeNote  = "Note"
	TypeImage = "Image"
	TypeVideo = "Video"
)

// Entity is an actor, target or generator reference.
type Entity struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// ObjectContext carries opaque routing state on an object, e.g. the
// interactive-callback identifier and response URL.
type ObjectContext struct {
	Content string `json:"content,omitempty"`
	Name    string `json:"name,omitempty"`
	Type    string `json:"type,omitempty"`
}

// Object is the content payload of an envelope.
type Object struct {
	ID        string         `json:"id,omitempty"`
	Type      string         `json:"type,omitempty"`
	Content   string         `json:"content,omitempty"`
	URL       string         `json:"url,omitempty"`
	MediaType string         `json:"mediaType,omitempty"`
	Name      string         `json:"name,omitempty"`
	Preview   string         `json:"preview,omitempty"`
	Context   *ObjectContext `json:"context,omitempty"`
}

// Envelope is the canonical message every connector converges to,
// modeled on the ActivityStreams vocabulary.
type Envelope struct {
	AtContext string  `json:"@context"`
	Published int64   `json:"published"`
	Type      string  `json:"type"`
	Generator Entity  `json:"generator"`
	Actor     *Entity `json:"actor,omitempty"`
	Target    *Entity `json:"target,omitempty"`
	Object    *Object `json:"object,omitempty"`
}

// Intent is a caller-supplied outbound message, validated against the
// send schema before translation to a platform call.
type Intent struct {
	AtContext string  `json:"@context,omitempty"`
	Type      string  `json:"type,omitempty"`
	Generator *Entity `json:"generator,omitempty"`
	Actor     *Entity `json:"actor,omitempty"`
	To        Entity  `json:"to"`
	Object    Object  `json:"object"`
}

// NewEnvelope builds the envelope skeleton: @context, type, generator
// and published. Published falls back to the current clock when the
// record carried no usable timestamp.
func NewEnvelope(serviceID, platform string, published int64) *Envelope {
	if published <= 0 {
		published = time.Now().Unix()
	}
	return &Envelope{
		AtContext: Context,
		Published: published,
		Type:      "Create",
		Generator: Entity{
			ID:   serviceID,
			Name: platform,
			Type: TypeService,
		},
	}
}

// NewID returns a process-unique object identifier.
func NewID() string {
	return ulid.Make().String()
}

// Empty reports whether the envelope carries nothing worth validating.
func (e *Envelope) Empty() bool {
	return e == nil || (e.Actor == nil && e.Target == nil && e.Object == nil)
}
