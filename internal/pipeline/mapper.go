package pipeline

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/kittoju/flume/internal/activity"
)

// The stdlib table only carries a handful of video types and system
// mime.types files vary across hosts, so the extensions the connectors
// care about are pinned here.
func init() {
	for ext, mediaType := range map[string]string{
		".mp4":  "video/mp4",
		".m4v":  "video/mp4",
		".mov":  "video/quicktime",
		".webm": "video/webm",
		".avi":  "video/x-msvideo",
		".mkv":  "video/x-matroska",
		".3gp":  "video/3gpp",
		".png":  "image/png",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".gif":  "image/gif",
		".webp": "image/webp",
	} {
		mime.AddExtensionType(ext, mediaType)
	}
}

// Mapper converts normalized records into Activity envelopes.
type Mapper struct {
	serviceID string
	platform  string
}

// NewMapper builds a mapper stamping envelopes with the connector's
// service id and platform name.
func NewMapper(serviceID, platform string) *Mapper {
	return &Mapper{serviceID: serviceID, platform: platform}
}

// Map fills the envelope skeleton from a record. Object resolution
// precedence: explicit file attachment, then media URL in the text,
// then plain Note, then no object at all.
func (m *Mapper) Map(rec *Record) *activity.Envelope {
	if rec == nil {
		return nil
	}

	env := activity.NewEnvelope(m.serviceID, m.platform, rec.Timestamp)

	actorType := activity.TypePerson
	if rec.SenderBot {
		actorType = activity.TypeApplication
	}
	env.Actor = &activity.Entity{
		ID:   rec.SenderID,
		Name: rec.SenderName,
		Type: actorType,
	}

	targetType := activity.TypeGroup
	if rec.TargetIM {
		targetType = activity.TypePerson
	}
	env.Target = &activity.Entity{
		ID:   rec.TargetID,
		Name: rec.TargetName,
		Type: targetType,
	}

	env.Object = m.resolveObject(rec)

	if env.Object != nil && isInteractive(rec.Subtype) {
		env.Object.Context = activity.EncodeCallback(rec.CallbackID, rec.ResponseURL)
	}

	return env
}

func (m *Mapper) resolveObject(rec *Record) *activity.Object {
	if rec.File != nil {
		if obj := m.fileObject(rec); obj != nil {
			return obj
		}
	}

	if mediaType, objType, ok := sniffMediaURL(rec.Text); ok {
		return &activity.Object{
			ID:        m.objectID(rec),
			Type:      objType,
			URL:       rec.Text,
			MediaType: mediaType,
		}
	}

	if rec.Text != "" {
		return &activity.Object{
			ID:      m.objectID(rec),
			Type:    activity.TypeNote,
			Content: rec.Text,
		}
	}

	return nil
}

func (m *Mapper) fileObject(rec *Record) *activity.Object {
	f := rec.File
	var objType string
	switch {
	case strings.HasPrefix(f.MediaType, "image/"):
		objType = activity.TypeImage
	case strings.HasPrefix(f.MediaType, "video/"):
		objType = activity.TypeVideo
	default:
		return nil
	}

	return &activity.Object{
		ID:        m.objectID(rec),
		Type:      objType,
		Content:   f.Content,
		URL:       f.URL,
		MediaType: f.MediaType,
		Name:      f.Name,
		Preview:   f.Preview,
	}
}

func (m *Mapper) objectID(rec *Record) string {
	if rec.EventID != "" {
		return rec.EventID
	}
	return activity.NewID()
}

func isInteractive(subtype string) bool {
	return subtype == "interactive_message"
}

// sniffMediaURL classifies free text that is itself a web URI by the
// MIME type of its path extension. Only image and video classifications
// qualify; everything else falls through to the Note case.
func sniffMediaURL(text string) (mediaType, objType string, ok bool) {
	if text == "" || strings.ContainsAny(text, " \t\n") {
		return "", "", false
	}

	u, err := url.ParseRequestURI(text)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", "", false
	}

	ext := path.Ext(u.Path)
	if ext == "" {
		return "", "", false
	}

	mediaType = mime.TypeByExtension(ext)
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return mediaType, activity.TypeImage, true
	case strings.HasPrefix(mediaType, "video/"):
		return mediaType, activity.TypeVideo, true
	}
	return "", "", false
}
