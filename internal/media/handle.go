// Package media owns renderable resource handles: minting them from uploaded
// files, tracking which upload-derived handles are still live, and releasing
// them exactly once.
package media

import "strings"

// Origin distinguishes externally hosted resources from upload-derived ones.
type Origin string

const (
	// OriginPersistent handles point at externally hosted content and are never released.
	OriginPersistent Origin = "persistent"
	// OriginEphemeral handles are minted by the ingest pipeline and must be released exactly once.
	OriginEphemeral Origin = "ephemeral"
)

// Handle is a reference a renderable element can consume directly.
// The zero Handle means "no media".
type Handle struct {
	// ID identifies an ephemeral handle (a ULID). Empty for persistent handles.
	ID     string `json:"id,omitempty"`
	URI    string `json:"uri"`
	Origin Origin `json:"origin"`
}

// Persistent wraps an externally hosted URI.
func Persistent(uri string) Handle {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return Handle{}
	}
	return Handle{URI: uri, Origin: OriginPersistent}
}

// IsZero reports whether h holds no media.
func (h Handle) IsZero() bool {
	return h.URI == ""
}

// Ephemeral reports whether h was minted from an upload.
func (h Handle) Ephemeral() bool {
	return h.Origin == OriginEphemeral && h.ID != ""
}

// Same reports whether h and o refer to the same resource. Ephemeral handles
// compare by identity: two uploads of identical bytes are different handles.
func (h Handle) Same(o Handle) bool {
	if h.Ephemeral() || o.Ephemeral() {
		return h.Ephemeral() && o.Ephemeral() && h.ID == o.ID
	}
	return h.URI == o.URI
}

// Kind is the media category a slot accepts.
type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

// Accepts reports whether the declared media type belongs to this kind.
func (k Kind) Accepts(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), string(k)+"/")
}
