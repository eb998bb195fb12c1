// Package gallery holds the committed gallery content and the editing
// session that stages changes to it.
package gallery

import (
	"strconv"
	"sync"

	"github.com/hpungsan/folio/internal/media"
)

// MaxSlots is the number of image slots the editor offers.
const MaxSlots = 10

// ImageSlot is one gallery image. A slot with a zero handle is empty.
type ImageSlot struct {
	Handle media.Handle `json:"handle"`
	Alt    string       `json:"alt"`
}

// Empty reports whether the slot holds no image.
func (s ImageSlot) Empty() bool {
	return s.Handle.IsZero()
}

// DefaultAlt is the alt text given to an uploaded image.
func DefaultAlt(index int) string {
	return "Image " + strconv.Itoa(index+1)
}

// AudioDescriptor is the background track.
type AudioDescriptor struct {
	Handle media.Handle `json:"handle"`
	Name   string       `json:"name,omitempty"`
}

// DisplayName is the label shown next to the track.
func (a *AudioDescriptor) DisplayName() string {
	if a == nil {
		return ""
	}
	if a.Name != "" {
		return a.Name
	}
	return "Uploaded audio"
}

// State is the committed content the gallery and audio surfaces render.
// Images never contains an empty slot.
type State struct {
	Text   string           `json:"text"`
	Images []ImageSlot      `json:"images"`
	Audio  *AudioDescriptor `json:"audio"`
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := State{Text: s.Text, Images: append([]ImageSlot(nil), s.Images...)}
	if out.Images == nil {
		out.Images = []ImageSlot{}
	}
	if s.Audio != nil {
		a := *s.Audio
		out.Audio = &a
	}
	return out
}

// AudioHandle returns the committed track's handle, or the zero handle.
func (s State) AudioHandle() media.Handle {
	if s.Audio == nil {
		return media.Handle{}
	}
	return s.Audio.Handle
}

// References reports whether h is reachable from s.
func (s State) References(h media.Handle) bool {
	if h.IsZero() {
		return false
	}
	for _, img := range s.Images {
		if img.Handle.Same(h) {
			return true
		}
	}
	return s.Audio != nil && s.Audio.Handle.Same(h)
}

// ephemeral lists every upload-derived handle in s.
func (s State) ephemeral() []media.Handle {
	var out []media.Handle
	for _, img := range s.Images {
		if img.Handle.Ephemeral() {
			out = append(out, img.Handle)
		}
	}
	if s.Audio != nil && s.Audio.Handle.Ephemeral() {
		out = append(out, s.Audio.Handle)
	}
	return out
}

// Store owns the committed state. Readers get copies; only the editing
// session's transitions write, and each write swaps all fields at once.
type Store struct {
	mu    sync.RWMutex
	state State
}

// NewStore creates a store holding initial.
func NewStore(initial State) *Store {
	return &Store{state: initial.Clone()}
}

// Snapshot returns a copy of the committed state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// replace swaps in next and returns the previous state.
func (s *Store) replace(next State) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	s.state = next.Clone()
	return prev
}
