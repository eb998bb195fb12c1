package media

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Stats is a point-in-time count of registry entries.
type Stats struct {
	Live     int `json:"live"`
	Released int `json:"released"`
}

// Registry tracks ephemeral handles that are still live. Releasing a handle
// drops its encoded content; afterwards the URI no longer resolves through the
// registry. Release never blocks on I/O and has no failure mode.
type Registry struct {
	mu       sync.Mutex
	entropy  io.Reader
	live     map[string]string // id -> uri
	released int
	log      *zap.Logger
}

// NewRegistry creates an empty registry. A nil logger disables logging.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		entropy: ulid.Monotonic(rand.Reader, 0),
		live:    make(map[string]string),
		log:     log,
	}
}

// Register mints a new ephemeral handle for uri.
func (r *Registry) Register(uri string) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Monotonic entropy is not safe for concurrent use; the lock covers it.
	id, err := ulid.New(ulid.Timestamp(time.Now()), r.entropy)
	if err != nil {
		return Handle{}, err
	}
	h := Handle{ID: id.String(), URI: uri, Origin: OriginEphemeral}
	r.live[h.ID] = uri
	r.log.Debug("handle registered", zap.String("id", h.ID), zap.Int("bytes", len(uri)))
	return h, nil
}

// Release invalidates an ephemeral handle. Persistent handles, zero handles
// and handles already released are ignored.
func (r *Registry) Release(h Handle) {
	if !h.Ephemeral() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.live[h.ID]; !ok {
		return
	}
	delete(r.live, h.ID)
	r.released++
	r.log.Debug("handle released", zap.String("id", h.ID))
}

// Live reports whether h can still be rendered. Persistent handles are always live.
func (r *Registry) Live(h Handle) bool {
	if h.IsZero() {
		return false
	}
	if !h.Ephemeral() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.live[h.ID]
	return ok
}

// Resolve returns the URI of a live handle.
func (r *Registry) Resolve(h Handle) (string, bool) {
	if h.IsZero() {
		return "", false
	}
	if !h.Ephemeral() {
		return h.URI, true
	}
	return r.Lookup(h.ID)
}

// Lookup returns the URI registered under an ephemeral handle ID.
func (r *Registry) Lookup(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	uri, ok := r.live[id]
	return uri, ok
}

// Stats returns live and released counts.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Live: len(r.live), Released: r.released}
}
