// Package playback negotiates background-audio autoplay.
//
// Playback is attempted once per change of the committed track. If the
// playback surface refuses (browsers block unattended audio), the manual
// controls are exposed and stay exposed until the track changes again.
// Nothing here retries.
package playback

import (
	"crypto/rand"
	stderrors "errors"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/folio/internal/media"
)

// ErrAutoplayRejected is what a playback surface reports when it refuses to
// start. Any other playback failure is treated the same way.
var ErrAutoplayRejected = stderrors.New("autoplay rejected")

// State of the coordinator.
type State string

const (
	StateIdle       State = "idle"
	StateAttempting State = "attempting"
	StateControls   State = "controls_exposed"
)

// Attempt is a single request to start playback of Handle.
type Attempt struct {
	ID     string       `json:"id"`
	Handle media.Handle `json:"handle"`
}

// Coordinator is edge-triggered on committed-track changes.
type Coordinator struct {
	mu       sync.Mutex
	entropy  io.Reader
	current  media.Handle
	state    State
	pending  *Attempt
	attempts int
	log      *zap.Logger
}

// New creates an idle coordinator with no committed track.
func New(log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		state:   StateIdle,
		log:     log,
	}
}

// Commit tells the coordinator which track is now committed. When it differs
// from the previous one, the coordinator resets and issues exactly one
// attempt. Committing the same track again does nothing.
func (c *Coordinator) Commit(h media.Handle) (Attempt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h.Same(c.current) {
		return Attempt{}, false
	}
	c.current = h
	c.state = StateIdle
	c.pending = nil

	if h.IsZero() {
		return Attempt{}, false
	}

	id, err := ulid.New(ulid.Timestamp(time.Now()), c.entropy)
	if err != nil {
		// Without an attempt ID the surface cannot report back; fall
		// straight to manual controls.
		c.state = StateControls
		c.log.Warn("autoplay attempt not issued", zap.Error(err))
		return Attempt{}, false
	}
	a := Attempt{ID: id.String(), Handle: h}
	c.pending = &a
	c.state = StateAttempting
	c.attempts++
	return a, true
}

// Report records the outcome of attempt id. A nil error means playback
// started. Reports for attempts that are no longer pending are ignored.
func (c *Coordinator) Report(id string, playErr error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil || c.pending.ID != id {
		return false
	}
	c.pending = nil
	if playErr != nil {
		c.state = StateControls
		c.log.Info("audio playback was blocked; manual controls exposed", zap.String("attempt", id), zap.Error(playErr))
		return true
	}
	c.state = StateIdle
	return true
}

// Pending returns the outstanding attempt, if any.
func (c *Coordinator) Pending() (Attempt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Attempt{}, false
	}
	return *c.pending, true
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ControlsVisible reports whether the manual control surface is exposed.
func (c *Coordinator) ControlsVisible() bool {
	return c.State() == StateControls
}

// Attempts returns how many attempts have been issued so far.
func (c *Coordinator) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}
