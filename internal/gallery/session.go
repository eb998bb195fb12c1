package gallery

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/folio/internal/errors"
	"github.com/hpungsan/folio/internal/media"
	"github.com/hpungsan/folio/internal/playback"
)

// Draft is a copy of the session's staged edits.
type Draft struct {
	Open   bool             `json:"open"`
	Text   string           `json:"text"`
	Images []ImageSlot      `json:"images"`
	Audio  *AudioDescriptor `json:"audio"`
}

// Session stages edits to the committed state.
//
// Invariant: an ephemeral handle reachable from neither the draft nor the
// committed state is released as soon as it becomes unreachable.
type Session struct {
	mu       sync.Mutex
	store    *Store
	registry *media.Registry
	pipeline *media.Pipeline
	autoplay *playback.Coordinator
	log      *zap.Logger

	open bool
	// gen changes every time a draft is seeded or discarded, so uploads can
	// tell whether the draft they started in still exists.
	gen    uint64
	text   string
	images [MaxSlots]ImageSlot
	audio  *AudioDescriptor
}

// NewSession creates a closed session editing store.
func NewSession(store *Store, registry *media.Registry, pipeline *media.Pipeline, autoplay *playback.Coordinator, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		store:    store,
		registry: registry,
		pipeline: pipeline,
		autoplay: autoplay,
		log:      log,
	}
}

// Open seeds the draft from the committed state. Opening an open session
// leaves the draft alone.
func (s *Session) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return
	}
	committed := s.store.Snapshot()
	s.open = true
	s.gen++
	s.text = committed.Text
	s.images = [MaxSlots]ImageSlot{}
	copy(s.images[:], committed.Images)
	s.audio = nil
	if committed.Audio != nil {
		a := *committed.Audio
		s.audio = &a
	}
	s.log.Debug("edit session opened", zap.Uint64("gen", s.gen))
}

// IsOpen reports whether a draft exists.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Draft returns a copy of the staged edits.
func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := Draft{Open: s.open, Text: s.text, Images: append([]ImageSlot(nil), s.images[:]...)}
	if s.audio != nil {
		a := *s.audio
		d.Audio = &a
	}
	return d
}

// SetText replaces the draft text.
func (s *Session) SetText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return errors.NewSessionClosed()
	}
	s.text = text
	return nil
}

// SetImage puts h in slot index. A released upload is refused.
func (s *Session) SetImage(index int, h media.Handle, alt string) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return errors.NewSessionClosed()
	}
	return s.setImageLocked(index, ImageSlot{Handle: h, Alt: alt})
}

// RemoveImage empties slot index.
func (s *Session) RemoveImage(index int) error {
	return s.SetImage(index, media.Handle{}, "")
}

// SetAudio stages a new background track. A released upload is refused.
func (s *Session) SetAudio(desc AudioDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return errors.NewSessionClosed()
	}
	return s.setAudioLocked(&desc)
}

// ClearAudio removes the staged background track.
func (s *Session) ClearAudio() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return errors.NewSessionClosed()
	}
	return s.setAudioLocked(nil)
}

type uploadResult struct {
	handle media.Handle
	err    error
}

// UploadImage ingests f into slot index with the given alt text ("Image N"
// when empty). The slot is fixed when the upload starts; uploads to
// different slots may finish in any order. Validation failures leave the
// draft untouched. If ctx ends first the upload still settles in the
// background.
func (s *Session) UploadImage(ctx context.Context, index int, f media.File, alt string) (media.Handle, error) {
	if err := checkIndex(index); err != nil {
		return media.Handle{}, err
	}
	if alt == "" {
		alt = DefaultAlt(index)
	}
	return s.upload(ctx, f, media.KindImage, func(h media.Handle) error {
		return s.setImageLocked(index, ImageSlot{Handle: h, Alt: alt})
	})
}

// UploadAudio ingests f as the background track, named name or, when empty,
// after the file.
func (s *Session) UploadAudio(ctx context.Context, f media.File, name string) (media.Handle, error) {
	if name == "" {
		name = f.Name()
	}
	return s.upload(ctx, f, media.KindAudio, func(h media.Handle) error {
		return s.setAudioLocked(&AudioDescriptor{Handle: h, Name: name})
	})
}

func (s *Session) upload(ctx context.Context, f media.File, kind media.Kind, apply func(media.Handle) error) (media.Handle, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return media.Handle{}, errors.NewSessionClosed()
	}
	gen := s.gen
	s.mu.Unlock()

	fut := s.pipeline.Ingest(f, kind)
	done := make(chan uploadResult, 1)
	go func() {
		<-fut.Done()
		h, err := fut.Result()
		if err == nil {
			err = s.settle(gen, h, apply)
		}
		done <- uploadResult{handle: h, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return media.Handle{}, r.err
		}
		return r.handle, nil
	case <-ctx.Done():
		return media.Handle{}, ctx.Err()
	}
}

// settle applies a finished upload to the draft it was started in. If that
// draft is gone the handle is released unless committed state holds it.
func (s *Session) settle(gen uint64, h media.Handle, apply func(media.Handle) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open || s.gen != gen {
		if !s.store.Snapshot().References(h) {
			s.registry.Release(h)
		}
		s.log.Debug("late upload discarded", zap.String("id", h.ID))
		return errors.NewSessionClosed()
	}
	if err := apply(h); err != nil {
		s.releaseIfOrphanedLocked(h)
		return err
	}
	return nil
}

// Cancel releases every staged upload that is not committed and discards
// the draft. Every exit from the editor other than Save must call it.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return
	}
	committed := s.store.Snapshot()
	for _, h := range s.draftEphemeralLocked() {
		if !committed.References(h) {
			s.registry.Release(h)
		}
	}
	s.resetLocked()
	s.log.Debug("edit session cancelled")
}

// Save commits the draft. Empty slots are dropped, the committed state is
// replaced in one write, committed uploads no longer referenced are
// released, and the autoplay coordinator hears about a changed track.
func (s *Session) Save() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return State{}, errors.NewSessionClosed()
	}

	next := State{Text: s.text, Images: make([]ImageSlot, 0, MaxSlots)}
	for _, img := range s.images {
		if !img.Empty() {
			next.Images = append(next.Images, img)
		}
	}
	if s.audio != nil && !s.audio.Handle.IsZero() {
		a := *s.audio
		next.Audio = &a
	}

	prev := s.store.replace(next)
	for _, h := range prev.ephemeral() {
		if !next.References(h) {
			s.registry.Release(h)
		}
	}
	s.resetLocked()

	if !prev.AudioHandle().Same(next.AudioHandle()) && s.autoplay != nil {
		s.autoplay.Commit(next.AudioHandle())
	}
	s.log.Info("gallery saved", zap.Int("images", len(next.Images)), zap.Bool("audio", next.Audio != nil))
	return next.Clone(), nil
}

func (s *Session) setImageLocked(index int, slot ImageSlot) error {
	if err := s.checkLive(slot.Handle); err != nil {
		return err
	}
	old := s.images[index]
	s.images[index] = slot
	s.releaseIfOrphanedLocked(old.Handle)
	return nil
}

func (s *Session) setAudioLocked(desc *AudioDescriptor) error {
	if desc != nil {
		if err := s.checkLive(desc.Handle); err != nil {
			return err
		}
	}
	var old media.Handle
	if s.audio != nil {
		old = s.audio.Handle
	}
	s.audio = desc
	s.releaseIfOrphanedLocked(old)
	return nil
}

// checkLive refuses uploads whose handle has already been released.
func (s *Session) checkLive(h media.Handle) error {
	if h.Ephemeral() && !s.registry.Live(h) {
		return errors.NewInvalidRequest(fmt.Sprintf("upload %s has been released", h.ID))
	}
	return nil
}

// releaseIfOrphanedLocked releases h when neither the draft nor the
// committed state can reach it any more.
func (s *Session) releaseIfOrphanedLocked(h media.Handle) {
	if !h.Ephemeral() || s.draftReferencesLocked(h) {
		return
	}
	if s.store.Snapshot().References(h) {
		return
	}
	s.registry.Release(h)
}

func (s *Session) draftReferencesLocked(h media.Handle) bool {
	for _, img := range s.images {
		if img.Handle.Same(h) {
			return true
		}
	}
	return s.audio != nil && s.audio.Handle.Same(h)
}

func (s *Session) draftEphemeralLocked() []media.Handle {
	var out []media.Handle
	for _, img := range s.images {
		if img.Handle.Ephemeral() {
			out = append(out, img.Handle)
		}
	}
	if s.audio != nil && s.audio.Handle.Ephemeral() {
		out = append(out, s.audio.Handle)
	}
	return out
}

func (s *Session) resetLocked() {
	s.open = false
	s.gen++
	s.text = ""
	s.images = [MaxSlots]ImageSlot{}
	s.audio = nil
}

func checkIndex(index int) error {
	if index < 0 || index >= MaxSlots {
		return errors.NewInvalidRequest(fmt.Sprintf("image slot index must be between 0 and %d", MaxSlots-1))
	}
	return nil
}
