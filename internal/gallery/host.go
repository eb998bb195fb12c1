package gallery

import (
	"go.uber.org/zap"

	"github.com/hpungsan/folio/internal/config"
	"github.com/hpungsan/folio/internal/embed"
	"github.com/hpungsan/folio/internal/media"
	"github.com/hpungsan/folio/internal/playback"
)

// ThumbSize bounds editor previews in both dimensions, in pixels.
const ThumbSize = 240

// Host wires the committed state, the editing session and their
// collaborators for one run of the program.
type Host struct {
	Store    *Store
	Session  *Session
	Registry *media.Registry
	Pipeline *media.Pipeline
	Thumbs   *media.Thumbnails
	Autoplay *playback.Coordinator
	Embed    *embed.Detector

	cfg *config.Config
	log *zap.Logger
}

// NewHost builds a host seeded from cfg. Configured images and audio are
// persistent handles.
func NewHost(cfg *config.Config, log *zap.Logger) *Host {
	if log == nil {
		log = zap.NewNop()
	}

	initial := State{Text: cfg.Text, Images: make([]ImageSlot, 0, len(cfg.Images))}
	for _, img := range cfg.Images {
		h := media.Persistent(img.Src)
		if h.IsZero() || len(initial.Images) == MaxSlots {
			continue
		}
		initial.Images = append(initial.Images, ImageSlot{Handle: h, Alt: img.Alt})
	}
	if cfg.Audio != nil {
		if h := media.Persistent(cfg.Audio.Src); !h.IsZero() {
			initial.Audio = &AudioDescriptor{Handle: h, Name: cfg.Audio.Name}
		}
	}

	registry := media.NewRegistry(log.Named("media"))
	pipeline := media.NewPipeline(registry, media.Limits{Image: cfg.ImageMaxBytes, Audio: cfg.AudioMaxBytes}, log.Named("ingest"))
	autoplay := playback.New(log.Named("playback"))
	store := NewStore(initial)

	// A configured track counts as a change from silence.
	autoplay.Commit(initial.AudioHandle())

	return &Host{
		Store:    store,
		Session:  NewSession(store, registry, pipeline, autoplay, log.Named("session")),
		Registry: registry,
		Pipeline: pipeline,
		Thumbs:   media.NewThumbnails(registry, ThumbSize, ThumbSize, log.Named("thumbs")),
		Autoplay: autoplay,
		Embed:    embed.NewDetector(DefaultProbe(cfg)),
		cfg:      cfg,
		log:      log,
	}
}

// DefaultProbe is the embedding probe for the fixed embed modes.
func DefaultProbe(cfg *config.Config) embed.Probe {
	return embed.Static(cfg.Embed == config.EmbedAlways)
}

// Embedded reports the embedding decision. In auto mode only a page can
// settle it, so callers without one get false until a page has.
func (h *Host) Embedded() bool {
	if h.cfg.Embed != config.EmbedAuto {
		return h.Embed.Embedded()
	}
	embedded, _ := h.Embed.Decided()
	return embedded
}

// Config returns the configuration the host was built from.
func (h *Host) Config() *config.Config {
	return h.cfg
}

// HeadlineFor picks the headline for the committed state: the alternate
// text when the gallery runs embedded.
func (h *Host) HeadlineFor(s State, embedded bool) string {
	if embedded && h.cfg.EmbeddedText != "" {
		return h.cfg.EmbeddedText
	}
	return s.Text
}

// Teardown is the host's exit hook. It cancels an open session and releases
// every upload still held by the committed state. Nothing renders afterwards.
func (h *Host) Teardown() {
	h.Session.Cancel()

	prev := h.Store.replace(State{})
	for _, handle := range prev.ephemeral() {
		h.Registry.Release(handle)
	}
	h.Thumbs.Prune()
	h.log.Debug("host torn down", zap.Int("live", h.Registry.Stats().Live))
}
