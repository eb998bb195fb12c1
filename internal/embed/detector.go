// Package embed decides, once per run, whether the gallery is displayed
// inside a foreign frame.
package embed

import (
	stderrors "errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrFrameAccessDenied reports that the enclosing frame could not be
// inspected. Denial counts as proof of embedding.
var ErrFrameAccessDenied = stderrors.New("enclosing frame access denied")

// FrameAccessHeader carries the page script's frame check: "top",
// "embedded", or "denied" when reading window.top throws.
const FrameAccessHeader = "X-Folio-Frame-Access"

// Frame access values sent by the page script.
const (
	FrameTop      = "top"
	FrameEmbedded = "embedded"
	FrameDenied   = "denied"
)

// Probe compares the surface against its enclosing frame.
type Probe func() (bool, error)

// Detector decides once and keeps the answer for the rest of the run.
type Detector struct {
	once     sync.Once
	decided  atomic.Bool
	probe    Probe
	embedded bool
}

// NewDetector creates a detector whose default probe is probe.
func NewDetector(probe Probe) *Detector {
	return &Detector{probe: probe}
}

// Detect runs probe if no decision has been made yet and returns the
// decision. Probes passed after the first call are never run.
func (d *Detector) Detect(probe Probe) bool {
	d.once.Do(func() {
		if probe == nil {
			return
		}
		embedded, err := probe()
		d.embedded = embedded || err != nil
		d.decided.Store(true)
	})
	return d.embedded
}

// Decided returns the decision without making one. ok is false while
// no probe has run.
func (d *Detector) Decided() (embedded, ok bool) {
	if !d.decided.Load() {
		return false, false
	}
	return d.embedded, true
}

// Embedded returns the decision, running the default probe on first use.
func (d *Detector) Embedded() bool {
	return d.Detect(d.probe)
}

// Static returns a probe with a fixed answer, used for config overrides.
func Static(embedded bool) Probe {
	return func() (bool, error) { return embedded, nil }
}

// FromRequest returns a probe that inspects the request that loaded the page.
// Browsers send Sec-Fetch-Dest with the destination of a navigation; frame
// destinations mean the page is embedded. A frame report from the page
// script takes precedence.
func FromRequest(r *http.Request) Probe {
	return func() (bool, error) {
		switch strings.ToLower(r.Header.Get(FrameAccessHeader)) {
		case FrameDenied:
			return false, ErrFrameAccessDenied
		case FrameEmbedded:
			return true, nil
		case FrameTop:
			return false, nil
		}
		return frameDest(r), nil
	}
}

// Conclusive reports whether r can settle embedding: it carries a frame
// report or a navigation Sec-Fetch-Dest. Subresource fetches ("empty") and
// clients that send neither leave the question open.
func Conclusive(r *http.Request) bool {
	switch strings.ToLower(r.Header.Get(FrameAccessHeader)) {
	case FrameTop, FrameEmbedded, FrameDenied:
		return true
	}
	return frameDest(r) || strings.EqualFold(r.Header.Get("Sec-Fetch-Dest"), "document")
}

func frameDest(r *http.Request) bool {
	switch strings.ToLower(r.Header.Get("Sec-Fetch-Dest")) {
	case "iframe", "frame", "embed", "object", "fencedframe":
		return true
	}
	return false
}
