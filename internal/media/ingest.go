package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/folio/internal/errors"
)

// Limits caps upload sizes per kind, in bytes.
type Limits struct {
	Image int64
	Audio int64
}

func (l Limits) forKind(k Kind) int64 {
	if k == KindAudio {
		return l.Audio
	}
	return l.Image
}

// File is a user-selected file as reported by the host's picker. Validation
// trusts MediaType and Size; content is not sniffed.
type File interface {
	Name() string
	MediaType() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// Future is the single-resolution result of one ingest.
type Future struct {
	done   chan struct{}
	handle Handle
	err    error
}

func resolved(h Handle, err error) *Future {
	f := &Future{done: make(chan struct{}), handle: h, err: err}
	close(f.done)
	return f
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the outcome. It must only be called after Done is closed.
func (f *Future) Result() (Handle, error) {
	return f.handle, f.err
}

// Wait blocks until the ingest resolves or ctx is done. Giving up on the wait
// does not stop the conversion.
func (f *Future) Wait(ctx context.Context) (Handle, error) {
	select {
	case <-f.done:
		return f.handle, f.err
	case <-ctx.Done():
		return Handle{}, ctx.Err()
	}
}

// Pipeline validates uploads and converts them into ephemeral data: URI handles.
type Pipeline struct {
	registry *Registry
	limits   Limits
	log      *zap.Logger
}

// NewPipeline creates a pipeline registering handles with reg.
func NewPipeline(reg *Registry, limits Limits, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{registry: reg, limits: limits, log: log}
}

// Validate runs the declared-type check, then the size check.
func (p *Pipeline) Validate(f File, kind Kind) error {
	if !kind.Accepts(f.MediaType()) {
		return errors.NewInvalidMediaType(string(kind), f.MediaType())
	}
	if max := p.limits.forKind(kind); f.Size() > max {
		return errors.NewMediaTooLarge(string(kind), max, f.Size())
	}
	return nil
}

// Ingest validates f and starts converting it in the background. Validation
// failures resolve immediately and never produce a handle. Ingests are
// independent; no ordering holds between them.
func (p *Pipeline) Ingest(f File, kind Kind) *Future {
	if err := p.Validate(f, kind); err != nil {
		p.log.Info("upload rejected", zap.String("file", f.Name()), zap.String("kind", string(kind)), zap.Error(err))
		return resolved(Handle{}, err)
	}

	fut := &Future{done: make(chan struct{})}
	go func() {
		defer close(fut.done)
		fut.handle, fut.err = p.convert(f, kind)
	}()
	return fut
}

func (p *Pipeline) convert(f File, kind Kind) (Handle, error) {
	rc, err := f.Open()
	if err != nil {
		return Handle{}, errors.NewInternal(fmt.Errorf("open %s: %w", f.Name(), err))
	}
	defer rc.Close()

	max := p.limits.forKind(kind)
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(rc, max+1))
	if err != nil {
		return Handle{}, errors.NewInternal(fmt.Errorf("read %s: %w", f.Name(), err))
	}
	// The declared size can understate the content.
	if n > max {
		return Handle{}, errors.NewMediaTooLarge(string(kind), max, n)
	}

	h, err := p.registry.Register(DataURI(f.MediaType(), buf.Bytes()))
	if err != nil {
		return Handle{}, errors.NewInternal(err)
	}
	p.log.Debug("upload converted", zap.String("file", f.Name()), zap.String("id", h.ID), zap.Int64("bytes", n))
	return h, nil
}

// DataURI encodes data as a self-contained data: URI.
func DataURI(mediaType string, data []byte) string {
	var sb strings.Builder
	sb.Grow(len(mediaType) + 13 + base64.StdEncoding.EncodedLen(len(data)))
	sb.WriteString("data:")
	sb.WriteString(strings.ToLower(strings.TrimSpace(mediaType)))
	sb.WriteString(";base64,")
	sb.WriteString(base64.StdEncoding.EncodeToString(data))
	return sb.String()
}
