package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const thumbQuality = 80

// ParseDataURI splits a base64 data: URI into its media type and payload.
func ParseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("data URI has no payload")
	}
	mediaType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URI: %w", err)
	}
	return mediaType, data, nil
}

// Thumbnail scales the image held in a data: URI down to fit w x h and
// re-encodes it as JPEG. Images already within bounds are only re-encoded.
func Thumbnail(uri string, w, h int) ([]byte, error) {
	_, data, err := ParseDataURI(uri)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	img = imaging.Fit(img, w, h, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(thumbQuality)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// Preview is an editor-sized rendition of an uploaded image.
type Preview struct {
	MediaType string
	Data      []byte
}

// Thumbnails renders editor previews of uploaded images on demand. Entries
// live only as long as their handle: released handles stop resolving and are
// evicted from the cache.
type Thumbnails struct {
	registry *Registry
	width    int
	height   int
	log      *zap.Logger

	mu    sync.Mutex
	cache map[string]Preview
}

// NewThumbnails creates a preview cache over reg.
func NewThumbnails(reg *Registry, width, height int, log *zap.Logger) *Thumbnails {
	if log == nil {
		log = zap.NewNop()
	}
	return &Thumbnails{
		registry: reg,
		width:    width,
		height:   height,
		log:      log,
		cache:    make(map[string]Preview),
	}
}

// Get returns the preview for a live ephemeral handle ID. Content that cannot
// be decoded as an image is returned as uploaded.
func (t *Thumbnails) Get(id string) (Preview, bool) {
	uri, ok := t.registry.Lookup(id)
	if !ok {
		t.evict(id)
		return Preview{}, false
	}

	t.mu.Lock()
	p, ok := t.cache[id]
	t.mu.Unlock()
	if ok {
		return p, true
	}

	p, err := t.render(uri)
	if err != nil {
		t.log.Debug("thumbnail unavailable", zap.String("id", id), zap.Error(err))
		return Preview{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked()
	// Re-check: the handle may have been released while rendering.
	if _, live := t.registry.Lookup(id); live {
		t.cache[id] = p
	}
	return p, true
}

// Len reports how many previews are cached.
func (t *Thumbnails) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cache)
}

func (t *Thumbnails) render(uri string) (Preview, error) {
	data, err := Thumbnail(uri, t.width, t.height)
	if err == nil {
		return Preview{MediaType: "image/jpeg", Data: data}, nil
	}
	mediaType, raw, perr := ParseDataURI(uri)
	if perr != nil {
		return Preview{}, perr
	}
	t.log.Debug("serving original upload as preview", zap.Error(err))
	return Preview{MediaType: mediaType, Data: raw}, nil
}

func (t *Thumbnails) evict(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.cache, id)
}

// Prune drops previews of released handles.
func (t *Thumbnails) Prune() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked()
}

func (t *Thumbnails) pruneLocked() {
	for id := range t.cache {
		if _, live := t.registry.Lookup(id); !live {
			delete(t.cache, id)
		}
	}
}
