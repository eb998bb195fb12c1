// Package mediatest provides media.File fakes for tests.
package mediatest

import (
	"bytes"
	"io"
	"sync"
)

// GatedFile holds back its content until Release is called, so tests can
// decide the order in which concurrent ingests complete.
type GatedFile struct {
	FileName string
	Type     string
	Data     []byte

	gate   chan struct{}
	opened chan struct{}
	once   sync.Once
}

// NewGated returns a GatedFile whose reads block until Release.
func NewGated(name, mediaType string, data []byte) *GatedFile {
	return &GatedFile{FileName: name, Type: mediaType, Data: data, gate: make(chan struct{}), opened: make(chan struct{})}
}

func (f *GatedFile) Name() string      { return f.FileName }
func (f *GatedFile) MediaType() string { return f.Type }
func (f *GatedFile) Size() int64       { return int64(len(f.Data)) }

// Release lets pending reads proceed.
func (f *GatedFile) Release() { close(f.gate) }

// Opened is closed once the file has been opened for reading.
func (f *GatedFile) Opened() <-chan struct{} { return f.opened }

func (f *GatedFile) Open() (io.ReadCloser, error) {
	f.once.Do(func() { close(f.opened) })
	return io.NopCloser(&gatedReader{gate: f.gate, r: bytes.NewReader(f.Data)}), nil
}

type gatedReader struct {
	gate <-chan struct{}
	r    io.Reader
}

func (g *gatedReader) Read(p []byte) (int, error) {
	<-g.gate
	return g.r.Read(p)
}

// SizedFile reports an arbitrary size without holding the bytes; opening it
// is an error, so it only serves validation paths.
type SizedFile struct {
	FileName string
	Type     string
	Bytes    int64
}

func (f *SizedFile) Name() string      { return f.FileName }
func (f *SizedFile) MediaType() string { return f.Type }
func (f *SizedFile) Size() int64       { return f.Bytes }

func (f *SizedFile) Open() (io.ReadCloser, error) {
	return nil, io.ErrUnexpectedEOF
}
