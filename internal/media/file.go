package media

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"
)

// BytesFile is an in-memory File, used for multipart uploads.
type BytesFile struct {
	FileName string
	Type     string
	Data     []byte
}

func (f *BytesFile) Name() string      { return f.FileName }
func (f *BytesFile) MediaType() string { return f.Type }
func (f *BytesFile) Size() int64       { return int64(len(f.Data)) }

func (f *BytesFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}

// DiskFile is a local file picked by path (CLI and MCP surfaces).
type DiskFile struct {
	path      string
	mediaType string
	size      int64
}

// OpenDiskFile stats path and fixes its declared media type. When declared is
// empty the type is inferred the way a browser picker would, from the file
// header and then the extension.
func OpenDiskFile(path, declared string) (*DiskFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if declared == "" {
		declared, err = detectType(path)
		if err != nil {
			return nil, err
		}
	}
	return &DiskFile{path: path, mediaType: declared, size: info.Size()}, nil
}

func (f *DiskFile) Name() string      { return filepath.Base(f.path) }
func (f *DiskFile) MediaType() string { return f.mediaType }
func (f *DiskFile) Size() int64       { return f.size }

func (f *DiskFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// detectType guesses a media type for a local file.
func detectType(path string) (string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer fh.Close()

	// filetype needs at most 262 bytes of header.
	head := make([]byte, 262)
	n, err := io.ReadFull(fh, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}

	kind, err := filetype.Match(head[:n])
	if err == nil && kind != filetype.Unknown {
		return kind.MIME.Value, nil
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t, nil
	}
	return "application/octet-stream", nil
}
