package docview

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// File is an uploaded document held in memory. Its bytes are never modified
// after construction.
type File struct {
	ID   uuid.UUID
	Name string
	Size int64
	MIME string

	data []byte
}

// NewFile wraps a copy of data as a File with a fresh ID. An empty mimeType is
// guessed from the name.
func NewFile(name, mimeType string, data []byte) *File {
	return newFile(name, mimeType, bytes.Clone(data))
}

// newFile takes ownership of data.
func newFile(name, mimeType string, data []byte) *File {
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(name))
	}
	return &File{
		ID:   uuid.New(),
		Name: filepath.Base(name),
		Size: int64(len(data)),
		MIME: mimeType,
		data: data,
	}
}

// OpenFile reads path into a File.
func OpenFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return newFile(path, "", data), nil
}

// ReadFile reads up to limit bytes from r into a File. A limit of zero
// disables the check.
func ReadFile(name, mimeType string, r io.Reader, limit int64) (*File, error) {
	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, name, limit)
	}
	return newFile(name, mimeType, data), nil
}

// Bytes returns the file contents. Callers must not modify the slice.
func (f *File) Bytes() []byte { return f.data }

// Reader returns a fresh reader over the contents.
func (f *File) Reader() io.Reader { return bytes.NewReader(f.data) }
