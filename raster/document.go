// Package raster renders paginated documents page by page onto a single
// drawing surface.
package raster

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// Document is an opened paginated document. Page numbers are 1-based.
type Document interface {
	NumPage() int
	RenderPage(ctx context.Context, page int, scale float64) (image.Image, error)
	Close() error
}

// Opener turns document bytes into a Document.
type Opener interface {
	Open(data []byte) (Document, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(data []byte) (Document, error)

func (f OpenerFunc) Open(data []byte) (Document, error) { return f(data) }

// baseDPI is the resolution of a page at scale 1.
const baseDPI = 72.0

// FitzOpener opens documents with MuPDF.
type FitzOpener struct{}

func (FitzOpener) Open(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	if doc.NumPage() < 1 {
		doc.Close()
		return nil, ErrNoPages
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	mu  sync.Mutex
	doc *fitz.Document
}

func (d *fitzDocument) NumPage() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.NumPage()
}

// RenderPage rasterizes at 72*scale DPI. MuPDF cannot be interrupted mid-page,
// so cancellation is observed before and after the call.
func (d *fitzDocument) RenderPage(ctx context.Context, page int, scale float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	img, err := d.doc.ImageDPI(page-1, baseDPI*scale)
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("mupdf: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return img, nil
}

func (d *fitzDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Close()
}
