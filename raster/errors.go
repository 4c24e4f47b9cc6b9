package raster

import (
	"errors"
	"fmt"
)

var (
	ErrClosed    = errors.New("raster: surface closed")
	ErrNotReady  = errors.New("raster: no document loaded")
	ErrFailed    = errors.New("raster: surface failed to open its document")
	ErrPageRange = errors.New("raster: page out of range")
	ErrNoPages   = errors.New("raster: document has no pages")
	ErrEmpty     = errors.New("raster: empty document")
)

// OpenError means the document could not be opened at all. It is terminal for
// the surface that produced it.
type OpenError struct {
	Err error
}

func (e *OpenError) Error() string { return fmt.Sprintf("raster: open document: %v", e.Err) }
func (e *OpenError) Unwrap() error { return e.Err }

// PageError is a failure to rasterize one page. The document stays usable.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("raster: render page %d: %v", e.Page, e.Err)
}
func (e *PageError) Unwrap() error { return e.Err }
