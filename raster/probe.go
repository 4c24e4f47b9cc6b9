package raster

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Probe checks that data is a paginated document with at least one page and
// returns its page count. The pdf reader panics on some malformed inputs; those
// panics come back as errors.
func Probe(data []byte) (pages int, err error) {
	if len(data) == 0 {
		return 0, ErrEmpty
	}

	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("raster: probe: malformed document: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("raster: probe: %w", err)
	}
	n := reader.NumPage()
	if n < 1 {
		return 0, ErrNoPages
	}
	return n, nil
}

// PageText extracts the plain-text layer of one page (1-based). Pages without
// a text layer yield "".
func PageText(data []byte, page int) (text string, err error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}

	defer func() {
		if r := recover(); r != nil {
			text, err = "", &PageError{Page: page, Err: fmt.Errorf("malformed text layer: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("raster: open text layer: %w", err)
	}
	if n := reader.NumPage(); page < 1 || page > n {
		return "", fmt.Errorf("%w: %d of %d", ErrPageRange, page, n)
	}

	p := reader.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	raw, err := p.GetPlainText(nil)
	if err != nil {
		return "", &PageError{Page: page, Err: err}
	}
	return strings.TrimSpace(raw), nil
}
