// Package rastertest provides in-memory documents for tests of code that
// renders pages.
package rastertest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"
)

// Document is a fake paginated document. It records how many renders ran at
// once and how often it was closed.
type Document struct {
	Pages    int
	Delay    time.Duration
	FailPage int

	mu        sync.Mutex
	active    int
	maxActive int
	renders   int
	closes    int
}

func (d *Document) NumPage() int { return d.Pages }

// RenderPage returns a blank image sized by scale after Delay, or the context
// error if cancelled first.
func (d *Document) RenderPage(ctx context.Context, page int, scale float64) (image.Image, error) {
	d.mu.Lock()
	d.active++
	d.renders++
	if d.active > d.maxActive {
		d.maxActive = d.active
	}
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.active--
		d.mu.Unlock()
	}()

	if d.FailPage > 0 && page == d.FailPage {
		return nil, fmt.Errorf("page %d is damaged", page)
	}

	t := time.NewTimer(d.Delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	w := int(100 * scale)
	return image.NewGray(image.Rect(0, 0, w, w*14/10)), nil
}

func (d *Document) Close() error {
	d.mu.Lock()
	d.closes++
	d.mu.Unlock()
	return nil
}

// MaxConcurrent is the largest number of renders ever observed in flight.
func (d *Document) MaxConcurrent() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxActive
}

func (d *Document) Renders() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.renders
}

func (d *Document) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// MinimalPDF builds a valid PDF with one page per entry in texts, each page
// showing its text in Helvetica.
func MinimalPDF(texts ...string) []byte {
	if len(texts) == 0 {
		texts = []string{""}
	}

	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := make([]string, len(texts))
	for i := range texts {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(texts)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	esc := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	for i, text := range texts {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 280] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		content := fmt.Sprintf("BT /F1 12 Tf 20 240 Td (%s) Tj ET", esc.Replace(text))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}
