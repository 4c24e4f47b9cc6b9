package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/brunobiangulo/docview"
	"github.com/brunobiangulo/docview/parser"
	"github.com/brunobiangulo/docview/raster"
	"github.com/brunobiangulo/docview/raster/rastertest"
	"github.com/brunobiangulo/docview/session"
)

func TestFormatCell(t *testing.T) {
	tests := []struct {
		in   parser.CellValue
		want string
	}{
		{nil, ""},
		{"abc", "abc"},
		{float64(42), "42"},
		{1.5, "1.5"},
		{true, "true"},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "2024-03-01"},
		{time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), "2024-03-01 09:30:00"},
	}
	for _, tt := range tests {
		if got := formatCell(tt.in); got != tt.want {
			t.Errorf("formatCell(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteSheetWindows(t *testing.T) {
	grid := make([][]parser.CellValue, 30)
	for i := range grid {
		grid[i] = []parser.CellValue{float64(i + 1), "row"}
	}
	var b strings.Builder
	writeSheet(&b, parser.Sheet{Name: "Data", Grid: grid}, 10)

	out := b.String()
	if !strings.HasPrefix(out, "-- Data (30 rows)\n") {
		t.Errorf("header missing: %q", out)
	}
	if !strings.Contains(out, "... 20 more rows") {
		t.Errorf("expected truncation note, got %q", out)
	}
	if strings.Contains(out, "11  row") {
		t.Error("row 11 should not be visible")
	}
}

func TestWriteResult(t *testing.T) {
	tests := []struct {
		name string
		res  *docview.Result
		want string
	}{
		{"slides", &docview.Result{Name: "deck.pptx", Slides: []parser.Slide{{Number: 1, Text: "Hello"}, {Number: 2}}}, "[2] (blank)"},
		{"pages", &docview.Result{Name: "r.pdf", Pages: 7}, "7 pages"},
		{"empty", &docview.Result{Name: "e.csv", Outcome: docview.OutcomeEmpty}, "no sheets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			writeResult(&b, tt.res, 10)
			if !strings.Contains(b.String(), tt.want) {
				t.Errorf("output %q does not contain %q", b.String(), tt.want)
			}
		})
	}
}

func TestWriteFailure(t *testing.T) {
	var b strings.Builder
	writeFailure(&b, "memo.doc", &docview.PreviewError{Kind: docview.KindNetwork, Retryable: true})
	if !strings.Contains(b.String(), "original") || !strings.Contains(b.String(), "try again") {
		t.Errorf("output = %q", b.String())
	}

	b.Reset()
	writeFailure(&b, "x.bin", errors.New("boom"))
	if !strings.Contains(b.String(), "boom") {
		t.Errorf("output = %q", b.String())
	}
}

func TestWriteResultPageText(t *testing.T) {
	surface := raster.NewSurface()
	defer surface.Close()
	opener := raster.OpenerFunc(func([]byte) (raster.Document, error) {
		return &rastertest.Document{Pages: 1}, nil
	})
	data := rastertest.MinimalPDF("Shipping   manifest")
	sess := session.New(context.Background(), nil)
	if _, err := surface.Load(context.Background(), sess, raster.BytesSource(data), opener); err != nil {
		t.Fatal(err)
	}

	var b strings.Builder
	writeResult(&b, &docview.Result{Name: "m.pdf", Pages: 1, Surface: surface}, 10)
	if !strings.Contains(b.String(), "1 pages") || !strings.Contains(b.String(), "Shipping manifest") {
		t.Errorf("output = %q", b.String())
	}
}

func TestExcerpt(t *testing.T) {
	if got := excerpt("a  b\n c", 10); got != "a b c" {
		t.Errorf("excerpt = %q", got)
	}
	if got := excerpt("abcdef", 3); got != "abc..." {
		t.Errorf("excerpt = %q", got)
	}
}
