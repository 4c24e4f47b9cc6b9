package parser

import (
	"errors"
	"fmt"
)

// CellValue is one of string, float64, bool, time.Time or nil.
type CellValue any

// Sheet is one decoded table: a name and a dense 2-D grid with "" for gaps.
type Sheet struct {
	Name string        `json:"name"`
	Grid [][]CellValue `json:"grid"`
}

// Rows returns the number of rows in the sheet's grid.
func (s Sheet) Rows() int { return len(s.Grid) }

// Slide is the text of one presentation slide. Number is 1-based and taken
// from the manifest file name.
type Slide struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// ErrNoSlides is returned when a presentation container holds no slide
// manifests at all. A slide with no text is not an error.
var ErrNoSlides = errors.New("parser: no slides found")

// ParseError reports a structurally invalid container and the stage that
// failed.
type ParseError struct {
	Format string // file extension, e.g. "xlsx"
	Stage  string // "read", "open workbook", "read sheet", ...
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s failed at %s: %v", e.Format, e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseError(format, stage string, err error) *ParseError {
	return &ParseError{Format: format, Stage: stage, Err: err}
}
