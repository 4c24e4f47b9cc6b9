package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/brunobiangulo/docview/session"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeDelimited parses comma or tab separated text into a single sheet named
// after the file. Input is UTF-8; a UTF-8 or UTF-16 byte order mark is honoured.
func decodeDelimited(sess *session.Session, name string, data []byte) ([]Sheet, error) {
	ext := Ext(name)
	sess.Report(20, "Parsing delimited text")

	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	r := csv.NewReader(transform.NewReader(bytes.NewReader(data), dec))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	if ext == "tsv" {
		r.Comma = '\t'
	}

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, parseError(ext, "parse delimited text", err)
		}
		records = append(records, rec)

		if len(records)%yieldEvery == 0 {
			if err := sess.Yield(); err != nil {
				return nil, err
			}
		}
	}

	top, bottom, left, width := usedRange(records)
	if width == 0 {
		return nil, nil
	}

	grid := make([][]CellValue, 0, bottom-top+1)
	for _, rec := range records[top : bottom+1] {
		row := make([]CellValue, width)
		for c := range row {
			row[c] = ""
			if col := left + c; col < len(rec) && rec[col] != "" {
				row[c] = inferValue(rec[col])
			}
		}
		grid = append(grid, row)
	}

	sheetName := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	return []Sheet{{Name: sheetName, Grid: grid}}, nil
}

// inferValue returns a float64 for numeric text, a bool for TRUE/FALSE and the
// original string otherwise.
func inferValue(s string) CellValue {
	t := strings.TrimSpace(s)
	if strings.EqualFold(t, "true") {
		return true
	}
	if strings.EqualFold(t, "false") {
		return false
	}
	if t != "" && !isSpecialFloat(t) {
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
	}
	return s
}

// isSpecialFloat catches spellings ParseFloat accepts but a sheet should keep
// as text ("Inf", "NaN", "1_000", "0x1p4").
func isSpecialFloat(s string) bool {
	l := strings.ToLower(s)
	return strings.Contains(l, "inf") || strings.Contains(l, "nan") ||
		strings.Contains(l, "x") || strings.Contains(l, "_")
}
