package parser

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/brunobiangulo/docview/session"
	"github.com/xuri/excelize/v2"
)

// yieldEvery is how many rows are materialized between abort checks.
const yieldEvery = 1000

// GridFormats lists the extensions handled by DecodeGrid.
func GridFormats() []string {
	return []string{"csv", "tsv", "xlsx", "xlsm", "xltx", "xltm", "xls"}
}

func isDelimited(ext string) bool {
	switch ext {
	case "csv", "tsv", "txt":
		return true
	}
	return false
}

// DecodeGrid decodes a spreadsheet or delimited-text file into sheets in
// declaration order. Sheets are returned only once every sheet is decoded;
// an aborted session yields session.ErrAborted and no sheets. A container with
// no non-empty sheets yields nil, nil.
func DecodeGrid(sess *session.Session, name string, data []byte) ([]Sheet, error) {
	ext := Ext(name)
	sess.Report(10, "Reading file")

	// Defer the expensive part so an abort issued right after start wins.
	if err := sess.Yield(); err != nil {
		return nil, err
	}

	var (
		sheets []Sheet
		err    error
	)
	if isDelimited(ext) {
		sheets, err = decodeDelimited(sess, name, data)
	} else {
		sheets, err = decodeWorkbook(sess, ext, data)
	}
	if err != nil {
		return nil, err
	}
	if err := sess.Err(); err != nil {
		return nil, err
	}

	slog.Debug("grid: decoded", "file", name, "sheets", len(sheets))
	return sheets, nil
}

func decodeWorkbook(sess *session.Session, ext string, data []byte) ([]Sheet, error) {
	if len(data) == 0 {
		return nil, parseError(ext, "read", errors.New("empty file"))
	}

	sess.Report(20, "Parsing workbook")
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, parseError(ext, "open workbook", err)
	}
	defer f.Close()

	if err := sess.Yield(); err != nil {
		return nil, err
	}

	wb := &workbook{f: f, styles: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		wb.date1904 = *props.Date1904
	}

	names := f.GetSheetList()
	sheets := make([]Sheet, 0, len(names))
	for i, name := range names {
		sess.Report(30+60*i/len(names), fmt.Sprintf("Reading sheet %q", name))

		grid, err := wb.readSheet(sess, name)
		if err != nil {
			if errors.Is(err, session.ErrAborted) {
				return nil, err
			}
			return nil, parseError(ext, "read sheet", fmt.Errorf("%s: %w", name, err))
		}
		if len(grid) == 0 {
			continue
		}
		sheets = append(sheets, Sheet{Name: name, Grid: grid})

		if err := sess.Yield(); err != nil {
			return nil, err
		}
	}
	return sheets, nil
}

type workbook struct {
	f        *excelize.File
	date1904 bool
	styles   map[int]bool // style index -> is a date format
}

func (wb *workbook) readSheet(sess *session.Session, sheet string) ([][]CellValue, error) {
	rows, err := wb.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	top, bottom, left, width := usedRange(rows)
	if width == 0 {
		return nil, nil
	}

	grid := make([][]CellValue, 0, bottom-top+1)
	for r := top; r <= bottom; r++ {
		if (r-top)%yieldEvery == yieldEvery-1 {
			if err := sess.Yield(); err != nil {
				return nil, err
			}
		}

		row := make([]CellValue, width)
		for c := range row {
			row[c] = ""
			col := left + c
			if col >= len(rows[r]) || rows[r][col] == "" {
				continue
			}
			row[c] = wb.cellValue(sheet, col+1, r+1, rows[r][col])
		}
		grid = append(grid, row)
	}
	return grid, nil
}

func (wb *workbook) cellValue(sheet string, col, row int, raw string) CellValue {
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return raw
	}
	typ, err := wb.f.GetCellType(sheet, axis)
	if err != nil {
		return raw
	}

	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "TRUE")
	case excelize.CellTypeDate:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t
			}
		}
		return raw
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeFormula:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw
		}
		if wb.isDateStyled(sheet, axis) {
			if t, err := excelize.ExcelDateToTime(n, wb.date1904); err == nil {
				return t
			}
		}
		return n
	default:
		// shared/inline strings and error values such as #DIV/0!
		return raw
	}
}

func (wb *workbook) isDateStyled(sheet, axis string) bool {
	idx, err := wb.f.GetCellStyle(sheet, axis)
	if err != nil || idx == 0 {
		return false
	}
	if v, ok := wb.styles[idx]; ok {
		return v
	}

	isDate := false
	if style, err := wb.f.GetStyle(idx); err == nil && style != nil {
		if style.CustomNumFmt != nil {
			isDate = isDateFormat(*style.CustomNumFmt)
		} else {
			isDate = isBuiltinDateFormat(style.NumFmt)
		}
	}
	wb.styles[idx] = isDate
	return isDate
}

func isBuiltinDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22,
		id >= 27 && id <= 36,
		id >= 45 && id <= 47,
		id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormat reports whether a custom number format renders a date or time.
// Quoted literals, escaped characters and bracketed sections are ignored.
func isDateFormat(format string) bool {
	var b strings.Builder
	inQuote, inBracket, escaped := false, false, false
	for _, r := range format {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(r)
		}
	}
	f := strings.ToLower(b.String())
	if f == "" || f == "general" {
		return false
	}
	return strings.ContainsAny(f, "ydhs") || strings.Contains(f, "mm")
}

// usedRange returns the bounding box of non-empty cells: the first and last
// used rows, the first used column and the width of the box.
func usedRange(rows [][]string) (top, bottom, left, width int) {
	top, left, right := -1, -1, -1
	for r, row := range rows {
		for c, v := range row {
			if v == "" {
				continue
			}
			if top < 0 {
				top = r
			}
			bottom = r
			if left < 0 || c < left {
				left = c
			}
			if c > right {
				right = c
			}
		}
	}
	if top < 0 {
		return 0, 0, 0, 0
	}
	return top, bottom, left, right - left + 1
}
