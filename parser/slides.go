package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/brunobiangulo/docview/session"
)

const drawingMLNS = "http://schemas.openxmlformats.org/drawingml/2006/main"

// slideManifest matches slide parts only; layouts, masters and notes live in
// other directories or use other names.
var slideManifest = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// SlideFormats lists the extensions handled by DecodeSlides.
func SlideFormats() []string {
	return []string{"pptx", "pptm", "ppsx", "potx"}
}

type slideEntry struct {
	num  int
	file *zip.File
}

// DecodeSlides extracts the text of every slide in a ZIP-based presentation,
// ordered by the numeric suffix of each slide's part name.
func DecodeSlides(sess *session.Session, name string, data []byte) ([]Slide, error) {
	ext := Ext(name)
	sess.Report(10, "Opening presentation")

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, parseError(ext, "open container", err)
	}

	entries := discoverSlides(zr)
	if len(entries) == 0 {
		return nil, ErrNoSlides
	}

	if err := sess.Yield(); err != nil {
		return nil, err
	}

	slides := make([]Slide, 0, len(entries))
	for i, e := range entries {
		sess.Report(20+70*i/len(entries), fmt.Sprintf("Reading slide %d of %d", i+1, len(entries)))

		text, err := readSlideText(e.file)
		if err != nil {
			return nil, parseError(ext, fmt.Sprintf("read slide %d", e.num), err)
		}
		slides = append(slides, Slide{Number: e.num, Text: text})

		if err := sess.Yield(); err != nil {
			return nil, err
		}
	}

	slog.Debug("slides: decoded", "file", name, "slides", len(slides))
	return slides, nil
}

// discoverSlides walks the ZIP directory only; nothing is inflated here.
func discoverSlides(zr *zip.Reader) []slideEntry {
	var entries []slideEntry
	for _, f := range zr.File {
		m := slideManifest.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil || num <= 0 {
			continue
		}
		entries = append(entries, slideEntry{num: num, file: f})
	}

	// Numeric, not lexical: slide10 sorts after slide9.
	sort.Slice(entries, func(i, j int) bool { return entries[i].num < entries[j].num })
	return entries
}

func readSlideText(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return extractSlideText(data)
}

// extractSlideText collects every DrawingML text run (a:t) in document order
// and joins them with single spaces. Runs inside graphic frames (tables,
// charts, SmartArt) are skipped.
func extractSlideText(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		runs       []string
		inText     bool
		frameDepth int
		cur        strings.Builder
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "graphicFrame":
				frameDepth++
			case t.Name.Local == "t" && t.Name.Space == drawingMLNS && frameDepth == 0:
				inText = true
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		case xml.EndElement:
			switch {
			case t.Name.Local == "graphicFrame":
				frameDepth--
			case t.Name.Local == "t" && inText:
				inText = false
				if s := strings.TrimSpace(cur.String()); s != "" {
					runs = append(runs, s)
				}
			}
		}
	}
	return strings.Join(runs, " "), nil
}
