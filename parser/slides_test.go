package parser

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"testing"
)

const slideTemplate = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
<p:cSld><p:spTree>%s</p:spTree></p:cSld></p:sld>`

func textShape(paras ...string) string {
	var b bytes.Buffer
	b.WriteString("<p:sp><p:txBody>")
	for _, p := range paras {
		fmt.Fprintf(&b, "<a:p><a:r><a:t>%s</a:t></a:r></a:p>", p)
	}
	b.WriteString("</p:txBody></p:sp>")
	return b.String()
}

const tableFrame = `<p:graphicFrame><a:graphic><a:graphicData><a:tbl><a:tr><a:tc><a:txBody>` +
	`<a:p><a:r><a:t>table cell</a:t></a:r></a:p></a:txBody></a:tc></a:tr></a:tbl></a:graphicData></a:graphic></p:graphicFrame>`

// buildPresentation writes parts in the given order so tests control the
// container listing order.
func buildPresentation(t *testing.T, parts [][2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p[0])
		if err != nil {
			t.Fatalf("zip create %s: %v", p[0], err)
		}
		if _, err := w.Write([]byte(p[1])); err != nil {
			t.Fatalf("zip write %s: %v", p[0], err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeSlidesNumericOrder(t *testing.T) {
	// Lexical listing order: slide1, slide10, slide11, slide12, slide2, ...
	order := []int{1, 10, 11, 12, 2, 3, 4, 5, 6, 7, 8, 9}
	parts := [][2]string{
		{"[Content_Types].xml", "<Types/>"},
		{"ppt/slideLayouts/slideLayout1.xml", fmt.Sprintf(slideTemplate, textShape("layout"))},
		{"ppt/notesSlides/notesSlide1.xml", fmt.Sprintf(slideTemplate, textShape("notes"))},
	}
	for _, n := range order {
		parts = append(parts, [2]string{
			fmt.Sprintf("ppt/slides/slide%d.xml", n),
			fmt.Sprintf(slideTemplate, textShape(fmt.Sprintf("Slide %d", n))),
		})
	}

	slides, err := DecodeSlides(newSession(), "deck.pptx", buildPresentation(t, parts))
	if err != nil {
		t.Fatalf("DecodeSlides: %v", err)
	}

	if len(slides) != 12 {
		t.Fatalf("got %d slides, want 12", len(slides))
	}
	for i, s := range slides {
		if s.Number != i+1 {
			t.Errorf("slides[%d].Number = %d, want %d", i, s.Number, i+1)
		}
		if want := fmt.Sprintf("Slide %d", i+1); s.Text != want {
			t.Errorf("slides[%d].Text = %q, want %q", i, s.Text, want)
		}
	}
}

func TestDecodeSlidesTextRuns(t *testing.T) {
	body := textShape("Quarterly  review", "Revenue up") + tableFrame + textShape("Next steps")
	parts := [][2]string{
		{"ppt/slides/slide1.xml", fmt.Sprintf(slideTemplate, body)},
		{"ppt/slides/slide2.xml", fmt.Sprintf(slideTemplate, `<p:pic/>`)},
	}

	slides, err := DecodeSlides(newSession(), "deck.pptx", buildPresentation(t, parts))
	if err != nil {
		t.Fatalf("DecodeSlides: %v", err)
	}

	if want := "Quarterly  review Revenue up Next steps"; slides[0].Text != want {
		t.Errorf("slide 1 text = %q, want %q", slides[0].Text, want)
	}
	if slides[1].Text != "" {
		t.Errorf("picture-only slide text = %q, want empty", slides[1].Text)
	}
}

func TestDecodeSlidesNoManifests(t *testing.T) {
	data := buildPresentation(t, [][2]string{
		{"ppt/presentation.xml", "<p:presentation/>"},
		{"ppt/slideMasters/slideMaster1.xml", "<p:sldMaster/>"},
	})

	_, err := DecodeSlides(newSession(), "empty.pptx", data)
	if !errors.Is(err, ErrNoSlides) {
		t.Errorf("error = %v, want ErrNoSlides", err)
	}
}

func TestDecodeSlidesNotAZip(t *testing.T) {
	_, err := DecodeSlides(newSession(), "deck.pptx", []byte("plain text"))

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if pe.Stage != "open container" {
		t.Errorf("Stage = %q, want %q", pe.Stage, "open container")
	}
}

func TestDecodeSlidesMalformedXML(t *testing.T) {
	data := buildPresentation(t, [][2]string{
		{"ppt/slides/slide1.xml", "<p:sld><a:t>unterminated"},
	})

	var pe *ParseError
	if _, err := DecodeSlides(newSession(), "deck.pptx", data); !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
}

func TestExtractSlideTextIgnoresOtherNamespaces(t *testing.T) {
	xml := `<root xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:x="urn:other">` +
		`<a:t>kept</a:t><x:t>dropped</x:t></root>`
	got, err := extractSlideText([]byte(xml))
	if err != nil {
		t.Fatal(err)
	}
	if got != "kept" {
		t.Errorf("got %q, want %q", got, "kept")
	}
}
