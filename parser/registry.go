package parser

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// Strategy names how a file is previewed. The set is closed and chosen once
// per attempt.
type Strategy string

const (
	StrategyGrid   Strategy = "grid"
	StrategySlide  Strategy = "slide"
	StrategyRaster Strategy = "raster"
	StrategyLegacy Strategy = "legacy"
)

// ErrUnsupportedFormat is returned when neither extension nor MIME type maps to
// a strategy.
var ErrUnsupportedFormat = errors.New("parser: unsupported format")

type Registry struct {
	byExt  map[string]Strategy
	byMIME map[string]Strategy
}

func NewRegistry() *Registry {
	r := &Registry{
		byExt:  make(map[string]Strategy),
		byMIME: make(map[string]Strategy),
	}

	for _, f := range GridFormats() {
		r.byExt[f] = StrategyGrid
	}
	for _, f := range SlideFormats() {
		r.byExt[f] = StrategySlide
	}
	r.byExt["pdf"] = StrategyRaster
	r.byExt["doc"] = StrategyLegacy

	r.byMIME["text/csv"] = StrategyGrid
	r.byMIME["text/tab-separated-values"] = StrategyGrid
	r.byMIME["application/vnd.ms-excel"] = StrategyGrid
	r.byMIME["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"] = StrategyGrid
	r.byMIME["application/vnd.ms-excel.sheet.macroenabled.12"] = StrategyGrid
	r.byMIME["application/vnd.openxmlformats-officedocument.presentationml.presentation"] = StrategySlide
	r.byMIME["application/vnd.ms-powerpoint.presentation.macroenabled.12"] = StrategySlide
	r.byMIME["application/pdf"] = StrategyRaster
	r.byMIME["application/msword"] = StrategyLegacy
	return r
}

// Resolve picks the strategy for a file. The extension wins; the declared
// MIME type is only consulted when the extension is unknown.
func (r *Registry) Resolve(name, mimeType string) (Strategy, error) {
	if s, ok := r.byExt[Ext(name)]; ok {
		return s, nil
	}
	if mimeType != "" {
		mt, _, err := mime.ParseMediaType(mimeType)
		if err == nil {
			if s, ok := r.byMIME[strings.ToLower(mt)]; ok {
				return s, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q (%s)", ErrUnsupportedFormat, name, mimeType)
}

// Register maps an extension (without the dot) to a strategy.
func (r *Registry) Register(ext string, s Strategy) {
	r.byExt[strings.ToLower(strings.TrimPrefix(ext, "."))] = s
}

// Ext returns the lowercase extension of name without the leading dot.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
