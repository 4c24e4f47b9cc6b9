package main

import (
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/brunobiangulo/docview"
	"github.com/brunobiangulo/docview/parser"
	"github.com/brunobiangulo/docview/raster"
)

const maxRows = 10000

type handler struct {
	engine docview.Engine
}

func newHandler(e docview.Engine) *handler {
	return &handler{engine: e}
}

type sheetResponse struct {
	Name      string               `json:"name"`
	TotalRows int                  `json:"total_rows"`
	Rows      [][]parser.CellValue `json:"rows"`
}

type previewResponse struct {
	Attempt   string          `json:"attempt"`
	FileID    string          `json:"file_id"`
	Filename  string          `json:"filename"`
	Strategy  string          `json:"strategy"`
	Outcome   string          `json:"outcome"`
	Sheets    []sheetResponse `json:"sheets,omitempty"`
	Slides    []parser.Slide  `json:"slides,omitempty"`
	Pages     int             `json:"pages,omitempty"`
	FirstPage string          `json:"first_page_text,omitempty"`
	ElapsedMs int64           `json:"elapsed_ms"`
}

// POST /preview?rows=N
// Accepts a multipart upload in field "file".
func (h *handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	cfg := h.engine.Config()
	rows := cfg.InitialRows
	if v := r.URL.Query().Get("rows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "rows must be a positive integer")
			return
		}
		rows = min(n, maxRows)
	}

	file, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	// Each upload is a new file instance; nothing can revisit its job.
	defer h.engine.Forget(file)

	res, err := h.engine.Preview(ctx, file, nil)
	if err != nil {
		writePreviewError(w, err)
		return
	}
	defer res.Close()

	resp := previewResponse{
		Attempt:   res.Attempt,
		FileID:    res.FileID.String(),
		Filename:  res.Name,
		Strategy:  string(res.Strategy),
		Outcome:   res.Outcome.String(),
		Slides:    res.Slides,
		Pages:     res.Pages,
		ElapsedMs: res.Elapsed.Milliseconds(),
	}
	if res.Surface != nil {
		text, err := res.Surface.Text(1)
		if err != nil {
			slog.Debug("server: no text layer", "file", res.Name, "error", err)
		}
		resp.FirstPage = text
	}
	for _, s := range res.Sheets {
		win := parser.NewWindow(s.Rows(), rows, cfg.RowStep, cfg.ScrollThreshold)
		resp.Sheets = append(resp.Sheets, sheetResponse{
			Name:      s.Name,
			TotalRows: s.Rows(),
			Rows:      win.Rows(s.Grid),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// POST /render?page=N&scale=S
// Renders one page of an uploaded paginated (or legacy) document as PNG.
func (h *handler) handleRender(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	q := r.URL.Query()
	page := 1
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = n
	}
	scale := h.engine.Config().DefaultScale
	if v := q.Get("scale"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "scale must be a number")
			return
		}
		scale = f
	}

	file, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	strategy, err := h.engine.Resolve(file)
	if err != nil {
		writePreviewError(w, &docview.PreviewError{Kind: docview.KindUnsupported, Stage: "resolve", Err: err})
		return
	}
	if strategy != parser.StrategyRaster && strategy != parser.StrategyLegacy {
		writeError(w, http.StatusBadRequest, "not a paginated document")
		return
	}

	defer h.engine.Forget(file)

	view := h.engine.NewView()
	defer view.Close()

	res, err := view.Open(ctx, file, nil)
	if err != nil {
		writePreviewError(w, err)
		return
	}
	if res.Outcome == docview.OutcomeCancelled {
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}

	frame, err := view.Render(ctx, page, scale)
	switch {
	case errors.Is(err, raster.ErrPageRange):
		writeError(w, http.StatusBadRequest, "page out of range")
		return
	case err != nil:
		writePreviewError(w, err)
		return
	case frame == nil:
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Page-Count", strconv.Itoa(res.Pages))
	w.Header().Set("X-Render-Scale", strconv.FormatFloat(frame.Scale, 'f', -1, 64))
	if err := png.Encode(w, frame.Image); err != nil {
		slog.Error("encoding page", "page", page, "error", err)
	}
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"conversion": h.engine.Config().Conversion.BaseURL != "",
	})
}

func (h *handler) readUpload(w http.ResponseWriter, r *http.Request) (*docview.File, bool) {
	limit := h.engine.Config().MaxUploadBytes
	if limit > 0 {
		// Leave room for the multipart framing around the file part.
		r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	}

	src, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "expected multipart upload with field 'file'")
		return nil, false
	}
	defer src.Close()

	file, err := docview.ReadFile(header.Filename, header.Header.Get("Content-Type"), src, limit)
	if err != nil {
		if errors.Is(err, docview.ErrFileTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "failed to read upload")
		slog.Error("reading upload", "filename", header.Filename, "error", err)
		return nil, false
	}
	return file, true
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
	Download  bool   `json:"download"`
}

func writePreviewError(w http.ResponseWriter, err error) {
	var pe *docview.PreviewError
	if !errors.As(err, &pe) {
		slog.Error("preview error", "error", err)
		writeError(w, http.StatusInternalServerError, "preview failed")
		return
	}

	status := http.StatusUnprocessableEntity
	switch pe.Kind {
	case docview.KindUnsupported:
		status = http.StatusUnsupportedMediaType
		if errors.Is(err, docview.ErrFileTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
	case docview.KindNetwork:
		status = http.StatusGatewayTimeout
	case docview.KindUnavailable:
		status = http.StatusServiceUnavailable
	case docview.KindMalformed:
		status = http.StatusBadGateway
	}

	writeJSON(w, status, errorResponse{
		Error:     pe.Message(),
		Kind:      pe.Kind.String(),
		Retryable: pe.Retryable,
		Download:  pe.Download(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
