// Package docview previews uploaded documents: spreadsheets and delimited
// text as grids, presentations as slide text, and paginated documents as
// rendered pages. Legacy word-processor files are converted remotely first.
package docview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brunobiangulo/docview/convert"
	"github.com/brunobiangulo/docview/parser"
	"github.com/brunobiangulo/docview/raster"
	"github.com/brunobiangulo/docview/session"
)

// Engine is the main entry point for previewing documents.
type Engine interface {
	// NewView creates a view that shows one file at a time. Opening another
	// file on the same view supersedes the previous attempt.
	NewView() *View

	// Preview runs a single attempt on a fresh view. The caller must Close
	// the result to release a rendered document.
	Preview(ctx context.Context, file *File, onProgress session.ProgressFunc) (*Result, error)

	// Resolve reports which strategy would handle file.
	Resolve(file *File) (parser.Strategy, error)

	// Retry clears a failed conversion so the next attempt on file contacts
	// the conversion service again.
	Retry(file *File) bool

	// Forget drops any conversion outcome cached for file.
	Forget(file *File)

	Config() Config
}

// Outcome tags a Result.
type Outcome int

const (
	OutcomeReady Outcome = iota
	OutcomeEmpty
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReady:
		return "ready"
	case OutcomeEmpty:
		return "empty"
	case OutcomeCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result is what one preview attempt produced. Exactly one of Sheets, Slides
// or Surface is set when Outcome is OutcomeReady.
type Result struct {
	Attempt  string
	FileID   uuid.UUID
	Name     string
	Strategy parser.Strategy
	Outcome  Outcome
	Elapsed  time.Duration

	Sheets  []parser.Sheet
	Slides  []parser.Slide
	Pages   int
	Surface *raster.Surface

	owner *View
}

// Close releases the view a one-shot Preview created. It is a no-op for
// results of View.Open.
func (r *Result) Close() error {
	if r == nil || r.owner == nil {
		return nil
	}
	return r.owner.Close()
}

// Option configures an engine.
type Option func(*engine)

// WithOpener replaces the page renderer backend.
func WithOpener(o raster.Opener) Option {
	return func(e *engine) { e.opener = o }
}

// WithConverter replaces the conversion service client.
func WithConverter(c convert.Converter) Option {
	return func(e *engine) { e.adapter = convert.NewAdapter(c) }
}

// WithRegistry replaces the format table.
func WithRegistry(r *parser.Registry) Option {
	return func(e *engine) { e.registry = r }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg      Config
	registry *parser.Registry
	opener   raster.Opener
	adapter  *convert.Adapter
}

// New creates a preview engine with the given configuration.
func New(cfg Config, opts ...Option) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &engine{
		cfg:      cfg,
		registry: parser.NewRegistry(),
		opener:   raster.FitzOpener{},
	}
	if cfg.Conversion.BaseURL != "" {
		client := convert.NewClient(cfg.Conversion.BaseURL,
			convert.WithAPIKey(cfg.Conversion.APIKey),
			convert.WithTimeout(time.Duration(cfg.Conversion.TimeoutSeconds)*time.Second),
		)
		e.adapter = convert.NewAdapter(client)
	}
	for _, o := range opts {
		o(e)
	}

	slog.Debug("docview: engine ready",
		"conversion", e.adapter != nil,
		"initial_rows", cfg.InitialRows,
		"scale_range", fmt.Sprintf("%.2f-%.2f", cfg.MinScale, cfg.MaxScale))
	return e, nil
}

func (e *engine) Config() Config { return e.cfg }

func (e *engine) Resolve(file *File) (parser.Strategy, error) {
	s, err := e.registry.Resolve(file.Name, file.MIME)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	return s, nil
}

func (e *engine) Retry(file *File) bool {
	if e.adapter == nil {
		return false
	}
	return e.adapter.Retry(file.ID.String())
}

func (e *engine) Forget(file *File) {
	if e.adapter != nil {
		e.adapter.Forget(file.ID.String())
	}
}

func (e *engine) NewView() *View {
	return &View{e: e, surface: e.newSurface()}
}

func (e *engine) newSurface() *raster.Surface {
	return raster.NewSurface(
		raster.WithScaleBounds(e.cfg.MinScale, e.cfg.MaxScale),
		raster.WithInitialScale(e.cfg.DefaultScale),
	)
}

func (e *engine) Preview(ctx context.Context, file *File, onProgress session.ProgressFunc) (*Result, error) {
	v := e.NewView()
	res, err := v.Open(ctx, file, onProgress)
	if err != nil || res.Surface == nil {
		v.Close()
		return res, err
	}
	res.owner = v
	return res, nil
}

// View shows one file at a time. It owns one attempt tracker and one page
// surface.
type View struct {
	e       *engine
	tracker session.Tracker

	mu      sync.Mutex
	surface *raster.Surface
	closed  bool
}

// Open previews file. Any attempt already running on this view is aborted
// first. A superseded or aborted attempt returns OutcomeCancelled and no error.
func (v *View) Open(ctx context.Context, file *File, onProgress session.ProgressFunc) (*Result, error) {
	v.mu.Lock()
	closed := v.closed
	v.mu.Unlock()
	if closed {
		return nil, ErrViewClosed
	}

	sess := v.tracker.Begin(ctx, onProgress)
	res := &Result{
		Attempt: uuid.NewString(),
		FileID:  file.ID,
		Name:    file.Name,
	}
	start := time.Now()

	strategy, err := v.e.Resolve(file)
	if err != nil {
		return v.fail(sess, res, &PreviewError{Kind: KindUnsupported, Stage: "resolve", Err: err})
	}
	res.Strategy = strategy

	if limit := v.e.cfg.MaxUploadBytes; limit > 0 && file.Size > limit {
		return v.fail(sess, res, &PreviewError{
			Kind:  KindUnsupported,
			Stage: "upload",
			Err:   fmt.Errorf("%w: %d bytes", ErrFileTooLarge, file.Size),
		})
	}

	slog.Info("preview: starting",
		"attempt", res.Attempt, "file", file.Name, "size", file.Size, "strategy", strategy)
	sess.Report(1, "Starting")

	switch strategy {
	case parser.StrategyGrid:
		res.Sheets, err = parser.DecodeGrid(sess, file.Name, file.Bytes())
	case parser.StrategySlide:
		res.Slides, err = parser.DecodeSlides(sess, file.Name, file.Bytes())
	case parser.StrategyRaster:
		res.Pages, err = v.load(sess, file.Bytes())
	case parser.StrategyLegacy:
		res.Pages, err = v.convertAndLoad(sess, file)
	default:
		err = fmt.Errorf("%w: strategy %q", ErrUnsupportedFormat, strategy)
	}
	res.Elapsed = time.Since(start)

	if errors.Is(err, session.ErrAborted) || !v.tracker.IsCurrent(sess) {
		slog.Debug("preview: attempt discarded", "attempt", res.Attempt, "file", file.Name)
		return &Result{Attempt: res.Attempt, FileID: file.ID, Name: file.Name, Strategy: strategy, Outcome: OutcomeCancelled}, nil
	}
	if err != nil {
		return v.fail(sess, res, classify(strategy, err))
	}

	switch strategy {
	case parser.StrategyRaster, parser.StrategyLegacy:
		res.Surface = v.currentSurface()
	default:
		v.releaseDocument()
	}
	if strategy == parser.StrategyGrid && len(res.Sheets) == 0 {
		res.Outcome = OutcomeEmpty
	}

	sess.Report(100, "Done")
	slog.Info("preview: done",
		"attempt", res.Attempt, "file", file.Name, "strategy", strategy,
		"outcome", res.Outcome, "sheets", len(res.Sheets), "slides", len(res.Slides),
		"pages", res.Pages, "elapsed", res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// load puts data on the view's surface. A surface whose previous document
// failed to open is replaced first.
func (v *View) load(sess *session.Session, data []byte) (int, error) {
	v.mu.Lock()
	if v.surface.State() == raster.StateFailed {
		if err := v.surface.Close(); err != nil {
			slog.Warn("preview: closing failed surface", "error", err)
		}
		v.surface = v.e.newSurface()
	}
	surface := v.surface
	v.mu.Unlock()

	return surface.Load(sess.Context(), sess, raster.BytesSource(data), v.e.opener)
}

func (v *View) convertAndLoad(sess *session.Session, file *File) (int, error) {
	if v.e.adapter == nil {
		return 0, ErrConversionRequired
	}
	out, err := v.e.adapter.Convert(sess.Context(), sess, file.ID.String(), file.Name, file.Bytes())
	if err != nil {
		return 0, err
	}
	return v.load(sess, out)
}

func (v *View) fail(sess *session.Session, res *Result, perr *PreviewError) (*Result, error) {
	if !v.tracker.IsCurrent(sess) {
		return &Result{Attempt: res.Attempt, FileID: res.FileID, Name: res.Name, Strategy: res.Strategy, Outcome: OutcomeCancelled}, nil
	}
	slog.Warn("preview: failed",
		"attempt", res.Attempt, "file", res.Name, "strategy", res.Strategy,
		"kind", perr.Kind, "stage", perr.Stage, "retryable", perr.Retryable, "error", perr.Err)
	return nil, perr
}

func (v *View) currentSurface() *raster.Surface {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.surface
}

// releaseDocument drops a paginated document left over from an earlier file.
func (v *View) releaseDocument() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || v.surface.PageCount() == 0 {
		return
	}
	if err := v.surface.Close(); err != nil {
		slog.Warn("preview: releasing document", "error", err)
	}
	v.surface = v.e.newSurface()
}

// Window returns a row window over sheet sized by the engine configuration.
func (v *View) Window(sheet parser.Sheet) *parser.Window {
	cfg := v.e.cfg
	return parser.NewWindow(sheet.Rows(), cfg.InitialRows, cfg.RowStep, cfg.ScrollThreshold)
}

// Render draws page at scale on the view's surface. A superseded render
// returns a nil frame and nil error.
func (v *View) Render(ctx context.Context, page int, scale float64) (*raster.Frame, error) {
	f, err := v.currentSurface().Render(ctx, page, scale)
	return f, v.renderError(err)
}

// PageText returns the text layer of page of the open paginated document.
func (v *View) PageText(page int) (string, error) {
	text, err := v.currentSurface().Text(page)
	return text, v.renderError(err)
}

// ZoomIn and ZoomOut step the scale by Config.ZoomStep, clamped to the
// configured bounds.
func (v *View) ZoomIn(ctx context.Context) (*raster.Frame, error) {
	f, err := v.currentSurface().Zoom(ctx, v.e.cfg.ZoomStep)
	return f, v.renderError(err)
}

func (v *View) ZoomOut(ctx context.Context) (*raster.Frame, error) {
	f, err := v.currentSurface().Zoom(ctx, 1/v.e.cfg.ZoomStep)
	return f, v.renderError(err)
}

func (v *View) renderError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, raster.ErrNotReady), errors.Is(err, raster.ErrClosed), errors.Is(err, raster.ErrFailed):
		return ErrNoDocument
	case errors.Is(err, raster.ErrPageRange):
		return err
	}
	return classify(parser.StrategyRaster, err)
}

// Close aborts the running attempt, cancels any render and releases the
// document. Further calls are no-ops.
func (v *View) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	surface := v.surface
	v.mu.Unlock()

	v.tracker.Close()
	return surface.Close()
}

// classify maps a decoder, renderer or conversion failure to a PreviewError.
func classify(strategy parser.Strategy, err error) *PreviewError {
	var (
		perr  *PreviewError
		pe    *parser.ParseError
		oe    *raster.OpenError
		pgErr *raster.PageError
		ce    *convert.Error
	)
	switch {
	case errors.As(err, &perr):
		return perr
	case errors.As(err, &pe):
		return &PreviewError{Kind: KindCorrupt, Stage: pe.Stage, Err: err}
	case errors.Is(err, parser.ErrNoSlides):
		return &PreviewError{Kind: KindCorrupt, Stage: "read slides", Err: err}
	case errors.As(err, &pgErr):
		return &PreviewError{Kind: KindPageRender, Stage: fmt.Sprintf("render page %d", pgErr.Page), Err: err}
	case errors.As(err, &oe):
		if strategy == parser.StrategyLegacy {
			return &PreviewError{Kind: KindMalformed, Stage: "open converted document", Err: err}
		}
		return &PreviewError{Kind: KindCorrupt, Stage: "open document", Err: err}
	case errors.As(err, &ce):
		return classifyConversion(ce)
	case errors.Is(err, ErrConversionRequired):
		return &PreviewError{Kind: KindUnavailable, Stage: "convert", Err: err}
	case errors.Is(err, ErrUnsupportedFormat):
		return &PreviewError{Kind: KindUnsupported, Stage: "resolve", Err: err}
	}
	return &PreviewError{Kind: KindCorrupt, Err: err}
}

func classifyConversion(ce *convert.Error) *PreviewError {
	p := &PreviewError{Stage: "convert", Err: ce}
	switch ce.Kind {
	case convert.KindTimeout:
		p.Kind, p.Retryable, p.Detail = KindNetwork, true, "the request timed out"
	case convert.KindUnreachable:
		p.Kind, p.Retryable, p.Detail = KindNetwork, true, "the service is unreachable"
	case convert.KindUnavailable:
		p.Kind = KindUnavailable
	case convert.KindMalformed:
		p.Kind = KindMalformed
	default:
		p.Kind = KindCorrupt
	}
	return p
}
