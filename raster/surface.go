package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/brunobiangulo/docview/session"
)

// State is the lifecycle position of a Surface.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateRendering
	StateRendered
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateRendering:
		return "rendering"
	case StateRendered:
		return "rendered"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const (
	DefaultMinScale = 0.5
	DefaultMaxScale = 3.0
	DefaultScale    = 1.0
)

// Frame is the last page committed to the surface.
type Frame struct {
	Page  int
	Scale float64
	Image image.Image
}

// Source is the byte stream a document is loaded from. Size is the expected
// total, or <= 0 when unknown.
type Source struct {
	Reader io.Reader
	Size   int64
}

// BytesSource wraps resident bytes as a Source of known size.
func BytesSource(data []byte) Source {
	return Source{Reader: bytes.NewReader(data), Size: int64(len(data))}
}

// Option configures a Surface.
type Option func(*Surface)

// WithScaleBounds sets the zoom clamp. Invalid bounds are ignored.
func WithScaleBounds(lo, hi float64) Option {
	return func(s *Surface) {
		if lo > 0 && hi >= lo {
			s.minScale, s.maxScale = lo, hi
		}
	}
}

// WithInitialScale sets the scale used before the first zoom.
func WithInitialScale(scale float64) Option {
	return func(s *Surface) {
		if scale > 0 {
			s.scale = scale
		}
	}
}

type renderJob struct {
	page   int
	scale  float64
	cancel context.CancelFunc
	done   chan struct{}
}

// Surface displays one page of one document at a time. At most one render
// job is in flight; a new request cancels the previous job and waits for it to
// stop before rasterizing.
type Surface struct {
	mu       sync.Mutex
	state    State
	doc      Document
	data     []byte
	pages    int
	page     int
	scale    float64
	minScale float64
	maxScale float64
	job      *renderJob
	frame    *Frame
	closed   bool
}

func NewSurface(opts ...Option) *Surface {
	s := &Surface{
		scale:    DefaultScale,
		minScale: DefaultMinScale,
		maxScale: DefaultMaxScale,
	}
	for _, o := range opts {
		o(s)
	}
	s.scale = s.clamp(s.scale)
	return s
}

const loadChunk = 64 << 10

// Load reads src, opens it with opener and makes it the surface's document.
// The previous document, if any, is released once the new one is installed.
// Returns the page count.
func (s *Surface) Load(ctx context.Context, sess *session.Session, src Source, opener Opener) (int, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return 0, ErrClosed
	case s.state == StateFailed:
		s.mu.Unlock()
		return 0, ErrFailed
	}
	prevState := s.state
	s.state = StateLoading
	s.mu.Unlock()

	restore := func() {
		s.mu.Lock()
		if s.state == StateLoading {
			s.state = prevState
		}
		s.mu.Unlock()
	}

	data, err := readSource(ctx, sess, src)
	if err != nil {
		restore()
		return 0, err
	}

	sess.Report(75, "Opening document")
	doc, err := opener.Open(data)
	if err != nil {
		if sess.Aborted() {
			restore()
			return 0, session.ErrAborted
		}
		s.fail()
		slog.Warn("raster: open failed", "bytes", len(data), "error", err)
		return 0, &OpenError{Err: err}
	}
	pages := doc.NumPage()
	if pages < 1 {
		doc.Close()
		s.fail()
		return 0, &OpenError{Err: ErrNoPages}
	}

	// Checked under the install lock: a superseded load never replaces a newer document.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		doc.Close()
		return 0, ErrClosed
	}
	if sess.Aborted() {
		if s.state == StateLoading {
			s.state = prevState
		}
		s.mu.Unlock()
		doc.Close()
		return 0, session.ErrAborted
	}
	oldDoc, oldJob := s.doc, s.job
	if oldJob != nil {
		// Stays in s.job until it acknowledges, so the next Render waits on it.
		oldJob.cancel()
	}
	s.doc, s.data = doc, data
	s.pages, s.page = pages, 1
	s.frame = nil
	s.state = StateReady
	s.mu.Unlock()

	release(oldDoc, oldJob)

	sess.Report(100, "Document ready")
	slog.Debug("raster: document loaded", "pages", pages, "bytes", len(data))
	return pages, nil
}

// fail moves the surface to its terminal state and releases the document it
// was showing.
func (s *Surface) fail() {
	s.mu.Lock()
	doc, job := s.doc, s.job
	if job != nil {
		job.cancel()
	}
	s.doc, s.data, s.frame = nil, nil, nil
	s.pages, s.page = 0, 0
	s.state = StateFailed
	s.mu.Unlock()

	release(doc, job)
}

// release waits for job to stop and then closes doc.
func release(doc Document, job *renderJob) {
	if job != nil {
		<-job.done
	}
	if doc != nil {
		if err := doc.Close(); err != nil {
			slog.Warn("raster: closing replaced document", "error", err)
		}
	}
}

func readSource(ctx context.Context, sess *session.Session, src Source) ([]byte, error) {
	if src.Reader == nil {
		return nil, ErrEmpty
	}

	if src.Size <= 0 {
		sess.Report(10, "Downloading document")
		data, err := io.ReadAll(src.Reader)
		if err != nil {
			return nil, fmt.Errorf("raster: read document: %w", err)
		}
		if err := sess.Yield(); err != nil {
			return nil, err
		}
		sess.Report(70, "Download complete")
		return checkEmpty(data)
	}

	buf := bytes.NewBuffer(make([]byte, 0, src.Size))
	chunk := make([]byte, loadChunk)
	for {
		if err := ctx.Err(); err != nil {
			return nil, session.ErrAborted
		}
		n, err := src.Reader.Read(chunk)
		buf.Write(chunk[:n])
		if n > 0 {
			received := min(int64(buf.Len()), src.Size)
			sess.Report(int(70*received/src.Size), "Loading document")
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("raster: read document: %w", err)
		}
		if err := sess.Yield(); err != nil {
			return nil, err
		}
	}
	return checkEmpty(buf.Bytes())
}

func checkEmpty(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, &OpenError{Err: ErrEmpty}
	}
	return data, nil
}

// Render draws page at scale. A render superseded by a later request, or
// cancelled through ctx, returns a nil frame and nil error.
func (s *Surface) Render(ctx context.Context, page int, scale float64) (*Frame, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, ErrClosed
	case s.state == StateFailed:
		s.mu.Unlock()
		return nil, ErrFailed
	case s.doc == nil:
		s.mu.Unlock()
		return nil, ErrNotReady
	case page < 1 || page > s.pages:
		n := s.pages
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %d of %d", ErrPageRange, page, n)
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	job := &renderJob{page: page, scale: s.clamp(scale), cancel: cancel, done: make(chan struct{})}
	defer close(job.done)

	prev := s.job
	s.job = job
	s.page, s.scale = job.page, job.scale
	s.state = StateRendering
	doc := s.doc
	s.mu.Unlock()

	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	var (
		img image.Image
		err error
	)
	if jobCtx.Err() == nil {
		img, err = doc.RenderPage(jobCtx, job.page, job.scale)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job != job {
		return nil, nil
	}
	s.job = nil
	if jobCtx.Err() != nil || s.closed {
		s.settleLocked()
		return nil, nil
	}
	if err != nil {
		s.settleLocked()
		return nil, &PageError{Page: job.page, Err: err}
	}

	s.frame = &Frame{Page: job.page, Scale: job.scale, Image: img}
	s.state = StateRendered
	f := *s.frame
	return &f, nil
}

// settleLocked returns the state to whatever the committed frame supports.
func (s *Surface) settleLocked() {
	if s.closed || s.doc == nil {
		return
	}
	if s.frame != nil {
		s.state = StateRendered
	} else {
		s.state = StateReady
	}
}

// SetScale re-renders the current page at scale, clamped to the bounds.
func (s *Surface) SetScale(ctx context.Context, scale float64) (*Frame, error) {
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()
	return s.Render(ctx, page, scale)
}

// Zoom multiplies the current scale by factor and re-renders.
func (s *Surface) Zoom(ctx context.Context, factor float64) (*Frame, error) {
	s.mu.Lock()
	page, scale := s.page, s.scale*factor
	s.mu.Unlock()
	return s.Render(ctx, page, scale)
}

func (s *Surface) clamp(scale float64) float64 {
	if math.IsNaN(scale) || scale <= 0 {
		return s.minScale
	}
	return max(s.minScale, min(scale, s.maxScale))
}

// Frame returns the last committed frame, or nil.
func (s *Surface) Frame() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil
	}
	f := *s.frame
	return &f
}

func (s *Surface) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Surface) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages
}

// Scale is the scale of the latest render request.
func (s *Surface) Scale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scale
}

// Text returns the plain-text layer of page (1-based) of the loaded document.
func (s *Surface) Text(page int) (string, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return "", ErrClosed
	case s.state == StateFailed:
		s.mu.Unlock()
		return "", ErrFailed
	case s.doc == nil:
		s.mu.Unlock()
		return "", ErrNotReady
	}
	data := s.data
	s.mu.Unlock()

	text, err := PageText(data, page)
	if err != nil && !errors.Is(err, ErrPageRange) {
		return "", &PageError{Page: page, Err: err}
	}
	return text, err
}

// Close cancels any in-flight render and releases the document. Further
// calls are no-ops.
func (s *Surface) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	doc, job := s.doc, s.job
	s.doc, s.data, s.job, s.frame = nil, nil, nil, nil
	s.state = StateIdle
	s.mu.Unlock()

	if job != nil {
		job.cancel()
		<-job.done
	}
	if doc != nil {
		return doc.Close()
	}
	return nil
}
