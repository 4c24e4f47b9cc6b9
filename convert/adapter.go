package convert

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/brunobiangulo/docview/session"
)

// Converter performs one conversion request.
type Converter interface {
	Convert(ctx context.Context, name string, data []byte) ([]byte, error)
}

type Status int

const (
	StatusPending Status = iota
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Job is the conversion state of one file instance.
type Job struct {
	Status Status
	Result []byte
	Err    *Error
}

func (j Job) err() error {
	if j.Err == nil {
		return nil
	}
	return j.Err
}

// Adapter runs at most one conversion per file instance. Outcomes are cached
// by file ID; failures stay cached until Retry.
type Adapter struct {
	conv  Converter
	group singleflight.Group

	mu   sync.Mutex
	jobs map[string]*Job
}

func NewAdapter(conv Converter) *Adapter {
	return &Adapter{conv: conv, jobs: make(map[string]*Job)}
}

// Convert returns the converted bytes for fileID, performing the conversion
// only if no outcome is cached. Failures are *Error. When sess is aborted the
// result is discarded and session.ErrAborted returned.
func (a *Adapter) Convert(ctx context.Context, sess *session.Session, fileID, name string, data []byte) ([]byte, error) {
	if err := sess.Yield(); err != nil {
		return nil, err
	}

	if job, ok := a.finished(fileID); ok {
		if err := a.deliver(sess, job.err()); err != nil {
			return nil, err
		}
		return job.Result, nil
	}

	sess.Report(15, "Converting document")
	for {
		ch := a.group.DoChan(fileID, func() (any, error) {
			return a.run(sess.Context(), fileID, name, data)
		})

		var res singleflight.Result
		select {
		case res = <-ch:
		case <-ctx.Done():
			return nil, session.ErrAborted
		case <-sess.Context().Done():
			return nil, session.ErrAborted
		}

		// The shared call may have belonged to another caller's aborted
		// session; run again under ours.
		if errors.Is(res.Err, session.ErrAborted) && !sess.Aborted() {
			continue
		}
		if err := a.deliver(sess, res.Err); err != nil {
			return nil, err
		}
		sess.Report(60, "Conversion complete")
		return res.Val.([]byte), nil
	}
}

func (a *Adapter) run(ctx context.Context, fileID, name string, data []byte) ([]byte, error) {
	if job, ok := a.finished(fileID); ok {
		return job.Result, job.err()
	}

	a.mu.Lock()
	a.jobs[fileID] = &Job{Status: StatusPending}
	a.mu.Unlock()

	out, err := a.conv.Convert(ctx, name, data)

	a.mu.Lock()
	defer a.mu.Unlock()

	var cerr *Error
	switch {
	case err == nil:
		a.jobs[fileID] = &Job{Status: StatusSucceeded, Result: out}
		slog.Info("convert: succeeded", "file", name, "file_id", fileID, "bytes", len(out))
		return out, nil
	case errors.As(err, &cerr):
		a.jobs[fileID] = &Job{Status: StatusFailed, Err: cerr}
		slog.Warn("convert: failed", "file", name, "file_id", fileID, "kind", cerr.Kind, "error", err)
		return nil, cerr
	default:
		// Aborts and local errors leave no outcome behind.
		delete(a.jobs, fileID)
		return nil, err
	}
}

// finished returns the cached outcome for fileID, if one exists.
func (a *Adapter) finished(fileID string) (Job, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	job, ok := a.jobs[fileID]
	if !ok || job.Status == StatusPending {
		return Job{}, false
	}
	return *job, true
}

func (a *Adapter) deliver(sess *session.Session, err error) error {
	if sess.Aborted() {
		return session.ErrAborted
	}
	return err
}

// Job returns a snapshot of the conversion state for fileID.
func (a *Adapter) Job(fileID string) (Job, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	job, ok := a.jobs[fileID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Retry clears a failed outcome so the next Convert contacts the service
// again. It reports whether anything was cleared.
func (a *Adapter) Retry(fileID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	job, ok := a.jobs[fileID]
	if !ok || job.Status != StatusFailed {
		return false
	}
	delete(a.jobs, fileID)
	return true
}

// Forget drops any outcome for fileID, releasing cached bytes.
func (a *Adapter) Forget(fileID string) {
	a.mu.Lock()
	delete(a.jobs, fileID)
	a.mu.Unlock()
}
