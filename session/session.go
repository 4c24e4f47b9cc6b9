// Package session provides the cancellation and progress primitive that every
// preview attempt runs under.
package session

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// ErrAborted is returned from yield points once the session has been aborted.
// It is an internal signal and is never shown to users.
var ErrAborted = errors.New("session: aborted")

// ProgressFunc receives progress updates. Percent is non-decreasing within
// one session.
type ProgressFunc func(percent int, message string)

// Session carries the abort token and progress state of one preview attempt.
// A Session is never reused across files.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	percent    int
	message    string
	aborted    bool
	onProgress ProgressFunc
}

// New creates a session bound to parent. Cancelling parent aborts the session.
// fn may be nil.
func New(parent context.Context, fn ProgressFunc) *Session {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Session{ctx: ctx, cancel: cancel, onProgress: fn}
}

// Context returns the abort token for hard-cancellable work (network calls,
// render tasks).
func (s *Session) Context() context.Context { return s.ctx }

// Abort fires the abort token. Safe to call any number of times.
func (s *Session) Abort() {
	s.mu.Lock()
	s.aborted = true
	s.mu.Unlock()
	s.cancel()
}

// Aborted reports whether the session was aborted, either directly or through
// its parent context.
func (s *Session) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abortedLocked()
}

func (s *Session) abortedLocked() bool {
	if s.aborted {
		return true
	}
	if s.ctx.Err() != nil {
		s.aborted = true
	}
	return s.aborted
}

// Report records progress and forwards it to the callback. Percent is clamped
// to 0..100 and never moves backwards; a lower value only updates the message.
// Returns false, without calling back, once the session is aborted.
//
// The callback runs with the session lock held and must not call back into
// the session.
func (s *Session) Report(percent int, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abortedLocked() {
		return false
	}
	if percent > 100 {
		percent = 100
	}
	if percent > s.percent {
		s.percent = percent
	}
	s.message = message
	if s.onProgress != nil {
		s.onProgress(s.percent, s.message)
	}
	return true
}

// Progress returns the last reported percent and stage message.
func (s *Session) Progress() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.percent, s.message
}

// Yield is the cooperative low-priority scheduling point. It lets other
// goroutines run, then reports ErrAborted if the session was aborted meanwhile.
func (s *Session) Yield() error {
	runtime.Gosched()
	return s.Err()
}

// Err returns ErrAborted once the session is aborted, nil otherwise.
func (s *Session) Err() error {
	if s.Aborted() {
		return ErrAborted
	}
	return nil
}
