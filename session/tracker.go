package session

import (
	"context"
	"sync"
)

// Tracker guards one consuming view against stale attempts. Beginning a new
// attempt aborts the previous one before the new session is handed out.
type Tracker struct {
	mu      sync.Mutex
	current *Session
	closed  bool
}

// Begin aborts the current attempt (if any) and starts a new one.
// After Close, Begin returns an already-aborted session.
func (t *Tracker) Begin(parent context.Context, fn ProgressFunc) *Session {
	s := New(parent, fn)

	t.mu.Lock()
	prev := t.current
	if t.closed {
		t.mu.Unlock()
		s.Abort()
		return s
	}
	t.current = s
	t.mu.Unlock()

	if prev != nil {
		prev.Abort()
	}
	return s
}

// IsCurrent reports whether s is the latest attempt and has not been aborted.
// Results from sessions that are not current must be discarded.
func (t *Tracker) IsCurrent(s *Session) bool {
	t.mu.Lock()
	cur := t.current
	t.mu.Unlock()
	return cur == s && !s.Aborted()
}

// Close aborts the current attempt; later Begin calls start aborted.
func (t *Tracker) Close() {
	t.mu.Lock()
	prev := t.current
	t.current = nil
	t.closed = true
	t.mu.Unlock()

	if prev != nil {
		prev.Abort()
	}
}
