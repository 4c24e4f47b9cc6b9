package session

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestReportNonDecreasing(t *testing.T) {
	var got []int
	s := New(context.Background(), func(p int, _ string) { got = append(got, p) })

	for _, p := range []int{5, 20, 10, 40, 39, 100, 150} {
		s.Report(p, "stage")
	}

	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Fatalf("progress regressed at call %d: %v", i, got)
		}
	}
	if last := got[len(got)-1]; last != 100 {
		t.Errorf("final percent = %d, want 100 (clamped)", last)
	}
}

func TestReportKeepsMessageOnLowerPercent(t *testing.T) {
	s := New(context.Background(), nil)
	s.Report(50, "parsing")
	s.Report(10, "finishing")

	p, msg := s.Progress()
	if p != 50 {
		t.Errorf("percent = %d, want 50", p)
	}
	if msg != "finishing" {
		t.Errorf("message = %q, want %q", msg, "finishing")
	}
}

func TestAbortStopsReports(t *testing.T) {
	calls := 0
	s := New(context.Background(), func(int, string) { calls++ })

	if !s.Report(1, "started") {
		t.Fatal("Report before abort returned false")
	}
	s.Abort()

	if s.Report(50, "late") {
		t.Error("Report after abort returned true")
	}
	if calls != 1 {
		t.Errorf("callback calls = %d, want 1", calls)
	}
	if !errors.Is(s.Yield(), ErrAborted) {
		t.Error("Yield after abort should return ErrAborted")
	}
}

func TestAbortIdempotent(t *testing.T) {
	s := New(context.Background(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Abort()
		}()
	}
	wg.Wait()
	s.Abort()

	if !s.Aborted() {
		t.Fatal("session should be aborted")
	}
	if s.Context().Err() == nil {
		t.Error("abort token context should be cancelled")
	}
}

func TestParentCancellationAborts(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	s := New(parent, nil)
	cancel()

	if !s.Aborted() {
		t.Error("cancelling parent should abort the session")
	}
}

func TestTrackerSupersedes(t *testing.T) {
	var tr Tracker
	first := tr.Begin(context.Background(), nil)
	second := tr.Begin(context.Background(), nil)

	if !first.Aborted() {
		t.Error("first attempt should be aborted once superseded")
	}
	if tr.IsCurrent(first) {
		t.Error("first attempt should not be current")
	}
	if !tr.IsCurrent(second) {
		t.Error("second attempt should be current")
	}

	tr.Close()
	if !second.Aborted() {
		t.Error("Close should abort the current attempt")
	}
	if third := tr.Begin(context.Background(), nil); !third.Aborted() {
		t.Error("Begin after Close should return an aborted session")
	}
}
