package parser

import "testing"

func TestWindowScrollGrowsToFullSheet(t *testing.T) {
	sheets, err := DecodeGrid(newSession(), "book.xlsx", buildWorkbook(t))
	if err != nil {
		t.Fatal(err)
	}
	orders := sheets[1]

	const rowHeight = 20.0
	const viewport = 400.0
	w := NewWindow(orders.Rows(), 100, 100, 200)

	if got := len(w.Rows(orders.Grid)); got != 100 {
		t.Fatalf("initial visible rows = %d, want 100", got)
	}

	// Scroll near the top: no growth.
	if w.OnScroll(0, viewport, float64(w.Visible())*rowHeight) {
		t.Error("window grew while far from the bottom edge")
	}

	for i := 0; i < 10 && !w.Complete(); i++ {
		content := float64(w.Visible()) * rowHeight
		w.OnScroll(content-viewport, viewport, content)
	}

	if !w.Complete() {
		t.Fatalf("window not complete after scrolling: %d/%d", w.Visible(), w.Total())
	}
	rows := w.Rows(orders.Grid)
	if len(rows) != 250 {
		t.Errorf("visible rows = %d, want 250", len(rows))
	}
	if rows[249][1] != "order-250" {
		t.Errorf("last row = %v, want order-250", rows[249])
	}
	if w.Grow() {
		t.Error("Grow on a complete window should return false")
	}
}

func TestWindowSmallSheet(t *testing.T) {
	w := NewWindow(30, 100, 100, 50)
	if w.Visible() != 30 {
		t.Errorf("Visible = %d, want 30", w.Visible())
	}
	if !w.Complete() {
		t.Error("window over 30 rows should start complete")
	}
}

func TestWindowDefaults(t *testing.T) {
	w := NewWindow(1000, 0, 0, 0)
	if w.Visible() != 100 {
		t.Errorf("Visible = %d, want default 100", w.Visible())
	}
	w.Grow()
	if w.Visible() != 200 {
		t.Errorf("after Grow Visible = %d, want 200", w.Visible())
	}
}
