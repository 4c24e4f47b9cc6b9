package parser

// Window is the virtualized row window over a decoded sheet. It only bounds
// what is materialized into a view; the full grid stays resident and is never
// decoded again.
type Window struct {
	total     int
	visible   int
	step      int
	threshold float64
}

// NewWindow creates a window over total rows that starts with initial rows
// visible and grows by step. threshold is the distance from the bottom edge,
// in the same units as OnScroll's arguments, that triggers growth.
func NewWindow(total, initial, step int, threshold float64) *Window {
	if initial <= 0 {
		initial = 100
	}
	if step <= 0 {
		step = initial
	}
	w := &Window{total: total, visible: initial, step: step, threshold: threshold}
	if w.visible > total {
		w.visible = total
	}
	return w
}

// Visible returns how many rows are currently materialized.
func (w *Window) Visible() int { return w.visible }

// Total returns the number of rows in the underlying sheet.
func (w *Window) Total() int { return w.total }

// Complete reports whether every row is visible.
func (w *Window) Complete() bool { return w.visible >= w.total }

// Grow extends the window by one step. Returns false when already complete.
func (w *Window) Grow() bool {
	if w.Complete() {
		return false
	}
	w.visible += w.step
	if w.visible > w.total {
		w.visible = w.total
	}
	return true
}

// OnScroll handles a scroll event. When the viewport's bottom edge is within
// the threshold of the content's end, the window grows by one step.
func (w *Window) OnScroll(offset, viewport, content float64) bool {
	if content-(offset+viewport) > w.threshold {
		return false
	}
	return w.Grow()
}

// Rows returns the visible prefix of grid.
func (w *Window) Rows(grid [][]CellValue) [][]CellValue {
	n := w.visible
	if n > len(grid) {
		n = len(grid)
	}
	return grid[:n]
}
