package main

import (
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/brunobiangulo/docview/session"
)

// progress folds per-file percentages into one terminal bar.
type progress struct {
	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	percent []int
}

func newProgress(files int, description string) *progress {
	bar := progressbar.NewOptions(
		100*files,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &progress{bar: bar, percent: make([]int, files)}
}

// track returns the progress callback for file i.
func (p *progress) track(i int) session.ProgressFunc {
	return func(percent int, message string) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.percent[i] = percent
		total := 0
		for _, v := range p.percent {
			total += v
		}
		p.bar.Describe(message)
		_ = p.bar.Set(total)
	}
}

func (p *progress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Finish()
}
