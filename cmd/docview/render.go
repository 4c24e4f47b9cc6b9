package main

import (
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/docview"
)

var (
	renderPage  int
	renderScale float64
	renderOut   string
)

var renderCmd = &cobra.Command{
	Use:   "render FILE",
	Short: "Render one page of a paginated or legacy document to PNG",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().IntVarP(&renderPage, "page", "p", 1, "page number (1-based)")
	renderCmd.Flags().Float64VarP(&renderScale, "scale", "s", 1.0, "zoom scale, clamped to the configured bounds")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "output PNG path (default: FILE-pN.png)")
}

func runRender(cmd *cobra.Command, args []string) error {
	engine, err := loadEngine()
	if err != nil {
		return err
	}
	file, err := docview.OpenFile(args[0])
	if err != nil {
		return err
	}

	view := engine.NewView()
	defer view.Close()

	bar := newProgress(1, "loading")
	res, err := view.Open(cmd.Context(), file, bar.track(0))
	bar.finish()
	if err != nil {
		return describe(err)
	}
	if res.Outcome == docview.OutcomeCancelled {
		return errors.New("cancelled")
	}
	if res.Surface == nil {
		return fmt.Errorf("%s is a %s document and has no pages", file.Name, res.Strategy)
	}

	frame, err := view.Render(cmd.Context(), renderPage, renderScale)
	if err != nil {
		return describe(err)
	}
	if frame == nil {
		return errors.New("cancelled")
	}

	out := renderOut
	if out == "" {
		out = fmt.Sprintf("%s-p%d.png", strings.TrimSuffix(file.Name, filepath.Ext(file.Name)), frame.Page)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := png.Encode(f, frame.Image); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (page %d of %d, scale %.2f)\n", out, frame.Page, res.Pages, frame.Scale)
	return nil
}

// describe turns a preview failure into its user-facing message.
func describe(err error) error {
	var pe *docview.PreviewError
	if errors.As(err, &pe) {
		return errors.New(pe.Message())
	}
	return err
}
