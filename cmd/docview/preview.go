package main

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/docview"
	"github.com/brunobiangulo/docview/parser"
)

var previewRows int

var previewCmd = &cobra.Command{
	Use:   "preview FILE...",
	Short: "Print the sheets, slides or page count of each file",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPreview,
}

func init() {
	previewCmd.Flags().IntVarP(&previewRows, "rows", "n", 0, "rows to show per sheet (default: config initial_rows)")
}

type previewOutcome struct {
	name string
	res  *docview.Result
	err  error
}

func runPreview(cmd *cobra.Command, args []string) error {
	engine, err := loadEngine()
	if err != nil {
		return err
	}
	rows := previewRows
	if rows <= 0 {
		rows = engine.Config().InitialRows
	}

	outcomes := make([]previewOutcome, len(args))
	bar := newProgress(len(args), "previewing")

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(runtime.NumCPU())
	for i, path := range args {
		g.Go(func() error {
			file, err := docview.OpenFile(path)
			if err != nil {
				outcomes[i] = previewOutcome{name: path, err: err}
				bar.track(i)(100, "")
				return nil
			}
			res, err := engine.Preview(ctx, file, bar.track(i))
			outcomes[i] = previewOutcome{name: file.Name, res: res, err: err}
			return nil
		})
	}
	err = g.Wait()
	bar.finish()
	if err != nil {
		return err
	}

	failed := 0
	out := cmd.OutOrStdout()
	for _, o := range outcomes {
		if o.err != nil {
			failed++
			writeFailure(out, o.name, o.err)
			continue
		}
		writeResult(out, o.res, rows)
		o.res.Close()
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be previewed", failed, len(args))
	}
	return nil
}

func writeResult(w io.Writer, res *docview.Result, rows int) {
	fmt.Fprintf(w, "== %s (%s, %s, %s) ==\n", res.Name, res.Strategy, res.Outcome, res.Elapsed.Round(time.Millisecond))

	switch {
	case res.Outcome == docview.OutcomeCancelled:
		fmt.Fprintln(w, "cancelled")
	case res.Outcome == docview.OutcomeEmpty:
		fmt.Fprintln(w, "no sheets")
	case res.Sheets != nil:
		for _, s := range res.Sheets {
			writeSheet(w, s, rows)
		}
	case res.Slides != nil:
		for _, s := range res.Slides {
			text := s.Text
			if text == "" {
				text = "(blank)"
			}
			fmt.Fprintf(w, "[%d] %s\n", s.Number, text)
		}
	default:
		fmt.Fprintf(w, "%d pages\n", res.Pages)
		if res.Surface != nil {
			if text, err := res.Surface.Text(1); err == nil && text != "" {
				fmt.Fprintln(w, excerpt(text, 400))
			}
		}
	}
	fmt.Fprintln(w)
}

// excerpt collapses whitespace in text and cuts it to at most n runes.
func excerpt(text string, n int) string {
	r := []rune(strings.Join(strings.Fields(text), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

func writeSheet(w io.Writer, s parser.Sheet, rows int) {
	fmt.Fprintf(w, "-- %s (%d rows)\n", s.Name, s.Rows())

	win := parser.NewWindow(s.Rows(), rows, rows, 0)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, row := range win.Rows(s.Grid) {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = formatCell(c)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()

	if !win.Complete() {
		fmt.Fprintf(w, "... %d more rows\n", win.Total()-win.Visible())
	}
}

func formatCell(c parser.CellValue) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 {
			return v.Format(time.DateOnly)
		}
		return v.Format(time.DateTime)
	}
	return fmt.Sprint(c)
}

func writeFailure(w io.Writer, name string, err error) {
	fmt.Fprintf(w, "== %s (failed) ==\n", name)
	var pe *docview.PreviewError
	if errors.As(err, &pe) {
		fmt.Fprintln(w, pe.Message())
		if pe.Retryable {
			fmt.Fprintln(w, "This may work if you try again.")
		}
	} else {
		fmt.Fprintln(w, err)
	}
	fmt.Fprintln(w)
}
