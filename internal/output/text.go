package output

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// TableWriter renders windows as a rounded terminal table.
type TableWriter struct{}

func (t *TableWriter) Write(w io.Writer, report WindowReport) error {
	ew := &errWriter{w: w}

	if report.Source != "" {
		ew.printf("State: %s\n", report.Source)
	}
	ew.printf("Budget: %d tokens per %s (reserve %d, max wait %s)\n",
		report.Limits.TPMLimit, report.Limits.Window, report.Limits.Reserve, report.Limits.MaxSleep)

	rs := rows(report)
	if len(rs) == 0 {
		ew.println("No rate limit windows recorded.")
		return ew.err
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Model", "Window Start", "Age", "Used", "Remaining", "Status"})

	total := 0
	for _, r := range rs {
		status := "active"
		if r.Expired {
			status = "expired"
		}
		tw.AppendRow(table.Row{
			r.Model,
			r.WindowStart.Format(time.RFC3339),
			(time.Duration(r.AgeSeconds) * time.Second).String(),
			r.TokensUsed,
			r.Remaining,
			status,
		})
		total += r.TokensUsed
	}
	tw.AppendFooter(table.Row{"", "", "", total, "", fmt.Sprintf("%d models", len(rs))})

	ew.println(tw.Render())
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}
