package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dshills/diffsum/internal/ratelimit"
)

// WindowReport is the persisted limiter state as shown by `ratelimit show`.
type WindowReport struct {
	Now     time.Time
	Limits  ratelimit.Config
	Source  string
	Windows []ratelimit.Window
}

// Writer writes a window report in a specific format.
type Writer interface {
	Write(w io.Writer, report WindowReport) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "", "table":
		return &TableWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteText writes generated text to outPath, or to stdout when outPath is
// empty. A trailing newline is added if missing.
func WriteText(text, outPath string, stdout io.Writer) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	if outPath == "" {
		if _, err := io.WriteString(stdout, text); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		return nil
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if _, err := io.WriteString(f, text); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing output: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	return nil
}

// windowRow is the derived view of one window at report time.
type windowRow struct {
	Model       string    `json:"model"`
	WindowStart time.Time `json:"window_start"`
	AgeSeconds  float64   `json:"age_seconds"`
	TokensUsed  int       `json:"tokens_used"`
	Remaining   int       `json:"remaining"`
	Expired     bool      `json:"expired"`
}

func rows(report WindowReport) []windowRow {
	out := make([]windowRow, 0, len(report.Windows))
	for _, w := range report.Windows {
		age := report.Now.Sub(w.Start)
		if age < 0 {
			age = 0
		}
		expired := report.Limits.Window > 0 && age >= report.Limits.Window
		remaining := report.Limits.TPMLimit - w.TokensUsed
		if expired {
			remaining = report.Limits.TPMLimit
		}
		out = append(out, windowRow{
			Model:       w.Model,
			WindowStart: w.Start.UTC(),
			AgeSeconds:  age.Round(time.Second).Seconds(),
			TokensUsed:  w.TokensUsed,
			Remaining:   max(0, remaining),
			Expired:     expired,
		})
	}
	return out
}
