package output

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONWriter outputs the window report as JSON.
type JSONWriter struct{}

type jsonReport struct {
	Source          string      `json:"source,omitempty"`
	TPMLimit        int         `json:"tpm_limit"`
	Reserve         int         `json:"reserve"`
	WindowSeconds   float64     `json:"window_seconds"`
	MaxSleepSeconds float64     `json:"max_sleep_seconds"`
	Windows         []windowRow `json:"windows"`
}

func (j *JSONWriter) Write(w io.Writer, report WindowReport) error {
	data, err := json.MarshalIndent(jsonReport{
		Source:          report.Source,
		TPMLimit:        report.Limits.TPMLimit,
		Reserve:         report.Limits.Reserve,
		WindowSeconds:   report.Limits.Window.Seconds(),
		MaxSleepSeconds: report.Limits.MaxSleep.Seconds(),
		Windows:         rows(report),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
