package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/diffsum/internal/ratelimit"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleReport() WindowReport {
	return WindowReport{
		Now:    now,
		Limits: ratelimit.Config{TPMLimit: 30000, Reserve: 2000, Window: time.Minute, MaxSleep: 90 * time.Second},
		Source: "file:/tmp/state.json",
		Windows: []ratelimit.Window{
			{Model: "gpt-4o", Start: now.Add(-20 * time.Second), TokensUsed: 12000},
			{Model: "gpt-4o-mini", Start: now.Add(-5 * time.Minute), TokensUsed: 29000},
		},
	}
}

func TestGetWriter(t *testing.T) {
	for _, format := range []string{"", "table", "json"} {
		w, err := GetWriter(format)
		require.NoError(t, err, format)
		assert.NotNil(t, w)
	}

	_, err := GetWriter("sarif")
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestRows(t *testing.T) {
	rs := rows(sampleReport())
	require.Len(t, rs, 2)

	assert.Equal(t, "gpt-4o", rs[0].Model)
	assert.Equal(t, 18000, rs[0].Remaining)
	assert.False(t, rs[0].Expired)
	assert.Equal(t, 20.0, rs[0].AgeSeconds)

	assert.True(t, rs[1].Expired)
	assert.Equal(t, 30000, rs[1].Remaining)
}

func TestRows_OverBudgetClampsRemaining(t *testing.T) {
	report := sampleReport()
	report.Windows = []ratelimit.Window{{Model: "m", Start: now, TokensUsed: 40000}}
	rs := rows(report)
	require.Len(t, rs, 1)
	assert.Equal(t, 0, rs[0].Remaining)
}

func TestTableWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&TableWriter{}).Write(&buf, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "State: file:/tmp/state.json")
	assert.Contains(t, out, "Budget: 30000 tokens per 1m0s")
	assert.Contains(t, out, "gpt-4o-mini")
	assert.Contains(t, out, "expired")
	assert.Contains(t, out, "active")
	assert.Contains(t, out, "2 models")
}

func TestTableWriter_Empty(t *testing.T) {
	report := sampleReport()
	report.Windows = nil

	var buf bytes.Buffer
	require.NoError(t, (&TableWriter{}).Write(&buf, report))
	assert.Contains(t, buf.String(), "No rate limit windows recorded.")
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONWriter{}).Write(&buf, sampleReport()))

	var got jsonReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 30000, got.TPMLimit)
	assert.Equal(t, 60.0, got.WindowSeconds)
	require.Len(t, got.Windows, 2)
	assert.Equal(t, 12000, got.Windows[0].TokensUsed)
}

func TestWriteText_Stdout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText("- one change", "", &buf))
	assert.Equal(t, "- one change\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteText("already\n", "", &buf))
	assert.Equal(t, "already\n", buf.String())
}

func TestWriteText_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.md")

	var buf bytes.Buffer
	require.NoError(t, WriteText("- summary", path, &buf))
	assert.Empty(t, buf.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "- summary\n", string(data))
}

func TestWriteText_BadPath(t *testing.T) {
	err := WriteText("x", filepath.Join(t.TempDir(), "missing", "out.md"), &bytes.Buffer{})
	assert.ErrorContains(t, err, "creating output file")
}

func TestWriteText_FileWriteFailure(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	err := WriteText("- summary", "/dev/full", &bytes.Buffer{})
	assert.ErrorContains(t, err, "writing output")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, os.ErrClosed }

func TestWriteText_StdoutFailure(t *testing.T) {
	err := WriteText("- summary", "", failingWriter{})
	assert.ErrorIs(t, err, os.ErrClosed)
}
