package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"dedup/internal/dedup"
	"dedup/internal/fingerprint"
	"dedup/internal/tui"
)

// Exit statuses of a completed run. Configuration errors use a separate
// status chosen by the caller.
const (
	ExitOK       = 0
	ExitFailures = 1
)

// ExitStatus maps a failure count to a process exit status.
func ExitStatus(failures int) int {
	if failures > 0 {
		return ExitFailures
	}
	return ExitOK
}

// Reporter accumulates the transcript of a run. Output is buffered and
// reaches the sink on Close. A disabled reporter still counts groups and
// failures but writes nothing.
type Reporter struct {
	out      *bufio.Writer
	closer   io.Closer
	enabled  bool
	styles   styles
	groups   int
	failures int
	closed   bool
}

// New returns a reporter writing to w.
func New(w io.Writer, enabled bool) *Reporter {
	return &Reporter{
		out:     bufio.NewWriter(w),
		enabled: enabled,
		styles:  newStyles(lipgloss.NewRenderer(w)),
	}
}

// Open returns a reporter writing to the file at path, truncating it, or to
// fallback when path is empty.
func Open(path string, fallback io.Writer, enabled bool) (*Reporter, error) {
	if path == "" {
		return New(fallback, enabled), nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	r := New(file, enabled)
	r.closer = file
	return r, nil
}

// Record implements dedup.Recorder.
func (r *Reporter) Record(d dedup.Decision, outcomes []dedup.Outcome) {
	r.groups++
	for _, out := range outcomes {
		if out.Action == dedup.ActionRemoveFailed {
			r.failures++
		}
	}
	if !r.enabled {
		return
	}

	fmt.Fprintf(r.out, "%s %s (%d files)\n",
		r.styles.header.Render("group"),
		r.styles.hash.Render(d.Group.Hash),
		len(d.Group.Members),
	)
	for _, out := range outcomes {
		label, style := r.label(out.Action)
		line := fmt.Sprintf("  %s  %s", pad(style, label), out.Path)
		if out.Err != nil {
			line += ": " + out.Detail()
		}
		fmt.Fprintln(r.out, line)
	}
	fmt.Fprintln(r.out)
}

// Skipped lists files that were left out of the scan.
func (r *Reporter) Skipped(errs []fingerprint.ScanError) {
	if !r.enabled {
		return
	}
	for _, e := range errs {
		fmt.Fprintf(r.out, "%s  %s: %v\n", pad(r.styles.warn, "skipped"), e.Path, e.Err)
	}
	if len(errs) > 0 {
		fmt.Fprintln(r.out)
	}
}

// Finish writes the closing totals line.
func (r *Reporter) Finish() {
	if !r.enabled {
		return
	}
	failures := fmt.Sprintf("%d", r.failures)
	if r.failures > 0 {
		failures = r.styles.failed.Render(failures)
	}
	fmt.Fprintf(r.out, "groups: %d  failures: %s\n", r.groups, failures)
}

func (r *Reporter) Groups() int   { return r.groups }
func (r *Reporter) Failures() int { return r.failures }

// Close flushes the transcript and closes a file sink. It is safe to call
// more than once.
func (r *Reporter) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.out.Flush()
	if r.closer != nil {
		err = errors.Join(err, r.closer.Close())
	}
	return err
}

func (r *Reporter) label(a dedup.Action) (string, lipgloss.Style) {
	switch a {
	case dedup.ActionKept:
		return "keep", r.styles.kept
	case dedup.ActionWouldRemove:
		return "would remove", r.styles.would
	case dedup.ActionRemoved:
		return "removed", r.styles.removed
	case dedup.ActionRemoveFailed:
		return "failed", r.styles.failed
	default:
		return a.String(), r.styles.would
	}
}

const labelWidth = len("would remove")

// pad renders label and pads it outside the styled span so columns line up
// whether or not the sink understands escape codes.
func pad(style lipgloss.Style, label string) string {
	out := style.Render(label)
	if n := labelWidth - len(label); n > 0 {
		out += strings.Repeat(" ", n)
	}
	return out
}

type styles struct {
	header  lipgloss.Style
	hash    lipgloss.Style
	kept    lipgloss.Style
	would   lipgloss.Style
	removed lipgloss.Style
	failed  lipgloss.Style
	warn    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header:  r.NewStyle().Bold(true).Foreground(tui.ColorAccent),
		hash:    r.NewStyle().Foreground(tui.ColorDim),
		kept:    r.NewStyle().Foreground(tui.ColorSuccess),
		would:   r.NewStyle().Foreground(tui.ColorWarn),
		removed: r.NewStyle().Foreground(tui.ColorAccentAlt),
		failed:  r.NewStyle().Bold(true).Foreground(tui.ColorDanger),
		warn:    r.NewStyle().Foreground(tui.ColorWarn),
	}
}
