package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"

	tea "github.com/charmbracelet/bubbletea"

	"dedup/internal/config"
	"dedup/internal/dedup"
	"dedup/internal/fingerprint"
	"dedup/internal/logging"
	"dedup/internal/report"
	"dedup/internal/tui"
)

// removeFile deletes a duplicate in delete mode.
var removeFile = os.Remove

// setup configures logging and validates opts. No file is touched beyond
// the checks on the target directory.
func (a *app) setup(opts config.Options) (config.Resolved, error) {
	level, err := logging.ParseLevel(opts.LogLevel)
	if err != nil {
		return config.Resolved{}, err
	}
	format, err := logging.ParseFormat(opts.LogFormat)
	if err != nil {
		return config.Resolved{}, err
	}
	logging.Init(level, format, a.stderr)

	return opts.Validate()
}

func (a *app) dedupe(ctx context.Context, res config.Resolved) error {
	logger := logging.New("cmd")

	transcript := res.Verbose || res.Mode == dedup.ModeDryRun
	rep, err := report.Open(res.LogFile, a.stdout, transcript)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}
	defer rep.Close()

	logger.Debug("starting run",
		"directory", res.Directory,
		"mode", res.Mode.String(),
		"keep", string(res.Strategy),
		"hash", res.Hasher.Name(),
	)

	fps, skipped, err := a.scan(ctx, res)
	if err != nil {
		return &exitError{code: exitFailures, err: fmt.Errorf("scan %s: %w", res.Directory, err)}
	}
	rep.Skipped(skipped)

	sum, runErr := dedup.Run(ctx, slices.Values(fps), dedup.Options{
		Strategy: res.Strategy,
		Mode:     res.Mode,
		Remove:   removeFile,
	}, rep)
	rep.Finish()
	if err := rep.Close(); err != nil {
		logger.Error("writing transcript failed", "error", err)
	}

	if res.Verbose {
		fmt.Fprintln(a.stdout, tui.RenderSummary("dedup", summaryRows(res, len(fps), len(skipped), sum)))
	}

	if runErr != nil {
		return &exitError{code: exitFailures, err: fmt.Errorf("interrupted after %d groups: %w", sum.Groups, runErr)}
	}
	if sum.Failures > 0 {
		logger.Warn("completed with errors", "failures", sum.Failures)
		return &exitError{code: report.ExitStatus(sum.Failures)}
	}
	return nil
}

func (a *app) scan(ctx context.Context, res config.Resolved) ([]fingerprint.Fingerprint, []fingerprint.ScanError, error) {
	opts := fingerprint.Options{
		MaxSize:    res.MaxSize,
		Hasher:     res.Hasher,
		TimeSource: res.TimeSource,
		Workers:    res.Workers,
	}
	if !res.Progress {
		return fingerprint.Scan(ctx, res.Directory, opts, nil)
	}

	updates := make(chan fingerprint.ProgressUpdate, 64)
	program := tea.NewProgram(tui.NewModel(updates),
		tea.WithInput(nil),
		tea.WithOutput(a.stderr),
		tea.WithContext(ctx),
	)

	uiDone := make(chan struct{})
	go func() {
		defer close(uiDone)
		if _, err := program.Run(); err != nil {
			logging.New("cmd").Warn("progress display stopped", "error", err)
		}
		// Keep the scan from blocking on a display that is gone.
		for range updates {
		}
	}()

	fps, skipped, err := fingerprint.Scan(ctx, res.Directory, opts, updates)
	close(updates)
	<-uiDone
	return fps, skipped, err
}

func summaryRows(res config.Resolved, hashed, skipped int, sum dedup.Summary) []tui.SummaryRow {
	rows := []tui.SummaryRow{
		{Label: "Files hashed", Value: fmt.Sprintf("%d", hashed)},
		{Label: "Files skipped", Value: fmt.Sprintf("%d", skipped), Alert: skipped > 0},
		{Label: "Duplicate groups", Value: fmt.Sprintf("%d", sum.Groups)},
	}
	switch res.Mode {
	case dedup.ModeDelete:
		rows = append(rows,
			tui.SummaryRow{Label: "Files removed", Value: fmt.Sprintf("%d", sum.Removed)},
			tui.SummaryRow{Label: "Space reclaimed (bytes)", Value: fmt.Sprintf("%d", sum.BytesReclaimed)},
		)
	default:
		rows = append(rows, tui.SummaryRow{Label: "Removable files", Value: fmt.Sprintf("%d", sum.WouldRemove)})
	}
	rows = append(rows, tui.SummaryRow{Label: "Failures", Value: fmt.Sprintf("%d", sum.Failures), Alert: sum.Failures > 0})
	return rows
}
