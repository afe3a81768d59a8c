package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"dedup/internal/config"
	"dedup/internal/dedup"
	"dedup/internal/fingerprint"
	"dedup/internal/report"
)

const (
	exitOK       = report.ExitOK
	exitFailures = report.ExitFailures
	exitUsage    = 2
)

// exitError carries the process exit status of a failed run. err may be
// nil when everything worth saying has already been printed.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

type app struct {
	opts       config.Options
	configPath string
	stdout     io.Writer
	stderr     io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{opts: config.Defaults(), stdout: stdout, stderr: stderr}

	strategies := make([]string, 0, 4)
	for _, s := range dedup.Strategies() {
		strategies = append(strategies, string(s))
	}

	cmd := &cobra.Command{
		Use:   "dedup -d <directory> [flags]",
		Short: "dedup - find and remove duplicate files by content",
		Long: `dedup hashes every file below a directory, groups files with identical
content and keeps one copy of each group according to --keep.

Without --dry-run or --delete nothing is removed and, unless --verbose is
set, nothing is printed.

Exit codes:
  0  success, no duplicates or every action succeeded
  1  completed, but some files could not be removed (or the run was interrupted)
  2  usage or configuration error, nothing was scanned`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.run,
	}

	f := cmd.Flags()
	f.StringVarP(&a.opts.Directory, "directory", "d", "", "directory to scan (required)")
	f.BoolVarP(&a.opts.Verbose, "verbose", "v", false, "write a per-group transcript")
	f.BoolVar(&a.opts.DryRun, "dry-run", false, "report intended removals without deleting")
	f.BoolVar(&a.opts.Delete, "delete", false, "remove duplicates")
	f.StringVar(&a.opts.Keep, "keep", a.opts.Keep, "copy to keep: "+strings.Join(strategies, "|"))
	f.Int64Var(&a.opts.MaxSize, "max-size", a.opts.MaxSize, "only hash files smaller than this many bytes")
	f.StringVar(&a.opts.Hash, "hash", a.opts.Hash, "digest ("+strings.Join(fingerprint.BuiltinHashes(), "|")+") or a digest command on PATH")
	f.StringVar(&a.opts.LogFile, "log-file", "", "write the transcript to this file instead of stdout")
	f.StringVar(&a.opts.TimeSource, "time-source", a.opts.TimeSource, "timestamp for oldest/newest: mtime|exif")
	f.IntVar(&a.opts.Workers, "workers", 0, "parallel hashing workers (default: number of CPUs)")
	f.BoolVar(&a.opts.Progress, "progress", false, "show hashing progress on stderr")
	f.StringVar(&a.opts.LogLevel, "log-level", a.opts.LogLevel, "debug|info|warn|error")
	f.StringVar(&a.opts.LogFormat, "log-format", a.opts.LogFormat, "text|json")
	f.StringVar(&a.configPath, "config", "", "YAML file with default option values")

	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd
}

// Execute runs the command line and exits with its status.
func Execute() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if exitErr.err != nil {
			fmt.Fprintln(stderr, "error:", exitErr.err)
		}
		return exitErr.code
	}

	// Flag parsing and argument errors from cobra.
	fmt.Fprintln(stderr, "error:", err)
	fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", root.Name())
	return exitUsage
}

func (a *app) run(cmd *cobra.Command, _ []string) error {
	opts := a.opts
	if a.configPath != "" {
		fileOpts, err := config.LoadFile(a.configPath, config.Defaults())
		if err != nil {
			return &exitError{code: exitUsage, err: err}
		}
		opts = overlayFlags(fileOpts, a.opts, cmd.Flags().Changed)
	}

	res, err := a.setup(opts)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}
	return a.dedupe(cmd.Context(), res)
}

// overlayFlags returns file with every explicitly set flag taken from cli.
func overlayFlags(file, cli config.Options, changed func(string) bool) config.Options {
	out := file
	if changed("directory") {
		out.Directory = cli.Directory
	}
	if changed("verbose") {
		out.Verbose = cli.Verbose
	}
	if changed("dry-run") {
		out.DryRun = cli.DryRun
	}
	if changed("delete") {
		out.Delete = cli.Delete
	}
	if changed("keep") {
		out.Keep = cli.Keep
	}
	if changed("max-size") {
		out.MaxSize = cli.MaxSize
	}
	if changed("hash") {
		out.Hash = cli.Hash
	}
	if changed("log-file") {
		out.LogFile = cli.LogFile
	}
	if changed("time-source") {
		out.TimeSource = cli.TimeSource
	}
	if changed("workers") {
		out.Workers = cli.Workers
	}
	if changed("progress") {
		out.Progress = cli.Progress
	}
	if changed("log-level") {
		out.LogLevel = cli.LogLevel
	}
	if changed("log-format") {
		out.LogFormat = cli.LogFormat
	}
	return out
}
