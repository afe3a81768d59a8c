package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"dedup/internal/dedup"
	"dedup/internal/fingerprint"
)

// Resolved is a validated configuration, ready to drive a run.
type Resolved struct {
	Directory  string
	Strategy   dedup.Strategy
	Mode       dedup.Mode
	MaxSize    int64
	Hasher     fingerprint.Hasher
	TimeSource fingerprint.TimeSource
	Workers    int
	Verbose    bool
	Progress   bool
	LogFile    string
}

var resolveHasher = fingerprint.Resolve

// Validate checks the options in a fixed order and stops at the first
// problem: conflicting modes, keep strategy, numeric limits, directory
// presence, existence, protection and readability, then the hash. Nothing
// is scanned or hashed here.
func (o Options) Validate() (Resolved, error) {
	var res Resolved

	if o.DryRun && o.Delete {
		return res, configErr("mode", errors.New("--dry-run and --delete are mutually exclusive"))
	}
	switch {
	case o.Delete:
		res.Mode = dedup.ModeDelete
	case o.DryRun:
		res.Mode = dedup.ModeDryRun
	default:
		res.Mode = dedup.ModeReport
	}

	strategy, err := dedup.ParseStrategy(o.Keep)
	if err != nil {
		return res, configErr("keep", err)
	}
	res.Strategy = strategy

	if o.MaxSize <= 0 {
		return res, configErr("max-size", fmt.Errorf("must be positive, got %d", o.MaxSize))
	}
	res.MaxSize = o.MaxSize

	ts, err := fingerprint.ParseTimeSource(o.TimeSource)
	if err != nil {
		return res, configErr("time-source", err)
	}
	res.TimeSource = ts

	if o.Workers < 0 {
		return res, configErr("workers", fmt.Errorf("must not be negative, got %d", o.Workers))
	}
	res.Workers = o.Workers
	if res.Workers == 0 {
		res.Workers = runtime.NumCPU()
	}

	dir, err := checkDirectory(o.Directory)
	if err != nil {
		return res, err
	}
	res.Directory = dir

	hasher, err := resolveHasher(o.Hash)
	if err != nil {
		return res, configErr("hash", err)
	}
	res.Hasher = hasher

	res.Verbose = o.Verbose
	res.Progress = o.Progress
	res.LogFile = o.LogFile
	return res, nil
}

func checkDirectory(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", configErr("directory", errors.New("required (use -d or --directory)"))
	}

	info, err := os.Stat(dir)
	if err != nil {
		return "", configErr("directory", err)
	}
	if !info.IsDir() {
		return "", configErr("directory", fmt.Errorf("%s is not a directory", dir))
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", configErr("directory", err)
	}
	if IsProtected(abs) {
		return "", configErr("directory", fmt.Errorf("refusing to operate on protected path %s", abs))
	}
	// The scan follows a symlinked root, so the target must pass too.
	target, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", configErr("directory", err)
	}
	if IsProtected(target) {
		return "", configErr("directory", fmt.Errorf("refusing to operate on protected path %s (via %s)", target, abs))
	}

	if err := checkReadable(dir); err != nil {
		return "", configErr("directory", err)
	}
	return filepath.Clean(dir), nil
}

func checkReadable(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s is not readable: %w", dir, err)
	}
	return nil
}
