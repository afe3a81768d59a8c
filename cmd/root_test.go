package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"dedup/internal/config"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

type fixture struct {
	dir     string
	a, b, c string
}

// newFixture lays out a and b with identical content and c with unique
// content. b's mtime is later than a's unless sameTime is set.
func newFixture(t *testing.T, sameTime bool) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir: dir,
		a:   filepath.Join(dir, "a"),
		b:   filepath.Join(dir, "b"),
		c:   filepath.Join(dir, "c"),
	}
	write := func(path, content string, mtime time.Time) {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("chtimes %s: %v", path, err)
		}
	}
	older := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)
	if sameTime {
		newer = older
	}
	write(f.a, "same", older)
	write(f.b, "same", newer)
	write(f.c, "other", older)
	return f
}

func exists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("stat %s: %v", path, err)
	}
	return err == nil
}

func hasLine(out, label, path string) bool {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if strings.HasPrefix(strings.TrimSpace(line), label) && len(fields) > 0 && fields[len(fields)-1] == path {
			return true
		}
	}
	return false
}

// recordingHasher writes a digest command that logs every file it hashes
// to marker and prints the file's content as its digest.
func recordingHasher(t *testing.T) (script, marker string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script hasher")
	}
	dir := t.TempDir()
	marker = filepath.Join(dir, "invocations")
	script = filepath.Join(dir, "digest")
	body := "#!/bin/sh\necho \"$1\" >> '" + marker + "'\nprintf '%s  %s\\n' \"$(cat \"$1\")\" \"$1\"\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return script, marker
}

func TestKeepFirstDelete(t *testing.T) {
	f := newFixture(t, false)

	code, stdout, stderr := runCLI(t, "-d", f.dir, "--keep", "first", "--delete")
	if code != exitOK {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if stdout != "" {
		t.Fatalf("non-verbose delete printed %q", stdout)
	}
	if !exists(t, f.a) || exists(t, f.b) || !exists(t, f.c) {
		t.Fatalf("expected only b removed: a=%v b=%v c=%v", exists(t, f.a), exists(t, f.b), exists(t, f.c))
	}
}

func TestRemovalFailuresExitOne(t *testing.T) {
	f := newFixture(t, false)

	orig := removeFile
	removeFile = func(path string) error {
		if path == f.b {
			return &os.PathError{Op: "remove", Path: path, Err: errors.New("operation not permitted")}
		}
		return orig(path)
	}
	t.Cleanup(func() { removeFile = orig })

	code, stdout, stderr := runCLI(t, "-d", f.dir, "--delete")
	if code != exitFailures {
		t.Fatalf("exit %d, want %d; stderr: %s", code, exitFailures, stderr)
	}
	if stdout != "" {
		t.Fatalf("non-verbose delete printed %q", stdout)
	}
	if !strings.Contains(stderr, "remove failed") || !strings.Contains(stderr, f.b) || !strings.Contains(stderr, "operation not permitted") {
		t.Fatalf("failure not reported on stderr:\n%s", stderr)
	}
	if !exists(t, f.b) {
		t.Fatal("b should still exist")
	}

	code, stdout, _ = runCLI(t, "-d", f.dir, "--delete", "-v")
	if code != exitFailures {
		t.Fatalf("verbose exit %d, want %d", code, exitFailures)
	}
	if !strings.Contains(stdout, "failed") || !strings.Contains(stdout, f.b+":") {
		t.Fatalf("transcript missing the failed removal:\n%s", stdout)
	}
}

func TestSymlinkToProtectedDirectoryIsRejected(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no /etc on windows")
	}
	link := filepath.Join(t.TempDir(), "etc-link")
	if err := os.Symlink("/etc", link); err != nil {
		t.Skipf("symlink: %v", err)
	}

	code, stdout, stderr := runCLI(t, "-d", link, "--dry-run")
	if code != exitUsage {
		t.Fatalf("exit %d, want %d; stderr: %s", code, exitUsage, stderr)
	}
	if stdout != "" {
		t.Fatalf("scanned a protected directory:\n%s", stdout)
	}
	if !strings.Contains(stderr, "protected path") {
		t.Fatalf("stderr: %s", stderr)
	}
}

func TestProgressWithoutTerminal(t *testing.T) {
	dir := t.TempDir()
	for i := range 300 {
		name := filepath.Join(dir, fmt.Sprintf("f%03d", i))
		if err := os.WriteFile(name, []byte(fmt.Sprint(i/2)), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("open %s: %v", os.DevNull, err)
	}
	defer devNull.Close()
	origStdin := os.Stdin
	os.Stdin = devNull
	t.Cleanup(func() { os.Stdin = origStdin })

	type result struct {
		code   int
		stdout string
	}
	done := make(chan result, 1)
	go func() {
		var stdout, stderr bytes.Buffer
		code := execute(context.Background(), []string{"-d", dir, "--progress", "--dry-run", "--workers", "4"}, &stdout, &stderr)
		done <- result{code, stdout.String()}
	}()

	select {
	case r := <-done:
		if r.code != exitOK {
			t.Fatalf("exit %d", r.code)
		}
		if got := strings.Count(r.stdout, "would remove"); got != 150 {
			t.Fatalf("would remove lines = %d, want 150", got)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("run with --progress did not finish")
	}
}

func TestKeepNewestDryRun(t *testing.T) {
	f := newFixture(t, false)

	code, stdout, stderr := runCLI(t, "-d", f.dir, "--keep", "newest", "--dry-run")
	if code != exitOK {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if !hasLine(stdout, "would remove", f.a) {
		t.Fatalf("expected would-remove line for a in:\n%s", stdout)
	}
	if !hasLine(stdout, "keep", f.b) {
		t.Fatalf("expected keep line for b in:\n%s", stdout)
	}
	if strings.Contains(stdout, f.c) {
		t.Fatalf("unique file reported:\n%s", stdout)
	}
	for _, p := range []string{f.a, f.b, f.c} {
		if !exists(t, p) {
			t.Fatalf("dry run removed %s", p)
		}
	}
}

func TestKeepOldestTieKeepsFirstEncountered(t *testing.T) {
	f := newFixture(t, true)

	code, _, stderr := runCLI(t, "-d", f.dir, "--keep", "oldest", "--delete")
	if code != exitOK {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if !exists(t, f.a) || exists(t, f.b) {
		t.Fatalf("expected a kept and b removed: a=%v b=%v", exists(t, f.a), exists(t, f.b))
	}
}

func TestInvalidKeepFailsBeforeScanning(t *testing.T) {
	f := newFixture(t, false)
	script, marker := recordingHasher(t)

	code, stdout, stderr := runCLI(t, "-d", f.dir, "--keep", "bogus", "--hash", script, "--delete")
	if code != exitUsage {
		t.Fatalf("exit %d, want %d", code, exitUsage)
	}
	if !strings.Contains(stderr, "keep") {
		t.Fatalf("expected a keep error, got %q", stderr)
	}
	if stdout != "" {
		t.Fatalf("unexpected output %q", stdout)
	}
	if exists(t, marker) {
		t.Fatal("hash command was invoked")
	}
	for _, p := range []string{f.a, f.b, f.c} {
		if !exists(t, p) {
			t.Fatalf("%s removed after a configuration error", p)
		}
	}
}

func TestExternalHashCommandIsUsed(t *testing.T) {
	f := newFixture(t, false)
	script, marker := recordingHasher(t)

	code, _, stderr := runCLI(t, "-d", f.dir, "--hash", script, "--keep", "last", "--delete")
	if code != exitOK {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("hash command never ran: %v", err)
	}
	if got := len(strings.Fields(string(data))); got != 3 {
		t.Fatalf("hash command ran %d times, want 3", got)
	}
	if exists(t, f.a) || !exists(t, f.b) {
		t.Fatalf("expected a removed and b kept: a=%v b=%v", exists(t, f.a), exists(t, f.b))
	}
}

func TestHelpDoesNotScan(t *testing.T) {
	f := newFixture(t, false)
	script, marker := recordingHasher(t)

	code, stdout, _ := runCLI(t, "-h", "-d", f.dir, "--hash", script, "--delete")
	if code != exitOK {
		t.Fatalf("exit %d, want 0", code)
	}
	if !strings.Contains(stdout, "Usage:") || !strings.Contains(stdout, "Exit codes") {
		t.Fatalf("help output missing usage:\n%s", stdout)
	}
	if exists(t, marker) || !exists(t, f.b) {
		t.Fatal("help performed a scan")
	}
}

func TestUsageErrors(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"conflicting modes", []string{"-d", f.dir, "--dry-run", "--delete"}, "mutually exclusive"},
		{"missing directory", []string{"--dry-run"}, "directory"},
		{"nonexistent directory", []string{"-d", filepath.Join(f.dir, "nope")}, "directory"},
		{"protected directory", []string{"-d", "/"}, "protected"},
		{"unknown hash", []string{"-d", f.dir, "--hash", "no-such-digest-tool"}, "hash"},
		{"unknown flag", []string{"-d", f.dir, "--frobnicate"}, "unknown flag"},
		{"positional argument", []string{"-d", f.dir, "extra"}, "unknown command"},
		{"bad log level", []string{"-d", f.dir, "--log-level", "loud"}, "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			if code != exitUsage {
				t.Fatalf("exit %d, want %d (stderr %q)", code, exitUsage, stderr)
			}
			if !strings.Contains(stderr, tt.want) {
				t.Fatalf("stderr %q does not mention %q", stderr, tt.want)
			}
		})
	}
	for _, p := range []string{f.a, f.b, f.c} {
		if !exists(t, p) {
			t.Fatalf("%s removed by a failed invocation", p)
		}
	}
}

func TestEmptyAndUniqueDirectories(t *testing.T) {
	empty := t.TempDir()
	code, stdout, _ := runCLI(t, "-d", empty, "--delete", "-v")
	if code != exitOK {
		t.Fatalf("empty dir exit %d", code)
	}
	if !strings.Contains(stdout, "groups: 0  failures: 0") {
		t.Fatalf("unexpected transcript:\n%s", stdout)
	}

	unique := t.TempDir()
	for i, content := range []string{"one", "two", "three"} {
		if err := os.WriteFile(filepath.Join(unique, string(rune('a'+i))), []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	code, _, _ = runCLI(t, "-d", unique, "--delete")
	if code != exitOK {
		t.Fatalf("unique dir exit %d", code)
	}
}

func TestDryRunIsRepeatable(t *testing.T) {
	f := newFixture(t, false)

	_, first, _ := runCLI(t, "-d", f.dir, "--dry-run", "--keep", "oldest")
	_, second, _ := runCLI(t, "-d", f.dir, "--dry-run", "--keep", "oldest")
	if first == "" || first != second {
		t.Fatalf("dry-run transcripts differ:\n%s\n---\n%s", first, second)
	}
	for _, p := range []string{f.a, f.b, f.c} {
		if !exists(t, p) {
			t.Fatalf("dry run removed %s", p)
		}
	}
}

func TestReportOnlyModes(t *testing.T) {
	f := newFixture(t, false)

	code, stdout, _ := runCLI(t, "-d", f.dir)
	if code != exitOK || stdout != "" {
		t.Fatalf("quiet report-only: exit %d output %q", code, stdout)
	}

	code, stdout, _ = runCLI(t, "-d", f.dir, "-v")
	if code != exitOK {
		t.Fatalf("verbose report-only exit %d", code)
	}
	if !hasLine(stdout, "would remove", f.b) || !strings.Contains(stdout, "Duplicate groups") {
		t.Fatalf("verbose report-only output:\n%s", stdout)
	}
	if !exists(t, f.b) {
		t.Fatal("report-only removed a file")
	}
}

func TestLogFileReceivesTranscript(t *testing.T) {
	f := newFixture(t, false)
	logPath := filepath.Join(t.TempDir(), "dedup.log")

	code, stdout, stderr := runCLI(t, "-d", f.dir, "-v", "--delete", "--log-file", logPath)
	if code != exitOK {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !hasLine(string(data), "removed", f.b) || !hasLine(string(data), "keep", f.a) {
		t.Fatalf("log file transcript:\n%s", data)
	}
	if hasLine(stdout, "removed", f.b) {
		t.Fatalf("transcript leaked to stdout:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Files removed") {
		t.Fatalf("missing summary table:\n%s", stdout)
	}
}

func TestConfigFileWithFlagOverride(t *testing.T) {
	f := newFixture(t, false)
	cfg := filepath.Join(t.TempDir(), "dedup.yaml")
	body := "directory: " + f.dir + "\nkeep: last\ndelete: true\n"
	if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	code, _, stderr := runCLI(t, "--config", cfg, "--keep", "first")
	if code != exitOK {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if !exists(t, f.a) || exists(t, f.b) {
		t.Fatalf("flag did not override config keep: a=%v b=%v", exists(t, f.a), exists(t, f.b))
	}
}

func TestConfigFileErrors(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(cfg, []byte("keep: [first\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	code, _, stderr := runCLI(t, "--config", cfg)
	if code != exitUsage || !strings.Contains(stderr, "config") {
		t.Fatalf("exit %d stderr %q", code, stderr)
	}
}

func TestOverlayFlags(t *testing.T) {
	file := config.Defaults()
	file.Keep = "last"
	file.Verbose = true
	cli := config.Defaults()
	cli.Keep = "newest"

	changed := map[string]bool{"keep": true}
	got := overlayFlags(file, cli, func(name string) bool { return changed[name] })
	if got.Keep != "newest" || !got.Verbose {
		t.Fatalf("overlay = %+v", got)
	}
}
