package fingerprint

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DefaultHash is the fastest digest available in-process.
const DefaultHash = "xxhash"

var ErrUnknownHash = errors.New("hash algorithm not available")

// Hasher maps the bytes of a file to a fixed-format digest string.
type Hasher interface {
	Name() string
	Sum(ctx context.Context, path string) (string, error)
}

var builtinHashes = map[string]func() hash.Hash{
	"xxhash": func() hash.Hash { return xxhash.New() },
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

var hashAliases = map[string]string{
	"xxh64":     "xxhash",
	"xxhsum":    "xxhash",
	"xxh64sum":  "xxhash",
	"md5sum":    "md5",
	"sha1sum":   "sha1",
	"sha256sum": "sha256",
	"sha512sum": "sha512",
}

var lookPath = exec.LookPath

// Resolve returns the hasher named by name. Built-in algorithms and the
// names of the usual digest utilities are computed in-process; any other
// name must be an executable on PATH that prints the digest as the first
// field of its output.
func Resolve(name string) (Hasher, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultHash
	}
	if canonical, ok := hashAliases[key]; ok {
		key = canonical
	}
	if newHash, ok := builtinHashes[key]; ok {
		return digestHasher{name: key, newHash: newHash}, nil
	}

	path, err := lookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHash, name)
	}
	return commandHasher{name: name, path: path}, nil
}

// BuiltinHashes lists the in-process algorithm names.
func BuiltinHashes() []string {
	names := make([]string, 0, len(builtinHashes))
	for name := range builtinHashes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type digestHasher struct {
	name    string
	newHash func() hash.Hash
}

func (h digestHasher) Name() string { return h.name }

func (h digestHasher) Sum(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := h.newHash()
	if _, err := io.Copy(hasher, contextReader{ctx: ctx, r: file}); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

type commandHasher struct {
	name string
	path string
}

func (h commandHasher) Name() string { return h.name }

func (h commandHasher) Sum(ctx context.Context, path string) (string, error) {
	out, err := exec.CommandContext(ctx, h.path, path).Output()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", h.name, path, err)
	}
	digest := parseDigest(string(out))
	if digest == "" {
		return "", fmt.Errorf("%s %s: empty digest", h.name, path)
	}
	return digest, nil
}

// parseDigest accepts both "<digest>  <file>" and "ALG (<file>) = <digest>".
func parseDigest(out string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	if idx := strings.LastIndex(line, " = "); idx >= 0 {
		return strings.ToLower(strings.TrimSpace(line[idx+3:]))
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(fields[0], "\\"))
}

// contextReader stops a long copy once the scan is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
