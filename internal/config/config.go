package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultMaxSize is the exclusive upper bound on hashed file size (100 MiB).
const DefaultMaxSize int64 = 100 << 20

// Options is the raw, unvalidated configuration of a run, as assembled
// from a config file and command-line flags.
type Options struct {
	Directory  string `yaml:"directory"`
	Verbose    bool   `yaml:"verbose"`
	DryRun     bool   `yaml:"dry_run"`
	Delete     bool   `yaml:"delete"`
	Keep       string `yaml:"keep"`
	MaxSize    int64  `yaml:"max_size"`
	Hash       string `yaml:"hash"`
	LogFile    string `yaml:"log_file"`
	TimeSource string `yaml:"time_source"`
	Workers    int    `yaml:"workers"`
	Progress   bool   `yaml:"progress"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`
}

func Defaults() Options {
	return Options{
		Keep:       "first",
		MaxSize:    DefaultMaxSize,
		Hash:       "xxhash",
		TimeSource: "mtime",
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// Error is a configuration problem detected before any scanning starts.
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func configErr(field string, err error) error {
	return &Error{Field: field, Err: err}
}

// IsConfigError reports whether err is, or wraps, a configuration Error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// LoadFile reads a YAML config file on top of base. Keys missing from the
// file keep their value from base.
func LoadFile(path string, base Options) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, configErr("config", fmt.Errorf("read config: %w", err))
	}
	return Parse(data, base)
}

// Parse decodes YAML config data on top of base. Unknown keys are rejected.
func Parse(data []byte, base Options) (Options, error) {
	opts := base
	if len(data) == 0 {
		return opts, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil {
		if errors.Is(err, io.EOF) {
			return base, nil
		}
		return base, configErr("config", fmt.Errorf("parse config yaml: %w", err))
	}
	return opts, nil
}
