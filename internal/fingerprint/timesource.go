package fingerprint

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	exif "github.com/dsoprea/go-exif/v3"

	"dedup/pkg/imgutil"
)

// TimeSource selects where a fingerprint's timestamp comes from.
type TimeSource string

const (
	// TimeModified uses the file's modification time.
	TimeModified TimeSource = "mtime"
	// TimeCaptured uses the EXIF capture time of photos and falls back to
	// the modification time for everything else.
	TimeCaptured TimeSource = "exif"
)

var ErrUnknownTimeSource = errors.New("unknown time source")

func ParseTimeSource(s string) (TimeSource, error) {
	switch TimeSource(strings.ToLower(strings.TrimSpace(s))) {
	case "", TimeModified:
		return TimeModified, nil
	case TimeCaptured:
		return TimeCaptured, nil
	default:
		return "", fmt.Errorf("%w: %q (want mtime or exif)", ErrUnknownTimeSource, s)
	}
}

func (ts TimeSource) timestamp(path string, info fs.FileInfo) int64 {
	if ts == TimeCaptured {
		if captured, ok := captureTime(path); ok {
			return captured.Unix()
		}
	}
	return info.ModTime().Unix()
}

const exifTimeLayout = "2006:01:02 15:04:05"

var captureTags = []string{"DateTimeOriginal", "DateTimeDigitized", "DateTime"}

// captureTime returns the earliest-preference EXIF timestamp of an image.
// Anything unreadable is treated as "no capture time".
func captureTime(path string) (time.Time, bool) {
	file, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer file.Close()

	kind, err := imgutil.SniffReader(file)
	if err != nil || !kind.CarriesExif() {
		return time.Time{}, false
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return time.Time{}, false
	}

	tags, _, err := exif.GetFlatExifDataUniversalSearchWithReadSeeker(file, nil, true)
	if err != nil {
		return time.Time{}, false
	}

	values := make(map[string]string, len(captureTags))
	for _, tag := range tags {
		if s, ok := tag.Value.(string); ok {
			if _, seen := values[tag.TagName]; !seen {
				values[tag.TagName] = strings.TrimRight(s, "\x00 ")
			}
		}
	}

	for _, name := range captureTags {
		raw, ok := values[name]
		if !ok || raw == "" {
			continue
		}
		parsed, err := time.ParseInLocation(exifTimeLayout, raw, time.Local)
		if err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
