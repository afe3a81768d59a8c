package imgutil

import (
	"bytes"
	"errors"
	"io"
)

// Kind identifies an image container that may carry EXIF data.
type Kind int

const (
	KindUnknown Kind = iota
	KindJPEG
	KindPNG
	KindTIFF
)

func (k Kind) String() string {
	switch k {
	case KindJPEG:
		return "jpeg"
	case KindPNG:
		return "png"
	case KindTIFF:
		return "tiff"
	default:
		return "unknown"
	}
}

// CarriesExif reports whether the container format can embed an EXIF block.
func (k Kind) CarriesExif() bool {
	return k != KindUnknown
}

const headerLen = 8

var (
	pngSig    = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	jpegSig   = []byte{0xff, 0xd8, 0xff}
	tiffSigLE = []byte{0x49, 0x49, 0x2a, 0x00}
	tiffSigBE = []byte{0x4d, 0x4d, 0x00, 0x2a}
)

// DetectHeader matches the leading bytes of a file against known signatures.
// Headers shorter than a signature never match it.
func DetectHeader(header []byte) Kind {
	switch {
	case bytes.HasPrefix(header, jpegSig):
		return KindJPEG
	case bytes.HasPrefix(header, pngSig):
		return KindPNG
	case bytes.HasPrefix(header, tiffSigLE), bytes.HasPrefix(header, tiffSigBE):
		return KindTIFF
	default:
		return KindUnknown
	}
}

// SniffReader reads up to 8 bytes from r and determines its type. Short
// inputs are reported as KindUnknown rather than as an error.
func SniffReader(r io.Reader) (Kind, error) {
	header := make([]byte, headerLen)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return KindUnknown, err
	}
	return DetectHeader(header[:n]), nil
}
