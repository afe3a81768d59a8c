package fingerprint

// Fingerprint is the content-equality key and metadata of one file.
type Fingerprint struct {
	Hash    string
	ModTime int64
	Path    string
	Size    int64
}

// ScanError records a file that was left out of the fingerprint stream.
type ScanError struct {
	Path string
	Err  error
}

func (e ScanError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e ScanError) Unwrap() error {
	return e.Err
}

type Options struct {
	// MaxSize is an exclusive upper bound on file size. Zero or less disables it.
	MaxSize    int64
	Hasher     Hasher
	TimeSource TimeSource
	Workers    int
}

type ProgressUpdate struct {
	TotalDelta     int
	ProcessedDelta int
	ErrorDelta     int
	BytesDelta     int64
}
