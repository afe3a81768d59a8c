package fingerprint

import (
	"cmp"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"dedup/internal/logging"
)

// Scan fingerprints every regular file under root whose size is below
// opts.MaxSize. The result is sorted by hash, then by path, which is the
// ordering contract the grouping stage relies on.
//
// Files that cannot be read or hashed are left out of the result and
// returned as ScanErrors. Only a failure to walk root itself, or
// cancellation, is returned as an error.
func Scan(ctx context.Context, root string, opts Options, updates chan<- ProgressUpdate) ([]Fingerprint, []ScanError, error) {
	logger := logging.New("fingerprint")

	if opts.Hasher == nil {
		h, err := Resolve(DefaultHash)
		if err != nil {
			return nil, nil, err
		}
		opts.Hasher = h
	}
	if opts.TimeSource == "" {
		opts.TimeSource = TimeModified
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, err
	}
	if !info.IsDir() {
		return nil, nil, &fs.PathError{Op: "scan", Path: root, Err: errors.New("not a directory")}
	}

	var (
		mu      sync.Mutex
		prints  []Fingerprint
		skipped []ScanError
	)

	skip := func(path string, err error) {
		logger.Warn("skipping file", "path", path, "error", err)
		mu.Lock()
		skipped = append(skipped, ScanError{Path: path, Err: err})
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	progress := func(u ProgressUpdate) {
		if updates == nil {
			return
		}
		select {
		case updates <- u:
		case <-gctx.Done():
		}
	}

	err = fs.WalkDir(os.DirFS(root), ".", func(rel string, d fs.DirEntry, walkErr error) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		fullPath := filepath.Join(root, filepath.FromSlash(rel))
		if walkErr != nil {
			if rel == "." {
				return walkErr
			}
			skip(fullPath, walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			skip(fullPath, err)
			return nil
		}
		if opts.MaxSize > 0 && fi.Size() >= opts.MaxSize {
			logger.Debug("over size limit", "path", fullPath, "size", fi.Size())
			return nil
		}

		progress(ProgressUpdate{TotalDelta: 1})
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sum, err := opts.Hasher.Sum(gctx, fullPath)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				skip(fullPath, err)
				progress(ProgressUpdate{ErrorDelta: 1})
				return nil
			}
			fp := Fingerprint{
				Hash:    sum,
				ModTime: opts.TimeSource.timestamp(fullPath, fi),
				Path:    fullPath,
				Size:    fi.Size(),
			}
			mu.Lock()
			prints = append(prints, fp)
			mu.Unlock()
			progress(ProgressUpdate{ProcessedDelta: 1, BytesDelta: fi.Size()})
			return nil
		})
		return nil
	})

	waitErr := g.Wait()
	if err != nil {
		return nil, skipped, err
	}
	if waitErr != nil {
		return nil, skipped, waitErr
	}
	if err := ctx.Err(); err != nil {
		return nil, skipped, err
	}

	slices.SortFunc(prints, compareFingerprints)
	slices.SortFunc(skipped, func(a, b ScanError) int { return cmp.Compare(a.Path, b.Path) })

	logger.Debug("scan complete", "root", root, "files", len(prints), "skipped", len(skipped))
	return prints, skipped, nil
}

func compareFingerprints(a, b Fingerprint) int {
	if c := cmp.Compare(a.Hash, b.Hash); c != 0 {
		return c
	}
	return cmp.Compare(a.Path, b.Path)
}
