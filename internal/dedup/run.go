package dedup

import (
	"context"
	"iter"

	"dedup/internal/fingerprint"
	"dedup/internal/logging"
)

// Options configures a Run.
type Options struct {
	Strategy Strategy
	Mode     Mode
	// Remove overrides the file removal used in ModeDelete.
	Remove func(path string) error
}

// Summary accumulates the results of one run.
type Summary struct {
	Groups         int
	Failures       int
	Removed        int
	WouldRemove    int
	BytesReclaimed int64
}

// Recorder receives every decision and its outcomes as they are made.
type Recorder interface {
	Record(d Decision, outcomes []Outcome)
}

// Run groups the hash-sorted fingerprints, selects a member to keep in
// each group and applies opts.Mode to the rest. Groups are processed one
// at a time in input order.
//
// Cancellation is checked before each group is acted on. When ctx is done
// Run returns the summary so far together with ctx.Err(); removals that
// already happened stay done.
func Run(ctx context.Context, fps iter.Seq[fingerprint.Fingerprint], opts Options, rec Recorder) (Summary, error) {
	logger := logging.New("dedup")
	exec := Executor{Mode: opts.Mode, Remove: opts.Remove}

	var sum Summary
	for g := range Groups(fps) {
		if err := ctx.Err(); err != nil {
			logger.Warn("run interrupted", "groups", sum.Groups, "error", err)
			return sum, err
		}

		keep := Select(g, opts.Strategy)
		outcomes := exec.Apply(g, keep)
		sum.Groups++
		for _, out := range outcomes {
			switch out.Action {
			case ActionRemoved:
				sum.Removed++
				sum.BytesReclaimed += out.Size
			case ActionWouldRemove:
				sum.WouldRemove++
			case ActionRemoveFailed:
				sum.Failures++
				logger.Warn("remove failed", "path", out.Path, "error", out.Err)
			}
		}
		if rec != nil {
			rec.Record(Decision{Group: g, Keep: keep}, outcomes)
		}
	}
	return sum, nil
}
