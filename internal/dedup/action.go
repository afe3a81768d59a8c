package dedup

import (
	"os"
)

// Mode controls what happens to the members that are not kept.
type Mode int

const (
	// ModeReport decides but neither removes nor announces removals.
	ModeReport Mode = iota
	// ModeDryRun reports the removals it would make.
	ModeDryRun
	// ModeDelete removes the files.
	ModeDelete
)

func (m Mode) String() string {
	switch m {
	case ModeDryRun:
		return "dry-run"
	case ModeDelete:
		return "delete"
	default:
		return "report-only"
	}
}

// Action is what happened, or would happen, to one group member.
type Action int

const (
	ActionKept Action = iota
	ActionWouldRemove
	ActionRemoved
	ActionRemoveFailed
)

func (a Action) String() string {
	switch a {
	case ActionKept:
		return "kept"
	case ActionWouldRemove:
		return "would_remove"
	case ActionRemoved:
		return "removed"
	case ActionRemoveFailed:
		return "remove_failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of acting on one group member.
type Outcome struct {
	Path   string
	Size   int64
	Action Action
	Err    error
}

// Detail returns the captured error text, or "" when there is none.
func (o Outcome) Detail() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Executor applies a Mode to the members of a group.
type Executor struct {
	Mode Mode
	// Remove deletes a file. Defaults to os.Remove.
	Remove func(path string) error
}

// Apply returns one outcome per member, in member order. A failed removal
// is recorded in its outcome and does not stop the remaining members.
// Nothing is retried.
func (e Executor) Apply(g Group, keep int) []Outcome {
	remove := e.Remove
	if remove == nil {
		remove = os.Remove
	}

	outcomes := make([]Outcome, 0, len(g.Members))
	for i, m := range g.Members {
		out := Outcome{Path: m.Path, Size: m.Size}
		switch {
		case i == keep:
			out.Action = ActionKept
		case e.Mode == ModeDelete:
			if err := remove(m.Path); err != nil {
				out.Action = ActionRemoveFailed
				out.Err = err
			} else {
				out.Action = ActionRemoved
			}
		default:
			out.Action = ActionWouldRemove
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}
