package dedup

import (
	"errors"
	"fmt"
	"strings"
)

// Strategy picks the member of a duplicate group that survives.
type Strategy string

const (
	KeepFirst  Strategy = "first"
	KeepLast   Strategy = "last"
	KeepOldest Strategy = "oldest"
	KeepNewest Strategy = "newest"
)

// ErrUnknownStrategy is wrapped by ParseStrategy for names it does not know.
var ErrUnknownStrategy = errors.New("unknown keep strategy")

// Strategies lists the keep strategies in the order they are documented.
func Strategies() []Strategy {
	return []Strategy{KeepFirst, KeepLast, KeepOldest, KeepNewest}
}

// ParseStrategy maps a case-insensitive name to its Strategy.
func ParseStrategy(s string) (Strategy, error) {
	want := Strategy(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range Strategies() {
		if st == want {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want first, last, oldest or newest)", ErrUnknownStrategy, s)
}

// Decision records which member of a group is kept.
type Decision struct {
	Group Group
	Keep  int
}

// Select returns the index of the member to keep. Ties on modification
// time go to the lowest index. An unrecognised strategy keeps the first
// member. Groups must have at least one member.
func Select(g Group, s Strategy) int {
	members := g.Members
	switch s {
	case KeepLast:
		return len(members) - 1
	case KeepOldest:
		keep := 0
		for i := 1; i < len(members); i++ {
			if members[i].ModTime < members[keep].ModTime {
				keep = i
			}
		}
		return keep
	case KeepNewest:
		keep := 0
		for i := 1; i < len(members); i++ {
			if members[i].ModTime > members[keep].ModTime {
				keep = i
			}
		}
		return keep
	default:
		return 0
	}
}
