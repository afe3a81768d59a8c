package dedup

import (
	"iter"

	"dedup/internal/fingerprint"
)

// Group is a maximal run of fingerprints sharing one hash. Members keep
// the order in which they arrived.
type Group struct {
	Hash    string
	Members []fingerprint.Fingerprint
}

// Groups partitions a hash-sorted fingerprint sequence into duplicate
// groups. A run is emitted when the next differing hash or the end of the
// input closes it, and only if it holds at least two members. The input
// order is trusted, not checked: unsorted input yields fragmented groups.
func Groups(fps iter.Seq[fingerprint.Fingerprint]) iter.Seq[Group] {
	return func(yield func(Group) bool) {
		var (
			current string
			members []fingerprint.Fingerprint
		)
		for fp := range fps {
			if len(members) > 0 && fp.Hash == current {
				members = append(members, fp)
				continue
			}
			if len(members) >= 2 {
				if !yield(Group{Hash: current, Members: members}) {
					return
				}
			}
			current = fp.Hash
			members = []fingerprint.Fingerprint{fp}
		}
		if len(members) >= 2 {
			yield(Group{Hash: current, Members: members})
		}
	}
}
