// Package harvest runs the keyword passes over the portal and keeps the
// per-keyword and combined tender snapshots de-duplicated across runs.
package harvest

import (
	"eprocure-backend/internal/tender"
)

// MergeUnique appends incoming to existing keeping only the first record
// of every key. Records without a key are dropped.
func MergeUnique(existing, incoming []tender.Tender) []tender.Tender {
	out := make([]tender.Tender, 0, len(existing)+len(incoming))
	seen := map[string]struct{}{}
	for _, list := range [][]tender.Tender{existing, incoming} {
		for _, t := range list {
			key := t.Key()
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
