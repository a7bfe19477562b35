package checklist

import (
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/canonicalize"
)

const (
	// IDLength is the default id length in hex characters.
	IDLength = 8
	// idStep is how much a colliding id grows per round.
	idStep = 4
	// maxIDLength is the full SHA-256 hex length.
	maxIDLength = 64
)

// idDigest is the full digest an id is a prefix of.
func idDigest(ptr, text string) string {
	return canonicalize.Digest([]byte(ptr + "\x1f" + text))
}

// SynthesizeID returns the 8-character id of (ptr, text).
func SynthesizeID(ptr, text string) string {
	return idDigest(ptr, text)[:IDLength]
}

type idKey struct {
	ptr  string
	text string
}

// AssignIDs sets every item's id. Distinct (ptr, text) pairs whose ids
// would collide grow together (12, 16, ... 64 characters) until unique.
// The result depends only on the set of pairs, not on item order.
func AssignIDs(items []Item) []Item {
	return assignIDs(items, idDigest)
}

func assignIDs(items []Item, digest func(ptr, text string) string) []Item {
	digests := make(map[idKey]string)
	for _, it := range items {
		k := idKey{it.Ptr, it.Text}
		if _, ok := digests[k]; !ok {
			digests[k] = digest(it.Ptr, it.Text)
		}
	}

	length := make(map[idKey]int, len(digests))
	for k := range digests {
		length[k] = IDLength
	}

	for {
		groups := make(map[string][]idKey)
		for k, d := range digests {
			prefix := d[:length[k]]
			groups[prefix] = append(groups[prefix], k)
		}
		grew := false
		for _, keys := range groups {
			if len(keys) < 2 {
				continue
			}
			for _, k := range keys {
				if length[k] < maxIDLength {
					length[k] += idStep
					grew = true
				}
			}
		}
		if !grew {
			break
		}
	}

	out := make([]Item, len(items))
	for i, it := range items {
		k := idKey{it.Ptr, it.Text}
		it.ID = digests[k][:length[k]]
		out[i] = it
	}
	return out
}
