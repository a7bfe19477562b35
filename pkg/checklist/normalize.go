package checklist

import (
	"sort"
	"strings"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/canonicalize"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/conform"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/pointer"
)

// Dedupe drops items whose (ptr, text, value) triple equals an earlier
// item's. The first occurrence is kept.
func Dedupe(items []Item) []Item {
	seen := make(map[string]bool, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		val, err := canonicalize.JCSString(it.Value)
		if err != nil {
			val = unhashableValue
		}
		key := it.Ptr + "\x1f" + it.Text + "\x1f" + val
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}

const unhashableValue = "\x00unhashable"

// Collapse merges prose variants at the same pointer: when one text is a
// prefix of another, the longer text survives in the position of the first
// variant seen.
func Collapse(items []Item) []Item {
	out := make([]Item, 0, len(items))
	byPtr := make(map[string][]int)
	for _, it := range items {
		merged := false
		for _, idx := range byPtr[it.Ptr] {
			kept := out[idx]
			switch {
			case strings.HasPrefix(kept.Text, it.Text):
				out[idx] = kept.WithEvidence(EvidenceCollapsed, appendVariant(kept, it.Text))
				merged = true
			case strings.HasPrefix(it.Text, kept.Text):
				longer := it.WithEvidence(EvidenceCollapsed, appendVariant(kept, kept.Text))
				out[idx] = longer
				merged = true
			}
			if merged {
				break
			}
		}
		if merged {
			continue
		}
		byPtr[it.Ptr] = append(byPtr[it.Ptr], len(out))
		out = append(out, it)
	}
	return out
}

func appendVariant(it Item, text string) []string {
	prev, _ := it.Evidence[EvidenceCollapsed].([]string)
	out := append([]string(nil), prev...)
	for _, p := range out {
		if p == text {
			return out
		}
	}
	out = append(out, text)
	sort.Strings(out)
	return out
}

// Less is the canonical order: order rank, then id, then text.
func Less(a, b Item) bool {
	if c := CompareRank(a.OrderRank, b.OrderRank); c != 0 {
		return c < 0
	}
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	return a.Text < b.Text
}

// CanonicalSort orders items canonically and merges any residual
// (ptr, id) duplicate, keeping the first in canonical order.
func CanonicalSort(items []Item) []Item {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return Less(sorted[i], sorted[j]) })

	seen := make(map[string]bool, len(sorted))
	out := sorted[:0]
	for _, it := range sorted {
		k := it.Ptr + "\x1f" + it.ID
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, it)
	}
	return out
}

// DeterministicSort is a stable sort by (ptr, id).
func DeterministicSort(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Ptr != out[j].Ptr {
			return out[i].Ptr < out[j].Ptr
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Canonicalize runs dedupe, collapse, id assignment, annotation and the
// canonical sort.
func Canonicalize(items []Item, policy SeverityPolicy) []Item {
	items = Dedupe(items)
	items = Collapse(items)
	items = AssignIDs(items)
	items = Annotate(items, policy)
	return CanonicalSort(items)
}

// NormalizeItem fills defaults and canonicalizes the pointer pair. An item
// with neither ptr nor spec_pointer, or with a malformed one, is recorded
// on cc as a model validation error and returned INVALID. It never fails.
func NormalizeItem(cc *conform.Context, it Item) Item {
	it = it.Clone()
	if it.TestRefs == nil {
		it.TestRefs = []string{}
	}
	if it.Meta.Source == "" {
		it.Meta.Source = SourceExplicit
	}
	if it.Meta.InferenceType == "" {
		it.Meta.InferenceType = InferenceNone
	}
	if it.QualityStatus == "" {
		it.QualityStatus = QualityValid
	}

	raw := it.Ptr
	if raw == "" {
		raw = it.SpecPointer
	}
	if raw == "" {
		return invalidate(cc, it, conform.ErrMissingSpecPointer.Code)
	}
	canon, err := pointer.Canonical(raw)
	if err != nil {
		return invalidate(cc, it, conform.ErrInvalidSpecPointer.Code)
	}
	it.Ptr = canon
	it.SpecPointer = canon
	return it
}

func invalidate(cc *conform.Context, it Item, code string) Item {
	it.QualityStatus = QualityInvalid
	it = it.WithEvidence(EvidenceDisabled, true)
	if cc != nil {
		cc.Record(conform.Event{
			GateID:  conform.GateChecklistModel,
			Phase:   conform.PhaseNormalize,
			Outcome: conform.OutcomeDiagnostic,
			Code:    code,
			Message: code,
			Evidence: map[string]any{
				"item_id": it.ID,
				"text":    it.Text,
			},
		})
	}
	return it
}

// EnforceSpecPointer is the strict form of NormalizeItem for callers that
// must not continue with an unaddressed item.
func EnforceSpecPointer(it Item) error {
	if it.Ptr == "" && it.SpecPointer == "" {
		return &InvariantError{Invariant: "spec_pointer", Code: conform.ErrMissingSpecPointer.Code, IDs: []string{it.ID}}
	}
	raw := it.Ptr
	if raw == "" {
		raw = it.SpecPointer
	}
	if _, err := pointer.Canonical(raw); err != nil {
		return &InvariantError{Invariant: "spec_pointer", Code: conform.ErrInvalidSpecPointer.Code, IDs: []string{it.ID}}
	}
	return nil
}

// MarkDeterminism sets each item's determinism marker from the run seed.
func MarkDeterminism(items []Item, runSeed string) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		it = it.Clone()
		it.Meta.DeterminismMarker = DeterminismMarker(runSeed, it.ID)
		out[i] = it
	}
	return out
}

// DeterminismMarker is sha256(seed + 0x1f + id).
func DeterminismMarker(runSeed, id string) string {
	return canonicalize.Digest([]byte(runSeed + "\x1f" + id))
}
