// Package checklist holds the work-item model and the pure passes that turn
// an AST into a canonical, content-addressed list of items.
package checklist

import (
	"sort"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/canonicalize"
)

// Classification is the item category. The set is closed.
type Classification string

const (
	ClassMetadata     Classification = "metadata"
	ClassArchitecture Classification = "architecture"
	ClassAPI          Classification = "api"
	ClassIntegration  Classification = "integration"
	ClassFeatures     Classification = "features"
	ClassTest         Classification = "test"
	ClassGovernance   Classification = "governance"
	ClassGeneral      Classification = "general"
)

var classRank = map[Classification]int{
	ClassMetadata:     0,
	ClassArchitecture: 1,
	ClassAPI:          2,
	ClassIntegration:  3,
	ClassFeatures:     4,
	ClassTest:         5,
	ClassGovernance:   6,
	ClassGeneral:      7,
}

// Valid reports membership in the closed set.
func (c Classification) Valid() bool {
	_, ok := classRank[c]
	return ok
}

// Rank is the fixed ordering rank.
func (c Classification) Rank() int {
	if r, ok := classRank[c]; ok {
		return r
	}
	return classRank[ClassGeneral]
}

// Severity is the item severity.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// Valid reports membership in the closed set.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// Rank is the fixed ordering rank; lower is more severe.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return severityRank[SeverityLow]
}

// Source records where an item's content came from.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceDefault  Source = "default"
	SourceCoerced  Source = "coerced"
	SourceDerived  Source = "derived"
	SourceInferred Source = "inferred"
)

// Valid reports membership in the closed set.
func (s Source) Valid() bool {
	switch s {
	case SourceExplicit, SourceDefault, SourceCoerced, SourceDerived, SourceInferred:
		return true
	}
	return false
}

// InferenceType is frozen at the type level; no other values exist.
type InferenceType string

const (
	InferenceNone        InferenceType = "none"
	InferenceSafeDefault InferenceType = "safe_default"
	InferenceHeuristic   InferenceType = "heuristic"
	InferenceStructural  InferenceType = "structural"
	InferenceFallback    InferenceType = "fallback"
)

// InferenceTypes returns the frozen set in declaration order.
func InferenceTypes() []InferenceType {
	return []InferenceType{InferenceNone, InferenceSafeDefault, InferenceHeuristic, InferenceStructural, InferenceFallback}
}

// Valid reports membership in the frozen set.
func (t InferenceType) Valid() bool {
	for _, v := range InferenceTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// QualityStatus marks whether an item passed model validation.
type QualityStatus string

const (
	QualityValid   QualityStatus = "VALID"
	QualityInvalid QualityStatus = "INVALID"
)

// Meta is item provenance.
type Meta struct {
	Source            Source        `json:"source"`
	InferenceType     InferenceType `json:"inference_type"`
	Justification     string        `json:"justification"`
	OriginalValue     any           `json:"original_value,omitempty"`
	DeterminismMarker string        `json:"determinism_marker"`
}

// OrderRank is the lexicographic sort key (class, severity, pointer tokens).
type OrderRank struct {
	ClassRank    int      `json:"class_rank"`
	SeverityRank int      `json:"severity_rank"`
	PathTokens   []string `json:"path_tokens"`
}

// Item is one work-item. Passes return modified copies rather than
// mutating items in place.
type Item struct {
	ID             string         `json:"id"`
	Ptr            string         `json:"ptr"`
	SpecPointer    string         `json:"spec_pointer"`
	Key            string         `json:"key"`
	Text           string         `json:"text"`
	Value          any            `json:"value"`
	Type           string         `json:"type,omitempty"`
	Classification Classification `json:"classification"`
	Severity       Severity       `json:"severity"`
	OrderRank      OrderRank      `json:"order_rank"`
	TestRefs       []string       `json:"test_refs"`
	Meta           Meta           `json:"meta"`
	Evidence       map[string]any `json:"evidence"`
	QualityStatus  QualityStatus  `json:"quality_status"`
}

// Evidence keys with engine meaning.
const (
	EvidenceMustUnsatisfied = "must_unsatisfied"
	EvidenceCategory        = "category"
	EvidenceDisabled        = "disabled"
	EvidenceCollapsed       = "collapsed_variants"
	EvidenceResolvedVia     = "resolved_via"
)

// Clone returns a copy that shares no mutable slices or maps with it.
func (it Item) Clone() Item {
	out := it
	if it.TestRefs != nil {
		out.TestRefs = append([]string(nil), it.TestRefs...)
	}
	if it.OrderRank.PathTokens != nil {
		out.OrderRank.PathTokens = append([]string(nil), it.OrderRank.PathTokens...)
	}
	if it.Evidence != nil {
		out.Evidence = make(map[string]any, len(it.Evidence))
		for k, v := range it.Evidence {
			out.Evidence[k] = v
		}
	}
	return out
}

// WithEvidence returns a copy with key set in the evidence map.
func (it Item) WithEvidence(key string, value any) Item {
	out := it.Clone()
	if out.Evidence == nil {
		out.Evidence = make(map[string]any)
	}
	out.Evidence[key] = value
	return out
}

// Disabled reports whether model validation disabled the item.
func (it Item) Disabled() bool {
	return it.QualityStatus == QualityInvalid
}

// Hash returns the canonical hash of an item list. It is the checklist
// hash when applied to a finalized list.
func Hash(items []Item) (string, error) {
	if items == nil {
		items = []Item{}
	}
	return canonicalize.CanonicalHash(items)
}

// IDs returns the ids of items, sorted.
func IDs(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	sort.Strings(out)
	return out
}
