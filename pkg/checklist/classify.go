package checklist

import (
	"regexp"
	"strings"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/pointer"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/spec"
)

// SpecMissingPrefix marks items for required content absent from the spec.
const SpecMissingPrefix = "SPEC MISSING:"

// sectionClass maps the first pointer token to a classification.
var sectionClass = map[string]Classification{
	"metadata":       ClassMetadata,
	"architecture":   ClassArchitecture,
	"api":            ClassAPI,
	"apis":           ClassAPI,
	"endpoints":      ClassAPI,
	"integration":    ClassIntegration,
	"integrations":   ClassIntegration,
	"features":       ClassFeatures,
	"test":           ClassTest,
	"tests":          ClassTest,
	"test_plan":      ClassTest,
	"rules_contract": ClassGovernance,
	"governance":     ClassGovernance,
	"policies":       ClassGovernance,
}

// Classify assigns a classification from the pointer and the explicit
// type field. An explicit "integration" type always wins.
func Classify(ptr, explicitType string) Classification {
	if explicitType == string(ClassIntegration) {
		return ClassIntegration
	}
	tokens := pointer.Tokens(ptr)
	if len(tokens) == 0 {
		return ClassGeneral
	}
	switch tokens[0] {
	case "sections":
		if len(tokens) >= 4 && tokens[2] == "tasks" {
			return ClassFeatures
		}
		return ClassGeneral
	case "instructions":
		if c := Classification(explicitType); c.Valid() {
			return c
		}
		return ClassGeneral
	}
	if c, ok := sectionClass[tokens[0]]; ok {
		return c
	}
	return ClassGeneral
}

// DefaultCategorySeverity is the built-in rule-category table.
var DefaultCategorySeverity = map[string]Severity{
	"security":      SeverityHigh,
	"safety":        SeverityHigh,
	"compliance":    SeverityHigh,
	"governance":    SeverityHigh,
	"metadata":      SeverityHigh,
	"architecture":  SeverityMedium,
	"api":           SeverityMedium,
	"integration":   SeverityMedium,
	"features":      SeverityMedium,
	"test":          SeverityMedium,
	"performance":   SeverityMedium,
	"general":       SeverityLow,
	"documentation": SeverityLow,
}

var mustWord = regexp.MustCompile(`\bMUST\b`)

// SeverityPolicy assesses item severity. Categories override the built-in
// table.
type SeverityPolicy struct {
	Categories map[string]Severity
}

// PolicyFromSpec reads rules_contract.categories [{id, severity}].
func PolicyFromSpec(doc *spec.Document) SeverityPolicy {
	p := SeverityPolicy{Categories: make(map[string]Severity)}
	if doc == nil {
		return p
	}
	v, err := doc.Resolve("/rules_contract/categories")
	if err != nil {
		return p
	}
	list, ok := v.([]any)
	if !ok {
		return p
	}
	for _, e := range list {
		id, ok := spec.LookupString(e, "id")
		if !ok || id == "" {
			continue
		}
		sev, _ := spec.LookupString(e, "severity")
		if s := Severity(sev); s.Valid() {
			p.Categories[id] = s
		}
	}
	return p
}

// Assess returns the item's severity.
func (p SeverityPolicy) Assess(it Item) Severity {
	if strings.HasPrefix(it.Text, SpecMissingPrefix) {
		return SeverityCritical
	}
	if unsat, _ := it.Evidence[EvidenceMustUnsatisfied].(bool); unsat {
		return SeverityCritical
	}

	category := string(it.Classification)
	if c, ok := it.Evidence[EvidenceCategory].(string); ok && c != "" {
		category = c
	}
	if s, ok := p.Categories[category]; ok {
		return s
	}

	sev, ok := DefaultCategorySeverity[category]
	if !ok {
		sev = SeverityLow
	}
	if mustWord.MatchString(it.Text) && sev.Rank() > SeverityHigh.Rank() {
		sev = SeverityHigh
	}
	return sev
}

// Rank computes the order rank of it.
func Rank(it Item) OrderRank {
	return OrderRank{
		ClassRank:    it.Classification.Rank(),
		SeverityRank: it.Severity.Rank(),
		PathTokens:   pointer.Tokens(it.Ptr),
	}
}

// CompareRank orders two ranks lexicographically. Pointer tokens compare
// numerically when both are numbers.
func CompareRank(a, b OrderRank) int {
	if a.ClassRank != b.ClassRank {
		return a.ClassRank - b.ClassRank
	}
	if a.SeverityRank != b.SeverityRank {
		return a.SeverityRank - b.SeverityRank
	}
	return pointer.CompareTokens(a.PathTokens, b.PathTokens)
}

// Annotate classifies, assesses and ranks each item. Classification and
// severity already set by a derivation pass are kept.
func Annotate(items []Item, policy SeverityPolicy) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		it = it.Clone()
		if !it.Classification.Valid() {
			it.Classification = Classify(it.Ptr, it.Type)
		}
		if !it.Severity.Valid() {
			it.Severity = policy.Assess(it)
		}
		it.OrderRank = Rank(it)
		out[i] = it
	}
	return out
}
