// Package derive produces the items a spec implies but does not state:
// missing required metadata, invalid values, duplicate ids, broken
// cross-references and dependency problems.
//
// The four passes are independent and read-only over the document; their
// combined output is re-sorted canonically by the caller.
package derive

import (
	"sort"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/ast"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/checklist"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/pointer"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/spec"
)

// Result is the combined output of all passes.
type Result struct {
	Items []checklist.Item `json:"items"`
	Edges []Edge           `json:"edges"`
}

// Counts returns the number of items produced per pass.
func (r Result) Counts() map[string]int {
	out := make(map[string]int)
	for _, it := range r.Items {
		pass, _ := it.Evidence["pass"].(string)
		out[pass]++
	}
	return out
}

// Run executes the constraints, semantic, cross and deps passes.
func Run(doc *spec.Document, tree *ast.Tree, rules *RuleEvaluator) Result {
	if tree == nil {
		tree = ast.Build(doc)
	}
	var res Result
	res.Items = append(res.Items, Constraints(doc)...)
	res.Items = append(res.Items, Semantic(doc, rules)...)
	res.Items = append(res.Items, Cross(doc)...)

	deps, edges := Deps(doc, tree)
	res.Items = append(res.Items, deps...)
	res.Edges = edges
	return res
}

type derivation struct {
	pass           string
	ptr            string
	text           string
	classification checklist.Classification
	severity       checklist.Severity
	justification  string
	evidence       map[string]any
}

// item builds a derived item. Items addressing absent content record the
// nearest existing ancestor they resolve through.
func (d derivation) item(doc *spec.Document) checklist.Item {
	ev := map[string]any{"pass": d.pass}
	for k, v := range d.evidence {
		ev[k] = v
	}
	var value any
	if v, err := doc.Resolve(d.ptr); err == nil {
		value = v
	} else {
		ev[checklist.EvidenceResolvedVia] = nearestAncestor(doc, d.ptr)
	}
	return checklist.Item{
		Ptr:            d.ptr,
		SpecPointer:    d.ptr,
		Key:            pointer.Last(d.ptr),
		Text:           d.text,
		Value:          value,
		Classification: d.classification,
		Severity:       d.severity,
		Meta: checklist.Meta{
			Source:        checklist.SourceDerived,
			InferenceType: checklist.InferenceStructural,
			Justification: d.justification,
		},
		Evidence:      ev,
		QualityStatus: checklist.QualityValid,
	}
}

func nearestAncestor(doc *spec.Document, ptr string) string {
	for ptr != "" {
		ptr = pointer.Parent(ptr)
		if pointer.Exists(doc.Root, ptr) {
			return ptr
		}
	}
	return ""
}

// idOccurrences returns id -> pointers of list elements carrying that id.
func idOccurrences(doc *spec.Document, listPtr string) (map[string][]string, []string) {
	occ := make(map[string][]string)
	var order []string
	v, err := doc.Resolve(listPtr)
	if err != nil {
		return occ, order
	}
	list, ok := v.([]any)
	if !ok {
		return occ, order
	}
	for i, e := range list {
		id, ok := spec.LookupString(e, "id")
		if !ok || id == "" {
			continue
		}
		if _, seen := occ[id]; !seen {
			order = append(order, id)
		}
		occ[id] = append(occ[id], pointer.JoinIndex(listPtr, i))
	}
	return occ, order
}

func sortedStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
