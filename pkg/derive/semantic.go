package derive

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/checklist"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/pointer"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/spec"
)

// ProductIDPattern is the required product_id format.
var ProductIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// idCollections are the lists whose element ids must be unique, with the
// noun used in the item text.
var idCollections = []struct {
	ptr  string
	noun string
}{
	{"/agents", "agent"},
	{"/sections", "section"},
	{"/rules_contract/rules", "rule"},
}

// Semantic checks value formats, id uniqueness and MUST rules. rules may
// be nil, in which case MUST rule checks are skipped.
func Semantic(doc *spec.Document, rules *RuleEvaluator) []checklist.Item {
	var items []checklist.Item
	items = append(items, formatChecks(doc)...)
	items = append(items, duplicateIDs(doc)...)
	if rules != nil {
		items = append(items, mustRules(doc, rules)...)
	}
	return items
}

func formatChecks(doc *spec.Document) []checklist.Item {
	var items []checklist.Item
	if v, err := doc.Resolve("/metadata/product_id"); err == nil {
		if s, ok := v.(string); !ok || !ProductIDPattern.MatchString(s) {
			items = append(items, derivation{
				pass:           "semantic",
				ptr:            "/metadata/product_id",
				text:           fmt.Sprintf("Invalid product_id: %s (must match %s)", spec.ScalarText(v), ProductIDPattern.String()),
				classification: checklist.ClassMetadata,
				severity:       checklist.SeverityHigh,
				justification:  "product_id format",
			}.item(doc))
		}
	}
	if v, err := doc.Resolve("/metadata/spec_format"); err == nil {
		if s, ok := v.(string); !ok || s != spec.SpecFormat {
			items = append(items, derivation{
				pass:           "semantic",
				ptr:            "/metadata/spec_format",
				text:           fmt.Sprintf("Invalid spec_format: %s (expected %s)", spec.ScalarText(v), spec.SpecFormat),
				classification: checklist.ClassMetadata,
				severity:       checklist.SeverityHigh,
				justification:  "spec_format value",
			}.item(doc))
		}
	}
	return items
}

// duplicateIDs emits one item per repeated occurrence of an id.
func duplicateIDs(doc *spec.Document) []checklist.Item {
	var items []checklist.Item
	for _, coll := range idCollections {
		occ, order := idOccurrences(doc, coll.ptr)
		for _, id := range order {
			ptrs := occ[id]
			for _, p := range ptrs[1:] {
				items = append(items, derivation{
					pass:           "semantic",
					ptr:            p,
					text:           fmt.Sprintf("Duplicate %s id:%s", coll.noun, id),
					classification: checklist.Classify(p, ""),
					severity:       checklist.SeverityHigh,
					justification:  "ids must be unique within " + coll.ptr,
					evidence:       map[string]any{"first": ptrs[0]},
				}.item(doc))
			}
		}
	}
	return items
}

func mustRules(doc *spec.Document, rules *RuleEvaluator) []checklist.Item {
	v, err := doc.Resolve("/rules_contract/rules")
	if err != nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	native, _ := spec.Native(doc.Root).(map[string]any)

	var items []checklist.Item
	for i, rule := range list {
		level, _ := spec.LookupString(rule, "level")
		check, _ := spec.LookupString(rule, "check")
		if level != "MUST" || check == "" {
			continue
		}
		ptr := pointer.JoinIndex("/rules_contract/rules", i)
		id, ok := spec.LookupString(rule, "id")
		if !ok || id == "" {
			id = strconv.Itoa(i)
		}

		d := derivation{
			pass:           "semantic",
			ptr:            ptr,
			classification: checklist.ClassGovernance,
			evidence:       map[string]any{"rule_id": id, "check": check},
		}
		satisfied, err := rules.Check(check, native)
		var compileErr *CompileError
		switch {
		case errors.As(err, &compileErr):
			d.text = fmt.Sprintf("MUST rule check invalid: %s: %s", id, compileErr.Detail)
			d.severity = checklist.SeverityHigh
			d.justification = "check expression does not compile"
		case err != nil:
			d.text = fmt.Sprintf("MUST rule check failed: %s: %v", id, err)
			d.severity = checklist.SeverityHigh
			d.justification = "check expression did not evaluate to a bool"
		case !satisfied:
			d.text = "MUST rule unsatisfied: " + id
			d.severity = checklist.SeverityCritical
			d.justification = "MUST rule check evaluated to false"
			d.evidence[checklist.EvidenceMustUnsatisfied] = true
		default:
			continue
		}
		items = append(items, d.item(doc))
	}
	return items
}
