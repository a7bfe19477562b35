package derive

import (
	"fmt"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/checklist"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/pointer"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/spec"
)

// Cross checks references between top-level sections.
func Cross(doc *spec.Document) []checklist.Item {
	var items []checklist.Item
	items = append(items, agentsNeedArchitecture(doc)...)
	items = append(items, instructionSections(doc)...)
	items = append(items, pointerMapTargets(doc)...)
	return items
}

func agentsNeedArchitecture(doc *spec.Document) []checklist.Item {
	agents, ok := spec.Lookup(doc.Root, "agents")
	if !ok {
		return nil
	}
	if list, isList := agents.([]any); isList && len(list) == 0 {
		return nil
	}
	if _, ok := spec.Lookup(doc.Root, "architecture"); ok {
		return nil
	}
	return []checklist.Item{derivation{
		pass:           "cross",
		ptr:            "/architecture",
		text:           "Architecture required: agents are declared without an architecture section",
		classification: checklist.ClassArchitecture,
		severity:       checklist.SeverityHigh,
		justification:  "agents reference architecture",
	}.item(doc)}
}

func instructionSections(doc *spec.Document) []checklist.Item {
	v, err := doc.Resolve("/instructions")
	if err != nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	known, _ := idOccurrences(doc, "/sections")

	var items []checklist.Item
	for i, ins := range list {
		ref, ok := spec.LookupString(ins, "section")
		if !ok {
			continue
		}
		if _, exists := known[ref]; exists {
			continue
		}
		ptr := pointer.Join(pointer.JoinIndex("/instructions", i), "section")
		items = append(items, derivation{
			pass:           "cross",
			ptr:            ptr,
			text:           "Unknown section reference: " + ref,
			classification: checklist.Classify(ptr, ""),
			severity:       checklist.SeverityHigh,
			justification:  "instruction references a section id",
		}.item(doc))
	}
	return items
}

func pointerMapTargets(doc *spec.Document) []checklist.Item {
	v, ok := spec.Lookup(doc.Root, "pointer_map")
	if !ok {
		return nil
	}
	obj, ok := v.(*spec.Object)
	if !ok {
		return nil
	}
	var items []checklist.Item
	for _, key := range obj.Keys() {
		raw, _ := obj.Get(key)
		target, isStr := raw.(string)
		if isStr && pointer.Exists(doc.Root, target) {
			continue
		}
		items = append(items, derivation{
			pass:           "cross",
			ptr:            pointer.Join("/pointer_map", key),
			text:           fmt.Sprintf("Unresolved pointer_map target: %s -> %s", key, spec.ScalarText(raw)),
			classification: checklist.ClassGeneral,
			severity:       checklist.SeverityHigh,
			justification:  "pointer_map targets must resolve",
		}.item(doc))
	}
	return items
}
