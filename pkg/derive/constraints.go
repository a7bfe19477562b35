package derive

import (
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/checklist"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/pointer"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/spec"
)

// RequiredMetadata lists the keys every spec must declare under /metadata.
var RequiredMetadata = []string{"product_id", "spec_format", "version"}

// Constraints emits SPEC MISSING items for absent required metadata.
func Constraints(doc *spec.Document) []checklist.Item {
	meta, ok := spec.Lookup(doc.Root, "metadata")
	if _, isObj := meta.(*spec.Object); !ok || !isObj {
		return []checklist.Item{derivation{
			pass:           "constraints",
			ptr:            "/metadata",
			text:           checklist.SpecMissingPrefix + " metadata",
			classification: checklist.ClassMetadata,
			severity:       checklist.SeverityCritical,
			justification:  "metadata object is required",
		}.item(doc)}
	}

	var items []checklist.Item
	for _, key := range RequiredMetadata {
		if _, present := spec.Lookup(meta, key); present {
			continue
		}
		items = append(items, derivation{
			pass:           "constraints",
			ptr:            pointer.Join("/metadata", key),
			text:           checklist.SpecMissingPrefix + " " + key,
			classification: checklist.ClassMetadata,
			severity:       checklist.SeverityCritical,
			justification:  "required metadata key",
		}.item(doc))
	}
	return items
}
