package checklist

import (
	"strconv"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/ast"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/pointer"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/spec"
)

// TextFields are the keys that turn a dictionary into a single item, in
// priority order.
var TextFields = []string{"text", "description", "title", "statement", "name"}

// skippedRoots are subtrees that carry engine configuration, not work.
var skippedRoots = []string{"/pointer_map", "/test_attachments", "/$schema"}

// referenceKeys hold references to other nodes or tests, never work.
var referenceKeys = map[string]bool{"test_refs": true, "depends_on": true}

// Extract flattens the tree into raw items carrying ptr, key, text, value,
// explicit type and inline test refs. Items come out in document order.
func Extract(tree *ast.Tree) []Item {
	var items []Item
	if tree == nil || tree.Root == nil {
		return items
	}
	if tree.Root.Kind == ast.KindScalar {
		return append(items, scalarItem(tree.Root))
	}
	for _, c := range tree.Root.Children {
		extractNode(c, &items)
	}
	return items
}

func extractNode(n *ast.Node, items *[]Item) {
	for _, root := range skippedRoots {
		if pointer.HasPrefix(n.Ptr, root) {
			return
		}
	}
	if n.Keyed && referenceKeys[n.Key] {
		return
	}

	if n.Kind == ast.KindScalar {
		*items = append(*items, scalarItem(n))
		return
	}

	// Top-level sections are never items themselves.
	if obj, isObj := n.Value.(*spec.Object); isObj && len(pointer.Tokens(n.Ptr)) >= 2 {
		if text, field, ok := itemText(obj); ok {
			*items = append(*items, dictItem(n, obj, text, field))
			// Scalars of this dict are folded into the item; nested
			// containers are still walked.
			for _, c := range n.Children {
				if c.IsContainer() {
					extractNode(c, items)
				}
			}
			return
		}
	}

	for _, c := range n.Children {
		extractNode(c, items)
	}
}

func dictItem(n *ast.Node, obj *spec.Object, text, field string) Item {
	it := rawItem(n, text)
	it.Evidence = map[string]any{"text_field": field}
	if t, ok := spec.LookupString(obj, "type"); ok {
		it.Type = t
	}
	if c, ok := spec.LookupString(obj, "category"); ok {
		it.Evidence[EvidenceCategory] = c
	}
	it.TestRefs = inlineTestRefs(obj)
	return it
}

func itemText(obj *spec.Object) (text, field string, ok bool) {
	for _, f := range TextFields {
		v, exists := obj.Get(f)
		if !exists {
			continue
		}
		switch v.(type) {
		case *spec.Object, []any:
			continue
		}
		if s := spec.ScalarText(v); s != "" {
			return s, f, true
		}
	}
	return "", "", false
}

func scalarItem(n *ast.Node) Item {
	text := spec.ScalarText(n.Value)
	if s, isStr := n.Value.(string); !n.Keyed && isStr {
		text = s
	} else {
		label := n.Key
		if !n.Keyed {
			label = strconv.Itoa(n.Index)
		}
		text = label + ": " + text
	}
	return rawItem(n, text)
}

func rawItem(n *ast.Node, text string) Item {
	key := n.Key
	if !n.Keyed {
		key = strconv.Itoa(n.Index)
	}
	return Item{
		Ptr:         n.Ptr,
		SpecPointer: n.Ptr,
		Key:         key,
		Text:        text,
		Value:       n.Value,
		Meta: Meta{
			Source:        SourceExplicit,
			InferenceType: InferenceNone,
		},
		QualityStatus: QualityValid,
	}
}

func inlineTestRefs(obj *spec.Object) []string {
	v, ok := obj.Get("test_refs")
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	refs := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(string); ok {
			refs = append(refs, s)
		}
	}
	return refs
}
