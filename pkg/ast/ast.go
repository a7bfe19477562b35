// Package ast builds the pointer-addressed tree the extractor walks.
//
// Nodes are a tagged variant: containers attached to their parent by key
// are dict_entry, containers attached by index are list_entry, and every
// scalar leaf is scalar regardless of how it is attached. The pointer is
// stored on the node when it is built and is never recomputed.
package ast

import (
	"sort"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/pointer"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/spec"
)

// Kind discriminates node variants.
type Kind string

const (
	KindRoot      Kind = "root"
	KindDictEntry Kind = "dict_entry"
	KindListEntry Kind = "list_entry"
	KindScalar    Kind = "scalar"
)

// Node is one AST node. A node exclusively owns its children.
type Node struct {
	Kind     Kind
	Ptr      string
	Key      string // set when attached by key
	Index    int    // set when attached by index; -1 otherwise
	Keyed    bool   // true when attached by key
	Value    any    // the spec value at Ptr (ordered form)
	SpecID   string // value of an "id" string field, if any
	Children []*Node
}

// IsContainer reports whether the node holds an object or array.
func (n *Node) IsContainer() bool {
	return n.Kind != KindScalar
}

// Child returns the direct child attached under key.
func (n *Node) Child(key string) *Node {
	for _, c := range n.Children {
		if c.Keyed && c.Key == key {
			return c
		}
	}
	return nil
}

// Tree is the AST for one compile run.
type Tree struct {
	Root *Node

	// Lineage maps pointer → spec id for every node carrying an "id".
	Lineage map[string]string

	byPtr map[string]*Node
	byID  map[string][]string
}

// Build walks doc depth-first in document order.
func Build(doc *spec.Document) *Tree {
	t := &Tree{
		Lineage: make(map[string]string),
		byPtr:   make(map[string]*Node),
		byID:    make(map[string][]string),
	}
	var root any
	if doc != nil {
		root = doc.Root
	}
	t.Root = t.build(root, "", KindRoot, "", -1, false)
	return t
}

func (t *Tree) build(v any, ptr string, kind Kind, key string, index int, keyed bool) *Node {
	n := &Node{Kind: kind, Ptr: ptr, Key: key, Index: index, Keyed: keyed, Value: v}
	t.byPtr[ptr] = n

	switch val := v.(type) {
	case *spec.Object:
		if id, ok := spec.LookupString(val, "id"); ok && id != "" {
			n.SpecID = id
			t.Lineage[ptr] = id
			t.byID[id] = append(t.byID[id], ptr)
		}
		for _, k := range val.Keys() {
			child, _ := val.Get(k)
			n.Children = append(n.Children, t.build(child, pointer.Join(ptr, k), entryKind(child, KindDictEntry), k, -1, true))
		}
	case []any:
		for i, child := range val {
			n.Children = append(n.Children, t.build(child, pointer.JoinIndex(ptr, i), entryKind(child, KindListEntry), "", i, false))
		}
	default:
		if kind == KindRoot {
			n.Kind = KindScalar
		}
	}
	return n
}

func entryKind(v any, container Kind) Kind {
	switch v.(type) {
	case *spec.Object, []any:
		return container
	default:
		return KindScalar
	}
}

// Lookup returns the node at ptr.
func (t *Tree) Lookup(ptr string) (*Node, bool) {
	n, ok := t.byPtr[ptr]
	return n, ok
}

// PointersForID returns the pointers of every node whose id equals id, in
// document order.
func (t *Tree) PointersForID(id string) []string {
	ptrs := t.byID[id]
	out := make([]string, len(ptrs))
	copy(out, ptrs)
	return out
}

// Walk visits every node depth-first, parents before children. Returning
// false from fn skips the node's children.
func (t *Tree) Walk(fn func(n *Node) bool) {
	var walk func(n *Node)
	walk = func(n *Node) {
		if !fn(n) {
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	if t.Root != nil {
		walk(t.Root)
	}
}

// Size returns the number of nodes.
func (t *Tree) Size() int {
	return len(t.byPtr)
}

// Canonical returns a JSON-ready view of the tree in which dictionary
// children are ordered by key. Two documents that differ only in key order
// share one canonical AST.
func (t *Tree) Canonical() map[string]any {
	if t.Root == nil {
		return nil
	}
	return canonicalNode(t.Root)
}

func canonicalNode(n *Node) map[string]any {
	out := map[string]any{
		"type": string(n.Kind),
		"ptr":  n.Ptr,
	}
	if n.SpecID != "" {
		out["spec_id"] = n.SpecID
	}
	if n.Kind == KindScalar {
		out["value"] = n.Value
		return out
	}
	children := make([]*Node, len(n.Children))
	copy(children, n.Children)
	if _, isObj := n.Value.(*spec.Object); isObj {
		sort.Slice(children, func(i, j int) bool { return children[i].Key < children[j].Key })
	}
	list := make([]any, len(children))
	for i, c := range children {
		list[i] = canonicalNode(c)
	}
	out["children"] = list
	return out
}
