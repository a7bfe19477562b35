package derive

import (
	"sort"
	"strings"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/ast"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/checklist"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/pointer"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/spec"
)

// Edge is a dependency from one spec node to another, by pointer.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Deps collects depends_on edges. Targets are ids (resolved through the
// lineage map, first occurrence) or pointers. Unresolved targets and
// cycles become items.
func Deps(doc *spec.Document, tree *ast.Tree) ([]checklist.Item, []Edge) {
	var items []checklist.Item
	seen := make(map[Edge]bool)
	var edges []Edge

	tree.Walk(func(n *ast.Node) bool {
		obj, ok := n.Value.(*spec.Object)
		if !ok {
			return true
		}
		raw, ok := obj.Get("depends_on")
		if !ok {
			return true
		}
		depPtr := pointer.Join(n.Ptr, "depends_on")
		for _, ref := range dependencyRefs(raw, depPtr) {
			to, resolved := resolveTarget(tree, ref.target)
			if !resolved {
				items = append(items, derivation{
					pass:           "deps",
					ptr:            ref.ptr,
					text:           "Unresolved dependency: " + ref.target,
					classification: checklist.Classify(n.Ptr, ""),
					severity:       checklist.SeverityHigh,
					justification:  "depends_on must name an id or a pointer in the spec",
					evidence:       map[string]any{"from": n.Ptr},
				}.item(doc))
				continue
			}
			e := Edge{From: n.Ptr, To: to}
			if !seen[e] {
				seen[e] = true
				edges = append(edges, e)
			}
		}
		return true
	})

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	for _, cycle := range findCycles(edges) {
		items = append(items, derivation{
			pass:           "deps",
			ptr:            cycle[0],
			text:           "Dependency cycle: " + strings.Join(cycle, " -> "),
			classification: checklist.Classify(cycle[0], ""),
			severity:       checklist.SeverityCritical,
			justification:  "dependency graph must be acyclic",
			evidence:       map[string]any{"cycle": cycle},
		}.item(doc))
	}
	if edges == nil {
		edges = []Edge{}
	}
	return items, edges
}

type depRef struct {
	ptr    string
	target string
}

func dependencyRefs(raw any, depPtr string) []depRef {
	switch v := raw.(type) {
	case string:
		return []depRef{{ptr: depPtr, target: v}}
	case []any:
		out := make([]depRef, 0, len(v))
		for i, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, depRef{ptr: pointer.JoinIndex(depPtr, i), target: s})
			}
		}
		return out
	}
	return nil
}

func resolveTarget(tree *ast.Tree, target string) (string, bool) {
	if strings.HasPrefix(target, "/") {
		canon, err := pointer.Canonical(target)
		if err != nil {
			return "", false
		}
		if _, ok := tree.Lookup(canon); ok {
			return canon, true
		}
		return "", false
	}
	if ptrs := tree.PointersForID(target); len(ptrs) > 0 {
		return ptrs[0], true
	}
	return "", false
}

// findCycles returns one witness per cycle found by repeated deterministic
// DFS: each round reports the first back-edge's cycle, drops that edge and
// searches again. Nodes and adjacency are visited in sorted order, and each
// witness starts at its smallest node.
func findCycles(edges []Edge) [][]string {
	adj := make(map[string][]string)
	nodeSet := make(map[string]bool)
	for _, e := range edges {
		adj[e.From] = append(adj[e.From], e.To)
		nodeSet[e.From] = true
		nodeSet[e.To] = true
	}
	nodes := make([]string, 0, len(nodeSet))
	for n := range nodeSet {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	for k := range adj {
		adj[k] = sortedStrings(adj[k])
	}

	var cycles [][]string
	for round := 0; round <= len(edges); round++ {
		cycle, back := findCycle(nodes, adj)
		if cycle == nil {
			break
		}
		cycles = append(cycles, rotateToMin(cycle))
		adj[back.From] = removeString(adj[back.From], back.To)
	}
	return cycles
}

func findCycle(nodes []string, adj map[string][]string) ([]string, Edge) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	parent := make(map[string]string, len(nodes))

	var cycle []string
	var back Edge

	var dfs func(u string) bool
	dfs = func(u string) bool {
		color[u] = gray
		for _, v := range adj[u] {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				// Back-edge u -> v closes the cycle v ... u -> v.
				path := []string{u}
				for cur := u; cur != v; {
					cur = parent[cur]
					path = append(path, cur)
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				cycle = append(path, v)
				back = Edge{From: u, To: v}
				return true
			}
		}
		color[u] = black
		return false
	}

	for _, n := range nodes {
		if color[n] != white {
			continue
		}
		if dfs(n) {
			return cycle, back
		}
	}
	return nil, Edge{}
}

// rotateToMin rotates a closed cycle (first node repeated last) so it
// starts and ends at its smallest node.
func rotateToMin(cycle []string) []string {
	ring := cycle[:len(cycle)-1]
	start := 0
	for i, n := range ring {
		if n < ring[start] {
			start = i
		}
	}
	out := make([]string, 0, len(cycle))
	out = append(out, ring[start:]...)
	out = append(out, ring[:start]...)
	return append(out, ring[start])
}

func removeString(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		if e != s {
			out = append(out, e)
		}
	}
	return out
}
