package derive

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/ast"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/checklist"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/spec"
)

func parse(t *testing.T, src string) *spec.Document {
	t.Helper()
	doc, err := spec.Parse([]byte(src), spec.FormatJSON)
	require.NoError(t, err)
	return doc
}

func texts(items []checklist.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Text)
	}
	return out
}

func TestConstraints_EmptyMetadata(t *testing.T) {
	doc := parse(t, `{"metadata":{}}`)
	items := Constraints(doc)
	require.Len(t, items, 3)

	first := items[0]
	assert.Equal(t, "/metadata/product_id", first.Ptr)
	assert.True(t, strings.HasPrefix(first.Text, "SPEC MISSING:"))
	assert.Equal(t, checklist.SeverityCritical, first.Severity)
	assert.Equal(t, checklist.SourceDerived, first.Meta.Source)
	assert.Equal(t, "/metadata", first.Evidence[checklist.EvidenceResolvedVia])
}

func TestConstraints_NoMetadata(t *testing.T) {
	items := Constraints(parse(t, `{"sections":[]}`))
	require.Len(t, items, 1)
	assert.Equal(t, "/metadata", items[0].Ptr)
	assert.Equal(t, "SPEC MISSING: metadata", items[0].Text)
	assert.Equal(t, "", items[0].Evidence[checklist.EvidenceResolvedVia])
}

func TestConstraints_Complete(t *testing.T) {
	items := Constraints(parse(t, `{"metadata":{"product_id":"p","spec_format":"canonical_json_v1","version":"1"}}`))
	assert.Empty(t, items)
}

func TestSemantic_DuplicateAgentIDs(t *testing.T) {
	items := Semantic(parse(t, `{"agents":[{"id":"a"},{"id":"a"}]}`), nil)
	require.Len(t, items, 1)
	assert.Contains(t, items[0].Text, "Duplicate agent id:a")
	assert.Equal(t, "/agents/1", items[0].Ptr)
	assert.Equal(t, "/agents/0", items[0].Evidence["first"])
}

func TestSemantic_OnePerDuplicateOccurrence(t *testing.T) {
	items := Semantic(parse(t, `{"sections":[{"id":"s"},{"id":"s"},{"id":"s"},{"id":"t"}]}`), nil)
	assert.Equal(t, []string{"Duplicate section id:s", "Duplicate section id:s"}, texts(items))
}

func TestSemantic_Formats(t *testing.T) {
	items := Semantic(parse(t, `{"metadata":{"product_id":"Bad-ID","spec_format":"yaml_v0"}}`), nil)
	require.Len(t, items, 2)
	assert.Contains(t, items[0].Text, "Invalid product_id: Bad-ID")
	assert.Contains(t, items[1].Text, "Invalid spec_format: yaml_v0")

	assert.Empty(t, Semantic(parse(t, `{"metadata":{"product_id":"good_id2","spec_format":"canonical_json_v1"}}`), nil))
}

func TestSemantic_MustRules(t *testing.T) {
	rules, err := NewRuleEvaluator()
	require.NoError(t, err)

	doc := parse(t, `{
		"metadata": {"product_id": "demo"},
		"sections": [{"id": "s1"}],
		"rules_contract": {"rules": [
			{"id": "has_sections", "level": "MUST", "check": "size(spec.sections) > 0"},
			{"id": "needs_api", "level": "MUST", "check": "has(spec.api)"},
			{"id": "broken", "level": "MUST", "check": "spec.sections +"},
			{"id": "not_bool", "level": "MUST", "check": "spec.metadata.product_id"},
			{"id": "soft", "level": "SHOULD", "check": "false"}
		]}
	}`)
	items := Semantic(doc, rules)
	require.Len(t, items, 3)

	unsat := items[0]
	assert.Equal(t, "MUST rule unsatisfied: needs_api", unsat.Text)
	assert.Equal(t, checklist.SeverityCritical, unsat.Severity)
	assert.Equal(t, true, unsat.Evidence[checklist.EvidenceMustUnsatisfied])
	assert.Equal(t, "/rules_contract/rules/1", unsat.Ptr)

	assert.True(t, strings.HasPrefix(items[1].Text, "MUST rule check invalid: broken"))
	assert.Equal(t, checklist.SeverityHigh, items[1].Severity)
	assert.True(t, strings.HasPrefix(items[2].Text, "MUST rule check failed: not_bool"))
}

func TestCross(t *testing.T) {
	doc := parse(t, `{
		"agents": [{"id": "a"}],
		"sections": [{"id": "s1"}],
		"instructions": [{"text": "x", "section": "s1"}, {"text": "y", "section": "s9"}],
		"pointer_map": {"ok": "/sections/0", "bad": "/nowhere", "num": 3}
	}`)
	items := Cross(doc)
	assert.Equal(t, []string{
		"Architecture required: agents are declared without an architecture section",
		"Unknown section reference: s9",
		"Unresolved pointer_map target: bad -> /nowhere",
		"Unresolved pointer_map target: num -> 3",
	}, texts(items))
	assert.Equal(t, "/architecture", items[0].Ptr)
	assert.Equal(t, "", items[0].Evidence[checklist.EvidenceResolvedVia])
	assert.Equal(t, "/instructions/1/section", items[1].Ptr)
	assert.Nil(t, items[1].Evidence[checklist.EvidenceResolvedVia])
}

func TestDeps_EdgesUnresolvedAndCycle(t *testing.T) {
	doc := parse(t, `{"sections": [
		{"id": "s1", "depends_on": ["s2"]},
		{"id": "s2", "depends_on": "/sections/2"},
		{"id": "s3", "depends_on": ["s1", "ghost", "/sections/9"]},
		{"id": "s4", "depends_on": ["s4"]}
	]}`)
	items, edges := Deps(doc, ast.Build(doc))

	assert.Equal(t, []Edge{
		{From: "/sections/0", To: "/sections/1"},
		{From: "/sections/1", To: "/sections/2"},
		{From: "/sections/2", To: "/sections/0"},
		{From: "/sections/3", To: "/sections/3"},
	}, edges)

	assert.Equal(t, []string{
		"Unresolved dependency: ghost",
		"Unresolved dependency: /sections/9",
		"Dependency cycle: /sections/0 -> /sections/1 -> /sections/2 -> /sections/0",
		"Dependency cycle: /sections/3 -> /sections/3",
	}, texts(items))
	assert.Equal(t, "/sections/2/depends_on/1", items[0].Ptr)
	assert.Equal(t, checklist.SeverityCritical, items[2].Severity)
	assert.Equal(t, "/sections/0", items[2].Ptr)
}

func TestDeps_CycleWitnessStartsAtSmallestPointer(t *testing.T) {
	assert.Equal(t, [][]string{{"B", "C", "B"}}, findCycles([]Edge{
		{From: "A", To: "C"},
		{From: "B", To: "C"},
		{From: "C", To: "B"},
	}))

	doc := parse(t, `{"sections": [
		{"id": "s1", "depends_on": ["s3"]},
		{"id": "s2", "depends_on": ["s3"]},
		{"id": "s3", "depends_on": ["s2"]}
	]}`)
	items, _ := Deps(doc, ast.Build(doc))
	require.Len(t, items, 1)
	assert.Equal(t, "Dependency cycle: /sections/1 -> /sections/2 -> /sections/1", items[0].Text)
	assert.Equal(t, "/sections/1", items[0].Ptr)
	assert.Equal(t, []string{"/sections/1", "/sections/2", "/sections/1"}, items[0].Evidence["cycle"])
}

func TestDeps_Acyclic(t *testing.T) {
	doc := parse(t, `{"sections": [{"id": "a", "depends_on": ["b"]}, {"id": "b"}]}`)
	items, edges := Deps(doc, ast.Build(doc))
	assert.Empty(t, items)
	assert.Len(t, edges, 1)
}

func TestRun_Commutative(t *testing.T) {
	rules, err := NewRuleEvaluator()
	require.NoError(t, err)
	doc := parse(t, `{"metadata":{},"agents":[{"id":"a"},{"id":"a"}]}`)

	res := Run(doc, nil, rules)
	counts := res.Counts()
	assert.Equal(t, 3, counts["constraints"])
	assert.Equal(t, 1, counts["semantic"])
	assert.Equal(t, 1, counts["cross"])

	again := Run(doc, ast.Build(doc), rules)
	assert.Equal(t, texts(res.Items), texts(again.Items))
}
