package checklist

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/conform"
)

func TestSynthesizeID_Stable(t *testing.T) {
	a := SynthesizeID("/x/y", "hello")
	b := SynthesizeID("/x/y", "hello")
	assert.Equal(t, a, b)
	assert.Len(t, a, 8)
	assert.NotEqual(t, a, SynthesizeID("/x/y", "hello!"))
	assert.NotEqual(t, a, SynthesizeID("/x/z", "hello"))
}

func TestAssignIDs_NoCollisionKeepsEight(t *testing.T) {
	items := AssignIDs([]Item{{Ptr: "/a", Text: "one"}, {Ptr: "/b", Text: "two"}, {Ptr: "/a", Text: "one"}})
	assert.Len(t, items[0].ID, 8)
	assert.Equal(t, items[0].ID, items[2].ID, "same pair, same id")
	assert.Equal(t, SynthesizeID("/b", "two"), items[1].ID)
}

func TestAssignIDs_CollisionGrows(t *testing.T) {
	fake := map[string]string{
		"a": "aaaaaaaa1111" + strings.Repeat("0", 52),
		"b": "aaaaaaaa2222" + strings.Repeat("0", 52),
		"c": "aaaaaaaa1111ffff" + strings.Repeat("0", 48),
		"d": "dddddddd" + strings.Repeat("0", 56),
	}
	digest := func(_, text string) string { return fake[text] }

	items := assignIDs([]Item{{Ptr: "/p", Text: "a"}, {Ptr: "/p", Text: "b"}, {Ptr: "/p", Text: "d"}}, digest)
	assert.Equal(t, "aaaaaaaa1111", items[0].ID)
	assert.Equal(t, "aaaaaaaa2222", items[1].ID)
	assert.Equal(t, "dddddddd", items[2].ID, "non-colliding ids keep 8 characters")

	items = assignIDs([]Item{{Ptr: "/p", Text: "a"}, {Ptr: "/p", Text: "b"}, {Ptr: "/p", Text: "c"}}, digest)
	assert.Equal(t, "aaaaaaaa11110000", items[0].ID)
	assert.Equal(t, "aaaaaaaa2222", items[1].ID)
	assert.Equal(t, "aaaaaaaa1111ffff", items[2].ID)

	reversed := assignIDs([]Item{{Ptr: "/p", Text: "c"}, {Ptr: "/p", Text: "b"}, {Ptr: "/p", Text: "a"}}, digest)
	assert.Equal(t, items[0].ID, reversed[2].ID, "escalation is order independent")
}

func TestDedupe(t *testing.T) {
	items := Dedupe([]Item{
		{Ptr: "/a", Text: "x", Value: "1"},
		{Ptr: "/a", Text: "x", Value: "1"},
		{Ptr: "/a", Text: "x", Value: "2"},
		{Ptr: "/b", Text: "x", Value: "1"},
	})
	require.Len(t, items, 3)
	assert.Equal(t, "2", items[1].Value)
}

func TestCollapse_KeepsLonger(t *testing.T) {
	items := Collapse([]Item{
		{Ptr: "/a", Text: "Log in"},
		{Ptr: "/b", Text: "other"},
		{Ptr: "/a", Text: "Log in with SSO"},
		{Ptr: "/a", Text: "Log"},
	})
	require.Len(t, items, 2)
	assert.Equal(t, "Log in with SSO", items[0].Text)
	assert.Equal(t, []string{"Log", "Log in"}, items[0].Evidence[EvidenceCollapsed])
	assert.Equal(t, "other", items[1].Text)
}

func TestCanonicalSort_OrderAndUniqueness(t *testing.T) {
	items := Canonicalize([]Item{
		{Ptr: "/sections/10/tasks/0", Text: "late"},
		{Ptr: "/metadata/version", Text: "version: 1"},
		{Ptr: "/sections/2/tasks/0", Text: "early"},
		{Ptr: "/metadata/product_id", Text: "SPEC MISSING: product_id"},
	}, SeverityPolicy{})

	var ptrs []string
	for _, it := range items {
		ptrs = append(ptrs, it.Ptr)
	}
	assert.Equal(t, []string{
		"/metadata/product_id",
		"/metadata/version",
		"/sections/2/tasks/0",
		"/sections/10/tasks/0",
	}, ptrs)
	assert.Equal(t, SeverityCritical, items[0].Severity)

	dup := CanonicalSort(append(items, items[1]))
	assert.Len(t, dup, len(items))
}

func TestDeterministicSort(t *testing.T) {
	items := DeterministicSort([]Item{
		{Ptr: "/b", ID: "1"},
		{Ptr: "/a", ID: "2"},
		{Ptr: "/a", ID: "1"},
	})
	assert.Equal(t, "/a", items[0].Ptr)
	assert.Equal(t, "1", items[0].ID)
	assert.Equal(t, "/b", items[2].Ptr)
}

func TestNormalizeItem(t *testing.T) {
	cc := conform.NewContext()

	ok := NormalizeItem(cc, Item{SpecPointer: "/a~1b", Text: "x"})
	assert.Equal(t, "/a~1b", ok.Ptr)
	assert.Equal(t, QualityValid, ok.QualityStatus)
	assert.NotNil(t, ok.TestRefs)
	assert.Equal(t, InferenceNone, ok.Meta.InferenceType)
	assert.Zero(t, cc.Len())

	bad := NormalizeItem(cc, Item{ID: "deadbeef", Text: "orphan"})
	assert.Equal(t, QualityInvalid, bad.QualityStatus)
	assert.True(t, bad.Disabled())

	events := cc.ByGate(conform.GateChecklistModel)
	require.Len(t, events, 1)
	assert.Equal(t, "missing_spec_pointer", events[0].Message)
	assert.Equal(t, "deadbeef", events[0].Evidence["item_id"])

	malformed := NormalizeItem(cc, Item{Ptr: "no-slash"})
	assert.True(t, malformed.Disabled())
	assert.Equal(t, 2, cc.Len())
}

func TestEnforceSpecPointer(t *testing.T) {
	require.NoError(t, EnforceSpecPointer(Item{Ptr: "/a"}))

	err := EnforceSpecPointer(Item{ID: "abc"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, conform.ErrMissingSpecPointer))
	assert.Contains(t, err.Error(), "missing_spec_pointer:[abc]")
}

func TestDeterminismMarker(t *testing.T) {
	items := MarkDeterminism([]Item{{ID: "abc"}}, "seed-1")
	assert.Equal(t, DeterminismMarker("seed-1", "abc"), items[0].Meta.DeterminismMarker)
	assert.NotEqual(t, items[0].Meta.DeterminismMarker, DeterminismMarker("seed-2", "abc"))
}
