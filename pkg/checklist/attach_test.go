package checklist

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/conform"
)

type staticRegistry map[string]string

func (s staticRegistry) DiscoverTests() (map[string]string, error) { return s, nil }

type brokenRegistry struct{}

func (brokenRegistry) DiscoverTests() (map[string]string, error) {
	return nil, errors.New("registry offline")
}

func TestEnforceTestsAttached_Missing(t *testing.T) {
	id := SynthesizeID("/x/y", "hello")
	items := []Item{{ID: id, Ptr: "/x/y", Text: "hello"}}

	err := EnforceTestsAttached(items, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing_test_refs:["+id+"]")
	assert.True(t, errors.Is(err, conform.ErrMissingTestRefs))

	var inv *InvariantError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, InvariantTestsAttached, inv.Invariant)
}

func TestEnforceTestsAttached_Unresolved(t *testing.T) {
	reg := staticRegistry{"test::core::ok": "core/ok_test.go:10"}
	items := []Item{
		{ID: "b", Ptr: "/b", TestRefs: []string{"test::core::ok"}},
		{ID: "a", Ptr: "/a", TestRefs: []string{"test::core::gone"}},
		{ID: "c", Ptr: "/c", TestRefs: []string{"not-a-ref"}},
	}

	report, err := ValidateTestsAttached(items, reg)
	require.NoError(t, err)
	assert.Empty(t, report.Missing)
	assert.Equal(t, []string{"a", "c"}, report.Unresolved)
	assert.Equal(t, []string{"not-a-ref"}, report.BadRefs["c"])

	err = EnforceTestsAttached(items, reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_test_refs:[a,c]")
}

func TestEnforceTestsAttached_MissingBeforeUnresolved(t *testing.T) {
	items := []Item{
		{ID: "a", Ptr: "/a", TestRefs: []string{"test::core::gone"}},
		{ID: "b", Ptr: "/b"},
	}
	err := EnforceTestsAttached(items, staticRegistry{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing_test_refs:[b]")
}

func TestEnforceTestsAttached_DisabledSkippedAndRegistryError(t *testing.T) {
	items := []Item{{ID: "x", Ptr: "/x", QualityStatus: QualityInvalid}}
	require.NoError(t, EnforceTestsAttached(items, staticRegistry{}))

	items = []Item{{ID: "y", Ptr: "/y", TestRefs: []string{"test::a::b"}}}
	err := EnforceTestsAttached(items, brokenRegistry{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry offline")
}

func TestAttachments(t *testing.T) {
	doc := parse(t, `{"test_attachments":{
		"/sections": ["test::s::all"],
		"/sections/0": ["test::s::zero"],
		"/sections/0/tasks": ["test::s::tasks"],
		"/metadata": "not-a-list"
	}}`)
	a := AttachmentsFromSpec(doc)
	assert.NotContains(t, a, "/metadata")

	assert.Equal(t, []string{"test::s::tasks"}, a.For("/sections/0/tasks/3"))
	assert.Equal(t, []string{"test::s::zero"}, a.For("/sections/0/title"))
	assert.Equal(t, []string{"test::s::all"}, a.For("/sections/1"))
	assert.Nil(t, a.For("/sectionsX"))

	items := AttachTestRefs([]Item{
		{Ptr: "/sections/0/tasks/1", TestRefs: []string{"test::inline::x", "test::s::tasks"}},
		{Ptr: "/other"},
	}, a)
	assert.Equal(t, []string{"test::inline::x", "test::s::tasks"}, items[0].TestRefs)
	assert.Equal(t, []string{}, items[1].TestRefs)
}

func TestAttachments_TrailingSlashPrefix(t *testing.T) {
	a := Attachments{"/a/b": {"test::m::two"}, "/a/b/": {"test::m::one"}}
	// "/a/b/" addresses the empty key under /a/b, not its children.
	assert.Equal(t, []string{"test::m::two"}, a.For("/a/b/c"))
	assert.Equal(t, []string{"test::m::one"}, a.For("/a/b/"))
}
