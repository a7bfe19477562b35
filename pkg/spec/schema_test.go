package spec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_AcceptsMinimalSpecs(t *testing.T) {
	v, err := NewSchemaValidator()
	require.NoError(t, err)

	for _, src := range []string{
		`{"metadata":{}}`,
		`{"agents":[{"id":"a"},{"id":"a"}]}`,
		`{"metadata":{"product_id":"demo","spec_format":"canonical_json_v1"},"sections":[{"id":"s1","tasks":["do it"]}]}`,
	} {
		doc, err := Parse([]byte(src), FormatJSON)
		require.NoError(t, err)
		ok, violations := v.Validate(doc)
		assert.True(t, ok, "%s: %v", src, violations)
	}
}

func TestSchema_RejectsWrongShapes(t *testing.T) {
	v, err := NewSchemaValidator()
	require.NoError(t, err)

	doc, err := Parse([]byte(`{"sections":{"not":"an array"},"metadata":{"product_id":7}}`), FormatJSON)
	require.NoError(t, err)

	ok, violations := v.Validate(doc)
	require.False(t, ok)
	require.NotEmpty(t, violations)

	pointers := make([]string, 0, len(violations))
	for _, viol := range violations {
		pointers = append(pointers, viol.Pointer)
	}
	assert.Contains(t, pointers, "/sections")
	assert.Contains(t, pointers, "/metadata/product_id")
	assert.IsNonDecreasing(t, pointers)
}

func TestSchema_RootMustBeObject(t *testing.T) {
	v, err := NewSchemaValidator()
	require.NoError(t, err)
	doc, err := Parse([]byte(`[1,2]`), FormatJSON)
	require.NoError(t, err)
	ok, _ := v.Validate(doc)
	assert.False(t, ok)
}

func TestLoadSchemaValidator_Missing(t *testing.T) {
	_, err := LoadSchemaValidator(filepath.Join(t.TempDir(), "se_dsl.schema.json"))
	assert.ErrorIs(t, err, ErrSchemaMissing)
}

func TestLoadSchemaValidator_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "se_dsl.schema.json")
	require.NoError(t, os.WriteFile(path, EmbeddedSchema(), 0o600))
	_, err := LoadSchemaValidator(path)
	require.NoError(t, err)
}
