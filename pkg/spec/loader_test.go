package spec

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON_PreservesKeyOrder(t *testing.T) {
	doc, err := Parse([]byte(`{"z":1,"a":{"y":true,"b":null},"m":[1,"x"]}`), FormatJSON)
	require.NoError(t, err)

	root := doc.Object()
	require.NotNil(t, root)
	assert.Equal(t, []string{"z", "a", "m"}, root.Keys())

	inner, ok := Lookup(root, "a")
	require.True(t, ok)
	assert.Equal(t, []string{"y", "b"}, inner.(*Object).Keys())

	v, err := doc.Resolve("/m/1")
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	v, err = doc.Resolve("/z")
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), v)
}

func TestParseJSON_MarshalKeepsOrder(t *testing.T) {
	doc, err := Parse([]byte(`{"b":2,"a":1}`), FormatJSON)
	require.NoError(t, err)
	out, err := json.Marshal(doc.Root)
	require.NoError(t, err)
	assert.Equal(t, `{"b":2,"a":1}`, string(out))
}

func TestParseJSON_Malformed(t *testing.T) {
	_, err := Parse([]byte(`{"a":`), FormatJSON)
	assert.ErrorIs(t, err, ErrSpecMalformed)

	_, err = Parse([]byte(`{"a":1} {"b":2}`), FormatJSON)
	assert.ErrorIs(t, err, ErrSpecMalformed)
}

func TestParseYAML_PreservesKeyOrder(t *testing.T) {
	src := []byte("metadata:\n  product_id: demo\n  version: 3\nsections:\n  - id: s1\n    ratio: 0.5\n  - id: s2\n")
	doc, err := Parse(src, FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, []string{"metadata", "sections"}, doc.Object().Keys())

	v, err := doc.Resolve("/metadata/version")
	require.NoError(t, err)
	assert.Equal(t, json.Number("3"), v)

	v, err = doc.Resolve("/sections/0/ratio")
	require.NoError(t, err)
	assert.Equal(t, json.Number("0.5"), v)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spec.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"metadata":{"product_id":"demo"}}`), 0o600))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Path)
	assert.Equal(t, FormatJSON, doc.Format)

	_, err = Load(filepath.Join(dir, "absent.json"))
	assert.ErrorIs(t, err, ErrSpecMissing)
}

func TestFromValue_SortsPlainMaps(t *testing.T) {
	doc := FromValue(map[string]any{"b": 1, "a": []any{2.5}})
	assert.Equal(t, []string{"a", "b"}, doc.Object().Keys())
	v, err := doc.Resolve("/a/0")
	require.NoError(t, err)
	assert.Equal(t, json.Number("2.5"), v)
}

func TestNative_ConvertsNumbers(t *testing.T) {
	doc, err := Parse([]byte(`{"i":3,"f":1.5,"s":"x"}`), FormatJSON)
	require.NoError(t, err)
	n := Native(doc.Root).(map[string]any)
	assert.Equal(t, int64(3), n["i"])
	assert.Equal(t, 1.5, n["f"])
	assert.Equal(t, "x", n["s"])
}
