package canonicalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJCS_SortsKeys(t *testing.T) {
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"b":2,"a":1}`), &v))

	b, err := JCS(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, string(b))
}

func TestJCS_RecursiveSorting(t *testing.T) {
	input := map[string]any{
		"z": map[string]any{"y": "foo", "x": "bar"},
		"a": []any{3, 1, 2},
	}

	b, err := JCS(input)
	require.NoError(t, err)
	assert.Equal(t, `{"a":[3,1,2],"z":{"x":"bar","y":"foo"}}`, string(b))
}

func TestJCS_NoEscaping(t *testing.T) {
	input := map[string]string{
		"html":    "<b> & </b>",
		"unicode": "こんにちは",
	}

	b, err := JCS(input)
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<b> & </b>","unicode":"こんにちは"}`, string(b))
}

func TestJCS_StructTagsHonored(t *testing.T) {
	type S struct {
		B int `json:"b"`
		A int `json:"a"`
	}
	h1, err := CanonicalHash(S{B: 2, A: 1})
	require.NoError(t, err)
	h2, err := CanonicalHash(map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestDigest_LowerHex(t *testing.T) {
	d := Digest([]byte("abc"))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", d)
}

func TestDigestText_NormalizesLineEndings(t *testing.T) {
	assert.Equal(t, DigestText("a\nb\n"), DigestText("a\r\nb\r\n"))
	assert.Equal(t, DigestText("a\nb"), DigestText("a\rb"))
	assert.NotEqual(t, DigestText("a\nb"), DigestText("a b"))
}

func TestDigestText_NFC(t *testing.T) {
	assert.Equal(t, DigestText("caf\u00e9"), DigestText("cafe\u0301"))
}

func TestEqual(t *testing.T) {
	ok, err := Equal(map[string]any{"a": 1, "b": []any{1, 2}}, map[string]any{"b": []any{1, 2}, "a": 1})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Equal([]any{1, 2}, []any{2, 1})
	require.NoError(t, err)
	assert.False(t, ok)
}
