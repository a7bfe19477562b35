package testregistry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/checklist"
)

var _ checklist.TestRegistry = Static{}
var _ checklist.TestRegistry = GoScanner{}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestGoScanner(t *testing.T) {
	root := t.TempDir()
	write(t, root, "root_test.go", "package demo\n\nimport \"testing\"\n\nfunc TestTop(t *testing.T) {}\n")
	write(t, root, "pkg/alpha/alpha_test.go", `package alpha

import "testing"

func TestOne(t *testing.T) {}

func Testlower(t *testing.T) {}

func helper() {}

type s struct{}

func (s) TestMethod(t *testing.T) {}
`)
	write(t, root, "pkg/alpha/alpha.go", "package alpha\n\nfunc TestNotInTestFile() {}\n")
	write(t, root, "testdata/x_test.go", "package x\n\nfunc TestSkipped() {}\n")

	got, err := GoScanner{Root: root}.DiscoverTests()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"test::demo::TestTop":      "root_test.go:5",
		"test::pkg/alpha::TestOne": "pkg/alpha/alpha_test.go:5",
	}, got)

	for ref := range got {
		assert.Regexp(t, checklist.RefPattern, ref)
	}
}

func TestGoScanner_ParseError(t *testing.T) {
	root := t.TempDir()
	write(t, root, "bad_test.go", "package bad\n\nfunc {")
	_, err := GoScanner{Root: root}.DiscoverTests()
	assert.Error(t, err)

	_, err = GoScanner{}.DiscoverTests()
	assert.Error(t, err)
}

func TestStaticAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tests.txt")
	require.NoError(t, os.WriteFile(path, []byte("# registry\ntest::core::a core_test.go:3\n\ntest::core::b\n"), 0o644))

	reg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"test::core::a", "test::core::b"}, reg.Keys())

	m, err := reg.DiscoverTests()
	require.NoError(t, err)
	assert.Equal(t, "core_test.go:3", m["test::core::a"])

	require.NoError(t, os.WriteFile(path, []byte("a b c\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)

	assert.Equal(t, "test::m::n", Ref("m", "n"))
}
