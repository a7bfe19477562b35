package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/conform"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestGenerate_SortedSkipsGitAndEmptyDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.txt", "b")
	writeFile(t, root, "a/z.txt", "z")
	writeFile(t, root, ".git/HEAD", "ref")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	m, err := Generate(root)
	require.NoError(t, err)
	assert.Equal(t, Version, m.Version)
	assert.Equal(t, HashAlgorithm, m.HashAlgorithm)
	require.Len(t, m.Files, 2)
	assert.Equal(t, "a/z.txt", m.Files[0].Path)
	assert.Equal(t, "b.txt", m.Files[1].Path)
	assert.Equal(t, int64(1), m.Files[1].Size)
	assert.Len(t, m.TreeHash, 64)

	again, err := Generate(root)
	require.NoError(t, err)
	assert.Equal(t, m.TreeHash, again.TreeHash)
}

func TestValidate_Mismatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/main.txt", "one")

	m, err := Generate(root)
	require.NoError(t, err)
	path := filepath.Join(root, DefaultPath)
	require.NoError(t, Write(m, path, root))
	require.NoError(t, Validate(path, root))

	writeFile(t, root, "src/main.txt", "two")
	err = Validate(path, root)
	require.Error(t, err)

	var se *SnapshotError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "snapshot_mismatch", se.Code)
	assert.Contains(t, se.Detail, "changed=src/main.txt")
	assert.True(t, errors.Is(err, conform.ErrSnapshotMismatch))
}

func TestValidate_MissingAndInvalid(t *testing.T) {
	root := t.TempDir()
	err := FileValidator{}.ValidateSnapshot(filepath.Join(root, DefaultPath), root)
	assert.True(t, errors.Is(err, conform.ErrSnapshotMissing))

	writeFile(t, root, DefaultPath, `{"version":"v9","hash_algorithm":"sha256","files":[],"tree_hash":""}`)
	err = Validate(filepath.Join(root, DefaultPath), root)
	var se *SnapshotError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "snapshot_invalid", se.Code)
	assert.Contains(t, se.Detail, "unknown version v9")

	writeFile(t, root, DefaultPath, `not json`)
	err = Validate(filepath.Join(root, DefaultPath), root)
	assert.True(t, errors.Is(err, conform.ErrSnapshotInvalid))
}

func TestRead_TamperedTreeHash(t *testing.T) {
	r := strings.NewReader(`{"version":"v1","hash_algorithm":"sha256","files":[{"path":"a","sha256":"00","size":1}],"tree_hash":"ff"}`)
	_, err := Decode(r)
	assert.True(t, errors.Is(err, conform.ErrSnapshotInvalid))
}

func TestWrite_LegacyPathForbidden(t *testing.T) {
	root := t.TempDir()
	m, err := Generate(root)
	require.NoError(t, err)
	err = Write(m, filepath.Join(root, LegacyPath), root)
	assert.True(t, errors.Is(err, conform.ErrLegacySnapshot))
	assert.True(t, IsLegacyPath("repo_snapshot.json", ""))
	assert.False(t, IsLegacyPath(DefaultPath, ""))
}

func TestDiffManifests(t *testing.T) {
	a := &Manifest{Files: []File{{Path: "keep", SHA256: "1"}, {Path: "gone", SHA256: "2"}, {Path: "edit", SHA256: "3"}}}
	b := &Manifest{Files: []File{{Path: "keep", SHA256: "1"}, {Path: "new", SHA256: "4"}, {Path: "edit", SHA256: "5"}}}

	d := DiffManifests(a, b)
	assert.Equal(t, []string{"new"}, d.Added)
	assert.Equal(t, []string{"gone"}, d.Removed)
	assert.Equal(t, []string{"edit"}, d.Changed)
	assert.True(t, DiffManifests(a, a).Empty())
}

func manifestOf(entries map[string]string) *Manifest {
	m := &Manifest{Version: Version, HashAlgorithm: HashAlgorithm}
	for p, h := range entries {
		m.Files = append(m.Files, File{Path: p, SHA256: h})
	}
	sort.Slice(m.Files, func(i, j int) bool { return m.Files[i].Path < m.Files[j].Path })
	return m
}

func TestDiffSymmetry(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	entries := gen.MapOf(gen.Identifier(), gen.OneConstOf("h1", "h2", "h3"))

	properties.Property("added(a,b) == removed(b,a)", prop.ForAll(
		func(x, y map[string]string) bool {
			a, b := manifestOf(x), manifestOf(y)
			ab, ba := DiffManifests(a, b), DiffManifests(b, a)
			return strings.Join(ab.Added, ",") == strings.Join(ba.Removed, ",") &&
				strings.Join(ab.Changed, ",") == strings.Join(ba.Changed, ",")
		},
		entries, entries,
	))

	properties.Property("diff(a,a) is empty", prop.ForAll(
		func(x map[string]string) bool {
			a := manifestOf(x)
			return DiffManifests(a, a).Empty()
		},
		entries,
	))

	properties.Property("tree hash ignores entry order", prop.ForAll(
		func(x map[string]string) bool {
			a := manifestOf(x)
			rev := append([]File(nil), a.Files...)
			for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
				rev[i], rev[j] = rev[j], rev[i]
			}
			h1, err1 := TreeHash(a.Files)
			h2, err2 := TreeHash(rev)
			return err1 == nil && err2 == nil && h1 == h2
		},
		entries,
	))

	properties.TestingRun(t)
}
