// Package snapshot builds and checks content-addressed manifests of a
// repository tree. The repo-sync gate consumes them through Validator.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/canonicalize"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/conform"
)

const (
	Version       = "v1"
	HashAlgorithm = "sha256"

	// DefaultPath is where the manifest lives, relative to the repo root.
	DefaultPath = "artifacts/repo_snapshot.json"
	// LegacyPath is the forbidden pre-v1 location.
	LegacyPath = "repo_snapshot.json"
)

// File is one manifest entry. Path is slash separated and relative to
// the snapshot root.
type File struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Manifest describes a tree.
type Manifest struct {
	Version       string `json:"version"`
	HashAlgorithm string `json:"hash_algorithm"`
	Files         []File `json:"files"`
	TreeHash      string `json:"tree_hash"`
}

// Validator checks a stored manifest against a repository.
type Validator interface {
	ValidateSnapshot(path, repoRoot string) error
}

// SnapshotError is the closed failure taxonomy of this package.
type SnapshotError struct {
	Code   string
	Path   string
	Detail string
}

func (e *SnapshotError) Error() string {
	msg := "snapshot: " + e.Code
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is matches conform reason code sentinels.
func (e *SnapshotError) Is(target error) bool {
	rc, ok := target.(*conform.ReasonCode)
	return ok && rc.Code == e.Code
}

func snapErr(code *conform.ReasonCode, path, detail string) *SnapshotError {
	return &SnapshotError{Code: code.Code, Path: path, Detail: detail}
}

// TreeHash is the SHA-256 of the canonical JSON of files sorted by path.
func TreeHash(files []File) (string, error) {
	sorted := append([]File(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	if sorted == nil {
		sorted = []File{}
	}
	return canonicalize.CanonicalHash(sorted)
}

// Generate walks root in sorted path order. .git directories are skipped,
// empty directories contribute nothing, and the manifest's own default
// location is excluded so a written snapshot still validates.
func Generate(root string) (*Manifest, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == DefaultPath {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)

	files := make([]File, 0, len(paths))
	for _, rel := range paths {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rel, err)
		}
		files = append(files, File{Path: rel, SHA256: canonicalize.Digest(data), Size: int64(len(data))})
	}
	treeHash, err := TreeHash(files)
	if err != nil {
		return nil, err
	}
	return &Manifest{Version: Version, HashAlgorithm: HashAlgorithm, Files: files, TreeHash: treeHash}, nil
}

// Diff lists paths added, removed and changed going from a to b.
type Diff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Changed []string `json:"changed"`
}

// Empty reports whether the manifests describe the same tree.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DiffManifests compares two manifests by path and content hash.
func DiffManifests(a, b *Manifest) Diff {
	before := index(a)
	after := index(b)
	d := Diff{Added: []string{}, Removed: []string{}, Changed: []string{}}
	for p, h := range after {
		old, ok := before[p]
		switch {
		case !ok:
			d.Added = append(d.Added, p)
		case old != h:
			d.Changed = append(d.Changed, p)
		}
	}
	for p := range before {
		if _, ok := after[p]; !ok {
			d.Removed = append(d.Removed, p)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Changed)
	return d
}

func index(m *Manifest) map[string]string {
	out := make(map[string]string)
	if m == nil {
		return out
	}
	for _, f := range m.Files {
		out[f.Path] = f.SHA256
	}
	return out
}

// Check verifies the version, algorithm and tree hash of a manifest.
func (m *Manifest) Check() error {
	if m.Version != Version {
		return snapErr(conform.ErrSnapshotInvalid, "", "unknown version "+m.Version)
	}
	if m.HashAlgorithm != HashAlgorithm {
		return snapErr(conform.ErrSnapshotInvalid, "", "unknown hash_algorithm "+m.HashAlgorithm)
	}
	want, err := TreeHash(m.Files)
	if err != nil {
		return snapErr(conform.ErrSnapshotInvalid, "", err.Error())
	}
	if want != m.TreeHash {
		return snapErr(conform.ErrSnapshotInvalid, "", "tree_hash does not match files")
	}
	return nil
}

// Decode parses and checks a manifest.
func Decode(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, snapErr(conform.ErrSnapshotInvalid, "", err.Error())
	}
	if err := m.Check(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Read loads a manifest from path.
func Read(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, snapErr(conform.ErrSnapshotMissing, path, "")
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	m, err := Decode(f)
	var se *SnapshotError
	if errors.As(err, &se) {
		se.Path = path
	}
	return m, err
}

// Encode returns the canonical JSON of m.
func (m *Manifest) Encode() ([]byte, error) {
	return canonicalize.JCS(m)
}

// Write stores m at path. Writing to the legacy root location is refused.
func Write(m *Manifest, path, repoRoot string) error {
	if IsLegacyPath(path, repoRoot) {
		return snapErr(conform.ErrLegacySnapshot, path, "use "+DefaultPath)
	}
	data, err := m.Encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// IsLegacyPath reports whether path is the forbidden root-level manifest.
func IsLegacyPath(path, repoRoot string) bool {
	if repoRoot == "" {
		return filepath.ToSlash(filepath.Clean(path)) == LegacyPath
	}
	rel, err := filepath.Rel(repoRoot, path)
	if err != nil {
		return false
	}
	return filepath.ToSlash(rel) == LegacyPath
}

// Validate compares the manifest at path with a fresh snapshot of
// repoRoot.
func Validate(path, repoRoot string) error {
	stored, err := Read(path)
	if err != nil {
		return err
	}
	current, err := Generate(repoRoot)
	if err != nil {
		return fmt.Errorf("generate snapshot: %w", err)
	}
	if stored.TreeHash == current.TreeHash {
		return nil
	}
	d := DiffManifests(stored, current)
	return snapErr(conform.ErrSnapshotMismatch, path, summarize(d))
}

func summarize(d Diff) string {
	var parts []string
	if len(d.Added) > 0 {
		parts = append(parts, "added="+strings.Join(d.Added, ","))
	}
	if len(d.Removed) > 0 {
		parts = append(parts, "removed="+strings.Join(d.Removed, ","))
	}
	if len(d.Changed) > 0 {
		parts = append(parts, "changed="+strings.Join(d.Changed, ","))
	}
	return strings.Join(parts, " ")
}

// FileValidator implements Validator over the local filesystem.
type FileValidator struct{}

// ValidateSnapshot implements Validator.
func (FileValidator) ValidateSnapshot(path, repoRoot string) error {
	return Validate(path, repoRoot)
}
