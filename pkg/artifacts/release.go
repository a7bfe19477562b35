package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/canonicalize"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/conform"
)

// ReleaseManifestName is the manifest file name at the repository root.
const ReleaseManifestName = "RELEASE_MANIFEST.json"

var (
	ErrInvalidEngineVersion = errors.New("release: engine_version is not strict semver")
	ErrManifestHash         = errors.New("release: manifest_hash mismatch")
	ErrArtifactChanged      = errors.New("release: artifact digest mismatch")
)

// ReleaseArtifact is one released file.
type ReleaseArtifact struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// ReleaseManifest binds an engine version to its artifacts.
type ReleaseManifest struct {
	EngineVersion string            `json:"engine_version"`
	Artifacts     []ReleaseArtifact `json:"artifacts"`
	ManifestHash  string            `json:"manifest_hash"`
}

type manifestBody struct {
	EngineVersion string            `json:"engine_version"`
	Artifacts     []ReleaseArtifact `json:"artifacts"`
}

// ParseEngineVersion accepts only strict semver (no leading v, all three
// components).
func ParseEngineVersion(v string) (*semver.Version, error) {
	sv, err := semver.StrictNewVersion(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidEngineVersion, v, err)
	}
	return sv, nil
}

// BuildRelease digests each path (relative to root) and seals the manifest.
func BuildRelease(root, engineVersion string, paths []string) (*ReleaseManifest, error) {
	if _, err := ParseEngineVersion(engineVersion); err != nil {
		return nil, err
	}
	if err := conform.VerifyContracts(); err != nil {
		return nil, err
	}
	arts := make([]ReleaseArtifact, 0, len(paths))
	for _, p := range paths {
		rel := filepath.ToSlash(filepath.Clean(p))
		digest, err := FileDigest(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, err
		}
		arts = append(arts, ReleaseArtifact{Path: rel, SHA256: digest})
	}
	sort.Slice(arts, func(i, j int) bool { return arts[i].Path < arts[j].Path })

	m := &ReleaseManifest{EngineVersion: engineVersion, Artifacts: arts}
	hash, err := m.computeHash()
	if err != nil {
		return nil, err
	}
	m.ManifestHash = hash
	return m, nil
}

func (m *ReleaseManifest) computeHash() (string, error) {
	arts := m.Artifacts
	if arts == nil {
		arts = []ReleaseArtifact{}
	}
	return canonicalize.CanonicalHash(manifestBody{EngineVersion: m.EngineVersion, Artifacts: arts})
}

// Verify recomputes the manifest hash and every artifact digest, and checks
// the frozen engine contracts.
func (m *ReleaseManifest) Verify(root string) error {
	if err := conform.VerifyContracts(); err != nil {
		return err
	}
	if _, err := ParseEngineVersion(m.EngineVersion); err != nil {
		return err
	}
	want, err := m.computeHash()
	if err != nil {
		return err
	}
	if want != m.ManifestHash {
		return ErrManifestHash
	}
	for _, a := range m.Artifacts {
		got, err := FileDigest(filepath.Join(root, filepath.FromSlash(a.Path)))
		if err != nil {
			return err
		}
		if got != a.SHA256 {
			return fmt.Errorf("%s: %w", a.Path, ErrArtifactChanged)
		}
	}
	return nil
}

// WriteRelease writes the manifest as canonical JSON.
func WriteRelease(path string, m *ReleaseManifest) error {
	data, err := canonicalize.JCS(m)
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// ReadRelease loads a manifest.
func ReadRelease(path string) (*ReleaseManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read release manifest: %w", err)
	}
	var m ReleaseManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode release manifest: %w", err)
	}
	return &m, nil
}
