// Package artifacts writes engine output files: canonical JSON documents
// paired with their SHA-256, and the release manifest.
package artifacts

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/canonicalize"
)

// Dir is the artifact directory relative to a repository root.
const Dir = "artifacts"

// ErrHashMismatch is returned when a paired hash file does not match.
var ErrHashMismatch = errors.New("artifacts: hash mismatch")

// Pair names a canonical JSON file and its hash file.
type Pair struct {
	JSONPath string `json:"json_path"`
	HashPath string `json:"hash_path"`
	Hash     string `json:"hash"`
}

// PairPaths returns <dir>/<name>.json and <dir>/<name>.hash.
func PairPaths(dir, name string) (jsonPath, hashPath string) {
	return filepath.Join(dir, name+".json"), filepath.Join(dir, name+".hash")
}

// WritePair writes the canonical JSON of v and its hex SHA-256. Both files
// are staged and renamed into place; if either cannot be committed,
// neither is left behind.
func WritePair(dir, name string, v any) (Pair, error) {
	data, err := canonicalize.JCS(v)
	if err != nil {
		return Pair{}, err
	}
	hash := canonicalize.Digest(data)
	jsonPath, hashPath := PairPaths(dir, name)

	//nolint:gosec // artifact directory is shared with readers
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Pair{}, fmt.Errorf("create artifact dir: %w", err)
	}
	if err := writeAtomic(jsonPath, data); err != nil {
		return Pair{}, err
	}
	if err := writeAtomic(hashPath, []byte(hash)); err != nil {
		_ = os.Remove(jsonPath)
		return Pair{}, err
	}
	return Pair{JSONPath: jsonPath, HashPath: hashPath, Hash: hash}, nil
}

// ReadPair reads a pair written by WritePair and verifies the hash.
func ReadPair(dir, name string) ([]byte, error) {
	jsonPath, hashPath := PairPaths(dir, name)
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", jsonPath, err)
	}
	want, err := os.ReadFile(hashPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", hashPath, err)
	}
	if got := canonicalize.Digest(data); got != string(bytes.TrimSpace(want)) {
		return nil, fmt.Errorf("%s: %w", jsonPath, ErrHashMismatch)
	}
	return data, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	//nolint:gosec // artifacts are world readable
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit %s: %w", path, err)
	}
	return nil
}

// FileDigest returns the SHA-256 of a file's bytes.
func FileDigest(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return canonicalize.Digest(data), nil
}
