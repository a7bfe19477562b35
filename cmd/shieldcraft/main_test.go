package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cliSpec = `{
  "metadata": {"product_id": "cli-demo", "spec_format": "canonical_json_v1", "version": "1"},
  "sections": [{"id": "core", "title": "Core service"}]
}`

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, stderr := run(t, "bogus")
	assert.Equal(t, exitRuntime, code)
	assert.Contains(t, stderr, "unknown command")
}

func TestCompile_WritesBundleAndStoresRun(t *testing.T) {
	dir := t.TempDir()
	specPath := writeFile(t, dir, "spec.json", cliSpec)
	outDir := filepath.Join(dir, "out")
	dbPath := filepath.Join(dir, "runs.db")

	code, stdout, stderr := run(t, "compile", specPath, "--out", outDir, "--store", dbPath)
	require.Equal(t, exitOK, code, stderr)

	var b map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &b))
	assert.Equal(t, true, b["valid"])
	assert.Equal(t, "cli-demo", b["product_id"])

	for _, name := range []string{bundleArtifact, evidenceArtifact} {
		assert.FileExists(t, filepath.Join(outDir, name+".json"))
		assert.FileExists(t, filepath.Join(outDir, name+".hash"))
	}
	written, err := os.ReadFile(filepath.Join(outDir, bundleArtifact+".json"))
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(stdout), string(written))

	code, stdout, stderr = run(t, "runs", "list", "--store", dbPath)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "cli-demo")

	hash, _ := b["codegen_bundle_hash"].(string)
	code, stdout, _ = run(t, "runs", "show", hash, "--store", dbPath)
	require.Equal(t, exitOK, code)
	assert.Equal(t, string(written), strings.TrimSpace(stdout))

	code, _, _ = run(t, "replay", "--store", dbPath, "--run", hash)
	assert.Equal(t, exitOK, code)

	code, _, _ = run(t, "runs", "show", "missing", "--store", dbPath)
	assert.Equal(t, exitFailed, code)
}

func TestCompile_RefusalExitsOne(t *testing.T) {
	dir := t.TempDir()
	specPath := writeFile(t, dir, "spec.json", `{"metadata":"oops"}`)

	code, stdout, stderr := run(t, "compile", specPath)
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stdout, `"valid":false`)
	assert.Contains(t, stderr, "schema_invalid")
}

func TestCompile_OutOfRangeNumberIsRefused(t *testing.T) {
	dir := t.TempDir()
	specPath := writeFile(t, dir, "spec.json", `{"metadata":{"product_id":"x","n":1e400},"sections":[]}`)

	code, stdout, _ := run(t, "compile", specPath)
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stdout, `"valid":false`)
	assert.Contains(t, stdout, "spec_malformed")
}

func TestCompile_MissingSpecIsRefused(t *testing.T) {
	code, stdout, _ := run(t, "compile", filepath.Join(t.TempDir(), "nope.json"))
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stdout, "spec_missing")
}

func TestReplay_BundleFile(t *testing.T) {
	dir := t.TempDir()
	specPath := writeFile(t, dir, "spec.json", cliSpec)
	outDir := filepath.Join(dir, "out")
	code, _, stderr := run(t, "compile", specPath, "--out", outDir)
	require.Equal(t, exitOK, code, stderr)
	bundlePath := filepath.Join(outDir, bundleArtifact+".json")

	code, stdout, stderr := run(t, "replay", bundlePath)
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, `{"explanation":{"diff_keys":[]},"match":true}`, strings.TrimSpace(stdout))

	data, err := os.ReadFile(bundlePath)
	require.NoError(t, err)
	var b map[string]any
	require.NoError(t, json.Unmarshal(data, &b))
	rec := b["_determinism"].(map[string]any)
	rec["checklist"] = "[]"
	tampered, err := json.Marshal(rec)
	require.NoError(t, err)
	recPath := writeFile(t, dir, "record.json", string(tampered))

	code, stdout, stderr = run(t, "replay", recPath)
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stdout, `"diff_keys":["checklist"]`)
	assert.Contains(t, stderr, "replay mismatch")

	code, _, _ = run(t, "replay")
	assert.Equal(t, exitRuntime, code)
}

func TestSnapshot_GenerateValidateDiff(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")
	writeFile(t, root, "src/b.txt", "beta")

	code, _, stderr := run(t, "snapshot", "generate", "--root", root)
	require.Equal(t, exitOK, code, stderr)
	manifest := filepath.Join(root, "artifacts", "repo_snapshot.json")
	assert.FileExists(t, manifest)

	code, stdout, _ := run(t, "snapshot", "validate", "--root", root)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "snapshot ok")

	writeFile(t, root, "a.txt", "changed")
	code, _, stderr = run(t, "snapshot", "validate", "--root", root)
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr, "snapshot_mismatch")

	other := filepath.Join(t.TempDir(), "after.json")
	code, _, _ = run(t, "snapshot", "generate", "--root", root, "--out", other)
	require.Equal(t, exitOK, code)

	code, stdout, _ = run(t, "snapshot", "diff", manifest, other)
	assert.Equal(t, exitFailed, code)
	assert.Equal(t, `{"added":[],"changed":["a.txt"],"removed":[]}`, strings.TrimSpace(stdout))

	code, _, _ = run(t, "snapshot", "diff", other, other)
	assert.Equal(t, exitOK, code)
}

func TestSnapshot_LegacyPathRefused(t *testing.T) {
	root := t.TempDir()
	code, _, stderr := run(t, "snapshot", "generate", "--root", root, "--out", filepath.Join(root, "repo_snapshot.json"))
	assert.Equal(t, exitRuntime, code)
	assert.Contains(t, stderr, "legacy_snapshot_forbidden")
}

func TestReleaseManifest_BuildVerify(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bin/engine", "binary")
	writeFile(t, root, "schema.json", "{}")

	code, stdout, stderr := run(t, "release-manifest", "build", "--root", root, "--engine-version", "1.2.3", "schema.json", "bin/engine")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "1.2.3")

	code, stdout, stderr = run(t, "release-manifest", "verify", "--root", root)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "2 artifacts")

	writeFile(t, root, "bin/engine", "patched")
	code, _, stderr = run(t, "release-manifest", "verify", "--root", root)
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr, "bin/engine")

	code, _, _ = run(t, "release-manifest", "build", "--root", root, "--engine-version", "v1.2", "schema.json")
	assert.Equal(t, exitRuntime, code)
}
