// Package determinism derives run seeds and builds the record needed to
// reproduce a compile run: the canonical spec, AST and checklist plus the
// seeds that produced them.
package determinism

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/canonicalize"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/conform"
)

// Seed names.
const (
	SeedRun     = "run"
	SeedLineage = "lineage"
)

// RequiredSeeds lists the seeds every record must carry.
func RequiredSeeds() []string {
	return []string{SeedLineage, SeedRun}
}

// Record keys, in canonical order.
const (
	KeyAST       = "ast"
	KeyChecklist = "checklist"
	KeySeeds     = "seeds"
	KeySpec      = "spec"
)

var recordKeys = []string{KeyAST, KeyChecklist, KeySeeds, KeySpec}

// Seeds maps seed name to a hex string.
type Seeds map[string]string

// DeriveSeeds returns every required seed. An override is used verbatim;
// otherwise the seed is sha256(name + 0x1f + specHash), so distinct seeds
// never coincide for one spec.
func DeriveSeeds(specHash string, overrides map[string]string) Seeds {
	out := make(Seeds, len(RequiredSeeds()))
	for _, name := range RequiredSeeds() {
		if v, ok := overrides[name]; ok && v != "" {
			out[name] = v
			continue
		}
		out[name] = canonicalize.Digest([]byte(name + "\x1f" + specHash))
	}
	return out
}

// Names returns the seed names, sorted.
func (s Seeds) Names() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clone returns a copy.
func (s Seeds) Clone() Seeds {
	out := make(Seeds, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Record is attached to every bundle as _determinism. Spec, AST and
// Checklist hold canonical JSON strings.
//
// EnvironmentRefusal is set when a gate that inspects the host (repo
// state, governance files, snapshot) refused the run. Replay does not
// consult the host, so it re-applies this refusal at the same gate.
type Record struct {
	Spec               string           `json:"spec"`
	AST                string           `json:"ast"`
	Checklist          string           `json:"checklist"`
	Seeds              Seeds            `json:"seeds"`
	EnvironmentRefusal *conform.Refusal `json:"environment_refusal,omitempty"`
}

// NewRecord canonicalizes the three inputs.
func NewRecord(spec, ast, checklist any, seeds Seeds) (Record, error) {
	specJSON, err := canonicalize.JCSString(spec)
	if err != nil {
		return Record{}, fmt.Errorf("canonical spec: %w", err)
	}
	astJSON, err := canonicalize.JCSString(ast)
	if err != nil {
		return Record{}, fmt.Errorf("canonical ast: %w", err)
	}
	checklistJSON, err := canonicalize.JCSString(checklist)
	if err != nil {
		return Record{}, fmt.Errorf("canonical checklist: %w", err)
	}
	return Record{
		Spec:      specJSON,
		AST:       astJSON,
		Checklist: checklistJSON,
		Seeds:     seeds.Clone(),
	}, nil
}

// RecordError reports an incomplete record. Code is
// determinism_record_missing:<key> or missing_seed:<name>.
type RecordError struct {
	Reason *conform.ReasonCode
	Name   string
}

func (e *RecordError) Error() string {
	return e.Reason.Code + ":" + e.Name
}

// Is matches the reason code sentinel.
func (e *RecordError) Is(target error) bool {
	return target == e.Reason
}

// Validate checks that every part and every required seed is present.
func (r Record) Validate() error {
	parts := map[string]string{
		KeyAST:       r.AST,
		KeyChecklist: r.Checklist,
		KeySpec:      r.Spec,
	}
	for _, k := range recordKeys {
		if k == KeySeeds {
			if r.Seeds == nil {
				return &RecordError{Reason: conform.ErrDeterminismRecordMissing, Name: k}
			}
			continue
		}
		if parts[k] == "" {
			return &RecordError{Reason: conform.ErrDeterminismRecordMissing, Name: k}
		}
	}
	for _, name := range RequiredSeeds() {
		if r.Seeds[name] == "" {
			return &RecordError{Reason: conform.ErrMissingSeed, Name: name}
		}
	}
	return nil
}

// Decode parses a record from JSON and validates it. Keys absent from the
// input are reported by name rather than decoded as empty values.
func Decode(data []byte) (Record, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, fmt.Errorf("decode determinism record: %w", err)
	}
	for _, k := range recordKeys {
		if _, ok := raw[k]; !ok {
			return Record{}, &RecordError{Reason: conform.ErrDeterminismRecordMissing, Name: k}
		}
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode determinism record: %w", err)
	}
	return r, r.Validate()
}

// Hash returns the canonical hash of the record.
func (r Record) Hash() (string, error) {
	return canonicalize.CanonicalHash(r)
}

// Explanation lists the top-level record keys whose canonical form differs.
type Explanation struct {
	DiffKeys []string `json:"diff_keys"`
}

// Comparison is the outcome of comparing a recorded run with a replay.
type Comparison struct {
	Match       bool        `json:"match"`
	Explanation Explanation `json:"explanation"`
}

// Compare compares two records key by key.
func Compare(expected, actual Record) (Comparison, error) {
	keys, err := DiffKeys(expected, actual)
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{Match: len(keys) == 0, Explanation: Explanation{DiffKeys: keys}}, nil
}

// DiffKeys returns the sorted top-level keys whose canonical forms differ.
func DiffKeys(a, b Record) ([]string, error) {
	ea, err := a.entries()
	if err != nil {
		return nil, err
	}
	eb, err := b.entries()
	if err != nil {
		return nil, err
	}
	keys := []string{}
	for _, k := range recordKeys {
		if ea[k] != eb[k] {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (r Record) entries() (map[string]string, error) {
	seeds, err := canonicalize.JCSString(r.Seeds)
	if err != nil {
		return nil, fmt.Errorf("canonical seeds: %w", err)
	}
	return map[string]string{
		KeyAST:       r.AST,
		KeyChecklist: r.Checklist,
		KeySeeds:     seeds,
		KeySpec:      r.Spec,
	}, nil
}
