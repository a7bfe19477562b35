package compiler

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/canonicalize"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/checklist"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/conform"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/derive"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/determinism"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/spec"
)

// runNamespace scopes run ids derived from run seeds.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://shieldcraft.schemas.local/run"))

// Lineage ties an item set to the spec it came from.
type Lineage struct {
	ProductID   string `json:"product_id"`
	SpecHash    string `json:"spec_hash"`
	ItemsHash   string `json:"items_hash"`
	LineageHash string `json:"lineage_hash"`
}

// Provenance describes how a bundle was produced.
type Provenance struct {
	SpecSHA256    string `json:"spec_sha256"`
	EngineVersion string `json:"engine_version"`
	ChecklistHash string `json:"checklist_hash"`
	TimestampUTC  string `json:"timestamp_utc"`
}

// Bundle is the output of one compile run. Refused runs still produce a
// well formed bundle with Valid false and the partial items.
type Bundle struct {
	Valid           bool                    `json:"valid"`
	State           conform.ConversionState `json:"state"`
	Refusal         *conform.Refusal        `json:"refusal,omitempty"`
	RunID           string                  `json:"run_id"`
	ProductID       string                  `json:"product_id"`
	Items           []checklist.Item        `json:"items"`
	Events          []conform.Event         `json:"events"`
	ChecklistHash   string                  `json:"checklist_hash"`
	Lineage         Lineage                 `json:"lineage"`
	Readiness       conform.Readiness       `json:"readiness"`
	DependencyEdges []derive.Edge           `json:"dependency_edges"`
	Provenance      Provenance              `json:"provenance"`
	Determinism     determinism.Record      `json:"_determinism"`

	CodegenBundleHash string `json:"codegen_bundle_hash"`
}

// Err returns the refusal as an error, or nil for a valid bundle.
func (b *Bundle) Err() error {
	if b.Refusal == nil {
		return nil
	}
	return b.Refusal
}

// Encode returns the canonical JSON form.
func (b *Bundle) Encode() ([]byte, error) {
	return canonicalize.JCS(b)
}

// ComputeHash returns the canonical hash of b with CodegenBundleHash blank.
func (b *Bundle) ComputeHash() (string, error) {
	c := *b
	c.CodegenBundleHash = ""
	return canonicalize.CanonicalHash(&c)
}

// EvidenceBundle is the portable proof of a checklist.
type EvidenceBundle struct {
	Checklist  []checklist.Item `json:"checklist"`
	Provenance Provenance       `json:"provenance"`
	Hash       string           `json:"hash"`
}

// Evidence builds the evidence bundle for b.
func (b *Bundle) Evidence() (EvidenceBundle, error) {
	h, err := canonicalize.CanonicalHash(map[string]any{
		"checklist":  b.Items,
		"provenance": b.Provenance,
	})
	if err != nil {
		return EvidenceBundle{}, fmt.Errorf("evidence hash: %w", err)
	}
	return EvidenceBundle{Checklist: b.Items, Provenance: b.Provenance, Hash: h}, nil
}

// NewLineage computes the lineage hash over product id, spec hash and
// items hash.
func NewLineage(productID, specHash, itemsHash string) (Lineage, error) {
	h, err := canonicalize.CanonicalHash(map[string]string{
		"product_id": productID,
		"spec_hash":  specHash,
		"items_hash": itemsHash,
	})
	if err != nil {
		return Lineage{}, err
	}
	return Lineage{ProductID: productID, SpecHash: specHash, ItemsHash: itemsHash, LineageHash: h}, nil
}

// RunID is the UUIDv5 of the run seed.
func RunID(runSeed string) string {
	return uuid.NewSHA1(runNamespace, []byte(runSeed)).String()
}

func assemble(s *State, cc *conform.Context, refusal *conform.Refusal, now time.Time) (*Bundle, error) {
	items := s.Items
	if items == nil {
		items = []checklist.Item{}
	}
	edges := s.Edges
	if edges == nil {
		edges = []derive.Edge{}
	}

	checklistHash, err := checklist.Hash(items)
	if err != nil {
		return nil, fmt.Errorf("checklist hash: %w", err)
	}
	var productID string
	if s.Doc != nil {
		if md, ok := spec.Lookup(s.Doc.Root, "metadata"); ok {
			productID, _ = spec.LookupString(md, "product_id")
		}
	}
	lineage, err := NewLineage(productID, s.SpecHash, checklistHash)
	if err != nil {
		return nil, fmt.Errorf("lineage: %w", err)
	}

	b := &Bundle{
		Valid:           refusal == nil,
		State:           conversionState(s, cc, refusal),
		Refusal:         refusal,
		RunID:           RunID(s.Seeds[determinism.SeedRun]),
		ProductID:       productID,
		Items:           items,
		Events:          cc.Events(),
		ChecklistHash:   checklistHash,
		Lineage:         lineage,
		Readiness:       s.Readiness,
		DependencyEdges: edges,
		Provenance: Provenance{
			SpecSHA256:    s.SpecHash,
			EngineVersion: s.Opts.EngineVersion,
			ChecklistHash: checklistHash,
			TimestampUTC:  now.UTC().Format(time.RFC3339),
		},
	}
	if s.Record != nil {
		b.Determinism = *s.Record
	}
	h, err := b.ComputeHash()
	if err != nil {
		return nil, fmt.Errorf("bundle hash: %w", err)
	}
	b.CodegenBundleHash = h
	return b, nil
}

// conversionState is the highest state the run satisfied.
func conversionState(s *State, cc *conform.Context, refusal *conform.Refusal) conform.ConversionState {
	if refusal != nil {
		return conform.StateIncomplete
	}
	if len(s.Items) == 0 || cc.Has(conform.GateGeneratorPrepMissing, conform.OutcomeDiagnostic) {
		return conform.StateAccepted
	}
	for _, it := range s.Items {
		if it.Severity == checklist.SeverityCritical && !it.Disabled() {
			return conform.StateConvertible
		}
	}
	for _, it := range s.Items {
		if it.Disabled() {
			return conform.StateStructured
		}
	}
	if s.Attachment == nil || !s.Attachment.OK() || !s.Readiness.Ready() {
		return conform.StateValid
	}
	return conform.StateReady
}
