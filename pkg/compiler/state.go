package compiler

import (
	"path/filepath"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/ast"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/checklist"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/conform"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/derive"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/determinism"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/persona"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/spec"
)

// State is the mutable run state the gates fold over. It is owned by one
// compile run.
type State struct {
	Opts   *Options
	Replay bool

	// ReplayRefusal is the environment refusal carried by the record
	// being replayed, if any.
	ReplayRefusal *conform.Refusal

	SpecPath string
	LoadErr  error
	Doc      *spec.Document
	SpecHash string

	Violations []spec.Violation
	Tree       *ast.Tree
	Policy     checklist.SeverityPolicy
	Items      []checklist.Item
	Edges      []derive.Edge
	Derived    map[string]int

	Seeds      determinism.Seeds
	Persona    *persona.Result
	Attachment *checklist.AttachmentReport
	Record     *determinism.Record
	Readiness  conform.Readiness

	rules *derive.RuleEvaluator
}

func (s *State) hasRepo() bool {
	return s.Opts.RepoRoot != ""
}

func (s *State) inRepo(rel string) string {
	return joinRoot(s.Opts.RepoRoot, rel)
}

func joinRoot(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}
