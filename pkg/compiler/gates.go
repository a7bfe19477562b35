package compiler

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/ast"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/checklist"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/config"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/conform"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/derive"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/determinism"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/persona"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/registry"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/snapshot"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/spec"
)

// Gates returns the compile pipeline in execution order.
func Gates() []conform.Gate[*State] {
	return []conform.Gate[*State]{
		environmentGate(conform.GateGovernancePresence, conform.PhasePreflight, (*State).hasRepo, governancePresence),
		environmentGate(conform.GateSelfhostSandbox, conform.PhasePreflight, func(s *State) bool { return s.Opts.SelfBuild }, selfhostSandbox),
		{ID: conform.GateSchemaValidation, Phase: conform.PhaseSchema, Run: schemaValidation},
		{ID: conform.GateASTExtraction, Phase: conform.PhaseExtract, Run: astExtraction},
		{ID: conform.GateGeneratorPrepMissing, Phase: conform.PhaseExtract, Run: generatorPrep},
		{ID: conform.GateDerivationPasses, Phase: conform.PhaseDerive, Run: derivationPasses},
		{ID: conform.GateChecklistModel, Phase: conform.PhaseNormalize, Run: checklistModel},
		{ID: conform.GatePersonaReview, Phase: conform.PhasePersona, Enabled: func(s *State) bool { return s.Opts.PersonaEnabled }, Run: personaReview},
		{ID: conform.GateRunTest, Phase: conform.PhaseTestAttach, Run: runTest},
		environmentGate(conform.GateRepoSync, conform.PhaseSnapshot, func(*State) bool { return true }, repoSync),
		{ID: conform.GateDisallowedArtifact, Phase: conform.PhaseSnapshot, Run: disallowedArtifact},
		{ID: conform.GateDeterminismRecord, Phase: conform.PhaseDeterminism, Run: determinismRecord},
		{ID: conform.GateReadinessGrade, Phase: conform.PhaseReadiness, Run: readinessGrade},
	}
}

// environmentGate builds a gate that inspects the local repository.
// Replays never inspect the host: the gate is skipped, unless the record
// carries a refusal from this gate, which is then reproduced verbatim.
func environmentGate(id conform.GateID, phase conform.Phase, pred func(*State) bool, run func(*conform.Context, *State) (conform.GateOutcome, error)) conform.Gate[*State] {
	return conform.Gate[*State]{
		ID:    id,
		Phase: phase,
		Enabled: func(s *State) bool {
			if s.Replay {
				return s.ReplayRefusal != nil && s.ReplayRefusal.GateID == id
			}
			return pred(s)
		},
		Run: func(cc *conform.Context, s *State) (conform.GateOutcome, error) {
			if s.Replay {
				r := s.ReplayRefusal
				return conform.Refuse(r.Code, r.Message).
					WithEvidence(map[string]any{"replayed": true}), nil
			}
			return run(cc, s)
		},
	}
}

// isEnvironmentGate reports whether id names a gate built by
// environmentGate.
func isEnvironmentGate(id conform.GateID) bool {
	switch id {
	case conform.GateGovernancePresence, conform.GateSelfhostSandbox, conform.GateRepoSync:
		return true
	}
	return false
}

func governancePresence(_ *conform.Context, s *State) (conform.GateOutcome, error) {
	var missing []string
	for _, rel := range s.Opts.GovernancePaths {
		if _, err := os.Stat(s.inRepo(rel)); err != nil {
			missing = append(missing, rel)
		}
	}
	if len(missing) > 0 {
		return conform.Refuse(conform.ErrGovernanceFileMissing.Code,
			fmt.Sprintf("governance files missing: %s", strings.Join(missing, ", "))).
			WithEvidence(map[string]any{"missing": missing}), nil
	}
	return conform.Pass(fmt.Sprintf("%d governance files present", len(s.Opts.GovernancePaths))), nil
}

func selfhostSandbox(_ *conform.Context, s *State) (conform.GateOutcome, error) {
	o := s.Opts
	if !within(o.SandboxRoot, s.SpecPath) {
		return conform.Refuse(conform.ErrSelfhostInputOutsideSandbox.Code,
			fmt.Sprintf("spec %q is outside sandbox %q", s.SpecPath, o.SandboxRoot)), nil
	}
	if o.SelfBuildAllowDirty {
		return conform.Pass("spec inside sandbox; dirty worktree allowed"), nil
	}
	root := o.RepoRoot
	if root == "" {
		root = o.SandboxRoot
	}
	if err := o.SnapshotValidator.ValidateSnapshot(joinRoot(root, o.SnapshotPath), root); err != nil {
		return conform.Refuse(conform.ErrSelfhostWorktreeDirty.Code, err.Error()), nil
	}
	return conform.Pass("spec inside sandbox; worktree clean"), nil
}

// within reports whether p lies inside root. Empty paths are never inside.
func within(root, p string) bool {
	if root == "" || p == "" {
		return false
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func schemaValidation(_ *conform.Context, s *State) (conform.GateOutcome, error) {
	if s.LoadErr != nil {
		code := conform.ErrSpecMalformed.Code
		if errors.Is(s.LoadErr, spec.ErrSpecMissing) {
			code = conform.ErrSpecMissing.Code
		}
		return conform.Refuse(code, s.LoadErr.Error()), nil
	}
	if s.Opts.Schema == nil {
		return conform.Refuse(conform.ErrSchemaMissing.Code, "no schema validator configured"), nil
	}
	ok, violations := s.Opts.Schema.Validate(s.Doc)
	if ok {
		return conform.Pass("spec conforms to schema"), nil
	}
	s.Violations = violations
	for _, v := range violations {
		s.Items = append(s.Items, schemaItem(v))
	}
	s.Items = checklist.CanonicalSort(s.Items)
	return conform.Refuse(conform.ErrSchemaInvalid.Code,
		fmt.Sprintf("%d schema violations", len(violations))).
		WithEvidence(map[string]any{"violations": violations}), nil
}

func schemaItem(v spec.Violation) checklist.Item {
	text := fmt.Sprintf("%s: %s", conform.GateSchemaValidation, v.Message)
	return checklist.Item{
		ID:             checklist.SynthesizeID(v.Pointer, text),
		Ptr:            v.Pointer,
		SpecPointer:    v.Pointer,
		Text:           text,
		Classification: checklist.ClassGovernance,
		Severity:       checklist.SeverityCritical,
		TestRefs:       []string{},
		Meta: checklist.Meta{
			Source:        checklist.SourceDerived,
			InferenceType: checklist.InferenceNone,
			Justification: "schema violation",
		},
		Evidence:      map[string]any{"gate": string(conform.GateSchemaValidation)},
		QualityStatus: checklist.QualityValid,
	}
}

func astExtraction(_ *conform.Context, s *State) (conform.GateOutcome, error) {
	s.Tree = ast.Build(s.Doc)
	s.Policy = checklist.PolicyFromSpec(s.Doc)
	s.Items = checklist.Canonicalize(checklist.Extract(s.Tree), s.Policy)
	return conform.Pass(fmt.Sprintf("extracted %d items", len(s.Items))).
		WithEvidence(map[string]any{"items": len(s.Items), "ast_nodes": s.Tree.Size()}), nil
}

func generatorPrep(_ *conform.Context, s *State) (conform.GateOutcome, error) {
	sections, _ := spec.Lookup(s.Doc.Root, "sections")
	if list, ok := sections.([]any); !ok || len(list) == 0 {
		return conform.Diagnostic(conform.ErrGeneratorPrepMissing.Code, "spec declares no sections"), nil
	}
	actionable := 0
	for _, it := range s.Items {
		if it.Classification != checklist.ClassMetadata {
			actionable++
		}
	}
	if actionable == 0 {
		return conform.Diagnostic(conform.ErrGeneratorPrepMissing.Code, "no actionable items"), nil
	}
	return conform.Pass(fmt.Sprintf("%d actionable items", actionable)), nil
}

func derivationPasses(_ *conform.Context, s *State) (conform.GateOutcome, error) {
	res := derive.Run(s.Doc, s.Tree, s.rules)
	s.Edges = res.Edges
	s.Derived = res.Counts()
	s.Items = checklist.Canonicalize(append(s.Items, res.Items...), s.Policy)

	counts := make(map[string]any, len(s.Derived))
	for k, v := range s.Derived {
		counts[k] = v
	}
	return conform.Pass(fmt.Sprintf("derived %d items, %d edges", len(res.Items), len(res.Edges))).
		WithEvidence(counts), nil
}

func checklistModel(cc *conform.Context, s *State) (conform.GateOutcome, error) {
	invalid := 0
	for i := range s.Items {
		s.Items[i] = checklist.NormalizeItem(cc, s.Items[i])
		if s.Items[i].Disabled() {
			invalid++
		}
	}
	s.Items = checklist.MarkDeterminism(s.Items, s.Seeds[determinism.SeedRun])
	if invalid > 0 {
		return conform.Diagnostic("", fmt.Sprintf("%d items disabled by model validation", invalid)), nil
	}
	return conform.Pass("all items valid"), nil
}

func personaReview(_ *conform.Context, s *State) (conform.GateOutcome, error) {
	res := persona.Review(s.Opts.Personas.List(), s.Items)
	s.Persona = &res
	if s.Opts.ArtifactDir != "" && !s.Replay {
		if _, err := persona.WriteEvents(s.Opts.ArtifactDir, res.Events); err != nil {
			return conform.GateOutcome{}, err
		}
	}

	violations := res.Violations()
	if vetoes := res.Vetoes(); len(vetoes) > 0 {
		ids := make([]string, 0, len(vetoes))
		for _, e := range vetoes {
			ids = append(ids, e.ItemID)
		}
		msg := fmt.Sprintf("%d items vetoed", len(vetoes))
		evidence := map[string]any{"item_ids": ids}
		// One event per gate: contract violations ride along with the veto.
		if len(violations) > 0 {
			msg += fmt.Sprintf("; %d persona contract violations", len(violations))
			evidence["violations"] = violations
		}
		return conform.Fail(conform.PropertyPersonaNoVeto, "persona_veto", msg).
			WithEvidence(evidence), nil
	}
	if len(violations) > 0 {
		return conform.Diagnostic(violations[0].Code,
			fmt.Sprintf("%d persona contract violations", len(violations))).
			WithEvidence(map[string]any{"events": violations}), nil
	}
	return conform.Pass(fmt.Sprintf("%d personas reviewed", s.Opts.Personas.Len())), nil
}

func runTest(_ *conform.Context, s *State) (conform.GateOutcome, error) {
	s.Items = checklist.AttachTestRefs(s.Items, checklist.AttachmentsFromSpec(s.Doc))
	report, err := checklist.ValidateTestsAttached(s.Items, s.Opts.TestRegistry)
	if err != nil {
		return conform.GateOutcome{}, err
	}
	s.Attachment = &report
	if report.OK() {
		return conform.Pass("tests attached"), nil
	}

	var ierr *checklist.InvariantError
	if !errors.As(report.Err(), &ierr) {
		return conform.GateOutcome{}, fmt.Errorf("unexpected attachment error: %v", report.Err())
	}
	evidence := map[string]any{"missing": report.Missing, "unresolved": report.Unresolved}
	if s.Opts.EnforceTestAttachment {
		out := conform.Refuse(ierr.Code, ierr.Error()).WithEvidence(evidence)
		out.Invariant = conform.PropertyTestsAttached
		return out, nil
	}
	return conform.Fail(conform.PropertyTestsAttached, ierr.Code, ierr.Error()).WithEvidence(evidence), nil
}

func repoSync(_ *conform.Context, s *State) (conform.GateOutcome, error) {
	o := s.Opts
	if !s.hasRepo() {
		return conform.Diagnostic(conform.ErrSyncNotConfigured.Code, "no repository root configured"), nil
	}
	if _, err := os.Stat(s.inRepo(snapshot.LegacyPath)); err == nil {
		return conform.Refuse(conform.ErrLegacySnapshot.Code,
			fmt.Sprintf("legacy snapshot %s present at repository root", snapshot.LegacyPath)), nil
	}

	snapPath := s.inRepo(o.SnapshotPath)
	authority := string(o.SyncAuthority)
	switch o.SyncAuthority {
	case config.SyncExternal:
		if !o.AllowExternalSync {
			serr := &conform.SyncError{Authority: authority, Code: conform.ErrSyncAuthorityDenied.Code, Detail: "external sync not allowed"}
			return conform.Refuse(serr.Code, serr.Error()), nil
		}
		return conform.Pass("external sync authority accepted"), nil
	case config.SyncRepoState:
		if _, err := os.Stat(snapPath); errors.Is(err, os.ErrNotExist) {
			return conform.Diagnostic(conform.ErrSnapshotMissing.Code, "no snapshot recorded"), nil
		}
	case config.SyncSnapshotMandatory:
	default:
		return conform.GateOutcome{}, fmt.Errorf("unknown sync authority %q", authority)
	}

	if err := o.SnapshotValidator.ValidateSnapshot(snapPath, o.RepoRoot); err != nil {
		serr := &conform.SyncError{Authority: authority, Code: conform.ErrSnapshotInvalid.Code, Detail: err.Error()}
		var se *snapshot.SnapshotError
		if errors.As(err, &se) {
			serr.Code = se.Code
		}
		return conform.Refuse(serr.Code, serr.Error()), nil
	}
	return conform.Pass("snapshot matches repository"), nil
}

func disallowedArtifact(_ *conform.Context, s *State) (conform.GateOutcome, error) {
	raw, err := s.Doc.Resolve("/pipeline/outputs")
	if err != nil {
		return conform.Pass("no declared outputs"), nil
	}
	list, _ := raw.([]any)
	var bad []string
	for _, e := range list {
		out, ok := e.(string)
		if !ok {
			continue
		}
		if reason := artifactViolation(out); reason != "" {
			bad = append(bad, out+" ("+reason+")")
		}
	}
	if len(bad) > 0 {
		return conform.Refuse(conform.ErrDisallowedArtifact.Code,
			"disallowed outputs: "+strings.Join(bad, ", ")), nil
	}
	return conform.Pass(fmt.Sprintf("%d declared outputs allowed", len(list))), nil
}

func artifactViolation(out string) string {
	slashed := filepath.ToSlash(out)
	if path.IsAbs(slashed) || filepath.IsAbs(out) {
		return "absolute path"
	}
	clean := path.Clean(slashed)
	switch {
	case clean == ".." || strings.HasPrefix(clean, "../"):
		return "escapes repository root"
	case clean == ".git" || strings.HasPrefix(clean, ".git/"):
		return "inside .git"
	case clean == snapshot.LegacyPath:
		return "legacy snapshot location"
	}
	return ""
}

func determinismRecord(_ *conform.Context, s *State) (conform.GateOutcome, error) {
	rec, err := buildRecord(s)
	if err != nil {
		return conform.GateOutcome{}, err
	}
	s.Record = &rec
	if err := rec.Validate(); err != nil {
		var rerr *determinism.RecordError
		if errors.As(err, &rerr) {
			return conform.Refuse(rerr.Reason.Code, err.Error()), nil
		}
		return conform.GateOutcome{}, err
	}
	h, err := rec.Hash()
	if err != nil {
		return conform.GateOutcome{}, err
	}
	return conform.Pass("determinism record complete").
		WithEvidence(map[string]any{"record_hash": h}), nil
}

func buildRecord(s *State) (determinism.Record, error) {
	var specValue, astValue any
	if s.Doc != nil {
		specValue = s.Doc.Plain()
	}
	if s.Tree != nil {
		astValue = s.Tree.Canonical()
	}
	items := s.Items
	if items == nil {
		items = []checklist.Item{}
	}
	return determinism.NewRecord(specValue, astValue, items, s.Seeds)
}

func readinessGrade(cc *conform.Context, s *State) (conform.GateOutcome, error) {
	s.Readiness = conform.EvaluateReadiness(cc.Events(), blockingMap(s))
	evidence := map[string]any{
		"grade":        string(s.Readiness.Grade),
		"blocking":     s.Readiness.Blocking,
		"non_blocking": s.Readiness.NonBlocking,
	}
	if !s.Readiness.Ready() {
		return conform.Diagnostic("", "readiness grade F").WithEvidence(evidence), nil
	}
	return conform.Pass("readiness grade " + string(s.Readiness.Grade)).WithEvidence(evidence), nil
}

func blockingMap(s *State) map[string]bool {
	return registry.BlockingMap(s.Opts.Properties)
}
