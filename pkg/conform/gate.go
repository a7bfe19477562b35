// Package conform implements the governance gate engine.
//
// Gates are values folded in registration order over a per-run Context.
// Every gate outcome is appended to the Context's event ledger; a refusal
// stops the fold but the ledger and partial state remain inspectable.
package conform

// GateID is a stable gate identifier. The set is a frozen contract.
type GateID string

const (
	GateGovernancePresence   GateID = "G2_GOVERNANCE_PRESENCE_CHECK"
	GateRepoSync             GateID = "G3_REPO_SYNC_VERIFICATION"
	GateSchemaValidation     GateID = "G4_SCHEMA_VALIDATION"
	GateASTExtraction        GateID = "G5_AST_EXTRACTION"
	GateGeneratorPrepMissing GateID = "G10_GENERATOR_PREP_MISSING"
	GateRunTest              GateID = "G11_RUN_TEST_GATE"
	GateDerivationPasses     GateID = "G12_DERIVATION_PASSES"
	GatePersonaReview        GateID = "G13_PERSONA_REVIEW"
	GateSelfhostSandbox      GateID = "G14_SELFHOST_INPUT_SANDBOX"
	GateDisallowedArtifact   GateID = "G15_DISALLOWED_SELFHOST_ARTIFACT"
	GateDeterminismRecord    GateID = "G17_DETERMINISM_RECORD"
	GateReadinessGrade       GateID = "G18_READINESS_GRADE"
	GateChecklistModel       GateID = "G20/G21_CHECKLIST_MODEL_VALIDATION_ERRORS"
	GateInternalError        GateID = "G22_CODEGEN_INTERNAL_ERROR_RETURN"
)

// Phase names the pipeline stage a gate belongs to.
type Phase string

const (
	PhasePreflight   Phase = "PREFLIGHT"
	PhaseSchema      Phase = "SCHEMA"
	PhaseExtract     Phase = "EXTRACT"
	PhaseDerive      Phase = "DERIVE"
	PhaseNormalize   Phase = "NORMALIZE"
	PhasePersona     Phase = "PERSONA"
	PhaseTestAttach  Phase = "TEST_ATTACH"
	PhaseSnapshot    Phase = "SNAPSHOT"
	PhaseDeterminism Phase = "DETERMINISM"
	PhaseReadiness   Phase = "READINESS"
	PhaseInternal    Phase = "INTERNAL"
)

// Outcome is the kind of a gate event.
type Outcome string

const (
	OutcomePass       Outcome = "PASS"
	OutcomeFail       Outcome = "FAIL"
	OutcomeRefusal    Outcome = "REFUSAL"
	OutcomeDiagnostic Outcome = "DIAGNOSTIC"
)

// GateOutcome is what a gate returns. The engine turns it into one ledger
// event attributed to the gate.
type GateOutcome struct {
	Outcome   Outcome
	Code      string
	Message   string
	Invariant string
	Evidence  map[string]any
}

// Pass returns a PASS outcome.
func Pass(message string) GateOutcome {
	return GateOutcome{Outcome: OutcomePass, Message: message}
}

// Fail returns a non-fatal FAIL outcome tied to an invariant.
func Fail(invariant, code, message string) GateOutcome {
	return GateOutcome{Outcome: OutcomeFail, Invariant: invariant, Code: code, Message: message}
}

// Refuse returns a fatal outcome. The engine stops after recording it.
func Refuse(code, message string) GateOutcome {
	return GateOutcome{Outcome: OutcomeRefusal, Code: code, Message: message}
}

// Diagnostic returns an informational outcome.
func Diagnostic(code, message string) GateOutcome {
	return GateOutcome{Outcome: OutcomeDiagnostic, Code: code, Message: message}
}

// WithEvidence attaches evidence to the outcome.
func (o GateOutcome) WithEvidence(evidence map[string]any) GateOutcome {
	o.Evidence = evidence
	return o
}

// Gate is one step of the pipeline. Run must not mutate the Context ledger
// except through Record; returned errors are internal and become a
// G22 refusal.
type Gate[S any] struct {
	ID    GateID
	Phase Phase

	// Enabled, when set, decides whether the gate applies to this run.
	// Disabled gates neither run nor record.
	Enabled func(state S) bool

	Run func(cc *Context, state S) (GateOutcome, error)
}
