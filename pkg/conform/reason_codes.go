package conform

// ReasonCode is a stable failure identifier. Codes MUST NOT change between
// releases.
type ReasonCode struct {
	Code string
}

func (r *ReasonCode) Error() string { return r.Code }

func reason(code string) *ReasonCode { return &ReasonCode{Code: code} }

// --- Validation ---
var (
	ErrSchemaMissing               = reason("schema_missing")
	ErrSchemaInvalid               = reason("schema_invalid")
	ErrSpecMissing                 = reason("spec_missing")
	ErrSpecMalformed               = reason("spec_malformed")
	ErrMissingSpecPointer          = reason("missing_spec_pointer")
	ErrInvalidSpecPointer          = reason("invalid_spec_pointer")
	ErrMissingTestRefs             = reason("missing_test_refs")
	ErrInvalidTestRefs             = reason("invalid_test_refs")
	ErrPersonaActionNotAllowed     = reason("persona_action_not_allowed")
	ErrPersonaSideEffects          = reason("persona_side_effects_disallowed")
	ErrDeterminismRecordMissing    = reason("determinism_record_missing")
	ErrMissingSeed                 = reason("missing_seed")
	ErrGeneratorPrepMissing        = reason("generator_prep_missing")
	ErrGovernanceFileMissing       = reason("governance_file_missing")
	ErrSelfhostInputOutsideSandbox = reason("selfhost_input_outside_sandbox")
	ErrSelfhostWorktreeDirty       = reason("selfhost_worktree_dirty")
	ErrDisallowedArtifact          = reason("disallowed_selfhost_artifact")
)

// --- Sync / snapshot ---
var (
	ErrSyncNotConfigured   = reason("sync_not_configured")
	ErrSyncAuthorityDenied = reason("sync_authority_denied")
	ErrSnapshotMismatch    = reason("snapshot_mismatch")
	ErrSnapshotInvalid     = reason("snapshot_invalid")
	ErrSnapshotMissing     = reason("snapshot_missing")
	ErrLegacySnapshot      = reason("legacy_snapshot_forbidden")
)

// --- Internal ---
var ErrInternal = reason("internal_error")

// SyncError is a fatal repo-sync failure.
type SyncError struct {
	Authority string
	Code      string
	Detail    string
}

func (e *SyncError) Error() string {
	if e.Detail == "" {
		return "sync " + e.Authority + ": " + e.Code
	}
	return "sync " + e.Authority + ": " + e.Code + ": " + e.Detail
}

// Is matches sentinel reason codes.
func (e *SyncError) Is(target error) bool {
	rc, ok := target.(*ReasonCode)
	return ok && rc.Code == e.Code
}
