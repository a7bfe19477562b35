package conform

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ConversionState is the aggregate verdict of a compile run.
type ConversionState string

const (
	StateAccepted    ConversionState = "ACCEPTED"
	StateConvertible ConversionState = "CONVERTIBLE"
	StateStructured  ConversionState = "STRUCTURED"
	StateValid       ConversionState = "VALID"
	StateReady       ConversionState = "READY"
	StateIncomplete  ConversionState = "INCOMPLETE"
)

// ConversionStates returns the frozen enumeration in contract order.
func ConversionStates() []ConversionState {
	return []ConversionState{StateAccepted, StateConvertible, StateStructured, StateValid, StateReady, StateIncomplete}
}

// FrozenGateIDs returns every frozen gate identifier in contract order.
func FrozenGateIDs() []GateID {
	return []GateID{
		GateGovernancePresence,
		GateRepoSync,
		GateSchemaValidation,
		GateASTExtraction,
		GateGeneratorPrepMissing,
		GateRunTest,
		GateDerivationPasses,
		GatePersonaReview,
		GateSelfhostSandbox,
		GateDisallowedArtifact,
		GateDeterminismRecord,
		GateReadinessGrade,
		GateChecklistModel,
		GateInternalError,
	}
}

// Compiled-in digests of the frozen contracts. A release that changes
// either list must update these deliberately.
const (
	conversionStatesDigest = "be58fe04ffd7eab50264ad015b52175955fdd584ded4e9a7c170a573c28a6ded"
	gateIDsDigest          = "1b9963dea836a75434f3a727659635d761b6734ff51771828e912cd7328b37de"
)

func init() {
	if err := VerifyContracts(); err != nil {
		panic(err)
	}
}

// ContractDigests returns the current digests of the frozen lists.
func ContractDigests() (states, gates string) {
	s := make([]string, 0, 6)
	for _, st := range ConversionStates() {
		s = append(s, string(st))
	}
	g := make([]string, 0, 14)
	for _, id := range FrozenGateIDs() {
		g = append(g, string(id))
	}
	return listDigest(s), listDigest(g)
}

func listDigest(items []string) string {
	sum := sha256.Sum256([]byte(strings.Join(items, ",")))
	return hex.EncodeToString(sum[:])
}

// VerifyContracts reports drift of the frozen enumerations.
func VerifyContracts() error {
	states, gates := ContractDigests()
	if states != conversionStatesDigest {
		return fmt.Errorf("contract freeze violation: ConversionState digest %s, want %s", states, conversionStatesDigest)
	}
	if gates != gateIDsDigest {
		return fmt.Errorf("contract freeze violation: gate id digest %s, want %s", gates, gateIDsDigest)
	}
	return nil
}

// IsFrozenGate reports whether id is part of the frozen gate contract.
func IsFrozenGate(id GateID) bool {
	for _, g := range FrozenGateIDs() {
		if g == id {
			return true
		}
	}
	return false
}
