package conform

import "sort"

// Grade is the aggregate readiness grade.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeF Grade = "F"
)

// Verification property names used by the readiness map.
const (
	PropertyTestsAttached     = "tests_attached"
	PropertyDeterminismReplay = "determinism_replay"
	PropertySpecFuzzStability = "spec_fuzz_stability"
	PropertyPersonaNoVeto     = "persona_no_veto"
)

// DefaultBlocking returns the frozen blocking map.
func DefaultBlocking() map[string]bool {
	return map[string]bool{
		PropertyTestsAttached:     true,
		PropertyDeterminismReplay: true,
		PropertySpecFuzzStability: false,
		PropertyPersonaNoVeto:     false,
	}
}

// Readiness is the readiness verdict over a ledger.
type Readiness struct {
	Grade       Grade    `json:"grade"`
	Blocking    []string `json:"blocking"`
	NonBlocking []string `json:"non_blocking"`
}

// Ready reports whether no blocking failure was found.
func (r Readiness) Ready() bool {
	return r.Grade != GradeF
}

// EvaluateReadiness tallies failing events. An event is keyed by its
// invariant, or by its gate id when it has none; keys missing from
// blocking are treated as blocking.
func EvaluateReadiness(events []Event, blocking map[string]bool) Readiness {
	blockSet := make(map[string]bool)
	softSet := make(map[string]bool)
	for _, e := range events {
		var key string
		switch p := e.Payload().(type) {
		case FailPayload:
			key = p.Invariant
		case RefusalPayload:
		default:
			continue
		}
		if key == "" {
			key = string(e.GateID)
		}
		isBlocking, known := blocking[key]
		if !known || isBlocking {
			blockSet[key] = true
		} else {
			softSet[key] = true
		}
	}

	r := Readiness{Blocking: sortedKeys(blockSet), NonBlocking: sortedKeys(softSet)}
	switch n := len(r.NonBlocking); {
	case len(r.Blocking) > 0:
		r.Grade = GradeF
	case n >= 3:
		r.Grade = GradeC
	case n >= 1:
		r.Grade = GradeB
	default:
		r.Grade = GradeA
	}
	return r
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
