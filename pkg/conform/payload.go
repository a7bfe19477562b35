package conform

// Payload is the typed view of an event's outcome-specific fields. The
// set of implementations is closed: PassPayload, FailPayload,
// RefusalPayload and DiagnosticPayload.
type Payload interface {
	outcome() Outcome
}

// PassPayload is carried by PASS events.
type PassPayload struct {
	Message string
}

// FailPayload is carried by FAIL events. Invariant names the readiness
// property the failure counts against.
type FailPayload struct {
	Invariant string
	Code      string
	Message   string
}

// RefusalPayload is carried by REFUSAL events.
type RefusalPayload struct {
	Code    string
	Message string
}

// DiagnosticPayload is carried by DIAGNOSTIC events.
type DiagnosticPayload struct {
	Code    string
	Message string
}

func (PassPayload) outcome() Outcome       { return OutcomePass }
func (FailPayload) outcome() Outcome       { return OutcomeFail }
func (RefusalPayload) outcome() Outcome    { return OutcomeRefusal }
func (DiagnosticPayload) outcome() Outcome { return OutcomeDiagnostic }

// Payload returns the typed payload for the event's outcome, or nil for an
// unknown outcome. The JSON form of the event is unchanged.
func (e Event) Payload() Payload {
	switch e.Outcome {
	case OutcomePass:
		return PassPayload{Message: e.Message}
	case OutcomeFail:
		return FailPayload{Invariant: e.Invariant, Code: e.Code, Message: e.Message}
	case OutcomeRefusal:
		return RefusalPayload{Code: e.Code, Message: e.Message}
	case OutcomeDiagnostic:
		return DiagnosticPayload{Code: e.Code, Message: e.Message}
	}
	return nil
}
