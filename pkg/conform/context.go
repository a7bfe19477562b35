package conform

import "fmt"

// Event is one immutable entry of the ledger. Ts is a logical tick, not
// wall-clock time, so ledgers of identical runs are byte-identical.
type Event struct {
	Seq       int            `json:"seq"`
	GateID    GateID         `json:"gate_id"`
	Phase     Phase          `json:"phase"`
	Outcome   Outcome        `json:"outcome"`
	Code      string         `json:"code,omitempty"`
	Message   string         `json:"message"`
	Invariant string         `json:"invariant,omitempty"`
	Evidence  map[string]any `json:"evidence"`
	Ts        int64          `json:"ts"`
}

// Refusal is the fatal outcome of a run.
type Refusal struct {
	GateID  GateID `json:"gate_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r *Refusal) Error() string {
	if r.Message == "" {
		return fmt.Sprintf("%s: %s", r.GateID, r.Code)
	}
	return fmt.Sprintf("%s: %s: %s", r.GateID, r.Code, r.Message)
}

// Is matches sentinel reason codes, so errors.Is(err, ErrMissingTestRefs)
// works on a refusal.
func (r *Refusal) Is(target error) bool {
	rc, ok := target.(*ReasonCode)
	return ok && rc.Code == r.Code
}

// Context is the per-run ledger. It is owned by exactly one compile run.
type Context struct {
	events  []Event
	tick    int64
	refusal *Refusal
}

// NewContext returns an empty ledger.
func NewContext() *Context {
	return &Context{}
}

// Record appends e and returns the stored copy with Seq and Ts assigned.
func (c *Context) Record(e Event) Event {
	c.tick++
	e.Seq = len(c.events) + 1
	e.Ts = c.tick
	e.Evidence = copyEvidence(e.Evidence)
	c.events = append(c.events, e)
	return e
}

func copyEvidence(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Events returns a snapshot of the ledger.
func (c *Context) Events() []Event {
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Len returns the number of recorded events.
func (c *Context) Len() int {
	return len(c.events)
}

// Refuse marks the run refused. The first refusal wins.
func (c *Context) Refuse(gate GateID, code, message string) {
	if c.refusal != nil {
		return
	}
	c.refusal = &Refusal{GateID: gate, Code: code, Message: message}
}

// Refused reports whether a fatal gate has fired.
func (c *Context) Refused() bool {
	return c.refusal != nil
}

// Refusal returns a copy of the refusal, or nil.
func (c *Context) Refusal() *Refusal {
	if c.refusal == nil {
		return nil
	}
	r := *c.refusal
	return &r
}

// Has reports whether any event for gate has the given outcome.
func (c *Context) Has(gate GateID, outcome Outcome) bool {
	for _, e := range c.events {
		if e.GateID == gate && e.Outcome == outcome {
			return true
		}
	}
	return false
}

// ByGate returns the events recorded for gate, in ledger order.
func (c *Context) ByGate(gate GateID) []Event {
	var out []Event
	for _, e := range c.events {
		if e.GateID == gate {
			out = append(out, e)
		}
	}
	return out
}
