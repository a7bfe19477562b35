package conform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/observability"
)

// Engine folds an ordered list of gates over a run state.
type Engine[S any] struct {
	gates     []Gate[S]
	logger    *slog.Logger
	telemetry *observability.Provider
}

// NewEngine creates an engine with the given gates in execution order.
func NewEngine[S any](gates ...Gate[S]) *Engine[S] {
	e := &Engine[S]{logger: slog.Default()}
	for _, g := range gates {
		e.RegisterGate(g)
	}
	return e
}

// WithLogger sets the logger.
func (e *Engine[S]) WithLogger(l *slog.Logger) *Engine[S] {
	if l != nil {
		e.logger = l
	}
	return e
}

// WithTelemetry sets the span/metric provider.
func (e *Engine[S]) WithTelemetry(p *observability.Provider) *Engine[S] {
	e.telemetry = p
	return e
}

// RegisterGate appends g. Registering an existing id replaces the gate in
// place, keeping its position.
func (e *Engine[S]) RegisterGate(g Gate[S]) {
	for i := range e.gates {
		if e.gates[i].ID == g.ID {
			e.gates[i] = g
			return
		}
	}
	e.gates = append(e.gates, g)
}

// Gates returns the gate ids in execution order.
func (e *Engine[S]) Gates() []GateID {
	out := make([]GateID, len(e.gates))
	for i, g := range e.gates {
		out[i] = g.ID
	}
	return out
}

// PanicError is an internal error raised by a panicking gate.
type PanicError struct {
	Gate  GateID
	Value any
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("gate %s panicked: %v", p.Gate, p.Value)
}

// Run executes the gates in order until one refuses. It returns the
// refusal, or nil when every gate ran. The ledger in cc is complete either
// way.
func (e *Engine[S]) Run(ctx context.Context, cc *Context, state S) *Refusal {
	for _, g := range e.gates {
		if cc.Refused() {
			break
		}
		if g.Enabled != nil && !g.Enabled(state) {
			e.logger.DebugContext(ctx, "gate skipped", "gate", g.ID)
			continue
		}

		_, done := e.telemetry.TrackGate(ctx, string(g.ID), string(g.Phase))
		out, err := e.runGate(cc, g, state)
		if err == nil && !validOutcome(out.Outcome) {
			err = fmt.Errorf("gate %s returned unknown outcome %q", g.ID, out.Outcome)
		}
		if err != nil {
			done(string(OutcomeRefusal), err)
			e.internalError(ctx, cc, g, err)
			break
		}
		done(string(out.Outcome), nil)

		cc.Record(Event{
			GateID:    g.ID,
			Phase:     g.Phase,
			Outcome:   out.Outcome,
			Code:      out.Code,
			Message:   out.Message,
			Invariant: out.Invariant,
			Evidence:  out.Evidence,
		})

		switch out.Outcome {
		case OutcomeRefusal:
			cc.Refuse(g.ID, out.Code, out.Message)
			e.logger.WarnContext(ctx, "gate refused", "gate", g.ID, "code", out.Code, "message", out.Message)
		case OutcomeFail:
			e.logger.InfoContext(ctx, "gate failed", "gate", g.ID, "invariant", out.Invariant, "code", out.Code)
		default:
			e.logger.DebugContext(ctx, "gate outcome", "gate", g.ID, "outcome", out.Outcome)
		}
	}
	return cc.Refusal()
}

func (e *Engine[S]) runGate(cc *Context, g Gate[S], state S) (out GateOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Gate: g.ID, Value: r}
		}
	}()
	if g.Run == nil {
		return GateOutcome{}, fmt.Errorf("gate %s has no run function", g.ID)
	}
	return g.Run(cc, state)
}

func (e *Engine[S]) internalError(ctx context.Context, cc *Context, g Gate[S], err error) {
	cc.Record(Event{
		GateID:  GateInternalError,
		Phase:   PhaseInternal,
		Outcome: OutcomeRefusal,
		Code:    ErrInternal.Code,
		Message: err.Error(),
		Evidence: map[string]any{
			"gate":  string(g.ID),
			"phase": string(g.Phase),
		},
	})
	cc.Refuse(GateInternalError, ErrInternal.Code, err.Error())
	e.logger.ErrorContext(ctx, "gate internal error", "gate", g.ID, "error", err)
}

func validOutcome(o Outcome) bool {
	switch o {
	case OutcomePass, OutcomeFail, OutcomeRefusal, OutcomeDiagnostic:
		return true
	}
	return false
}
