// Package persona runs declarative reviewer personas over a finalized
// checklist. Personas are data: they may only veto items, and only when
// their declaration allows it. A persona that declares side effects is
// rejected outright.
package persona

import (
	"fmt"
	"slices"
	"sort"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/artifacts"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/checklist"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/conform"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/registry"
)

// Actions a persona may declare.
const (
	ActionReview = "review"
	ActionVeto   = "veto"
)

// EventsName is the artifact base name of the persona event file.
const EventsName = "persona_events_v1"

// Persona is a reviewer declaration.
type Persona struct {
	Name           string               `json:"name" yaml:"name" validate:"required"`
	Role           string               `json:"role" yaml:"role"`
	AllowedActions []string             `json:"allowed_actions" yaml:"allowed_actions"`
	SideEffects    []string             `json:"side_effects,omitempty" yaml:"side_effects"`
	VetoSeverities []checklist.Severity `json:"veto_severities,omitempty" yaml:"veto_severities"`
}

// Allows reports whether action is declared.
func (p Persona) Allows(action string) bool {
	return slices.Contains(p.AllowedActions, action)
}

// Registry is the persona registry.
type Registry = registry.Registry[Persona]

// NewRegistry returns an empty persona registry.
func NewRegistry() *Registry {
	return registry.New[Persona]("persona")
}

// Register adds p to r under its name.
func Register(r *Registry, p Persona) error {
	return r.Register(p.Name, p)
}

// DefaultRegistry is the process-level persona registry.
var DefaultRegistry = NewRegistry()

// Event is one persona decision. Seq orders events within a review.
type Event struct {
	Seq     int    `json:"seq"`
	Persona string `json:"persona"`
	Action  string `json:"action"`
	ItemID  string `json:"item_id,omitempty"`
	Outcome string `json:"outcome"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Event outcomes.
const (
	OutcomeReviewed = "reviewed"
	OutcomeVeto     = "veto"
	OutcomeDenied   = "denied"
	OutcomeRejected = "rejected"
)

// Result is the outcome of a review.
type Result struct {
	Events []Event `json:"events"`
}

// Vetoes returns the veto events.
func (r Result) Vetoes() []Event { return r.filter(OutcomeVeto) }

// Violations returns denied and rejected events.
func (r Result) Violations() []Event {
	return append(r.filter(OutcomeRejected), r.filter(OutcomeDenied)...)
}

func (r Result) filter(outcome string) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Outcome == outcome {
			out = append(out, e)
		}
	}
	return out
}

// Review lets each persona, in name order, inspect the enabled items.
// Items whose severity a persona vetoes produce a veto event when the
// persona allows veto and a denied event otherwise.
func Review(personas []Persona, items []checklist.Item) Result {
	sorted := append([]Persona(nil), personas...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	res := Result{Events: []Event{}}
	add := func(e Event) {
		e.Seq = len(res.Events)
		res.Events = append(res.Events, e)
	}

	for _, p := range sorted {
		if len(p.SideEffects) > 0 {
			add(Event{
				Persona: p.Name,
				Action:  ActionReview,
				Outcome: OutcomeRejected,
				Code:    conform.ErrPersonaSideEffects.Code,
				Message: fmt.Sprintf("persona declares side effects %v", p.SideEffects),
			})
			continue
		}
		reviewed := 0
		for _, it := range items {
			if it.Disabled() {
				continue
			}
			reviewed++
			if !slices.Contains(p.VetoSeverities, it.Severity) {
				continue
			}
			if !p.Allows(ActionVeto) {
				add(Event{
					Persona: p.Name,
					Action:  ActionVeto,
					ItemID:  it.ID,
					Outcome: OutcomeDenied,
					Code:    conform.ErrPersonaActionNotAllowed.Code,
					Message: "veto is not an allowed action",
				})
				continue
			}
			add(Event{
				Persona: p.Name,
				Action:  ActionVeto,
				ItemID:  it.ID,
				Outcome: OutcomeVeto,
				Message: fmt.Sprintf("%s item vetoed: %s", it.Severity, it.Text),
			})
		}
		add(Event{
			Persona: p.Name,
			Action:  ActionReview,
			Outcome: OutcomeReviewed,
			Message: fmt.Sprintf("reviewed %d items", reviewed),
		})
	}
	return res
}

// WriteEvents emits the event file and its hash into dir.
func WriteEvents(dir string, events []Event) (artifacts.Pair, error) {
	if events == nil {
		events = []Event{}
	}
	return artifacts.WritePair(dir, EventsName, events)
}
