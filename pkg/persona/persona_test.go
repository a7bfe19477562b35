package persona

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/artifacts"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/checklist"
)

func items() []checklist.Item {
	return []checklist.Item{
		{ID: "aaaa0001", Text: "SPEC MISSING: version", Severity: checklist.SeverityCritical},
		{ID: "aaaa0002", Text: "name: demo", Severity: checklist.SeverityLow},
		{ID: "aaaa0003", Text: "broken", Severity: checklist.SeverityCritical, QualityStatus: checklist.QualityInvalid},
	}
}

func TestReview_VetoAllowed(t *testing.T) {
	res := Review([]Persona{{
		Name:           "auditor",
		AllowedActions: []string{ActionReview, ActionVeto},
		VetoSeverities: []checklist.Severity{checklist.SeverityCritical},
	}}, items())

	vetoes := res.Vetoes()
	require.Len(t, vetoes, 1)
	assert.Equal(t, "aaaa0001", vetoes[0].ItemID)
	assert.Empty(t, res.Violations())
	assert.Equal(t, "reviewed 2 items", res.Events[len(res.Events)-1].Message)
}

func TestReview_VetoNotAllowed(t *testing.T) {
	res := Review([]Persona{{
		Name:           "observer",
		AllowedActions: []string{ActionReview},
		VetoSeverities: []checklist.Severity{checklist.SeverityLow},
	}}, items())

	assert.Empty(t, res.Vetoes())
	v := res.Violations()
	require.Len(t, v, 1)
	assert.Equal(t, "persona_action_not_allowed", v[0].Code)
}

func TestReview_SideEffectsRejectedAndSortedByName(t *testing.T) {
	res := Review([]Persona{
		{Name: "zeta", AllowedActions: []string{ActionReview}},
		{Name: "alpha", SideEffects: []string{"write_files"}},
	}, items())

	require.Len(t, res.Events, 2)
	assert.Equal(t, "alpha", res.Events[0].Persona)
	assert.Equal(t, OutcomeRejected, res.Events[0].Outcome)
	assert.Equal(t, "persona_side_effects_disallowed", res.Events[0].Code)
	assert.Equal(t, "zeta", res.Events[1].Persona)
	assert.Equal(t, 1, res.Events[1].Seq)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, Register(r, Persona{Name: "b"}))
	require.NoError(t, Register(r, Persona{Name: "a"}))
	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Error(t, Register(r, Persona{Name: "a"}))
}

func TestWriteEvents(t *testing.T) {
	dir := t.TempDir()
	res := Review([]Persona{{Name: "p", AllowedActions: []string{ActionReview}}}, items())
	pair, err := WriteEvents(dir, res.Events)
	require.NoError(t, err)

	data, err := artifacts.ReadPair(dir, EventsName)
	require.NoError(t, err)
	var back []Event
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, res.Events, back)
	assert.Len(t, pair.Hash, 64)
}
