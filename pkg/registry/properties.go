package registry

import "github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/conform"

// Property is a verification property the readiness evaluator grades.
type Property struct {
	Name        string `json:"name"`
	Blocking    bool   `json:"blocking"`
	Description string `json:"description"`
}

// Properties is the verification property registry.
type Properties = Registry[Property]

var defaultProperties = []Property{
	{Name: conform.PropertyTestsAttached, Blocking: true, Description: "every item carries resolving test refs"},
	{Name: conform.PropertyDeterminismReplay, Blocking: true, Description: "replaying the determinism record reproduces the bundle"},
	{Name: conform.PropertySpecFuzzStability, Blocking: false, Description: "small spec mutations keep the checklist stable"},
	{Name: conform.PropertyPersonaNoVeto, Blocking: false, Description: "no persona vetoed an item"},
}

// NewProperties returns a registry holding the built-in properties.
func NewProperties() *Properties {
	r := New[Property]("property")
	InitProperties(r)
	return r
}

// InitProperties resets r to the built-in properties.
func InitProperties(r *Properties) {
	entries := make(map[string]Property, len(defaultProperties))
	for _, p := range defaultProperties {
		entries[p.Name] = p
	}
	r.Init(entries)
}

// BlockingMap returns name -> blocking for the readiness evaluator.
func BlockingMap(r *Properties) map[string]bool {
	out := make(map[string]bool)
	for _, p := range r.List() {
		out[p.Name] = p.Blocking
	}
	return out
}

// DefaultProperties is the process-level property registry.
var DefaultProperties = NewProperties()
