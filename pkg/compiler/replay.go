package compiler

import (
	"context"
	"fmt"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/determinism"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/spec"
)

// Replay recompiles the spec captured in rec with the recorded seeds.
// Gates that inspect the local repository are skipped, so a record
// replays the same on any machine. A recorded environment refusal is
// re-applied by the gate that originally refused.
func (c *Compiler) Replay(ctx context.Context, rec determinism.Record) (*Bundle, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	doc, err := spec.Parse([]byte(rec.Spec), spec.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("replay spec: %w", err)
	}
	return c.run(ctx, runInput{doc: doc, seeds: rec.Seeds, replay: true, envRefusal: rec.EnvironmentRefusal})
}

// ReplayAndCompare replays rec and compares the fresh record with it.
func ReplayAndCompare(ctx context.Context, c *Compiler, rec determinism.Record) (determinism.Comparison, error) {
	b, err := c.Replay(ctx, rec)
	if err != nil {
		return determinism.Comparison{}, err
	}
	return determinism.Compare(rec, b.Determinism)
}
