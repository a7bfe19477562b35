// Package compiler turns a spec document into a gate-evaluated checklist
// bundle. A Compiler owns its registries, rule evaluator and gate engine;
// compile runs on one Compiler are serialized.
package compiler

import (
	"context"
	"fmt"
	"sync"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/canonicalize"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/conform"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/derive"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/determinism"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/spec"
)

// Compiler runs the gate pipeline.
type Compiler struct {
	opts   Options
	engine *conform.Engine[*State]
	rules  *derive.RuleEvaluator
	mu     sync.Mutex
}

// New creates a compiler. It fails when the engine version is not strict
// semver or the frozen contracts have drifted.
func New(opts Options) (*Compiler, error) {
	if err := opts.withDefaults(); err != nil {
		return nil, err
	}
	if err := conform.VerifyContracts(); err != nil {
		return nil, err
	}
	rules, err := derive.NewRuleEvaluator()
	if err != nil {
		return nil, err
	}
	engine := conform.NewEngine(Gates()...).
		WithLogger(opts.Logger).
		WithTelemetry(opts.Telemetry)
	return &Compiler{opts: opts, engine: engine, rules: rules}, nil
}

// Options returns a copy of the effective options.
func (c *Compiler) Options() Options {
	return c.opts
}

// CompileFile loads and compiles the spec at path. Load failures produce
// a refused bundle, not an error.
func (c *Compiler) CompileFile(ctx context.Context, path string) (*Bundle, error) {
	doc, err := spec.Load(path)
	return c.run(ctx, runInput{doc: doc, path: path, loadErr: err, seeds: c.opts.Seeds})
}

// CompileBytes parses data in the given format and compiles it.
func (c *Compiler) CompileBytes(ctx context.Context, data []byte, format spec.Format) (*Bundle, error) {
	doc, err := spec.Parse(data, format)
	return c.run(ctx, runInput{doc: doc, loadErr: err, seeds: c.opts.Seeds})
}

// Compile compiles an already loaded document.
func (c *Compiler) Compile(ctx context.Context, doc *spec.Document) (*Bundle, error) {
	in := runInput{doc: doc, seeds: c.opts.Seeds}
	if doc == nil {
		in.loadErr = fmt.Errorf("%w: no document", spec.ErrSpecMissing)
	} else {
		in.path = doc.Path
	}
	return c.run(ctx, in)
}

type runInput struct {
	doc     *spec.Document
	path    string
	loadErr error
	seeds   map[string]string
	replay  bool

	// envRefusal is replayed by the environment gate that recorded it.
	envRefusal *conform.Refusal
}

func (c *Compiler) run(ctx context.Context, in runInput) (*Bundle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &State{
		Opts:     &c.opts,
		Replay:   in.replay,
		SpecPath: in.path,
		LoadErr:  in.loadErr,
		rules:    c.rules,

		ReplayRefusal: in.envRefusal,
	}
	if in.loadErr == nil {
		// A document that parses but has no canonical form (a number
		// outside float64 range, say) is refused by schema validation.
		if h, err := canonicalize.CanonicalHash(in.doc.Plain()); err != nil {
			s.LoadErr = fmt.Errorf("%w: canonical form: %v", spec.ErrSpecMalformed, err)
		} else {
			s.Doc = in.doc
			s.SpecHash = h
		}
	}
	s.Seeds = determinism.DeriveSeeds(s.SpecHash, in.seeds)

	cc := conform.NewContext()
	refusal := c.engine.Run(ctx, cc, s)
	if refusal != nil {
		c.finishRefused(cc, s, refusal)
	}

	b, err := assemble(s, cc, refusal, c.opts.Clock())
	if err != nil {
		return nil, err
	}
	log := c.opts.Logger.With("run_id", b.RunID, "spec_hash", b.Lineage.SpecHash)
	if refusal != nil {
		log.WarnContext(ctx, "compile refused", "gate", refusal.GateID, "code", refusal.Code)
	} else {
		log.InfoContext(ctx, "compile finished", "state", b.State, "grade", b.Readiness.Grade, "items", len(b.Items))
	}
	return b, nil
}

// finishRefused fills the record and readiness a refused run never
// reached. A refusal from an environment gate is kept in the record so a
// replay stops at the same gate.
func (c *Compiler) finishRefused(cc *conform.Context, s *State, refusal *conform.Refusal) {
	if s.Record == nil {
		if rec, err := buildRecord(s); err == nil {
			s.Record = &rec
		}
	}
	if s.Record != nil && isEnvironmentGate(refusal.GateID) {
		r := *refusal
		s.Record.EnvironmentRefusal = &r
	}
	s.Readiness = conform.EvaluateReadiness(cc.Events(), blockingMap(s))
}
