package compiler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/artifacts"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/checklist"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/config"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/observability"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/persona"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/registry"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/snapshot"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/spec"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/testregistry"
)

// Options configures a Compiler. The zero value compiles with the
// embedded schema, no repository checks and the Unix epoch as timestamp.
type Options struct {
	EngineVersion string

	// RepoRoot enables the governance presence and repo sync gates.
	RepoRoot          string
	GovernancePaths   []string
	SnapshotPath      string // relative to RepoRoot
	SnapshotValidator snapshot.Validator
	SyncAuthority     config.SyncAuthority
	AllowExternalSync bool

	SelfBuild           bool
	SelfBuildAllowDirty bool
	SandboxRoot         string

	PersonaEnabled bool
	Personas       *persona.Registry
	// ArtifactDir receives persona event files when set.
	ArtifactDir string

	EnforceTestAttachment bool
	TestRegistry          checklist.TestRegistry

	Properties *registry.Properties
	Schema     *spec.SchemaValidator

	// Seeds overrides derived seeds by name.
	Seeds map[string]string
	// Clock supplies the provenance timestamp.
	Clock func() time.Time

	Logger    *slog.Logger
	Telemetry *observability.Provider
}

// FromConfig maps loaded configuration onto Options. Registries are
// created fresh and filled from cfg.
func FromConfig(cfg *config.Config) (Options, error) {
	opts := Options{
		EngineVersion:         cfg.EngineVersion,
		RepoRoot:              cfg.RepoRoot,
		GovernancePaths:       append([]string(nil), cfg.GovernancePaths...),
		SnapshotPath:          cfg.SnapshotPath,
		SyncAuthority:         cfg.SyncAuthority,
		AllowExternalSync:     cfg.AllowExternalSync,
		SelfBuild:             cfg.SelfBuildEnabled,
		SelfBuildAllowDirty:   cfg.SelfBuildAllowDirty,
		SandboxRoot:           cfg.SandboxRoot,
		PersonaEnabled:        cfg.PersonaEnabled,
		Personas:              persona.NewRegistry(),
		EnforceTestAttachment: cfg.EnforceTestAttachment,
		Properties:            registry.NewProperties(),
		Seeds:                 cfg.Seeds,
		Clock:                 EpochClock(cfg.SourceDateEpoch),
		Logger:                observability.NewLogger(cfg.LogLevel, cfg.LogFormat, nil),
	}
	for _, p := range cfg.Personas {
		if err := persona.Register(opts.Personas, p); err != nil {
			return Options{}, err
		}
	}
	if cfg.SchemaPath != "" {
		v, err := spec.LoadSchemaValidator(cfg.SchemaPath)
		if err != nil {
			return Options{}, err
		}
		opts.Schema = v
	}
	switch {
	case cfg.TestRegistryPath != "":
		reg, err := testregistry.Load(cfg.TestRegistryPath)
		if err != nil {
			return Options{}, err
		}
		opts.TestRegistry = reg
	case cfg.TestRoot != "":
		opts.TestRegistry = testregistry.GoScanner{Root: cfg.TestRoot}
	}
	if cfg.RepoRoot != "" {
		opts.ArtifactDir = joinRoot(cfg.RepoRoot, artifacts.Dir)
	}
	return opts, nil
}

// EpochClock returns a clock fixed at the given Unix time.
func EpochClock(sec int64) func() time.Time {
	t := time.Unix(sec, 0).UTC()
	return func() time.Time { return t }
}

func (o *Options) withDefaults() error {
	if o.EngineVersion == "" {
		o.EngineVersion = config.DefaultEngineVersion
	}
	if _, err := artifacts.ParseEngineVersion(o.EngineVersion); err != nil {
		return err
	}
	if o.SnapshotPath == "" {
		o.SnapshotPath = snapshot.DefaultPath
	}
	if o.SnapshotValidator == nil {
		o.SnapshotValidator = snapshot.FileValidator{}
	}
	if o.SyncAuthority == "" {
		o.SyncAuthority = config.SyncRepoState
	}
	if o.Personas == nil {
		o.Personas = persona.NewRegistry()
	}
	if o.Properties == nil {
		o.Properties = registry.NewProperties()
	}
	if o.Schema == nil {
		v, err := spec.NewSchemaValidator()
		if err != nil {
			return fmt.Errorf("embedded schema: %w", err)
		}
		o.Schema = v
	}
	if o.Clock == nil {
		o.Clock = EpochClock(0)
	}
	if o.Logger == nil {
		o.Logger = observability.Discard()
	}
	return nil
}
