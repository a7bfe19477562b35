// Package config loads engine configuration from an optional YAML file
// overlaid by SHIELDCRAFT_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/persona"
)

// Environment variables.
const (
	EnvConfigFile            = "SHIELDCRAFT_CONFIG"
	EnvSelfBuildEnabled      = "SHIELDCRAFT_SELFBUILD_ENABLED"
	EnvSelfBuildAllowDirty   = "SHIELDCRAFT_SELFBUILD_ALLOW_DIRTY"
	EnvSyncAuthority         = "SHIELDCRAFT_SYNC_AUTHORITY"
	EnvAllowExternalSync     = "SHIELDCRAFT_ALLOW_EXTERNAL_SYNC"
	EnvPersonaEnabled        = "SHIELDCRAFT_PERSONA_ENABLED"
	EnvEnforceTestAttachment = "SHIELDCRAFT_ENFORCE_TEST_ATTACHMENT"
	EnvLogLevel              = "SHIELDCRAFT_LOG_LEVEL"
	EnvLogFormat             = "SHIELDCRAFT_LOG_FORMAT"
	EnvStorePath             = "SHIELDCRAFT_STORE_PATH"
	EnvSourceDateEpoch       = "SOURCE_DATE_EPOCH"
)

// SyncAuthority selects how the repo-sync gate establishes that the
// working tree matches the recorded snapshot.
type SyncAuthority string

const (
	SyncRepoState         SyncAuthority = "repo_state_sync"
	SyncSnapshotMandatory SyncAuthority = "snapshot_mandatory"
	SyncExternal          SyncAuthority = "external"
)

// DefaultEngineVersion is reported in provenance unless overridden.
const DefaultEngineVersion = "0.9.0"

// Config holds engine configuration.
type Config struct {
	EngineVersion string `yaml:"engine_version" validate:"required"`

	RepoRoot        string   `yaml:"repo_root"`
	GovernancePaths []string `yaml:"governance_paths" validate:"dive,required"`
	SnapshotPath    string   `yaml:"snapshot_path"`
	SchemaPath      string   `yaml:"schema_path"`

	SelfBuildEnabled    bool   `yaml:"selfbuild_enabled"`
	SelfBuildAllowDirty bool   `yaml:"selfbuild_allow_dirty"`
	SandboxRoot         string `yaml:"sandbox_root" validate:"required_if=SelfBuildEnabled true"`

	SyncAuthority     SyncAuthority `yaml:"sync_authority" validate:"oneof=repo_state_sync snapshot_mandatory external"`
	AllowExternalSync bool          `yaml:"allow_external_sync"`

	PersonaEnabled bool              `yaml:"persona_enabled"`
	Personas       []persona.Persona `yaml:"personas" validate:"dive"`

	EnforceTestAttachment bool   `yaml:"enforce_test_attachment"`
	TestRegistryPath      string `yaml:"test_registry_path"`
	TestRoot              string `yaml:"test_root"`

	Seeds map[string]string `yaml:"seeds"`

	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=json text"`
	StorePath string `yaml:"store_path"`

	// SourceDateEpoch pins provenance timestamps (Unix seconds).
	SourceDateEpoch int64 `yaml:"-" validate:"gte=0"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		EngineVersion:   DefaultEngineVersion,
		GovernancePaths: []string{},
		SnapshotPath:    "artifacts/repo_snapshot.json",
		SyncAuthority:   SyncRepoState,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load reads the file named by SHIELDCRAFT_CONFIG, if any, applies the
// environment and validates the result.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile is Load with an explicit file path; the environment still
// overrides file values.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load config %q: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	flags := []struct {
		name string
		dst  *bool
	}{
		{EnvSelfBuildEnabled, &c.SelfBuildEnabled},
		{EnvSelfBuildAllowDirty, &c.SelfBuildAllowDirty},
		{EnvAllowExternalSync, &c.AllowExternalSync},
		{EnvPersonaEnabled, &c.PersonaEnabled},
		{EnvEnforceTestAttachment, &c.EnforceTestAttachment},
	}
	for _, f := range flags {
		v, ok, err := envBool(f.name)
		if err != nil {
			return err
		}
		if ok {
			*f.dst = v
		}
	}

	if v := os.Getenv(EnvSyncAuthority); v != "" {
		c.SyncAuthority = SyncAuthority(strings.ToLower(v))
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.LogFormat = strings.ToLower(v)
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		c.StorePath = v
	}
	if v := os.Getenv(EnvSourceDateEpoch); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSourceDateEpoch, err)
		}
		c.SourceDateEpoch = n
	}
	return nil
}

// envBool reports the parsed value and whether the variable was set.
func envBool(name string) (bool, bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return false, false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", name, err)
	}
	return b, true, nil
}
