// Command shieldcraft compiles specification documents into gate-evaluated
// checklist bundles.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/compiler"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/config"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/observability"
)

// Exit codes:
//
//	0 = success
//	1 = refusal, mismatch or verification failure
//	2 = usage or runtime error
const (
	exitOK      = 0
	exitFailed  = 1
	exitRuntime = 2
)

func main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// exitError carries a non-zero exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func failed(err error) error { return &exitError{code: exitFailed, err: err} }

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitRuntime
}

// globals holds the persistent flags.
type globals struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "shieldcraft",
		Short:         "Deterministic spec-to-checklist compiler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file (default $"+config.EnvConfigFile+")")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	root.AddCommand(
		newCompileCmd(g),
		newReplayCmd(g),
		newSnapshotCmd(),
		newReleaseCmd(g),
		newRunsCmd(g),
	)
	return root
}

func (g *globals) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFile(g.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newCompiler builds a compiler from cfg that logs to the command's
// stderr. The returned func shuts telemetry down.
func newCompiler(cmd *cobra.Command, cfg *config.Config) (*compiler.Compiler, func(), error) {
	opts, err := compiler.FromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	opts.Logger = observability.NewLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())

	telemetryCfg := observability.DefaultConfig()
	telemetryCfg.ServiceVersion = cfg.EngineVersion
	tp, err := observability.New(cmd.Context(), telemetryCfg)
	if err != nil {
		return nil, nil, err
	}
	opts.Telemetry = tp
	shutdown := func() { _ = tp.Shutdown(context.Background()) }

	c, err := compiler.New(opts)
	if err != nil {
		shutdown()
		return nil, nil, err
	}
	return c, shutdown, nil
}
