package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/artifacts"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/compiler"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/store"
)

// Output artifact names under --out.
const (
	bundleArtifact   = "checklist_bundle"
	evidenceArtifact = "evidence_bundle"
)

func newCompileCmd(g *globals) *cobra.Command {
	var (
		outDir    string
		storePath string
		repoRoot  string
		seeds     map[string]string
	)
	cmd := &cobra.Command{
		Use:   "compile <spec>",
		Short: "Compile a spec (JSON or YAML) into a checklist bundle",
		Long: `Compile runs the gate pipeline over a spec and prints the canonical
bundle. A refused compile still prints its bundle and exits 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if repoRoot != "" {
				cfg.RepoRoot = repoRoot
			}
			if storePath != "" {
				cfg.StorePath = storePath
			}
			if len(seeds) > 0 {
				merged := make(map[string]string, len(cfg.Seeds)+len(seeds))
				for k, v := range cfg.Seeds {
					merged[k] = v
				}
				for k, v := range seeds {
					merged[k] = v
				}
				cfg.Seeds = merged
			}

			c, shutdown, err := newCompiler(cmd, cfg)
			if err != nil {
				return err
			}
			defer shutdown()

			b, err := c.CompileFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data, err := b.Encode()
			if err != nil {
				return err
			}
			if outDir != "" {
				if err := writeBundle(outDir, b); err != nil {
					return err
				}
			}
			if cfg.StorePath != "" {
				if err := saveRun(cmd, cfg.StorePath, b); err != nil {
					return err
				}
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			if !b.Valid {
				return failed(b.Err())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "write bundle and evidence bundle (with .hash files) to this directory")
	cmd.Flags().StringVar(&storePath, "store", "", "record the run in this SQLite database")
	cmd.Flags().StringVar(&repoRoot, "repo-root", "", "repository root for governance and sync gates")
	cmd.Flags().StringToStringVar(&seeds, "seed", nil, "override a derived seed (name=value)")
	return cmd
}

func writeBundle(dir string, b *compiler.Bundle) error {
	if _, err := artifacts.WritePair(dir, bundleArtifact, b); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	ev, err := b.Evidence()
	if err != nil {
		return err
	}
	if _, err := artifacts.WritePair(dir, evidenceArtifact, ev); err != nil {
		return fmt.Errorf("write evidence bundle: %w", err)
	}
	return nil
}

func saveRun(cmd *cobra.Command, path string, b *compiler.Bundle) error {
	s, err := store.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	if err := s.Save(cmd.Context(), b); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}
