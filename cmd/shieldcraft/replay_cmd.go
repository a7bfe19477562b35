package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/canonicalize"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/compiler"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/determinism"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/store"
)

func newReplayCmd(g *globals) *cobra.Command {
	var (
		storePath  string
		bundleHash string
	)
	cmd := &cobra.Command{
		Use:   "replay [bundle.json]",
		Short: "Replay a recorded run and compare determinism records",
		Long: `Replay recompiles the spec captured in a bundle's _determinism record
(or a bare record file) with the recorded seeds and reports which record
keys differ. A stored run can be replayed with --store and --run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if storePath == "" {
				storePath = cfg.StorePath
			}

			var rec determinism.Record
			switch {
			case len(args) == 1:
				rec, err = recordFromFile(args[0])
			case bundleHash != "" && storePath != "":
				rec, err = recordFromStore(cmd, storePath, bundleHash)
			default:
				return errors.New("replay needs a bundle file or --store with --run")
			}
			if err != nil {
				return err
			}

			c, shutdown, err := newCompiler(cmd, cfg)
			if err != nil {
				return err
			}
			defer shutdown()

			res, err := compiler.ReplayAndCompare(cmd.Context(), c, rec)
			if err != nil {
				return err
			}
			out, err := canonicalize.JCS(res)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if !res.Match {
				return failed(fmt.Errorf("replay mismatch: %s", strings.Join(res.Explanation.DiffKeys, ",")))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&storePath, "store", "", "SQLite run store")
	cmd.Flags().StringVar(&bundleHash, "run", "", "bundle hash of a stored run")
	return cmd
}

// recordFromFile accepts a full bundle or a bare determinism record.
func recordFromFile(path string) (determinism.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return determinism.Record{}, err
	}
	var wrapper struct {
		Determinism json.RawMessage `json:"_determinism"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return determinism.Record{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(wrapper.Determinism) > 0 {
		data = wrapper.Determinism
	}
	return determinism.Decode(data)
}

func recordFromStore(cmd *cobra.Command, path, bundleHash string) (determinism.Record, error) {
	s, err := store.Open(path)
	if err != nil {
		return determinism.Record{}, err
	}
	defer func() { _ = s.Close() }()
	return s.Record(cmd.Context(), bundleHash)
}
