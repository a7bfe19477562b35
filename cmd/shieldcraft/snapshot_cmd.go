package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/canonicalize"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/snapshot"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Generate, validate and diff repository snapshot manifests",
	}

	var genRoot, genOut string
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Snapshot a tree and write the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := genOut
			if out == "" {
				out = filepath.Join(genRoot, filepath.FromSlash(snapshot.DefaultPath))
			}
			m, err := snapshot.Generate(genRoot)
			if err != nil {
				return err
			}
			if err := snapshot.Write(m, out, genRoot); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %d files -> %s\n", m.TreeHash, len(m.Files), out)
			return nil
		},
	}
	generate.Flags().StringVar(&genRoot, "root", ".", "tree to snapshot")
	generate.Flags().StringVar(&genOut, "out", "", "manifest path (default <root>/"+snapshot.DefaultPath+")")

	var valRoot, valPath string
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check a manifest against the current tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := valPath
			if path == "" {
				path = filepath.Join(valRoot, filepath.FromSlash(snapshot.DefaultPath))
			}
			if err := snapshot.Validate(path, valRoot); err != nil {
				return failed(err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "snapshot ok")
			return nil
		},
	}
	validate.Flags().StringVar(&valRoot, "root", ".", "tree to compare")
	validate.Flags().StringVar(&valPath, "path", "", "manifest path (default <root>/"+snapshot.DefaultPath+")")

	diff := &cobra.Command{
		Use:   "diff <before> <after>",
		Short: "Diff two manifests; exits 1 when they differ",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := snapshot.Read(args[0])
			if err != nil {
				return err
			}
			b, err := snapshot.Read(args[1])
			if err != nil {
				return err
			}
			d := snapshot.DiffManifests(a, b)
			out, err := canonicalize.JCS(d)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if !d.Empty() {
				return failed(nil)
			}
			return nil
		},
	}

	cmd.AddCommand(generate, validate, diff)
	return cmd
}
