package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/artifacts"
)

func newReleaseCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release-manifest",
		Short: "Build and verify " + artifacts.ReleaseManifestName,
	}

	var (
		buildRoot, buildOut, version string
	)
	build := &cobra.Command{
		Use:   "build <artifact>...",
		Short: "Digest artifacts (relative to --root) into a release manifest",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if version == "" {
				cfg, err := g.load()
				if err != nil {
					return err
				}
				version = cfg.EngineVersion
			}
			out := buildOut
			if out == "" {
				out = filepath.Join(buildRoot, artifacts.ReleaseManifestName)
			}
			m, err := artifacts.BuildRelease(buildRoot, version, args)
			if err != nil {
				return err
			}
			if err := artifacts.WriteRelease(out, m); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %s\n", m.EngineVersion, m.ManifestHash, out)
			return nil
		},
	}
	build.Flags().StringVar(&buildRoot, "root", ".", "directory artifact paths are relative to")
	build.Flags().StringVar(&buildOut, "out", "", "manifest path (default <root>/"+artifacts.ReleaseManifestName+")")
	build.Flags().StringVar(&version, "engine-version", "", "strict semver engine version (default from config)")

	var verifyRoot string
	verify := &cobra.Command{
		Use:   "verify [manifest]",
		Short: "Recompute the manifest hash and artifact digests",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(verifyRoot, artifacts.ReleaseManifestName)
			if len(args) == 1 {
				path = args[0]
			}
			m, err := artifacts.ReadRelease(path)
			if err != nil {
				return err
			}
			if err := m.Verify(verifyRoot); err != nil {
				return failed(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "release %s verified (%d artifacts)\n", m.EngineVersion, len(m.Artifacts))
			return nil
		},
	}
	verify.Flags().StringVar(&verifyRoot, "root", ".", "directory artifact paths are relative to")

	cmd.AddCommand(build, verify)
	return cmd
}
