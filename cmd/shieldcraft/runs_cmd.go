package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/store"
)

func newRunsCmd(g *globals) *cobra.Command {
	var storePath string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect runs recorded in the SQLite store",
	}
	cmd.PersistentFlags().StringVar(&storePath, "store", "", "SQLite run store (default from config)")

	open := func() (*store.SQLiteRunStore, error) {
		path := storePath
		if path == "" {
			cfg, err := g.load()
			if err != nil {
				return nil, err
			}
			path = cfg.StorePath
		}
		if path == "" {
			return nil, errors.New("no run store configured")
		}
		return store.Open(path)
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			runs, err := s.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "BUNDLE\tPRODUCT\tSTATE\tGRADE\tREFUSAL")
			for _, r := range runs {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.BundleHash[:12], r.ProductID, r.State, r.Grade, r.RefusalCode)
			}
			return w.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")

	show := &cobra.Command{
		Use:   "show <bundle-hash>",
		Short: "Print the stored bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			r, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return failed(err)
				}
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(r.Bundle))
			return nil
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}
