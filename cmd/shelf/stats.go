package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/shelfmark/shelf/internal/browse"
)

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarise the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, _, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			folders, bookmarks, err := env.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), browse.ComputeStats(bookmarks, folders, time.Now()))
			return nil
		},
	}
}
