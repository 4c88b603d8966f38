package main

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/shelfmark/shelf/internal/app"
)

func (c *cli) watchCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync both collections headless and report changes",
		Long:  "Run the live sync without the dashboard. Connection changes are logged to stderr, each applied change too with --verbose, and a summary line is printed whenever the counts or states move. Stop with ctrl+c.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.env(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()
			if verbose {
				env.Logger.SetLevel(log.DebugLevel)
			}
			return app.Watch(cmd.Context(), env, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every applied change")
	return cmd
}
