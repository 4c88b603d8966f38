package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/shelfmark/shelf/internal/logtail"
)

func (c *cli) logsCmd() *cobra.Command {
	var (
		lines  int
		level  string
		prefix []string
		plain  bool
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the tail of the dashboard log",
		Long:  "Print the last lines of the log the dashboard writes to the data directory. Use --level and --prefix to narrow it down, for example --prefix realtime to follow the live connection.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			minLevel, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
			if err != nil {
				return fmt.Errorf("--level: %w", err)
			}
			env, err := c.env(cmd)
			if err != nil {
				return err
			}
			path := env.Config.LogPath()
			_ = env.Close()

			tail, err := logtail.Read(path, 0)
			if err != nil {
				return err
			}
			tail = logtail.Filter(tail, minLevel, prefix...)
			if lines > 0 && len(tail) > lines {
				tail = tail[len(tail)-lines:]
			}
			if len(tail) == 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "No log lines in %s\n", path)
				return nil
			}
			if !plain {
				tail = logtail.HighlightLines(tail)
			}
			out := cmd.OutOrStdout()
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVarP(&lines, "lines", "n", 50, "number of lines to show, 0 for all")
	flags.StringVarP(&level, "level", "l", "debug", "lowest level to show: debug, info, warn or error")
	flags.StringSliceVarP(&prefix, "prefix", "p", nil, "only these components (ui, realtime, session, cache, bookmarks, folders)")
	flags.BoolVar(&plain, "plain", false, "print without colors")
	return cmd
}
