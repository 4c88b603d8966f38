package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shelfmark/shelf/internal/export"
)

func (c *cli) exportCmd() *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every bookmark",
		Long:  "Export every bookmark, archived ones included, as json, csv, yaml or a browser-importable html file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			env, _, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			folders, bookmarks, err := env.Fetch(cmd.Context())
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				return export.Write(cmd.OutOrStdout(), f, bookmarks, folders)
			}
			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			if err := export.Write(file, f, bookmarks, folders); err != nil {
				_ = file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d bookmark(s) to %s\n", len(bookmarks), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "json, csv, yaml or html")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}
