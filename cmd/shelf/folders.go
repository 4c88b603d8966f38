package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shelfmark/shelf/internal/backend"
	"github.com/shelfmark/shelf/internal/browse"
	"github.com/shelfmark/shelf/internal/records"
)

func (c *cli) folderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "folder",
		Aliases: []string{"folders"},
		Short:   "Manage folders",
	}
	cmd.AddCommand(c.folderAddCmd(), c.folderListCmd(), c.folderRemoveCmd(), c.folderRenameCmd())
	return cmd
}

func (c *cli) folderAddCmd() *cobra.Command {
	var color string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("folder name is required")
			}
			if err := checkColor(color); err != nil {
				return err
			}
			if pc, ok := records.PaletteColor(color); ok {
				color = pc
			}
			env, user, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			f := records.NewFolder(records.NewFolderParams{UserID: user.ID, Name: name, Color: color})
			created, err := env.Client.CreateFolder(cmd.Context(), f)
			if err != nil {
				return fmt.Errorf("create folder: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created folder %s (%s)\n", created.Name, shortID(created.ID))
			return nil
		},
	}
	cmd.Flags().StringVar(&color, "color", "", "folder color (default "+records.DefaultFolderColor+")")
	return cmd
}

func (c *cli) folderListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List folders with bookmark counts",
		Args:    cobra.NoArgs,
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
			printFolders(cmd.OutOrStdout(), folders, browse.FolderCounts(bookmarks))
			return nil
		},
	}
}

// folderAction resolves the folder named by the first argument and applies fn.
func (c *cli) folderAction(cmd *cobra.Command, ref string, fn func(s backend.Store, f records.Folder) (string, error)) error {
	env, _, err := c.session(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	folders, err := env.Client.ListFolders(cmd.Context())
	if err != nil {
		return err
	}
	f, err := findFolder(folders, ref)
	if err != nil {
		return err
	}
	msg, err := fn(env.Client, f)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func (c *cli) folderRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <folder>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a folder; its bookmarks move to no folder",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.folderAction(cmd, args[0], func(s backend.Store, f records.Folder) (string, error) {
				if err := s.DeleteFolder(cmd.Context(), f.ID); err != nil {
					return "", fmt.Errorf("delete folder: %w", err)
				}
				return "Deleted folder " + f.Name, nil
			})
		},
	}
}

func (c *cli) folderRenameCmd() *cobra.Command {
	var color string
	cmd := &cobra.Command{
		Use:   "rename <folder> <new name>",
		Short: "Rename a folder, optionally changing its color",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkColor(color); err != nil {
				return err
			}
			newName := strings.Join(args[1:], " ")
			return c.folderAction(cmd, args[0], func(s backend.Store, f records.Folder) (string, error) {
				renamed, err := backend.RenameFolder(cmd.Context(), s, f.ID, newName, color)
				if err != nil {
					return "", fmt.Errorf("rename folder: %w", err)
				}
				if renamed.Color != f.Color {
					return fmt.Sprintf("Renamed %s to %s (%s)", f.Name, renamed.Name, renamed.Color), nil
				}
				return fmt.Sprintf("Renamed %s to %s", f.Name, renamed.Name), nil
			})
		},
	}
	cmd.Flags().StringVar(&color, "color", "", "new folder color, one of "+strings.Join(records.FolderColors, " "))
	return cmd
}

// checkColor accepts an empty color or one from the folder palette.
func checkColor(color string) error {
	if color == "" {
		return nil
	}
	if _, ok := records.PaletteColor(color); !ok {
		return fmt.Errorf("unknown color %q; pick one of %s", color, strings.Join(records.FolderColors, ", "))
	}
	return nil
}
