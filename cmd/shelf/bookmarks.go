package main

import (
	"fmt"
	"strings"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/shelfmark/shelf/internal/backend"
	"github.com/shelfmark/shelf/internal/browse"
	"github.com/shelfmark/shelf/internal/records"
)

type lsFlags struct {
	folder    string
	favorites bool
	archived  bool
	tag       string
	sort      string
	order     string
	limit     int
}

func (c *cli) lsCmd() *cobra.Command {
	var f lsFlags
	cmd := &cobra.Command{
		Use:     "ls [search...]",
		Aliases: []string{"list"},
		Short:   "List bookmarks",
		Long:    "List bookmarks, newest first. Words after the flags search title, url, description and tags.",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, _, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			folders, bookmarks, err := env.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			q, err := f.query(folders, strings.Join(args, " "))
			if err != nil {
				return err
			}
			visible := browse.Apply(bookmarks, q)
			if f.limit > 0 && len(visible) > f.limit {
				visible = visible[:f.limit]
			}
			printBookmarks(cmd.OutOrStdout(), visible, folders)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&f.folder, "folder", "F", "", "only bookmarks in this folder (name or id)")
	flags.BoolVarP(&f.favorites, "favorites", "f", false, "only favorites")
	flags.BoolVarP(&f.archived, "archived", "a", false, "show the archive instead of active bookmarks")
	flags.StringVarP(&f.tag, "tag", "t", "", "only bookmarks with this tag")
	flags.StringVar(&f.sort, "sort", string(browse.SortCreated), "sort by created_at, title, url or visit_count")
	flags.StringVar(&f.order, "order", string(browse.Desc), "sort order, asc or desc")
	flags.IntVarP(&f.limit, "limit", "n", 0, "show at most n bookmarks")
	return cmd
}

func (f lsFlags) query(folders []records.Folder, search string) (browse.Query, error) {
	field, err := browse.ParseSort(f.sort)
	if err != nil {
		return browse.Query{}, err
	}
	order, err := browse.ParseOrder(f.order)
	if err != nil {
		return browse.Query{}, err
	}
	q := browse.Query{
		Favorites: f.favorites,
		Archived:  f.archived,
		Search:    strings.TrimSpace(search),
		Tag:       strings.TrimSpace(f.tag),
		Sort:      field,
		Order:     order,
	}
	if f.folder != "" {
		folder, err := findFolder(folders, f.folder)
		if err != nil {
			return browse.Query{}, err
		}
		q.FolderID = folder.ID
	}
	return q, nil
}

func (c *cli) addCmd() *cobra.Command {
	var (
		title  string
		desc   string
		tags   string
		folder string
		fav    bool
	)
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Add a bookmark",
		Long:  "Add a bookmark. A missing scheme becomes https:// and a missing title is taken from the domain.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := records.NormalizeURL(args[0])
			if !records.ValidURL(url) {
				return fmt.Errorf("invalid url %q", args[0])
			}

			env, user, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			var folderID *string
			if folder != "" {
				folders, err := env.Client.ListFolders(cmd.Context())
				if err != nil {
					return err
				}
				found, err := findFolder(folders, folder)
				if err != nil {
					return err
				}
				folderID = &found.ID
			}

			b := records.NewBookmark(records.NewBookmarkParams{
				UserID:      user.ID,
				URL:         url,
				Title:       strings.TrimSpace(title),
				Description: strings.TrimSpace(desc),
				FolderID:    folderID,
				Tags:        browse.ParseTags(tags),
				Favorite:    fav,
			})
			created, err := env.Client.CreateBookmark(cmd.Context(), b)
			if err != nil {
				return fmt.Errorf("add bookmark: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", created.Title, shortID(created.ID))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&title, "title", "", "title (default: derived from the domain)")
	flags.StringVarP(&desc, "description", "d", "", "description")
	flags.StringVarP(&tags, "tags", "t", "", "comma separated tags")
	flags.StringVarP(&folder, "folder", "F", "", "folder name or id")
	flags.BoolVarP(&fav, "favorite", "f", false, "mark as favorite")
	return cmd
}

type editFlags struct {
	url    string
	title  string
	desc   string
	folder string
	tags   string
	fav    bool
}

func (c *cli) editCmd() *cobra.Command {
	var f editFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a bookmark's url, title, description, folder, tags or favorite flag",
		Long:  "Change a bookmark. Only the flags given are written; --folder \"\" moves it out of its folder.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := cmd.Flags().Changed
			env, _, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			var folders []records.Folder
			if changed("folder") && strings.TrimSpace(f.folder) != "" {
				if folders, err = env.Client.ListFolders(cmd.Context()); err != nil {
					return err
				}
			}
			p, err := f.patch(changed, folders)
			if err != nil {
				return err
			}
			bookmarks, err := env.Client.ListBookmarks(cmd.Context())
			if err != nil {
				return err
			}
			b, err := findByPrefix(bookmarks, args[0], "bookmark")
			if err != nil {
				return err
			}
			updated, err := backend.EditBookmark(cmd.Context(), env.Client, b.ID, p)
			if err != nil {
				return fmt.Errorf("edit bookmark: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s)\n", updated.Title, shortID(updated.ID))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.url, "url", "", "new url")
	flags.StringVar(&f.title, "title", "", "new title")
	flags.StringVarP(&f.desc, "desc", "d", "", "new description, empty to clear")
	flags.StringVarP(&f.folder, "folder", "F", "", "folder name or id, empty to unfile")
	flags.StringVarP(&f.tags, "tags", "t", "", "comma separated tags, replacing the current ones")
	flags.BoolVarP(&f.fav, "fav", "f", false, "favorite flag")
	return cmd
}

// patch builds the column changes for the flags reported by changed.
func (f editFlags) patch(changed func(string) bool, folders []records.Folder) (backend.Patch, error) {
	p := backend.Patch{}
	if changed("url") {
		url := records.NormalizeURL(f.url)
		if !records.ValidURL(url) {
			return nil, fmt.Errorf("invalid url %q", f.url)
		}
		p["url"] = url
	}
	if changed("title") {
		title := strings.TrimSpace(f.title)
		if title == "" {
			return nil, fmt.Errorf("title cannot be empty")
		}
		p["title"] = title
	}
	if changed("desc") {
		if desc := strings.TrimSpace(f.desc); desc != "" {
			p["description"] = desc
		} else {
			p["description"] = nil
		}
	}
	if changed("folder") {
		if strings.TrimSpace(f.folder) == "" {
			p["folder_id"] = nil
		} else {
			folder, err := findFolder(folders, f.folder)
			if err != nil {
				return nil, err
			}
			p["folder_id"] = folder.ID
		}
	}
	if changed("tags") {
		p["tags"] = browse.ParseTags(f.tags)
	}
	if changed("fav") {
		p["is_favorite"] = f.fav
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("nothing to change; pass at least one of --url, --title, --desc, --folder, --tags, --fav")
	}
	return p, nil
}

// bookmarkAction builds a command that resolves one bookmark id and applies fn.
func (c *cli) bookmarkAction(use, short string, fn func(cmd *cobra.Command, s backend.Store, b records.Bookmark) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, _, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			bookmarks, err := env.Client.ListBookmarks(cmd.Context())
			if err != nil {
				return err
			}
			b, err := findByPrefix(bookmarks, args[0], "bookmark")
			if err != nil {
				return err
			}
			msg, err := fn(cmd, env.Client, b)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func (c *cli) rmCmd() *cobra.Command {
	cmd := c.bookmarkAction("rm", "Delete a bookmark", func(cmd *cobra.Command, s backend.Store, b records.Bookmark) (string, error) {
		if err := s.DeleteBookmark(cmd.Context(), b.ID); err != nil {
			return "", fmt.Errorf("delete bookmark: %w", err)
		}
		return "Deleted " + b.Title, nil
	})
	cmd.Aliases = []string{"remove", "delete"}
	return cmd
}

func (c *cli) favCmd() *cobra.Command {
	return c.bookmarkAction("fav", "Toggle a bookmark's favorite flag", func(cmd *cobra.Command, s backend.Store, b records.Bookmark) (string, error) {
		if _, err := backend.ToggleFavorite(cmd.Context(), s, b); err != nil {
			return "", fmt.Errorf("toggle favorite: %w", err)
		}
		if b.IsFavorite {
			return "Removed from favorites: " + b.Title, nil
		}
		return "★ " + b.Title, nil
	})
}

func (c *cli) openCmd() *cobra.Command {
	return c.bookmarkAction("open", "Open a bookmark in the browser and count the visit", func(cmd *cobra.Command, s backend.Store, b records.Bookmark) (string, error) {
		if err := browser.OpenURL(b.URL); err != nil {
			return "", fmt.Errorf("open browser: %w", err)
		}
		if _, err := backend.RecordVisit(cmd.Context(), s, b); err != nil {
			return "", fmt.Errorf("record visit: %w", err)
		}
		return "Opened " + b.URL, nil
	})
}

func (c *cli) archiveCmd() *cobra.Command {
	var undo bool
	cmd := c.bookmarkAction("archive", "Archive a bookmark, or restore it with --undo", func(cmd *cobra.Command, s backend.Store, b records.Bookmark) (string, error) {
		if _, err := backend.SetArchived(cmd.Context(), s, b.ID, !undo); err != nil {
			return "", fmt.Errorf("archive bookmark: %w", err)
		}
		if undo {
			return "Restored " + b.Title, nil
		}
		return "Archived " + b.Title, nil
	})
	cmd.Flags().BoolVarP(&undo, "undo", "u", false, "restore from the archive")
	return cmd
}
