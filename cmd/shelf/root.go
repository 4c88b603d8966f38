package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/shelfmark/shelf/internal/app"
	"github.com/shelfmark/shelf/internal/records"
)

// cli holds the persistent flags shared by every command.
type cli struct {
	configPath string
	prefsPath  string
	poll       int
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "shelf",
		Short: "Personal bookmark manager with live sync",
		Long: `shelf keeps your bookmarks and folders in sync with the server.

Run without arguments to open the dashboard. Changes made anywhere else
show up as they happen; when the live connection drops shelf keeps the
view current by polling until it comes back.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), c.options(nil))
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file path (default: ~/.config/shelf/config.toml)")
	flags.StringVar(&c.prefsPath, "prefs", "", "preferences file path (default: ~/.config/shelf/prefs.toml)")
	flags.IntVar(&c.poll, "poll", 0, "fallback polling interval in seconds (default from config)")

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.lsCmd(),
		c.addCmd(),
		c.editCmd(),
		c.rmCmd(),
		c.favCmd(),
		c.openCmd(),
		c.archiveCmd(),
		c.folderCmd(),
		c.exportCmd(),
		c.statsCmd(),
		c.watchCmd(),
		c.logsCmd(),
	)
	return root
}

func (c *cli) options(logOutput io.Writer) app.Options {
	return app.Options{
		ConfigPath: c.configPath,
		PrefsPath:  c.prefsPath,
		PollEvery:  c.poll,
		LogOutput:  logOutput,
	}
}

// env opens the shared services for a one-shot command. Logs go to stderr.
func (c *cli) env(cmd *cobra.Command) (*app.Env, error) {
	return app.Open(c.options(cmd.ErrOrStderr()))
}

// session opens the services and requires a signed-in user. The caller
// closes the returned env.
func (c *cli) session(cmd *cobra.Command) (*app.Env, records.User, error) {
	env, err := c.env(cmd)
	if err != nil {
		return nil, records.User{}, err
	}
	user, err := env.RequireUser(cmd.Context())
	if err != nil {
		_ = env.Close()
		return nil, records.User{}, err
	}
	return env, user, nil
}
