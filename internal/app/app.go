package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/shelfmark/shelf/internal/backend"
	"github.com/shelfmark/shelf/internal/browse"
	"github.com/shelfmark/shelf/internal/cache"
	"github.com/shelfmark/shelf/internal/config"
	"github.com/shelfmark/shelf/internal/livesync"
	"github.com/shelfmark/shelf/internal/prefs"
	"github.com/shelfmark/shelf/internal/records"
	"github.com/shelfmark/shelf/internal/ui"
)

// ErrNotSignedIn is returned when a command needs a session and none is stored.
var ErrNotSignedIn = errors.New("not signed in, run `shelf login`")

// ErrSessionExpired is returned when the server rejects the stored session.
var ErrSessionExpired = fmt.Errorf("%w (session expired)", ErrNotSignedIn)

// Options configure the shelf application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/shelf/prefs.toml
	PollEvery  int    // seconds; zero uses the config value
	// LogOutput receives log output. Nil appends to the log file in the data
	// dir, which is what the TUI wants.
	LogOutput io.Writer
}

// Env holds the services shared by the TUI and the CLI commands.
type Env struct {
	Config    config.Config
	PrefsPath string
	Logger    *log.Logger
	Client    *backend.Client

	logFile io.Closer

	cacheOnce sync.Once
	cache     *cache.DB
	cacheErr  error
}

// Open loads config and any stored session and builds the backend client.
func Open(opts Options) (*Env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if opts.PollEvery > 0 {
		cfg.PollSeconds = opts.PollEvery
	}

	env := &Env{Config: cfg, PrefsPath: opts.PrefsPath}

	out := opts.LogOutput
	if out == nil {
		f, err := openLogFile(cfg.LogPath())
		if err != nil {
			return nil, err
		}
		env.logFile = f
		out = f
	}
	env.Logger = log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		Level:           cfg.Level(),
	})

	client, err := backend.NewClient(cfg.APIURL, cfg.APIKey)
	if err != nil {
		_ = env.Close()
		return nil, fmt.Errorf("init backend client: %w", err)
	}
	sess, ok, err := backend.LoadSession(cfg.SessionPath())
	switch {
	case err != nil:
		env.Logger.Warn("ignoring unreadable session", "path", cfg.SessionPath(), "err", err)
	case ok:
		client.SetSession(sess)
	}
	client.OnSessionChange(func(s backend.Session) {
		if err := backend.SaveSession(cfg.SessionPath(), s); err != nil {
			env.Logger.Error("persist session", "err", err)
		}
	})
	env.Client = client
	return env, nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// CachedAt reports when the bookmark snapshot for owner was last cached. It
// returns the zero time when nothing is cached or the cache cannot be read.
func (e *Env) CachedAt(ctx context.Context, owner string) time.Time {
	db, err := e.Cache()
	if err != nil {
		return time.Time{}
	}
	at, err := db.SavedAt(ctx, livesync.BookmarkCollection().Table, owner)
	if err != nil {
		e.Logger.Debug("read snapshot age", "err", err)
		return time.Time{}
	}
	return at
}

// Close releases the cache and log file.
func (e *Env) Close() error {
	var errs []error
	if e.cache != nil {
		errs = append(errs, e.cache.Close())
	}
	if e.logFile != nil {
		errs = append(errs, e.logFile.Close())
	}
	return errors.Join(errs...)
}

// Cache opens the snapshot cache on first use.
func (e *Env) Cache() (*cache.DB, error) {
	e.cacheOnce.Do(func() {
		e.cache, e.cacheErr = cache.Open(e.Config.CachePath())
	})
	return e.cache, e.cacheErr
}

// RequireUser returns the signed-in user, refreshing the session first when
// it is about to expire.
func (e *Env) RequireUser(ctx context.Context) (records.User, error) {
	if _, ok := e.Client.Session(); !ok {
		return records.User{}, ErrNotSignedIn
	}
	if err := e.Client.EnsureFresh(ctx); err != nil {
		if sessionLost(err) {
			e.forgetSession()
			return records.User{}, ErrSessionExpired
		}
		return records.User{}, err
	}
	sess, _ := e.Client.Session()
	return sess.User, nil
}

func (e *Env) forgetSession() {
	if err := backend.RemoveSession(e.Config.SessionPath()); err != nil {
		e.Logger.Warn("remove stale session", "err", err)
	}
}

// Login signs in and persists the session.
func (e *Env) Login(ctx context.Context, email, password string) (records.User, error) {
	sess, err := e.Client.SignIn(ctx, email, password)
	if err != nil {
		return records.User{}, fmt.Errorf("sign in: %w", err)
	}
	e.Logger.Info("signed in", "user", sess.User.ID)
	return sess.User, nil
}

// Logout revokes the session, removes it from disk and drops the cached
// snapshots of the signed-out user.
func (e *Env) Logout(ctx context.Context) error {
	sess, ok := e.Client.Session()
	signOutErr := e.Client.SignOut(ctx)
	if err := backend.RemoveSession(e.Config.SessionPath()); err != nil {
		return err
	}
	if ok && sess.User.ID != "" {
		if db, err := e.Cache(); err != nil {
			e.Logger.Warn("open cache", "err", err)
		} else if err := db.Purge(ctx, sess.User.ID); err != nil {
			e.Logger.Warn("purge cache", "err", err)
		}
	}
	if signOutErr != nil {
		e.Logger.Warn("server sign out failed", "err", signOutErr)
	}
	return nil
}

// Fetch loads folders and bookmarks concurrently.
func (e *Env) Fetch(ctx context.Context) ([]records.Folder, []records.Bookmark, error) {
	var (
		folders   []records.Folder
		bookmarks []records.Bookmark
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		folders, err = e.Client.ListFolders(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		bookmarks, err = e.Client.ListBookmarks(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return folders, bookmarks, nil
}

// Run boots the shelf TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	env, err := Open(opts)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	user, err := env.RequireUser(ctx)
	if err != nil {
		return err
	}

	userPrefs, _ := prefs.Load(opts.PrefsPath)
	field, order := userPrefs.Sort()

	updates := make(chan struct{}, 1)
	live, err := env.NewLive(browse.Query{Sort: field, Order: order}, func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	if err := live.Start(ctx, user.ID); err != nil {
		return fmt.Errorf("start sync: %w", err)
	}
	defer live.Stop()

	err = ui.Run(ui.Options{
		Context:   ctx,
		Store:     live.Store,
		Actions:   env.Client,
		Refresh:   live.Refresh,
		Updates:   updates,
		SignedOut: live.SignedOut(),
		User:      user,
		Prefs:     userPrefs,
		PrefsPath: opts.PrefsPath,
		Logger:    env.Logger,
	})
	if errors.Is(err, ui.ErrSignedOut) {
		return ErrSessionExpired
	}
	return err
}
