package app

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/shelfmark/shelf/internal/browse"
	"github.com/shelfmark/shelf/internal/cache"
	"github.com/shelfmark/shelf/internal/livesync"
	"github.com/shelfmark/shelf/internal/realtime"
	"github.com/shelfmark/shelf/internal/records"
	"github.com/shelfmark/shelf/internal/state"
)

// Live is the running pair of synced collections plus the dashboard store
// that reads them.
type Live struct {
	Folders   *livesync.Sync[records.Folder]
	Bookmarks *livesync.Sync[records.Bookmark]
	Store     *state.Store

	env       *Env
	feed      *realtime.Client
	signedOut chan struct{}
	lostOnce  sync.Once

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewLive wires both collections to the backend, the realtime feed and the
// snapshot cache. onUpdate is called after any collection or connection
// change and must not block.
func (e *Env) NewLive(q browse.Query, onUpdate func()) (*Live, error) {
	wsURL := e.Config.RealtimeURL
	if wsURL == "" {
		u, err := realtime.SocketURL(e.Config.APIURL, e.Config.APIKey)
		if err != nil {
			return nil, fmt.Errorf("realtime url: %w", err)
		}
		wsURL = u
	}
	feed, err := realtime.New(realtime.Options{
		URL:    wsURL,
		Token:  e.Client.AccessToken,
		Logger: e.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init realtime client: %w", err)
	}

	folderOpts := livesync.Options[records.Folder]{
		Collection: livesync.FolderCollection(),
		Load:       e.Client.ListFolders,
		Feed:       feed,
		Interval:   e.Config.PollInterval(),
		Logger:     e.Logger,
		OnUpdate:   onUpdate,
	}
	bookmarkOpts := livesync.Options[records.Bookmark]{
		Collection: livesync.BookmarkCollection(),
		Load:       e.Client.ListBookmarks,
		Feed:       feed,
		Interval:   e.Config.PollInterval(),
		Logger:     e.Logger,
		OnUpdate:   onUpdate,
	}
	if db, err := e.Cache(); err != nil {
		e.Logger.Warn("snapshot cache unavailable", "err", err)
	} else {
		folderOpts.Cache = cache.NewTable[records.Folder](db, folderOpts.Collection.Table, e.Logger)
		bookmarkOpts.Cache = cache.NewTable[records.Bookmark](db, bookmarkOpts.Collection.Table, e.Logger)
	}

	folders := livesync.New(folderOpts)
	bookmarks := livesync.New(bookmarkOpts)
	return &Live{
		Folders:   folders,
		Bookmarks: bookmarks,
		Store:     state.NewStore(folders, bookmarks, q),
		env:       e,
		feed:      feed,
		signedOut: make(chan struct{}),
	}, nil
}

// Start begins syncing both collections for owner and keeps the session
// token fresh while they run.
func (l *Live) Start(ctx context.Context, owner string) error {
	l.Stop()
	runCtx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()

	if err := l.Folders.Start(runCtx, owner); err != nil {
		l.Stop()
		return err
	}
	if err := l.Bookmarks.Start(runCtx, owner); err != nil {
		l.Stop()
		return err
	}
	StartSessionKeeper(runCtx, l.env.Client, l.feed, l.sessionLost, 0, l.env.Logger)
	return nil
}

// SignedOut is closed when the server rejects the session while syncing.
// Both collections are already stopped by then.
func (l *Live) SignedOut() <-chan struct{} {
	return l.signedOut
}

func (l *Live) sessionLost() {
	l.lostOnce.Do(func() {
		l.env.forgetSession()
		l.Stop()
		close(l.signedOut)
	})
}

// Stop tears both collections down. It is safe to call more than once and
// from any goroutine.
func (l *Live) Stop() {
	l.Folders.Stop()
	l.Bookmarks.Stop()
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	_ = l.feed.Close()
}

// Refresh reloads both collections now, typically after a local write.
func (l *Live) Refresh(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.Folders.Refresh(gctx) })
	g.Go(func() error { return l.Bookmarks.Refresh(gctx) })
	return g.Wait()
}
