package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/shelfmark/shelf/internal/browse"
	"github.com/shelfmark/shelf/internal/livesync"
	"github.com/shelfmark/shelf/internal/records"
)

// Watch runs both collections headless and prints a line to out whenever
// the item counts or connection states change. It returns when ctx ends.
func Watch(ctx context.Context, env *Env, out io.Writer) error {
	user, err := env.RequireUser(ctx)
	if err != nil {
		return err
	}

	cachedAt := env.CachedAt(ctx, user.ID)
	updates := make(chan struct{}, 1)
	live, err := env.NewLive(browse.Query{}, func() {
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

	fmt.Fprintf(out, "watching collections for %s (ctrl+c to stop)\n", user.Email)
	if !cachedAt.IsZero() {
		fmt.Fprintf(out, "starting from a snapshot cached %s\n", humanize.Time(cachedAt))
	}
	last := ""
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-live.SignedOut():
			return ErrSessionExpired
		case <-updates:
		}
		line := summarize(live.Folders.Snapshot(), live.Bookmarks.Snapshot())
		if line == last {
			continue
		}
		last = line
		fmt.Fprintf(out, "%s  %s\n", time.Now().Format("15:04:05"), line)
	}
}

func summarize(fv livesync.View[records.Folder], bv livesync.View[records.Bookmark]) string {
	line := fmt.Sprintf("folders=%d [%s] bookmarks=%d [%s]", len(fv.Items), fv.State, len(bv.Items), bv.State)
	if fv.Polling || bv.Polling {
		line += " polling"
	}
	if bv.LastError != nil {
		line += fmt.Sprintf(" err=%q", bv.LastError.Error())
	} else if fv.LastError != nil {
		line += fmt.Sprintf(" err=%q", fv.LastError.Error())
	}
	return line
}
