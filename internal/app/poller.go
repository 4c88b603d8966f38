package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/shelfmark/shelf/internal/backend"
)

const (
	defaultKeepEvery  = 30 * time.Second
	defaultRetryAfter = 2 * time.Second
)

type sessionRefresher interface {
	AccessToken() string
	EnsureFresh(ctx context.Context) error
}

type tokenPusher interface {
	SetAuth() error
}

type sessionKeeper struct {
	sess   sessionRefresher
	feed   tokenPusher
	onLost func()
	logger *log.Logger
	every  time.Duration
	retry  time.Duration
}

// StartSessionKeeper launches a background goroutine that refreshes the
// session before it expires and pushes rotated tokens to the realtime feed.
// When the server rejects the session, onLost runs once and the keeper
// stops. It returns immediately and stops with ctx.
func StartSessionKeeper(ctx context.Context, sess sessionRefresher, feed tokenPusher, onLost func(), interval time.Duration, logger *log.Logger) {
	if interval <= 0 {
		interval = defaultKeepEvery
	}
	if logger == nil {
		logger = log.Default()
	}
	k := &sessionKeeper{
		sess:   sess,
		feed:   feed,
		onLost: onLost,
		logger: logger.WithPrefix("session"),
		every:  interval,
		retry:  defaultRetryAfter,
	}
	go k.run(ctx)
}

// sessionLost reports whether err means the session can no longer be
// refreshed and the user has to sign in again.
func sessionLost(err error) bool {
	if errors.Is(err, backend.ErrNotAuthenticated) {
		return true
	}
	var apiErr *backend.APIError
	return errors.As(err, &apiErr) &&
		(apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnauthorized)
}

func (k *sessionKeeper) run(ctx context.Context) {
	failures := 0
	for {
		wait := k.every
		if err := k.refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			if sessionLost(err) {
				k.logger.Warn("session rejected, stopping sync", "err", err)
				if k.onLost != nil {
					k.onLost()
				}
				return
			}
			wait = calculateBackoff(failures, k.retry, k.every)
			failures++
			k.logger.Warn("session refresh failed", "err", err, "retry_in", wait)
		} else {
			failures = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (k *sessionKeeper) refresh(ctx context.Context) error {
	before := k.sess.AccessToken()
	if err := k.sess.EnsureFresh(ctx); err != nil {
		return err
	}
	if k.feed != nil && k.sess.AccessToken() != before {
		if err := k.feed.SetAuth(); err != nil {
			k.logger.Debug("push token to feed", "err", err)
		}
	}
	return nil
}

// calculateBackoff returns base doubled once per failure, capped at ceiling.
func calculateBackoff(failures int, base, ceiling time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	if failures > 16 {
		return ceiling
	}
	d := base << failures
	if d > ceiling || d <= 0 {
		return ceiling
	}
	return d
}
