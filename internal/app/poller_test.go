package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/shelfmark/shelf/internal/backend"
)

func TestCalculateBackoff(t *testing.T) {
	base := 2 * time.Second
	ceiling := 30 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second}, // Would be 32s, capped to 30s
		{"many failures capped", 40, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, base, ceiling)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, base, got, tt.want)
			}
		})
	}
}

type fakeSession struct {
	mu      sync.Mutex
	token   string
	calls   int
	fail    int // first n calls fail
	rotate  bool
	lastErr error
}

func (f *fakeSession) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeSession) EnsureFresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.fail {
		if f.lastErr != nil {
			return f.lastErr
		}
		return errors.New("refresh failed")
	}
	if f.rotate {
		f.token += "+"
	}
	return nil
}

func (f *fakeSession) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePusher struct {
	mu    sync.Mutex
	calls int
}

func (f *fakePusher) SetAuth() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakePusher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func newKeeper(sess sessionRefresher, feed tokenPusher) *sessionKeeper {
	return &sessionKeeper{sess: sess, feed: feed, logger: log.New(io.Discard), every: 5 * time.Millisecond, retry: time.Millisecond}
}

func TestSessionKeeper_PushesRotatedToken(t *testing.T) {
	sess := &fakeSession{token: "t", rotate: true}
	feed := &fakePusher{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go newKeeper(sess, feed).run(ctx)

	waitFor(t, func() bool { return feed.count() >= 2 })
}

func TestSessionKeeper_UnchangedTokenNotPushed(t *testing.T) {
	sess := &fakeSession{token: "t"}
	feed := &fakePusher{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go newKeeper(sess, feed).run(ctx)

	waitFor(t, func() bool { return sess.callCount() >= 3 })
	if got := feed.count(); got != 0 {
		t.Fatalf("SetAuth called %d times, want 0", got)
	}
}

func TestSessionKeeper_RetriesAfterFailure(t *testing.T) {
	sess := &fakeSession{token: "t", fail: 2, rotate: true}
	feed := &fakePusher{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go newKeeper(sess, feed).run(ctx)

	waitFor(t, func() bool { return feed.count() >= 1 })
	if sess.callCount() < 3 {
		t.Fatalf("EnsureFresh calls = %d, want >= 3", sess.callCount())
	}
}

func TestSessionKeeper_StopsWhenSignedOut(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"no session", backend.ErrNotAuthenticated},
		{"refresh token revoked", &backend.APIError{Status: 400, Path: "/auth/v1/token", Message: "invalid refresh token"}},
		{"unauthorized", fmt.Errorf("refresh session: %w", &backend.APIError{Status: 401, Path: "/auth/v1/token"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &fakeSession{fail: 100, lastErr: tt.err}
			k := newKeeper(sess, nil)
			var lost atomic.Int32
			k.onLost = func() { lost.Add(1) }

			done := make(chan struct{})
			go func() {
				k.run(context.Background())
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("keeper did not stop without a session")
			}
			if sess.callCount() != 1 {
				t.Fatalf("EnsureFresh calls = %d, want 1", sess.callCount())
			}
			if got := lost.Load(); got != 1 {
				t.Fatalf("onLost called %d times, want 1", got)
			}
		})
	}
}

func TestSessionKeeper_TransientErrorKeepsSession(t *testing.T) {
	sess := &fakeSession{token: "t", fail: 3, lastErr: &backend.APIError{Status: 503, Path: "/auth/v1/token"}}
	k := newKeeper(sess, nil)
	var lost atomic.Int32
	k.onLost = func() { lost.Add(1) }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go k.run(ctx)

	waitFor(t, func() bool { return sess.callCount() >= 4 })
	if got := lost.Load(); got != 0 {
		t.Fatalf("onLost called %d times on a server error", got)
	}
}

func TestSessionLost(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not authenticated", backend.ErrNotAuthenticated, true},
		{"bad request", &backend.APIError{Status: 400}, true},
		{"wrapped unauthorized", fmt.Errorf("refresh: %w", &backend.APIError{Status: 401}), true},
		{"server error", &backend.APIError{Status: 500}, false},
		{"network", errors.New("dial tcp: connection refused"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sessionLost(tt.err); got != tt.want {
				t.Errorf("sessionLost(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSessionKeeper_StopsWithContext(t *testing.T) {
	sess := &fakeSession{token: "t"}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		newKeeper(sess, nil).run(ctx)
		close(done)
	}()
	waitFor(t, func() bool { return sess.callCount() >= 1 })
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("keeper did not stop after cancel")
	}
}
