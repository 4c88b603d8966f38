package livesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// ErrNoOwner is returned by Start when no owner identity is given.
	ErrNoOwner = errors.New("livesync: owner required")
	// ErrNotRunning is returned by Refresh on a stopped instance.
	ErrNotRunning = errors.New("livesync: not running")

	errNoLoader = errors.New("livesync: no loader configured")
	errNoFeed   = errors.New("livesync: no change feed configured")
)

// LoadFunc fetches the full collection for the authenticated session, in the
// collection's server order.
type LoadFunc[T Record] func(ctx context.Context) ([]T, error)

// Listener receives the callbacks of one feed subscription.
type Listener struct {
	Channel string
	Table   string
	// Owner lets the transport narrow the feed server-side. Events are
	// filtered by owner again on receipt.
	Owner    string
	OnChange func(RawChange)
	OnStatus func(FeedStatus, error)
}

// Feed opens change subscriptions scoped to one table.
type Feed interface {
	Subscribe(ctx context.Context, l Listener) (Subscription, error)
}

// Subscription is a live feed handle.
type Subscription interface {
	Close() error
}

// Cache persists the last good snapshot per owner.
type Cache[T Record] interface {
	Load(ctx context.Context, owner string) ([]T, error)
	Save(ctx context.Context, owner string, items []T) error
}

// Options configure a Sync.
type Options[T Record] struct {
	Collection Collection[T]
	Load       LoadFunc[T]
	Feed       Feed
	Cache      Cache[T]      // optional
	Interval   time.Duration // zero uses DefaultPollInterval
	Logger     *log.Logger
	// OnUpdate is called after the collection or connection state changes.
	// It runs outside the lock and must not block.
	OnUpdate func()
}

// View is a read-only snapshot of a Sync.
type View[T Record] struct {
	Owner      string
	Items      []T
	State      ConnState
	Polling    bool
	LastReload time.Time
	LastError  error
	Version    uint64
}

// Sync keeps an in-memory collection consistent with the server for one owner.
type Sync[T Record] struct {
	coll     Collection[T]
	load     LoadFunc[T]
	feed     Feed
	cache    Cache[T]
	interval time.Duration
	logger   *log.Logger
	onUpdate func()

	mu         sync.RWMutex
	owner      string
	items      []T
	state      ConnState
	running    bool
	gen        uint64
	runCtx     context.Context
	cancel     context.CancelFunc
	poll       *poller
	sub        Subscription
	lastReload time.Time
	lastErr    error
	version    uint64
}

// New builds a stopped Sync.
func New[T Record](opts Options[T]) *Sync[T] {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Sync[T]{
		coll:     opts.Collection,
		load:     opts.Load,
		feed:     opts.Feed,
		cache:    opts.Cache,
		interval: interval,
		logger:   logger.WithPrefix(opts.Collection.Table),
		onUpdate: opts.OnUpdate,
		state:    TornDown,
	}
}

// Start begins the lifecycle for owner: it seeds from the cache, triggers a
// snapshot load, opens the change feed and arms the fallback poller. Starting
// again for the same owner is a no-op; a different owner restarts.
func (s *Sync[T]) Start(ctx context.Context, owner string) error {
	if owner == "" {
		return ErrNoOwner
	}

	s.mu.RLock()
	same := s.running && s.owner == owner
	s.mu.RUnlock()
	if same {
		return nil
	}
	s.Stop()

	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.owner != owner {
		s.items = nil
		s.lastReload = time.Time{}
		s.version++
	}
	s.owner = owner
	s.running = true
	s.state = Connecting
	s.runCtx = runCtx
	s.cancel = cancel
	s.lastErr = nil
	s.armLocked(gen)
	s.mu.Unlock()

	s.logger.Info("sync starting", "owner", owner, "interval", s.interval)
	s.seed(runCtx, gen, owner)
	go func() { _ = s.reload(runCtx, gen) }()

	if s.feed == nil {
		s.handleStatus(gen, StatusChannelError, errNoFeed)
		return nil
	}
	sub, err := s.feed.Subscribe(runCtx, Listener{
		Channel:  s.coll.Channel,
		Table:    s.coll.Table,
		Owner:    owner,
		OnChange: func(raw RawChange) { s.apply(gen, raw) },
		OnStatus: func(st FeedStatus, err error) { s.handleStatus(gen, st, err) },
	})
	if err != nil {
		s.handleStatus(gen, StatusChannelError, fmt.Errorf("subscribe %s: %w", s.coll.Channel, err))
		return nil
	}

	s.mu.Lock()
	if !s.running || s.gen != gen {
		s.mu.Unlock()
		_ = sub.Close()
		return nil
	}
	s.sub = sub
	s.mu.Unlock()
	return nil
}

// Stop releases the feed subscription and cancels the poller. It is safe to
// call any number of times.
func (s *Sync[T]) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.gen++
	s.state = TornDown
	sub := s.sub
	s.sub = nil
	s.disarmLocked()
	cancel := s.cancel
	s.cancel = nil
	s.runCtx = nil
	s.version++
	s.mu.Unlock()

	if sub != nil {
		if err := sub.Close(); err != nil {
			s.logger.Debug("close subscription", "err", err)
		}
	}
	if cancel != nil {
		cancel()
	}
	s.logger.Info("sync stopped")
	s.notify()
}

// Refresh reloads the full collection now.
func (s *Sync[T]) Refresh(ctx context.Context) error {
	s.mu.RLock()
	running, gen := s.running, s.gen
	s.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}
	return s.reload(ctx, gen)
}

// Apply merges a raw change event into the running collection. Events that
// fail validation or belong to another owner are dropped.
func (s *Sync[T]) Apply(raw RawChange) {
	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()
	s.apply(gen, raw)
}

// Snapshot returns a copy of the current state.
func (s *Sync[T]) Snapshot() View[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View[T]{
		Owner:      s.owner,
		State:      s.state,
		Polling:    s.poll != nil,
		LastReload: s.lastReload,
		Version:    s.version,
	}
	if len(s.items) > 0 {
		v.Items = make([]T, len(s.items))
		copy(v.Items, s.items)
	}
	v.LastError = s.lastErr
	return v
}

// State returns the connection state.
func (s *Sync[T]) State() ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Polling reports whether the fallback poller is armed.
func (s *Sync[T]) Polling() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.poll != nil
}

func (s *Sync[T]) apply(gen uint64, raw RawChange) {
	ch, err := Decode(s.coll, raw)
	if err != nil {
		s.logger.Debug("dropping change", "err", err)
		return
	}

	s.mu.Lock()
	if !s.running || s.gen != gen {
		s.mu.Unlock()
		return
	}
	if ch.Owner != "" && ch.Owner != s.owner {
		s.mu.Unlock()
		return
	}
	items, changed := s.coll.merge(s.items, ch)
	if changed {
		s.items = items
		s.version++
	}
	s.mu.Unlock()

	if changed {
		s.logger.Debug("applied change", "kind", ch.Kind, "id", ch.ID)
		s.notify()
	}
}

func (s *Sync[T]) handleStatus(gen uint64, status FeedStatus, err error) {
	s.mu.Lock()
	if !s.running || s.gen != gen {
		s.mu.Unlock()
		return
	}
	prev := s.state
	next := NextState(prev, status)
	s.state = next
	if next.Polls() {
		s.armLocked(gen)
	} else {
		s.disarmLocked()
	}
	s.mu.Unlock()

	if prev == next {
		return
	}
	switch next {
	case Live:
		s.logger.Info("channel connected", "channel", s.coll.Channel)
	case Degraded:
		s.logger.Warn("falling back to polling", "channel", s.coll.Channel, "status", status, "err", err)
	}
	s.notify()
}

func (s *Sync[T]) reload(ctx context.Context, gen uint64) error {
	if s.load == nil {
		return errNoLoader
	}
	items, err := s.load(ctx)

	s.mu.Lock()
	if !s.running || s.gen != gen {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.lastErr = err
		}
		s.mu.Unlock()
		s.logger.Warn("reload failed", "err", err)
		return fmt.Errorf("reload %s: %w", s.coll.Table, err)
	}
	fresh := s.coll.sorted(append([]T(nil), items...))
	s.items = fresh
	s.lastReload = time.Now()
	s.lastErr = nil
	s.version++
	owner := s.owner
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Save(ctx, owner, fresh); err != nil {
			s.logger.Warn("cache save failed", "err", err)
		}
	}
	s.notify()
	return nil
}

func (s *Sync[T]) seed(ctx context.Context, gen uint64, owner string) {
	if s.cache == nil {
		return
	}
	items, err := s.cache.Load(ctx, owner)
	if err != nil {
		s.logger.Warn("cache load failed", "err", err)
		return
	}
	if len(items) == 0 {
		return
	}

	s.mu.Lock()
	if !s.running || s.gen != gen || len(s.items) > 0 || !s.lastReload.IsZero() {
		s.mu.Unlock()
		return
	}
	s.items = s.coll.sorted(append([]T(nil), items...))
	s.version++
	s.mu.Unlock()
	s.notify()
}

// armLocked starts the fallback poller unless it is already running.
func (s *Sync[T]) armLocked(gen uint64) {
	if s.poll != nil || s.runCtx == nil {
		return
	}
	ctx := s.runCtx
	s.poll = startPoller(ctx, s.interval, func() {
		if err := s.reload(ctx, gen); err != nil {
			s.logger.Debug("poll", "err", err)
		}
	})
	s.logger.Debug("poller armed", "interval", s.interval)
}

func (s *Sync[T]) disarmLocked() {
	if s.poll == nil {
		return
	}
	s.poll.stop()
	s.poll = nil
	s.logger.Debug("poller disarmed")
}

func (s *Sync[T]) notify() {
	if s.onUpdate != nil {
		s.onUpdate()
	}
}
