package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/websocket"

	"github.com/shelfmark/shelf/internal/livesync"
)

const (
	DefaultHeartbeat   = 25 * time.Second
	DefaultJoinTimeout = 10 * time.Second
	defaultBackoff     = time.Second
	maxBackoff         = 30 * time.Second
)

var (
	errChannelError     = errors.New("channel error")
	errHeartbeatTimeout = errors.New("heartbeat not acknowledged")
)

// TokenSource returns the current access token.
type TokenSource func() string

// Options configure a Client.
type Options struct {
	// URL is the websocket endpoint, see SocketURL.
	URL         string
	Origin      string
	Token       TokenSource
	Logger      *log.Logger
	Heartbeat   time.Duration
	JoinTimeout time.Duration
	// Backoff is the base reconnect delay; it doubles per failure up to 30s.
	Backoff time.Duration
}

// Client multiplexes channel subscriptions over one websocket and reconnects
// with exponential backoff. It implements livesync.Feed.
type Client struct {
	url         string
	origin      string
	token       TokenSource
	logger      *log.Logger
	heartbeat   time.Duration
	joinTimeout time.Duration
	backoff     time.Duration

	mu       sync.Mutex
	conn     *websocket.Conn
	channels map[string]*channel
	ref      uint64
	cancel   context.CancelFunc
	// pending heartbeat ref, cleared by the server's reply
	hbRef  string
	hbLost bool

	writeMu sync.Mutex
}

var _ livesync.Feed = (*Client)(nil)

// New validates opts and returns an idle client. The socket is opened on the
// first Subscribe and closed when the last subscription is released.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("realtime url is required")
	}
	c := &Client{
		url:         opts.URL,
		origin:      opts.Origin,
		token:       opts.Token,
		logger:      opts.Logger,
		heartbeat:   opts.Heartbeat,
		joinTimeout: opts.JoinTimeout,
		backoff:     opts.Backoff,
		channels:    make(map[string]*channel),
	}
	if c.origin == "" {
		c.origin = "http://localhost/"
	}
	if c.token == nil {
		c.token = func() string { return "" }
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	c.logger = c.logger.WithPrefix("realtime")
	if c.heartbeat <= 0 {
		c.heartbeat = DefaultHeartbeat
	}
	if c.joinTimeout <= 0 {
		c.joinTimeout = DefaultJoinTimeout
	}
	if c.backoff <= 0 {
		c.backoff = defaultBackoff
	}
	return c, nil
}

type channel struct {
	client   *Client
	topic    string
	listener livesync.Listener

	// guarded by client.mu
	joinRef  string
	joined   bool
	closed   bool
	failures int
	timer    *time.Timer
}

// Subscribe joins the channel named by l. Status changes and change events
// are delivered to l's callbacks from the client's reader goroutine. The
// subscription is released by Close or when ctx is cancelled.
func (c *Client) Subscribe(ctx context.Context, l livesync.Listener) (livesync.Subscription, error) {
	if l.Channel == "" || l.Table == "" {
		return nil, errors.New("realtime: channel and table are required")
	}
	topic := topicFor(l.Channel)

	c.mu.Lock()
	if _, dup := c.channels[topic]; dup {
		c.mu.Unlock()
		return nil, fmt.Errorf("realtime: already subscribed to %s", topic)
	}
	ch := &channel{client: c, topic: topic, listener: l}
	c.channels[topic] = ch
	conn := c.conn
	if c.cancel == nil {
		runCtx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		go c.run(runCtx)
	}
	c.mu.Unlock()

	if conn != nil {
		c.join(conn, ch)
	}
	context.AfterFunc(ctx, func() { _ = ch.Close() })
	return ch, nil
}

// Close leaves the channel. It is safe to call more than once.
func (ch *channel) Close() error {
	c := ch.client
	c.mu.Lock()
	if ch.closed {
		c.mu.Unlock()
		return nil
	}
	ch.closed = true
	if ch.timer != nil {
		ch.timer.Stop()
	}
	if c.channels[ch.topic] == ch {
		delete(c.channels, ch.topic)
	}
	conn := c.conn
	joined := ch.joined
	ref := c.nextRefLocked()
	idle := len(c.channels) == 0
	c.mu.Unlock()

	var err error
	if conn != nil && joined {
		err = c.send(conn, message{Topic: ch.topic, Event: eventLeave, Payload: json.RawMessage(`{}`), Ref: ref})
	}
	if idle {
		c.shutdown()
	}
	return err
}

// Close drops every subscription and the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	chans := make([]*channel, 0, len(c.channels))
	for _, ch := range c.channels {
		chans = append(chans, ch)
	}
	c.mu.Unlock()

	var errs []error
	for _, ch := range chans {
		errs = append(errs, ch.Close())
	}
	c.shutdown()
	return errors.Join(errs...)
}

// SetAuth pushes the current access token to every joined channel. Call it
// after the session is refreshed so the server keeps delivering changes.
func (c *Client) SetAuth() error {
	token := c.token()
	if token == "" {
		return nil
	}
	payload, err := json.Marshal(map[string]string{"access_token": token})
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	type pending struct {
		topic, ref string
	}
	c.mu.Lock()
	conn := c.conn
	var out []pending
	for _, ch := range c.channels {
		if ch.joined {
			out = append(out, pending{topic: ch.topic, ref: c.nextRefLocked()})
		}
	}
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	var errs []error
	for _, p := range out {
		errs = append(errs, c.send(conn, message{Topic: p.topic, Event: eventToken, Payload: payload, Ref: p.ref}))
	}
	return errors.Join(errs...)
}

func (c *Client) shutdown() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Client) run(ctx context.Context) {
	failures := 0
	for {
		conn, err := c.dial(ctx)
		if err == nil {
			failures = 0
			c.logger.Debug("socket open", "url", c.url)
			err = c.serve(ctx, conn)
		}
		if ctx.Err() != nil {
			return
		}

		c.broadcast(livesync.StatusChannelError, err)
		wait := calculateBackoff(failures, c.backoff)
		failures++
		c.logger.Warn("socket lost", "err", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	cfg, err := websocket.NewConfig(c.url, c.origin)
	if err != nil {
		return nil, fmt.Errorf("websocket config: %w", err)
	}
	conn, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial realtime: %w", err)
	}
	return conn, nil
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	c.mu.Lock()
	c.conn = conn
	c.hbRef = ""
	c.hbLost = false
	chans := make([]*channel, 0, len(c.channels))
	for _, ch := range c.channels {
		chans = append(chans, ch)
	}
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer c.detach(conn)

	for _, ch := range chans {
		c.join(conn, ch)
	}

	done := make(chan struct{})
	defer close(done)
	go c.heartbeatLoop(conn, done)

	for {
		var msg message
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			c.mu.Lock()
			lost := c.hbLost && c.conn == conn
			c.mu.Unlock()
			if lost {
				return errHeartbeatTimeout
			}
			return fmt.Errorf("receive: %w", err)
		}
		c.dispatch(conn, msg)
	}
}

func (c *Client) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		for _, ch := range c.channels {
			ch.joined = false
			if ch.timer != nil {
				ch.timer.Stop()
			}
		}
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Client) heartbeatLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}
		if c.hbRef != "" {
			c.hbLost = true
			c.mu.Unlock()
			c.logger.Warn("heartbeat not acknowledged, dropping socket")
			_ = conn.Close()
			return
		}
		ref := c.nextRefLocked()
		c.hbRef = ref
		c.mu.Unlock()
		hb := message{Topic: phoenixTopic, Event: eventHeartbeat, Payload: json.RawMessage(`{}`), Ref: ref}
		if err := c.send(conn, hb); err != nil {
			c.logger.Debug("heartbeat failed", "err", err)
			_ = conn.Close()
			return
		}
	}
}

func (c *Client) join(conn *websocket.Conn, ch *channel) {
	c.mu.Lock()
	if ch.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	ref := c.nextRefLocked()
	ch.joinRef = ref
	ch.joined = false
	if ch.timer != nil {
		ch.timer.Stop()
	}
	ch.timer = time.AfterFunc(c.joinTimeout, func() { c.joinTimedOut(conn, ch, ref) })
	c.mu.Unlock()

	msg, err := newJoin(ch.topic, ref, ch.listener.Table, ch.listener.Owner, c.token())
	if err == nil {
		err = c.send(conn, msg)
	}
	if err != nil {
		c.logger.Warn("join failed", "topic", ch.topic, "err", err)
		_ = conn.Close()
	}
}

func (c *Client) joinTimedOut(conn *websocket.Conn, ch *channel, ref string) {
	c.mu.Lock()
	stale := ch.closed || ch.joined || ch.joinRef != ref || c.conn != conn
	c.mu.Unlock()
	if stale {
		return
	}
	c.logger.Warn("join timed out", "topic", ch.topic)
	ch.status(livesync.StatusTimedOut, nil)
	c.join(conn, ch)
}

// rejoinLater retries a channel the server rejected or errored.
func (c *Client) rejoinLater(conn *websocket.Conn, ch *channel) {
	c.mu.Lock()
	if ch.closed {
		c.mu.Unlock()
		return
	}
	wait := calculateBackoff(ch.failures, c.backoff)
	ch.failures++
	if ch.timer != nil {
		ch.timer.Stop()
	}
	ch.timer = time.AfterFunc(wait, func() { c.join(conn, ch) })
	c.mu.Unlock()
}

func (c *Client) dispatch(conn *websocket.Conn, msg message) {
	if msg.Topic == phoenixTopic {
		if msg.Event == eventReply {
			c.mu.Lock()
			if msg.Ref != "" && msg.Ref == c.hbRef {
				c.hbRef = ""
			}
			c.mu.Unlock()
		}
		return
	}
	c.mu.Lock()
	ch := c.channels[msg.Topic]
	c.mu.Unlock()
	if ch == nil {
		return
	}

	switch msg.Event {
	case eventReply:
		c.mu.Lock()
		pending := !ch.joined && msg.Ref != "" && msg.Ref == ch.joinRef
		c.mu.Unlock()
		if !pending {
			return
		}
		var reply replyPayload
		if err := json.Unmarshal(msg.Payload, &reply); err != nil {
			c.logger.Debug("bad reply", "topic", msg.Topic, "err", err)
			return
		}
		if reply.Status != "ok" {
			c.mu.Lock()
			if ch.timer != nil {
				ch.timer.Stop()
			}
			c.mu.Unlock()
			ch.status(livesync.StatusChannelError, fmt.Errorf("join %s rejected: %s", msg.Topic, string(reply.Response)))
			c.rejoinLater(conn, ch)
			return
		}
		c.mu.Lock()
		ch.joined = true
		ch.failures = 0
		if ch.timer != nil {
			ch.timer.Stop()
		}
		c.mu.Unlock()
		c.logger.Debug("joined", "topic", msg.Topic)
		ch.status(livesync.StatusSubscribed, nil)

	case eventChanges:
		raw, err := toRawChange(msg.Payload)
		if err != nil {
			c.logger.Debug("bad change payload", "topic", msg.Topic, "err", err)
			return
		}
		if ch.listener.OnChange != nil {
			ch.listener.OnChange(raw)
		}

	case eventError:
		c.mu.Lock()
		ch.joined = false
		c.mu.Unlock()
		ch.status(livesync.StatusChannelError, errChannelError)
		c.rejoinLater(conn, ch)

	case eventClose:
		c.mu.Lock()
		ch.joined = false
		c.mu.Unlock()
		ch.status(livesync.StatusClosed, nil)
	}
}

func (c *Client) broadcast(status livesync.FeedStatus, err error) {
	c.mu.Lock()
	chans := make([]*channel, 0, len(c.channels))
	for _, ch := range c.channels {
		chans = append(chans, ch)
	}
	c.mu.Unlock()
	for _, ch := range chans {
		ch.status(status, err)
	}
}

func (ch *channel) status(status livesync.FeedStatus, err error) {
	ch.client.mu.Lock()
	closed := ch.closed
	ch.client.mu.Unlock()
	if closed || ch.listener.OnStatus == nil {
		return
	}
	ch.listener.OnStatus(status, err)
}

func (c *Client) send(conn *websocket.Conn, msg message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := websocket.JSON.Send(conn, msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Event, err)
	}
	return nil
}

func (c *Client) nextRefLocked() string {
	c.ref++
	return strconv.FormatUint(c.ref, 10)
}

// calculateBackoff returns base doubled once per failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	if failures > 16 {
		return maxBackoff
	}
	d := base << failures
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}
