package livesync

import (
	"context"
	"time"
)

// DefaultPollInterval is the fallback refresh cadence while the feed is not live.
const DefaultPollInterval = 8 * time.Second

type poller struct {
	cancel context.CancelFunc
}

// startPoller launches a background goroutine that calls refresh at a fixed
// cadence until stopped or ctx is cancelled. The first call happens one
// interval after start. It returns immediately.
func startPoller(ctx context.Context, interval time.Duration, refresh func()) *poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if ctx.Err() != nil {
				return
			}
			refresh()
		}
	}()
	return &poller{cancel: cancel}
}

// stop cancels the poller without waiting for an in-flight refresh.
func (p *poller) stop() {
	if p != nil {
		p.cancel()
	}
}
