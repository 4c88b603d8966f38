package livesync

// ConnState is the connection state of one sync instance.
type ConnState int

const (
	Connecting ConnState = iota
	Live
	Degraded
	TornDown
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Live:
		return "LIVE"
	case Degraded:
		return "DEGRADED"
	case TornDown:
		return "TORN_DOWN"
	default:
		return "UNKNOWN"
	}
}

// Polls reports whether the fallback poller must be armed in this state.
func (s ConnState) Polls() bool {
	return s == Connecting || s == Degraded
}

// FeedStatus is a subscription status reported by a Feed.
type FeedStatus int

const (
	StatusConnecting FeedStatus = iota
	StatusSubscribed
	StatusChannelError
	StatusTimedOut
	StatusClosed
)

func (s FeedStatus) String() string {
	switch s {
	case StatusConnecting:
		return "CONNECTING"
	case StatusSubscribed:
		return "SUBSCRIBED"
	case StatusChannelError:
		return "CHANNEL_ERROR"
	case StatusTimedOut:
		return "TIMED_OUT"
	case StatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// NextState is the transition function of the connection state machine.
// TornDown is terminal. A confirmed subscription always leads to Live; any
// error, timeout or close leads to Degraded. A transport that reports it is
// connecting again after having been live is treated as degraded until it
// re-confirms.
func NextState(cur ConnState, status FeedStatus) ConnState {
	if cur == TornDown {
		return TornDown
	}
	switch status {
	case StatusSubscribed:
		return Live
	case StatusChannelError, StatusTimedOut, StatusClosed:
		return Degraded
	case StatusConnecting:
		if cur == Connecting {
			return Connecting
		}
		return Degraded
	default:
		return cur
	}
}
