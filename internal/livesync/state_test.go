package livesync

import "testing"

func TestNextState(t *testing.T) {
	tests := []struct {
		cur    ConnState
		status FeedStatus
		want   ConnState
	}{
		{Connecting, StatusConnecting, Connecting},
		{Connecting, StatusSubscribed, Live},
		{Connecting, StatusChannelError, Degraded},
		{Connecting, StatusTimedOut, Degraded},
		{Live, StatusChannelError, Degraded},
		{Live, StatusClosed, Degraded},
		{Live, StatusConnecting, Degraded},
		{Live, StatusSubscribed, Live},
		{Degraded, StatusSubscribed, Live},
		{Degraded, StatusTimedOut, Degraded},
		{Degraded, StatusConnecting, Degraded},
		{TornDown, StatusSubscribed, TornDown},
		{TornDown, StatusChannelError, TornDown},
	}
	for _, tt := range tests {
		if got := NextState(tt.cur, tt.status); got != tt.want {
			t.Errorf("NextState(%s, %s) = %s, want %s", tt.cur, tt.status, got, tt.want)
		}
	}
}

func TestConnStatePolls(t *testing.T) {
	want := map[ConnState]bool{
		Connecting: true,
		Live:       false,
		Degraded:   true,
		TornDown:   false,
	}
	for st, polls := range want {
		if st.Polls() != polls {
			t.Errorf("%s.Polls() = %v, want %v", st, st.Polls(), polls)
		}
	}
}
