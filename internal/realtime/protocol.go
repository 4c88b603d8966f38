package realtime

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/shelfmark/shelf/internal/livesync"
)

const (
	eventJoin      = "phx_join"
	eventLeave     = "phx_leave"
	eventReply     = "phx_reply"
	eventError     = "phx_error"
	eventClose     = "phx_close"
	eventHeartbeat = "heartbeat"
	eventChanges   = "postgres_changes"
	eventToken     = "access_token"

	phoenixTopic = "phoenix"
	topicPrefix  = "realtime:"
	protocolVsn  = "1.0.0"
)

// message is one Phoenix channel frame.
type message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
	JoinRef string          `json:"join_ref,omitempty"`
}

type changeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

type joinPayload struct {
	Config struct {
		PostgresChanges []changeFilter `json:"postgres_changes"`
	} `json:"config"`
	AccessToken string `json:"access_token,omitempty"`
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type changesPayload struct {
	Data struct {
		Schema    string          `json:"schema"`
		Table     string          `json:"table"`
		Type      string          `json:"type"`
		Record    json.RawMessage `json:"record"`
		OldRecord json.RawMessage `json:"old_record"`
	} `json:"data"`
}

func topicFor(channel string) string {
	return topicPrefix + channel
}

func newJoin(topic, ref, table, owner, token string) (message, error) {
	var p joinPayload
	f := changeFilter{Event: "*", Schema: "public", Table: table}
	if owner != "" {
		f.Filter = "user_id=eq." + owner
	}
	p.Config.PostgresChanges = []changeFilter{f}
	p.AccessToken = token
	raw, err := json.Marshal(p)
	if err != nil {
		return message{}, fmt.Errorf("encode join: %w", err)
	}
	return message{Topic: topic, Event: eventJoin, Payload: raw, Ref: ref, JoinRef: ref}, nil
}

func toRawChange(payload json.RawMessage) (livesync.RawChange, error) {
	var p changesPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return livesync.RawChange{}, fmt.Errorf("decode postgres_changes: %w", err)
	}
	return livesync.RawChange{
		EventType: p.Data.Type,
		New:       p.Data.Record,
		Old:       p.Data.OldRecord,
	}, nil
}

// SocketURL derives the websocket endpoint from a REST base URL and appends
// the api key and protocol version.
func SocketURL(base, apiKey string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported realtime url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("realtime url missing host")
	}
	if !strings.HasSuffix(u.Path, "/websocket") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/realtime/v1/websocket"
	}
	q := u.Query()
	if apiKey != "" {
		q.Set("apikey", apiKey)
	}
	q.Set("vsn", protocolVsn)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
