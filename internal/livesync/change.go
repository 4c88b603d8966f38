package livesync

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedChange is returned by Decode for payloads that cannot be applied.
var ErrMalformedChange = errors.New("malformed change event")

// Kind tags a change event.
type Kind int

const (
	Insert Kind = iota + 1
	Update
	Delete
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "INSERT"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// ParseKind maps a wire event type to a Kind.
func ParseKind(eventType string) (Kind, bool) {
	switch strings.ToUpper(strings.TrimSpace(eventType)) {
	case "INSERT":
		return Insert, true
	case "UPDATE":
		return Update, true
	case "DELETE":
		return Delete, true
	default:
		return 0, false
	}
}

// RawChange is a change event as delivered by the feed, before validation.
type RawChange struct {
	EventType string          `json:"eventType"`
	New       json.RawMessage `json:"new"`
	Old       json.RawMessage `json:"old"`
}

// Change is a validated change event. Record is set for Insert and Update;
// ID is always set. Owner is empty when the payload did not carry one.
type Change[T Record] struct {
	Kind   Kind
	Record T
	ID     string
	Owner  string
}

type rowHeader struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

// Decode validates raw against the collection and converts it into a Change.
// The event owner comes from the new row when present, otherwise the old row.
func Decode[T Record](c Collection[T], raw RawChange) (Change[T], error) {
	var ch Change[T]

	kind, ok := ParseKind(raw.EventType)
	if !ok {
		return ch, fmt.Errorf("%w: event type %q", ErrMalformedChange, raw.EventType)
	}
	ch.Kind = kind

	newRow, oldRow := present(raw.New), present(raw.Old)
	var newHdr, oldHdr rowHeader
	if newRow {
		if err := json.Unmarshal(raw.New, &newHdr); err != nil {
			return ch, fmt.Errorf("%w: new row: %v", ErrMalformedChange, err)
		}
	}
	if oldRow {
		if err := json.Unmarshal(raw.Old, &oldHdr); err != nil {
			return ch, fmt.Errorf("%w: old row: %v", ErrMalformedChange, err)
		}
	}
	ch.Owner = newHdr.UserID
	if ch.Owner == "" {
		ch.Owner = oldHdr.UserID
	}

	switch kind {
	case Insert:
		if !newRow {
			return ch, fmt.Errorf("%w: insert without new row", ErrMalformedChange)
		}
		if err := requireFields(raw.New, c.Required); err != nil {
			return ch, err
		}
		fallthrough
	case Update:
		if !newRow {
			return ch, fmt.Errorf("%w: update without new row", ErrMalformedChange)
		}
		if err := json.Unmarshal(raw.New, &ch.Record); err != nil {
			return ch, fmt.Errorf("%w: decode %s: %v", ErrMalformedChange, c.Table, err)
		}
		ch.ID = ch.Record.RecordID()
	case Delete:
		ch.ID = oldHdr.ID
	}

	if ch.ID == "" {
		return ch, fmt.Errorf("%w: %s event without id", ErrMalformedChange, kind)
	}
	return ch, nil
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func requireFields(raw json.RawMessage, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("%w: row is not an object", ErrMalformedChange)
	}
	for _, f := range fields {
		if _, ok := obj[f]; !ok {
			return fmt.Errorf("%w: missing field %q", ErrMalformedChange, f)
		}
	}
	return nil
}
