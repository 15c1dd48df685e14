package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TimestampFormat renders times as UTC ISO-8601 with millisecond precision,
// e.g. 2024-05-01T12:00:00.000Z.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// DefaultServerVersion is reported in handshake replies.
const DefaultServerVersion = "1.0.2"

// Message types on the wire.
const (
	TypeHandshake = "handshake"
	TypeEvent     = "event"
	TypeError     = "error"
)

var (
	// ErrInvalidJSON is returned when an inbound frame is not JSON.
	ErrInvalidJSON = errors.New("invalid JSON")
	// ErrMissingType is returned when an inbound frame has no usable type.
	ErrMissingType = errors.New("missing type field")
)

// Error reply texts. Subscribers match on these exact strings.
const (
	invalidJSONMessage = "Invalid JSON"
	missingTypeMessage = "Missing type field"
	unknownTypeMessage = "Unknown type"
)

// replyText maps a ParseInbound error to the text sent to the subscriber.
func replyText(err error) string {
	if errors.Is(err, ErrMissingType) {
		return missingTypeMessage
	}
	return invalidJSONMessage
}

// Timestamp formats t for the wire.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// Inbound is a parsed subscriber message. The set of implementations is
// closed: Handshake for known requests and Unknown for everything else.
type Inbound interface {
	inbound()
	// Type returns the message type as sent by the subscriber.
	Type() string
}

// Handshake asks the server to identify itself.
type Handshake struct{}

func (Handshake) inbound() {}

// Type implements Inbound.
func (Handshake) Type() string { return TypeHandshake }

// Unknown carries a type the server does not handle.
type Unknown struct {
	Name string
}

func (Unknown) inbound() {}

// Type implements Inbound.
func (u Unknown) Type() string { return u.Name }

// ParseInbound decodes a raw subscriber frame. Frames that are not JSON fail
// with ErrInvalidJSON. Frames that are not objects, or whose "type" is
// absent, null, false, zero or empty, fail with ErrMissingType.
func ParseInbound(raw []byte) (Inbound, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, ErrInvalidJSON
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrMissingType
	}

	switch t := obj["type"].(type) {
	case nil:
		return nil, ErrMissingType
	case string:
		if t == "" {
			return nil, ErrMissingType
		}
		if t == TypeHandshake {
			return Handshake{}, nil
		}
		return Unknown{Name: t}, nil
	case bool:
		if !t {
			return nil, ErrMissingType
		}
		return Unknown{Name: "true"}, nil
	case float64:
		if t == 0 {
			return nil, ErrMissingType
		}
		return Unknown{Name: fmt.Sprint(t)}, nil
	default:
		return Unknown{Name: fmt.Sprintf("%T", t)}, nil
	}
}

// EventMessage is the broadcast form of a relayed event.
type EventMessage struct {
	Type      string `json:"type"`
	Event     string `json:"event"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

// HandshakeReply answers a Handshake.
type HandshakeReply struct {
	Type          string `json:"type"`
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	ServerVersion string `json:"serverVersion"`
}

// ErrorReply reports a rejected inbound message to its sender.
type ErrorReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newErrorReply(msg string) ErrorReply {
	return ErrorReply{Type: TypeError, Message: msg}
}
