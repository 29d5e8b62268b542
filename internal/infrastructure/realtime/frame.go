package realtime

import "encoding/json"

// Frame type discriminators shared by client and broker.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeSend        = "send"
	TypeConnected   = "connected"
	TypeMessage     = "message"
	TypeError       = "error"
)

// Frame is the single envelope exchanged over the live channel. Which fields
// are set depends on Type:
//
//	subscribe/unsubscribe  Topic
//	send                   Destination, Body
//	message                Topic, Body
//	error                  Code, Error
//	connected              (no payload)
type Frame struct {
	Type        string          `json:"type"`
	Topic       string          `json:"topic,omitempty"`
	Destination string          `json:"destination,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
	Code        string          `json:"code,omitempty"`
	Error       string          `json:"error,omitempty"`
}
