// Package event defines the canonical representation of one inbound
// occurrence from the chat platform. Events are produced exclusively by the
// classifier; no other component inspects raw payload shapes.
package event

import (
	"encoding/json"
	"time"
)

// Kind discriminates the event families the gateway routes on.
type Kind string

const (
	KindMessage           Kind = "message"
	KindMention           Kind = "mention"
	KindInteractiveAction Kind = "interactive_action"
	KindLifecycle         Kind = "lifecycle"
)

// IsMessageBearing reports whether events of this kind carry user text that
// text-pattern rules may match against.
func (k Kind) IsMessageBearing() bool {
	return k == KindMessage || k == KindMention
}

// Event is the canonical inbound unit. It is constructed once per request by
// the classifier and treated as immutable afterwards.
type Event struct {
	Kind         Kind
	ChannelID    string
	ChannelName  string
	SenderID     string
	SenderName   string // may be a bot identity
	Text         string // raw message body, empty for non-message kinds
	MentionsBot  bool
	SelfAuthored bool   // sender is the bot itself; dispatch is skipped unconditionally
	Timestamp    string // platform event timestamp (Slack ts, e.g. "1700000000.000100")
	ThreadTS     string // thread root timestamp, empty outside threads
	ReceivedAt   time.Time

	// RawPayload is the verbatim inner payload, passed through to handlers
	// unmodified.
	RawPayload json.RawMessage
}

// DedupKey identifies an event for at-least-once delivery tolerance.
// Redelivered events produce the same key.
func (e *Event) DedupKey() string {
	return e.Timestamp + "_" + e.ChannelID + "_" + e.SenderID + "_" + string(e.Kind)
}

// ReplyThread returns the thread timestamp a threaded reply should target:
// the event's thread if it is already in one, otherwise the event itself.
func (e *Event) ReplyThread() string {
	if e.ThreadTS != "" {
		return e.ThreadTS
	}
	return e.Timestamp
}
