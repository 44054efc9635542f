// Package realtime implements the live analytics core of EduPulse:
// the push-connection registry, the in-memory engagement tracker, the
// per-user event buffers, and the ingestion pipeline that ties them to
// the cache and store collaborators.
//
// All state in this package is process-local. Dashboards served by two
// instances will disagree; this is a known single-instance limitation,
// not something the package tries to hide.
package realtime

import (
	"time"

	"github.com/edupulse/edupulse-analytics/internal/domain/analytics"
	"github.com/edupulse/edupulse-analytics/pkg/timeutil"
)

// Event is a raw activity payload as received from a client.
// Payloads are free-form; missing fields degrade to neutral values.
type Event map[string]any

// Action returns the event action, or "unknown" when absent.
func (e Event) Action() string {
	if v, ok := e["action"].(string); ok && v != "" {
		return v
	}
	return analytics.ActionUnknown
}

// Duration returns the event duration in seconds, 0 when absent.
func (e Event) Duration() int {
	return analytics.EventDuration(e)
}

// HasDuration reports whether the payload carries a duration field.
func (e Event) HasDuration() bool {
	_, ok := e["duration"]
	return ok
}

// BufferedEvent is one (timestamp, payload) pair queued for aggregation.
type BufferedEvent struct {
	Timestamp time.Time
	Event     Event
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRE MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

// Push message types sent over the websocket channel.
const (
	MsgConnectionEstablished = "connection_established"
	MsgSubscriptionConfirmed = "subscription_confirmed"
	MsgUnsubscribeConfirmed  = "unsubscription_confirmed"
	MsgUserEvent             = "user_event"
	MsgLiveUpdate            = "live_update"
	MsgAnalyticsUpdate       = "analytics_update"
	MsgPong                  = "pong"
)

// Inbound message types accepted from clients.
const (
	InboundSubscribe   = "subscribe"
	InboundUnsubscribe = "unsubscribe"
	InboundTrackEvent  = "track_event"
	InboundPing        = "ping"
)

// Message is a typed push-channel payload with a wire timestamp.
type Message map[string]any

func newMessage(msgType string, at time.Time) Message {
	return Message{
		"type":      msgType,
		"timestamp": timeutil.FormatRFC3339(at),
	}
}

// ConnectionEstablished builds the welcome message sent on connect.
func ConnectionEstablished(userID string, at time.Time) Message {
	m := newMessage(MsgConnectionEstablished, at)
	m["user_id"] = userID
	m["message"] = "Real-time analytics connection established"
	return m
}

// SubscriptionConfirmed builds the subscribe confirmation.
func SubscriptionConfirmed(channels []string, at time.Time) Message {
	m := newMessage(MsgSubscriptionConfirmed, at)
	m["channels"] = channels
	return m
}

// UnsubscriptionConfirmed builds the unsubscribe confirmation.
func UnsubscriptionConfirmed(channels []string, at time.Time) Message {
	m := newMessage(MsgUnsubscribeConfirmed, at)
	m["channels"] = channels
	return m
}

// UserEvent wraps a raw event for fan-out to admin/teacher dashboards.
func UserEvent(userID string, event Event, at time.Time) Message {
	m := newMessage(MsgUserEvent, at)
	m["user_id"] = userID
	m["event"] = event
	return m
}

// LiveUpdate builds the periodic dashboard update. Either half may be nil
// when its snapshot computation failed; the other half is still delivered.
func LiveUpdate(engagement, progress any, at time.Time) Message {
	m := newMessage(MsgLiveUpdate, at)
	m["engagement"] = engagement
	m["progress"] = progress
	return m
}

// AnalyticsUpdate builds a per-user analytics push.
func AnalyticsUpdate(data any, at time.Time) Message {
	m := newMessage(MsgAnalyticsUpdate, at)
	m["data"] = data
	return m
}
