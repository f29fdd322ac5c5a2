// Package events defines the typed event envelope for everything the
// dispatcher emits to observers (websocket stream, AMQP relay). Every event
// MUST use one of these types; no ad-hoc map[string]interface{} events.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is the universal envelope for all dispatch events.
type Event struct {
	// ID is a unique event id, stable across observers.
	ID string `json:"id"`

	// Type identifies the event (e.g. "message.inbound").
	Type string `json:"type"`

	// Source identifies who emitted the event (adapter key or "dispatch").
	Source string `json:"source"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// Data is the typed payload.
	Data any `json:"data"`
}

// New creates a timestamped event with a fresh id.
func New(eventType, source string, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// --- Event Type Constants ---

const (
	// Message flow events
	MessageInbound  = "message.inbound"
	MessageIgnored  = "message.ignored"
	MessageOutbound = "message.outbound"

	// Command events
	CommandDispatched = "command.dispatched"
	CommandUnknown    = "command.unknown"
	CommandFailed     = "command.failed"

	// Dispatch lifecycle events
	DispatchError = "dispatch.error"
	BotStarted    = "bot.started"
	BotStopped    = "bot.stopped"

	// Session events
	SessionSwept = "session.swept"
)

// --- Typed Payloads ---

// MessageData is the payload for message flow events.
type MessageData struct {
	Provider  string `json:"provider"`
	ChannelID string `json:"channel_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	AuthorID  string `json:"author_id,omitempty"`
	Preview   string `json:"preview,omitempty"` // truncated content
}

// CommandData is the payload for command events.
type CommandData struct {
	Provider string   `json:"provider"`
	Name     string   `json:"name,omitempty"`
	Token    string   `json:"token"`
	Params   []string `json:"params,omitempty"`
}

// ErrorData is the payload for error events.
type ErrorData struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// SweepData is the payload for session sweep events.
type SweepData struct {
	Removed int `json:"removed"`
}
