// Package adapter defines the contract every platform integration implements:
// a required Init/Handle pair plus a family of optional, capability-gated
// operations expressed as narrow interfaces asserted at call time.
package adapter

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hermodbot/hermod/pkg/capability"
	"github.com/hermodbot/hermod/pkg/content"
)

// Request is the transport-neutral inbound HTTP abstraction handed to Handle.
type Request struct {
	Method string
	Header http.Header
	Body   json.RawMessage
}

// EventKind classifies a normalized inbound event.
type EventKind string

const (
	EventStart   EventKind = "start"
	EventMessage EventKind = "message"
	EventError   EventKind = "error"
)

// Channel identifies the conversation an event belongs to.
type Channel struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	IsGroup bool   `json:"is_group"`
}

// Author identifies the sender of a message.
type Author struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
}

// Attachment is a media item attached to an inbound message.
type Attachment struct {
	Type     string `json:"type"`
	URL      string `json:"url,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Message is the normalized inbound message shape.
type Message struct {
	ID          string          `json:"id,omitempty"`
	Content     content.Content `json:"content,omitempty"`
	Attachments []Attachment    `json:"attachments,omitempty"`
	Author      Author          `json:"author"`
	IsMentioned bool            `json:"is_mentioned"`
}

// Event is the normalized representation of one inbound platform payload.
type Event struct {
	Kind     EventKind `json:"kind"`
	Provider string    `json:"provider"`
	Channel  Channel   `json:"channel"`
	Message  *Message  `json:"message,omitempty"`
}

// CommandSpec is the minimal command shape adapters need for platform-side
// command sync (e.g. Telegram setMyCommands) during Init.
type CommandSpec struct {
	Name        string
	Description string
}

// Sender is the orchestrator-bound handle adapters receive at Init so they can
// originate outbound sends (startup announcements, command responses pushed
// from platform-side interactions).
type Sender interface {
	Send(ctx context.Context, provider, channelID string, c content.Content, opts content.SendOptions) (*SendResult, error)
}

// InitConfig is passed to every adapter exactly once at startup.
type InitConfig struct {
	Commands []CommandSpec
	Bot      Sender
}

// Adapter is the required surface of a platform integration.
//
// Handle returns (nil, nil) for "valid but intentionally ignored" payloads and
// an error for malformed or unauthenticated input — never nil for failure, so
// the orchestrator can distinguish ignore from reject.
type Adapter interface {
	Key() string
	Capabilities() capability.Descriptor
	Init(ctx context.Context, cfg InitConfig) error
	Handle(ctx context.Context, req *Request) (*Event, error)
}

// SendResult reports the platform-assigned id of a delivered message.
type SendResult struct {
	MessageID string `json:"message_id,omitempty"`
}

// Optional operations. The dispatcher asserts these at call time and only
// after the matching capability flag is true; adapters simply omit what their
// platform cannot do.

type TextSender interface {
	SendText(ctx context.Context, channelID string, c content.Text, opts content.SendOptions) (*SendResult, error)
}

type ImageSender interface {
	SendImage(ctx context.Context, channelID string, c content.Image, opts content.SendOptions) (*SendResult, error)
}

type VideoSender interface {
	SendVideo(ctx context.Context, channelID string, c content.Video, opts content.SendOptions) (*SendResult, error)
}

type AudioSender interface {
	SendAudio(ctx context.Context, channelID string, c content.Audio, opts content.SendOptions) (*SendResult, error)
}

type DocumentSender interface {
	SendDocument(ctx context.Context, channelID string, c content.Document, opts content.SendOptions) (*SendResult, error)
}

type StickerSender interface {
	SendSticker(ctx context.Context, channelID string, c content.Sticker, opts content.SendOptions) (*SendResult, error)
}

type LocationSender interface {
	SendLocation(ctx context.Context, channelID string, c content.Location, opts content.SendOptions) (*SendResult, error)
}

type ContactSender interface {
	SendContact(ctx context.Context, channelID string, c content.Contact, opts content.SendOptions) (*SendResult, error)
}

type PollSender interface {
	SendPoll(ctx context.Context, channelID string, c content.Poll, opts content.SendOptions) (*SendResult, error)
}

type InteractiveSender interface {
	SendInteractive(ctx context.Context, channelID string, c content.Interactive, opts content.SendOptions) (*SendResult, error)
}

type TypingSender interface {
	SendTyping(ctx context.Context, channelID string) error
}

type MessageEditor interface {
	EditMessage(ctx context.Context, channelID, messageID string, c content.Text, opts content.SendOptions) (*SendResult, error)
}

type MessageDeleter interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

type Reactor interface {
	React(ctx context.Context, channelID, messageID, emoji string) error
}

// Challenger is implemented by adapters whose platform performs an endpoint
// verification handshake (e.g. Slack URL verification). The gateway consults
// it before dispatching and echoes the returned body verbatim.
type Challenger interface {
	HandleChallenge(req *Request) (body []byte, ok bool)
}
