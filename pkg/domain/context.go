// Package domain holds the shared kernel of the dispatch core: the processing
// context that flows through hooks, middlewares, listeners, and command
// handlers, plus the bot handle and session reference attached to it.
package domain

import (
	"context"

	"github.com/hermodbot/hermod/pkg/adapter"
	"github.com/hermodbot/hermod/pkg/content"
)

// SendParams names one outbound delivery.
type SendParams struct {
	Provider  string
	ChannelID string
	Content   content.Content
	Options   content.SendOptions
}

// Bot is the orchestrator handle exposed on the processing context.
type Bot interface {
	Send(ctx context.Context, p SendParams) (*adapter.SendResult, error)
	Adapter(key string) (adapter.Adapter, bool)
	AdapterKeys() []string
}

// Extra is an additive context enrichment contributed by a middleware.
type Extra map[string]any

// Context is the unit of work for one inbound event. It is owned exclusively
// by the processing invocation that created it and must not be shared across
// concurrent invocations.
//
// The action helpers (Edit, Delete, React, Typing) are nil unless the
// adapter's capability flag is true AND the adapter implements the backing
// operation; callers gate on nil instead of probing the adapter themselves.
type Context struct {
	Event    adapter.EventKind
	Provider string
	Channel  adapter.Channel
	Message  *adapter.Message

	Bot     Bot
	Session *SessionRef

	// Reply helpers with provider and channel baked in.
	Reply             func(ctx context.Context, text string) (*adapter.SendResult, error)
	ReplyWithButtons  func(ctx context.Context, text string, buttons []content.Button) (*adapter.SendResult, error)
	ReplyWithImage    func(ctx context.Context, img content.Image) (*adapter.SendResult, error)
	ReplyWithDocument func(ctx context.Context, doc content.Document) (*adapter.SendResult, error)

	// Capability-gated action helpers.
	Edit   func(ctx context.Context, messageID, text string) (*adapter.SendResult, error)
	Delete func(ctx context.Context, messageID string) error
	React  func(ctx context.Context, messageID, emoji string) error
	Typing func(ctx context.Context)

	extras Extra
}

// Merge additively folds middleware enrichments into the context. Later
// merges win per key; merges are cumulative and visible to every downstream
// step and the terminal command handler.
func (c *Context) Merge(extra Extra) {
	if len(extra) == 0 {
		return
	}
	if c.extras == nil {
		c.extras = make(Extra, len(extra))
	}
	for k, v := range extra {
		c.extras[k] = v
	}
}

// Value returns a merged enrichment field.
func (c *Context) Value(key string) (any, bool) {
	v, ok := c.extras[key]
	return v, ok
}

// Extras returns a copy of all merged enrichment fields.
func (c *Context) Extras() Extra {
	out := make(Extra, len(c.extras))
	for k, v := range c.extras {
		out[k] = v
	}
	return out
}
