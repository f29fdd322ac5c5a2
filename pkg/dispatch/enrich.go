package dispatch

import (
	"context"
	"log/slog"

	"github.com/hermodbot/hermod/pkg/adapter"
	"github.com/hermodbot/hermod/pkg/content"
	"github.com/hermodbot/hermod/pkg/domain"
)

// buildContext enriches a normalized event into the processing context:
// bot handle, hydrated session, reply helpers, and capability-gated action
// helpers. Session hydration blocks before any hook runs; a store failure
// degrades to a fresh session with a warning instead of failing the message.
func (d *Dispatcher) buildContext(ctx context.Context, a adapter.Adapter, ev *adapter.Event) *domain.Context {
	c := &domain.Context{
		Event:    ev.Kind,
		Provider: ev.Provider,
		Channel:  ev.Channel,
		Message:  ev.Message,
		Bot:      botHandle{d: d},
	}

	provider := ev.Provider
	channelID := ev.Channel.ID

	if ev.Message != nil && ev.Message.Author.ID != "" {
		userID := ev.Message.Author.ID
		current, err := d.store.Get(ctx, userID, channelID)
		if err != nil {
			d.log.Warn("session load failed, starting fresh",
				slog.String("user_id", userID),
				slog.String("channel_id", channelID),
				slog.Any("error", err),
			)
			current = nil
		}
		c.Session = domain.NewSessionRef(d.store, userID, channelID, d.sessionTTL, current)
	}

	c.Reply = func(ctx context.Context, text string) (*adapter.SendResult, error) {
		return d.Send(ctx, domain.SendParams{
			Provider: provider, ChannelID: channelID,
			Content: content.Text{Text: text},
		})
	}
	c.ReplyWithButtons = func(ctx context.Context, text string, buttons []content.Button) (*adapter.SendResult, error) {
		return d.Send(ctx, domain.SendParams{
			Provider: provider, ChannelID: channelID,
			Content: content.Interactive{Text: text, Buttons: buttons},
		})
	}
	c.ReplyWithImage = func(ctx context.Context, img content.Image) (*adapter.SendResult, error) {
		return d.Send(ctx, domain.SendParams{
			Provider: provider, ChannelID: channelID,
			Content: img,
		})
	}
	c.ReplyWithDocument = func(ctx context.Context, doc content.Document) (*adapter.SendResult, error) {
		return d.Send(ctx, domain.SendParams{
			Provider: provider, ChannelID: channelID,
			Content: doc,
		})
	}

	caps := a.Capabilities()
	if caps.Actions.Edit {
		if ed, ok := a.(adapter.MessageEditor); ok {
			c.Edit = func(ctx context.Context, messageID, text string) (*adapter.SendResult, error) {
				return ed.EditMessage(ctx, channelID, messageID, content.Text{Text: text}, content.SendOptions{})
			}
		}
	}
	if caps.Actions.Delete {
		if del, ok := a.(adapter.MessageDeleter); ok {
			c.Delete = func(ctx context.Context, messageID string) error {
				return del.DeleteMessage(ctx, channelID, messageID)
			}
		}
	}
	if caps.Actions.React {
		if re, ok := a.(adapter.Reactor); ok {
			c.React = func(ctx context.Context, messageID, emoji string) error {
				return re.React(ctx, channelID, messageID, emoji)
			}
		}
	}
	if caps.Actions.Typing {
		if typ, ok := a.(adapter.TypingSender); ok {
			c.Typing = func(ctx context.Context) {
				// Typing is cosmetic; failures never interrupt processing.
				if err := typ.SendTyping(ctx, channelID); err != nil {
					d.log.Warn("typing indicator failed",
						slog.String("provider", provider),
						slog.Any("error", err),
					)
				}
			}
		}
	}

	return c
}

// botHandle adapts the dispatcher to the context-facing Bot interface.
type botHandle struct{ d *Dispatcher }

var _ domain.Bot = botHandle{}

func (b botHandle) Send(ctx context.Context, p domain.SendParams) (*adapter.SendResult, error) {
	return b.d.Send(ctx, p)
}

func (b botHandle) Adapter(key string) (adapter.Adapter, bool) { return b.d.Adapter(key) }

func (b botHandle) AdapterKeys() []string { return b.d.AdapterKeys() }
