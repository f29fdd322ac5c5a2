package dispatch

import (
	"context"

	"github.com/hermodbot/hermod/pkg/adapter"
	"github.com/hermodbot/hermod/pkg/content"
	"github.com/hermodbot/hermod/pkg/domain"
	boterrors "github.com/hermodbot/hermod/pkg/errors"
	"github.com/hermodbot/hermod/pkg/events"
)

// Send routes outbound content to the right adapter method. The capability
// descriptor is checked before the adapter is touched: an unsupported content
// type fails with CONTENT_TYPE_NOT_SUPPORTED and the adapter is never
// invoked.
func (d *Dispatcher) Send(ctx context.Context, p domain.SendParams) (*adapter.SendResult, error) {
	a, ok := d.Adapter(p.Provider)
	if !ok {
		return nil, boterrors.Newf(boterrors.CodeProviderNotFound, "no adapter registered for %q", p.Provider).
			With("provider", p.Provider)
	}
	if p.Content == nil {
		return nil, boterrors.New(boterrors.CodeInvalidContent, "no content provided")
	}

	res, err := d.sendContent(ctx, a, p.ChannelID, p.Content, p.Options)
	if err != nil {
		return nil, err
	}

	data := events.MessageData{Provider: p.Provider, ChannelID: p.ChannelID}
	if res != nil {
		data.MessageID = res.MessageID
	}
	d.notify(events.New(events.MessageOutbound, p.Provider, data))
	return res, nil
}

func (d *Dispatcher) sendContent(ctx context.Context, a adapter.Adapter, channelID string, c content.Content, opts content.SendOptions) (*adapter.SendResult, error) {
	caps := a.Capabilities()

	switch v := c.(type) {
	case content.Reply:
		if v.Content == nil {
			return nil, boterrors.New(boterrors.CodeInvalidContent, "reply wraps no content")
		}
		// Unwrap and send the inner content as a single platform call.
		if v.ToMessageID != "" {
			opts.ReplyToMessageID = v.ToMessageID
		}
		return d.sendContent(ctx, a, channelID, v.Content, opts)

	case content.Text:
		if !caps.Content.Text {
			return nil, unsupported(a, content.KindText)
		}
		s, ok := a.(adapter.TextSender)
		if !ok {
			return nil, unsupported(a, content.KindText)
		}
		return s.SendText(ctx, channelID, v, opts)

	case content.Image:
		if !caps.Content.Image {
			return nil, unsupported(a, content.KindImage)
		}
		s, ok := a.(adapter.ImageSender)
		if !ok {
			return nil, unsupported(a, content.KindImage)
		}
		return s.SendImage(ctx, channelID, v, opts)

	case content.Video:
		if !caps.Content.Video {
			return nil, unsupported(a, content.KindVideo)
		}
		s, ok := a.(adapter.VideoSender)
		if !ok {
			return nil, unsupported(a, content.KindVideo)
		}
		return s.SendVideo(ctx, channelID, v, opts)

	case content.Audio:
		if !caps.Content.Audio {
			return nil, unsupported(a, content.KindAudio)
		}
		s, ok := a.(adapter.AudioSender)
		if !ok {
			return nil, unsupported(a, content.KindAudio)
		}
		return s.SendAudio(ctx, channelID, v, opts)

	case content.Document:
		if !v.HasPayload() {
			return nil, boterrors.New(boterrors.CodeInvalidContent, "document requires a concrete file payload")
		}
		if !caps.Content.Document {
			return nil, unsupported(a, content.KindDocument)
		}
		s, ok := a.(adapter.DocumentSender)
		if !ok {
			return nil, unsupported(a, content.KindDocument)
		}
		return s.SendDocument(ctx, channelID, v, opts)

	case content.Sticker:
		if !caps.Content.Sticker {
			return nil, unsupported(a, content.KindSticker)
		}
		s, ok := a.(adapter.StickerSender)
		if !ok {
			return nil, unsupported(a, content.KindSticker)
		}
		return s.SendSticker(ctx, channelID, v, opts)

	case content.Location:
		if !caps.Content.Location {
			return nil, unsupported(a, content.KindLocation)
		}
		s, ok := a.(adapter.LocationSender)
		if !ok {
			return nil, unsupported(a, content.KindLocation)
		}
		return s.SendLocation(ctx, channelID, v, opts)

	case content.Contact:
		if !caps.Content.Contact {
			return nil, unsupported(a, content.KindContact)
		}
		s, ok := a.(adapter.ContactSender)
		if !ok {
			return nil, unsupported(a, content.KindContact)
		}
		return s.SendContact(ctx, channelID, v, opts)

	case content.Poll:
		if !caps.Content.Poll {
			return nil, unsupported(a, content.KindPoll)
		}
		s, ok := a.(adapter.PollSender)
		if !ok {
			return nil, unsupported(a, content.KindPoll)
		}
		return s.SendPoll(ctx, channelID, v, opts)

	case content.Interactive:
		if !caps.Content.Interactive {
			return nil, unsupported(a, content.KindInteractive)
		}
		s, ok := a.(adapter.InteractiveSender)
		if !ok {
			return nil, unsupported(a, content.KindInteractive)
		}
		return s.SendInteractive(ctx, channelID, v, opts)

	case content.Callback, content.Command:
		// Inbound-only content kinds.
		return nil, unsupported(a, c.Kind())

	default:
		return nil, boterrors.Newf(boterrors.CodeContentTypeNotSupported, "unknown content kind %q", c.Kind()).
			With("kind", string(c.Kind()))
	}
}

func unsupported(a adapter.Adapter, kind content.Kind) error {
	return boterrors.Newf(boterrors.CodeContentTypeNotSupported, "adapter %q does not support %s content", a.Key(), kind).
		With("provider", a.Key()).
		With("kind", string(kind))
}
