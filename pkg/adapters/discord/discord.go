// Package discord implements the Discord platform adapter. Inbound messages
// arrive as gateway-relayed message payloads on the webhook ingress; outbound
// traffic uses the REST API.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/hermodbot/hermod/pkg/adapter"
	"github.com/hermodbot/hermod/pkg/capability"
	"github.com/hermodbot/hermod/pkg/content"
	boterrors "github.com/hermodbot/hermod/pkg/errors"
	"github.com/hermodbot/hermod/pkg/logger"
)

// Adapter is the Discord integration.
type Adapter struct {
	session *discordgo.Session
	botID   string
}

var (
	_ adapter.Adapter           = (*Adapter)(nil)
	_ adapter.TextSender        = (*Adapter)(nil)
	_ adapter.ImageSender       = (*Adapter)(nil)
	_ adapter.DocumentSender    = (*Adapter)(nil)
	_ adapter.InteractiveSender = (*Adapter)(nil)
	_ adapter.TypingSender      = (*Adapter)(nil)
	_ adapter.MessageEditor     = (*Adapter)(nil)
	_ adapter.MessageDeleter    = (*Adapter)(nil)
	_ adapter.Reactor           = (*Adapter)(nil)
)

// New creates a Discord adapter from a bot token.
func New(token string) (*Adapter, error) {
	if token == "" {
		return nil, boterrors.New(boterrors.CodeClientNotProvided, "discord token not configured")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord client: %w", err)
	}
	return &Adapter{session: session}, nil
}

func (a *Adapter) Key() string { return "discord" }

func (a *Adapter) Capabilities() capability.Descriptor {
	return capability.Descriptor{
		Content: capability.ContentFlags{
			Text: true, Image: true, Document: true, Interactive: true,
		},
		Actions: capability.ActionFlags{
			Edit: true, Delete: true, React: true, Typing: true, Thread: true,
		},
		Features: capability.FeatureFlags{
			Webhooks: true, Mentions: true, Groups: true,
			Channels: true, Users: true, Files: true,
		},
		Limits: capability.Limits{
			MaxMessageLength: 2000,
			MaxFileSize:      25 << 20,
			MaxButtons:       25,
		},
	}
}

// Init verifies the token by resolving the bot's own identity.
func (a *Adapter) Init(ctx context.Context, cfg adapter.InitConfig) error {
	me, err := a.session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord identify: %w", err)
	}
	a.botID = me.ID
	logger.InfoC("discord", "Identified", "username", me.Username)
	return nil
}

// Handle normalizes one relayed message payload. Messages authored by the
// bot itself are ignored.
func (a *Adapter) Handle(ctx context.Context, req *adapter.Request) (*adapter.Event, error) {
	var msg discordgo.Message
	if err := json.Unmarshal(req.Body, &msg); err != nil {
		return nil, fmt.Errorf("discord message parse: %w", err)
	}
	if msg.ID == "" || msg.ChannelID == "" {
		return nil, fmt.Errorf("discord message missing id or channel")
	}
	if msg.Author != nil && msg.Author.ID == a.botID {
		return nil, nil
	}
	if msg.Author != nil && msg.Author.Bot {
		return nil, nil
	}

	var body content.Content
	if cmd, ok := content.ParseCommand(msg.Content); ok {
		body = cmd
	} else {
		body = content.Text{Text: msg.Content}
	}

	event := &adapter.Event{
		Kind:     adapter.EventMessage,
		Provider: "discord",
		Channel: adapter.Channel{
			ID:      msg.ChannelID,
			IsGroup: msg.GuildID != "",
		},
		Message: &adapter.Message{
			ID:          msg.ID,
			Content:     body,
			IsMentioned: a.mentioned(&msg),
		},
	}
	if msg.Author != nil {
		event.Message.Author = adapter.Author{
			ID:       msg.Author.ID,
			Name:     msg.Author.GlobalName,
			Username: msg.Author.Username,
		}
	}
	for _, att := range msg.Attachments {
		event.Message.Attachments = append(event.Message.Attachments, adapter.Attachment{
			Type:     att.ContentType,
			URL:      att.URL,
			FileName: att.Filename,
			Size:     int64(att.Size),
		})
	}
	return event, nil
}

func (a *Adapter) mentioned(msg *discordgo.Message) bool {
	if a.botID == "" {
		return false
	}
	for _, u := range msg.Mentions {
		if u.ID == a.botID {
			return true
		}
	}
	return strings.Contains(msg.Content, "<@"+a.botID+">")
}

// --- Senders ---

func (a *Adapter) SendText(ctx context.Context, channelID string, c content.Text, opts content.SendOptions) (*adapter.SendResult, error) {
	send := &discordgo.MessageSend{Content: c.Text}
	if opts.ReplyToMessageID != "" {
		send.Reference = &discordgo.MessageReference{MessageID: opts.ReplyToMessageID, ChannelID: channelID}
	}
	msg, err := a.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord send text: %w", err)
	}
	return &adapter.SendResult{MessageID: msg.ID}, nil
}

func (a *Adapter) SendImage(ctx context.Context, channelID string, c content.Image, opts content.SendOptions) (*adapter.SendResult, error) {
	send := &discordgo.MessageSend{
		Content: c.Caption,
		Embeds: []*discordgo.MessageEmbed{{
			Image: &discordgo.MessageEmbedImage{URL: c.URL, Width: c.Width, Height: c.Height},
		}},
	}
	if opts.ReplyToMessageID != "" {
		send.Reference = &discordgo.MessageReference{MessageID: opts.ReplyToMessageID, ChannelID: channelID}
	}
	msg, err := a.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord send image: %w", err)
	}
	return &adapter.SendResult{MessageID: msg.ID}, nil
}

func (a *Adapter) SendDocument(ctx context.Context, channelID string, c content.Document, opts content.SendOptions) (*adapter.SendResult, error) {
	send := &discordgo.MessageSend{Content: c.Caption}
	if len(c.Data) > 0 {
		name := c.FileName
		if name == "" {
			name = "file"
		}
		send.Files = []*discordgo.File{{Name: name, Reader: bytes.NewReader(c.Data)}}
	} else {
		// URL-referenced documents go out as a link.
		if send.Content != "" {
			send.Content += "\n"
		}
		send.Content += c.URL
	}
	if opts.ReplyToMessageID != "" {
		send.Reference = &discordgo.MessageReference{MessageID: opts.ReplyToMessageID, ChannelID: channelID}
	}
	msg, err := a.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord send document: %w", err)
	}
	return &adapter.SendResult{MessageID: msg.ID}, nil
}

func (a *Adapter) SendInteractive(ctx context.Context, channelID string, c content.Interactive, opts content.SendOptions) (*adapter.SendResult, error) {
	var components []discordgo.MessageComponent
	if len(c.Buttons) > 0 {
		row := discordgo.ActionsRow{}
		for _, b := range c.Buttons {
			btn := discordgo.Button{Label: b.Label}
			if b.URL != "" {
				btn.Style = discordgo.LinkButton
				btn.URL = b.URL
			} else {
				btn.Style = discordgo.PrimaryButton
				btn.CustomID = b.Value
			}
			row.Components = append(row.Components, btn)
		}
		components = append(components, row)
	}
	if len(c.Menu) > 0 {
		var options []discordgo.SelectMenuOption
		for _, m := range c.Menu {
			options = append(options, discordgo.SelectMenuOption{Label: m.Label, Value: m.Value})
		}
		components = append(components, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{CustomID: "menu", Options: options},
			},
		})
	}

	send := &discordgo.MessageSend{Content: c.Text, Components: components}
	if opts.ReplyToMessageID != "" {
		send.Reference = &discordgo.MessageReference{MessageID: opts.ReplyToMessageID, ChannelID: channelID}
	}
	msg, err := a.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord send interactive: %w", err)
	}
	return &adapter.SendResult{MessageID: msg.ID}, nil
}

// --- Actions ---

func (a *Adapter) SendTyping(ctx context.Context, channelID string) error {
	return a.session.ChannelTyping(channelID, discordgo.WithContext(ctx))
}

func (a *Adapter) EditMessage(ctx context.Context, channelID, messageID string, c content.Text, opts content.SendOptions) (*adapter.SendResult, error) {
	msg, err := a.session.ChannelMessageEdit(channelID, messageID, c.Text, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord edit message: %w", err)
	}
	return &adapter.SendResult{MessageID: msg.ID}, nil
}

func (a *Adapter) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return a.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

func (a *Adapter) React(ctx context.Context, channelID, messageID, emoji string) error {
	return a.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx))
}
