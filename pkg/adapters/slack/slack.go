// Package slack implements the Slack platform adapter on the Events API,
// with request signing verification and the URL verification handshake.
package slack

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/hermodbot/hermod/pkg/adapter"
	"github.com/hermodbot/hermod/pkg/capability"
	"github.com/hermodbot/hermod/pkg/content"
	boterrors "github.com/hermodbot/hermod/pkg/errors"
	"github.com/hermodbot/hermod/pkg/logger"
)

// Adapter is the Slack integration.
type Adapter struct {
	client        *slack.Client
	signingSecret string
	botUserID     string
}

var (
	_ adapter.Adapter           = (*Adapter)(nil)
	_ adapter.TextSender        = (*Adapter)(nil)
	_ adapter.ImageSender       = (*Adapter)(nil)
	_ adapter.InteractiveSender = (*Adapter)(nil)
	_ adapter.MessageEditor     = (*Adapter)(nil)
	_ adapter.MessageDeleter    = (*Adapter)(nil)
	_ adapter.Reactor           = (*Adapter)(nil)
	_ adapter.Challenger        = (*Adapter)(nil)
)

// New creates a Slack adapter. signingSecret enables request verification
// and should always be set outside tests.
func New(botToken, signingSecret string) (*Adapter, error) {
	if botToken == "" {
		return nil, boterrors.New(boterrors.CodeClientNotProvided, "slack bot token not configured")
	}
	return &Adapter{
		client:        slack.New(botToken),
		signingSecret: signingSecret,
	}, nil
}

func (a *Adapter) Key() string { return "slack" }

func (a *Adapter) Capabilities() capability.Descriptor {
	return capability.Descriptor{
		Content: capability.ContentFlags{
			Text: true, Image: true, Interactive: true,
		},
		Actions: capability.ActionFlags{
			Edit: true, Delete: true, React: true, Thread: true,
		},
		Features: capability.FeatureFlags{
			Webhooks: true, Mentions: true, Groups: true,
			Channels: true, Users: true,
		},
		Limits: capability.Limits{
			MaxMessageLength: 40000,
			MaxButtons:       25,
		},
	}
}

// Init verifies the token and learns the bot's own user id so self-authored
// events can be ignored.
func (a *Adapter) Init(ctx context.Context, cfg adapter.InitConfig) error {
	auth, err := a.client.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	a.botUserID = auth.UserID
	logger.InfoC("slack", "Authenticated", "user", auth.User)
	return nil
}

// HandleChallenge answers the Events API URL verification handshake.
func (a *Adapter) HandleChallenge(req *adapter.Request) ([]byte, bool) {
	var probe struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal(req.Body, &probe); err != nil {
		return nil, false
	}
	if probe.Type != string(slackevents.URLVerification) {
		return nil, false
	}
	return []byte(probe.Challenge), true
}

// Handle verifies the request signature and normalizes one Events API
// callback. Bot-authored and non-message events are ignored.
func (a *Adapter) Handle(ctx context.Context, req *adapter.Request) (*adapter.Event, error) {
	if a.signingSecret != "" {
		verifier, err := slack.NewSecretsVerifier(req.Header, a.signingSecret)
		if err != nil {
			return nil, fmt.Errorf("slack verifier: %w", err)
		}
		if _, err := verifier.Write(req.Body); err != nil {
			return nil, fmt.Errorf("slack verifier write: %w", err)
		}
		if err := verifier.Ensure(); err != nil {
			return nil, fmt.Errorf("slack signature mismatch: %w", err)
		}
	}

	outer, err := slackevents.ParseEvent(json.RawMessage(req.Body), slackevents.OptionNoVerifyToken())
	if err != nil {
		return nil, fmt.Errorf("slack event parse: %w", err)
	}
	if outer.Type != slackevents.CallbackEvent {
		return nil, nil
	}

	switch inner := outer.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		if inner.BotID != "" || inner.User == a.botUserID || inner.SubType != "" {
			return nil, nil
		}
		return a.messageEvent(inner.Channel, inner.TimeStamp, inner.User, inner.Text, false), nil
	case *slackevents.AppMentionEvent:
		if inner.User == a.botUserID {
			return nil, nil
		}
		return a.messageEvent(inner.Channel, inner.TimeStamp, inner.User, inner.Text, true), nil
	default:
		return nil, nil
	}
}

func (a *Adapter) messageEvent(channel, ts, user, text string, mentioned bool) *adapter.Event {
	var body content.Content
	if cmd, ok := content.ParseCommand(text); ok {
		body = cmd
	} else {
		body = content.Text{Text: text}
	}
	return &adapter.Event{
		Kind:     adapter.EventMessage,
		Provider: "slack",
		Channel:  adapter.Channel{ID: channel, IsGroup: true},
		Message: &adapter.Message{
			ID:          ts,
			Content:     body,
			Author:      adapter.Author{ID: user},
			IsMentioned: mentioned,
		},
	}
}

// --- Senders ---

func sendOptions(opts content.SendOptions) []slack.MsgOption {
	var out []slack.MsgOption
	if opts.ReplyToMessageID != "" {
		// Slack replies are threads keyed by the parent timestamp.
		out = append(out, slack.MsgOptionTS(opts.ReplyToMessageID))
	}
	return out
}

func (a *Adapter) SendText(ctx context.Context, channelID string, c content.Text, opts content.SendOptions) (*adapter.SendResult, error) {
	msgOpts := append(sendOptions(opts), slack.MsgOptionText(c.Text, false))
	_, ts, err := a.client.PostMessageContext(ctx, channelID, msgOpts...)
	if err != nil {
		return nil, fmt.Errorf("slack send text: %w", err)
	}
	return &adapter.SendResult{MessageID: ts}, nil
}

func (a *Adapter) SendImage(ctx context.Context, channelID string, c content.Image, opts content.SendOptions) (*adapter.SendResult, error) {
	alt := c.Caption
	if alt == "" {
		alt = "image"
	}
	blocks := []slack.Block{slack.NewImageBlock(c.URL, alt, "", nil)}
	if c.Caption != "" {
		blocks = append([]slack.Block{
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.PlainTextType, c.Caption, false, false), nil, nil),
		}, blocks...)
	}
	msgOpts := append(sendOptions(opts), slack.MsgOptionBlocks(blocks...))
	_, ts, err := a.client.PostMessageContext(ctx, channelID, msgOpts...)
	if err != nil {
		return nil, fmt.Errorf("slack send image: %w", err)
	}
	return &adapter.SendResult{MessageID: ts}, nil
}

func (a *Adapter) SendInteractive(ctx context.Context, channelID string, c content.Interactive, opts content.SendOptions) (*adapter.SendResult, error) {
	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.PlainTextType, c.Text, false, false), nil, nil),
	}

	var elements []slack.BlockElement
	for _, b := range c.Buttons {
		label := slack.NewTextBlockObject(slack.PlainTextType, b.Label, false, false)
		btn := slack.NewButtonBlockElement(b.Value, b.Value, label)
		if b.URL != "" {
			btn.URL = b.URL
		}
		elements = append(elements, btn)
	}
	for _, m := range c.Menu {
		label := slack.NewTextBlockObject(slack.PlainTextType, m.Label, false, false)
		elements = append(elements, slack.NewButtonBlockElement(m.Value, m.Value, label))
	}
	if len(elements) > 0 {
		blocks = append(blocks, slack.NewActionBlock("", elements...))
	}

	msgOpts := append(sendOptions(opts), slack.MsgOptionBlocks(blocks...))
	_, ts, err := a.client.PostMessageContext(ctx, channelID, msgOpts...)
	if err != nil {
		return nil, fmt.Errorf("slack send interactive: %w", err)
	}
	return &adapter.SendResult{MessageID: ts}, nil
}

// --- Actions ---

func (a *Adapter) EditMessage(ctx context.Context, channelID, messageID string, c content.Text, opts content.SendOptions) (*adapter.SendResult, error) {
	_, ts, _, err := a.client.UpdateMessageContext(ctx, channelID, messageID, slack.MsgOptionText(c.Text, false))
	if err != nil {
		return nil, fmt.Errorf("slack edit message: %w", err)
	}
	return &adapter.SendResult{MessageID: ts}, nil
}

func (a *Adapter) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	_, _, err := a.client.DeleteMessageContext(ctx, channelID, messageID)
	return err
}

func (a *Adapter) React(ctx context.Context, channelID, messageID, emoji string) error {
	return a.client.AddReactionContext(ctx, emoji, slack.ItemRef{Channel: channelID, Timestamp: messageID})
}
