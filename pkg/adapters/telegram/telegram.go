// Package telegram implements the Telegram platform adapter on top of the
// Bot API, receiving updates through the webhook gateway.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mymmrac/telego"

	"github.com/hermodbot/hermod/pkg/adapter"
	"github.com/hermodbot/hermod/pkg/capability"
	"github.com/hermodbot/hermod/pkg/content"
	boterrors "github.com/hermodbot/hermod/pkg/errors"
	"github.com/hermodbot/hermod/pkg/logger"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Adapter is the Telegram integration.
type Adapter struct {
	bot           *telego.Bot
	webhookSecret string
}

var (
	_ adapter.Adapter           = (*Adapter)(nil)
	_ adapter.TextSender        = (*Adapter)(nil)
	_ adapter.ImageSender       = (*Adapter)(nil)
	_ adapter.VideoSender       = (*Adapter)(nil)
	_ adapter.AudioSender       = (*Adapter)(nil)
	_ adapter.DocumentSender    = (*Adapter)(nil)
	_ adapter.StickerSender     = (*Adapter)(nil)
	_ adapter.LocationSender    = (*Adapter)(nil)
	_ adapter.ContactSender     = (*Adapter)(nil)
	_ adapter.PollSender        = (*Adapter)(nil)
	_ adapter.InteractiveSender = (*Adapter)(nil)
	_ adapter.TypingSender      = (*Adapter)(nil)
	_ adapter.MessageEditor     = (*Adapter)(nil)
	_ adapter.MessageDeleter    = (*Adapter)(nil)
)

// New creates a Telegram adapter. The token is required; webhookSecret is
// matched against the Bot API secret token header when set.
func New(token, webhookSecret string) (*Adapter, error) {
	if token == "" {
		return nil, boterrors.New(boterrors.CodeClientNotProvided, "telegram token not configured")
	}
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("telegram client: %w", err)
	}
	return &Adapter{bot: bot, webhookSecret: webhookSecret}, nil
}

func (a *Adapter) Key() string { return "telegram" }

func (a *Adapter) Capabilities() capability.Descriptor {
	return capability.Descriptor{
		Content: capability.ContentFlags{
			Text: true, Image: true, Video: true, Audio: true,
			Document: true, Sticker: true, Location: true,
			Contact: true, Poll: true, Interactive: true,
		},
		Actions: capability.ActionFlags{
			Edit: true, Delete: true, Typing: true,
		},
		Features: capability.FeatureFlags{
			Webhooks: true, Commands: true, Mentions: true,
			Groups: true, Users: true, Files: true,
		},
		Limits: capability.Limits{
			MaxMessageLength: 4096,
			MaxFileSize:      50 << 20,
			MaxButtons:       100,
		},
	}
}

// Init syncs the command list with BotFather's command menu.
func (a *Adapter) Init(ctx context.Context, cfg adapter.InitConfig) error {
	if len(cfg.Commands) == 0 {
		return nil
	}

	commands := make([]telego.BotCommand, 0, len(cfg.Commands))
	for _, c := range cfg.Commands {
		desc := c.Description
		if desc == "" {
			desc = c.Name
		}
		commands = append(commands, telego.BotCommand{Command: c.Name, Description: desc})
	}
	if err := a.bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: commands}); err != nil {
		return fmt.Errorf("telegram set commands: %w", err)
	}
	logger.InfoC("telegram", "Command menu synced", "count", len(commands))
	return nil
}

// Handle normalizes one webhook update. Non-message updates are ignored.
func (a *Adapter) Handle(ctx context.Context, req *adapter.Request) (*adapter.Event, error) {
	if a.webhookSecret != "" && req.Header.Get(secretTokenHeader) != a.webhookSecret {
		return nil, fmt.Errorf("telegram webhook secret mismatch")
	}

	var update telego.Update
	if err := json.Unmarshal(req.Body, &update); err != nil {
		return nil, fmt.Errorf("telegram update parse: %w", err)
	}

	if update.CallbackQuery != nil {
		return a.callbackEvent(update.CallbackQuery), nil
	}
	if update.Message == nil {
		return nil, nil
	}
	return a.messageEvent(update.Message), nil
}

func (a *Adapter) messageEvent(msg *telego.Message) *adapter.Event {
	var body content.Content
	switch {
	case msg.Text != "":
		if cmd, ok := content.ParseCommand(msg.Text); ok {
			body = cmd
		} else {
			body = content.Text{Text: msg.Text}
		}
	case msg.Caption != "":
		body = content.Text{Text: msg.Caption}
	default:
		// Media-only message without caption
		body = content.Text{}
	}

	event := &adapter.Event{
		Kind:     adapter.EventMessage,
		Provider: "telegram",
		Channel: adapter.Channel{
			ID:      strconv.FormatInt(msg.Chat.ID, 10),
			Name:    msg.Chat.Title,
			IsGroup: msg.Chat.Type != telego.ChatTypePrivate,
		},
		Message: &adapter.Message{
			ID:      strconv.Itoa(msg.MessageID),
			Content: body,
		},
	}
	if msg.From != nil {
		event.Message.Author = adapter.Author{
			ID:       strconv.FormatInt(msg.From.ID, 10),
			Name:     msg.From.FirstName,
			Username: msg.From.Username,
		}
	}
	if msg.Document != nil {
		event.Message.Attachments = append(event.Message.Attachments, adapter.Attachment{
			Type:     "document",
			FileName: msg.Document.FileName,
			Size:     msg.Document.FileSize,
		})
	}
	return event
}

func (a *Adapter) callbackEvent(cq *telego.CallbackQuery) *adapter.Event {
	msg, ok := cq.Message.(*telego.Message)
	if !ok || msg == nil {
		return nil
	}
	return &adapter.Event{
		Kind:     adapter.EventMessage,
		Provider: "telegram",
		Channel: adapter.Channel{
			ID:      strconv.FormatInt(msg.Chat.ID, 10),
			IsGroup: msg.Chat.Type != telego.ChatTypePrivate,
		},
		Message: &adapter.Message{
			ID: strconv.Itoa(msg.MessageID),
			Content: content.Callback{
				MessageID: strconv.Itoa(msg.MessageID),
				Data:      cq.Data,
			},
			Author: adapter.Author{
				ID:       strconv.FormatInt(cq.From.ID, 10),
				Name:     cq.From.FirstName,
				Username: cq.From.Username,
			},
		},
	}
}

// --- Senders ---

func chatID(channelID string) (telego.ChatID, error) {
	id, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return telego.ChatID{}, fmt.Errorf("telegram chat id %q: %w", channelID, err)
	}
	return telego.ChatID{ID: id}, nil
}

func replyParams(opts content.SendOptions) *telego.ReplyParameters {
	if opts.ReplyToMessageID == "" {
		return nil
	}
	id, err := strconv.Atoi(opts.ReplyToMessageID)
	if err != nil {
		return nil
	}
	return &telego.ReplyParameters{MessageID: id}
}

func (a *Adapter) SendText(ctx context.Context, channelID string, c content.Text, opts content.SendOptions) (*adapter.SendResult, error) {
	chat, err := chatID(channelID)
	if err != nil {
		return nil, err
	}
	params := &telego.SendMessageParams{
		ChatID:              chat,
		Text:                c.Text,
		ParseMode:           opts.ParseMode,
		DisableNotification: opts.DisableNotification,
		ProtectContent:      opts.ProtectContent,
		ReplyParameters:     replyParams(opts),
	}
	if opts.DisableLinkPreview {
		params.LinkPreviewOptions = &telego.LinkPreviewOptions{IsDisabled: true}
	}
	msg, err := a.bot.SendMessage(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("telegram send text: %w", err)
	}
	return &adapter.SendResult{MessageID: strconv.Itoa(msg.MessageID)}, nil
}

func (a *Adapter) SendImage(ctx context.Context, channelID string, c content.Image, opts content.SendOptions) (*adapter.SendResult, error) {
	chat, err := chatID(channelID)
	if err != nil {
		return nil, err
	}
	msg, err := a.bot.SendPhoto(ctx, &telego.SendPhotoParams{
		ChatID:              chat,
		Photo:               telego.InputFile{URL: c.URL},
		Caption:             c.Caption,
		DisableNotification: opts.DisableNotification,
		ReplyParameters:     replyParams(opts),
	})
	if err != nil {
		return nil, fmt.Errorf("telegram send image: %w", err)
	}
	return &adapter.SendResult{MessageID: strconv.Itoa(msg.MessageID)}, nil
}

func (a *Adapter) SendVideo(ctx context.Context, channelID string, c content.Video, opts content.SendOptions) (*adapter.SendResult, error) {
	chat, err := chatID(channelID)
	if err != nil {
		return nil, err
	}
	msg, err := a.bot.SendVideo(ctx, &telego.SendVideoParams{
		ChatID:              chat,
		Video:               telego.InputFile{URL: c.URL},
		Caption:             c.Caption,
		Duration:            c.Duration,
		DisableNotification: opts.DisableNotification,
		ReplyParameters:     replyParams(opts),
	})
	if err != nil {
		return nil, fmt.Errorf("telegram send video: %w", err)
	}
	return &adapter.SendResult{MessageID: strconv.Itoa(msg.MessageID)}, nil
}

func (a *Adapter) SendAudio(ctx context.Context, channelID string, c content.Audio, opts content.SendOptions) (*adapter.SendResult, error) {
	chat, err := chatID(channelID)
	if err != nil {
		return nil, err
	}
	msg, err := a.bot.SendAudio(ctx, &telego.SendAudioParams{
		ChatID:              chat,
		Audio:               telego.InputFile{URL: c.URL},
		Caption:             c.Caption,
		Duration:            c.Duration,
		DisableNotification: opts.DisableNotification,
		ReplyParameters:     replyParams(opts),
	})
	if err != nil {
		return nil, fmt.Errorf("telegram send audio: %w", err)
	}
	return &adapter.SendResult{MessageID: strconv.Itoa(msg.MessageID)}, nil
}

func (a *Adapter) SendDocument(ctx context.Context, channelID string, c content.Document, opts content.SendOptions) (*adapter.SendResult, error) {
	chat, err := chatID(channelID)
	if err != nil {
		return nil, err
	}
	msg, err := a.bot.SendDocument(ctx, &telego.SendDocumentParams{
		ChatID:              chat,
		Document:            telego.InputFile{URL: c.URL},
		Caption:             c.Caption,
		DisableNotification: opts.DisableNotification,
		ReplyParameters:     replyParams(opts),
	})
	if err != nil {
		return nil, fmt.Errorf("telegram send document: %w", err)
	}
	return &adapter.SendResult{MessageID: strconv.Itoa(msg.MessageID)}, nil
}

func (a *Adapter) SendSticker(ctx context.Context, channelID string, c content.Sticker, opts content.SendOptions) (*adapter.SendResult, error) {
	chat, err := chatID(channelID)
	if err != nil {
		return nil, err
	}
	sticker := telego.InputFile{FileID: c.FileID}
	if c.FileID == "" {
		sticker = telego.InputFile{URL: c.URL}
	}
	msg, err := a.bot.SendSticker(ctx, &telego.SendStickerParams{
		ChatID:          chat,
		Sticker:         sticker,
		ReplyParameters: replyParams(opts),
	})
	if err != nil {
		return nil, fmt.Errorf("telegram send sticker: %w", err)
	}
	return &adapter.SendResult{MessageID: strconv.Itoa(msg.MessageID)}, nil
}

func (a *Adapter) SendLocation(ctx context.Context, channelID string, c content.Location, opts content.SendOptions) (*adapter.SendResult, error) {
	chat, err := chatID(channelID)
	if err != nil {
		return nil, err
	}
	msg, err := a.bot.SendLocation(ctx, &telego.SendLocationParams{
		ChatID:          chat,
		Latitude:        c.Latitude,
		Longitude:       c.Longitude,
		ReplyParameters: replyParams(opts),
	})
	if err != nil {
		return nil, fmt.Errorf("telegram send location: %w", err)
	}
	return &adapter.SendResult{MessageID: strconv.Itoa(msg.MessageID)}, nil
}

func (a *Adapter) SendContact(ctx context.Context, channelID string, c content.Contact, opts content.SendOptions) (*adapter.SendResult, error) {
	chat, err := chatID(channelID)
	if err != nil {
		return nil, err
	}
	msg, err := a.bot.SendContact(ctx, &telego.SendContactParams{
		ChatID:          chat,
		PhoneNumber:     c.Phone,
		FirstName:       c.Name,
		ReplyParameters: replyParams(opts),
	})
	if err != nil {
		return nil, fmt.Errorf("telegram send contact: %w", err)
	}
	return &adapter.SendResult{MessageID: strconv.Itoa(msg.MessageID)}, nil
}

func (a *Adapter) SendPoll(ctx context.Context, channelID string, c content.Poll, opts content.SendOptions) (*adapter.SendResult, error) {
	chat, err := chatID(channelID)
	if err != nil {
		return nil, err
	}
	options := make([]telego.InputPollOption, 0, len(c.Choices))
	for _, choice := range c.Choices {
		options = append(options, telego.InputPollOption{Text: choice})
	}
	msg, err := a.bot.SendPoll(ctx, &telego.SendPollParams{
		ChatID:                chat,
		Question:              c.Question,
		Options:               options,
		AllowsMultipleAnswers: c.MultiSelect,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram send poll: %w", err)
	}
	return &adapter.SendResult{MessageID: strconv.Itoa(msg.MessageID)}, nil
}

func (a *Adapter) SendInteractive(ctx context.Context, channelID string, c content.Interactive, opts content.SendOptions) (*adapter.SendResult, error) {
	chat, err := chatID(channelID)
	if err != nil {
		return nil, err
	}

	rows := make([][]telego.InlineKeyboardButton, 0, len(c.Buttons)+len(c.Menu))
	for _, b := range c.Buttons {
		btn := telego.InlineKeyboardButton{Text: b.Label}
		if b.URL != "" {
			btn.URL = b.URL
		} else {
			btn.CallbackData = b.Value
		}
		rows = append(rows, []telego.InlineKeyboardButton{btn})
	}
	// Telegram has no native menu widget; entries render as callback buttons.
	for _, m := range c.Menu {
		rows = append(rows, []telego.InlineKeyboardButton{{Text: m.Label, CallbackData: m.Value}})
	}

	msg, err := a.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:          chat,
		Text:            c.Text,
		ReplyParameters: replyParams(opts),
		ReplyMarkup:     &telego.InlineKeyboardMarkup{InlineKeyboard: rows},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram send interactive: %w", err)
	}
	return &adapter.SendResult{MessageID: strconv.Itoa(msg.MessageID)}, nil
}

// --- Actions ---

func (a *Adapter) SendTyping(ctx context.Context, channelID string) error {
	chat, err := chatID(channelID)
	if err != nil {
		return err
	}
	return a.bot.SendChatAction(ctx, &telego.SendChatActionParams{
		ChatID: chat,
		Action: telego.ChatActionTyping,
	})
}

func (a *Adapter) EditMessage(ctx context.Context, channelID, messageID string, c content.Text, opts content.SendOptions) (*adapter.SendResult, error) {
	chat, err := chatID(channelID)
	if err != nil {
		return nil, err
	}
	id, err := strconv.Atoi(messageID)
	if err != nil {
		return nil, fmt.Errorf("telegram message id %q: %w", messageID, err)
	}
	msg, err := a.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    chat,
		MessageID: id,
		Text:      c.Text,
		ParseMode: opts.ParseMode,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram edit message: %w", err)
	}
	return &adapter.SendResult{MessageID: strconv.Itoa(msg.MessageID)}, nil
}

func (a *Adapter) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	chat, err := chatID(channelID)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(messageID)
	if err != nil {
		return fmt.Errorf("telegram message id %q: %w", messageID, err)
	}
	return a.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{ChatID: chat, MessageID: id})
}
