// Package content defines the closed, tagged set of message content variants
// flowing through the dispatcher, plus the platform-agnostic send options.
package content

import "strings"

// Kind tags a content variant.
type Kind string

const (
	KindText        Kind = "text"
	KindImage       Kind = "image"
	KindVideo       Kind = "video"
	KindAudio       Kind = "audio"
	KindDocument    Kind = "document"
	KindSticker     Kind = "sticker"
	KindLocation    Kind = "location"
	KindContact     Kind = "contact"
	KindPoll        Kind = "poll"
	KindInteractive Kind = "interactive"
	KindReply       Kind = "reply"
	KindCallback    Kind = "callback"
	KindCommand     Kind = "command"
)

// Content is the closed variant set. Only types in this package implement it.
type Content interface {
	Kind() Kind
}

// SendOptions carries platform-agnostic delivery options for outbound content.
type SendOptions struct {
	ReplyToMessageID    string `json:"reply_to_message_id,omitempty"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
	DisableLinkPreview  bool   `json:"disable_link_preview,omitempty"`
	ParseMode           string `json:"parse_mode,omitempty"`
	ProtectContent      bool   `json:"protect_content,omitempty"`
}

// Text is a plain text message.
type Text struct {
	Text string `json:"text"`
}

func (Text) Kind() Kind { return KindText }

// Image is a picture, referenced by URL.
type Image struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

func (Image) Kind() Kind { return KindImage }

// Video is a video clip, referenced by URL.
type Video struct {
	URL      string `json:"url"`
	Caption  string `json:"caption,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

func (Video) Kind() Kind { return KindVideo }

// Audio is an audio clip, referenced by URL.
type Audio struct {
	URL      string `json:"url"`
	Caption  string `json:"caption,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

func (Audio) Kind() Kind { return KindAudio }

// Document is a file, either referenced by URL or carried inline.
type Document struct {
	URL      string `json:"url,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Data     []byte `json:"-"`
}

func (Document) Kind() Kind { return KindDocument }

// HasPayload reports whether the document carries a concrete file payload.
func (d Document) HasPayload() bool { return d.URL != "" || len(d.Data) > 0 }

// Sticker is a platform sticker, referenced by platform file id or URL.
type Sticker struct {
	FileID string `json:"file_id,omitempty"`
	URL    string `json:"url,omitempty"`
}

func (Sticker) Kind() Kind { return KindSticker }

// Location is a geographic point.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Title     string  `json:"title,omitempty"`
}

func (Location) Kind() Kind { return KindLocation }

// Contact is a shared contact card.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (Contact) Kind() Kind { return KindContact }

// Poll is a question with choices.
type Poll struct {
	Question    string   `json:"question"`
	Choices     []string `json:"choices"`
	MultiSelect bool     `json:"multi_select,omitempty"`
}

func (Poll) Kind() Kind { return KindPoll }

// Button is one pressable element of interactive content.
// Value is delivered back as callback data; URL buttons open a link instead.
type Button struct {
	Label string `json:"label"`
	Value string `json:"value,omitempty"`
	URL   string `json:"url,omitempty"`
}

// MenuEntry is one selectable element of a menu.
type MenuEntry struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Interactive is text with buttons and/or a selection menu.
type Interactive struct {
	Text    string      `json:"text"`
	Buttons []Button    `json:"buttons,omitempty"`
	Menu    []MenuEntry `json:"menu,omitempty"`
}

func (Interactive) Kind() Kind { return KindInteractive }

// Reply wraps another content item targeting an existing message.
// The dispatcher unwraps it recursively; it never reaches an adapter.
type Reply struct {
	Content     Content `json:"content"`
	ToMessageID string  `json:"to_message_id"`
}

func (Reply) Kind() Kind { return KindReply }

// Callback is a button-press acknowledgement received from a platform.
// It is inbound-only.
type Callback struct {
	MessageID string `json:"message_id,omitempty"`
	Data      string `json:"data"`
}

func (Callback) Kind() Kind { return KindCallback }

// Command is a parsed command token with positional params. Inbound-only.
type Command struct {
	Token  string   `json:"token"`
	Params []string `json:"params"`
	Raw    string   `json:"raw"`
}

func (Command) Kind() Kind { return KindCommand }

// ParseCommand splits a leading "/token arg1 arg2" message into command
// content. A Telegram-style "@botname" suffix on the token is stripped.
// Returns false when the text is not a command.
func ParseCommand(text string) (Command, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") || len(trimmed) < 2 {
		return Command{}, false
	}

	fields := strings.Fields(trimmed)
	token := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(token, '@'); at >= 0 {
		token = token[:at]
	}
	if token == "" {
		return Command{}, false
	}

	params := make([]string, 0, len(fields)-1)
	params = append(params, fields[1:]...)

	return Command{Token: token, Params: params, Raw: trimmed}, true
}
