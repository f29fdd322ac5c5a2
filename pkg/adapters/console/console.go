// Package console implements a local terminal adapter for development: a
// readline loop feeds typed lines into the dispatcher and replies print back
// to the terminal.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/chzyer/readline"

	"github.com/hermodbot/hermod/pkg/adapter"
	"github.com/hermodbot/hermod/pkg/capability"
	"github.com/hermodbot/hermod/pkg/content"
	"github.com/hermodbot/hermod/pkg/logger"
)

const (
	channelID = "console"
	userID    = "local"
)

// inbound is the synthesized request body for one typed line.
type inbound struct {
	Text string `json:"text"`
}

// Sink receives a synthesized request for every typed line; wire it to the
// dispatcher's Handle.
type Sink func(ctx context.Context, req *adapter.Request) error

// Adapter is the terminal integration. Text only.
type Adapter struct {
	mu  sync.Mutex
	out io.Writer
}

var (
	_ adapter.Adapter    = (*Adapter)(nil)
	_ adapter.TextSender = (*Adapter)(nil)
)

// New creates a console adapter writing replies to stdout.
func New() *Adapter {
	return &Adapter{out: os.Stdout}
}

func (a *Adapter) Key() string { return "console" }

func (a *Adapter) Capabilities() capability.Descriptor {
	return capability.Descriptor{
		Content:  capability.ContentFlags{Text: true},
		Features: capability.FeatureFlags{Commands: true, Users: true},
	}
}

func (a *Adapter) Init(ctx context.Context, cfg adapter.InitConfig) error {
	logger.InfoC("console", "Ready", "commands", len(cfg.Commands))
	return nil
}

// Handle normalizes one typed line. Empty lines are ignored.
func (a *Adapter) Handle(ctx context.Context, req *adapter.Request) (*adapter.Event, error) {
	var in inbound
	if err := json.Unmarshal(req.Body, &in); err != nil {
		return nil, fmt.Errorf("console input parse: %w", err)
	}
	if in.Text == "" {
		return nil, nil
	}

	var body content.Content
	if cmd, ok := content.ParseCommand(in.Text); ok {
		body = cmd
	} else {
		body = content.Text{Text: in.Text}
	}

	return &adapter.Event{
		Kind:     adapter.EventMessage,
		Provider: "console",
		Channel:  adapter.Channel{ID: channelID, Name: "terminal"},
		Message: &adapter.Message{
			Content: body,
			Author:  adapter.Author{ID: userID, Name: "local"},
		},
	}, nil
}

func (a *Adapter) SendText(ctx context.Context, channel string, c content.Text, opts content.SendOptions) (*adapter.SendResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintln(a.out, c.Text)
	return &adapter.SendResult{}, nil
}

// Run pumps readline input into the sink until EOF or context cancellation.
func (a *Adapter) Run(ctx context.Context, sink Sink) error {
	rl, err := readline.New("hermod> ")
	if err != nil {
		return fmt.Errorf("console readline: %w", err)
	}
	defer rl.Close()

	a.mu.Lock()
	a.out = rl.Stdout()
	a.mu.Unlock()

	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := rl.Readline()
			if err != nil {
				if errors.Is(err, readline.ErrInterrupt) {
					continue
				}
				return // io.EOF or closed terminal
			}
			lines <- line
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			body, _ := json.Marshal(inbound{Text: line})
			req := &adapter.Request{Method: "POST", Body: body}
			if err := sink(ctx, req); err != nil {
				logger.WarnCF("console", "Input dispatch failed", map[string]any{"error": err.Error()})
			}
		}
	}
}
