package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/hermodbot/hermod/pkg/adapter"
	"github.com/hermodbot/hermod/pkg/capability"
	"github.com/hermodbot/hermod/pkg/command"
	"github.com/hermodbot/hermod/pkg/content"
	"github.com/hermodbot/hermod/pkg/domain"
	boterrors "github.com/hermodbot/hermod/pkg/errors"
	"github.com/hermodbot/hermod/pkg/events"
	"github.com/hermodbot/hermod/pkg/session"
)

// --- Fakes ---

type sentText struct {
	channelID string
	text      string
	opts      content.SendOptions
}

// fakeAdapter is a text-capable adapter returning a canned event.
type fakeAdapter struct {
	key       string
	caps      capability.Descriptor
	event     *adapter.Event
	handleErr error
	initCfg   *adapter.InitConfig
	sent      []sentText
}

func newFakeAdapter(key string) *fakeAdapter {
	return &fakeAdapter{
		key: key,
		caps: capability.Descriptor{
			Content: capability.ContentFlags{Text: true},
		},
	}
}

func (f *fakeAdapter) Key() string                           { return f.key }
func (f *fakeAdapter) Capabilities() capability.Descriptor   { return f.caps }
func (f *fakeAdapter) Init(ctx context.Context, cfg adapter.InitConfig) error {
	f.initCfg = &cfg
	return nil
}

func (f *fakeAdapter) Handle(ctx context.Context, req *adapter.Request) (*adapter.Event, error) {
	return f.event, f.handleErr
}

func (f *fakeAdapter) SendText(ctx context.Context, channelID string, c content.Text, opts content.SendOptions) (*adapter.SendResult, error) {
	f.sent = append(f.sent, sentText{channelID: channelID, text: c.Text, opts: opts})
	return &adapter.SendResult{MessageID: "m1"}, nil
}

// bareAdapter declares text capability but implements no sender, to exercise
// the interface-assertion half of capability gating.
type bareAdapter struct{ key string }

func (b *bareAdapter) Key() string { return b.key }
func (b *bareAdapter) Capabilities() capability.Descriptor {
	return capability.Descriptor{Content: capability.ContentFlags{Text: true}}
}
func (b *bareAdapter) Init(ctx context.Context, cfg adapter.InitConfig) error { return nil }
func (b *bareAdapter) Handle(ctx context.Context, req *adapter.Request) (*adapter.Event, error) {
	return nil, nil
}

func textEvent(provider, userID, text string) *adapter.Event {
	var body content.Content
	if cmd, ok := content.ParseCommand(text); ok {
		body = cmd
	} else {
		body = content.Text{Text: text}
	}
	return &adapter.Event{
		Kind:     adapter.EventMessage,
		Provider: provider,
		Channel:  adapter.Channel{ID: "chan-1"},
		Message: &adapter.Message{
			ID:      "msg-1",
			Content: body,
			Author:  adapter.Author{ID: userID},
		},
	}
}

func emptyRequest() *adapter.Request {
	return &adapter.Request{Method: "POST", Body: json.RawMessage(`{}`)}
}

// --- Handle ---

// TestHandleUnknownProvider verifies the closed error taxonomy for missing
// adapters
func TestHandleUnknownProvider(t *testing.T) {
	d := New(Options{})
	_, err := d.Handle(context.Background(), "matrix", emptyRequest())
	if !boterrors.HasCode(err, boterrors.CodeProviderNotFound) {
		t.Fatalf("Handle error = %v, want PROVIDER_NOT_FOUND", err)
	}
}

// TestHandleIgnored verifies a nil event short-circuits with 204 and skips
// the whole pipeline
func TestHandleIgnored(t *testing.T) {
	d := New(Options{})
	fa := newFakeAdapter("test")
	fa.event = nil
	if err := d.RegisterAdapter(fa); err != nil {
		t.Fatalf("register adapter: %v", err)
	}

	hookRan := false
	d.OnPreProcess(func(ctx context.Context, c *domain.Context) error {
		hookRan = true
		return nil
	})

	var observed []string
	d.Observe(func(ev events.Event) { observed = append(observed, ev.Type) })

	result, err := d.Handle(context.Background(), "test", emptyRequest())
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !result.Ignored || result.Status != 204 {
		t.Errorf("result = %+v, want ignored 204", result)
	}
	if hookRan {
		t.Error("expected hooks skipped for ignored payloads")
	}
	if len(observed) != 1 || observed[0] != events.MessageIgnored {
		t.Errorf("observed %v, want [%s]", observed, events.MessageIgnored)
	}
}

// TestHandleAdapterError verifies adapter failures propagate unrecovered
func TestHandleAdapterError(t *testing.T) {
	d := New(Options{})
	fa := newFakeAdapter("test")
	fa.handleErr = errors.New("signature mismatch")
	if err := d.RegisterAdapter(fa); err != nil {
		t.Fatalf("register adapter: %v", err)
	}

	if _, err := d.Handle(context.Background(), "test", emptyRequest()); err == nil {
		t.Fatal("expected adapter error to propagate")
	}
}

// TestHandleDispatchesCommand verifies the full path from raw request to
// command handler, with middleware extras visible at the terminal
func TestHandleDispatchesCommand(t *testing.T) {
	d := New(Options{})
	fa := newFakeAdapter("test")
	fa.event = textEvent("test", "u1", "/echo hello world")
	if err := d.RegisterAdapter(fa); err != nil {
		t.Fatalf("register adapter: %v", err)
	}

	d.Use(func(c *domain.Context, next func() error) (domain.Extra, error) {
		return domain.Extra{"trace": "t-1"}, nil
	})

	var gotParams []string
	var gotTrace any
	err := d.RegisterCommand(&command.Command{
		Name: "echo",
		Handle: func(ctx context.Context, c *domain.Context, params []string) error {
			gotParams = params
			gotTrace, _ = c.Value("trace")
			_, err := c.Reply(ctx, "echoed")
			return err
		},
	})
	if err != nil {
		t.Fatalf("register command: %v", err)
	}

	postRan := false
	d.OnPostProcess(func(ctx context.Context, c *domain.Context) error {
		postRan = true
		return nil
	})

	result, err := d.Handle(context.Background(), "test", emptyRequest())
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result.Status != 200 {
		t.Errorf("status = %d, want 200", result.Status)
	}
	if len(gotParams) != 2 || gotParams[0] != "hello" || gotParams[1] != "world" {
		t.Errorf("params = %v, want [hello world]", gotParams)
	}
	if gotTrace != "t-1" {
		t.Errorf("handler saw trace = %v, want t-1", gotTrace)
	}
	if len(fa.sent) != 1 || fa.sent[0].text != "echoed" {
		t.Errorf("sent = %+v, want one echoed reply", fa.sent)
	}
	if !postRan {
		t.Error("expected post hooks to run")
	}
}

// TestUnknownCommandRecovered verifies an unresolved token completes
// normally and surfaces only as an error event
func TestUnknownCommandRecovered(t *testing.T) {
	d := New(Options{})
	fa := newFakeAdapter("test")
	fa.event = textEvent("test", "u1", "/nosuch")
	if err := d.RegisterAdapter(fa); err != nil {
		t.Fatalf("register adapter: %v", err)
	}

	var listenerErr any
	d.On(adapter.EventError, func(ctx context.Context, c *domain.Context) error {
		listenerErr, _ = c.Value("error")
		return nil
	})

	var observed []string
	d.Observe(func(ev events.Event) { observed = append(observed, ev.Type) })

	result, err := d.Handle(context.Background(), "test", emptyRequest())
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result.Status != 200 {
		t.Errorf("status = %d, want 200", result.Status)
	}

	derr, ok := listenerErr.(*boterrors.Error)
	if !ok || derr.Code != boterrors.CodeCommandNotFound {
		t.Errorf("error listener saw %v, want COMMAND_NOT_FOUND", listenerErr)
	}

	foundUnknown := false
	for _, typ := range observed {
		if typ == events.CommandUnknown {
			foundUnknown = true
		}
	}
	if !foundUnknown {
		t.Errorf("observed %v, want a %s event", observed, events.CommandUnknown)
	}
}

// TestFailingHandlerRecovered verifies a handler error sends the help text
// and never surfaces to the caller
func TestFailingHandlerRecovered(t *testing.T) {
	d := New(Options{})
	fa := newFakeAdapter("test")
	fa.event = textEvent("test", "u1", "/remind")
	if err := d.RegisterAdapter(fa); err != nil {
		t.Fatalf("register adapter: %v", err)
	}

	err := d.RegisterCommand(&command.Command{
		Name: "remind",
		Help: "Usage: /remind <when> <what>",
		Validate: func(params []string) error {
			if len(params) < 2 {
				return errors.New("need when and what")
			}
			return nil
		},
		Handle: func(ctx context.Context, c *domain.Context, params []string) error {
			t.Fatal("handler must not run when validation fails")
			return nil
		},
	})
	if err != nil {
		t.Fatalf("register command: %v", err)
	}

	var listenerErr any
	d.On(adapter.EventError, func(ctx context.Context, c *domain.Context) error {
		listenerErr, _ = c.Value("error")
		return nil
	})

	result, err := d.Handle(context.Background(), "test", emptyRequest())
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result.Status != 200 {
		t.Errorf("status = %d, want 200", result.Status)
	}
	if len(fa.sent) != 1 || fa.sent[0].text != "Usage: /remind <when> <what>" {
		t.Errorf("sent = %+v, want the help text", fa.sent)
	}

	derr, ok := listenerErr.(*boterrors.Error)
	if !ok || derr.Code != boterrors.CodeInvalidCommandParameters {
		t.Errorf("error listener saw %v, want INVALID_COMMAND_PARAMETERS", listenerErr)
	}
}

// TestListenerErrorAbortsPipeline verifies a failing listener stops command
// dispatch and post hooks
func TestListenerErrorAbortsPipeline(t *testing.T) {
	d := New(Options{})
	fa := newFakeAdapter("test")
	fa.event = textEvent("test", "u1", "/ping")
	if err := d.RegisterAdapter(fa); err != nil {
		t.Fatalf("register adapter: %v", err)
	}

	handlerRan := false
	d.RegisterCommand(&command.Command{
		Name: "ping",
		Handle: func(ctx context.Context, c *domain.Context, params []string) error {
			handlerRan = true
			return nil
		},
	})

	d.On(adapter.EventMessage, func(ctx context.Context, c *domain.Context) error {
		return errors.New("listener down")
	})

	postRan := false
	d.OnPostProcess(func(ctx context.Context, c *domain.Context) error {
		postRan = true
		return nil
	})

	if _, err := d.Handle(context.Background(), "test", emptyRequest()); err == nil {
		t.Fatal("expected listener error to propagate")
	}
	if handlerRan {
		t.Error("expected command dispatch skipped after listener failure")
	}
	if postRan {
		t.Error("expected post hooks skipped after listener failure")
	}
}

// --- Send ---

// TestSendCapabilityGate verifies an unsupported content type fails before
// the adapter is touched
func TestSendCapabilityGate(t *testing.T) {
	d := New(Options{})
	fa := newFakeAdapter("test") // text only
	if err := d.RegisterAdapter(fa); err != nil {
		t.Fatalf("register adapter: %v", err)
	}

	_, err := d.Send(context.Background(), domain.SendParams{
		Provider:  "test",
		ChannelID: "chan-1",
		Content:   content.Image{URL: "https://example.com/a.png"},
	})
	if !boterrors.HasCode(err, boterrors.CodeContentTypeNotSupported) {
		t.Fatalf("Send error = %v, want CONTENT_TYPE_NOT_SUPPORTED", err)
	}
	if len(fa.sent) != 0 {
		t.Error("expected adapter untouched")
	}
}

// TestSendMissingImplementation verifies a declared flag without a backing
// method still fails closed
func TestSendMissingImplementation(t *testing.T) {
	d := New(Options{})
	if err := d.RegisterAdapter(&bareAdapter{key: "bare"}); err != nil {
		t.Fatalf("register adapter: %v", err)
	}

	_, err := d.Send(context.Background(), domain.SendParams{
		Provider:  "bare",
		ChannelID: "chan-1",
		Content:   content.Text{Text: "hi"},
	})
	if !boterrors.HasCode(err, boterrors.CodeContentTypeNotSupported) {
		t.Fatalf("Send error = %v, want CONTENT_TYPE_NOT_SUPPORTED", err)
	}
}

// TestSendReplyUnwrap verifies reply wrapping becomes a single send carrying
// the target message id
func TestSendReplyUnwrap(t *testing.T) {
	d := New(Options{})
	fa := newFakeAdapter("test")
	if err := d.RegisterAdapter(fa); err != nil {
		t.Fatalf("register adapter: %v", err)
	}

	_, err := d.Send(context.Background(), domain.SendParams{
		Provider:  "test",
		ChannelID: "chan-1",
		Content: content.Reply{
			ToMessageID: "msg-42",
			Content:     content.Text{Text: "replying"},
		},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(fa.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(fa.sent))
	}
	if fa.sent[0].opts.ReplyToMessageID != "msg-42" {
		t.Errorf("ReplyToMessageID = %q, want msg-42", fa.sent[0].opts.ReplyToMessageID)
	}
	if fa.sent[0].text != "replying" {
		t.Errorf("text = %q, want replying", fa.sent[0].text)
	}
}

// TestSendDocumentWithoutPayload verifies metadata-only documents are
// rejected as invalid content
func TestSendDocumentWithoutPayload(t *testing.T) {
	d := New(Options{})
	fa := newFakeAdapter("test")
	fa.caps.Content.Document = true
	if err := d.RegisterAdapter(fa); err != nil {
		t.Fatalf("register adapter: %v", err)
	}

	_, err := d.Send(context.Background(), domain.SendParams{
		Provider:  "test",
		ChannelID: "chan-1",
		Content:   content.Document{FileName: "ghost.pdf"},
	})
	if !boterrors.HasCode(err, boterrors.CodeInvalidContent) {
		t.Fatalf("Send error = %v, want INVALID_CONTENT", err)
	}
}

// TestSendInboundOnlyContent verifies callback and command content cannot go
// outbound
func TestSendInboundOnlyContent(t *testing.T) {
	d := New(Options{})
	fa := newFakeAdapter("test")
	if err := d.RegisterAdapter(fa); err != nil {
		t.Fatalf("register adapter: %v", err)
	}

	for _, c := range []content.Content{
		content.Callback{Data: "press"},
		content.Command{Token: "start"},
	} {
		_, err := d.Send(context.Background(), domain.SendParams{
			Provider: "test", ChannelID: "chan-1", Content: c,
		})
		if !boterrors.HasCode(err, boterrors.CodeContentTypeNotSupported) {
			t.Errorf("Send(%s) error = %v, want CONTENT_TYPE_NOT_SUPPORTED", c.Kind(), err)
		}
	}
}

// --- Sessions ---

// TestSessionHydrationAndPersistence verifies a stored session is visible in
// the handler and survives Update/Save
func TestSessionHydrationAndPersistence(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()

	seeded := session.New("u1", "chan-1")
	seeded.Data["step"] = "confirm"
	if err := store.Set(ctx, "u1", "chan-1", seeded); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	d := New(Options{Store: store, SessionTTL: time.Hour})
	fa := newFakeAdapter("test")
	fa.event = textEvent("test", "u1", "/next")
	if err := d.RegisterAdapter(fa); err != nil {
		t.Fatalf("register adapter: %v", err)
	}

	var seenStep any
	d.RegisterCommand(&command.Command{
		Name: "next",
		Handle: func(ctx context.Context, c *domain.Context, params []string) error {
			seenStep = c.Session.Data()["step"]
			c.Session.Update(map[string]any{"step": "done"})
			return c.Session.Save(ctx)
		},
	})

	if _, err := d.Handle(ctx, "test", emptyRequest()); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if seenStep != "confirm" {
		t.Errorf("handler saw step = %v, want confirm", seenStep)
	}

	persisted, err := store.Get(ctx, "u1", "chan-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if persisted == nil || persisted.Data["step"] != "done" {
		t.Errorf("persisted = %+v, want step=done", persisted)
	}
	if persisted.ExpiresAt == nil {
		t.Error("expected TTL to set ExpiresAt on update")
	}
}

// --- Start ---

// TestStartSyncsCommands verifies Init receives the registered command list
// and a usable bot handle
func TestStartSyncsCommands(t *testing.T) {
	d := New(Options{})
	fa := newFakeAdapter("test")
	if err := d.RegisterAdapter(fa); err != nil {
		t.Fatalf("register adapter: %v", err)
	}
	d.RegisterCommand(&command.Command{
		Name:        "ping",
		Description: "liveness",
		Handle:      func(ctx context.Context, c *domain.Context, params []string) error { return nil },
	})

	var observed []string
	d.Observe(func(ev events.Event) { observed = append(observed, ev.Type) })

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if fa.initCfg == nil {
		t.Fatal("expected Init to be called")
	}
	if len(fa.initCfg.Commands) != 1 || fa.initCfg.Commands[0].Name != "ping" {
		t.Errorf("init commands = %+v, want [ping]", fa.initCfg.Commands)
	}
	if fa.initCfg.Bot == nil {
		t.Fatal("expected a bot handle")
	}

	if _, err := fa.initCfg.Bot.Send(context.Background(), "test", "chan-1", content.Text{Text: "up"}, content.SendOptions{}); err != nil {
		t.Fatalf("bot handle send: %v", err)
	}
	if len(fa.sent) != 1 || fa.sent[0].text != "up" {
		t.Errorf("sent = %+v, want the startup message", fa.sent)
	}

	found := false
	for _, typ := range observed {
		if typ == events.BotStarted {
			found = true
		}
	}
	if !found {
		t.Errorf("observed %v, want a %s event", observed, events.BotStarted)
	}
}

// TestStopEmitsBotStopped verifies shutdown is announced to observers
func TestStopEmitsBotStopped(t *testing.T) {
	d := New(Options{})
	var observed []string
	d.Observe(func(ev events.Event) { observed = append(observed, ev.Type) })

	d.Stop()
	if len(observed) != 1 || observed[0] != events.BotStopped {
		t.Errorf("observed %v, want [%s]", observed, events.BotStopped)
	}
}

// TestEmitForwardsToObservers verifies externally produced events (such as
// session sweeps) share the dispatch observer fan-out
func TestEmitForwardsToObservers(t *testing.T) {
	d := New(Options{})
	var got events.Event
	d.Observe(func(ev events.Event) { got = ev })

	d.Emit(events.New(events.SessionSwept, "scheduler", events.SweepData{Removed: 3}))
	if got.Type != events.SessionSwept {
		t.Fatalf("observed type = %q, want %s", got.Type, events.SessionSwept)
	}
	data, ok := got.Data.(events.SweepData)
	if !ok || data.Removed != 3 {
		t.Errorf("data = %+v, want SweepData{Removed: 3}", got.Data)
	}
}

// TestPreviewKeepsRuneBoundaries verifies truncation never splits a multibyte
// rune
func TestPreviewKeepsRuneBoundaries(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"short ascii", "hello"},
		{"long ascii", strings.Repeat("a", 200)},
		{"multibyte at the cut", strings.Repeat("a", 79) + "日本語テキスト"},
		{"all multibyte", strings.Repeat("日", 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preview(tt.in)
			if !utf8.ValidString(got) {
				t.Errorf("preview(%q) = %q, not valid UTF-8", tt.in, got)
			}
			if len(got) > 80 {
				t.Errorf("preview length = %d, want <= 80", len(got))
			}
			if !strings.HasPrefix(tt.in, got) {
				t.Errorf("preview %q is not a prefix of the input", got)
			}
		})
	}
}
