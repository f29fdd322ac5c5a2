// Package dispatch implements the orchestrator at the center of the bot core:
// it owns the adapter map, command registry, middleware chain, hooks,
// listeners, and session store, and drives every inbound request through the
// processing state machine.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/hermodbot/hermod/pkg/adapter"
	"github.com/hermodbot/hermod/pkg/command"
	"github.com/hermodbot/hermod/pkg/content"
	"github.com/hermodbot/hermod/pkg/domain"
	boterrors "github.com/hermodbot/hermod/pkg/errors"
	"github.com/hermodbot/hermod/pkg/events"
	"github.com/hermodbot/hermod/pkg/session"
)

// Hook runs before (pre) or after (post) the processing pipeline.
type Hook func(ctx context.Context, c *domain.Context) error

// Listener consumes an event after the middleware chain has completed.
// Listeners for one event fan out concurrently; a listener error aborts the
// remaining pipeline stages.
type Listener func(ctx context.Context, c *domain.Context) error

// Observer receives a copy of every dispatch event for side channels
// (websocket stream, AMQP relay). Observers must not block.
type Observer func(ev events.Event)

// Options configures a Dispatcher.
type Options struct {
	// Store persists sessions. Defaults to an in-memory store.
	Store session.Store
	// SessionTTL bounds idle session lifetime. Zero disables expiry.
	SessionTTL time.Duration
	Logger     *slog.Logger
}

// Dispatcher is the central orchestrator. Registration methods are safe for
// concurrent use, but bulk reconfiguration belongs in startup: hot
// registration during active processing is supported, not recommended.
type Dispatcher struct {
	mu           sync.RWMutex
	adapters     map[string]adapter.Adapter
	adapterOrder []string
	middlewares  []Middleware
	preHooks     []Hook
	postHooks    []Hook
	listeners    map[adapter.EventKind][]Listener
	observers    []Observer

	registry   *command.Registry
	store      session.Store
	sessionTTL time.Duration
	log        *slog.Logger
}

// New creates a dispatcher.
func New(opts Options) *Dispatcher {
	store := opts.Store
	if store == nil {
		store = session.NewMemoryStore()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		adapters:   make(map[string]adapter.Adapter),
		listeners:  make(map[adapter.EventKind][]Listener),
		registry:   command.NewRegistry(),
		store:      store,
		sessionTTL: opts.SessionTTL,
		log:        log.With(slog.String("component", "dispatch")),
	}
}

// --- Registration ---

// RegisterAdapter adds (or replaces) a platform adapter.
func (d *Dispatcher) RegisterAdapter(a adapter.Adapter) error {
	if a == nil || a.Key() == "" {
		return fmt.Errorf("adapter with empty key")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	key := a.Key()
	if _, exists := d.adapters[key]; !exists {
		d.adapterOrder = append(d.adapterOrder, key)
	}
	d.adapters[key] = a
	return nil
}

// RegisterCommand adds or replaces a command; the whole alias index is
// rebuilt (see command.Registry).
func (d *Dispatcher) RegisterCommand(cmd *command.Command) error {
	return d.registry.Register(cmd)
}

// Use appends a middleware to the chain.
func (d *Dispatcher) Use(mw Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, mw)
}

// OnPreProcess appends a hook that runs before the middleware chain.
func (d *Dispatcher) OnPreProcess(h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.preHooks = append(d.preHooks, h)
}

// OnPostProcess appends a hook that runs after command dispatch completes.
func (d *Dispatcher) OnPostProcess(h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.postHooks = append(d.postHooks, h)
}

// On registers a listener for an event kind ("start", "message", "error").
func (d *Dispatcher) On(kind adapter.EventKind, l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[kind] = append(d.listeners[kind], l)
}

// Observe registers a side-channel observer for dispatch events.
func (d *Dispatcher) Observe(obs Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, obs)
}

// --- Accessors ---

// Adapter returns the adapter registered under key.
func (d *Dispatcher) Adapter(key string) (adapter.Adapter, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.adapters[key]
	return a, ok
}

// AdapterKeys returns the registered adapter keys in registration order.
func (d *Dispatcher) AdapterKeys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.adapterOrder))
	copy(out, d.adapterOrder)
	return out
}

// Commands returns the registered commands in registration order.
func (d *Dispatcher) Commands() []*command.Command {
	return d.registry.All()
}

// Store returns the session store.
func (d *Dispatcher) Store() session.Store { return d.store }

// --- Lifecycle ---

// Start initializes every adapter sequentially, passing the full command list
// and a bot handle for adapter-originated sends.
func (d *Dispatcher) Start(ctx context.Context) error {
	specs := make([]adapter.CommandSpec, 0, d.registry.Count())
	for _, cmd := range d.registry.All() {
		specs = append(specs, adapter.CommandSpec{Name: cmd.Name, Description: cmd.Description})
	}

	cfg := adapter.InitConfig{Commands: specs, Bot: botSender{d: d}}
	for _, key := range d.AdapterKeys() {
		a, _ := d.Adapter(key)
		if err := a.Init(ctx, cfg); err != nil {
			return fmt.Errorf("init adapter %s: %w", key, err)
		}
		d.log.Info("adapter initialized", slog.String("adapter", key))
	}

	d.notify(events.New(events.BotStarted, "dispatch", nil))
	return nil
}

// Stop announces shutdown to observers.
func (d *Dispatcher) Stop() {
	d.notify(events.New(events.BotStopped, "dispatch", nil))
}

// Emit fans an externally produced event (scheduler jobs, maintenance tasks)
// out to the same observers that receive dispatch events.
func (d *Dispatcher) Emit(ev events.Event) { d.notify(ev) }

// --- Inbound handling ---

// Result reports the transport outcome of Handle.
type Result struct {
	// Status is an HTTP-equivalent status: 200 processed, 204 ignored.
	Status  int
	Ignored bool
}

// AdapterError marks a rejection from an adapter's Handle (malformed or
// unauthenticated input). Transports map it to a client error.
type AdapterError struct {
	Provider string
	Err      error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s handle: %v", e.Provider, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Handle runs one raw inbound request through the named adapter and, unless
// the adapter intentionally ignored it, through the full processing pipeline.
//
// Adapter parse/auth failures propagate to the caller unrecovered — the
// enclosing transport decides the status. Command failures never surface
// here; they are recovered inside Process.
func (d *Dispatcher) Handle(ctx context.Context, adapterKey string, req *adapter.Request) (*Result, error) {
	a, ok := d.Adapter(adapterKey)
	if !ok {
		return nil, boterrors.Newf(boterrors.CodeProviderNotFound, "no adapter registered for %q", adapterKey).
			With("provider", adapterKey)
	}

	ev, err := a.Handle(ctx, req)
	if err != nil {
		return nil, &AdapterError{Provider: adapterKey, Err: err}
	}
	if ev == nil {
		// Valid but intentionally ignored. The reserved code is informational.
		d.log.Debug("inbound ignored by adapter",
			slog.String("adapter", adapterKey),
			slog.String("code", string(boterrors.CodeAdapterHandleReturnedNil)),
		)
		d.notify(events.New(events.MessageIgnored, adapterKey, events.MessageData{Provider: adapterKey}))
		return &Result{Status: 204, Ignored: true}, nil
	}
	if ev.Provider == "" {
		ev.Provider = adapterKey
	}

	d.notify(events.New(events.MessageInbound, adapterKey, messageData(ev)))

	c := d.buildContext(ctx, a, ev)
	if err := d.Process(ctx, c); err != nil {
		return nil, err
	}
	return &Result{Status: 200}, nil
}

// Process drives an already-enriched context through pre-hooks, the
// middleware chain, listener fan-out, command dispatch, and post-hooks.
func (d *Dispatcher) Process(ctx context.Context, c *domain.Context) error {
	d.mu.RLock()
	preHooks := append([]Hook(nil), d.preHooks...)
	postHooks := append([]Hook(nil), d.postHooks...)
	middlewares := append([]Middleware(nil), d.middlewares...)
	listeners := append([]Listener(nil), d.listeners[c.Event]...)
	d.mu.RUnlock()

	for _, h := range preHooks {
		if err := h(ctx, c); err != nil {
			d.notifyError(c.Provider, err)
			return fmt.Errorf("pre-process hook: %w", err)
		}
	}

	if err := runChain(middlewares, c); err != nil {
		d.notifyError(c.Provider, err)
		return fmt.Errorf("middleware chain: %w", err)
	}

	// Listeners fan out concurrently and must all settle before command
	// dispatch. The first listener error aborts later stages.
	if len(listeners) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for _, l := range listeners {
			g.Go(func() error { return l(gctx, c) })
		}
		if err := g.Wait(); err != nil {
			d.notifyError(c.Provider, err)
			return fmt.Errorf("event listener: %w", err)
		}
	}

	if c.Event == adapter.EventMessage && c.Message != nil {
		if cc, ok := c.Message.Content.(content.Command); ok {
			d.dispatchCommand(ctx, c, cc)
		}
	}

	for _, h := range postHooks {
		if err := h(ctx, c); err != nil {
			d.notifyError(c.Provider, err)
			return fmt.Errorf("post-process hook: %w", err)
		}
	}
	return nil
}

// dispatchCommand resolves and executes a command. Failures are always
// recovered locally: the command's help text goes back to the channel and an
// error event fires; the caller always sees a normal completion.
func (d *Dispatcher) dispatchCommand(ctx context.Context, c *domain.Context, cc content.Command) {
	cmd, ok := d.registry.Resolve(cc.Token)
	if !ok {
		derr := boterrors.Newf(boterrors.CodeCommandNotFound, "no command for token %q", cc.Token).
			With("token", cc.Token)
		d.log.Warn("command not found",
			slog.String("token", cc.Token),
			slog.String("provider", c.Provider),
		)
		d.notify(events.New(events.CommandUnknown, c.Provider, events.CommandData{
			Provider: c.Provider, Token: cc.Token, Params: cc.Params,
		}))
		d.emitError(ctx, c, derr)
		return
	}

	err := func() error {
		if cmd.Validate != nil {
			if verr := cmd.Validate(cc.Params); verr != nil {
				return verr
			}
		}
		return cmd.Handle(ctx, c, cc.Params)
	}()
	if err != nil {
		d.log.Warn("command failed",
			slog.String("command", cmd.Name),
			slog.String("provider", c.Provider),
			slog.Any("error", err),
		)
		if cmd.Help != "" && c.Reply != nil {
			if _, rerr := c.Reply(ctx, cmd.Help); rerr != nil {
				d.log.Warn("failed to send command help", slog.Any("error", rerr))
			}
		}
		derr := boterrors.Wrap(boterrors.CodeInvalidCommandParameters,
			fmt.Sprintf("command %q failed", cmd.Name), err).With("command", cmd.Name)
		d.notify(events.New(events.CommandFailed, c.Provider, events.CommandData{
			Provider: c.Provider, Name: cmd.Name, Token: cc.Token, Params: cc.Params,
		}))
		d.emitError(ctx, c, derr)
		return
	}

	d.notify(events.New(events.CommandDispatched, c.Provider, events.CommandData{
		Provider: c.Provider, Name: cmd.Name, Token: cc.Token, Params: cc.Params,
	}))
}

// emitError fires the "error" event listeners with the failure merged into
// the context. Listener errors here are logged, never propagated — error
// events are strictly non-fatal.
func (d *Dispatcher) emitError(ctx context.Context, c *domain.Context, derr *boterrors.Error) {
	d.mu.RLock()
	errorListeners := append([]Listener(nil), d.listeners[adapter.EventError]...)
	d.mu.RUnlock()
	if len(errorListeners) == 0 {
		return
	}

	c.Merge(domain.Extra{"error": derr})
	for _, l := range errorListeners {
		if err := l(ctx, c); err != nil {
			d.log.Warn("error listener failed", slog.Any("error", err))
		}
	}
}

// notify fans a dispatch event out to observers.
func (d *Dispatcher) notify(ev events.Event) {
	d.mu.RLock()
	observers := append([]Observer(nil), d.observers...)
	d.mu.RUnlock()
	for _, obs := range observers {
		obs(ev)
	}
}

func (d *Dispatcher) notifyError(source string, err error) {
	data := events.ErrorData{Message: err.Error()}
	if code, ok := boterrors.CodeOf(err); ok {
		data.Code = string(code)
	}
	d.notify(events.New(events.DispatchError, source, data))
}

func messageData(ev *adapter.Event) events.MessageData {
	data := events.MessageData{Provider: ev.Provider, ChannelID: ev.Channel.ID}
	if ev.Message != nil {
		data.MessageID = ev.Message.ID
		data.AuthorID = ev.Message.Author.ID
		if t, ok := ev.Message.Content.(content.Text); ok {
			data.Preview = preview(t.Text)
		}
	}
	return data
}

// preview truncates on a rune boundary so event payloads stay valid UTF-8.
func preview(s string) string {
	const max = 80
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// botSender adapts the dispatcher to the adapter-facing Sender interface.
type botSender struct{ d *Dispatcher }

func (b botSender) Send(ctx context.Context, provider, channelID string, c content.Content, opts content.SendOptions) (*adapter.SendResult, error) {
	return b.d.Send(ctx, domain.SendParams{Provider: provider, ChannelID: channelID, Content: c, Options: opts})
}
