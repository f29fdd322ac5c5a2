// Command hermod runs the multi-platform bot dispatch core: webhook gateway,
// platform adapters, command registry, session store, and event relay.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/hermodbot/hermod/pkg/adapter"
	"github.com/hermodbot/hermod/pkg/adapters/console"
	"github.com/hermodbot/hermod/pkg/adapters/discord"
	"github.com/hermodbot/hermod/pkg/adapters/slack"
	"github.com/hermodbot/hermod/pkg/adapters/telegram"
	"github.com/hermodbot/hermod/pkg/command"
	"github.com/hermodbot/hermod/pkg/config"
	"github.com/hermodbot/hermod/pkg/dispatch"
	"github.com/hermodbot/hermod/pkg/domain"
	"github.com/hermodbot/hermod/pkg/events"
	"github.com/hermodbot/hermod/pkg/gateway"
	"github.com/hermodbot/hermod/pkg/logger"
	"github.com/hermodbot/hermod/pkg/relay"
	"github.com/hermodbot/hermod/pkg/scheduler"
	"github.com/hermodbot/hermod/pkg/session"
)

func main() {
	configPath := flag.String("config", "hermod.yaml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "hermod:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.Setup(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	d := dispatch.New(dispatch.Options{
		Store:      store,
		SessionTTL: cfg.Session.TTL,
		Logger:     log,
	})
	registerBuiltins(d)

	consoleAdapter, err := registerAdapters(d, cfg)
	if err != nil {
		return err
	}

	hub := gateway.NewWSHub()
	d.Observe(hub.Publish)

	if cfg.Relay.Enabled {
		r, err := relay.Dial(cfg.Relay.URL, cfg.Relay.Exchange)
		if err != nil {
			return err
		}
		defer r.Close()
		d.Observe(r.Publish)
		logger.InfoC("main", "Event relay attached", "exchange", cfg.Relay.Exchange)
	}

	sched := scheduler.New()
	if cfg.Session.SweepCron != "" {
		if err := sched.Add(scheduler.Job{
			Name: "session-sweep",
			Expr: cfg.Session.SweepCron,
			Run:  sweepJob(d, store),
		}); err != nil {
			return err
		}
	}

	if err := d.Start(ctx); err != nil {
		return err
	}

	server := gateway.NewServer(cfg.Gateway.Addr, d, hub)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx) })
	g.Go(func() error { hub.Run(gctx); return nil })
	g.Go(func() error { sched.Run(gctx); return nil })
	if consoleAdapter != nil {
		g.Go(func() error {
			return consoleAdapter.Run(gctx, func(ctx context.Context, req *adapter.Request) error {
				_, err := d.Handle(ctx, "console", req)
				return err
			})
		})
	}

	logger.InfoC("main", "Hermod running", "adapters", strings.Join(d.AdapterKeys(), ","))
	err = g.Wait()
	d.Stop()
	return err
}

func buildStore(cfg *config.Config) (session.Store, func(), error) {
	switch cfg.Session.Backend {
	case "sqlite":
		s, err := session.NewSQLiteStore(cfg.Session.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "valkey":
		s, err := session.NewValkeyStore(session.ValkeyOptions{
			Address:  cfg.Session.Address,
			Username: cfg.Session.Username,
			Password: cfg.Session.Password,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return session.NewMemoryStore(), func() {}, nil
	}
}

func registerAdapters(d *dispatch.Dispatcher, cfg *config.Config) (*console.Adapter, error) {
	if cfg.Telegram.Token != "" {
		a, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.WebhookSecret)
		if err != nil {
			return nil, err
		}
		if err := d.RegisterAdapter(a); err != nil {
			return nil, err
		}
	}
	if cfg.Discord.Token != "" {
		a, err := discord.New(cfg.Discord.Token)
		if err != nil {
			return nil, err
		}
		if err := d.RegisterAdapter(a); err != nil {
			return nil, err
		}
	}
	if cfg.Slack.BotToken != "" {
		a, err := slack.New(cfg.Slack.BotToken, cfg.Slack.SigningSecret)
		if err != nil {
			return nil, err
		}
		if err := d.RegisterAdapter(a); err != nil {
			return nil, err
		}
	}

	var consoleAdapter *console.Adapter
	if cfg.Console.Enabled {
		consoleAdapter = console.New()
		if err := d.RegisterAdapter(consoleAdapter); err != nil {
			return nil, err
		}
	}

	if len(d.AdapterKeys()) == 0 {
		return nil, fmt.Errorf("no adapters configured")
	}
	return consoleAdapter, nil
}

func registerBuiltins(d *dispatch.Dispatcher) {
	d.RegisterCommand(&command.Command{
		Name:        "ping",
		Description: "Liveness check",
		Help:        "Usage: /ping",
		Handle: func(ctx context.Context, c *domain.Context, params []string) error {
			_, err := c.Reply(ctx, "pong")
			return err
		},
	})
	d.RegisterCommand(&command.Command{
		Name:        "help",
		Aliases:     []string{"h", "commands"},
		Description: "List available commands",
		Help:        "Usage: /help",
		Handle: func(ctx context.Context, c *domain.Context, params []string) error {
			var b strings.Builder
			b.WriteString("Available commands:\n")
			for _, cmd := range d.Commands() {
				fmt.Fprintf(&b, "/%s - %s\n", cmd.Name, cmd.Description)
			}
			_, err := c.Reply(ctx, strings.TrimRight(b.String(), "\n"))
			return err
		},
	})
}

func sweepJob(d *dispatch.Dispatcher, store session.Store) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		var removed int
		switch s := store.(type) {
		case *session.MemoryStore:
			removed = s.Sweep()
		case *session.SQLiteStore:
			n, err := s.Sweep(ctx)
			if err != nil {
				return err
			}
			removed = int(n)
		default:
			// The valkey backend expires keys natively.
			return nil
		}
		if removed > 0 {
			logger.InfoC("main", "Sessions swept", "removed", removed)
		}
		d.Emit(events.New(events.SessionSwept, "scheduler", events.SweepData{Removed: removed}))
		return nil
	}
}
