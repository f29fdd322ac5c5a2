// Package relay publishes dispatch events to an AMQP topic exchange so
// external consumers (analytics, moderation, audit) can follow the bot's
// activity without touching the dispatch path.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hermodbot/hermod/pkg/events"
	"github.com/hermodbot/hermod/pkg/logger"
)

const publishTimeout = 5 * time.Second

// confirmation is the broker acknowledgement for one published message.
type confirmation interface {
	Done() <-chan struct{}
	Acked() bool
}

// publishChannel is the slice of *amqp.Channel the relay publishes through.
type publishChannel interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (confirmation, error)
	Close() error
}

// amqpChannel adapts *amqp.Channel to publishChannel.
type amqpChannel struct{ ch *amqp.Channel }

func (c amqpChannel) PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (confirmation, error) {
	conf, err := c.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, mandatory, immediate, msg)
	if err != nil {
		return nil, err
	}
	return conf, nil
}

func (c amqpChannel) Close() error { return c.ch.Close() }

// Relay is an AMQP event publisher. Events are routed by their type
// ("message.inbound", "command.dispatched", ...) on a durable topic exchange.
// The channel runs in confirm mode; a publish only counts as delivered once
// the broker acks it.
type Relay struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  publishChannel
	exchange string
	queue    chan events.Event
	done     chan struct{}
}

// Dial connects to the broker and declares the exchange.
func Dial(url, exchange string) (*Relay, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("relay dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("relay channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("relay declare exchange %s: %w", exchange, err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("relay confirm mode: %w", err)
	}

	r := &Relay{
		conn:     conn,
		channel:  amqpChannel{ch: ch},
		exchange: exchange,
		queue:    make(chan events.Event, 256),
		done:     make(chan struct{}),
	}
	go r.pump()
	return r, nil
}

// Publish queues an event for delivery. It never blocks the dispatch path;
// when the buffer is full the event is dropped with a warning.
func (r *Relay) Publish(ev events.Event) {
	select {
	case r.queue <- ev:
	default:
		logger.WarnCF("relay", "Event buffer full, dropping", map[string]any{
			"type": ev.Type,
			"id":   ev.ID,
		})
	}
}

func (r *Relay) pump() {
	for {
		select {
		case <-r.done:
			return
		case ev := <-r.queue:
			if err := r.publish(ev); err != nil {
				logger.ErrorCF("relay", "Publish failed", map[string]any{
					"type":  ev.Type,
					"id":    ev.ID,
					"error": err.Error(),
				})
			}
		}
	}
}

func (r *Relay) publish(ev events.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	r.mu.Lock()
	conf, err := r.channel.PublishWithDeferredConfirmWithContext(ctx,
		r.exchange,
		ev.Type, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ID,
			Timestamp:    ev.Timestamp,
			Body:         body,
		},
	)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish event %s: %w", ev.ID, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("confirm event %s: %w", ev.ID, ctx.Err())
	case <-conf.Done():
		if !conf.Acked() {
			return fmt.Errorf("broker nacked event %s", ev.ID)
		}
	}
	return nil
}

// Close stops the pump and tears down the AMQP connection.
func (r *Relay) Close() error {
	close(r.done)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.channel.Close(); err != nil {
		r.conn.Close()
		return err
	}
	return r.conn.Close()
}
