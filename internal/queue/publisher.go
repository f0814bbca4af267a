package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/cruise-services/internal/logger"
)

// ErrPublisherFull is returned when the outgoing buffer is saturated,
// typically because the broker has been unreachable for a while.
var ErrPublisherFull = errors.New("event buffer full")

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// Nop discards events.  Used when EVENTS_ENABLED is off.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// ErrDrainTimeout is returned by Close when buffered events were still
// pending at the drain deadline.
var ErrDrainTimeout = errors.New("event drain timed out")

// drainTimeout bounds how long Close waits for the buffer to empty.
const drainTimeout = 5 * time.Second

// Publisher sends events to the topic exchange from a background
// goroutine, so request handlers never wait on the broker.  It keeps a
// single connection and redials lazily after a failure.  Once closed it
// stops redialing after the first failure and drops what is left.
type Publisher struct {
	url  string
	log  *logger.Logger
	buf  chan Event
	done chan struct{}
	dial func(url string) (*amqp.Connection, error)

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool

	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher starts the sender goroutine.
func NewPublisher(url string, log *logger.Logger) *Publisher {
	return newPublisher(url, log, func(url string) (*amqp.Connection, error) {
		return amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(2 * time.Second)})
	})
}

func newPublisher(url string, log *logger.Logger, dial func(string) (*amqp.Connection, error)) *Publisher {
	p := &Publisher{
		url:  url,
		log:  log,
		buf:  make(chan Event, 256),
		done: make(chan struct{}),
		dial: dial,
	}
	go p.run()
	return p
}

// Publish enqueues ev.  It never blocks.
func (p *Publisher) Publish(_ context.Context, ev Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.buf <- ev:
		return nil
	default:
		return ErrPublisherFull
	}
}

// Close drains the buffer and closes the connection.  It waits at most
// drainTimeout.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.buf)
		p.mu.Unlock()
	})
	t := time.NewTimer(drainTimeout)
	defer t.Stop()
	select {
	case <-p.done:
		return nil
	case <-t.C:
		return ErrDrainTimeout
	}
}

func (p *Publisher) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

func (p *Publisher) run() {
	defer close(p.done)
	defer p.reset()
	giveUp, dropped := false, 0
	for ev := range p.buf {
		if giveUp {
			dropped++
			continue
		}
		if err := p.send(ev); err != nil {
			p.log.Warn("events", "publish %s %s failed: %v", ev.Type, ev.Reference, err)
			p.reset()
			// broker down during shutdown: one dial per event would stall exit
			giveUp = p.isClosed()
		}
	}
	if dropped > 0 {
		p.log.Warn("events", "dropped %d buffered events on shutdown", dropped)
	}
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := p.dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if err := declareExchange(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) send(ev Event) error {
	ch, err := p.channel()
	if err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ch.PublishWithContext(ctx,
		ExchangeName, // exchange
		ev.Type,      // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // store on disk
			MessageId:    ev.ID,
			Timestamp:    time.Now().UTC(),
			Type:         ev.Type,
			Body:         body,
		})
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// declareExchange is idempotent.  Durable so bindings survive broker restarts.
func declareExchange(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		ExchangeName, // name
		"topic",      // kind
		true,         // durable
		false,        // autoDelete
		false,        // internal
		false,        // noWait
		nil,          // args
	); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	return nil
}
