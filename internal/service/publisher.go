// Package service holds the background collaborators of the booking guard:
// the RabbitMQ event publisher and the schedule provisioner.
package service

import (
    "context"
    "encoding/json"
    "log/slog"
    "net"
    "sync"
    "time"

    "github.com/cockroachdb/errors"
    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/zxswv/npg/internal/queue"
)

const (
    defaultBuffer      = 1024
    defaultSendTimeout = 3 * time.Second
    drainTimeout       = 5 * time.Second
)

// ErrPublisherFull is returned when the outgoing event buffer is full.  The
// event is dropped.
var ErrPublisherFull = errors.New("reservation event buffer full")

// Publisher publishes reservation events to a durable RabbitMQ queue.
// PublishReservationEvent only enqueues; Run owns the broker connection and
// sends events in order.  Dials and publishes are bounded by sendTimeout so
// an unresponsive broker delays the queue, never the caller.
type Publisher struct {
    url         string
    queue       string
    sendTimeout time.Duration
    logger      *slog.Logger
    events      chan queue.ReservationEvent

    mu   sync.Mutex
    conn *amqp.Connection
    ch   *amqp.Channel
}

// NewPublisher returns a Publisher for queueName on the broker at url.
func NewPublisher(url, queueName string, logger *slog.Logger) *Publisher {
    if logger == nil {
        logger = slog.Default()
    }
    return &Publisher{
        url:         url,
        queue:       queueName,
        sendTimeout: defaultSendTimeout,
        logger:      logger,
        events:      make(chan queue.ReservationEvent, defaultBuffer),
    }
}

// PublishReservationEvent queues ev for delivery and returns immediately.
func (p *Publisher) PublishReservationEvent(ctx context.Context, ev queue.ReservationEvent) error {
    select {
    case p.events <- ev:
        return nil
    default:
        return errors.Wrapf(ErrPublisherFull, "drop %s %s", ev.Type, ev.ReservationID)
    }
}

// Run sends queued events until ctx is done, then flushes what is still
// buffered for at most drainTimeout and closes the connection.
func (p *Publisher) Run(ctx context.Context) error {
    defer p.Close()
    for {
        select {
        case ev := <-p.events:
            p.deliver(ctx, ev)
        case <-ctx.Done():
            p.drain()
            return nil
        }
    }
}

func (p *Publisher) drain() {
    ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
    defer cancel()
    for {
        select {
        case ev := <-p.events:
            p.deliver(ctx, ev)
        default:
            return
        }
    }
}

func (p *Publisher) deliver(ctx context.Context, ev queue.ReservationEvent) {
    sctx, cancel := context.WithTimeout(ctx, p.sendTimeout)
    defer cancel()
    if err := p.send(sctx, ev); err != nil {
        p.logger.Warn("reservation event publish failed",
            slog.String("reservation_id", ev.ReservationID),
            slog.String("type", ev.Type),
            slog.String("error", err.Error()))
    }
}

// dial opens a connection whose TCP connect and AMQP handshake both end at
// ctx's deadline.
func (p *Publisher) dial(ctx context.Context) (*amqp.Connection, error) {
    return amqp.DialConfig(p.url, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial: func(network, addr string) (net.Conn, error) {
            var d net.Dialer
            conn, err := d.DialContext(ctx, network, addr)
            if err != nil {
                return nil, err
            }
            deadline, ok := ctx.Deadline()
            if !ok {
                deadline = time.Now().Add(p.sendTimeout)
            }
            // cleared by the client once the handshake completes
            if err := conn.SetDeadline(deadline); err != nil {
                _ = conn.Close()
                return nil, err
            }
            return conn, nil
        },
    })
}

// channel returns an open channel, dialling and declaring the queue when
// needed.  p.mu is not held while dialling.
func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
    p.mu.Lock()
    if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
        ch := p.ch
        p.mu.Unlock()
        return ch, nil
    }
    p.closeLocked()
    p.mu.Unlock()

    conn, err := p.dial(ctx)
    if err != nil {
        return nil, errors.Wrap(err, "rabbitmq dial")
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, errors.Wrap(err, "rabbitmq channel open")
    }
    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        p.queue, // name
        true,    // durable
        false,   // autoDelete
        false,   // exclusive
        false,   // noWait
        nil,     // args
    ); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, errors.Wrap(err, "rabbitmq queue declare")
    }

    p.mu.Lock()
    defer p.mu.Unlock()
    p.closeLocked()
    p.conn, p.ch = conn, ch
    return ch, nil
}

// send publishes ev as a persistent JSON message routed to the events queue
// through the default exchange.
func (p *Publisher) send(ctx context.Context, ev queue.ReservationEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        return errors.Wrap(err, "marshal reservation event")
    }
    ch, err := p.channel(ctx)
    if err != nil {
        return err
    }
    if err := ch.PublishWithContext(ctx,
        "",      // default exchange
        p.queue, // routing key = queue name
        false,   // mandatory
        false,   // immediate
        amqp.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp.Persistent, // store on disk
            Timestamp:    time.Now().UTC(),
            Type:         ev.Type,
            MessageId:    ev.ReservationID,
            Body:         body,
        },
    ); err != nil {
        _ = p.Close()
        return errors.Wrap(err, "rabbitmq publish")
    }
    return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.closeLocked()
    return nil
}

func (p *Publisher) closeLocked() {
    if p.ch != nil {
        _ = p.ch.Close()
        p.ch = nil
    }
    if p.conn != nil {
        _ = p.conn.Close()
        p.conn = nil
    }
}
