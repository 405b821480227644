package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "log/slog"
    "os"
    "path/filepath"
    "time"

    "github.com/cockroachdb/errors"
    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/zxswv/npg/internal/config"
)

const logFileName = "reservations.log"

// StartConsumer connects to RabbitMQ, declares the reservation events queue
// (durable), and starts consuming messages.  Each message is appended to
// <LogDir>/reservations.log as a single line.  The function runs a
// reconnect loop with exponential backoff and returns nil once ctx is done.
// A message that cannot be handled is logged and rejected without requeue
// so the consumer keeps going.
func StartConsumer(ctx context.Context, cfg config.AMQPConfig, logger *slog.Logger) error {
    if logger == nil {
        logger = slog.Default()
    }
    logger = logger.With(slog.String("component", "reservation-consumer"))

    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return nil
        }
        conn, err := amqp.Dial(cfg.URL)
        if err != nil {
            logger.Warn("failed to dial broker", slog.String("error", err.Error()), slog.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return nil
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = consumeLoop(ctx, conn, cfg, logger)
        _ = conn.Close()
        if ctx.Err() != nil {
            return nil
        }
        logger.Warn("consume loop ended, reconnecting", slog.String("error", fmt.Sprint(err)))
        if !sleep(ctx, 2*time.Second) {
            return nil
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, cfg config.AMQPConfig, logger *slog.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return errors.Wrap(err, "channel open")
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        logger.Warn("set QoS failed", slog.String("error", err.Error()))
    }

    if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
        return errors.Wrap(err, "queue declare")
    }

    msgs, err := ch.Consume(cfg.Queue, "", false, false, false, false, nil)
    if err != nil {
        return errors.Wrap(err, "queue consume")
    }

    logger.Info("consuming reservation events", slog.String("queue", cfg.Queue))
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := handleMessage(cfg.LogDir, d.Body); err != nil {
                logger.Error("handle message failed", slog.String("error", err.Error()))
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func handleMessage(dir string, body []byte) error {
    var ev ReservationEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return errors.Wrap(err, "unmarshal")
    }
    if ev.Type == "" || ev.ReservationID == "" {
        return errors.New("event without type or reservation id")
    }
    if dir == "" {
        dir = "logs"
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return errors.Wrapf(err, "mkdir %s", dir)
    }
    f, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return errors.Wrap(err, "open log file")
    }
    defer f.Close()

    if _, err := f.WriteString(formatLine(ev)); err != nil {
        return errors.Wrap(err, "write log")
    }
    return nil
}

// formatLine renders one event as a log line terminated by a newline.
func formatLine(ev ReservationEvent) string {
    switch ev.Type {
    case EventReservationStatusChanged:
        return fmt.Sprintf("[%s] Reservation status changed | reservation_id=%s | %s -> %s | room_id=%d | slot_id=%d | group=%q\n",
            ev.OccurredAt, ev.ReservationID, ev.PreviousStatus, ev.Status, ev.RoomID, ev.SlotID, ev.GroupName)
    default:
        return fmt.Sprintf("[%s] Reservation created | reservation_id=%s | status=%s | room_id=%d | slot_id=%d | person=%q | group=%q\n",
            ev.OccurredAt, ev.ReservationID, ev.Status, ev.RoomID, ev.SlotID, ev.PersonName, ev.GroupName)
    }
}
