package service

import (
    "context"
    "log/slog"
    "time"

    "github.com/cockroachdb/errors"

    "github.com/zxswv/npg/internal/config"
    "github.com/zxswv/npg/internal/model"
)

// ScheduleStore persists schedules.  EnsureWithSlots must be idempotent.
type ScheduleStore interface {
    EnsureWithSlots(ctx context.Context, date time.Time, slots []model.Slot) (*model.Schedule, bool, error)
}

// Provisioner is the only writer of schedules and slots.  Reads never
// create them; the admin endpoint, the seed command and Run do.
type Provisioner struct {
    store    ScheduleStore
    times    []string
    duration time.Duration
    days     int
    interval time.Duration
    logger   *slog.Logger
    now      func() time.Time
}

// NewProvisioner lays out slots at cfg.SlotTimes lasting cfg.SlotDuration
// each and, when run as a job, keeps the next cfg.ProvisionDays days
// provisioned every cfg.ProvisionInterval.
func NewProvisioner(store ScheduleStore, cfg config.ScheduleConfig, logger *slog.Logger) *Provisioner {
    times, duration, days, interval := cfg.SlotTimes, cfg.SlotDuration, cfg.ProvisionDays, cfg.ProvisionInterval
    if len(times) == 0 {
        times = model.DefaultSlotTimes
    }
    if duration <= 0 {
        duration = model.DefaultSlotDuration
    }
    if days < 1 {
        days = 1
    }
    if interval <= 0 {
        interval = 6 * time.Hour
    }
    if logger == nil {
        logger = slog.Default()
    }
    return &Provisioner{
        store: store, times: times, duration: duration, days: days, interval: interval,
        logger: logger, now: time.Now,
    }
}

// EnsureSchedule creates the schedule of date and its slots if absent.
// created is false when the schedule already existed.
func (p *Provisioner) EnsureSchedule(ctx context.Context, date time.Time) (*model.Schedule, bool, error) {
    y, m, d := date.Date()
    day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
    slots, err := model.BuildSlots(day, p.times, p.duration)
    if err != nil {
        return nil, false, err
    }
    sched, created, err := p.store.EnsureWithSlots(ctx, day, slots)
    if err != nil {
        return nil, false, err
    }
    if created {
        p.logger.InfoContext(ctx, "schedule provisioned",
            slog.String("date", day.Format(model.DateLayout)),
            slog.Int("slots", len(sched.Slots)))
    }
    return sched, created, nil
}

// EnsureRange provisions days consecutive dates starting at from and
// returns how many schedules were created.
func (p *Provisioner) EnsureRange(ctx context.Context, from time.Time, days int) (int, error) {
    created := 0
    for i := 0; i < days; i++ {
        if err := ctx.Err(); err != nil {
            return created, err
        }
        _, ok, err := p.EnsureSchedule(ctx, from.AddDate(0, 0, i))
        if err != nil {
            return created, errors.Wrapf(err, "provision day %d", i)
        }
        if ok {
            created++
        }
    }
    return created, nil
}

// Run provisions the upcoming window immediately and then every interval
// until ctx is done.  Failures are logged and retried on the next tick.
func (p *Provisioner) Run(ctx context.Context) error {
    ticker := time.NewTicker(p.interval)
    defer ticker.Stop()
    for {
        today := p.now().UTC()
        if n, err := p.EnsureRange(ctx, today, p.days); err != nil {
            if ctx.Err() != nil {
                return nil
            }
            p.logger.ErrorContext(ctx, "schedule provisioning failed", slog.String("error", err.Error()))
        } else {
            p.logger.DebugContext(ctx, "schedule window checked", slog.Int("created", n), slog.Int("days", p.days))
        }
        select {
        case <-ctx.Done():
            return nil
        case <-ticker.C:
        }
    }
}
