package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/cockroachdb/errors"

    "github.com/zxswv/npg/internal/model"
)

// ScheduleRepo encapsulates database operations for schedules and their
// slots.  Dates are stored as DATE and slot times as UTC DATETIME.
type ScheduleRepo struct {
    db *sql.DB
}

// NewScheduleRepo constructs a ScheduleRepo given a DB handle.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo {
    return &ScheduleRepo{db: db}
}

func dateArg(d time.Time) string { return d.UTC().Format(model.DateLayout) }

// GetByDateTx returns the schedule of date without its slots, or
// ErrScheduleNotFound.
func (r *ScheduleRepo) GetByDateTx(ctx context.Context, tx *sql.Tx, date time.Time) (*model.Schedule, error) {
    const q = `SELECT id, date, created_at FROM schedules WHERE date = ?`
    var s model.Schedule
    err := tx.QueryRowContext(ctx, q, dateArg(date)).Scan(&s.ID, &s.Date, &s.CreatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrScheduleNotFound
    }
    if err != nil {
        return nil, err
    }
    return &s, nil
}

// GetByDate returns the schedule of date with its slots ordered by start
// time, or ErrScheduleNotFound.
func (r *ScheduleRepo) GetByDate(ctx context.Context, date time.Time) (*model.Schedule, error) {
    const q = `SELECT id, date, created_at FROM schedules WHERE date = ?`
    var s model.Schedule
    err := r.db.QueryRowContext(ctx, q, dateArg(date)).Scan(&s.ID, &s.Date, &s.CreatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrScheduleNotFound
    }
    if err != nil {
        return nil, err
    }
    slots, err := r.listSlots(ctx, r.db, s.ID)
    if err != nil {
        return nil, err
    }
    s.Slots = slots
    return &s, nil
}

type queryer interface {
    QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *ScheduleRepo) listSlots(ctx context.Context, q queryer, scheduleID uint64) ([]model.Slot, error) {
    rows, err := q.QueryContext(ctx,
        `SELECT id, schedule_id, start_time, end_time FROM slots WHERE schedule_id = ? ORDER BY start_time`, scheduleID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    slots := []model.Slot{}
    for rows.Next() {
        var sl model.Slot
        if err := rows.Scan(&sl.ID, &sl.ScheduleID, &sl.StartTime, &sl.EndTime); err != nil {
            return nil, err
        }
        slots = append(slots, sl)
    }
    return slots, rows.Err()
}

// FindSlotTx returns the slot of a schedule starting at start, or
// ErrSlotNotFound.
func (r *ScheduleRepo) FindSlotTx(ctx context.Context, tx *sql.Tx, scheduleID uint64, start time.Time) (*model.Slot, error) {
    const q = `SELECT id, schedule_id, start_time, end_time FROM slots WHERE schedule_id = ? AND start_time = ?`
    var sl model.Slot
    err := tx.QueryRowContext(ctx, q, scheduleID, start.UTC()).Scan(&sl.ID, &sl.ScheduleID, &sl.StartTime, &sl.EndTime)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrSlotNotFound
    }
    if err != nil {
        return nil, err
    }
    return &sl, nil
}

// LockSlotsTx takes exclusive row locks on the given slots for the rest of
// the transaction.  Rows are locked in id order.  Every requested slot must
// exist.
func (r *ScheduleRepo) LockSlotsTx(ctx context.Context, tx *sql.Tx, ids []uint64) error {
    if len(ids) == 0 {
        return nil
    }
    query := `SELECT id FROM slots WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `) ORDER BY id FOR UPDATE`
    args := make([]interface{}, len(ids))
    for i, id := range ids {
        args[i] = id
    }
    rows, err := tx.QueryContext(ctx, query, args...)
    if err != nil {
        return err
    }
    defer rows.Close()
    n := 0
    for rows.Next() {
        n++
    }
    if err := rows.Err(); err != nil {
        return err
    }
    if n != len(ids) {
        return ErrSlotNotFound
    }
    return nil
}

// EnsureWithSlots creates the schedule of date and the given slots when
// they are missing.  It is safe to call concurrently and repeatedly: the
// unique date and (schedule, start) keys absorb duplicates.  created reports
// whether this call inserted the schedule row.
func (r *ScheduleRepo) EnsureWithSlots(ctx context.Context, date time.Time, slots []model.Slot) (sched *model.Schedule, created bool, err error) {
    err = WithTx(ctx, r.db, func(tx *sql.Tx) error {
        created = false
        res, err := tx.ExecContext(ctx,
            `INSERT INTO schedules (date) VALUES (?) ON DUPLICATE KEY UPDATE id = id`, dateArg(date))
        if err != nil {
            return err
        }
        if n, err := res.RowsAffected(); err == nil && n == 1 {
            created = true
        }
        s, err := r.GetByDateTx(ctx, tx, date)
        if err != nil {
            return err
        }
        if len(slots) > 0 {
            query := `INSERT INTO slots (schedule_id, start_time, end_time) VALUES `
            args := make([]interface{}, 0, len(slots)*3)
            for i, sl := range slots {
                if i > 0 {
                    query += ","
                }
                query += "(?, ?, ?)"
                args = append(args, s.ID, sl.StartTime.UTC(), sl.EndTime.UTC())
            }
            query += ` ON DUPLICATE KEY UPDATE end_time = end_time`
            if _, err := tx.ExecContext(ctx, query, args...); err != nil {
                return err
            }
        }
        if s.Slots, err = r.listSlots(ctx, tx, s.ID); err != nil {
            return err
        }
        sched = s
        return nil
    })
    if err != nil {
        return nil, false, errors.Wrapf(err, "ensure schedule %s", dateArg(date))
    }
    return sched, created, nil
}

// ListSlotAvailability returns the slots of date with the number of active
// reservations on each, or ErrScheduleNotFound.
func (r *ScheduleRepo) ListSlotAvailability(ctx context.Context, date time.Time) ([]model.SlotAvailability, error) {
    const q = `SELECT sl.id, sl.schedule_id, sl.start_time, sl.end_time, COUNT(rv.id)
               FROM schedules s
               JOIN slots sl ON sl.schedule_id = s.id
               LEFT JOIN reservations rv ON rv.slot_id = sl.id AND rv.status IN ('PENDING','APPROVED')
               WHERE s.date = ?
               GROUP BY sl.id, sl.schedule_id, sl.start_time, sl.end_time
               ORDER BY sl.start_time`
    rows, err := r.db.QueryContext(ctx, q, dateArg(date))
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.SlotAvailability{}
    for rows.Next() {
        var a model.SlotAvailability
        if err := rows.Scan(&a.ID, &a.ScheduleID, &a.StartTime, &a.EndTime, &a.ReservedCount); err != nil {
            return nil, err
        }
        out = append(out, a)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if len(out) == 0 {
        return nil, ErrScheduleNotFound
    }
    return out, nil
}
