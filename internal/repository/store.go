package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/cockroachdb/errors"

    "github.com/zxswv/npg/internal/booking"
    "github.com/zxswv/npg/internal/model"
)

// Store adapts the repositories to booking.Store.
type Store struct {
    db           *sql.DB
    rooms        *RoomRepo
    schedules    *ScheduleRepo
    reservations *ReservationRepo
}

var _ booking.Store = (*Store)(nil)

// NewStore bundles the repositories sharing db.
func NewStore(db *sql.DB, rooms *RoomRepo, schedules *ScheduleRepo, reservations *ReservationRepo) *Store {
    return &Store{db: db, rooms: rooms, schedules: schedules, reservations: reservations}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
    return WithTx(ctx, s.db, func(tx *sql.Tx) error {
        return fn(ctx, &txStore{s: s, tx: tx})
    })
}

func (s *Store) GetReservation(ctx context.Context, id string) (*model.ReservationDetail, error) {
    det, err := s.reservations.GetByID(ctx, id)
    if errors.Is(err, ErrReservationNotFound) {
        return nil, nil
    }
    return det, err
}

func (s *Store) ListReservations(ctx context.Context, f model.ReservationFilter) ([]model.ReservationDetail, error) {
    return s.reservations.List(ctx, f)
}

// txStore is the booking.Tx view of one *sql.Tx.  Repository not-found
// sentinels become (nil, nil) and key violations become booking errors.
type txStore struct {
    s  *Store
    tx *sql.Tx
}

func (t *txStore) RoomExists(ctx context.Context, roomID uint64) (bool, error) {
    return t.s.rooms.ExistsTx(ctx, t.tx, roomID)
}

func (t *txStore) FindSchedule(ctx context.Context, date time.Time) (*model.Schedule, error) {
    sched, err := t.s.schedules.GetByDateTx(ctx, t.tx, date)
    if errors.Is(err, ErrScheduleNotFound) {
        return nil, nil
    }
    return sched, err
}

func (t *txStore) FindSlot(ctx context.Context, scheduleID uint64, start time.Time) (*model.Slot, error) {
    slot, err := t.s.schedules.FindSlotTx(ctx, t.tx, scheduleID, start)
    if errors.Is(err, ErrSlotNotFound) {
        return nil, nil
    }
    return slot, err
}

func (t *txStore) LockSlots(ctx context.Context, ids []uint64) error {
    err := t.s.schedules.LockSlotsTx(ctx, t.tx, ids)
    if errors.Is(err, ErrSlotNotFound) {
        return booking.Mark(err, booking.ErrSlotNotFound)
    }
    return err
}

func (t *txStore) HasActiveReservation(ctx context.Context, roomID, slotID uint64) (bool, error) {
    return t.s.reservations.HasActiveTx(ctx, t.tx, roomID, slotID)
}

func (t *txStore) HasApprovedReservation(ctx context.Context, roomID, slotID uint64, excludeID string) (bool, error) {
    return t.s.reservations.HasApprovedExcludingTx(ctx, t.tx, roomID, slotID, excludeID)
}

func (t *txStore) CreateReservations(ctx context.Context, rs []*model.Reservation) error {
    err := t.s.reservations.CreateBulkTx(ctx, t.tx, rs)
    switch {
    case err == nil:
        return nil
    case IsDuplicateKey(err):
        return booking.Mark(err, booking.ErrSlotTaken)
    case IsForeignKeyViolation(err):
        return booking.Mark(err, booking.ErrNotFound)
    }
    return err
}

func (t *txStore) GetReservationForUpdate(ctx context.Context, id string) (*model.Reservation, error) {
    res, err := t.s.reservations.GetForUpdateTx(ctx, t.tx, id)
    if errors.Is(err, ErrReservationNotFound) {
        return nil, nil
    }
    return res, err
}

func (t *txStore) UpdateReservationStatus(ctx context.Context, id string, status model.Status, at time.Time) error {
    err := t.s.reservations.UpdateStatusTx(ctx, t.tx, id, status, at)
    if errors.Is(err, ErrReservationNotFound) {
        return booking.Mark(err, booking.ErrReservationNotFound)
    }
    return err
}

// Reset deletes every reservation, slot, schedule and room.  Used by the
// seed command's -reset flag.
func Reset(ctx context.Context, db *sql.DB) error {
    return WithTx(ctx, db, func(tx *sql.Tx) error {
        for _, table := range []string{"reservations", "slots", "schedules", "rooms"} {
            if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
                return errors.Wrapf(err, "reset %s", table)
            }
        }
        return nil
    })
}
