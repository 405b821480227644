package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/cockroachdb/errors"

    "github.com/zxswv/npg/internal/model"
)

// ReservationRepo provides CRUD operations for reservations.  Rows are
// never deleted in normal flow: rejecting and cancelling change status, and
// the active_flag unique key only constrains PENDING and APPROVED rows.
// All timestamp fields are stored in UTC.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `r.id, r.status, r.room_id, r.slot_id, r.person_name, r.grade, r.class_name,
    r.purpose, r.number_of_users, r.note, r.created_at, r.updated_at`

type scanner interface {
    Scan(dest ...any) error
}

// scanReservation reads reservationColumns followed by any extra columns.
func scanReservation(sc scanner, res *model.Reservation, extra ...any) error {
    var (
        status  string
        purpose sql.NullString
        users   sql.NullInt64
        note    sql.NullString
    )
    dest := []any{
        &res.ID, &status, &res.RoomID, &res.SlotID, &res.PersonName, &res.Grade, &res.ClassName,
        &purpose, &users, &note, &res.CreatedAt, &res.UpdatedAt,
    }
    if err := sc.Scan(append(dest, extra...)...); err != nil {
        return err
    }
    res.Status = model.Status(status)
    res.Purpose, res.NumberOfUsers, res.Note = nil, nil, nil
    if purpose.Valid {
        p := purpose.String
        res.Purpose = &p
    }
    if users.Valid {
        n := uint32(users.Int64)
        res.NumberOfUsers = &n
    }
    if note.Valid {
        n := note.String
        res.Note = &n
    }
    return nil
}

// CreateBulkTx inserts reservations in a single statement within the
// provided transaction.  A row that would give its (room, slot) a second
// active reservation fails the whole statement with MySQL error 1062.
// Passing an empty slice has no effect and returns nil.
func (r *ReservationRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, rs []*model.Reservation) error {
    if len(rs) == 0 {
        return nil
    }
    query := `INSERT INTO reservations (id, status, room_id, slot_id, person_name, grade, class_name,
        purpose, number_of_users, note, created_at, updated_at) VALUES `
    args := make([]interface{}, 0, len(rs)*12)
    for i, res := range rs {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
        args = append(args, res.ID, string(res.Status), res.RoomID, res.SlotID,
            res.PersonName, res.Grade, res.ClassName,
            res.Purpose, res.NumberOfUsers, res.Note,
            res.CreatedAt.UTC(), res.UpdatedAt.UTC())
    }
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}

// HasActiveTx reports whether a PENDING or APPROVED reservation holds
// (roomID, slotID).
func (r *ReservationRepo) HasActiveTx(ctx context.Context, tx *sql.Tx, roomID, slotID uint64) (bool, error) {
    const q = `SELECT EXISTS(SELECT 1 FROM reservations
               WHERE room_id = ? AND slot_id = ? AND status IN ('PENDING','APPROVED'))`
    var ok bool
    if err := tx.QueryRowContext(ctx, q, roomID, slotID).Scan(&ok); err != nil {
        return false, err
    }
    return ok, nil
}

// HasApprovedExcludingTx reports whether a reservation other than excludeID
// is APPROVED for (roomID, slotID).
func (r *ReservationRepo) HasApprovedExcludingTx(ctx context.Context, tx *sql.Tx, roomID, slotID uint64, excludeID string) (bool, error) {
    const q = `SELECT EXISTS(SELECT 1 FROM reservations
               WHERE room_id = ? AND slot_id = ? AND status = 'APPROVED' AND id <> ?)`
    var ok bool
    if err := tx.QueryRowContext(ctx, q, roomID, slotID, excludeID).Scan(&ok); err != nil {
        return false, err
    }
    return ok, nil
}

// GetForUpdateTx loads a reservation and locks its row, or returns
// ErrReservationNotFound.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (*model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations r WHERE r.id = ? FOR UPDATE`
    var res model.Reservation
    err := scanReservation(tx.QueryRowContext(ctx, q, id), &res)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrReservationNotFound
    }
    if err != nil {
        return nil, err
    }
    return &res, nil
}

// UpdateStatusTx sets status and updated_at of one reservation.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id string, status model.Status, at time.Time) error {
    const q = `UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`
    res, err := tx.ExecContext(ctx, q, string(status), at.UTC(), id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrReservationNotFound
    }
    return nil
}

const detailQuery = `SELECT ` + reservationColumns + `, rm.number, rm.name, sl.start_time, sl.end_time
               FROM reservations r
               JOIN rooms rm ON rm.id = r.room_id
               JOIN slots sl ON sl.id = r.slot_id`

// GetByID returns a reservation with its room and slot, or
// ErrReservationNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*model.ReservationDetail, error) {
    var det model.ReservationDetail
    err := scanReservation(r.db.QueryRowContext(ctx, detailQuery+` WHERE r.id = ?`, id), &det.Reservation,
        &det.RoomNumber, &det.RoomName, &det.SlotStart, &det.SlotEnd)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrReservationNotFound
    }
    if err != nil {
        return nil, err
    }
    return &det, nil
}

// List returns reservations matching f, newest first.
func (r *ReservationRepo) List(ctx context.Context, f model.ReservationFilter) ([]model.ReservationDetail, error) {
    var (
        where []string
        args  []interface{}
    )
    if f.Status != nil {
        where = append(where, "r.status = ?")
        args = append(args, string(*f.Status))
    }
    if f.RoomID != 0 {
        where = append(where, "r.room_id = ?")
        args = append(args, f.RoomID)
    }
    q := detailQuery
    if f.Date != nil {
        q += ` JOIN schedules s ON s.id = sl.schedule_id`
        where = append(where, "s.date = ?")
        args = append(args, dateArg(*f.Date))
    }
    if len(where) > 0 {
        q += ` WHERE ` + strings.Join(where, " AND ")
    }
    q += ` ORDER BY r.created_at DESC, r.id`
    if f.Limit > 0 {
        q += ` LIMIT ?`
        args = append(args, f.Limit)
    }
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.ReservationDetail{}
    for rows.Next() {
        var det model.ReservationDetail
        if err := scanReservation(rows, &det.Reservation, &det.RoomNumber, &det.RoomName, &det.SlotStart, &det.SlotEnd); err != nil {
            return nil, err
        }
        out = append(out, det)
    }
    return out, rows.Err()
}

// Timeline returns every room ordered by number with its APPROVED
// reservations on date ordered by slot start.  Rooms without bookings are
// included with an empty list.
func (r *ReservationRepo) Timeline(ctx context.Context, date time.Time) ([]model.TimelineRoom, error) {
    roomRows, err := r.db.QueryContext(ctx, `SELECT id, number, name, capacity, created_at FROM rooms ORDER BY number`)
    if err != nil {
        return nil, err
    }
    defer roomRows.Close()
    out := []model.TimelineRoom{}
    index := map[uint64]int{}
    for roomRows.Next() {
        var tr model.TimelineRoom
        if err := roomRows.Scan(&tr.ID, &tr.Number, &tr.Name, &tr.Capacity, &tr.CreatedAt); err != nil {
            return nil, err
        }
        tr.Reservations = []model.TimelineEntry{}
        index[tr.ID] = len(out)
        out = append(out, tr)
    }
    if err := roomRows.Err(); err != nil {
        return nil, err
    }

    const q = `SELECT r.id, r.room_id, r.person_name, r.grade, r.class_name, r.purpose, sl.id, sl.start_time
               FROM reservations r
               JOIN slots sl ON sl.id = r.slot_id
               JOIN schedules s ON s.id = sl.schedule_id
               WHERE s.date = ? AND r.status = 'APPROVED'
               ORDER BY sl.start_time, r.room_id`
    rows, err := r.db.QueryContext(ctx, q, dateArg(date))
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var (
            e       model.TimelineEntry
            roomID  uint64
            purpose sql.NullString
            start   time.Time
        )
        if err := rows.Scan(&e.ID, &roomID, &e.PersonName, &e.Grade, &e.ClassName, &purpose, &e.SlotID, &start); err != nil {
            return nil, err
        }
        if purpose.Valid {
            p := purpose.String
            e.Purpose = &p
        }
        e.StartTime = start.UTC().Format(model.TimeOfDayLayout)
        if i, ok := index[roomID]; ok {
            out[i].Reservations = append(out[i].Reservations, e)
        }
    }
    return out, rows.Err()
}

// Delete removes a reservation row outright.  The service never calls it;
// status changes are the supported way to reject or cancel.
func (r *ReservationRepo) Delete(ctx context.Context, id string) error {
    res, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
    if err != nil {
        return err
    }
    if n, err := res.RowsAffected(); err == nil && n == 0 {
        return ErrReservationNotFound
    }
    return nil
}
