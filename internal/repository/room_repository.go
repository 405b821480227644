package repository

import (
    "context"
    "database/sql"

    "github.com/cockroachdb/errors"

    "github.com/zxswv/npg/internal/model"
)

// RoomRepo encapsulates database operations for rooms.
type RoomRepo struct {
    db *sql.DB
}

// NewRoomRepo constructs a RoomRepo given a DB handle.
func NewRoomRepo(db *sql.DB) *RoomRepo {
    return &RoomRepo{db: db}
}

// List returns all rooms ordered by room number.
func (r *RoomRepo) List(ctx context.Context) ([]model.Room, error) {
    const q = `SELECT id, number, name, capacity, created_at FROM rooms ORDER BY number`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    rooms := []model.Room{}
    for rows.Next() {
        var rm model.Room
        if err := rows.Scan(&rm.ID, &rm.Number, &rm.Name, &rm.Capacity, &rm.CreatedAt); err != nil {
            return nil, err
        }
        rooms = append(rooms, rm)
    }
    return rooms, rows.Err()
}

func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (*model.Room, error) {
    const q = `SELECT id, number, name, capacity, created_at FROM rooms WHERE id = ?`
    var rm model.Room
    err := r.db.QueryRowContext(ctx, q, id).Scan(&rm.ID, &rm.Number, &rm.Name, &rm.Capacity, &rm.CreatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrRoomNotFound
    }
    if err != nil {
        return nil, err
    }
    return &rm, nil
}

// Create inserts a room and populates its ID.  A room number that already
// exists yields ErrDuplicate.
func (r *RoomRepo) Create(ctx context.Context, rm *model.Room) error {
    const q = `INSERT INTO rooms (number, name, capacity) VALUES (?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q, rm.Number, rm.Name, rm.Capacity)
    if err != nil {
        if IsDuplicateKey(err) {
            return errors.Mark(errors.Wrapf(err, "room number %q", rm.Number), ErrDuplicate)
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    created, err := r.GetByID(ctx, uint64(id))
    if err != nil {
        return err
    }
    *rm = *created
    return nil
}

// UpsertMany inserts rooms keyed by number in one statement, refreshing
// name and capacity of rooms that already exist.  Used by the seed command.
func (r *RoomRepo) UpsertMany(ctx context.Context, rooms []model.Room) error {
    if len(rooms) == 0 {
        return nil
    }
    query := `INSERT INTO rooms (number, name, capacity) VALUES `
    args := make([]interface{}, 0, len(rooms)*3)
    for i, rm := range rooms {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?)"
        args = append(args, rm.Number, rm.Name, rm.Capacity)
    }
    query += ` ON DUPLICATE KEY UPDATE name = VALUES(name), capacity = VALUES(capacity)`
    _, err := r.db.ExecContext(ctx, query, args...)
    return err
}

// ExistsTx reports whether a room with id exists.  The row is read with a
// shared lock so it cannot vanish before the transaction commits.
func (r *RoomRepo) ExistsTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
    const q = `SELECT id FROM rooms WHERE id = ? LOCK IN SHARE MODE`
    var found uint64
    err := tx.QueryRowContext(ctx, q, id).Scan(&found)
    if errors.Is(err, sql.ErrNoRows) {
        return false, nil
    }
    if err != nil {
        return false, err
    }
    return true, nil
}
