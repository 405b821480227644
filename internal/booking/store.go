package booking

import (
	"context"
	"time"

	"github.com/zxswv/npg/internal/model"
	"github.com/zxswv/npg/internal/queue"
)

// Tx is the unit of work the guard runs its check-then-act sequences in.
// Finders return (nil, nil) when the row does not exist.  Implementations
// report a violated active-reservation uniqueness as ErrSlotTaken.
type Tx interface {
	RoomExists(ctx context.Context, roomID uint64) (bool, error)
	FindSchedule(ctx context.Context, date time.Time) (*model.Schedule, error)
	FindSlot(ctx context.Context, scheduleID uint64, start time.Time) (*model.Slot, error)
	// LockSlots takes exclusive row locks on the given slots until the
	// transaction ends.  ids are locked in the order given.
	LockSlots(ctx context.Context, ids []uint64) error
	HasActiveReservation(ctx context.Context, roomID, slotID uint64) (bool, error)
	HasApprovedReservation(ctx context.Context, roomID, slotID uint64, excludeID string) (bool, error)
	CreateReservations(ctx context.Context, rs []*model.Reservation) error
	GetReservationForUpdate(ctx context.Context, id string) (*model.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id string, status model.Status, at time.Time) error
}

// Store is the persistence collaborator of the guard.
type Store interface {
	// InTx runs fn in one transaction, committing when fn returns nil and
	// rolling back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetReservation(ctx context.Context, id string) (*model.ReservationDetail, error)
	ListReservations(ctx context.Context, f model.ReservationFilter) ([]model.ReservationDetail, error)
}

// EventPublisher receives reservation events after their transaction
// committed.
type EventPublisher interface {
	PublishReservationEvent(ctx context.Context, ev queue.ReservationEvent) error
}
