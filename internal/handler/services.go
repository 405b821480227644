package handler

import (
    "context"
    "time"

    "github.com/zxswv/npg/internal/booking"
    "github.com/zxswv/npg/internal/model"
)

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

// ReservationService is the booking guard as seen by the HTTP layer.
type ReservationService interface {
    CreateReservation(ctx context.Context, req booking.ReservationRequest) (*model.Reservation, error)
    CreateBulkReservation(ctx context.Context, req booking.BulkRequest) ([]*model.Reservation, error)
    UpdateStatus(ctx context.Context, id string, next model.Status) (*model.Reservation, error)
    Cancel(ctx context.Context, id string) (*model.Reservation, error)
    GetReservation(ctx context.Context, id string) (*model.ReservationDetail, error)
    ListReservations(ctx context.Context, f model.ReservationFilter) ([]model.ReservationDetail, error)
}

// RoomStore lists and creates rooms.
type RoomStore interface {
    List(ctx context.Context) ([]model.Room, error)
    Create(ctx context.Context, rm *model.Room) error
}

// SlotReader returns the slots of a date with their active reservation
// counts.  It never creates a schedule.
type SlotReader interface {
    ListSlotAvailability(ctx context.Context, date time.Time) ([]model.SlotAvailability, error)
}

// ScheduleProvisioner creates the schedule of a date when missing.
type ScheduleProvisioner interface {
    EnsureSchedule(ctx context.Context, date time.Time) (*model.Schedule, bool, error)
}

// TimelineReader returns rooms with their approved reservations of a date.
type TimelineReader interface {
    Timeline(ctx context.Context, date time.Time) ([]model.TimelineRoom, error)
}
