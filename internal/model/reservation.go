package model

import (
    "strings"
    "time"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
    StatusPending   Status = "PENDING"
    StatusApproved  Status = "APPROVED"
    StatusRejected  Status = "REJECTED"
    StatusCancelled Status = "CANCELLED"
)

// ParseStatus accepts any letter case and reports whether s names a status.
func ParseStatus(s string) (Status, bool) {
    switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
    case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
        return st, true
    }
    return "", false
}

// IsActive reports whether the status holds its (room, slot) pair.
func (s Status) IsActive() bool { return s == StatusPending || s == StatusApproved }

// transitions lists the allowed moves out of each status.  REJECTED and
// CANCELLED have none.
var transitions = map[Status][]Status{
    StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
    StatusApproved: {StatusCancelled},
}

// CanTransition reports whether a reservation may move from s to next.
func (s Status) CanTransition(next Status) bool {
    for _, t := range transitions[s] {
        if t == next {
            return true
        }
    }
    return false
}

// Requester is the free-form metadata attached to a booking request.
type Requester struct {
    PersonName    string  `json:"person_name"`
    Grade         string  `json:"grade"`
    ClassName     string  `json:"class_name"`
    Purpose       *string `json:"purpose,omitempty"`
    NumberOfUsers *uint32 `json:"number_of_users,omitempty"`
    Note          *string `json:"note,omitempty"`
}

// Reservation is a request to use one room during one slot.
//
// Fields:
//  ID        – opaque token (UUID string).
//  Status    – PENDING, APPROVED, REJECTED or CANCELLED.
//  RoomID    – booked room.
//  SlotID    – booked slot.
//  Requester – person name, grade, class and optional details.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last status change.
type Reservation struct {
    ID        string    `json:"id"`      // reservations.id
    Status    Status    `json:"status"`  // reservations.status
    RoomID    uint64    `json:"room_id"` // reservations.room_id
    SlotID    uint64    `json:"slot_id"` // reservations.slot_id
    Requester           // reservations.person_name .. note
    CreatedAt time.Time `json:"created_at"` // reservations.created_at
    UpdatedAt time.Time `json:"updated_at"` // reservations.updated_at
}

// ReservationDetail is a reservation joined with its room and slot for
// listings.
type ReservationDetail struct {
    Reservation
    RoomNumber string    `json:"room_number"`
    RoomName   string    `json:"room_name"`
    SlotStart  time.Time `json:"slot_start"`
    SlotEnd    time.Time `json:"slot_end"`
}

// ReservationFilter narrows ListReservations.  Zero values match everything.
type ReservationFilter struct {
    Status *Status
    RoomID uint64
    Date   *time.Time
    Limit  int
}
