// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

// Event types carried in ReservationEvent.Type.
const (
    EventReservationCreated       = "reservation.created"
    EventReservationStatusChanged = "reservation.status_changed"
)

// ReservationEvent is published after a reservation was created or changed
// status.  It carries enough information for downstream consumers to log or
// notify without querying the primary database.
type ReservationEvent struct {
    Type           string `json:"type"`
    ReservationID  string `json:"reservation_id"`
    Status         string `json:"status"`
    PreviousStatus string `json:"previous_status,omitempty"`
    RoomID         uint64 `json:"room_id"`
    SlotID         uint64 `json:"slot_id"`
    PersonName     string `json:"person_name"`
    GroupName      string `json:"group_name,omitempty"` // "<grade> <class>"
    OccurredAt     string `json:"occurred_at"`          // RFC3339, UTC
}
