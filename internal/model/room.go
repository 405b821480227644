package model

import "time"

// Room is bookable reference data.  Rooms are created by an admin action or
// by the seed command and are never deleted in normal flow.
//
// Fields:
//  ID        – primary key identifier.
//  Number    – unique room number shown on the timeline (e.g. "B101(L)").
//  Name      – display name.
//  Capacity  – number of seats in the room.
//  CreatedAt – creation timestamp.
type Room struct {
    ID        uint64    `json:"id"`         // rooms.id
    Number    string    `json:"number"`     // rooms.number
    Name      string    `json:"name"`       // rooms.name
    Capacity  uint32    `json:"capacity"`   // rooms.capacity
    CreatedAt time.Time `json:"created_at"` // rooms.created_at
}
