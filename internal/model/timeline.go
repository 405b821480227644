package model

// TimelineEntry is an approved reservation as drawn on the day timeline.
type TimelineEntry struct {
    ID         string  `json:"id"`
    PersonName string  `json:"person_name"`
    Grade      string  `json:"grade"`
    ClassName  string  `json:"class_name"`
    Purpose    *string `json:"purpose,omitempty"`
    SlotID     uint64  `json:"slot_id"`
    StartTime  string  `json:"start_time"` // "HH:MM"
}

// TimelineRoom is one row of the timeline: a room and its approved
// reservations for the requested date, ordered by slot.
type TimelineRoom struct {
    Room
    Reservations []TimelineEntry `json:"reservations"`
}
