package model

import (
    "strings"
    "time"

    "github.com/cockroachdb/errors"
)

const (
    // DateLayout is the calendar date format accepted and returned by the API.
    DateLayout = "2006-01-02"
    // TimeOfDayLayout is the slot time-of-day format ("09:10").
    TimeOfDayLayout = "15:04"
)

// DefaultSlotTimes is the fixed ordered list of daily slot start times.
var DefaultSlotTimes = []string{"09:10", "10:50", "13:10", "14:50", "16:30", "18:10", "19:50"}

// DefaultSlotDuration is the length of one slot.
const DefaultSlotDuration = 90 * time.Minute

var (
    ErrInvalidDate      = errors.New("date must be formatted as YYYY-MM-DD")
    ErrInvalidTimeOfDay = errors.New("time must be formatted as HH:MM")
)

// Schedule is the set of slots for one calendar date.  Dates are unique.
type Schedule struct {
    ID        uint64    `json:"id"`         // schedules.id
    Date      time.Time `json:"date"`       // schedules.date, midnight UTC
    Slots     []Slot    `json:"slots"`      // owned slots ordered by start time
    CreatedAt time.Time `json:"created_at"` // schedules.created_at
}

// Slot is a fixed interval of one schedule.
type Slot struct {
    ID         uint64    `json:"id"`          // slots.id
    ScheduleID uint64    `json:"schedule_id"` // slots.schedule_id
    StartTime  time.Time `json:"start_time"`  // slots.start_time (UTC)
    EndTime    time.Time `json:"end_time"`    // slots.end_time (UTC)
}

// TimeOfDay returns the "HH:MM" label of the slot start.
func (s Slot) TimeOfDay() string { return s.StartTime.UTC().Format(TimeOfDayLayout) }

// SlotAvailability is a slot of a date together with the number of active
// reservations holding it across all rooms.
type SlotAvailability struct {
    Slot
    ReservedCount int `json:"reserved_count"`
}

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
    d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
    if err != nil {
        return time.Time{}, ErrInvalidDate
    }
    return d, nil
}

// ParseTimeOfDay validates an "HH:MM" string and returns it normalized.
func ParseTimeOfDay(s string) (string, error) {
    t, err := time.Parse(TimeOfDayLayout, strings.TrimSpace(s))
    if err != nil {
        return "", ErrInvalidTimeOfDay
    }
    return t.Format(TimeOfDayLayout), nil
}

// SlotStart maps a time of day on date to its stored instant.  Slot times
// are stored as UTC wall-clock values: "09:10" on 2025-07-01 is
// 2025-07-01T09:10:00Z.
func SlotStart(date time.Time, timeOfDay string) (time.Time, error) {
    tod, err := ParseTimeOfDay(timeOfDay)
    if err != nil {
        return time.Time{}, err
    }
    t, _ := time.Parse(TimeOfDayLayout, tod)
    y, m, d := date.Date()
    return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}

// BuildSlots lays out the slots of date for the given times of day.  The
// result is ordered by start time; duplicate times collapse to one slot.
func BuildSlots(date time.Time, times []string, duration time.Duration) ([]Slot, error) {
    if duration <= 0 {
        duration = DefaultSlotDuration
    }
    seen := make(map[time.Time]struct{}, len(times))
    slots := make([]Slot, 0, len(times))
    for _, tod := range times {
        start, err := SlotStart(date, tod)
        if err != nil {
            return nil, errors.Wrapf(err, "slot time %q", tod)
        }
        if _, dup := seen[start]; dup {
            continue
        }
        seen[start] = struct{}{}
        slots = append(slots, Slot{StartTime: start, EndTime: start.Add(duration)})
    }
    for i := 1; i < len(slots); i++ {
        for j := i; j > 0 && slots[j].StartTime.Before(slots[j-1].StartTime); j-- {
            slots[j], slots[j-1] = slots[j-1], slots[j]
        }
    }
    return slots, nil
}
