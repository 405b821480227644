package booking

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Error classes.  Every error returned by Service carries exactly one of
// these marks; handlers map them to status codes with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrStorage    = errors.New("storage failure")
)

var classes = []error{ErrValidation, ErrNotFound, ErrConflict, ErrStorage}

var (
	ErrScheduleNotFound    = kind("schedule not found", ErrNotFound)
	ErrSlotNotFound        = kind("slot not found", ErrNotFound)
	ErrRoomNotFound        = kind("room not found", ErrNotFound)
	ErrReservationNotFound = kind("reservation not found", ErrNotFound)

	ErrSlotTaken         = kind("slot already reserved", ErrConflict)
	ErrAlreadyApproved   = kind("another reservation is already approved for this slot", ErrConflict)
	ErrInvalidTransition = kind("invalid status transition", ErrConflict)
)

// kindError is a specific sentinel that also matches its class.
type kindError struct {
	msg   string
	class error
}

func kind(msg string, class error) error { return &kindError{msg: msg, class: class} }

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool { return target == e.class }

// Mark tags err with sentinel and with the class sentinel belongs to, so
// both errors.Is(err, sentinel) and errors.Is(err, ErrConflict) hold.
func Mark(err error, sentinel error) error {
	err = errors.Mark(err, sentinel)
	for _, class := range classes {
		if class != sentinel && errors.Is(sentinel, class) {
			err = errors.Mark(err, class)
		}
	}
	return err
}

func validationf(format string, args ...any) error {
	return Mark(errors.Newf(format, args...), ErrValidation)
}

// SlotRef names one requested (room, time of day) pair of a date.
type SlotRef struct {
	RoomID uint64 `json:"room_id"`
	Time   string `json:"time"`
}

// ConflictError reports the pairs that were already held when a create
// was refused.  Nothing was written.
type ConflictError struct {
	Date  string
	Slots []SlotRef
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Slots))
	for _, s := range e.Slots {
		parts = append(parts, fmt.Sprintf("room %d at %s", s.RoomID, s.Time))
	}
	return fmt.Sprintf("slot already reserved on %s: %s", e.Date, strings.Join(parts, ", "))
}

// Is makes ConflictError match ErrConflict and ErrSlotTaken.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict || target == ErrSlotTaken
}

// classify passes domain errors through and marks anything else as a
// storage failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, class := range classes {
		if errors.Is(err, class) {
			return err
		}
	}
	return Mark(errors.Wrap(err, "booking store"), ErrStorage)
}
