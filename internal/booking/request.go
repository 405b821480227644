package booking

import (
	"strings"
	"time"

	"github.com/zxswv/npg/internal/model"
)

// ReservationRequest books one room for one slot.
type ReservationRequest struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	RoomID uint64 `json:"room_id"`
	model.Requester
}

// BulkItem is one (room, time of day) pair of a bulk request.
type BulkItem struct {
	RoomID uint64 `json:"room_id"`
	Time   string `json:"time"`
}

// BulkRequest books several pairs of the same date for one requester.
type BulkRequest struct {
	Date  string     `json:"date"`
	Items []BulkItem `json:"items"`
	model.Requester
}

func validateRequester(r *model.Requester) error {
	r.PersonName = strings.TrimSpace(r.PersonName)
	r.Grade = strings.TrimSpace(r.Grade)
	r.ClassName = strings.TrimSpace(r.ClassName)
	switch {
	case r.PersonName == "":
		return validationf("person_name is required")
	case r.Grade == "":
		return validationf("grade is required")
	case r.ClassName == "":
		return validationf("class_name is required")
	}
	if r.NumberOfUsers != nil && *r.NumberOfUsers == 0 {
		return validationf("number_of_users must be positive")
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, validationf("date is required")
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return time.Time{}, Mark(err, ErrValidation)
	}
	return d, nil
}

func parseTimeOfDay(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", validationf("time is required")
	}
	tod, err := model.ParseTimeOfDay(s)
	if err != nil {
		return "", Mark(err, ErrValidation)
	}
	return tod, nil
}

func (r *ReservationRequest) validate() (time.Time, string, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return time.Time{}, "", err
	}
	tod, err := parseTimeOfDay(r.Time)
	if err != nil {
		return time.Time{}, "", err
	}
	if r.RoomID == 0 {
		return time.Time{}, "", validationf("room_id is required")
	}
	if err := validateRequester(&r.Requester); err != nil {
		return time.Time{}, "", err
	}
	return date, tod, nil
}

// validate normalizes the items and drops repeated pairs, keeping the
// first occurrence.
func (r *BulkRequest) validate() (time.Time, []BulkItem, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return time.Time{}, nil, err
	}
	if len(r.Items) == 0 {
		return time.Time{}, nil, validationf("items must not be empty")
	}
	seen := make(map[BulkItem]struct{}, len(r.Items))
	items := make([]BulkItem, 0, len(r.Items))
	for i, it := range r.Items {
		if it.RoomID == 0 {
			return time.Time{}, nil, validationf("items[%d].room_id is required", i)
		}
		tod, err := parseTimeOfDay(it.Time)
		if err != nil {
			return time.Time{}, nil, err
		}
		key := BulkItem{RoomID: it.RoomID, Time: tod}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, key)
	}
	if err := validateRequester(&r.Requester); err != nil {
		return time.Time{}, nil, err
	}
	return date, items, nil
}
