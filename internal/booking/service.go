// Package booking implements the conflict guard: it commits reservations and
// status changes while keeping at most one PENDING or APPROVED reservation
// per (room, slot), including under concurrent requests.
package booking

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/zxswv/npg/internal/model"
	"github.com/zxswv/npg/internal/queue"
)

const publishTimeout = 3 * time.Second

// Service is the booking conflict guard.  All writes to reservations go
// through it.
type Service struct {
	store  Store
	events EventPublisher
	logger *slog.Logger

	newID func() string
	now   func() time.Time
}

// NewService wires the guard to its store.  events may be nil, in which case
// nothing is published.
func NewService(store Store, events EventPublisher, logger *slog.Logger) *Service {
	if store == nil {
		panic("nil store passed to booking.NewService")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		events: events,
		logger: logger,
		newID:  uuid.NewString,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ResolveSlot finds the slot starting at timeOfDay on date.  It never
// creates schedules; see service.Provisioner for that.
func (s *Service) ResolveSlot(ctx context.Context, date, timeOfDay string) (*model.Slot, error) {
	d, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	tod, err := parseTimeOfDay(timeOfDay)
	if err != nil {
		return nil, err
	}
	var slot *model.Slot
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		slot, err = resolveSlotTx(ctx, tx, d, tod)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return slot, nil
}

func resolveSlotTx(ctx context.Context, tx Tx, date time.Time, tod string) (*model.Slot, error) {
	sched, err := tx.FindSchedule(ctx, date)
	if err != nil {
		return nil, err
	}
	if sched == nil {
		return nil, errors.Wrapf(ErrScheduleNotFound, "date %s", date.Format(model.DateLayout))
	}
	start, err := model.SlotStart(date, tod)
	if err != nil {
		return nil, Mark(err, ErrValidation)
	}
	slot, err := tx.FindSlot(ctx, sched.ID, start)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, errors.Wrapf(ErrSlotNotFound, "time %s on %s", tod, date.Format(model.DateLayout))
	}
	return slot, nil
}

// CheckAvailable reports whether no PENDING or APPROVED reservation holds
// (roomID, slotID).
func (s *Service) CheckAvailable(ctx context.Context, roomID, slotID uint64) (bool, error) {
	if roomID == 0 || slotID == 0 {
		return false, validationf("room_id and slot_id are required")
	}
	var taken bool
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		taken, err = tx.HasActiveReservation(ctx, roomID, slotID)
		return err
	})
	if err != nil {
		return false, classify(err)
	}
	return !taken, nil
}

// CreateReservation books one slot.  The slot row is locked before the
// availability check so concurrent requests for the same pair serialize;
// the store's unique index turns any remaining race into ErrSlotTaken.
func (s *Service) CreateReservation(ctx context.Context, req ReservationRequest) (*model.Reservation, error) {
	date, tod, err := req.validate()
	if err != nil {
		return nil, err
	}
	var created *model.Reservation
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		created = nil
		if err := ensureRoom(ctx, tx, req.RoomID); err != nil {
			return err
		}
		slot, err := resolveSlotTx(ctx, tx, date, tod)
		if err != nil {
			return err
		}
		if err := tx.LockSlots(ctx, []uint64{slot.ID}); err != nil {
			return err
		}
		taken, err := tx.HasActiveReservation(ctx, req.RoomID, slot.ID)
		if err != nil {
			return err
		}
		if taken {
			return &ConflictError{
				Date:  date.Format(model.DateLayout),
				Slots: []SlotRef{{RoomID: req.RoomID, Time: tod}},
			}
		}
		res := s.newReservation(req.RoomID, slot.ID, req.Requester)
		if err := tx.CreateReservations(ctx, []*model.Reservation{res}); err != nil {
			return err
		}
		created = res
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	s.logger.InfoContext(ctx, "reservation created",
		slog.String("reservation_id", created.ID),
		slog.Uint64("room_id", created.RoomID),
		slog.Uint64("slot_id", created.SlotID))
	s.publish(ctx, created, "")
	return created, nil
}

// CreateBulkReservation books every pair of req on one date, or none.  Slot
// rows are locked in ascending id order so overlapping bulk requests cannot
// deadlock on each other.
func (s *Service) CreateBulkReservation(ctx context.Context, req BulkRequest) ([]*model.Reservation, error) {
	date, items, err := req.validate()
	if err != nil {
		return nil, err
	}
	var created []*model.Reservation
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		created = nil
		checkedRooms := make(map[uint64]struct{})
		slotsByTime := make(map[string]*model.Slot)
		for _, it := range items {
			if _, ok := checkedRooms[it.RoomID]; !ok {
				if err := ensureRoom(ctx, tx, it.RoomID); err != nil {
					return err
				}
				checkedRooms[it.RoomID] = struct{}{}
			}
			if _, ok := slotsByTime[it.Time]; ok {
				continue
			}
			slot, err := resolveSlotTx(ctx, tx, date, it.Time)
			if err != nil {
				return err
			}
			slotsByTime[it.Time] = slot
		}

		ids := make([]uint64, 0, len(slotsByTime))
		for _, slot := range slotsByTime {
			ids = append(ids, slot.ID)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		if err := tx.LockSlots(ctx, ids); err != nil {
			return err
		}

		var conflicts []SlotRef
		for _, it := range items {
			taken, err := tx.HasActiveReservation(ctx, it.RoomID, slotsByTime[it.Time].ID)
			if err != nil {
				return err
			}
			if taken {
				conflicts = append(conflicts, SlotRef{RoomID: it.RoomID, Time: it.Time})
			}
		}
		if len(conflicts) > 0 {
			return &ConflictError{Date: date.Format(model.DateLayout), Slots: conflicts}
		}

		rs := make([]*model.Reservation, 0, len(items))
		for _, it := range items {
			rs = append(rs, s.newReservation(it.RoomID, slotsByTime[it.Time].ID, req.Requester))
		}
		if err := tx.CreateReservations(ctx, rs); err != nil {
			return err
		}
		created = rs
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	s.logger.InfoContext(ctx, "bulk reservation created",
		slog.String("date", date.Format(model.DateLayout)),
		slog.Int("count", len(created)))
	for _, r := range created {
		s.publish(ctx, r, "")
	}
	return created, nil
}

// UpdateStatus moves a reservation to next.  Allowed moves are
// PENDING->APPROVED|REJECTED|CANCELLED and APPROVED->CANCELLED; setting the
// current status again is a no-op.  Approval re-checks, with the slot
// locked, that no other reservation of the pair is already APPROVED.
func (s *Service) UpdateStatus(ctx context.Context, id string, next model.Status) (*model.Reservation, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if next == model.StatusPending || !isKnownStatus(next) {
		return nil, validationf("status must be one of APPROVED, REJECTED, CANCELLED")
	}
	var (
		updated *model.Reservation
		prev    model.Status
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		updated = nil
		res, err := tx.GetReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if res == nil {
			return ErrReservationNotFound
		}
		prev = res.Status
		if prev == next {
			updated = res
			return nil
		}
		if !prev.CanTransition(next) {
			return errors.Wrapf(ErrInvalidTransition, "cannot change status from %s to %s", prev, next)
		}
		if next == model.StatusApproved {
			if err := tx.LockSlots(ctx, []uint64{res.SlotID}); err != nil {
				return err
			}
			approved, err := tx.HasApprovedReservation(ctx, res.RoomID, res.SlotID, res.ID)
			if err != nil {
				return err
			}
			if approved {
				return ErrAlreadyApproved
			}
		}
		at := s.now()
		if err := tx.UpdateReservationStatus(ctx, res.ID, next, at); err != nil {
			return err
		}
		res.Status = next
		res.UpdatedAt = at
		updated = res
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if prev != next {
		s.logger.InfoContext(ctx, "reservation status changed",
			slog.String("reservation_id", updated.ID),
			slog.String("from", string(prev)),
			slog.String("to", string(next)))
		s.publish(ctx, updated, prev)
	}
	return updated, nil
}

// Cancel marks a reservation CANCELLED.  Rows are never deleted, so the
// history view keeps cancelled bookings.
func (s *Service) Cancel(ctx context.Context, id string) (*model.Reservation, error) {
	return s.UpdateStatus(ctx, id, model.StatusCancelled)
}

func (s *Service) GetReservation(ctx context.Context, id string) (*model.ReservationDetail, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	res, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	if res == nil {
		return nil, ErrReservationNotFound
	}
	return res, nil
}

// ListReservations returns reservations newest first.
func (s *Service) ListReservations(ctx context.Context, f model.ReservationFilter) ([]model.ReservationDetail, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 500
	}
	list, err := s.store.ListReservations(ctx, f)
	if err != nil {
		return nil, classify(err)
	}
	return list, nil
}

func (s *Service) newReservation(roomID, slotID uint64, who model.Requester) *model.Reservation {
	now := s.now()
	return &model.Reservation{
		ID:        s.newID(),
		Status:    model.StatusPending,
		RoomID:    roomID,
		SlotID:    slotID,
		Requester: who,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Service) publish(ctx context.Context, r *model.Reservation, prev model.Status) {
	if s.events == nil {
		return
	}
	ev := queue.ReservationEvent{
		Type:          queue.EventReservationCreated,
		ReservationID: r.ID,
		Status:        string(r.Status),
		RoomID:        r.RoomID,
		SlotID:        r.SlotID,
		PersonName:    r.PersonName,
		GroupName:     strings.TrimSpace(r.Grade + " " + r.ClassName),
		OccurredAt:    r.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if prev != "" {
		ev.Type = queue.EventReservationStatusChanged
		ev.PreviousStatus = string(prev)
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.PublishReservationEvent(pctx, ev); err != nil {
		s.logger.WarnContext(ctx, "publish reservation event failed",
			slog.String("reservation_id", r.ID),
			slog.String("type", ev.Type),
			slog.String("error", err.Error()))
	}
}

func ensureRoom(ctx context.Context, tx Tx, roomID uint64) error {
	ok, err := tx.RoomExists(ctx, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrRoomNotFound, "room %d", roomID)
	}
	return nil
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return validationf("reservation id is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return validationf("invalid reservation id")
	}
	return nil
}

func isKnownStatus(st model.Status) bool {
	parsed, ok := model.ParseStatus(string(st))
	return ok && parsed == st
}
