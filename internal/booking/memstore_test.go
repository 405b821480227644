package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/zxswv/npg/internal/model"
	"github.com/zxswv/npg/internal/queue"
)

// memStore is an in-memory Store.  InTx holds one mutex for the whole
// transaction, which gives the same serialization the slot row locks give
// in MySQL, and restores the reservation table when fn fails.
type memStore struct {
	mu sync.Mutex

	rooms        map[uint64]bool
	schedules    map[string]*model.Schedule
	reservations map[string]model.Reservation

	// skipActiveCheck makes HasActiveReservation report false so tests can
	// reach the unique-index path.
	skipActiveCheck bool
	failWith        error
	locked          [][]uint64
}

func newMemStore() *memStore {
	return &memStore{
		rooms:        map[uint64]bool{},
		schedules:    map[string]*model.Schedule{},
		reservations: map[string]model.Reservation{},
	}
}

func (m *memStore) addRoom(id uint64) { m.rooms[id] = true }

func (m *memStore) addSchedule(date string, firstSlotID uint64) {
	d, err := model.ParseDate(date)
	if err != nil {
		panic(err)
	}
	slots, err := model.BuildSlots(d, model.DefaultSlotTimes, model.DefaultSlotDuration)
	if err != nil {
		panic(err)
	}
	sched := &model.Schedule{ID: firstSlotID, Date: d}
	for i := range slots {
		slots[i].ID = firstSlotID + uint64(i)
		slots[i].ScheduleID = sched.ID
	}
	sched.Slots = slots
	m.schedules[date] = sched
}

func (m *memStore) slotID(date, tod string) uint64 {
	for _, s := range m.schedules[date].Slots {
		if s.TimeOfDay() == tod {
			return s.ID
		}
	}
	panic("no slot " + date + " " + tod)
}

func (m *memStore) put(r model.Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations[r.ID] = r
}

func (m *memStore) activeFor(roomID, slotID uint64) []model.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Reservation
	for _, r := range m.reservations {
		if r.RoomID == roomID && r.SlotID == slotID && r.Status.IsActive() {
			out = append(out, r)
		}
	}
	return out
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reservations)
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	snapshot := make(map[string]model.Reservation, len(m.reservations))
	for k, v := range m.reservations {
		snapshot[k] = v
	}
	if err := fn(ctx, &memTx{m: m}); err != nil {
		m.reservations = snapshot
		return err
	}
	return nil
}

func (m *memStore) GetReservation(_ context.Context, id string) (*model.ReservationDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, nil
	}
	return &model.ReservationDetail{Reservation: r}, nil
}

func (m *memStore) ListReservations(_ context.Context, f model.ReservationFilter) ([]model.ReservationDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ReservationDetail
	for _, r := range m.reservations {
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		if f.RoomID != 0 && r.RoomID != f.RoomID {
			continue
		}
		out = append(out, model.ReservationDetail{Reservation: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

type memTx struct{ m *memStore }

func (t *memTx) RoomExists(_ context.Context, roomID uint64) (bool, error) {
	return t.m.rooms[roomID], nil
}

func (t *memTx) FindSchedule(_ context.Context, date time.Time) (*model.Schedule, error) {
	return t.m.schedules[date.Format(model.DateLayout)], nil
}

func (t *memTx) FindSlot(_ context.Context, scheduleID uint64, start time.Time) (*model.Slot, error) {
	for _, sched := range t.m.schedules {
		if sched.ID != scheduleID {
			continue
		}
		for _, s := range sched.Slots {
			if s.StartTime.Equal(start) {
				slot := s
				return &slot, nil
			}
		}
	}
	return nil, nil
}

func (t *memTx) LockSlots(_ context.Context, ids []uint64) error {
	t.m.locked = append(t.m.locked, append([]uint64(nil), ids...))
	return nil
}

func (t *memTx) HasActiveReservation(_ context.Context, roomID, slotID uint64) (bool, error) {
	if t.m.skipActiveCheck {
		return false, nil
	}
	for _, r := range t.m.reservations {
		if r.RoomID == roomID && r.SlotID == slotID && r.Status.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) HasApprovedReservation(_ context.Context, roomID, slotID uint64, excludeID string) (bool, error) {
	for _, r := range t.m.reservations {
		if r.ID != excludeID && r.RoomID == roomID && r.SlotID == slotID && r.Status == model.StatusApproved {
			return true, nil
		}
	}
	return false, nil
}

// CreateReservations enforces the active-reservation unique index the way
// MySQL does: a duplicate fails the statement.
func (t *memTx) CreateReservations(_ context.Context, rs []*model.Reservation) error {
	for _, r := range rs {
		for _, existing := range t.m.reservations {
			if existing.RoomID == r.RoomID && existing.SlotID == r.SlotID && existing.Status.IsActive() {
				return Mark(errors.New("Duplicate entry for key 'uq_reservations_active'"), ErrSlotTaken)
			}
		}
		t.m.reservations[r.ID] = *r
	}
	return nil
}

func (t *memTx) GetReservationForUpdate(_ context.Context, id string) (*model.Reservation, error) {
	r, ok := t.m.reservations[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (t *memTx) UpdateReservationStatus(_ context.Context, id string, status model.Status, at time.Time) error {
	r := t.m.reservations[id]
	r.Status = status
	r.UpdatedAt = at
	t.m.reservations[id] = r
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	err    error
}

func (p *recordingPublisher) PublishReservationEvent(_ context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) recorded() []queue.ReservationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.ReservationEvent(nil), p.events...)
}
