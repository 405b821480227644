package booking

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxswv/npg/internal/model"
	"github.com/zxswv/npg/internal/queue"
)

const testDate = "2025-07-01"

func newTestService(t *testing.T) (*Service, *memStore, *recordingPublisher) {
	t.Helper()
	store := newMemStore()
	store.addRoom(101)
	store.addRoom(102)
	store.addSchedule(testDate, 1)
	pub := &recordingPublisher{}
	svc := NewService(store, pub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, store, pub
}

func request(roomID uint64, tod string) ReservationRequest {
	return ReservationRequest{
		Date:   testDate,
		Time:   tod,
		RoomID: roomID,
		Requester: model.Requester{
			PersonName: "Aoi Tanaka",
			Grade:      "2",
			ClassName:  "B",
		},
	}
}

func TestCreateReservation(t *testing.T) {
	svc, store, pub := newTestService(t)

	res, err := svc.CreateReservation(context.Background(), request(101, "09:10"))
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, res.Status)
	assert.Equal(t, uint64(101), res.RoomID)
	assert.Equal(t, store.slotID(testDate, "09:10"), res.SlotID)
	_, err = uuid.Parse(res.ID)
	assert.NoError(t, err)
	assert.Equal(t, [][]uint64{{res.SlotID}}, store.locked)

	events := pub.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, queue.EventReservationCreated, events[0].Type)
	assert.Equal(t, res.ID, events[0].ReservationID)
	assert.Equal(t, "2 B", events[0].GroupName)
}

func TestCreateReservationConcurrentSamePair(t *testing.T) {
	svc, store, _ := newTestService(t)

	const clients = 16
	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.CreateReservation(context.Background(), request(101, "09:10"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, clients-1, conflicts)
	active := store.activeFor(101, store.slotID(testDate, "09:10"))
	require.Len(t, active, 1)
	assert.Equal(t, model.StatusPending, active[0].Status)
}

func TestCreateReservationConflictDoesNotMutate(t *testing.T) {
	svc, store, pub := newTestService(t)
	_, err := svc.CreateReservation(context.Background(), request(101, "09:10"))
	require.NoError(t, err)
	before := store.count()

	_, err = svc.CreateReservation(context.Background(), request(101, "09:10"))
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrConflict))
	assert.True(t, errors.Is(err, ErrSlotTaken))
	var ce *ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []SlotRef{{RoomID: 101, Time: "09:10"}}, ce.Slots)
	assert.Equal(t, before, store.count())
	assert.Len(t, pub.recorded(), 1)
}

func TestCreateReservationUniqueIndexRace(t *testing.T) {
	svc, store, _ := newTestService(t)
	_, err := svc.CreateReservation(context.Background(), request(101, "09:10"))
	require.NoError(t, err)

	// The availability check misses the existing row; the insert must
	// still be refused.
	store.skipActiveCheck = true
	_, err = svc.CreateReservation(context.Background(), request(101, "09:10"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrStorage))
	assert.Equal(t, 1, store.count())
}

func TestCreateReservationNotFound(t *testing.T) {
	svc, store, _ := newTestService(t)

	tests := []struct {
		name string
		req  ReservationRequest
		want error
	}{
		{name: "unknown date", req: func() ReservationRequest { r := request(101, "09:10"); r.Date = "2025-08-01"; return r }(), want: ErrScheduleNotFound},
		{name: "unknown time", req: request(101, "08:00"), want: ErrSlotNotFound},
		{name: "unknown room", req: request(999, "09:10"), want: ErrRoomNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateReservation(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
	assert.Zero(t, store.count())
}

func TestCreateReservationValidation(t *testing.T) {
	svc, store, _ := newTestService(t)

	zero := uint32(0)
	tests := []struct {
		name   string
		mutate func(r *ReservationRequest)
	}{
		{name: "missing date", mutate: func(r *ReservationRequest) { r.Date = "" }},
		{name: "malformed date", mutate: func(r *ReservationRequest) { r.Date = "2025/07/01" }},
		{name: "missing time", mutate: func(r *ReservationRequest) { r.Time = " " }},
		{name: "malformed time", mutate: func(r *ReservationRequest) { r.Time = "9:10am" }},
		{name: "missing room", mutate: func(r *ReservationRequest) { r.RoomID = 0 }},
		{name: "missing person name", mutate: func(r *ReservationRequest) { r.PersonName = "  " }},
		{name: "missing grade", mutate: func(r *ReservationRequest) { r.Grade = "" }},
		{name: "missing class", mutate: func(r *ReservationRequest) { r.ClassName = "" }},
		{name: "zero users", mutate: func(r *ReservationRequest) { r.NumberOfUsers = &zero }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request(101, "09:10")
			tt.mutate(&req)
			_, err := svc.CreateReservation(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
	assert.Zero(t, store.count())
	assert.Empty(t, store.locked)
}

func TestCreateBulkReservationRollsBackOnConflict(t *testing.T) {
	svc, store, pub := newTestService(t)
	_, err := svc.CreateReservation(context.Background(), request(102, "10:50"))
	require.NoError(t, err)

	_, err = svc.CreateBulkReservation(context.Background(), BulkRequest{
		Date:      testDate,
		Items:     []BulkItem{{RoomID: 101, Time: "09:10"}, {RoomID: 102, Time: "10:50"}},
		Requester: request(0, "").Requester,
	})
	require.Error(t, err)

	var ce *ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []SlotRef{{RoomID: 102, Time: "10:50"}}, ce.Slots)
	assert.Empty(t, store.activeFor(101, store.slotID(testDate, "09:10")))
	assert.Equal(t, 1, store.count())
	assert.Len(t, pub.recorded(), 1)
}

func TestCreateBulkReservation(t *testing.T) {
	svc, store, pub := newTestService(t)

	created, err := svc.CreateBulkReservation(context.Background(), BulkRequest{
		Date: testDate,
		Items: []BulkItem{
			{RoomID: 102, Time: "13:10"},
			{RoomID: 101, Time: "09:10"},
			{RoomID: 102, Time: "13:10"},
			{RoomID: 101, Time: "13:10"},
		},
		Requester: request(0, "").Requester,
	})
	require.NoError(t, err)
	require.Len(t, created, 3)
	for _, r := range created {
		assert.Equal(t, model.StatusPending, r.Status)
	}
	assert.Equal(t, 3, store.count())
	assert.Len(t, pub.recorded(), 3)
	// both slot rows locked once, ascending
	assert.Equal(t, [][]uint64{{store.slotID(testDate, "09:10"), store.slotID(testDate, "13:10")}}, store.locked)
}

func TestCreateBulkReservationUnknownSlotCommitsNothing(t *testing.T) {
	svc, store, _ := newTestService(t)

	_, err := svc.CreateBulkReservation(context.Background(), BulkRequest{
		Date:      testDate,
		Items:     []BulkItem{{RoomID: 101, Time: "09:10"}, {RoomID: 101, Time: "07:00"}},
		Requester: request(0, "").Requester,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSlotNotFound))
	assert.Zero(t, store.count())
}

func TestCreateBulkReservationValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateBulkReservation(context.Background(), BulkRequest{Date: testDate, Requester: request(0, "").Requester})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = svc.CreateBulkReservation(context.Background(), BulkRequest{
		Date:      testDate,
		Items:     []BulkItem{{RoomID: 0, Time: "09:10"}},
		Requester: request(0, "").Requester,
	})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestUpdateStatusApprove(t *testing.T) {
	svc, store, pub := newTestService(t)
	res, err := svc.CreateReservation(context.Background(), request(101, "09:10"))
	require.NoError(t, err)

	approved, err := svc.UpdateStatus(context.Background(), res.ID, model.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)
	assert.Equal(t, [][]uint64{{res.SlotID}, {res.SlotID}}, store.locked)

	events := pub.recorded()
	require.Len(t, events, 2)
	assert.Equal(t, queue.EventReservationStatusChanged, events[1].Type)
	assert.Equal(t, "PENDING", events[1].PreviousStatus)
	assert.Equal(t, "APPROVED", events[1].Status)
}

func TestUpdateStatusApproveConflictsWithApprovedSibling(t *testing.T) {
	svc, store, _ := newTestService(t)
	slot := store.slotID(testDate, "09:10")
	approvedID, pendingID := uuid.NewString(), uuid.NewString()
	// Rows written before the unique index existed.
	store.put(model.Reservation{ID: approvedID, Status: model.StatusApproved, RoomID: 101, SlotID: slot})
	store.put(model.Reservation{ID: pendingID, Status: model.StatusPending, RoomID: 101, SlotID: slot})

	_, err := svc.UpdateStatus(context.Background(), pendingID, model.StatusApproved)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyApproved))
	assert.True(t, errors.Is(err, ErrConflict))

	got, err := svc.GetReservation(context.Background(), pendingID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)

	// Rejecting is still allowed.
	rejected, err := svc.UpdateStatus(context.Background(), pendingID, model.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Status)
}

func TestUpdateStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    model.Status
		to      model.Status
		wantErr error
	}{
		{name: "pending to rejected", from: model.StatusPending, to: model.StatusRejected},
		{name: "pending to cancelled", from: model.StatusPending, to: model.StatusCancelled},
		{name: "approved to cancelled", from: model.StatusApproved, to: model.StatusCancelled},
		{name: "approved to rejected", from: model.StatusApproved, to: model.StatusRejected, wantErr: ErrInvalidTransition},
		{name: "rejected to approved", from: model.StatusRejected, to: model.StatusApproved, wantErr: ErrInvalidTransition},
		{name: "cancelled to approved", from: model.StatusCancelled, to: model.StatusApproved, wantErr: ErrInvalidTransition},
		{name: "to pending", from: model.StatusApproved, to: model.StatusPending, wantErr: ErrValidation},
		{name: "unknown status", from: model.StatusPending, to: model.Status("EXPIRED"), wantErr: ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newTestService(t)
			id := uuid.NewString()
			store.put(model.Reservation{ID: id, Status: tt.from, RoomID: 101, SlotID: store.slotID(testDate, "09:10")})

			got, err := svc.UpdateStatus(context.Background(), id, tt.to)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, got.Status)
		})
	}
}

func TestUpdateStatusSameStatusIsNoop(t *testing.T) {
	svc, store, pub := newTestService(t)
	id := uuid.NewString()
	store.put(model.Reservation{ID: id, Status: model.StatusCancelled, RoomID: 101, SlotID: store.slotID(testDate, "09:10")})

	got, err := svc.Cancel(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.Empty(t, pub.recorded())
}

func TestUpdateStatusNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.UpdateStatus(context.Background(), uuid.NewString(), model.StatusApproved)
	assert.True(t, errors.Is(err, ErrReservationNotFound))

	_, err = svc.UpdateStatus(context.Background(), "not-a-uuid", model.StatusApproved)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestCancelFreesPair(t *testing.T) {
	svc, store, _ := newTestService(t)
	first, err := svc.CreateReservation(context.Background(), request(101, "09:10"))
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), first.ID, model.StatusApproved)
	require.NoError(t, err)

	available, err := svc.CheckAvailable(context.Background(), 101, first.SlotID)
	require.NoError(t, err)
	assert.False(t, available)

	cancelled, err := svc.Cancel(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	available, err = svc.CheckAvailable(context.Background(), 101, first.SlotID)
	require.NoError(t, err)
	assert.True(t, available)

	second, err := svc.CreateReservation(context.Background(), request(101, "09:10"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	// cancelled row is kept as history
	assert.Equal(t, 2, store.count())
}

func TestResolveSlot(t *testing.T) {
	svc, store, _ := newTestService(t)

	slot, err := svc.ResolveSlot(context.Background(), testDate, "14:50")
	require.NoError(t, err)
	assert.Equal(t, store.slotID(testDate, "14:50"), slot.ID)
	assert.Equal(t, "14:50", slot.TimeOfDay())

	_, err = svc.ResolveSlot(context.Background(), "2030-01-01", "14:50")
	assert.True(t, errors.Is(err, ErrScheduleNotFound))
	// resolving never provisions
	assert.Len(t, store.schedules, 1)
}

func TestStorageErrorsAreClassified(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.failWith = errors.New("connection refused")

	_, err := svc.CreateReservation(context.Background(), request(101, "09:10"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorage))
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	svc, store, pub := newTestService(t)
	pub.err = errors.New("broker down")

	res, err := svc.CreateReservation(context.Background(), request(101, "09:10"))
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, 1, store.count())
}

func TestListReservations(t *testing.T) {
	svc, _, _ := newTestService(t)
	a, err := svc.CreateReservation(context.Background(), request(101, "09:10"))
	require.NoError(t, err)
	_, err = svc.CreateReservation(context.Background(), request(102, "09:10"))
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), a.ID, model.StatusApproved)
	require.NoError(t, err)

	approved := model.StatusApproved
	list, err := svc.ListReservations(context.Background(), model.ReservationFilter{Status: &approved})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	all, err := svc.ListReservations(context.Background(), model.ReservationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
