//go:build integration

package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zxswv/npg/internal/booking"
	"github.com/zxswv/npg/internal/config"
	"github.com/zxswv/npg/internal/database"
	"github.com/zxswv/npg/internal/model"
	"github.com/zxswv/npg/internal/repository"
)

const (
	testUser     = "booking"
	testPassword = "bookingpass"
	testDB       = "booking"
)

type MySQLSuite struct {
	suite.Suite
	container    testcontainers.Container
	db           *sql.DB
	rooms        *repository.RoomRepo
	schedules    *repository.ScheduleRepo
	reservations *repository.ReservationRepo
	svc          *booking.Service

	room101, room102 uint64
}

func TestMySQLSuite(t *testing.T) {
	suite.Run(t, new(MySQLSuite))
}

func (s *MySQLSuite) SetupSuite() {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "mysql:8.4",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": testPassword,
			"MYSQL_USER":          testUser,
			"MYSQL_PASSWORD":      testPassword,
			"MYSQL_DATABASE":      testDB,
		},
		WaitingFor: wait.ForSQL("3306/tcp", "mysql", func(host string, port nat.Port) string {
			return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s", testUser, testPassword, host, port.Port(), testDB)
		}).WithStartupTimeout(3 * time.Minute),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	s.Require().NoError(err, "start mysql container")
	s.container = c

	host, err := c.Host(ctx)
	s.Require().NoError(err)
	port, err := c.MappedPort(ctx, "3306/tcp")
	s.Require().NoError(err)

	s.db, err = database.Open(config.DBConfig{
		User: testUser, Pass: testPassword, Host: host, Port: port.Port(), Name: testDB,
		MaxOpenConns: 25, MaxIdleConns: 25, ConnLifetime: 30 * time.Minute,
	})
	s.Require().NoError(err, "open database")
	s.Require().NoError(database.Migrate(ctx, s.db))
	// migrations are idempotent
	s.Require().NoError(database.Migrate(ctx, s.db))

	s.rooms = repository.NewRoomRepo(s.db)
	s.schedules = repository.NewScheduleRepo(s.db)
	s.reservations = repository.NewReservationRepo(s.db)
	store := repository.NewStore(s.db, s.rooms, s.schedules, s.reservations)
	s.svc = booking.NewService(store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *MySQLSuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *MySQLSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(repository.Reset(ctx, s.db))
	s.Require().NoError(s.rooms.UpsertMany(ctx, []model.Room{
		{Number: "101", Name: "Lecture 101", Capacity: 40},
		{Number: "102", Name: "Lecture 102", Capacity: 40},
	}))
	list, err := s.rooms.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.room101, s.room102 = list[0].ID, list[1].ID

	date, _ := model.ParseDate("2025-07-01")
	slots, err := model.BuildSlots(date, model.DefaultSlotTimes, model.DefaultSlotDuration)
	s.Require().NoError(err)
	_, created, err := s.schedules.EnsureWithSlots(ctx, date, slots)
	s.Require().NoError(err)
	s.True(created)
}

func (s *MySQLSuite) request(roomID uint64, tod string) booking.ReservationRequest {
	return booking.ReservationRequest{
		Date: "2025-07-01", Time: tod, RoomID: roomID,
		Requester: model.Requester{PersonName: "Aoi Tanaka", Grade: "2", ClassName: "B"},
	}
}

func (s *MySQLSuite) TestEnsureScheduleIsIdempotent() {
	ctx := context.Background()
	date, _ := model.ParseDate("2025-07-01")
	slots, _ := model.BuildSlots(date, model.DefaultSlotTimes, model.DefaultSlotDuration)

	sched, created, err := s.schedules.EnsureWithSlots(ctx, date, slots)
	s.Require().NoError(err)
	s.False(created)
	s.Len(sched.Slots, 7)
	s.Equal("09:10", sched.Slots[0].TimeOfDay())
	s.Equal(time.Date(2025, 7, 1, 10, 40, 0, 0, time.UTC), sched.Slots[0].EndTime)
}

func (s *MySQLSuite) TestConcurrentCreateSamePair() {
	const clients = 12
	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.svc.CreateReservation(context.Background(), s.request(s.room101, "09:10"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, booking.ErrConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	s.Empty(others)
	s.Equal(1, successes)
	s.Equal(clients-1, conflicts)

	pending := model.StatusPending
	list, err := s.svc.ListReservations(context.Background(), model.ReservationFilter{Status: &pending, RoomID: s.room101})
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *MySQLSuite) TestUniqueIndexRejectsSecondActiveRow() {
	ctx := context.Background()
	slot, err := s.svc.ResolveSlot(ctx, "2025-07-01", "10:50")
	s.Require().NoError(err)

	row := func(st model.Status) *model.Reservation {
		now := time.Now().UTC()
		return &model.Reservation{
			ID: uuid.NewString(), Status: st, RoomID: s.room102, SlotID: slot.ID,
			Requester: model.Requester{PersonName: "x", Grade: "1", ClassName: "A"},
			CreatedAt: now, UpdatedAt: now,
		}
	}
	err = repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.reservations.CreateBulkTx(ctx, tx, []*model.Reservation{row(model.StatusPending), row(model.StatusApproved)})
	})
	s.Require().Error(err)
	s.True(repository.IsDuplicateKey(err))

	// any number of inactive rows may share the pair
	err = repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.reservations.CreateBulkTx(ctx, tx, []*model.Reservation{
			row(model.StatusCancelled), row(model.StatusRejected), row(model.StatusCancelled), row(model.StatusPending),
		})
	})
	s.Require().NoError(err)
}

func (s *MySQLSuite) TestBulkConflictCommitsNothing() {
	ctx := context.Background()
	_, err := s.svc.CreateReservation(ctx, s.request(s.room102, "10:50"))
	s.Require().NoError(err)

	_, err = s.svc.CreateBulkReservation(ctx, booking.BulkRequest{
		Date:      "2025-07-01",
		Items:     []booking.BulkItem{{RoomID: s.room101, Time: "09:10"}, {RoomID: s.room102, Time: "10:50"}},
		Requester: s.request(0, "").Requester,
	})
	var ce *booking.ConflictError
	s.Require().True(errors.As(err, &ce))
	s.Equal([]booking.SlotRef{{RoomID: s.room102, Time: "10:50"}}, ce.Slots)

	slot, err := s.svc.ResolveSlot(ctx, "2025-07-01", "09:10")
	s.Require().NoError(err)
	available, err := s.svc.CheckAvailable(ctx, s.room101, slot.ID)
	s.Require().NoError(err)
	s.True(available)
}

func (s *MySQLSuite) TestApproveCancelTimeline() {
	ctx := context.Background()
	res, err := s.svc.CreateReservation(ctx, s.request(s.room101, "13:10"))
	s.Require().NoError(err)
	_, err = s.svc.UpdateStatus(ctx, res.ID, model.StatusApproved)
	s.Require().NoError(err)

	date, _ := model.ParseDate("2025-07-01")
	timeline, err := s.reservations.Timeline(ctx, date)
	s.Require().NoError(err)
	s.Require().Len(timeline, 2)
	s.Equal("101", timeline[0].Number)
	s.Require().Len(timeline[0].Reservations, 1)
	s.Equal("13:10", timeline[0].Reservations[0].StartTime)
	s.Empty(timeline[1].Reservations)

	avail, err := s.schedules.ListSlotAvailability(ctx, date)
	s.Require().NoError(err)
	s.Require().Len(avail, 7)
	s.Equal(1, avail[2].ReservedCount)

	det, err := s.svc.GetReservation(ctx, res.ID)
	s.Require().NoError(err)
	s.Equal("Lecture 101", det.RoomName)
	s.Equal(model.StatusApproved, det.Status)

	_, err = s.svc.Cancel(ctx, res.ID)
	s.Require().NoError(err)
	again, err := s.svc.CreateReservation(ctx, s.request(s.room101, "13:10"))
	s.Require().NoError(err)

	s.Require().NoError(s.reservations.Delete(ctx, again.ID))
	assert.ErrorIs(s.T(), s.reservations.Delete(ctx, again.ID), repository.ErrReservationNotFound)
}

func (s *MySQLSuite) TestRoomNumberIsUnique() {
	err := s.rooms.Create(context.Background(), &model.Room{Number: "101", Name: "dup", Capacity: 1})
	require.Error(s.T(), err)
	s.True(errors.Is(err, repository.ErrDuplicate))
}

func (s *MySQLSuite) TestResetThenUpsertRooms() {
	ctx := context.Background()
	_, err := s.svc.CreateReservation(ctx, s.request(s.room101, "09:10"))
	s.Require().NoError(err)

	s.Require().NoError(repository.Reset(ctx, s.db))

	rooms, err := s.rooms.List(ctx)
	s.Require().NoError(err)
	s.Empty(rooms)
	date, _ := model.ParseDate("2025-07-01")
	_, err = s.schedules.GetByDate(ctx, date)
	s.True(errors.Is(err, repository.ErrScheduleNotFound))
	list, err := s.reservations.List(ctx, model.ReservationFilter{})
	s.Require().NoError(err)
	s.Empty(list)

	seed := []model.Room{
		{Number: "B101(L)", Name: "ホール", Capacity: 100},
		{Number: "1003", Name: "レクチャー", Capacity: 0},
	}
	s.Require().NoError(s.rooms.UpsertMany(ctx, seed))
	seed[0].Name, seed[0].Capacity = "Main Hall", 120
	s.Require().NoError(s.rooms.UpsertMany(ctx, seed))

	rooms, err = s.rooms.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(rooms, 2)
	byNumber := map[string]model.Room{}
	for _, r := range rooms {
		byNumber[r.Number] = r
	}
	s.Equal("Main Hall", byNumber["B101(L)"].Name)
	s.Equal(uint32(120), byNumber["B101(L)"].Capacity)
	s.Equal(uint32(0), byNumber["1003"].Capacity)
}
