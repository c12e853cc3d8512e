package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusrooms/booking-api/internal/models"
	"github.com/campusrooms/booking-api/pkg/config"
	appErrors "github.com/campusrooms/booking-api/pkg/errors"
)

type memoryCacheRepo struct {
	entries map[string][]byte
	getErr  error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

type mockCatalogRoomRepo struct {
	rooms        map[string]*models.Room
	bookingCount map[string]int
	listAllCalls int
	deleted      []string
	created      []*models.Room
	updated      []*models.Room
}

func newMockCatalogRoomRepo() *mockCatalogRoomRepo {
	return &mockCatalogRoomRepo{
		rooms:        make(map[string]*models.Room),
		bookingCount: make(map[string]int),
	}
}

func (m *mockCatalogRoomRepo) List(_ context.Context, _ models.RoomFilter) ([]models.Room, int, error) {
	out, err := m.ListAll(context.Background())
	return out, len(out), err
}

func (m *mockCatalogRoomRepo) ListAll(_ context.Context) ([]models.Room, error) {
	m.listAllCalls++
	out := make([]models.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, *r)
	}
	return out, nil
}

func (m *mockCatalogRoomRepo) FindByID(_ context.Context, id string) (*models.Room, error) {
	r, ok := m.rooms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *r
	return &clone, nil
}

func (m *mockCatalogRoomRepo) Departments(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, r := range m.rooms {
		if !seen[r.Department] {
			seen[r.Department] = true
			out = append(out, r.Department)
		}
	}
	return out, nil
}

func (m *mockCatalogRoomRepo) Create(_ context.Context, room *models.Room) error {
	room.ID = "room-new"
	clone := *room
	m.rooms[room.ID] = &clone
	m.created = append(m.created, &clone)
	return nil
}

func (m *mockCatalogRoomRepo) Update(_ context.Context, room *models.Room) error {
	clone := *room
	m.rooms[room.ID] = &clone
	m.updated = append(m.updated, &clone)
	return nil
}

func (m *mockCatalogRoomRepo) Delete(_ context.Context, id string) error {
	delete(m.rooms, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockCatalogRoomRepo) CountBookings(_ context.Context, id string) (int, error) {
	return m.bookingCount[id], nil
}

type mockReviewListAll struct{ reviews []models.Review }

func (m *mockReviewListAll) ListAll(_ context.Context) ([]models.Review, error) {
	return m.reviews, nil
}

type mockBookingListAll struct {
	bookings []models.Booking
	calls    int
}

func (m *mockBookingListAll) ListAll(_ context.Context) ([]models.Booking, error) {
	m.calls++
	return m.bookings, nil
}

type catalogFixture struct {
	svc      *CatalogService
	rooms    *mockCatalogRoomRepo
	bookings *mockBookingListAll
	cacheDB  *memoryCacheRepo
	audit    *mockAuditLog
}

func newCatalogFixture() *catalogFixture {
	rooms := newMockCatalogRoomRepo()
	rooms.rooms["room-cse"] = &models.Room{ID: "room-cse", Name: "CSE Seminar Hall", Type: models.RoomTypeSeminarHall, Department: "CSE", Capacity: 120}
	rooms.rooms["room-ece"] = &models.Room{ID: "room-ece", Name: "ECE Lab", Type: models.RoomTypeLab, Department: "ECE", Capacity: 40}

	bookings := &mockBookingListAll{bookings: []models.Booking{
		{ID: "b1", RoomID: "room-cse", UserID: "u-42", Date: "2026-09-07", Slot: models.SlotMorning, Status: models.BookingPending},
		{ID: "b2", RoomID: "room-ece", UserID: "u-99", Date: "2026-09-07", Slot: models.SlotFullDay, Status: models.BookingApproved},
	}}
	reviews := &mockReviewListAll{reviews: []models.Review{
		{ID: "rv1", RoomID: "room-cse", UserID: "u-42", Rating: 5, Comment: "great projector"},
	}}

	cacheDB := newMemoryCacheRepo()
	cache := NewCacheService(cacheDB, nil, time.Minute, nil, true)
	audit := &mockAuditLog{}
	svc := NewCatalogService(rooms, reviews, bookings, audit, cache, nil, nil, config.CatalogConfig{CacheEnabled: true, CacheTTL: time.Minute})
	return &catalogFixture{svc: svc, rooms: rooms, bookings: bookings, cacheDB: cacheDB, audit: audit}
}

func TestCatalogSnapshot(t *testing.T) {
	t.Run("builds once then serves from cache", func(t *testing.T) {
		f := newCatalogFixture()
		ctx := context.Background()

		first, err := f.svc.Snapshot(ctx, adminClaims())
		require.NoError(t, err)
		assert.Len(t, first.Rooms, 2)
		assert.Len(t, first.Reviews, 1)
		assert.Len(t, first.Bookings, 2)
		assert.Equal(t, 1, f.bookings.calls)

		_, err = f.svc.Snapshot(ctx, adminClaims())
		require.NoError(t, err)
		assert.Equal(t, 1, f.bookings.calls)
		assert.Contains(t, f.cacheDB.entries, catalogSnapshotKey)
	})

	t.Run("scope filter applies after the cache read", func(t *testing.T) {
		f := newCatalogFixture()
		ctx := context.Background()

		// Warm the cache with the unfiltered payload.
		_, err := f.svc.Snapshot(ctx, adminClaims())
		require.NoError(t, err)

		got, err := f.svc.Snapshot(ctx, inchargeClaims("CSE"))
		require.NoError(t, err)
		assert.Len(t, got.Rooms, 2)
		require.Len(t, got.Bookings, 1)
		assert.Equal(t, "b1", got.Bookings[0].ID)

		got, err = f.svc.Snapshot(ctx, facultyClaims("u-99"))
		require.NoError(t, err)
		require.Len(t, got.Bookings, 1)
		assert.Equal(t, "b2", got.Bookings[0].ID)
	})

	t.Run("nil claims rejected", func(t *testing.T) {
		f := newCatalogFixture()
		_, err := f.svc.Snapshot(context.Background(), nil)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
	})
}

func TestCatalogRoomCRUD(t *testing.T) {
	ctx := context.Background()

	t.Run("create validates payload and invalidates cache", func(t *testing.T) {
		f := newCatalogFixture()
		_, err := f.svc.Snapshot(ctx, adminClaims())
		require.NoError(t, err)

		room, err := f.svc.CreateRoom(ctx, adminClaims(), CreateRoomRequest{
			Name: "Main Auditorium", Type: "seminar-hall", Department: "CSE", Capacity: 300,
		})
		require.NoError(t, err)
		assert.Equal(t, "room-new", room.ID)
		assert.NotContains(t, f.cacheDB.entries, catalogSnapshotKey)
		require.Len(t, f.audit.logs, 1)
		assert.Equal(t, models.AuditActionRoomCreate, f.audit.logs[0].Action)
	})

	t.Run("create rejects bad type and capacity", func(t *testing.T) {
		f := newCatalogFixture()
		_, err := f.svc.CreateRoom(ctx, adminClaims(), CreateRoomRequest{
			Name: "Broom Closet", Type: "closet", Department: "CSE", Capacity: 4,
		})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

		_, err = f.svc.CreateRoom(ctx, adminClaims(), CreateRoomRequest{
			Name: "Lab 2", Type: "lab", Department: "CSE", Capacity: 0,
		})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	})

	t.Run("update touches only provided fields", func(t *testing.T) {
		f := newCatalogFixture()
		capacity := 150
		room, err := f.svc.UpdateRoom(ctx, adminClaims(), "room-cse", UpdateRoomRequest{Capacity: &capacity})
		require.NoError(t, err)
		assert.Equal(t, 150, room.Capacity)
		assert.Equal(t, "CSE Seminar Hall", room.Name)
		assert.Equal(t, "CSE", room.Department)
	})

	t.Run("update unknown room not found", func(t *testing.T) {
		f := newCatalogFixture()
		name := "Renamed"
		_, err := f.svc.UpdateRoom(ctx, adminClaims(), "room-gone", UpdateRoomRequest{Name: &name})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	})

	t.Run("delete blocked by booking history", func(t *testing.T) {
		f := newCatalogFixture()
		f.rooms.bookingCount["room-cse"] = 3

		err := f.svc.DeleteRoom(ctx, adminClaims(), "room-cse")
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
		assert.Empty(t, f.rooms.deleted)
	})

	t.Run("delete succeeds without history", func(t *testing.T) {
		f := newCatalogFixture()
		err := f.svc.DeleteRoom(ctx, adminClaims(), "room-ece")
		require.NoError(t, err)
		assert.Equal(t, []string{"room-ece"}, f.rooms.deleted)
	})
}
