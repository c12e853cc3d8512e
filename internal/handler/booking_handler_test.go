package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusrooms/booking-api/internal/middleware"
	"github.com/campusrooms/booking-api/internal/models"
	"github.com/campusrooms/booking-api/internal/service"
	"github.com/campusrooms/booking-api/pkg/config"
	"github.com/campusrooms/booking-api/pkg/response"
)

type bookingRepoStub struct {
	bookings   map[string]*models.Booking
	created    []*models.Booking
	lastFilter models.BookingFilter
}

func (s *bookingRepoStub) List(_ context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	s.lastFilter = filter
	out := make([]models.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (s *bookingRepoStub) ListByRoom(_ context.Context, roomID string) ([]models.Booking, error) {
	out := make([]models.Booking, 0)
	for _, b := range s.bookings {
		if b.RoomID == roomID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *bookingRepoStub) FindByID(_ context.Context, id string) (*models.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return b, nil
}

func (s *bookingRepoStub) Create(_ context.Context, booking *models.Booking) error {
	booking.ID = "bk-1"
	s.bookings[booking.ID] = booking
	s.created = append(s.created, booking)
	return nil
}

func (s *bookingRepoStub) UpdateStatus(_ context.Context, id string, status models.BookingStatus) (int64, error) {
	if b, ok := s.bookings[id]; ok {
		b.Status = status
		return 1, nil
	}
	return 0, nil
}

func (s *bookingRepoStub) UpdateStatusIfPending(_ context.Context, id string, status models.BookingStatus) (int64, error) {
	if b, ok := s.bookings[id]; ok && b.Status == models.BookingPending {
		b.Status = status
		return 1, nil
	}
	return 0, nil
}

type roomLookupStub struct{ rooms map[string]*models.Room }

func (s *roomLookupStub) FindByID(_ context.Context, id string) (*models.Room, error) {
	r, ok := s.rooms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return r, nil
}

func newBookingHandler(repo *bookingRepoStub) *BookingHandler {
	rooms := &roomLookupStub{rooms: map[string]*models.Room{
		"room-cse": {ID: "room-cse", Department: "CSE"},
	}}
	svc := service.NewBookingService(repo, rooms, nil, nil, nil, nil, nil, config.BookingConfig{})
	return NewBookingHandler(svc)
}

func testContext(t *testing.T, method, target string, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestBookingHandlerCreate(t *testing.T) {
	faculty := &models.JWTClaims{UserID: "u-42", Role: models.RoleFaculty, Department: "CSE", FullName: "Dr. Rao"}

	t.Run("accepts a valid request", func(t *testing.T) {
		repo := &bookingRepoStub{bookings: make(map[string]*models.Booking)}
		handler := newBookingHandler(repo)

		c, w := testContext(t, http.MethodPost, "/bookings",
			`{"room_id":"room-cse","date":"2026-09-07","slot":"FN","purpose":"guest lecture on compilers"}`, faculty)
		handler.Create(c)

		require.Equal(t, http.StatusCreated, w.Code)
		require.Len(t, repo.created, 1)
		assert.Equal(t, "u-42", repo.created[0].UserID)
		assert.Nil(t, decodeEnvelope(t, w).Error)
	})

	t.Run("malformed json is a validation error", func(t *testing.T) {
		handler := newBookingHandler(&bookingRepoStub{bookings: make(map[string]*models.Booking)})
		c, w := testContext(t, http.MethodPost, "/bookings", `{"room_id":`, faculty)
		handler.Create(c)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("incharge gets forbidden", func(t *testing.T) {
		handler := newBookingHandler(&bookingRepoStub{bookings: make(map[string]*models.Booking)})
		incharge := &models.JWTClaims{UserID: "u-1", Role: models.RoleIncharge, Department: "CSE"}
		c, w := testContext(t, http.MethodPost, "/bookings",
			`{"room_id":"room-cse","date":"2026-09-07","slot":"FN","purpose":"department planning meeting"}`, incharge)
		handler.Create(c)
		require.Equal(t, http.StatusForbidden, w.Code)
		require.NotNil(t, decodeEnvelope(t, w).Error)
	})
}

func TestBookingHandlerListFilters(t *testing.T) {
	t.Run("admin department and status filters reach the store", func(t *testing.T) {
		repo := &bookingRepoStub{bookings: make(map[string]*models.Booking)}
		handler := newBookingHandler(repo)
		admin := &models.JWTClaims{UserID: "u-1", Role: models.RoleAdmin}

		c, w := testContext(t, http.MethodGet, "/bookings?department=ECE&status=PENDING", "", admin)
		handler.List(c)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ECE", repo.lastFilter.Department)
		assert.Equal(t, models.BookingPending, repo.lastFilter.Status)
	})

	t.Run("faculty department filter is dropped", func(t *testing.T) {
		repo := &bookingRepoStub{bookings: make(map[string]*models.Booking)}
		handler := newBookingHandler(repo)
		faculty := &models.JWTClaims{UserID: "u-42", Role: models.RoleFaculty, Department: "CSE"}

		c, w := testContext(t, http.MethodGet, "/bookings?department=ECE", "", faculty)
		handler.List(c)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, repo.lastFilter.Department)
		assert.Equal(t, "u-42", repo.lastFilter.UserID)
	})
}

func TestBookingHandlerDecide(t *testing.T) {
	incharge := &models.JWTClaims{UserID: "u-1", Role: models.RoleIncharge, Department: "CSE"}

	seed := func() *bookingRepoStub {
		return &bookingRepoStub{bookings: map[string]*models.Booking{
			"bk-1": {ID: "bk-1", RoomID: "room-cse", UserID: "u-42", Status: models.BookingPending},
		}}
	}

	t.Run("approves a pending booking", func(t *testing.T) {
		repo := seed()
		handler := newBookingHandler(repo)
		c, w := testContext(t, http.MethodPatch, "/bookings/bk-1/status", `{"status":"APPROVED"}`, incharge)
		c.Params = gin.Params{{Key: "id", Value: "bk-1"}}
		handler.Decide(c)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.BookingApproved, repo.bookings["bk-1"].Status)
	})

	t.Run("second decision conflicts", func(t *testing.T) {
		repo := seed()
		repo.bookings["bk-1"].Status = models.BookingRejected
		handler := newBookingHandler(repo)
		c, w := testContext(t, http.MethodPatch, "/bookings/bk-1/status", `{"status":"APPROVED"}`, incharge)
		c.Params = gin.Params{{Key: "id", Value: "bk-1"}}
		handler.Decide(c)

		require.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown booking not found", func(t *testing.T) {
		handler := newBookingHandler(seed())
		c, w := testContext(t, http.MethodPatch, "/bookings/bk-9/status", `{"status":"APPROVED"}`, incharge)
		c.Params = gin.Params{{Key: "id", Value: "bk-9"}}
		handler.Decide(c)

		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestBookingHandlerGetScope(t *testing.T) {
	repo := &bookingRepoStub{bookings: map[string]*models.Booking{
		"bk-1": {ID: "bk-1", RoomID: "room-cse", UserID: "u-42", Status: models.BookingPending},
	}}
	handler := newBookingHandler(repo)

	t.Run("out of scope reads as 404", func(t *testing.T) {
		other := &models.JWTClaims{UserID: "u-99", Role: models.RoleFaculty, Department: "CSE"}
		c, w := testContext(t, http.MethodGet, "/bookings/bk-1", "", other)
		c.Params = gin.Params{{Key: "id", Value: "bk-1"}}
		handler.Get(c)
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("owner reads 200", func(t *testing.T) {
		owner := &models.JWTClaims{UserID: "u-42", Role: models.RoleFaculty, Department: "CSE"}
		c, w := testContext(t, http.MethodGet, "/bookings/bk-1", "", owner)
		c.Params = gin.Params{{Key: "id", Value: "bk-1"}}
		handler.Get(c)
		require.Equal(t, http.StatusOK, w.Code)
	})
}
