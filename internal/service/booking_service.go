package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusrooms/booking-api/internal/models"
	"github.com/campusrooms/booking-api/pkg/config"
	appErrors "github.com/campusrooms/booking-api/pkg/errors"
)

const catalogCachePattern = "catalog:*"

type bookingRepository interface {
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
	ListByRoom(ctx context.Context, roomID string) ([]models.Booking, error)
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	Create(ctx context.Context, booking *models.Booking) error
	UpdateStatus(ctx context.Context, id string, status models.BookingStatus) (int64, error)
	UpdateStatusIfPending(ctx context.Context, id string, status models.BookingStatus) (int64, error)
}

type bookingRoomLookup interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

type bookingAuditLog interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// CreateBookingRequest describes the payload for a new booking request.
// The requester identity comes from the token, never from the payload.
type CreateBookingRequest struct {
	RoomID  string          `json:"room_id" validate:"required"`
	Date    string          `json:"date" validate:"required,datetime=2006-01-02"`
	Slot    models.TimeSlot `json:"slot" validate:"required,oneof=FN AN FULL"`
	Purpose string          `json:"purpose" validate:"required,min=10"`
}

// DecideBookingRequest approves or rejects a pending booking.
type DecideBookingRequest struct {
	Status models.BookingStatus `json:"status" validate:"required,oneof=APPROVED REJECTED"`
}

// BookingService owns the booking lifecycle: creation and the
// pending -> approved/rejected state machine. All status transitions in
// the system go through Decide.
type BookingService struct {
	repo      bookingRepository
	rooms     bookingRoomLookup
	audit     bookingAuditLog
	cache     cacheInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       config.BookingConfig
}

// NewBookingService creates a new booking service instance.
func NewBookingService(repo bookingRepository, rooms bookingRoomLookup, audit bookingAuditLog, cache cacheInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg config.BookingConfig) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{repo: repo, rooms: rooms, audit: audit, cache: cache, metrics: metrics, validator: validate, logger: logger, cfg: cfg}
}

// List returns bookings visible to the caller, paginated. Faculty see
// only their own requests, incharges their department, admins all.
func (s *BookingService) List(ctx context.Context, claims *models.JWTClaims, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error) {
	scoped, err := ScopedBookingFilter(claims, filter)
	if err != nil {
		return nil, nil, err
	}

	bookings, total, err := s.repo.List(ctx, scoped)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}

	page := scoped.Page
	if page < 1 {
		page = 1
	}
	size := scoped.PageSize
	if size <= 0 {
		size = 20
	}

	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return bookings, pagination, nil
}

// Get returns a single booking when it lies inside the caller's scope.
// Out-of-scope bookings read as not found rather than leaking existence.
func (s *BookingService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}

	room, err := s.rooms.FindByID(ctx, booking.RoomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	if !CanViewBooking(claims, booking, room.Department) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
	}
	return booking, nil
}

// Create submits a new booking request in state PENDING. Overlapping
// requests for the same room/date/slot are allowed to coexist; the
// incharge resolves contention by approving exactly one of them.
func (s *BookingService) Create(ctx context.Context, claims *models.JWTClaims, req CreateBookingRequest) (*models.Booking, error) {
	if err := CanCreateBooking(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	if _, err := s.rooms.FindByID(ctx, req.RoomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	booking := &models.Booking{
		RoomID:         req.RoomID,
		UserID:         claims.UserID,
		UserName:       claims.FullName,
		UserDepartment: claims.Department,
		Date:           req.Date,
		Slot:           req.Slot,
		Purpose:        req.Purpose,
		Status:         models.BookingPending,
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to store booking")
	}

	s.metrics.RecordBookingCreated()
	s.recordAudit(ctx, claims, models.AuditActionBookingCreate, booking.ID, map[string]interface{}{
		"room_id": booking.RoomID,
		"date":    booking.Date,
		"slot":    booking.Slot,
	})
	s.invalidateCatalog(ctx)

	return booking, nil
}

// Decide transitions a pending booking to APPROVED or REJECTED. Only an
// incharge of the room's department or an admin may decide. By default
// terminal states are locked and re-deciding fails with a conflict; the
// AllowRedecide flag restores the legacy always-allowed behaviour.
func (s *BookingService) Decide(ctx context.Context, claims *models.JWTClaims, id string, req DecideBookingRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}

	room, err := s.rooms.FindByID(ctx, booking.RoomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	if err := CanDecideBooking(claims, room.Department); err != nil {
		return nil, err
	}

	var affected int64
	if s.cfg.AllowRedecide {
		affected, err = s.repo.UpdateStatus(ctx, id, req.Status)
	} else {
		if booking.Status.Terminal() {
			return nil, appErrors.Clone(appErrors.ErrConflict, "booking already decided")
		}
		affected, err = s.repo.UpdateStatusIfPending(ctx, id, req.Status)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to update booking status")
	}
	if affected == 0 {
		if s.cfg.AllowRedecide {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		// Lost the race: another decision landed first.
		return nil, appErrors.Clone(appErrors.ErrConflict, "booking already decided")
	}

	prev := booking.Status
	booking.Status = req.Status

	s.metrics.RecordBookingDecision(req.Status)
	s.recordAudit(ctx, claims, models.AuditActionBookingDecision, booking.ID, map[string]interface{}{
		"from": prev,
		"to":   req.Status,
	})
	s.invalidateCatalog(ctx)

	return booking, nil
}

// ListByRoom returns the caller-visible bookings of a single room.
func (s *BookingService) ListByRoom(ctx context.Context, claims *models.JWTClaims, roomID string) ([]models.Booking, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	bookings, err := s.repo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list room bookings")
	}

	return FilterBookings(claims, bookings, map[string]string{room.ID: room.Department}), nil
}

// Availability reports occupancy of a single room/date/slot triple.
// All slots of the date are considered so a FULL booking blocks both
// halves and any half blocks FULL.
func (s *BookingService) Availability(ctx context.Context, roomID, date string, slot models.TimeSlot) (*models.SlotAvailability, error) {
	if !slot.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid time slot")
	}
	bookings, err := s.roomDateBookings(ctx, roomID, date)
	if err != nil {
		return nil, err
	}
	availability := SlotAvailability(bookings, roomID, date, slot)
	return &availability, nil
}

// WeekGrid returns a 7-day availability grid for the calendar view.
func (s *BookingService) WeekGrid(ctx context.Context, roomID, date string) ([]models.DayAvailability, error) {
	parsed, err := parseISODate(date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date")
	}
	if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	bookings, err := s.repo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list room bookings")
	}
	return WeekAvailability(bookings, roomID, parsed), nil
}

func (s *BookingService) roomDateBookings(ctx context.Context, roomID, date string) ([]models.Booking, error) {
	if _, err := parseISODate(date); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date")
	}
	if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	bookings, err := s.repo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list room bookings")
	}
	return bookings, nil
}

func (s *BookingService) recordAudit(ctx context.Context, claims *models.JWTClaims, action, resourceID string, values map[string]interface{}) {
	if s.audit == nil || claims == nil {
		return
	}
	payload, _ := json.Marshal(values)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   "bookings",
		ResourceID: &resourceID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record booking audit log", zap.Error(err))
	}
}

func (s *BookingService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, catalogCachePattern); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}
