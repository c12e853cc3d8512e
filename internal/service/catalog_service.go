package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusrooms/booking-api/internal/models"
	"github.com/campusrooms/booking-api/pkg/config"
	appErrors "github.com/campusrooms/booking-api/pkg/errors"
)

const catalogSnapshotKey = "catalog:snapshot"

type catalogRoomRepository interface {
	List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error)
	ListAll(ctx context.Context) ([]models.Room, error)
	FindByID(ctx context.Context, id string) (*models.Room, error)
	Departments(ctx context.Context) ([]string, error)
	Create(ctx context.Context, room *models.Room) error
	Update(ctx context.Context, room *models.Room) error
	Delete(ctx context.Context, id string) error
	CountBookings(ctx context.Context, id string) (int, error)
}

type catalogReviewRepository interface {
	ListAll(ctx context.Context) ([]models.Review, error)
}

type catalogBookingRepository interface {
	ListAll(ctx context.Context) ([]models.Booking, error)
}

// CreateRoomRequest is the admin payload for registering a room.
type CreateRoomRequest struct {
	Name        string   `json:"name" validate:"required"`
	Type        string   `json:"type" validate:"required,oneof=classroom seminar-hall meeting-hall lab"`
	Department  string   `json:"department" validate:"required"`
	Capacity    int      `json:"capacity" validate:"required,gt=0"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	Features    []string `json:"features"`
}

// UpdateRoomRequest carries partial room updates; nil fields are untouched.
type UpdateRoomRequest struct {
	Name        *string  `json:"name"`
	Type        *string  `json:"type" validate:"omitempty,oneof=classroom seminar-hall meeting-hall lab"`
	Department  *string  `json:"department"`
	Capacity    *int     `json:"capacity" validate:"omitempty,gt=0"`
	Description *string  `json:"description"`
	Image       *string  `json:"image"`
	Features    []string `json:"features"`
}

// CatalogService serves the room catalog: listing, lookup, admin CRUD,
// and the bulk snapshot the presentation layer loads at startup. The
// snapshot is cached in Redis and scope-filtered per caller after the
// cache read, so one cached payload serves every role.
type CatalogService struct {
	rooms     catalogRoomRepository
	reviews   catalogReviewRepository
	bookings  catalogBookingRepository
	audit     bookingAuditLog
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       config.CatalogConfig
}

// NewCatalogService creates a new catalog service instance.
func NewCatalogService(rooms catalogRoomRepository, reviews catalogReviewRepository, bookings catalogBookingRepository, audit bookingAuditLog, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg config.CatalogConfig) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{rooms: rooms, reviews: reviews, bookings: bookings, audit: audit, cache: cache, validator: validate, logger: logger, cfg: cfg}
}

// List returns rooms matching the filter, paginated. The catalog is
// visible to every authenticated user regardless of department.
func (s *CatalogService) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, *models.Pagination, error) {
	rooms, total, err := s.rooms.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return rooms, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single room by id.
func (s *CatalogService) Get(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.rooms.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	return room, nil
}

// Departments lists the distinct departments owning at least one room.
func (s *CatalogService) Departments(ctx context.Context) ([]string, error) {
	departments, err := s.rooms.Departments(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return departments, nil
}

// Snapshot returns the full catalog payload scoped to the caller:
// every room and review, plus the bookings the caller may see.
func (s *CatalogService) Snapshot(ctx context.Context, claims *models.JWTClaims) (*models.CatalogSnapshot, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}

	var snapshot models.CatalogSnapshot
	hit, err := s.cache.Get(ctx, catalogSnapshotKey, &snapshot)
	if err != nil {
		s.logger.Warn("catalog cache read failed", zap.Error(err))
	}
	if !hit {
		built, err := s.buildSnapshot(ctx)
		if err != nil {
			return nil, err
		}
		snapshot = *built
		if err := s.cache.Set(ctx, catalogSnapshotKey, snapshot, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("catalog cache write failed", zap.Error(err))
		}
	}

	roomDepartments := make(map[string]string, len(snapshot.Rooms))
	for _, room := range snapshot.Rooms {
		roomDepartments[room.ID] = room.Department
	}
	snapshot.Bookings = FilterBookings(claims, snapshot.Bookings, roomDepartments)
	return &snapshot, nil
}

func (s *CatalogService) buildSnapshot(ctx context.Context) (*models.CatalogSnapshot, error) {
	rooms, err := s.rooms.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load rooms")
	}
	reviews, err := s.reviews.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load reviews")
	}
	bookings, err := s.bookings.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load bookings")
	}
	return &models.CatalogSnapshot{Rooms: rooms, Reviews: reviews, Bookings: bookings}, nil
}

// CreateRoom registers a new room. Admin only; the handler enforces the
// role, the service validates the payload.
func (s *CatalogService) CreateRoom(ctx context.Context, claims *models.JWTClaims, req CreateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}

	room := &models.Room{
		Name:        req.Name,
		Type:        models.RoomType(req.Type),
		Department:  req.Department,
		Capacity:    req.Capacity,
		Description: req.Description,
		Image:       req.Image,
		Features:    req.Features,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to store room")
	}

	s.recordAudit(ctx, claims, models.AuditActionRoomCreate, room.ID, room)
	s.invalidate(ctx)
	return room, nil
}

// UpdateRoom applies a partial update to an existing room.
func (s *CatalogService) UpdateRoom(ctx context.Context, claims *models.JWTClaims, id string, req UpdateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}

	room, err := s.rooms.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	if req.Name != nil {
		room.Name = *req.Name
	}
	if req.Type != nil {
		room.Type = models.RoomType(*req.Type)
	}
	if req.Department != nil {
		room.Department = *req.Department
	}
	if req.Capacity != nil {
		room.Capacity = *req.Capacity
	}
	if req.Description != nil {
		room.Description = *req.Description
	}
	if req.Image != nil {
		room.Image = *req.Image
	}
	if req.Features != nil {
		room.Features = req.Features
	}
	room.UpdatedAt = time.Now().UTC()

	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to update room")
	}

	s.recordAudit(ctx, claims, models.AuditActionRoomUpdate, room.ID, room)
	s.invalidate(ctx)
	return room, nil
}

// DeleteRoom removes a room that has no booking history. Bookings are
// never deleted, so a room with any booking cannot be removed.
func (s *CatalogService) DeleteRoom(ctx context.Context, claims *models.JWTClaims, id string) error {
	if _, err := s.rooms.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	count, err := s.rooms.CountBookings(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count room bookings")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "room has booking history")
	}

	if err := s.rooms.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to delete room")
	}

	s.recordAudit(ctx, claims, models.AuditActionRoomDelete, id, nil)
	s.invalidate(ctx)
	return nil
}

func (s *CatalogService) recordAudit(ctx context.Context, claims *models.JWTClaims, action, resourceID string, values interface{}) {
	if s.audit == nil || claims == nil {
		return
	}
	var payload []byte
	if values != nil {
		payload, _ = json.Marshal(values)
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   "rooms",
		ResourceID: &resourceID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record room audit log", zap.Error(err))
	}
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, catalogCachePattern); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}
