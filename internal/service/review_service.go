package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusrooms/booking-api/internal/models"
	appErrors "github.com/campusrooms/booking-api/pkg/errors"
)

type reviewRepository interface {
	ListByRoom(ctx context.Context, roomID string) ([]models.Review, error)
	Create(ctx context.Context, review *models.Review) error
}

// CreateReviewRequest is the payload for posting a room review.
type CreateReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required"`
}

// ReviewService manages room reviews. Reviews are append-only; any
// authenticated user may post one for any room.
type ReviewService struct {
	repo      reviewRepository
	rooms     bookingRoomLookup
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReviewService creates a new review service instance.
func NewReviewService(repo reviewRepository, rooms bookingRoomLookup, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{repo: repo, rooms: rooms, cache: cache, validator: validate, logger: logger}
}

// ListByRoom returns the reviews for a room, newest first.
func (s *ReviewService) ListByRoom(ctx context.Context, roomID string) ([]models.Review, error) {
	if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	reviews, err := s.repo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return reviews, nil
}

// Create appends a review for a room. The reviewer identity is taken
// from the token, never from the payload.
func (s *ReviewService) Create(ctx context.Context, claims *models.JWTClaims, roomID string, req CreateReviewRequest) (*models.Review, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	review := &models.Review{
		RoomID:   roomID,
		UserID:   claims.UserID,
		UserName: claims.FullName,
		Rating:   req.Rating,
		Comment:  req.Comment,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to store review")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, catalogCachePattern); err != nil {
			s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
		}
	}
	return review, nil
}
