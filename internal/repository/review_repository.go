package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusrooms/booking-api/internal/models"
)

const reviewColumns = "id, room_id, user_id, user_name, rating, comment, created_at"

// ReviewRepository handles persistence for room reviews.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository instantiates a review repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// ListByRoom returns reviews for a room, newest first.
func (r *ReviewRepository) ListByRoom(ctx context.Context, roomID string) ([]models.Review, error) {
	query := fmt.Sprintf("SELECT %s FROM reviews WHERE room_id = $1 ORDER BY created_at DESC", reviewColumns)
	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, query, roomID); err != nil {
		return nil, fmt.Errorf("list room reviews: %w", err)
	}
	return reviews, nil
}

// ListAll returns every review for the bulk snapshot.
func (r *ReviewRepository) ListAll(ctx context.Context) ([]models.Review, error) {
	query := fmt.Sprintf("SELECT %s FROM reviews ORDER BY created_at DESC", reviewColumns)
	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, query); err != nil {
		return nil, fmt.Errorf("list all reviews: %w", err)
	}
	return reviews, nil
}

// Create inserts a new review record. Reviews are append-only.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO reviews (id, room_id, user_id, user_name, rating, comment, created_at)
VALUES (:id, :room_id, :user_id, :user_name, :rating, :comment, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}
