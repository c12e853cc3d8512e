package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusrooms/booking-api/internal/models"
)

const bookingColumns = "b.id, b.room_id, b.user_id, b.user_name, b.user_department, b.date, b.slot, b.purpose, b.status, b.created_at, b.updated_at"

// BookingRepository handles persistence for booking requests.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository instantiates a booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// List returns bookings matching provided filters. The department
// filter joins through rooms because scope is defined by the room's
// owning department, not the requester's.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	base := "FROM bookings b JOIN rooms r ON r.id = b.room_id WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("b.room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("b.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("r.department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("b.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Date != "" {
		conditions = append(conditions, fmt.Sprintf("b.date = $%d", len(args)+1))
		args = append(args, filter.Date)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"date":       true,
		"status":     true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY b.%s %s LIMIT %d OFFSET %d", bookingColumns, base, sortBy, order, size, offset)

	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	return bookings, total, nil
}

// ListAll returns every booking for the bulk snapshot.
func (r *BookingRepository) ListAll(ctx context.Context) ([]models.Booking, error) {
	query := fmt.Sprintf("SELECT %s FROM bookings b ORDER BY b.created_at DESC", bookingColumns)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query); err != nil {
		return nil, fmt.Errorf("list all bookings: %w", err)
	}
	return bookings, nil
}

// ListByRoom returns all bookings for a room.
func (r *BookingRepository) ListByRoom(ctx context.Context, roomID string) ([]models.Booking, error) {
	query := fmt.Sprintf("SELECT %s FROM bookings b WHERE b.room_id = $1 ORDER BY b.date ASC, b.slot ASC", bookingColumns)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, roomID); err != nil {
		return nil, fmt.Errorf("list room bookings: %w", err)
	}
	return bookings, nil
}

// ListForExport returns bookings matching persisted export parameters.
// Unset fields are not constrained; dates bound an inclusive range.
func (r *BookingRepository) ListForExport(ctx context.Context, params models.ExportJobParams) ([]models.Booking, error) {
	base := fmt.Sprintf("SELECT %s FROM bookings b JOIN rooms r ON r.id = b.room_id WHERE 1=1", bookingColumns)
	var conditions []string
	var args []interface{}

	if params.Department != "" {
		conditions = append(conditions, fmt.Sprintf("r.department = $%d", len(args)+1))
		args = append(args, params.Department)
	}
	if params.Status != "" {
		conditions = append(conditions, fmt.Sprintf("b.status = $%d", len(args)+1))
		args = append(args, params.Status)
	}
	if params.FromDate != "" {
		conditions = append(conditions, fmt.Sprintf("b.date >= $%d", len(args)+1))
		args = append(args, params.FromDate)
	}
	if params.ToDate != "" {
		conditions = append(conditions, fmt.Sprintf("b.date <= $%d", len(args)+1))
		args = append(args, params.ToDate)
	}

	query := base
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY b.date ASC, b.created_at ASC"

	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("list bookings for export: %w", err)
	}
	return bookings, nil
}

// FindByID loads a booking by identifier.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	query := fmt.Sprintf("SELECT %s FROM bookings b WHERE b.id = $1", bookingColumns)
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// Create inserts a new booking record.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	const query = `INSERT INTO bookings (id, room_id, user_id, user_name, user_department, date, slot, purpose, status, created_at, updated_at)
VALUES (:id, :room_id, :user_id, :user_name, :user_department, :date, :slot, :purpose, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// UpdateStatus mutates the booking status unconditionally. createdAt is
// never touched. Returns the number of rows affected.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, status models.BookingStatus) (int64, error) {
	const query = `UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("update booking status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update booking status rows: %w", err)
	}
	return affected, nil
}

// UpdateStatusIfPending mutates the status only when the booking is
// still pending. Zero rows affected means the booking was already
// decided, which lets concurrent decisions race safely: exactly one
// wins at the database.
func (r *BookingRepository) UpdateStatusIfPending(ctx context.Context, id string, status models.BookingStatus) (int64, error) {
	const query = `UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1 AND status = 'PENDING'`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("update pending booking status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update pending booking status rows: %w", err)
	}
	return affected, nil
}
