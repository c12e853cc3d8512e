package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusrooms/booking-api/internal/models"
)

func newBookingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func bookingRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "room_id", "user_id", "user_name", "user_department", "date", "slot", "purpose", "status", "created_at", "updated_at"})
	now := time.Now().UTC()
	for _, id := range ids {
		rows.AddRow(id, "room-1", "u-42", "Dr. Rao", "CSE", "2026-09-07", "FN", "guest lecture on compilers", "PENDING", now, now)
	}
	return rows
}

func TestBookingRepositoryListDepartmentJoin(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT b.id, b.room_id, b.user_id, b.user_name, b.user_department, b.date, b.slot, b.purpose, b.status, b.created_at, b.updated_at FROM bookings b JOIN rooms r ON r.id = b.room_id WHERE 1=1 AND r.department = $1 AND b.status = $2 ORDER BY b.created_at DESC LIMIT 20 OFFSET 0`)).
		WithArgs("CSE", models.BookingPending).
		WillReturnRows(bookingRows("b1"))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM bookings b JOIN rooms r ON r.id = b.room_id WHERE 1=1 AND r.department = $1 AND b.status = $2`)).
		WithArgs("CSE", models.BookingPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	bookings, total, err := repo.List(context.Background(), models.BookingFilter{Department: "CSE", Status: models.BookingPending})
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "b1", bookings[0].ID)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryListSanitizesSort(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	// An unknown sort column falls back to created_at.
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY b.created_at DESC LIMIT 20 OFFSET 0`)).
		WillReturnRows(bookingRows())
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*)`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.List(context.Background(), models.BookingFilter{SortBy: "purpose; DROP TABLE bookings"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO bookings (id, room_id, user_id, user_name, user_department, date, slot, purpose, status, created_at, updated_at)`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	booking := &models.Booking{
		RoomID: "room-1", UserID: "u-42", UserName: "Dr. Rao", UserDepartment: "CSE",
		Date: "2026-09-07", Slot: models.SlotMorning, Purpose: "guest lecture on compilers",
		Status: models.BookingPending,
	}
	err := repo.Create(context.Background(), booking)
	require.NoError(t, err)
	assert.NotEmpty(t, booking.ID)
	assert.False(t, booking.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryUpdateStatusIfPending(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	t.Run("pending row updated", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1 AND status = 'PENDING'`)).
			WithArgs("b1", models.BookingApproved, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		affected, err := repo.UpdateStatusIfPending(context.Background(), "b1", models.BookingApproved)
		require.NoError(t, err)
		assert.EqualValues(t, 1, affected)
	})

	t.Run("already decided row untouched", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`AND status = 'PENDING'`)).
			WithArgs("b1", models.BookingRejected, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))

		affected, err := repo.UpdateStatusIfPending(context.Background(), "b1", models.BookingRejected)
		require.NoError(t, err)
		assert.EqualValues(t, 0, affected)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryUpdateStatusUnconditional(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1`)).
		WithArgs("b1", models.BookingRejected, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := repo.UpdateStatus(context.Background(), "b1", models.BookingRejected)
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryListForExport(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings b JOIN rooms r ON r.id = b.room_id WHERE 1=1 AND r.department = $1 AND b.status = $2 AND b.date >= $3 AND b.date <= $4 ORDER BY b.date ASC, b.created_at ASC`)).
		WithArgs("CSE", models.BookingApproved, "2026-09-01", "2026-09-30").
		WillReturnRows(bookingRows("b1", "b2"))

	bookings, err := repo.ListForExport(context.Background(), models.ExportJobParams{
		Department: "CSE",
		Status:     models.BookingApproved,
		FromDate:   "2026-09-01",
		ToDate:     "2026-09-30",
	})
	require.NoError(t, err)
	assert.Len(t, bookings, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings b WHERE b.id = $1`)).
		WithArgs("b1").
		WillReturnRows(bookingRows("b1"))

	booking, err := repo.FindByID(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, "b1", booking.ID)
	assert.Equal(t, models.SlotMorning, booking.Slot)
	assert.NoError(t, mock.ExpectationsWereMet())
}
