package service

import (
	"github.com/campusrooms/booking-api/internal/models"
	appErrors "github.com/campusrooms/booking-api/pkg/errors"
)

// Scope resolution: given an authenticated user, compute the subset of
// bookings the user may see, and whether the user may perform a given
// write. Reads filter silently; unauthorized writes return an error.
// Nothing here mutates the underlying records.

// ScopedBookingFilter narrows a booking filter to the caller's
// visibility. Faculty are pinned to their own bookings with any
// department filter cleared, incharges to their department; admin
// filters pass through untouched.
func ScopedBookingFilter(claims *models.JWTClaims, filter models.BookingFilter) (models.BookingFilter, error) {
	if claims == nil {
		return filter, appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleAdmin:
		return filter, nil
	case models.RoleIncharge:
		filter.Department = claims.Department
		return filter, nil
	case models.RoleFaculty:
		filter.UserID = claims.UserID
		filter.Department = ""
		return filter, nil
	}
	return filter, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
}

// FilterBookings returns the subset of bookings visible to the caller.
// roomDepartments maps room id to its owning department; bookings whose
// room is unknown are dropped for non-admins rather than leaked.
func FilterBookings(claims *models.JWTClaims, bookings []models.Booking, roomDepartments map[string]string) []models.Booking {
	if claims == nil {
		return nil
	}
	if claims.Role == models.RoleAdmin {
		return bookings
	}

	visible := make([]models.Booking, 0, len(bookings))
	for _, b := range bookings {
		switch claims.Role {
		case models.RoleIncharge:
			if dept, ok := roomDepartments[b.RoomID]; ok && dept == claims.Department {
				visible = append(visible, b)
			}
		case models.RoleFaculty:
			if b.UserID == claims.UserID {
				visible = append(visible, b)
			}
		}
	}
	return visible
}

// CanCreateBooking reports whether the caller may submit a booking
// request. Faculty may book any room regardless of department.
func CanCreateBooking(claims *models.JWTClaims) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleFaculty {
		return appErrors.Clone(appErrors.ErrForbidden, "only faculty may request bookings")
	}
	return nil
}

// CanDecideBooking reports whether the caller may approve or reject a
// booking for a room owned by roomDepartment. Incharges act only inside
// their own department; admins are global.
func CanDecideBooking(claims *models.JWTClaims, roomDepartment string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleIncharge:
		if claims.Department == roomDepartment {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "booking belongs to another department")
	}
	return appErrors.Clone(appErrors.ErrForbidden, "role may not decide bookings")
}

// CanViewBooking reports whether a single booking is inside the
// caller's scope.
func CanViewBooking(claims *models.JWTClaims, booking *models.Booking, roomDepartment string) bool {
	if claims == nil || booking == nil {
		return false
	}
	switch claims.Role {
	case models.RoleAdmin:
		return true
	case models.RoleIncharge:
		return claims.Department == roomDepartment
	case models.RoleFaculty:
		return claims.UserID == booking.UserID
	}
	return false
}
