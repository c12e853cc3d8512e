package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campusrooms/booking-api/internal/models"
	"github.com/campusrooms/booking-api/internal/service"
	appErrors "github.com/campusrooms/booking-api/pkg/errors"
	"github.com/campusrooms/booking-api/pkg/response"
)

// RoomHandler handles room catalog, availability, and review endpoints.
type RoomHandler struct {
	catalog  *service.CatalogService
	bookings *service.BookingService
	reviews  *service.ReviewService
}

// NewRoomHandler creates a new room handler.
func NewRoomHandler(catalog *service.CatalogService, bookings *service.BookingService, reviews *service.ReviewService) *RoomHandler {
	return &RoomHandler{catalog: catalog, bookings: bookings, reviews: reviews}
}

// List godoc
// @Summary List rooms
// @Description List rooms with pagination and filtering
// @Tags Rooms
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param type query string false "Room type filter"
// @Param department query string false "Department filter"
// @Param min_capacity query int false "Minimum capacity"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Router /rooms [get]
func (h *RoomHandler) List(c *gin.Context) {
	var filter models.RoomFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	if capacity, err := strconv.Atoi(c.Query("min_capacity")); err == nil {
		filter.MinCapacity = capacity
	}
	filter.Type = models.RoomType(c.Query("type"))
	filter.Department = c.Query("department")
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	rooms, pagination, err := h.catalog.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, rooms, pagination)
}

// Get godoc
// @Summary Get room
// @Description Get room detail
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rooms/{id} [get]
func (h *RoomHandler) Get(c *gin.Context) {
	room, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}

// Departments godoc
// @Summary List departments
// @Description List distinct departments owning rooms
// @Tags Rooms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /departments [get]
func (h *RoomHandler) Departments(c *gin.Context) {
	departments, err := h.catalog.Departments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, departments, nil)
}

// Snapshot godoc
// @Summary Catalog snapshot
// @Description Bulk payload of rooms, reviews, and caller-visible bookings
// @Tags Rooms
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /catalog [get]
func (h *RoomHandler) Snapshot(c *gin.Context) {
	snapshot, err := h.catalog.Snapshot(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// Create godoc
// @Summary Create room
// @Description Register a new room (admin)
// @Tags Rooms
// @Accept json
// @Produce json
// @Param payload body service.CreateRoomRequest true "Room payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /rooms [post]
func (h *RoomHandler) Create(c *gin.Context) {
	var req service.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid room payload"))
		return
	}

	room, err := h.catalog.CreateRoom(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, room)
}

// Update godoc
// @Summary Update room
// @Description Update room attributes (admin)
// @Tags Rooms
// @Accept json
// @Produce json
// @Param id path string true "Room ID"
// @Param payload body service.UpdateRoomRequest true "Room payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rooms/{id} [put]
func (h *RoomHandler) Update(c *gin.Context) {
	var req service.UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid room payload"))
		return
	}

	room, err := h.catalog.UpdateRoom(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, room, nil)
}

// Delete godoc
// @Summary Delete room
// @Description Remove a room without booking history (admin)
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rooms/{id} [delete]
func (h *RoomHandler) Delete(c *gin.Context) {
	if err := h.catalog.DeleteRoom(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Bookings godoc
// @Summary Room bookings
// @Description List caller-visible bookings of a room
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rooms/{id}/bookings [get]
func (h *RoomHandler) Bookings(c *gin.Context) {
	bookings, err := h.bookings.ListByRoom(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, nil)
}

// Availability godoc
// @Summary Slot availability
// @Description Report occupancy for a room/date/slot triple
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param slot query string true "Slot (FN, AN, FULL)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /rooms/{id}/availability [get]
func (h *RoomHandler) Availability(c *gin.Context) {
	availability, err := h.bookings.Availability(c.Request.Context(), c.Param("id"), c.Query("date"), models.TimeSlot(c.Query("slot")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, availability, nil)
}

// WeekAvailability godoc
// @Summary Weekly availability grid
// @Description Seven-day availability grid for the calendar view
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Param date query string true "Any date inside the week (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /rooms/{id}/availability/week [get]
func (h *RoomHandler) WeekAvailability(c *gin.Context) {
	grid, err := h.bookings.WeekGrid(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grid, nil)
}

// Reviews godoc
// @Summary Room reviews
// @Description List reviews for a room, newest first
// @Tags Reviews
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rooms/{id}/reviews [get]
func (h *RoomHandler) Reviews(c *gin.Context) {
	reviews, err := h.reviews.ListByRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviews, nil)
}

// CreateReview godoc
// @Summary Post room review
// @Description Append a review for a room
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Room ID"
// @Param payload body service.CreateReviewRequest true "Review payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /rooms/{id}/reviews [post]
func (h *RoomHandler) CreateReview(c *gin.Context) {
	var req service.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	review, err := h.reviews.Create(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, review)
}
