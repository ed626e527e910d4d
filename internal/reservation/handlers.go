package reservation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ceramica-booking/internal/auth"
	"ceramica-booking/internal/booking"
	"ceramica-booking/internal/logging"
)

type Handlers struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandlers(svc *Service, logger *zap.Logger) *Handlers {
	return &Handlers{svc: svc, logger: logging.OrNop(logger)}
}

// Register mounts the public grid on r and the booking routes behind
// authentication.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/public/classes-grid", h.ClassGridHandler)

	bookings := r.Group("/bookings", auth.Require())
	bookings.POST("", h.CreateBookingHandler)
	bookings.GET("/me", h.MyBookingsHandler)
	bookings.DELETE("/:id", h.CancelBookingHandler)
}

// GET /public/classes-grid
func (h *Handlers) ClassGridHandler(c *gin.Context) {
	grid, err := h.svc.ClassGrid(c.Request.Context())
	if err != nil {
		h.internal(c, err)
		return
	}
	c.JSON(http.StatusOK, grid)
}

type createBookingReq struct {
	ClassEntity       booking.ClassRef `json:"classEntity"`
	BookingDate       string           `json:"bookingDate" binding:"required"`
	StartTime         string           `json:"startTime" binding:"required"`
	EndTime           string           `json:"endTime" binding:"required"`
	BookingType       string           `json:"bookingType" binding:"required"`
	RecurrenceEndDate *string          `json:"recurrenceEndDate"`
	Notes             string           `json:"notes"`
}

// POST /bookings
func (h *Handlers) CreateBookingHandler(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ClassEntity.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "classEntity.id required"})
		return
	}

	user := auth.UserFromContext(c)
	rec, err := h.svc.Book(c.Request.Context(), *user, booking.SubmitRequest{
		ClassEntity:       req.ClassEntity,
		BookingDate:       req.BookingDate,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		BookingType:       booking.BookingType(req.BookingType),
		RecurrenceEndDate: req.RecurrenceEndDate,
		Notes:             req.Notes,
	})
	switch {
	case errors.Is(err, ErrNoAvailability):
		c.JSON(http.StatusConflict, gin.H{"error": "no availability"})
		return
	case errors.Is(err, ErrInvalidBooking):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.internal(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// GET /bookings/me
func (h *Handlers) MyBookingsHandler(c *gin.Context) {
	list, err := h.svc.MyBookings(c.Request.Context(), *auth.UserFromContext(c))
	if err != nil {
		h.internal(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// DELETE /bookings/:id
func (h *Handlers) CancelBookingHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		return
	}
	err = h.svc.Cancel(c.Request.Context(), *auth.UserFromContext(c), id.String())
	switch {
	case errors.Is(err, ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
	case errors.Is(err, ErrAlreadyCancelled):
		c.JSON(http.StatusConflict, gin.H{"error": "booking already cancelled"})
	case err != nil:
		h.internal(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func (h *Handlers) internal(c *gin.Context, err error) {
	h.logger.Error("reservation request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
