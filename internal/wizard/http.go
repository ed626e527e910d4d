package wizard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ceramica-booking/internal/auth"
	"ceramica-booking/internal/booking"
	"ceramica-booking/internal/logging"
)

// Handler exposes the controller over HTTP.
type Handler struct {
	ctrl   *Controller
	logger *zap.Logger
}

func NewHandler(ctrl *Controller, logger *zap.Logger) *Handler {
	return &Handler{ctrl: ctrl, logger: logging.OrNop(logger)}
}

// Register mounts the wizard routes on rg. submitGuards run in front of the
// submit route only.
func (h *Handler) Register(rg *gin.RouterGroup, submitGuards ...gin.HandlerFunc) {
	rg.POST("", h.open)
	rg.GET("/:id", h.view)
	rg.DELETE("/:id", h.close)
	rg.PUT("/:id/class", h.selectClass)
	rg.PUT("/:id/type", h.setType)
	rg.PUT("/:id/date", h.setDate)
	rg.PUT("/:id/time", h.setTime)
	rg.PUT("/:id/notes", h.setNotes)
	rg.POST("/:id/next", h.next)
	rg.POST("/:id/previous", h.previous)
	rg.GET("/:id/notices", h.drainNotices)
	rg.POST("/:id/submit", append(submitGuards, h.submit)...)
}

// POST /api/wizard
func (h *Handler) open(c *gin.Context) {
	id, err := h.ctrl.Open(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	v, err := h.ctrl.View(c.Request.Context(), id, auth.ViewerFromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// GET /api/wizard/:id
func (h *Handler) view(c *gin.Context) {
	v, err := h.ctrl.View(c.Request.Context(), c.Param("id"), auth.ViewerFromContext(c))
	h.respond(c, v, err)
}

// DELETE /api/wizard/:id
func (h *Handler) close(c *gin.Context) {
	if err := h.ctrl.Close(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type classReq struct {
	ClassID string `json:"classId" binding:"required"`
}

// PUT /api/wizard/:id/class
func (h *Handler) selectClass(c *gin.Context) {
	var req classReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := h.ctrl.SelectClass(c.Request.Context(), c.Param("id"), auth.ViewerFromContext(c), req.ClassID)
	h.respond(c, v, err)
}

type typeReq struct {
	BookingType string `json:"bookingType" binding:"required"`
}

// PUT /api/wizard/:id/type
func (h *Handler) setType(c *gin.Context) {
	var req typeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := h.ctrl.SetBookingType(c.Request.Context(), c.Param("id"), auth.ViewerFromContext(c), req.BookingType)
	h.respond(c, v, err)
}

type dateReq struct {
	BookingDate string `json:"bookingDate" binding:"required"`
}

// PUT /api/wizard/:id/date
func (h *Handler) setDate(c *gin.Context) {
	var req dateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := h.ctrl.SetBookingDate(c.Request.Context(), c.Param("id"), auth.ViewerFromContext(c), req.BookingDate)
	h.respond(c, v, err)
}

type timeReq struct {
	StartTime string `json:"startTime" binding:"required"`
}

// PUT /api/wizard/:id/time
func (h *Handler) setTime(c *gin.Context) {
	var req timeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := h.ctrl.SetStartTime(c.Request.Context(), c.Param("id"), auth.ViewerFromContext(c), req.StartTime)
	h.respond(c, v, err)
}

type notesReq struct {
	Notes string `json:"notes"`
}

// PUT /api/wizard/:id/notes
func (h *Handler) setNotes(c *gin.Context) {
	var req notesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := h.ctrl.SetNotes(c.Request.Context(), c.Param("id"), auth.ViewerFromContext(c), req.Notes)
	h.respond(c, v, err)
}

// POST /api/wizard/:id/next
func (h *Handler) next(c *gin.Context) {
	v, err := h.ctrl.Next(c.Request.Context(), c.Param("id"), auth.ViewerFromContext(c))
	h.respond(c, v, err)
}

// POST /api/wizard/:id/previous
func (h *Handler) previous(c *gin.Context) {
	v, err := h.ctrl.Previous(c.Request.Context(), c.Param("id"), auth.ViewerFromContext(c))
	h.respond(c, v, err)
}

// GET /api/wizard/:id/notices
func (h *Handler) drainNotices(c *gin.Context) {
	notices, err := h.ctrl.Notices(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notices": notices})
}

// POST /api/wizard/:id/submit
func (h *Handler) submit(c *gin.Context) {
	res, err := h.ctrl.Submit(c.Request.Context(), c.Param("id"), auth.ViewerFromContext(c), auth.TokenFromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusCreated
	if res.Record == nil {
		status = http.StatusConflict
	}
	c.JSON(status, res)
}

func (h *Handler) respond(c *gin.Context, v *View, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, ErrSubmitInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrUnknownClass),
		errors.Is(err, booking.ErrNoClass),
		errors.Is(err, booking.ErrDateUnavailable),
		errors.Is(err, booking.ErrSlotUnavailable),
		errors.Is(err, booking.ErrInvalidType),
		errors.Is(err, booking.ErrStepIncomplete),
		errors.Is(err, booking.ErrFirstStep),
		errors.Is(err, booking.ErrLastStep):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.logger.Error("wizard request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
