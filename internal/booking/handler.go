package booking

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yoganurrahman/moolai-gym-api/internal/api"
	"github.com/yoganurrahman/moolai-gym-api/internal/auth"
	"github.com/yoganurrahman/moolai-gym-api/internal/entitlement"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Request godoc
// @Summary      Book a session
// @Description  Books the caller into a session, confirmed if capacity allows, waitlisted otherwise. An optional grant_id pins the funding grant.
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int                    true   "Session instance ID"
// @Param        request  body      RequestBookingRequest  false  "Optional funding grant"
// @Success      201      {object}  Booking
// @Failure      402      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /sessions/{id}/book [post]
func (h *Handler) Request(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	instanceID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid session ID"})
		return
	}

	var req RequestBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
			return
		}
	}

	booking, err := h.service.Request(c.Request.Context(), userID, instanceID, req.GrantID)
	if err != nil {
		h.writeBookingError(c, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// Cancel godoc
// @Summary      Cancel a booking
// @Description  Cancels the caller's booking; staff may cancel any booking regardless of the cutoff. Freed spots promote the waitlist.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Booking ID"
// @Success      200  {object}  BookingResult
// @Failure      403  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Failure      409  {object}  api.ErrorResponse
// @Router       /bookings/{id} [delete]
func (h *Handler) Cancel(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	bookingID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid booking ID"})
		return
	}

	role, _ := c.Get("user_role")
	force := role == "staff" || role == "admin"

	result, err := h.service.Cancel(c.Request.Context(), userID, bookingID, force)
	if err != nil {
		h.writeBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListMine godoc
// @Summary      List my bookings
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  BookingWithDetails
// @Router       /me/bookings [get]
func (h *Handler) ListMine(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	bookings, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to load bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// MarkAttended godoc
// @Summary      Mark a booking attended
// @Description  Settles a confirmed booking after the session ended.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Booking ID"
// @Success      200  {object}  api.MessageResponse
// @Failure      409  {object}  api.ErrorResponse
// @Router       /admin/bookings/{id}/attend [post]
func (h *Handler) MarkAttended(c *gin.Context) {
	h.markOutcome(c, h.service.MarkAttended)
}

// MarkNoShow godoc
// @Summary      Mark a booking no-show
// @Description  The grant debit is kept; the spot was held for the member.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Booking ID"
// @Success      200  {object}  api.MessageResponse
// @Failure      409  {object}  api.ErrorResponse
// @Router       /admin/bookings/{id}/no-show [post]
func (h *Handler) MarkNoShow(c *gin.Context) {
	h.markOutcome(c, h.service.MarkNoShow)
}

// Roster godoc
// @Summary      Session roster
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Session instance ID"
// @Success      200  {array}   BookingWithDetails
// @Router       /admin/sessions/{id}/roster [get]
func (h *Handler) Roster(c *gin.Context) {
	h.listForInstance(c, h.service.Roster)
}

// WaitlistView godoc
// @Summary      Session waitlist
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Session instance ID"
// @Success      200  {array}   BookingWithDetails
// @Router       /admin/sessions/{id}/waitlist [get]
func (h *Handler) WaitlistView(c *gin.Context) {
	h.listForInstance(c, h.service.Waitlist)
}

func (h *Handler) markOutcome(c *gin.Context, op func(ctx context.Context, bookingID int) error) {
	bookingID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid booking ID"})
		return
	}

	if err := op(c.Request.Context(), bookingID); err != nil {
		h.writeBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Booking updated"})
}

func (h *Handler) listForInstance(c *gin.Context, op func(ctx context.Context, instanceID int) ([]BookingWithDetails, error)) {
	instanceID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid session ID"})
		return
	}

	bookings, err := op(c.Request.Context(), instanceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to load bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

func (h *Handler) writeBookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrBookingNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrNotYourBooking):
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, entitlement.ErrNoActiveEntitlement),
		errors.Is(err, entitlement.ErrInsufficientBalance),
		errors.Is(err, entitlement.ErrGrantExpired),
		errors.Is(err, ErrNoFundingGrant):
		c.JSON(http.StatusPaymentRequired, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrSessionStarted),
		errors.Is(err, ErrSessionNotStarted),
		errors.Is(err, ErrSessionNotEnded),
		errors.Is(err, ErrBookingTooFarAhead),
		errors.Is(err, ErrAlreadyBooked),
		errors.Is(err, ErrTooSoonToCancel),
		errors.Is(err, ErrInvalidStatus):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Booking operation failed"})
	}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, jwtSecret string) {
	authed := router.Group("", auth.AuthMiddleware(jwtSecret))
	{
		authed.POST("/sessions/:id/book", h.Request)
		authed.DELETE("/bookings/:id", h.Cancel)
		authed.GET("/me/bookings", h.ListMine)
	}

	admin := router.Group("/admin", auth.AuthMiddleware(jwtSecret), auth.RequireRole("staff", "admin"))
	{
		admin.POST("/bookings/:id/attend", h.MarkAttended)
		admin.POST("/bookings/:id/no-show", h.MarkNoShow)
		admin.GET("/sessions/:id/roster", h.Roster)
		admin.GET("/sessions/:id/waitlist", h.WaitlistView)
	}
}
