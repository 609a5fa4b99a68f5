package checkin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

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

// CheckIn godoc
// @Summary      Record a member check-in
// @Description  Admits a member through the gate, funded by a grant or a confirmed booking for today.
// @Tags         checkins
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CheckInRequest  true  "Check-in data"
// @Success      201      {object}  Checkin
// @Failure      402      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /checkins [post]
func (h *Handler) CheckIn(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	record, err := h.service.CheckIn(c.Request.Context(), req)
	if err != nil {
		h.writeCheckinError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

func isStaff(c *gin.Context) bool {
	role, _ := c.Get("user_role")
	return role == "staff" || role == "admin"
}

func (h *Handler) writeCheckinError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrBookingNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrAlreadyCheckedIn), errors.Is(err, ErrTooSoonToCheckin), errors.Is(err, ErrBookingNotEligible):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, entitlement.ErrNoActiveEntitlement):
		c.JSON(http.StatusPaymentRequired, api.ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Check-in failed"})
	}
}

// CheckOut godoc
// @Summary      Record a member check-out
// @Description  Closes the caller's open visit; staff may close another member's by passing user_id.
// @Tags         checkins
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      map[string]int  false  "Payload {user_id} (staff only)"
// @Success      200      {object}  api.MessageResponse
// @Router       /checkins/checkout [post]
func (h *Handler) CheckOut(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	var req struct {
		UserID int `json:"user_id" binding:"omitempty,min=1"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.UserID != 0 && req.UserID != userID {
		if !isStaff(c) {
			c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "Cannot check out another member"})
			return
		}
		userID = req.UserID
	}

	closed, err := h.service.CheckOut(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Check-out failed"})
		return
	}

	message := "Checked out"
	if !closed {
		message = "No open check-in"
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: message})
}

// Scan godoc
// @Summary      Self check-in via QR
// @Description  Checks the authenticated member in at a branch.
// @Tags         checkins
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      ScanRequest  true  "Scan data"
// @Success      201      {object}  Checkin
// @Failure      402      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /checkins/scan [post]
func (h *Handler) Scan(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	record, err := h.service.CheckIn(c.Request.Context(), CheckInRequest{
		UserID:    userID,
		BranchID:  req.BranchID,
		Type:      req.Type,
		BookingID: req.BookingID,
		Method:    MethodQR,
	})
	if err != nil {
		h.writeCheckinError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

// Status godoc
// @Summary      My current check-in status
// @Tags         checkins
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /checkins/status [get]
func (h *Handler) Status(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	open, err := h.service.Status(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to load check-in status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"checked_in": open != nil,
		"checkin":    open,
	})
}

// Presence godoc
// @Summary      Branch presence for a day
// @Tags         checkins
// @Security     BearerAuth
// @Produce      json
// @Param        id    path      int     true   "Branch ID"
// @Param        date  query     string  false  "Date (YYYY-MM-DD, default today)"
// @Success      200   {array}   CheckinWithUser
// @Failure      400   {object}  api.ErrorResponse
// @Router       /admin/branches/{id}/presence [get]
func (h *Handler) Presence(c *gin.Context) {
	branchID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid branch ID"})
		return
	}

	date := time.Now()
	if v := c.Query("date"); v != "" {
		date, err = time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid date"})
			return
		}
	}

	checkins, err := h.service.PresenceByBranch(c.Request.Context(), branchID, date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to load presence"})
		return
	}

	c.JSON(http.StatusOK, checkins)
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, jwtSecret string) {
	authed := router.Group("", auth.AuthMiddleware(jwtSecret))
	{
		authed.POST("/checkins/scan", h.Scan)
		authed.POST("/checkins/checkout", h.CheckOut)
		authed.GET("/checkins/status", h.Status)
	}

	staff := router.Group("", auth.AuthMiddleware(jwtSecret), auth.RequireRole("staff", "admin"))
	{
		staff.POST("/checkins", h.CheckIn)
		staff.GET("/admin/branches/:id/presence", h.Presence)
	}
}
