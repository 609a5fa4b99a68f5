package billing

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yoganurrahman/moolai-gym-api/internal/api"
	"github.com/yoganurrahman/moolai-gym-api/internal/auth"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Subscribe godoc
// @Summary      Start a recurring subscription
// @Description  Creates an active subscription billed from today by the sweep.
// @Tags         billing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      SubscribeRequest  true  "Package and billing cycle"
// @Success      201      {object}  Subscription
// @Failure      400      {object}  api.ErrorResponse
// @Router       /subscriptions [post]
func (h *Handler) Subscribe(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	// Members subscribe for themselves; staff may subscribe on behalf.
	if !isStaff(c) {
		req.UserID = userID
	}

	sub, err := h.service.Subscribe(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create subscription"})
		return
	}

	c.JSON(http.StatusCreated, sub)
}

// ListMine godoc
// @Summary      List my subscriptions
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  Subscription
// @Router       /me/subscriptions [get]
func (h *Handler) ListMine(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	subs, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to list subscriptions"})
		return
	}

	c.JSON(http.StatusOK, subs)
}

// Pause godoc
// @Summary      Pause a subscription
// @Description  Skips billing until the given date without touching the retry counter.
// @Tags         billing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int           true  "Subscription ID"
// @Param        request  body      PauseRequest  true  "Pause end date"
// @Success      200      {object}  api.MessageResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /subscriptions/{id}/pause [post]
func (h *Handler) Pause(c *gin.Context) {
	sub, ok := h.ownedSubscription(c)
	if !ok {
		return
	}

	var req PauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.service.Pause(c.Request.Context(), sub.ID, req.Until); err != nil {
		h.writeBillingError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Subscription paused"})
}

// Resume godoc
// @Summary      Resume a paused subscription
// @Description  Reactivates billing; the next billing date is pushed past the pause end.
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Param        id  path      int  true  "Subscription ID"
// @Success      200  {object}  Subscription
// @Failure      404  {object}  api.ErrorResponse
// @Failure      409  {object}  api.ErrorResponse
// @Router       /subscriptions/{id}/resume [post]
func (h *Handler) Resume(c *gin.Context) {
	sub, ok := h.ownedSubscription(c)
	if !ok {
		return
	}

	resumed, err := h.service.Resume(c.Request.Context(), sub.ID)
	if err != nil {
		h.writeBillingError(c, err)
		return
	}

	c.JSON(http.StatusOK, resumed)
}

// Cancel godoc
// @Summary      Cancel a subscription
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Param        id  path      int  true  "Subscription ID"
// @Success      200  {object}  api.MessageResponse
// @Failure      404  {object}  api.ErrorResponse
// @Failure      409  {object}  api.ErrorResponse
// @Router       /subscriptions/{id}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	sub, ok := h.ownedSubscription(c)
	if !ok {
		return
	}

	if err := h.service.Cancel(c.Request.Context(), sub.ID); err != nil {
		h.writeBillingError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Subscription cancelled"})
}

// RunSweep godoc
// @Summary      Run a billing sweep now
// @Description  Charges all due subscriptions immediately instead of waiting for the scheduler.
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  SweepReport
// @Failure      500  {object}  api.ErrorResponse
// @Router       /admin/billing/sweep [post]
func (h *Handler) RunSweep(c *gin.Context) {
	report, err := h.service.Sweep(c.Request.Context(), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Billing sweep failed"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// ownedSubscription loads the path subscription and enforces that a
// member can only touch their own. Staff bypass the ownership check.
func (h *Handler) ownedSubscription(c *gin.Context) (*Subscription, bool) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return nil, false
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid subscription ID"})
		return nil, false
	}

	sub, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeBillingError(c, err)
		return nil, false
	}

	if sub.UserID != userID && !isStaff(c) {
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "Not your subscription"})
		return nil, false
	}

	return sub, true
}

func (h *Handler) writeBillingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSubscriptionNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrInvalidTransition):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrPauseInPast):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Subscription operation failed"})
	}
}

func isStaff(c *gin.Context) bool {
	role, _ := c.Get("user_role")
	return role == "staff" || role == "admin"
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, jwtSecret string) {
	authed := router.Group("", auth.AuthMiddleware(jwtSecret))
	{
		authed.POST("/subscriptions", h.Subscribe)
		authed.GET("/me/subscriptions", h.ListMine)
		authed.POST("/subscriptions/:id/pause", h.Pause)
		authed.POST("/subscriptions/:id/resume", h.Resume)
		authed.POST("/subscriptions/:id/cancel", h.Cancel)
	}

	admin := router.Group("/admin/billing", auth.AuthMiddleware(jwtSecret), auth.RequireRole("admin"))
	{
		admin.POST("/sweep", h.RunSweep)
	}
}
