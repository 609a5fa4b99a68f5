package entitlement

import (
	"context"
	"errors"
	"net/http"
	"strconv"

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

// Purchase godoc
// @Summary      Issue entitlement grants
// @Description  Creates one grant per covered purpose for a user, typically after a front-desk sale.
// @Tags         entitlements
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      PurchaseRequest  true  "Grant purchase"
// @Success      201      {array}   Grant
// @Failure      400      {object}  api.ErrorResponse
// @Failure      500      {object}  api.ErrorResponse
// @Router       /admin/grants [post]
func (h *Handler) Purchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	if req.ExpireDate != nil && !req.ExpireDate.After(req.StartDate) {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "expire_date must be after start_date"})
		return
	}

	grants, err := h.service.Purchase(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to issue grants"})
		return
	}

	c.JSON(http.StatusCreated, grants)
}

// Balance godoc
// @Summary      Get my entitlement balance
// @Description  Returns the caller's usable gym access, class credits, and PT sessions.
// @Tags         entitlements
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  BalanceSummary
// @Failure      401  {object}  api.ErrorResponse
// @Router       /me/balance [get]
func (h *Handler) Balance(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	summary, err := h.service.Balance(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to load balance"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ListMine godoc
// @Summary      List my grants
// @Tags         entitlements
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   Grant
// @Failure      401  {object}  api.ErrorResponse
// @Router       /me/entitlements [get]
func (h *Handler) ListMine(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	grants, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to load grants"})
		return
	}

	c.JSON(http.StatusOK, grants)
}

// ListUserGrants godoc
// @Summary      List a user's grants
// @Tags         entitlements
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "User ID"
// @Success      200  {array}   Grant
// @Failure      400  {object}  api.ErrorResponse
// @Router       /admin/users/{id}/grants [get]
func (h *Handler) ListUserGrants(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	grants, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to load grants"})
		return
	}

	c.JSON(http.StatusOK, grants)
}

// Freeze godoc
// @Summary      Freeze a grant
// @Description  Suspends a grant until the given date; frozen grants cannot fund bookings or check-ins.
// @Tags         entitlements
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int            true  "Grant ID"
// @Param        request  body      FreezeRequest  true  "Freeze window"
// @Success      200      {object}  api.MessageResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /admin/grants/{id}/freeze [post]
func (h *Handler) Freeze(c *gin.Context) {
	grantID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid grant ID"})
		return
	}

	var req FreezeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.service.Freeze(c.Request.Context(), grantID, req.Until, req.Reason); err != nil {
		h.writeTransitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Grant frozen"})
}

// Unfreeze godoc
// @Summary      Unfreeze a grant
// @Tags         entitlements
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Grant ID"
// @Success      200  {object}  api.MessageResponse
// @Failure      409  {object}  api.ErrorResponse
// @Router       /admin/grants/{id}/unfreeze [post]
func (h *Handler) Unfreeze(c *gin.Context) {
	grantID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid grant ID"})
		return
	}

	if err := h.service.Unfreeze(c.Request.Context(), grantID); err != nil {
		h.writeTransitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Grant active"})
}

// Cancel godoc
// @Summary      Cancel a grant
// @Tags         entitlements
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id   path      int  true  "Grant ID"
// @Success      200  {object}  api.MessageResponse
// @Failure      409  {object}  api.ErrorResponse
// @Router       /admin/grants/{id}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	grantID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid grant ID"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := h.service.Cancel(c.Request.Context(), grantID, req.Reason); err != nil {
		h.writeTransitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Grant cancelled"})
}

// Credit godoc
// @Summary      Credit units back to a grant
// @Tags         entitlements
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int            true  "Grant ID"
// @Param        request  body      AdjustRequest  true  "Units to credit"
// @Success      200      {object}  api.MessageResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /admin/grants/{id}/credit [post]
func (h *Handler) Credit(c *gin.Context) {
	h.adjust(c, h.service.Credit)
}

// Debit godoc
// @Summary      Debit units from a grant
// @Description  Manual correction; normal spending happens through bookings and check-ins.
// @Tags         entitlements
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int            true  "Grant ID"
// @Param        request  body      AdjustRequest  true  "Units to debit"
// @Success      200      {object}  api.MessageResponse
// @Failure      402      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /admin/grants/{id}/debit [post]
func (h *Handler) Debit(c *gin.Context) {
	h.adjust(c, h.service.Debit)
}

func (h *Handler) adjust(c *gin.Context, op func(ctx context.Context, grantID, n int) error) {
	grantID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid grant ID"})
		return
	}

	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	if err := op(c.Request.Context(), grantID, req.Amount); err != nil {
		switch {
		case errors.Is(err, ErrGrantNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Grant not found"})
		case errors.Is(err, ErrInsufficientBalance):
			c.JSON(http.StatusPaymentRequired, api.ErrorResponse{Error: "Insufficient grant balance"})
		case errors.Is(err, ErrGrantExpired):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Grant is not usable"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to adjust grant"})
		}
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Grant adjusted"})
}

func (h *Handler) writeTransitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrGrantNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Grant not found"})
	case errors.Is(err, ErrInvalidTransition):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Grant is not in a state that allows this"})
	default:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to update grant"})
	}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, jwtSecret string) {
	me := router.Group("/me", auth.AuthMiddleware(jwtSecret))
	{
		me.GET("/balance", h.Balance)
		me.GET("/entitlements", h.ListMine)
	}

	admin := router.Group("/admin", auth.AuthMiddleware(jwtSecret), auth.RequireRole("staff", "admin"))
	{
		admin.POST("/grants", h.Purchase)
		admin.GET("/users/:id/grants", h.ListUserGrants)
		admin.POST("/grants/:id/freeze", h.Freeze)
		admin.POST("/grants/:id/unfreeze", h.Unfreeze)
		admin.POST("/grants/:id/cancel", h.Cancel)
		admin.POST("/grants/:id/credit", h.Credit)
		admin.POST("/grants/:id/debit", h.Debit)
	}
}
