package discount

import (
	"errors"
	"net/http"

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

// Quote godoc
// @Summary      Price a discount stack
// @Description  Computes the discounted total for a purchase without consuming any usage.
// @Tags         discounts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      QuoteRequest  true  "Purchase lines plus optional promo/voucher"
// @Success      200      {object}  QuoteResult
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /discounts/quote [post]
func (h *Handler) Quote(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.service.Quote(c.Request.Context(), userID, req)
	if err != nil {
		h.writeOfferError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Redeem godoc
// @Summary      Redeem a discount stack
// @Description  Consumes promo/voucher usage atomically and records the redemption ledger entries.
// @Tags         discounts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      RedeemRequest  true  "Purchase lines, offers, and transaction reference"
// @Success      200      {object}  QuoteResult
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /discounts/redeem [post]
func (h *Handler) Redeem(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.service.Redeem(c.Request.Context(), userID, req)
	if err != nil {
		h.writeOfferError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CreatePromo godoc
// @Summary      Create a promo
// @Tags         discounts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateOfferRequest  true  "Promo payload"
// @Success      201      {object}  Offer
// @Failure      400      {object}  api.ErrorResponse
// @Router       /admin/discounts/promos [post]
func (h *Handler) CreatePromo(c *gin.Context) {
	h.createOffer(c, TagPromo)
}

// CreateVoucher godoc
// @Summary      Create a voucher
// @Tags         discounts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateOfferRequest  true  "Voucher payload"
// @Success      201      {object}  Offer
// @Failure      400      {object}  api.ErrorResponse
// @Router       /admin/discounts/vouchers [post]
func (h *Handler) CreateVoucher(c *gin.Context) {
	h.createOffer(c, TagVoucher)
}

func (h *Handler) createOffer(c *gin.Context, tag string) {
	var req CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	created, err := h.service.CreateOffer(c.Request.Context(), tag, req)
	if err != nil {
		if errors.Is(err, ErrInvalidWindow) {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create offer"})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// ListPromos godoc
// @Summary      List promos
// @Tags         discounts
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  Offer
// @Router       /admin/discounts/promos [get]
func (h *Handler) ListPromos(c *gin.Context) {
	h.listOffers(c, TagPromo)
}

// ListVouchers godoc
// @Summary      List vouchers
// @Tags         discounts
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  Offer
// @Router       /admin/discounts/vouchers [get]
func (h *Handler) ListVouchers(c *gin.Context) {
	h.listOffers(c, TagVoucher)
}

func (h *Handler) listOffers(c *gin.Context, tag string) {
	offers, err := h.service.ListOffers(c.Request.Context(), tag)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to list offers"})
		return
	}
	c.JSON(http.StatusOK, offers)
}

// Stats godoc
// @Summary      Redemption counters per offer
// @Tags         discounts
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  OfferStats
// @Router       /admin/discounts/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to load stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) writeOfferError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrOfferNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrOfferNotActive),
		errors.Is(err, ErrMinPurchaseNotMet),
		errors.Is(err, ErrScopeMismatch),
		errors.Is(err, ErrUsageLimitExceeded):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Discount operation failed"})
	}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, jwtSecret string) {
	authed := router.Group("/discounts", auth.AuthMiddleware(jwtSecret))
	{
		authed.POST("/quote", h.Quote)
	}

	staff := router.Group("", auth.AuthMiddleware(jwtSecret), auth.RequireRole("staff", "admin"))
	{
		staff.POST("/discounts/redeem", h.Redeem)
		staff.GET("/admin/discounts/stats", h.Stats)
	}

	admin := router.Group("/admin/discounts", auth.AuthMiddleware(jwtSecret), auth.RequireRole("admin"))
	{
		admin.POST("/promos", h.CreatePromo)
		admin.GET("/promos", h.ListPromos)
		admin.POST("/vouchers", h.CreateVoucher)
		admin.GET("/vouchers", h.ListVouchers)
	}
}
