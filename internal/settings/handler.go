package settings

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/yoganurrahman/moolai-gym-api/internal/api"
	"github.com/yoganurrahman/moolai-gym-api/internal/auth"
)

type Handler struct {
	repo *Repository
}

func NewHandler(db *sqlx.DB) *Handler {
	return &Handler{repo: NewRepository(db)}
}

type UpdateSettingRequest struct {
	Value string `json:"value" binding:"required"`
}

// List godoc
// @Summary      List settings
// @Description  Returns all operational settings. Admin only.
// @Tags         settings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   Setting
// @Failure      500  {object}  api.ErrorResponse
// @Router       /admin/settings [get]
func (h *Handler) List(c *gin.Context) {
	out, err := h.repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// Get godoc
// @Summary      Get a setting
// @Tags         settings
// @Security     BearerAuth
// @Produce      json
// @Param        key  path      string  true  "Setting key"
// @Success      200  {object}  Setting
// @Failure      404  {object}  api.ErrorResponse
// @Router       /admin/settings/{key} [get]
func (h *Handler) Get(c *gin.Context) {
	key := c.Param("key")
	value, err := h.repo.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, ErrSettingNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "setting not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load setting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

// Update godoc
// @Summary      Upsert a setting
// @Tags         settings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        key    path      string                true  "Setting key"
// @Param        input  body      UpdateSettingRequest  true  "New value"
// @Success      200    {object}  api.MessageResponse
// @Failure      400    {object}  api.ErrorResponse
// @Failure      500    {object}  api.ErrorResponse
// @Router       /admin/settings/{key} [put]
func (h *Handler) Update(c *gin.Context) {
	key := c.Param("key")

	var req UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.repo.Set(c.Request.Context(), key, req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to save setting"})
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "setting updated"})
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, jwtSecret string) {
	admin := router.Group("/admin/settings", auth.AuthMiddleware(jwtSecret), auth.RequireRole("admin"))
	{
		admin.GET("", h.List)
		admin.GET("/:key", h.Get)
		admin.PUT("/:key", h.Update)
	}
}
