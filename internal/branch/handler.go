package branch

import (
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

// Create godoc
// @Summary      Create a branch
// @Description  Admin-only: register a new gym branch.
// @Tags         branches
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateBranchRequest  true  "Branch payload"
// @Success      201      {object}  Branch
// @Failure      400      {object}  api.ErrorResponse
// @Router       /admin/branches [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	created, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create branch"})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// List godoc
// @Summary      List branches
// @Tags         branches
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  Branch
// @Router       /branches [get]
func (h *Handler) List(c *gin.Context) {
	branches, err := h.service.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch branches"})
		return
	}

	c.JSON(http.StatusOK, branches)
}

// Get godoc
// @Summary      Get a branch
// @Tags         branches
// @Security     BearerAuth
// @Produce      json
// @Param        id  path      int  true  "Branch ID"
// @Success      200  {object}  Branch
// @Failure      404  {object}  api.ErrorResponse
// @Router       /branches/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid branch ID"})
		return
	}

	b, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrBranchNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch branch"})
		return
	}

	c.JSON(http.StatusOK, b)
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, jwtSecret string) {
	authed := router.Group("/branches", auth.AuthMiddleware(jwtSecret))
	{
		authed.GET("", h.List)
		authed.GET("/:id", h.Get)
	}

	admin := router.Group("/admin/branches", auth.AuthMiddleware(jwtSecret), auth.RequireRole("admin"))
	{
		admin.POST("", h.Create)
	}
}
