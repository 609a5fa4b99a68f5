package schedule

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

// CreateTemplate godoc
// @Summary      Create session template
// @Description  Adds a recurring weekly or one-off class/PT template at a branch.
// @Tags         schedule
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateTemplateRequest  true  "Template definition"
// @Success      201      {object}  Template
// @Failure      400      {object}  api.ErrorResponse
// @Router       /admin/templates [post]
func (h *Handler) CreateTemplate(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	tpl, err := h.service.CreateTemplate(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidRecurrence) {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create template"})
		return
	}

	c.JSON(http.StatusCreated, tpl)
}

// ListTemplates godoc
// @Summary      List branch templates
// @Tags         schedule
// @Security     BearerAuth
// @Produce      json
// @Param        branch_id  query     int  true  "Branch ID"
// @Success      200        {array}   Template
// @Failure      400        {object}  api.ErrorResponse
// @Router       /admin/templates [get]
func (h *Handler) ListTemplates(c *gin.Context) {
	branchID, err := strconv.Atoi(c.Query("branch_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "branch_id is required"})
		return
	}

	templates, err := h.service.ListTemplates(c.Request.Context(), branchID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to load templates"})
		return
	}

	c.JSON(http.StatusOK, templates)
}

// Deactivate godoc
// @Summary      Deactivate a template
// @Description  Stops future materialization; existing instances and bookings are untouched.
// @Tags         schedule
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Template ID"
// @Success      200  {object}  api.MessageResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /admin/templates/{id} [delete]
func (h *Handler) Deactivate(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid template ID"})
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Template not found or already inactive"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to deactivate template"})
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Template deactivated"})
}

// Materialize godoc
// @Summary      Materialize a session instance
// @Description  Creates (or returns) the concrete session for a template on a date.
// @Tags         schedule
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int                true  "Template ID"
// @Param        request  body      map[string]string  true  "Date payload {date: YYYY-MM-DD}"
// @Success      200      {object}  Instance
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /admin/templates/{id}/materialize [post]
func (h *Handler) Materialize(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid template ID"})
		return
	}

	var req struct {
		Date string `json:"date" binding:"required,datetime=2006-01-02"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	date, _ := time.Parse("2006-01-02", req.Date)

	inst, err := h.service.MaterializeInstance(c.Request.Context(), id, date)
	if err != nil {
		switch {
		case errors.Is(err, ErrTemplateNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Template not found"})
		case errors.Is(err, ErrTemplateInactive):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Template is inactive"})
		case errors.Is(err, ErrDateMismatch):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Date does not match the template recurrence"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to materialize session"})
		}
		return
	}

	c.JSON(http.StatusOK, inst)
}

// ListUpcoming godoc
// @Summary      Browse upcoming sessions
// @Description  Lists materialized sessions at a branch with live availability.
// @Tags         schedule
// @Security     BearerAuth
// @Produce      json
// @Param        branch_id  query     int     true   "Branch ID"
// @Param        from       query     string  false  "Start date (YYYY-MM-DD, default today)"
// @Param        to         query     string  false  "End date (YYYY-MM-DD, default +7 days)"
// @Success      200        {array}   InstanceWithDetails
// @Failure      400        {object}  api.ErrorResponse
// @Router       /schedule [get]
func (h *Handler) ListUpcoming(c *gin.Context) {
	branchID, err := strconv.Atoi(c.Query("branch_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "branch_id is required"})
		return
	}

	from := time.Now()
	if v := c.Query("from"); v != "" {
		from, err = time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid from date"})
			return
		}
	}

	to := from.AddDate(0, 0, 7)
	if v := c.Query("to"); v != "" {
		to, err = time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid to date"})
			return
		}
		to = to.AddDate(0, 0, 1) // inclusive end date
	}

	instances, err := h.service.ListUpcoming(c.Request.Context(), branchID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to load schedule"})
		return
	}

	c.JSON(http.StatusOK, instances)
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, jwtSecret string) {
	router.GET("/schedule", auth.AuthMiddleware(jwtSecret), h.ListUpcoming)

	admin := router.Group("/admin", auth.AuthMiddleware(jwtSecret), auth.RequireRole("staff", "admin"))
	{
		admin.POST("/templates", h.CreateTemplate)
		admin.GET("/templates", h.ListTemplates)
		admin.DELETE("/templates/:id", h.Deactivate)
		admin.POST("/templates/:id/materialize", h.Materialize)
	}
}
