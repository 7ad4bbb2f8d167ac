package handler

import (
	"net/http"
	"time"

	"github.com/crypticpy/RTASS-sub003/model"
	"github.com/crypticpy/RTASS-sub003/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TemplateHandler struct {
	store *service.Store
}

func NewTemplateHandler(store *service.Store) *TemplateHandler {
	return &TemplateHandler{store: store}
}

type CreateTemplateRequest struct {
	Name       string           `json:"name" binding:"required"`
	Categories []model.Category `json:"categories" binding:"required"`
}

// Create registers a rubric template. The rubric invariants (weight sums,
// unique criterion ids, non-empty categories) are enforced here so nothing
// invalid ever reaches the orchestrator.
func (h *TemplateHandler) Create(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorEnvelope(model.NewInvalidPrecondition("name and categories are required")))
		return
	}

	template := &model.Template{
		ID:         uuid.New().String(),
		Name:       req.Name,
		Categories: req.Categories,
		CreatedAt:  time.Now(),
	}

	if err := template.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, errorEnvelope(model.NewInvalidPrecondition("invalid template: %v", err)))
		return
	}

	h.store.SaveTemplate(template)

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": template})
}

// Get returns one template
func (h *TemplateHandler) Get(c *gin.Context) {
	template := h.store.FindTemplate(c.Param("id"))
	if template == nil {
		c.JSON(http.StatusNotFound, errorEnvelope(model.NewNotFound("template not found")))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": template})
}

// List returns all templates
func (h *TemplateHandler) List(c *gin.Context) {
	templates := h.store.ListTemplates()

	result := make([]gin.H, len(templates))
	for i, t := range templates {
		result[i] = gin.H{
			"id":         t.ID,
			"name":       t.Name,
			"categories": len(t.Categories),
			"created_at": t.CreatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}
