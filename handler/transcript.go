package handler

import (
	"net/http"
	"time"

	"github.com/crypticpy/RTASS-sub003/model"
	"github.com/crypticpy/RTASS-sub003/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TranscriptHandler struct {
	store *service.Store
}

func NewTranscriptHandler(store *service.Store) *TranscriptHandler {
	return &TranscriptHandler{store: store}
}

type CreateTranscriptRequest struct {
	Text     string `json:"text" binding:"required"`
	Source   string `json:"source"`
	Incident struct {
		Type   string    `json:"type" binding:"required"`
		Date   time.Time `json:"date"`
		Units  []string  `json:"units"`
		Status string    `json:"status"`
		Notes  string    `json:"notes"`
	} `json:"incident" binding:"required"`
}

// Create registers a transcript together with its incident
func (h *TranscriptHandler) Create(c *gin.Context) {
	var req CreateTranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorEnvelope(model.NewInvalidPrecondition("text and incident are required")))
		return
	}

	status := req.Incident.Status
	if status == "" {
		status = model.IncidentOpen
	}

	incident := &model.Incident{
		ID:     uuid.New().String(),
		Type:   req.Incident.Type,
		Date:   req.Incident.Date,
		Units:  req.Incident.Units,
		Status: status,
		Notes:  req.Incident.Notes,
	}

	transcript := &model.Transcript{
		ID:         uuid.New().String(),
		IncidentID: incident.ID,
		Text:       req.Text,
		Source:     req.Source,
		Incident:   incident,
		CreatedAt:  time.Now(),
	}

	h.store.SaveTranscript(transcript)

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": transcript})
}

// Get returns one transcript with its incident
func (h *TranscriptHandler) Get(c *gin.Context) {
	transcript := h.store.FindTranscript(c.Param("id"))
	if transcript == nil {
		c.JSON(http.StatusNotFound, errorEnvelope(model.NewNotFound("transcript not found")))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": transcript})
}
