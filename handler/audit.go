package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/crypticpy/RTASS-sub003/middleware"
	"github.com/crypticpy/RTASS-sub003/model"
	"github.com/crypticpy/RTASS-sub003/service"
	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	compliance *service.ComplianceService
	store      *service.Store
	reports    *service.ReportService
}

func NewAuditHandler(compliance *service.ComplianceService, store *service.Store, reports *service.ReportService) *AuditHandler {
	return &AuditHandler{
		compliance: compliance,
		store:      store,
		reports:    reports,
	}
}

type CreateAuditRequest struct {
	TranscriptID       string `json:"transcript_id" binding:"required"`
	TemplateID         string `json:"template_id" binding:"required"`
	AdditionalNotes    string `json:"additional_notes"`
	SavePartialResults bool   `json:"save_partial_results"`
}

// Create starts an audit run. With ?stream=true the response is a
// server-sent event stream of progress events terminated by exactly one
// complete or error event; otherwise the full result is returned as JSON.
func (h *AuditHandler) Create(c *gin.Context) {
	var req CreateAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorEnvelope(model.NewInvalidPrecondition("transcript_id and template_id are required")))
		return
	}

	mode := c.DefaultQuery("mode", model.ModeModular)
	if mode != model.ModeModular {
		c.JSON(http.StatusBadRequest, errorEnvelope(model.NewInvalidPrecondition("unsupported audit mode %q", mode)))
		return
	}

	auditReq := service.AuditRequest{
		TranscriptID:       req.TranscriptID,
		TemplateID:         req.TemplateID,
		AdditionalNotes:    req.AdditionalNotes,
		SavePartialResults: req.SavePartialResults,
		Mode:               mode,
		CorrelationID:      middleware.GetCorrelationID(c),
	}

	if c.Query("stream") == "true" {
		h.createStreaming(c, auditReq)
		return
	}

	result, dup, err := h.compliance.StartAudit(c.Request.Context(), auditReq, nil)
	if err != nil {
		apiErr := model.AsAPIError(err)
		c.JSON(apiErr.StatusCode, errorEnvelope(apiErr))
		return
	}
	if dup != nil {
		c.JSON(http.StatusOK, duplicateEnvelope(dup))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// createStreaming runs the audit with an SSE stream attached. Errors raised
// before any event went out are still returned as plain JSON so the client
// sees a proper status code.
func (h *AuditHandler) createStreaming(c *gin.Context, req service.AuditRequest) {
	stream := newAuditStream(c)

	result, dup, err := h.compliance.StartAudit(c.Request.Context(), req, stream.Progress)
	switch {
	case err != nil:
		apiErr := model.AsAPIError(err)
		if !stream.Started() {
			c.JSON(apiErr.StatusCode, errorEnvelope(apiErr))
			return
		}
		stream.Error(apiErr)
	case dup != nil:
		c.JSON(http.StatusOK, duplicateEnvelope(dup))
	default:
		stream.Complete(result)
	}
}

// Get returns a single audit
func (h *AuditHandler) Get(c *gin.Context) {
	audit := h.store.GetAudit(c.Param("id"))
	if audit == nil {
		c.JSON(http.StatusNotFound, errorEnvelope(model.NewNotFound("audit not found")))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": audit})
}

// List returns all audits, newest first
func (h *AuditHandler) List(c *gin.Context) {
	audits := h.store.ListAudits()

	result := make([]gin.H, len(audits))
	for i, a := range audits {
		result[i] = gin.H{
			"id":             a.ID,
			"incident_id":    a.IncidentID,
			"transcript_id":  a.TranscriptID,
			"template_id":    a.TemplateID,
			"overall_score":  a.OverallScore,
			"overall_status": a.OverallStatus,
			"created_at":     a.CreatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// ReportPDF renders one audit as a downloadable PDF
func (h *AuditHandler) ReportPDF(c *gin.Context) {
	audit := h.store.GetAudit(c.Param("id"))
	if audit == nil {
		c.JSON(http.StatusNotFound, errorEnvelope(model.NewNotFound("audit not found")))
		return
	}

	data, err := h.reports.GeneratePDF(audit)
	if err != nil {
		apiErr := model.AsAPIError(err)
		c.JSON(http.StatusInternalServerError, errorEnvelope(apiErr))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=audit-%s.pdf", audit.ID))
	c.Data(http.StatusOK, "application/pdf", data)
}

func errorEnvelope(apiErr *model.APIError) gin.H {
	return gin.H{"success": false, "error": apiErr}
}

func duplicateEnvelope(dup *service.DuplicateResult) gin.H {
	return gin.H{
		"success": true,
		"message": dup.Message,
		"data":    gin.H{"id": dup.ID, "status": dup.Status},
		"cached":  true,
	}
}

// auditStream adapts orchestrator callbacks onto an SSE connection.
//
// Event order per run: zero or more progress events, then exactly one
// complete or error event. The closed flag guarantees the terminal event is
// written at most once even if the completion path and the client-cancel
// path race; events arriving after cancellation are dropped silently.
type auditStream struct {
	mu      sync.Mutex
	c       *gin.Context
	started bool
	closed  bool
}

func newAuditStream(c *gin.Context) *auditStream {
	return &auditStream{c: c}
}

type progressEvent struct {
	Type      string `json:"type"`
	Current   int    `json:"current"`
	Total     int    `json:"total"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
}

type completeEvent struct {
	Type      string             `json:"type"`
	Result    *model.AuditResult `json:"result"`
	Timestamp string             `json:"timestamp"`
}

type errorEvent struct {
	Type      string          `json:"type"`
	Error     *model.APIError `json:"error"`
	Timestamp string          `json:"timestamp"`
}

// Progress emits one progress event; dropped silently once the stream is
// terminal or the client has disconnected
func (s *auditStream) Progress(current, total int, category string) {
	s.emit(progressEvent{
		Type:      "progress",
		Current:   current,
		Total:     total,
		Category:  category,
		Timestamp: eventTimestamp(),
	})
}

// Complete emits the final result and closes the stream
func (s *auditStream) Complete(result *model.AuditResult) {
	s.emit(completeEvent{
		Type:      "complete",
		Result:    result,
		Timestamp: eventTimestamp(),
	})
	s.close()
}

// Error emits a structured error payload and closes the stream
func (s *auditStream) Error(apiErr *model.APIError) {
	s.emit(errorEvent{
		Type:      "error",
		Error:     apiErr,
		Timestamp: eventTimestamp(),
	})
	s.close()
}

// Started reports whether any event bytes have been written
func (s *auditStream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *auditStream) emit(event any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.c.Request.Context().Err() != nil {
		// client disconnected; suppress without error
		return
	}

	if !s.started {
		header := s.c.Writer.Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no")
		s.c.Writer.WriteHeader(http.StatusOK)
		s.started = true
	}

	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to encode stream event", "error", err)
		return
	}

	if _, err := fmt.Fprintf(s.c.Writer, "data: %s\n\n", data); err != nil {
		slog.Warn("failed to write stream event", "error", err)
		s.closed = true
		return
	}
	s.c.Writer.Flush()
}

// close marks the stream terminal; at most once regardless of which path
// gets here first
func (s *auditStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func eventTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
