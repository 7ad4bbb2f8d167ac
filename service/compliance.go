package service

import (
	"context"
	"strings"
	"time"

	"github.com/crypticpy/RTASS-sub003/config"
	"github.com/crypticpy/RTASS-sub003/model"
	"github.com/crypticpy/RTASS-sub003/pkg/logger"
)

// Dedup cache entry statuses
const (
	dedupInProgress = "in-progress"
	dedupComplete   = "complete"
)

// DedupState is the cache value coalescing concurrent identical requests
type DedupState struct {
	Status  string `json:"status"`
	AuditID string `json:"audit_id,omitempty"`
}

// DuplicateResult is returned instead of running a new audit when one is
// already in flight or already persisted
type DuplicateResult struct {
	ID      string `json:"id,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// AuditRequest is one client request to audit a transcript against a template
type AuditRequest struct {
	TranscriptID       string
	TemplateID         string
	AdditionalNotes    string
	SavePartialResults bool
	Mode               string
	CorrelationID      string
}

// ComplianceService is the orchestration front door: request de-duplication,
// precondition checks, orchestrator invocation, cache lifecycle, and
// best-effort report archiving. It holds only injected collaborators; all
// run state lives in the orchestrator call.
type ComplianceService struct {
	store              *Store
	cache              *TTLCache
	orchestrator       *Orchestrator
	archive            *ReportArchive // optional
	inProgressTTL      time.Duration
	completeTTL        time.Duration
	minTranscriptChars int
}

func NewComplianceService(store *Store, cache *TTLCache, orch *Orchestrator, archive *ReportArchive, cacheCfg *config.CacheConfig, auditCfg *config.AuditConfig) *ComplianceService {
	return &ComplianceService{
		store:              store,
		cache:              cache,
		orchestrator:       orch,
		archive:            archive,
		inProgressTTL:      time.Duration(cacheCfg.InProgressTTLSeconds) * time.Second,
		completeTTL:        time.Duration(cacheCfg.CompleteTTLSeconds) * time.Second,
		minTranscriptChars: auditCfg.MinTranscriptChars,
	}
}

// StartAudit runs one audit end to end. It returns a DuplicateResult instead
// of an AuditResult when an identical request is already in flight or a
// matching audit already exists.
//
// The cache check-then-set is not atomic across the two calls; two requests
// in the same instant can both pass it. The FindExistingAudit store check is
// the authoritative duplicate guard; the cache only saves latency.
func (s *ComplianceService) StartAudit(ctx context.Context, req AuditRequest, onProgress ProgressFunc) (*model.AuditResult, *DuplicateResult, error) {
	key := dedupKey(req.TranscriptID, req.TemplateID)

	if cached, ok := s.cache.Get(key).(DedupState); ok {
		switch cached.Status {
		case dedupInProgress:
			logger.Info(ctx, "duplicate audit request coalesced", "key", key)
			return nil, &DuplicateResult{
				Status:  dedupInProgress,
				Message: "Audit already in progress",
			}, nil
		case dedupComplete:
			return nil, &DuplicateResult{
				ID:      cached.AuditID,
				Status:  dedupComplete,
				Message: "Audit already exists",
			}, nil
		}
	}

	transcript := s.store.FindTranscript(req.TranscriptID)
	if transcript == nil {
		return nil, nil, model.NewNotFound("transcript %s not found", req.TranscriptID)
	}
	if err := s.checkPreconditions(transcript, req.TemplateID); err != nil {
		return nil, nil, err
	}

	if existing := s.store.FindExistingAudit(transcript.IncidentID, req.TemplateID); existing != nil {
		return nil, &DuplicateResult{
			ID:      existing.ID,
			Status:  dedupComplete,
			Message: "Audit already exists",
		}, nil
	}

	s.cache.Set(key, DedupState{Status: dedupInProgress}, s.inProgressTTL)

	result, err := s.orchestrator.Execute(ctx, req.TranscriptID, req.TemplateID, AuditOptions{
		OnProgress:         onProgress,
		SavePartialResults: req.SavePartialResults,
		AdditionalNotes:    req.AdditionalNotes,
		CorrelationID:      req.CorrelationID,
		Mode:               req.Mode,
	})
	if err != nil {
		// clear the marker so the client can retry immediately
		s.cache.Delete(key)
		return nil, nil, err
	}

	s.cache.Set(key, DedupState{Status: dedupComplete, AuditID: result.ID}, s.completeTTL)

	if s.archive != nil {
		if err := s.archive.StoreAuditReport(ctx, result); err != nil {
			logger.Warn(ctx, "failed to archive audit report",
				"audit_id", result.ID,
				"error", err,
			)
		}
	}

	return result, nil, nil
}

// checkPreconditions enforces the validator contract before orchestration:
// a usable transcript and an incident not already closed out
func (s *ComplianceService) checkPreconditions(transcript *model.Transcript, templateID string) error {
	text := strings.TrimSpace(transcript.Text)
	if len(text) < s.minTranscriptChars {
		return model.NewInvalidPrecondition(
			"transcript %s text is too short to audit (%d chars, minimum %d)",
			transcript.ID, len(text), s.minTranscriptChars,
		)
	}

	if transcript.Incident != nil && transcript.Incident.Status == model.IncidentResolved {
		return model.NewInvalidPrecondition(
			"incident %s is resolved; resolved incidents are not auditable",
			transcript.Incident.ID,
		)
	}

	if template := s.store.FindTemplate(templateID); template == nil {
		return model.NewNotFound("template %s not found", templateID)
	}

	return nil
}

func dedupKey(transcriptID, templateID string) string {
	return transcriptID + ":" + templateID
}
