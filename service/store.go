package service

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/crypticpy/RTASS-sub003/config"
	"github.com/crypticpy/RTASS-sub003/model"
)

// AuditStore is the narrow persistence contract the orchestrator depends on.
// Lookups return nil when the record does not exist.
type AuditStore interface {
	FindTranscript(id string) *model.Transcript
	FindTemplate(id string) *model.Template
	CreateAudit(audit *model.AuditResult) error
	FindExistingAudit(incidentID, templateID string) *model.AuditResult
	SavePartialCategoryResult(auditID string, partial *model.PartialCategoryResult) error
}

// Store is an in-memory implementation of the persistence layer
// In production, this should be replaced with a database
type Store struct {
	transcripts map[string]*model.Transcript
	templates   map[string]*model.Template
	audits      map[string]*model.AuditResult
	partials    map[string][]*model.PartialCategoryResult
	mu          sync.RWMutex
	maxAudits   int // Maximum audits to keep, 0 = unlimited
}

// NewStore creates an empty store with the configured retention bound
func NewStore(cfg *config.StoreConfig) *Store {
	maxAudits := 0
	if cfg != nil && cfg.MaxAudits > 0 {
		maxAudits = cfg.MaxAudits
	}
	return &Store{
		transcripts: make(map[string]*model.Transcript),
		templates:   make(map[string]*model.Template),
		audits:      make(map[string]*model.AuditResult),
		partials:    make(map[string][]*model.PartialCategoryResult),
		maxAudits:   maxAudits,
	}
}

// SaveTranscript stores a transcript
func (s *Store) SaveTranscript(tr *model.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[tr.ID] = tr
}

// FindTranscript returns the transcript with its associated incident, or nil
func (s *Store) FindTranscript(id string) *model.Transcript {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcripts[id]
}

// SaveTemplate stores a rubric template
func (s *Store) SaveTemplate(t *model.Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t
}

// FindTemplate returns the template, or nil
func (s *Store) FindTemplate(id string) *model.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.templates[id]
}

// ListTemplates returns all templates sorted by creation time
func (s *Store) ListTemplates() []*model.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.Template, 0, len(s.templates))
	for _, t := range s.templates {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// CreateAudit writes one finished audit
func (s *Store) CreateAudit(audit *model.AuditResult) error {
	if audit.ID == "" {
		return fmt.Errorf("audit id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}
	s.audits[audit.ID] = audit
	s.cleanupIfNeeded()
	return nil
}

// GetAudit returns the audit with the given id, or nil
func (s *Store) GetAudit(id string) *model.AuditResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audits[id]
}

// ListAudits returns all audits, newest first
func (s *Store) ListAudits() []*model.AuditResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.AuditResult, 0, len(s.audits))
	for _, a := range s.audits {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// FindExistingAudit returns an audit already produced for this incident and
// template, or nil. This is the authoritative duplicate guard backing the
// best-effort cache de-dup.
func (s *Store) FindExistingAudit(incidentID, templateID string) *model.AuditResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.audits {
		if a.IncidentID == incidentID && a.TemplateID == templateID {
			return a
		}
	}
	return nil
}

// SavePartialCategoryResult records a best-effort mid-run category snapshot
func (s *Store) SavePartialCategoryResult(auditID string, partial *model.PartialCategoryResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if partial.SavedAt.IsZero() {
		partial.SavedAt = time.Now()
	}
	s.partials[auditID] = append(s.partials[auditID], partial)
	return nil
}

// PartialResults returns the saved snapshots for one audit run
func (s *Store) PartialResults(auditID string) []*model.PartialCategoryResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partials[auditID]
}

// cleanupIfNeeded removes oldest audits if the store exceeds maxAudits
// Must be called with lock held
func (s *Store) cleanupIfNeeded() {
	if s.maxAudits <= 0 {
		return // Unlimited
	}

	if len(s.audits) <= s.maxAudits {
		return
	}

	audits := make([]*model.AuditResult, 0, len(s.audits))
	for _, a := range s.audits {
		audits = append(audits, a)
	}
	sort.Slice(audits, func(i, j int) bool {
		return audits[i].CreatedAt.Before(audits[j].CreatedAt)
	})

	removeCount := len(audits) - s.maxAudits
	for i := 0; i < removeCount; i++ {
		slog.Info("auto-cleaning old audit",
			"audit_id", audits[i].ID,
			"created_at", audits[i].CreatedAt,
		)
		delete(s.audits, audits[i].ID)
		delete(s.partials, audits[i].ID)
	}
}

// CountAudits returns the number of audits in the store
func (s *Store) CountAudits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.audits)
}
