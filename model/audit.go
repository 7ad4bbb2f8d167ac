package model

import "time"

// Criterion evaluation statuses
const (
	CriterionPass          = "PASS"
	CriterionPartial       = "PARTIAL"
	CriterionFail          = "FAIL"
	CriterionNotApplicable = "NOT_APPLICABLE"
)

// Category and overall audit statuses
const (
	StatusPass             = "PASS"
	StatusNeedsImprovement = "NEEDS_IMPROVEMENT"
	StatusFail             = "FAIL"
)

// Finding severities / criterion impact levels
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

// Recommendation priorities
const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
)

// Audit modes
const (
	ModeModular = "modular"
	ModeLegacy  = "legacy"
)

// CriterionResult is one evaluated criterion inside a scored category
type CriterionResult struct {
	CriterionID string   `json:"criterion_id"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Score       int      `json:"score"`
	Weight      float64  `json:"weight"`
	Rationale   string   `json:"rationale,omitempty"`
	Findings    []string `json:"findings,omitempty"`
}

// CategoryResult is one scored rubric category in a finished audit
type CategoryResult struct {
	Name      string            `json:"name"`
	Weight    float64           `json:"weight"`
	Score     int               `json:"score"`
	Status    string            `json:"status"`
	Rationale string            `json:"rationale,omitempty"`
	Criteria  []CriterionResult `json:"criteria"`
}

// Finding is a single audit-level observation with supporting evidence
type Finding struct {
	Category    string   `json:"category"`
	CriterionID string   `json:"criterion_id,omitempty"`
	Severity    string   `json:"severity"`
	Description string   `json:"description"`
	Evidence    []string `json:"evidence,omitempty"`
}

// Recommendation is a prioritized corrective action
type Recommendation struct {
	Priority string `json:"priority"`
	Category string `json:"category,omitempty"`
	Text     string `json:"text"`
}

// TokenUsage tracks LLM token consumption for one audit run
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AuditMetadata describes how an audit was produced
type AuditMetadata struct {
	Model               string     `json:"model"`
	ProcessingTimeSec   float64    `json:"processing_time_sec"`
	TokenUsage          TokenUsage `json:"token_usage"`
	Mode                string     `json:"mode"`
	FailedCategories    []string   `json:"failed_categories,omitempty"`
	PartialResultsSaved bool       `json:"partial_results_saved"`
	CorrelationID       string     `json:"correlation_id,omitempty"`
}

// AuditResult is the complete outcome of one compliance audit run
type AuditResult struct {
	ID              string           `json:"id"`
	IncidentID      string           `json:"incident_id"`
	TranscriptID    string           `json:"transcript_id"`
	TemplateID      string           `json:"template_id"`
	OverallStatus   string           `json:"overall_status"`
	OverallScore    int              `json:"overall_score"`
	Summary         string           `json:"summary"`
	Categories      []CategoryResult `json:"categories"`
	Findings        []Finding        `json:"findings"`
	Recommendations []Recommendation `json:"recommendations"`
	Metadata        AuditMetadata    `json:"metadata"`
	CreatedAt       time.Time        `json:"created_at"`
}

// CriterionAnalysis is one criterion outcome inside an analyzer response
type CriterionAnalysis struct {
	CriterionID    string   `json:"criterion_id"`
	Score          string   `json:"score"` // PASS, FAIL, NOT_APPLICABLE
	Confidence     float64  `json:"confidence"`
	Evidence       []string `json:"evidence,omitempty"`
	Reasoning      string   `json:"reasoning,omitempty"`
	Impact         string   `json:"impact,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// CategoryAnalysis is the raw result of evaluating one category against the
// transcript, as returned by the analyzer collaborator
type CategoryAnalysis struct {
	Category        string              `json:"category"`
	CategoryScore   float64             `json:"category_score"` // 0..1
	CriteriaScores  []CriterionAnalysis `json:"criteria_scores"`
	OverallAnalysis string              `json:"overall_analysis,omitempty"`
	KeyFindings     []string            `json:"key_findings,omitempty"`
	Recommendations []string            `json:"recommendations,omitempty"`
	Usage           TokenUsage          `json:"-"`
}

// PartialCategoryResult is a best-effort mid-run snapshot of one category
type PartialCategoryResult struct {
	TranscriptID string           `json:"transcript_id"`
	TemplateID   string           `json:"template_id"`
	Analysis     CategoryAnalysis `json:"analysis"`
	SavedAt      time.Time        `json:"saved_at"`
}
