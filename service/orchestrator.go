package service

import (
	"context"
	"sort"
	"time"

	"github.com/crypticpy/RTASS-sub003/model"
	"github.com/crypticpy/RTASS-sub003/pkg/logger"
	"github.com/google/uuid"
)

// ProgressFunc receives per-category progress during an audit run. current is
// 1-based and strictly increasing; it reaches total exactly once.
type ProgressFunc func(current, total int, category string)

// AuditOptions tunes one orchestrator run
type AuditOptions struct {
	OnProgress         ProgressFunc
	SavePartialResults bool
	AdditionalNotes    string
	CorrelationID      string
	Mode               string
}

// Orchestrator drives one audit run: sequential category evaluation through
// the analyzer collaborator, aggregation through the scoring engine, narrative
// generation, and a single final persist. One instance is safe for concurrent
// runs; all per-run state is local to Execute.
type Orchestrator struct {
	store    AuditStore
	analyzer CategoryAnalyzer
	narrator NarrativeGenerator
	model    string
}

func NewOrchestrator(store AuditStore, analyzer CategoryAnalyzer, narrator NarrativeGenerator, modelName string) *Orchestrator {
	return &Orchestrator{
		store:    store,
		analyzer: analyzer,
		narrator: narrator,
		model:    modelName,
	}
}

// Execute runs a full audit of one transcript against one template.
//
// Categories are evaluated strictly in template order, one at a time. A
// failing category never aborts the run: it is recorded as a zero-score
// placeholder with a retry recommendation and the loop continues. Only
// store-level failures, narrative generation, and the final persist are
// fatal.
func (o *Orchestrator) Execute(ctx context.Context, transcriptID, templateID string, opts AuditOptions) (*model.AuditResult, error) {
	start := time.Now()
	auditID := uuid.New().String()

	ctx = context.WithValue(ctx, logger.AuditIDKey, auditID)
	if opts.CorrelationID != "" {
		ctx = context.WithValue(ctx, logger.CorrelationIDKey, opts.CorrelationID)
	}

	// Initializing
	transcript := o.store.FindTranscript(transcriptID)
	if transcript == nil {
		return nil, model.NewNotFound("transcript %s not found", transcriptID)
	}
	template := o.store.FindTemplate(templateID)
	if template == nil {
		return nil, model.NewNotFound("template %s not found", templateID)
	}

	incident := buildIncidentContext(transcript)
	total := len(template.Categories)

	logger.Info(ctx, "audit started",
		"transcript_id", transcriptID,
		"template_id", templateID,
		"categories", total,
	)

	// Client disconnects suppress event emission downstream but do not abort
	// work already handed to the analyzer; in-flight evaluation runs to
	// completion on a detached context.
	callCtx := context.WithoutCancel(ctx)

	var (
		analyses      []*model.CategoryAnalysis
		usage         model.TokenUsage
		partialsSaved bool
	)

	// EvaluatingCategory(i), strictly sequential
	for i, cat := range template.Categories {
		analysis, err := o.analyzer.AnalyzeCategory(callCtx, AnalysisRequest{
			TranscriptText:  transcript.Text,
			Incident:        incident,
			Category:        cat,
			AdditionalNotes: opts.AdditionalNotes,
		})
		if err != nil {
			logger.Warn(ctx, "category evaluation failed",
				"category", cat.Name,
				"error", err,
			)
			analysis = failedCategoryPlaceholder(cat.Name, err)
		} else {
			addUsage(&usage, analysis.Usage)
		}

		analyses = append(analyses, analysis)

		if opts.OnProgress != nil {
			opts.OnProgress(i+1, total, cat.Name)
		}

		if opts.SavePartialResults {
			partial := &model.PartialCategoryResult{
				TranscriptID: transcriptID,
				TemplateID:   templateID,
				Analysis:     *analysis,
			}
			if err := o.store.SavePartialCategoryResult(auditID, partial); err != nil {
				// best-effort: a failed snapshot never fails the run
				logger.Warn(ctx, "failed to save partial result",
					"category", cat.Name,
					"error", err,
				)
			} else {
				partialsSaved = true
			}
		}
	}

	// Aggregating
	if missing := missingCategories(template, analyses); len(missing) > 0 {
		logger.Warn(ctx, "audit is missing category results", "missing", missing)
	}
	failedCategories := collectFailedCategories(analyses)

	var (
		categories []model.CategoryResult
		findings   []model.Finding
		recs       []model.Recommendation
		outcomes   []CategoryOutcome
	)
	for i, analysis := range analyses {
		cat := template.Categories[i]
		categories = append(categories, o.buildCategoryResult(&cat, analysis))
		findings = append(findings, flattenFindings(&cat, analysis)...)
		recs = append(recs, prioritizeRecommendations(analysis)...)
		outcomes = append(outcomes, CategoryOutcome{
			Score:  roundHalfUp(analysis.CategoryScore * 100),
			Weight: cat.Weight,
		})
	}

	// HIGH-priority recommendations first, original order otherwise
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority == model.PriorityHigh && recs[j].Priority != model.PriorityHigh
	})

	overallScore, overallStatus := ScoreOverall(outcomes)

	narrative, err := o.narrator.GenerateNarrative(callCtx, NarrativeRequest{
		OverallScore:     overallScore,
		Categories:       categories,
		CriticalFindings: criticalFindings(findings),
	})
	if err != nil {
		return nil, model.NewExternalServiceError("narrative generation failed: %v", err)
	}
	addUsage(&usage, narrative.Usage)

	mode := opts.Mode
	if mode == "" {
		mode = model.ModeModular
	}

	result := &model.AuditResult{
		ID:              auditID,
		IncidentID:      transcript.IncidentID,
		TranscriptID:    transcriptID,
		TemplateID:      templateID,
		OverallStatus:   overallStatus,
		OverallScore:    overallScore,
		Summary:         narrative.Text,
		Categories:      categories,
		Findings:        findings,
		Recommendations: recs,
		Metadata: model.AuditMetadata{
			Model:               o.model,
			ProcessingTimeSec:   time.Since(start).Seconds(),
			TokenUsage:          usage,
			Mode:                mode,
			FailedCategories:    failedCategories,
			PartialResultsSaved: partialsSaved,
			CorrelationID:       opts.CorrelationID,
		},
		CreatedAt: time.Now(),
	}

	// Persisting
	if err := o.store.CreateAudit(result); err != nil {
		return nil, model.NewExternalServiceError("failed to persist audit: %v", err)
	}

	logger.Info(ctx, "audit completed",
		"overall_score", overallScore,
		"overall_status", overallStatus,
		"failed_categories", len(failedCategories),
		"duration_sec", result.Metadata.ProcessingTimeSec,
	)

	return result, nil
}

// buildCategoryResult transforms one analyzer response back into a persisted
// category record, consulting the scoring engine over the criterion outcomes
func (o *Orchestrator) buildCategoryResult(cat *model.Category, analysis *model.CategoryAnalysis) model.CategoryResult {
	result := model.CategoryResult{
		Name:      cat.Name,
		Weight:    cat.Weight,
		Rationale: analysis.OverallAnalysis,
	}

	if len(analysis.CriteriaScores) == 0 {
		// failed or empty evaluation
		result.Score = 0
		result.Status = model.StatusFail
		return result
	}

	var outcomes []CriterionOutcome
	for _, cs := range analysis.CriteriaScores {
		weight := 0.0
		description := ""
		if cr := cat.FindCriterion(cs.CriterionID); cr != nil {
			weight = cr.Weight
			description = cr.Description
		}

		result.Criteria = append(result.Criteria, model.CriterionResult{
			CriterionID: cs.CriterionID,
			Description: description,
			Status:      cs.Score,
			Score:       CriterionScore(cs.Score),
			Weight:      weight,
			Rationale:   cs.Reasoning,
			Findings:    cs.Evidence,
		})
		outcomes = append(outcomes, CriterionOutcome{Status: cs.Score, Weight: weight})
	}

	scored := ScoreCategory(outcomes)
	result.Score = scored.Score
	result.Status = scored.Status
	if scored.Rationale != "" {
		result.Rationale = scored.Rationale
	}
	return result
}

// flattenFindings lifts criterion evidence and key findings into the
// audit-level findings list
func flattenFindings(cat *model.Category, analysis *model.CategoryAnalysis) []model.Finding {
	var findings []model.Finding

	for _, cs := range analysis.CriteriaScores {
		if cs.Score != model.CriterionFail {
			continue
		}
		severity := cs.Impact
		if severity == "" {
			severity = model.SeverityMedium
		}
		findings = append(findings, model.Finding{
			Category:    cat.Name,
			CriterionID: cs.CriterionID,
			Severity:    severity,
			Description: cs.Reasoning,
			Evidence:    cs.Evidence,
		})
	}

	for _, kf := range analysis.KeyFindings {
		findings = append(findings, model.Finding{
			Category:    cat.Name,
			Severity:    model.SeverityMedium,
			Description: kf,
		})
	}

	return findings
}

// prioritizeRecommendations assigns HIGH priority when the category scored
// below 0.6 or any failed criterion carries CRITICAL/HIGH impact
func prioritizeRecommendations(analysis *model.CategoryAnalysis) []model.Recommendation {
	priority := model.PriorityMedium
	if analysis.CategoryScore < 0.6 {
		priority = model.PriorityHigh
	} else {
		for _, cs := range analysis.CriteriaScores {
			if cs.Score == model.CriterionFail &&
				(cs.Impact == model.SeverityCritical || cs.Impact == model.SeverityHigh) {
				priority = model.PriorityHigh
				break
			}
		}
	}

	var recs []model.Recommendation
	for _, text := range analysis.Recommendations {
		recs = append(recs, model.Recommendation{
			Priority: priority,
			Category: analysis.Category,
			Text:     text,
		})
	}
	for _, cs := range analysis.CriteriaScores {
		if cs.Score == model.CriterionFail && cs.Recommendation != "" {
			p := priority
			if cs.Impact == model.SeverityCritical || cs.Impact == model.SeverityHigh {
				p = model.PriorityHigh
			}
			recs = append(recs, model.Recommendation{
				Priority: p,
				Category: analysis.Category,
				Text:     cs.Recommendation,
			})
		}
	}
	return recs
}

// failedCategoryPlaceholder is appended when an analyzer call fails so the
// final result still carries every category
func failedCategoryPlaceholder(name string, err error) *model.CategoryAnalysis {
	return &model.CategoryAnalysis{
		Category:        name,
		CategoryScore:   0,
		OverallAnalysis: "Category evaluation failed: " + err.Error(),
		Recommendations: []string{
			"Evaluation of category \"" + name + "\" failed; re-run the audit to retry this category",
		},
	}
}

// collectFailedCategories identifies scored-but-empty placeholder results
func collectFailedCategories(analyses []*model.CategoryAnalysis) []string {
	var failed []string
	for _, a := range analyses {
		if a.CategoryScore == 0 && len(a.CriteriaScores) == 0 {
			failed = append(failed, a.Category)
		}
	}
	return failed
}

// missingCategories returns expected category names with no analysis at all
func missingCategories(template *model.Template, analyses []*model.CategoryAnalysis) []string {
	got := make(map[string]bool, len(analyses))
	for _, a := range analyses {
		got[a.Category] = true
	}

	var missing []string
	for _, cat := range template.Categories {
		if !got[cat.Name] {
			missing = append(missing, cat.Name)
		}
	}
	return missing
}

// criticalFindings filters to the findings worth surfacing to the narrative
func criticalFindings(findings []model.Finding) []model.Finding {
	var critical []model.Finding
	for _, f := range findings {
		if f.Severity == model.SeverityCritical || f.Severity == model.SeverityHigh {
			critical = append(critical, f)
		}
	}
	return critical
}

func buildIncidentContext(transcript *model.Transcript) model.IncidentContext {
	if transcript.Incident == nil {
		return model.IncidentContext{}
	}
	return model.IncidentContext{
		Type:  transcript.Incident.Type,
		Date:  transcript.Incident.Date,
		Units: transcript.Incident.Units,
		Notes: transcript.Incident.Notes,
	}
}

func addUsage(total *model.TokenUsage, u model.TokenUsage) {
	total.PromptTokens += u.PromptTokens
	total.CompletionTokens += u.CompletionTokens
	total.TotalTokens += u.TotalTokens
}
