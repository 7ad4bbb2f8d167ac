package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/crypticpy/RTASS-sub003/config"
	"github.com/crypticpy/RTASS-sub003/model"
)

// AnalysisRequest carries everything one category evaluation needs
type AnalysisRequest struct {
	TranscriptText  string
	Incident        model.IncidentContext
	Category        model.Category
	AdditionalNotes string
}

// NarrativeRequest carries the aggregated results the narrative is built from
type NarrativeRequest struct {
	OverallScore     int
	Categories       []model.CategoryResult
	CriticalFindings []model.Finding
}

// NarrativeResult is the generated narrative plus its token cost
type NarrativeResult struct {
	Text  string
	Usage model.TokenUsage
}

// CategoryAnalyzer evaluates one rubric category against a transcript.
// Implementations must be idempotent per call and hold no cross-call state.
type CategoryAnalyzer interface {
	AnalyzeCategory(ctx context.Context, req AnalysisRequest) (*model.CategoryAnalysis, error)
}

// NarrativeGenerator produces the final audit narrative
type NarrativeGenerator interface {
	GenerateNarrative(ctx context.Context, req NarrativeRequest) (*NarrativeResult, error)
}

const analyzerSystemPrompt = `You are a public-safety communications compliance auditor. ` +
	`Evaluate the incident transcript against the rubric category you are given. ` +
	`Score each criterion as PASS, FAIL, or NOT_APPLICABLE with evidence quoted from the transcript. ` +
	`Respond with a single JSON object matching the requested schema and nothing else.`

const narrativeSystemPrompt = `You are a public-safety communications compliance auditor. ` +
	`Write a concise executive summary of the audit results you are given. ` +
	`Lead with the overall outcome, then the most significant strengths and deficiencies. Plain text only.`

// LLMAnalyzer calls an OpenAI-compatible chat completions API to evaluate
// categories and generate narratives. Temperature is fixed from config so
// repeated evaluations of the same transcript are as reproducible as the
// backend allows.
type LLMAnalyzer struct {
	config     *config.AnalyzerConfig
	httpClient *http.Client
}

func NewLLMAnalyzer(cfg *config.AnalyzerConfig) *LLMAnalyzer {
	return &LLMAnalyzer{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// categoryAnalysisWire is the JSON contract the model is asked to produce
type categoryAnalysisWire struct {
	CategoryScore  float64 `json:"category_score"`
	CriteriaScores []struct {
		CriterionID    string   `json:"criterion_id"`
		Score          string   `json:"score"`
		Confidence     float64  `json:"confidence"`
		Evidence       []string `json:"evidence"`
		Reasoning      string   `json:"reasoning"`
		Impact         string   `json:"impact"`
		Recommendation string   `json:"recommendation"`
	} `json:"criteria_scores"`
	OverallAnalysis string   `json:"overall_analysis"`
	KeyFindings     []string `json:"key_findings"`
	Recommendations []string `json:"recommendations"`
}

// AnalyzeCategory evaluates one category of the rubric against the transcript
func (a *LLMAnalyzer) AnalyzeCategory(ctx context.Context, req AnalysisRequest) (*model.CategoryAnalysis, error) {
	if err := a.ensureAPIKey(); err != nil {
		return nil, err
	}

	content, usage, err := a.complete(ctx, analyzerSystemPrompt, buildCategoryPrompt(req), true)
	if err != nil {
		return nil, fmt.Errorf("analyze category %q: %w", req.Category.Name, err)
	}

	var wire categoryAnalysisWire
	if err := json.Unmarshal([]byte(content), &wire); err != nil {
		return nil, fmt.Errorf("parse analysis for category %q: %w", req.Category.Name, err)
	}

	if wire.CategoryScore < 0 {
		wire.CategoryScore = 0
	}
	if wire.CategoryScore > 1 {
		wire.CategoryScore = 1
	}

	analysis := &model.CategoryAnalysis{
		Category:        req.Category.Name,
		CategoryScore:   wire.CategoryScore,
		OverallAnalysis: wire.OverallAnalysis,
		KeyFindings:     wire.KeyFindings,
		Recommendations: wire.Recommendations,
		Usage:           usage,
	}
	for _, cs := range wire.CriteriaScores {
		analysis.CriteriaScores = append(analysis.CriteriaScores, model.CriterionAnalysis{
			CriterionID:    cs.CriterionID,
			Score:          normalizeCriterionScore(cs.Score),
			Confidence:     cs.Confidence,
			Evidence:       cs.Evidence,
			Reasoning:      cs.Reasoning,
			Impact:         strings.ToUpper(cs.Impact),
			Recommendation: cs.Recommendation,
		})
	}

	return analysis, nil
}

// GenerateNarrative produces the final audit summary text
func (a *LLMAnalyzer) GenerateNarrative(ctx context.Context, req NarrativeRequest) (*NarrativeResult, error) {
	if err := a.ensureAPIKey(); err != nil {
		return nil, err
	}

	content, usage, err := a.complete(ctx, narrativeSystemPrompt, buildNarrativePrompt(req), false)
	if err != nil {
		return nil, fmt.Errorf("generate narrative: %w", err)
	}

	text := strings.TrimSpace(content)
	if text == "" {
		return nil, errors.New("narrative generation returned empty text")
	}

	return &NarrativeResult{Text: text, Usage: usage}, nil
}

// complete performs one chat completion round trip
func (a *LLMAnalyzer) complete(ctx context.Context, system, user string, jsonMode bool) (string, model.TokenUsage, error) {
	var usage model.TokenUsage

	payload := chatRequest{
		Model: a.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: a.config.Temperature,
	}
	if jsonMode {
		payload.ResponseFormat = &struct {
			Type string `json:"type"`
		}{Type: "json_object"}
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", usage, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.APIURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", usage, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", usage, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", usage, a.decodeAPIError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", usage, fmt.Errorf("failed to read response: %w", err)
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", usage, fmt.Errorf("failed to parse response: %w, body: %s", err, string(body))
	}

	if len(result.Choices) == 0 {
		return "", usage, errors.New("no completion returned")
	}

	usage = model.TokenUsage{
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		TotalTokens:      result.Usage.TotalTokens,
	}

	return result.Choices[0].Message.Content, usage, nil
}

func (a *LLMAnalyzer) decodeAPIError(resp *http.Response) error {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("analyzer api error: status %d type %s message %s", resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
	}

	return fmt.Errorf("analyzer api error: status %d body %s", resp.StatusCode, string(body))
}

func (a *LLMAnalyzer) ensureAPIKey() error {
	if strings.TrimSpace(a.config.APIKey) == "" {
		return errors.New("analyzer api key is not configured")
	}
	return nil
}

// normalizeCriterionScore coerces model output to the three allowed values,
// defaulting anything unrecognized to FAIL so a malformed score never
// inflates the audit
func normalizeCriterionScore(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case model.CriterionPass:
		return model.CriterionPass
	case model.CriterionNotApplicable, "N/A", "NA":
		return model.CriterionNotApplicable
	default:
		return model.CriterionFail
	}
}

func buildCategoryPrompt(req AnalysisRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Incident type: %s\n", req.Incident.Type)
	if !req.Incident.Date.IsZero() {
		fmt.Fprintf(&b, "Incident date: %s\n", req.Incident.Date.Format(time.RFC3339))
	}
	if len(req.Incident.Units) > 0 {
		fmt.Fprintf(&b, "Responding units: %s\n", strings.Join(req.Incident.Units, ", "))
	}
	if req.Incident.Notes != "" {
		fmt.Fprintf(&b, "Incident notes: %s\n", req.Incident.Notes)
	}
	if req.AdditionalNotes != "" {
		fmt.Fprintf(&b, "Auditor notes: %s\n", req.AdditionalNotes)
	}

	fmt.Fprintf(&b, "\nCategory under evaluation: %s\n", req.Category.Name)
	if req.Category.Description != "" {
		fmt.Fprintf(&b, "Category description: %s\n", req.Category.Description)
	}
	if len(req.Category.RegulatoryReferences) > 0 {
		fmt.Fprintf(&b, "Regulatory references: %s\n", strings.Join(req.Category.RegulatoryReferences, "; "))
	}

	b.WriteString("\nCriteria:\n")
	for _, cr := range req.Category.Criteria {
		fmt.Fprintf(&b, "- id=%s weight=%.2f method=%s: %s\n", cr.ID, cr.Weight, cr.ScoringMethod, cr.Description)
		if cr.EvidenceRequired != "" {
			fmt.Fprintf(&b, "  evidence required: %s\n", cr.EvidenceRequired)
		}
	}

	b.WriteString("\nRespond with JSON: {\"category_score\": <0..1>, \"criteria_scores\": [{\"criterion_id\", \"score\" (PASS|FAIL|NOT_APPLICABLE), \"confidence\" <0..1>, \"evidence\" [..], \"reasoning\", \"impact\" (CRITICAL|HIGH|MEDIUM|LOW), \"recommendation\"}], \"overall_analysis\", \"key_findings\" [..], \"recommendations\" [..]}\n")

	b.WriteString("\nTranscript:\n")
	b.WriteString(req.TranscriptText)

	return b.String()
}

func buildNarrativePrompt(req NarrativeRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Overall score: %d/100\n\nCategory results:\n", req.OverallScore)
	for _, cat := range req.Categories {
		fmt.Fprintf(&b, "- %s: %d/100 (%s)", cat.Name, cat.Score, cat.Status)
		if cat.Rationale != "" {
			fmt.Fprintf(&b, " - %s", cat.Rationale)
		}
		b.WriteString("\n")
	}

	if len(req.CriticalFindings) > 0 {
		b.WriteString("\nCritical findings:\n")
		for _, f := range req.CriticalFindings {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", f.Severity, f.Category, f.Description)
		}
	}

	return b.String()
}
