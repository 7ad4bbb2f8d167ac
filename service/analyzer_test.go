package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crypticpy/RTASS-sub003/config"
	"github.com/crypticpy/RTASS-sub003/model"
)

func analyzerForServer(t *testing.T, handler http.HandlerFunc) (*LLMAnalyzer, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewLLMAnalyzer(&config.AnalyzerConfig{
		APIURL:         server.URL,
		APIKey:         "test-key",
		Model:          "test-model",
		Temperature:    0.1,
		TimeoutSeconds: 5,
	}), server
}

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
		"usage": map[string]int{
			"prompt_tokens":     120,
			"completion_tokens": 80,
			"total_tokens":      200,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Fatalf("Failed to encode reply: %v", err)
	}
}

func TestAnalyzeCategory(t *testing.T) {
	analysisJSON := `{
		"category_score": 0.85,
		"criteria_scores": [
			{"criterion_id": "c1", "score": "PASS", "confidence": 0.92, "evidence": ["Dispatch confirmed within 20 seconds"], "reasoning": "Acknowledged promptly"},
			{"criterion_id": "c2", "score": "fail", "confidence": 0.8, "impact": "high", "recommendation": "Repeat address on assignment"}
		],
		"overall_analysis": "Mostly compliant dispatch sequence",
		"key_findings": ["Address was not repeated"],
		"recommendations": ["Reinforce address readback"]
	}`

	var gotRequest chatRequest
	analyzer, _ := analyzerForServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		chatReply(t, w, analysisJSON)
	})

	result, err := analyzer.AnalyzeCategory(context.Background(), AnalysisRequest{
		TranscriptText: "Engine 5 respond to 123 Main for a reported structure fire.",
		Incident:       model.IncidentContext{Type: "structure_fire", Date: time.Now(), Units: []string{"E5"}},
		Category: model.Category{
			Name:   "Dispatch",
			Weight: 1.0,
			Criteria: []model.Criterion{
				{ID: "c1", Description: "Prompt acknowledgment", ScoringMethod: model.MethodPassFail, Weight: 0.5},
				{ID: "c2", Description: "Address readback", ScoringMethod: model.MethodPassFail, Weight: 0.5},
			},
		},
	})
	if err != nil {
		t.Fatalf("AnalyzeCategory failed: %v", err)
	}

	if result.Category != "Dispatch" {
		t.Errorf("Expected category Dispatch, got %s", result.Category)
	}
	if result.CategoryScore != 0.85 {
		t.Errorf("Expected category score 0.85, got %v", result.CategoryScore)
	}
	if len(result.CriteriaScores) != 2 {
		t.Fatalf("Expected 2 criteria scores, got %d", len(result.CriteriaScores))
	}
	if result.CriteriaScores[0].Score != model.CriterionPass {
		t.Errorf("Expected PASS, got %s", result.CriteriaScores[0].Score)
	}
	// lowercase wire values normalize to the canonical constants
	if result.CriteriaScores[1].Score != model.CriterionFail {
		t.Errorf("Expected FAIL, got %s", result.CriteriaScores[1].Score)
	}
	if result.CriteriaScores[1].Impact != model.SeverityHigh {
		t.Errorf("Expected impact HIGH, got %s", result.CriteriaScores[1].Impact)
	}
	if result.Usage.TotalTokens != 200 {
		t.Errorf("Expected 200 total tokens, got %d", result.Usage.TotalTokens)
	}

	// Fixed evaluation temperature and JSON mode on the wire
	if gotRequest.Temperature != 0.1 {
		t.Errorf("Expected temperature 0.1, got %v", gotRequest.Temperature)
	}
	if gotRequest.ResponseFormat == nil || gotRequest.ResponseFormat.Type != "json_object" {
		t.Error("Expected json_object response format")
	}
	if len(gotRequest.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(gotRequest.Messages))
	}
	if !strings.Contains(gotRequest.Messages[1].Content, "structure fire") {
		t.Error("Expected transcript text in prompt")
	}
	if !strings.Contains(gotRequest.Messages[1].Content, "Address readback") {
		t.Error("Expected criterion description in prompt")
	}
}

func TestAnalyzeCategoryClampsScore(t *testing.T) {
	analyzer, _ := analyzerForServer(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `{"category_score": 1.4, "criteria_scores": [{"criterion_id": "c1", "score": "PASS"}]}`)
	})

	result, err := analyzer.AnalyzeCategory(context.Background(), AnalysisRequest{
		Category: model.Category{Name: "Dispatch", Criteria: []model.Criterion{{ID: "c1", ScoringMethod: model.MethodPassFail, Weight: 1}}},
	})
	if err != nil {
		t.Fatalf("AnalyzeCategory failed: %v", err)
	}
	if result.CategoryScore != 1.0 {
		t.Errorf("Expected score clamped to 1.0, got %v", result.CategoryScore)
	}
}

func TestAnalyzeCategoryMalformedJSON(t *testing.T) {
	analyzer, _ := analyzerForServer(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "this is not json")
	})

	_, err := analyzer.AnalyzeCategory(context.Background(), AnalysisRequest{
		Category: model.Category{Name: "Dispatch"},
	})
	if err == nil {
		t.Fatal("Expected parse error for malformed analysis")
	}
}

func TestAnalyzeCategoryAPIError(t *testing.T) {
	analyzer, _ := analyzerForServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limit exceeded", "type": "rate_limit"}}`))
	})

	_, err := analyzer.AnalyzeCategory(context.Background(), AnalysisRequest{
		Category: model.Category{Name: "Dispatch"},
	})
	if err == nil {
		t.Fatal("Expected error for API failure")
	}
	if !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Errorf("Expected decoded API error message, got %v", err)
	}
}

func TestAnalyzeCategoryMissingAPIKey(t *testing.T) {
	analyzer := NewLLMAnalyzer(&config.AnalyzerConfig{APIURL: "http://localhost", TimeoutSeconds: 1})

	_, err := analyzer.AnalyzeCategory(context.Background(), AnalysisRequest{
		Category: model.Category{Name: "Dispatch"},
	})
	if err == nil {
		t.Fatal("Expected error for missing API key")
	}
}

func TestGenerateNarrative(t *testing.T) {
	analyzer, _ := analyzerForServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.ResponseFormat != nil {
			t.Error("Narrative generation should not force JSON mode")
		}
		if !strings.Contains(req.Messages[1].Content, "Overall score: 82/100") {
			t.Error("Expected overall score in narrative prompt")
		}
		chatReply(t, w, "  The incident was handled competently overall.  ")
	})

	result, err := analyzer.GenerateNarrative(context.Background(), NarrativeRequest{
		OverallScore: 82,
		Categories: []model.CategoryResult{
			{Name: "Dispatch", Score: 82, Status: model.StatusPass},
		},
		CriticalFindings: []model.Finding{
			{Category: "Dispatch", Severity: model.SeverityHigh, Description: "Address never repeated"},
		},
	})
	if err != nil {
		t.Fatalf("GenerateNarrative failed: %v", err)
	}

	if result.Text != "The incident was handled competently overall." {
		t.Errorf("Expected trimmed narrative, got %q", result.Text)
	}
	if result.Usage.TotalTokens != 200 {
		t.Errorf("Expected 200 tokens, got %d", result.Usage.TotalTokens)
	}
}

func TestNormalizeCriterionScore(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"PASS", model.CriterionPass},
		{"pass", model.CriterionPass},
		{"NOT_APPLICABLE", model.CriterionNotApplicable},
		{"n/a", model.CriterionNotApplicable},
		{"FAIL", model.CriterionFail},
		{"garbage", model.CriterionFail},
		{"", model.CriterionFail},
	}

	for _, tt := range tests {
		if got := normalizeCriterionScore(tt.in); got != tt.expected {
			t.Errorf("normalizeCriterionScore(%q): expected %s, got %s", tt.in, tt.expected, got)
		}
	}
}
