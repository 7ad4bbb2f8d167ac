package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crypticpy/RTASS-sub003/config"
	"github.com/crypticpy/RTASS-sub003/model"
	"github.com/crypticpy/RTASS-sub003/service"
	"github.com/gin-gonic/gin"
)

func newTranscriptRouter() (*gin.Engine, *service.Store) {
	gin.SetMode(gin.TestMode)

	store := service.NewStore(&config.StoreConfig{})
	h := NewTranscriptHandler(store)

	router := gin.New()
	router.POST("/api/transcripts", h.Create)
	router.GET("/api/transcripts/:id", h.Get)
	return router, store
}

func TestCreateTranscript(t *testing.T) {
	router, store := newTranscriptRouter()

	w := postJSON(router, "/api/transcripts", gin.H{
		"text":   "Engine 5 respond to 123 Main Street.",
		"source": "radio",
		"incident": gin.H{
			"type":  "structure_fire",
			"units": []string{"E5", "L2"},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data model.Transcript `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Data.ID == "" {
		t.Error("Expected generated transcript id")
	}
	if resp.Data.Incident == nil {
		t.Fatal("Expected embedded incident")
	}
	// Status defaults to open when not supplied
	if resp.Data.Incident.Status != model.IncidentOpen {
		t.Errorf("Expected open status, got %s", resp.Data.Incident.Status)
	}
	if resp.Data.IncidentID != resp.Data.Incident.ID {
		t.Error("Expected transcript linked to its incident")
	}

	if store.FindTranscript(resp.Data.ID) == nil {
		t.Error("Expected transcript persisted")
	}
}

func TestCreateTranscriptMissingText(t *testing.T) {
	router, _ := newTranscriptRouter()

	w := postJSON(router, "/api/transcripts", gin.H{
		"incident": gin.H{"type": "structure_fire"},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestGetTranscriptNotFound(t *testing.T) {
	router, _ := newTranscriptRouter()

	req, _ := http.NewRequest("GET", "/api/transcripts/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}
