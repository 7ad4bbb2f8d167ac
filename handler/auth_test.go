package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/crypticpy/RTASS-sub003/config"
	"github.com/gin-gonic/gin"
)

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret",
			TokenExpireHours: 24,
		},
		Users: []config.User{
			{Username: "auditor1", Password: "secret", Role: "auditor"},
		},
	}

	h := NewAuthHandler(cfg)

	router := gin.New()
	router.POST("/api/auth/login", h.Login)
	return router
}

func TestLogin(t *testing.T) {
	router := newAuthRouter()

	w := postJSON(router, "/api/auth/login", gin.H{
		"username": "auditor1",
		"password": "secret",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Token == "" {
		t.Error("Expected token in response")
	}
	if resp.Username != "auditor1" {
		t.Errorf("Expected username auditor1, got %s", resp.Username)
	}
	if resp.Role != "auditor" {
		t.Errorf("Expected role auditor, got %s", resp.Role)
	}
	if resp.ExpiresAt == "" {
		t.Error("Expected expiry timestamp")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	router := newAuthRouter()

	w := postJSON(router, "/api/auth/login", gin.H{
		"username": "auditor1",
		"password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	router := newAuthRouter()

	w := postJSON(router, "/api/auth/login", gin.H{
		"username": "nobody",
		"password": "secret",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestLoginMissingFields(t *testing.T) {
	router := newAuthRouter()

	w := postJSON(router, "/api/auth/login", gin.H{"username": "auditor1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}
