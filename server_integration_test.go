package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"gigmeter/pkg/analysis"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) *gin.Engine {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	jwtSecret = []byte("test-secret")
	engine = analysis.NewEngine(analysis.DefaultConfig())
	initDB()
	tmp := t.TempDir()
	_ = os.Setenv("FRAME_BASE", tmp)
	r := gin.Default()
	setupRoutes(r)
	return r
}

func TestFullFlow(t *testing.T) {
	r := setupTestServer(t)

	// 1. Register user
	regBody, _ := json.Marshal(map[string]string{"username": "driver1", "password": "pass01"})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(regBody), "", "application/json")
	if resp.Code != 200 && resp.Code != 409 {
		t.Fatalf("register failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 2. Login
	loginBody, _ := json.Marshal(map[string]string{"username": "driver1", "password": "pass01"})
	resp = performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(loginBody), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var loginResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &loginResp)
	token, _ := loginResp["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", loginResp)
	}

	// 3. Analyze recognized lines (pure core over HTTP, nothing persisted)
	analyzeBody, _ := json.Marshal(map[string]any{
		"frame_width":  720,
		"frame_height": 1280,
		"lines": []map[string]any{
			{"text": "₹85", "left": 300, "top": 290, "right": 420, "bottom": 310, "confidence": 0.95},
			{"text": "2 Km", "left": 300, "top": 340, "right": 420, "bottom": 360, "confidence": 0.9},
			{"text": "3 Km", "left": 300, "top": 390, "right": 420, "bottom": 410, "confidence": 0.9},
		},
	})
	resp = performRequest(r, http.MethodPost, "/analyze", bytes.NewBuffer(analyzeBody), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("analyze failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var analyzeResp struct {
		Display string `json:"display"`
		Result  struct {
			Rapido *struct {
				BaseFare   float64 `json:"base_fare"`
				Profitable bool    `json:"profitable"`
			} `json:"rapido"`
		} `json:"result"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &analyzeResp)
	if analyzeResp.Result.Rapido == nil || analyzeResp.Result.Rapido.BaseFare != 85 || !analyzeResp.Result.Rapido.Profitable {
		t.Fatalf("unexpected analyze result: %s", resp.Body.String())
	}
	if !strings.Contains(analyzeResp.Display, "Rapido") {
		t.Fatalf("display missing rapido line: %q", analyzeResp.Display)
	}

	// 4. Status endpoint responds (placeholder until a frame is uploaded)
	resp = performRequest(r, http.MethodGet, "/status", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("status failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 5. List offers and frames
	resp = performRequest(r, http.MethodGet, "/offers", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("list offers failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodGet, "/offers/summary", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("offer summary failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodGet, "/frames", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("list frames failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 6. Unauthorized access to protected endpoint should be 401
	unauth := performRequest(r, http.MethodGet, "/offers", nil, "", "")
	if unauth.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthorized list offers got %d", unauth.Code)
	}
}

func TestMigrateCommand(t *testing.T) {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	initDB()
}
