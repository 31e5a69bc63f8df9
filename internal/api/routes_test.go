package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/credit-engine/internal/config"
	"github.com/rawblock/credit-engine/internal/pipeline"
	"github.com/rawblock/credit-engine/internal/scoring"
)

// scoreBatchJSON is 10 records: 8 valid across 3 wallets plus 2 that the
// normalizer drops (unknown action, negative amount).
const scoreBatchJSON = `[
	{"wallet_address": "0xAAA", "action": "deposit", "amount": 1000, "timestamp": "2021-08-25T00:00:00Z"},
	{"wallet_address": "0xAAA", "action": "borrow", "amount": 500, "timestamp": "2021-08-26T00:00:00Z"},
	{"wallet_address": "0xAAA", "action": "repay", "amount": 500, "timestamp": "2021-08-27T00:00:00Z"},
	{"wallet_address": "0xBBB", "action": "deposit", "amount": 1000, "timestamp": "2021-08-25T06:00:00Z"},
	{"wallet_address": "0xBBB", "action": "borrow", "amount": 800, "timestamp": "2021-08-26T06:00:00Z"},
	{"wallet_address": "0xBBB", "action": "liquidationcall", "amount": 100, "timestamp": "2021-08-27T06:00:00Z"},
	{"wallet_address": "0xCCC", "action": "deposit", "amount": 200, "timestamp": "2021-08-25T12:00:00Z"},
	{"wallet_address": "0xCCC", "action": "deposit", "amount": 300, "timestamp": "2021-08-26T12:00:00Z"},
	{"wallet_address": "0xDDD", "action": "swap", "amount": 100, "timestamp": "2021-08-25T00:00:00Z"},
	{"wallet_address": "0xEEE", "action": "deposit", "amount": -5, "timestamp": "2021-08-25T00:00:00Z"}
]`

func testConfig(token string) *config.Config {
	return &config.Config{
		Port:            "8080",
		AllowedOrigins:  "*",
		APIAuthToken:    token,
		RateLimitPerMin: 1000,
		FeatureWorkers:  2,
	}
}

func testRouter(cfg *config.Config) *gin.Engine {
	runner := pipeline.NewRunner(func() scoring.Scorer { return scoring.NewReferenceScorer(42) }, 2, nil)
	return SetupRouter(cfg, nil, runner, NewHub())
}

func doRequest(r *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r := testRouter(testConfig(""))

	w := doRequest(r, "GET", "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200. Got: %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected valid JSON body. Got: %v", err)
	}
	if body["status"] != "operational" {
		t.Errorf("Expected operational status. Got: %v", body["status"])
	}
	if body["dbConnected"] != false {
		t.Errorf("Expected dbConnected=false without a database. Got: %v", body["dbConnected"])
	}
}

func TestScoreEndpoint_ScoresBatch(t *testing.T) {
	r := testRouter(testConfig(""))

	w := doRequest(r, "POST", "/api/v1/score", scoreBatchJSON, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200. Got: %d, body: %s", w.Code, w.Body.String())
	}

	var out pipeline.Result
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Expected a pipeline result body. Got: %v", err)
	}
	if out.TotalRecords != 10 {
		t.Errorf("Expected 10 total records. Got: %d", out.TotalRecords)
	}
	if out.DroppedRecords != 2 {
		t.Errorf("Expected 2 dropped records. Got: %d", out.DroppedRecords)
	}
	if out.WalletCount != 3 || len(out.Scores) != 3 {
		t.Fatalf("Expected 3 scored wallets. Got: %d (%d scores)", out.WalletCount, len(out.Scores))
	}
	for i := 1; i < len(out.Scores); i++ {
		if out.Scores[i].CreditScore > out.Scores[i-1].CreditScore {
			t.Errorf("Expected scores in descending order. Got: %d before %d",
				out.Scores[i-1].CreditScore, out.Scores[i].CreditScore)
		}
	}
	if out.Analysis.Distribution.TotalWallets != 3 {
		t.Errorf("Expected analysis over 3 wallets. Got: %d", out.Analysis.Distribution.TotalWallets)
	}
}

func TestScoreEndpoint_InvalidJSON(t *testing.T) {
	r := testRouter(testConfig(""))

	w := doRequest(r, "POST", "/api/v1/score", `{"not": "an array"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400. Got: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid request body") {
		t.Errorf("Expected invalid body error. Got: %s", w.Body.String())
	}
}

func TestScoreEndpoint_EmptyBatch(t *testing.T) {
	r := testRouter(testConfig(""))

	w := doRequest(r, "POST", "/api/v1/score", `[]`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400. Got: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "empty") {
		t.Errorf("Expected empty batch error. Got: %s", w.Body.String())
	}
}

func TestScoreEndpoint_MissingRequiredField(t *testing.T) {
	r := testRouter(testConfig(""))

	w := doRequest(r, "POST", "/api/v1/score", `[{"action": "deposit", "amount": 10, "timestamp": "2021-08-25T00:00:00Z"}]`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400. Got: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "wallet_address") {
		t.Errorf("Expected missing field name in error. Got: %s", w.Body.String())
	}
}

func TestScoreAsyncEndpoint(t *testing.T) {
	r := testRouter(testConfig(""))

	w := doRequest(r, "POST", "/api/v1/score/async", scoreBatchJSON, "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202. Got: %d, body: %s", w.Code, w.Body.String())
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected valid JSON body. Got: %v", err)
	}
	if body["status"] != "run_started" {
		t.Errorf("Expected run_started status. Got: %v", body["status"])
	}
	if body["runId"] == nil || body["runId"] == "" {
		t.Error("Expected a run id in the response")
	}

	// Poll progress until the background run completes.
	deadline := time.Now().Add(5 * time.Second)
	for {
		pw := doRequest(r, "GET", "/api/v1/score/progress", "", "")
		var p pipeline.Progress
		if err := json.Unmarshal(pw.Body.Bytes(), &p); err != nil {
			t.Fatalf("Expected progress body. Got: %v", err)
		}
		if !p.IsRunning && p.Stage == pipeline.StageComplete {
			if p.ScoredWallets != 3 {
				t.Errorf("Expected 3 scored wallets in progress. Got: %d", p.ScoredWallets)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Background run did not complete. Last stage: %s", p.Stage)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestProgressEndpoint_Idle(t *testing.T) {
	r := testRouter(testConfig(""))

	w := doRequest(r, "GET", "/api/v1/score/progress", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200. Got: %d", w.Code)
	}

	var p pipeline.Progress
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("Expected progress body. Got: %v", err)
	}
	if p.IsRunning {
		t.Error("Expected runner to be idle")
	}
	if p.Stage != pipeline.StageIdle {
		t.Errorf("Expected idle stage. Got: %s", p.Stage)
	}
}

func TestPersistenceEndpointsWithoutDatabase(t *testing.T) {
	r := testRouter(testConfig(""))
	runID := "1b4e28ba-2fa1-11d2-883f-b9a761bde3fb"

	paths := []string{
		"/api/v1/runs",
		"/api/v1/runs/" + runID,
		"/api/v1/runs/" + runID + "/scores",
		"/api/v1/runs/" + runID + "/analysis",
		"/api/v1/runs/" + runID + "/report",
		"/api/v1/wallets/0xabc",
		"/api/v1/categories",
	}
	for _, path := range paths {
		w := doRequest(r, "GET", path, "", "")
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected 503 for %s without a database. Got: %d", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), "Database not connected") {
			t.Errorf("Expected database error for %s. Got: %s", path, w.Body.String())
		}
	}
}

func TestProtectedEndpointsRequireToken(t *testing.T) {
	r := testRouter(testConfig("sekrit"))

	w := doRequest(r, "GET", "/api/v1/categories", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a token. Got: %d", w.Code)
	}

	w = doRequest(r, "GET", "/api/v1/categories", "", "wrong")
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 with a wrong token. Got: %d", w.Code)
	}

	// With the right token the request clears auth and hits the
	// database check instead.
	w = doRequest(r, "GET", "/api/v1/categories", "", "sekrit")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 past auth without a database. Got: %d", w.Code)
	}
}

func TestProgressStaysPublicWithAuthEnabled(t *testing.T) {
	r := testRouter(testConfig("sekrit"))

	w := doRequest(r, "GET", "/api/v1/score/progress", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected progress endpoint to stay public. Got: %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := testRouter(testConfig(""))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("OPTIONS", "/api/v1/score", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for preflight. Got: %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected wildcard origin. Got: %q", got)
	}
}

func TestCORSAllowlist(t *testing.T) {
	cfg := testConfig("")
	cfg.AllowedOrigins = "https://app.rawblock.net, https://staging.rawblock.net"
	r := testRouter(cfg)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://app.rawblock.net")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.rawblock.net" {
		t.Errorf("Expected origin to be echoed back. Got: %q", got)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no CORS header for unlisted origin. Got: %q", got)
	}
}
