package controlplane

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/obsidianstack/promcheck/internal/fetch"
	"github.com/obsidianstack/promcheck/pkg/types"
)

const targetsJSON = `{
  "status": "success",
  "data": {
    "activeTargets": [
      {"labels": {"job": "node", "instance": "host-a:9100"}, "health": "up", "lastError": "", "lastScrapeDuration": 0.012},
      {"labels": {"job": "node", "instance": "host-b:9100"}, "health": "down", "lastError": "connection refused", "lastScrapeDuration": 0},
      {"labels": {"job": "mysql", "instance": "db:9104"}, "health": "up", "lastError": "", "lastScrapeDuration": 12.5},
      {"labels": {"job": "mysql", "instance": "db2:9104"}, "health": "unknown", "lastError": "", "lastScrapeDuration": 11}
    ]
  }
}`

func newChecker(t *testing.T, body string, status int) (*Checker, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/targets" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	policy := fetch.DefaultPolicy()
	policy.Sleep = func(context.Context, time.Duration) error { return nil }
	client, err := fetch.New(fetch.Options{Policy: policy})
	if err != nil {
		t.Fatalf("fetch.New: %v", err)
	}
	return New(client), srv.URL
}

func TestCheckTargets_AllTargets(t *testing.T) {
	c, url := newChecker(t, targetsJSON, http.StatusOK)
	res := c.CheckTargets(context.Background(), url+"/", "")

	if res.TotalMetrics != 4 {
		t.Errorf("TotalMetrics = %d, want 4", res.TotalMetrics)
	}
	if got := res.Count(types.SeverityCritical); got != 2 {
		t.Errorf("critical issues = %d, want 2", got)
	}
	if got := res.Count(types.SeverityWarning); got != 2 {
		t.Errorf("warning issues = %d, want 2", got)
	}
	if res.ExitCode() != types.ExitCritical {
		t.Errorf("ExitCode() = %d, want %d", res.ExitCode(), types.ExitCritical)
	}

	down := res.ByCategory(types.CategoryPrometheus)
	if len(down) != 2 {
		t.Fatalf("prometheus issues = %d, want 2", len(down))
	}
	if down[0].Message != "Target down: node/host-b:9100" {
		t.Errorf("message = %q", down[0].Message)
	}
	if down[0].Details["last_error"] != "connection refused" {
		t.Errorf("last_error = %v", down[0].Details["last_error"])
	}
	if down[1].Details["health"] != "unknown" {
		t.Errorf("health = %v, want unknown", down[1].Details["health"])
	}

	slow := res.ByCategory(types.CategoryPerformance)
	if len(slow) != 2 {
		t.Fatalf("performance issues = %d, want 2", len(slow))
	}
	if slow[0].Message != "Slow scrape: mysql/db:9104 (12.50s)" {
		t.Errorf("message = %q", slow[0].Message)
	}
	if slow[0].Details["duration"] != 12.5 {
		t.Errorf("duration = %v, want 12.5", slow[0].Details["duration"])
	}
}

func TestCheckTargets_JobFilter(t *testing.T) {
	c, url := newChecker(t, targetsJSON, http.StatusOK)
	res := c.CheckTargets(context.Background(), url, "node")

	if res.TotalMetrics != 2 {
		t.Errorf("TotalMetrics = %d, want 2", res.TotalMetrics)
	}
	if len(res.Issues) != 1 {
		t.Fatalf("issues = %d, want 1: %+v", len(res.Issues), res.Issues)
	}
	if res.Issues[0].Details["instance"] != "host-b:9100" {
		t.Errorf("instance = %v", res.Issues[0].Details["instance"])
	}
}

func TestCheckTargets_UnknownJob(t *testing.T) {
	c, url := newChecker(t, targetsJSON, http.StatusOK)
	res := c.CheckTargets(context.Background(), url, "kafka")

	if res.TotalMetrics != 0 {
		t.Errorf("TotalMetrics = %d, want 0", res.TotalMetrics)
	}
	if len(res.Issues) != 1 || res.Issues[0].Severity != types.SeverityWarning {
		t.Fatalf("want one warning, got %+v", res.Issues)
	}
}

func TestCheckTargets_SlowThreshold(t *testing.T) {
	c, url := newChecker(t, targetsJSON, http.StatusOK)
	c.SlowScrape = 20 * time.Second
	res := c.CheckTargets(context.Background(), url, "mysql")

	if got := len(res.ByCategory(types.CategoryPerformance)); got != 0 {
		t.Errorf("performance issues = %d, want 0 with a 20s threshold", got)
	}
}

func TestCheckTargets_APIError(t *testing.T) {
	body := `{"status": "error", "errorType": "bad_data", "error": "invalid parameter"}`
	c, url := newChecker(t, body, http.StatusOK)
	res := c.CheckTargets(context.Background(), url, "")

	if len(res.Issues) != 1 {
		t.Fatalf("issues = %d, want 1", len(res.Issues))
	}
	iss := res.Issues[0]
	if iss.Severity != types.SeverityCritical || iss.Category != types.CategoryPrometheus {
		t.Errorf("issue = %s/%s, want CRITICAL/prometheus", iss.Severity, iss.Category)
	}
	if iss.Details["error_type"] != "bad_data" {
		t.Errorf("error_type = %v", iss.Details["error_type"])
	}
}

func TestCheckTargets_HTTPError(t *testing.T) {
	c, url := newChecker(t, "", http.StatusUnauthorized)
	res := c.CheckTargets(context.Background(), url, "")

	if len(res.Issues) != 1 {
		t.Fatalf("issues = %d, want 1", len(res.Issues))
	}
	iss := res.Issues[0]
	if iss.Message != "Failed to query Prometheus API: HTTP 401" {
		t.Errorf("message = %q", iss.Message)
	}
	if iss.Details["status_code"] != http.StatusUnauthorized {
		t.Errorf("status_code = %v", iss.Details["status_code"])
	}
}

func TestCheckTargets_BadJSON(t *testing.T) {
	c, url := newChecker(t, "<html>not json</html>", http.StatusOK)
	res := c.CheckTargets(context.Background(), url, "")

	if len(res.Issues) != 1 || res.Issues[0].Category != types.CategoryError {
		t.Fatalf("want one error issue, got %+v", res.Issues)
	}
	if !res.HasCritical() {
		t.Error("undecodable response should be critical")
	}
}
