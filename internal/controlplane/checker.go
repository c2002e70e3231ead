package controlplane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/obsidianstack/promcheck/internal/fetch"
	"github.com/obsidianstack/promcheck/pkg/types"
)

// DefaultSlowScrape is the scrape duration above which a target is slow.
const DefaultSlowScrape = 10 * time.Second

const targetsPath = "/api/v1/targets"

// JSONGetter fetches and decodes a JSON document. *fetch.Client satisfies
// it.
type JSONGetter interface {
	GetJSON(ctx context.Context, url string, v any) error
}

// targetsResponse is the JSON shape returned by Prometheus' /api/v1/targets.
type targetsResponse struct {
	Status    string `json:"status"`
	ErrorType string `json:"errorType"`
	Error     string `json:"error"`
	Data      struct {
		ActiveTargets []target `json:"activeTargets"`
	} `json:"data"`
}

type target struct {
	Labels             map[string]string `json:"labels"`
	Health             string            `json:"health"`
	LastError          string            `json:"lastError"`
	LastScrapeDuration float64           `json:"lastScrapeDuration"`
}

func (t target) label(name string) string {
	if v := t.Labels[name]; v != "" {
		return v
	}
	return "unknown"
}

// Checker queries a Prometheus server for the health of its scrape targets.
type Checker struct {
	client JSONGetter

	// SlowScrape is the last-scrape duration above which a target is
	// reported as slow.
	SlowScrape time.Duration
}

// New returns a Checker using client for its requests.
func New(client JSONGetter) *Checker {
	return &Checker{client: client, SlowScrape: DefaultSlowScrape}
}

// CheckTargets reads the active targets of the Prometheus server at baseURL
// and reports every target that is down or slow. When job is non-empty only
// targets carrying that job label are evaluated. All targets are evaluated;
// one unhealthy target does not stop the check.
func (c *Checker) CheckTargets(ctx context.Context, baseURL, job string) *types.Result {
	start := time.Now()
	res := types.NewResult(baseURL, start)
	defer res.Finish(start)

	url := strings.TrimRight(baseURL, "/") + targetsPath
	var body targetsResponse
	if err := c.client.GetJSON(ctx, url, &body); err != nil {
		slog.Warn("controlplane: targets query failed", "url", url, "err", err)
		res.Add(queryIssue(err))
		return res
	}

	if body.Status != "success" {
		res.Add(types.Critical(types.CategoryPrometheus, "Prometheus API returned error").
			With("status", body.Status).
			With("error_type", body.ErrorType).
			With("error", body.Error))
		return res
	}

	targets := body.Data.ActiveTargets
	if job != "" {
		targets = filterJob(targets, job)
		if len(targets) == 0 {
			res.Add(types.Warning(types.CategoryPrometheus,
				fmt.Sprintf("No active targets for job %q", job)).
				With("job", job))
		}
	}

	for _, t := range targets {
		res.Add(c.checkTarget(t)...)
	}
	res.TotalMetrics = len(targets)

	slog.Debug("controlplane: targets checked",
		"url", baseURL, "job", job, "targets", len(targets), "issues", len(res.Issues))
	return res
}

func (c *Checker) checkTarget(t target) []types.Issue {
	job, instance := t.label("job"), t.label("instance")
	var issues []types.Issue

	health := t.Health
	if health == "" {
		health = "unknown"
	}
	if health != "up" {
		issues = append(issues, types.Critical(types.CategoryPrometheus,
			fmt.Sprintf("Target down: %s/%s", job, instance)).
			With("job", job).
			With("instance", instance).
			With("health", health).
			With("last_error", t.LastError))
	}

	slow := c.SlowScrape
	if slow <= 0 {
		slow = DefaultSlowScrape
	}
	if t.LastScrapeDuration > slow.Seconds() {
		issues = append(issues, types.Warning(types.CategoryPerformance,
			fmt.Sprintf("Slow scrape: %s/%s (%.2fs)", job, instance, t.LastScrapeDuration)).
			With("job", job).
			With("instance", instance).
			With("duration", t.LastScrapeDuration))
	}
	return issues
}

func filterJob(targets []target, job string) []target {
	var out []target
	for _, t := range targets {
		if t.Labels["job"] == job {
			out = append(out, t)
		}
	}
	return out
}

// queryIssue maps a failed targets request to a critical issue: prometheus
// when the request itself failed, error when the body was not JSON.
func queryIssue(err error) types.Issue {
	var fe *fetch.Error
	if !errors.As(err, &fe) {
		return types.Critical(types.CategoryError,
			fmt.Sprintf("Failed to decode Prometheus API response: %v", err)).
			With("error", err.Error())
	}

	iss := types.Critical(types.CategoryPrometheus, fmt.Sprintf("Failed to query Prometheus API: %v", err))
	switch {
	case fe.Kind == fetch.KindStatus:
		iss.Message = fmt.Sprintf("Failed to query Prometheus API: HTTP %d", fe.StatusCode)
		iss = iss.With("status_code", fe.StatusCode)
	case fe.Err != nil:
		iss.Message = fmt.Sprintf("Failed to query Prometheus API: %s: %v", fe.Kind, fe.Err)
		iss = iss.With("error", fe.Err.Error())
	}
	return iss.With("attempts", fe.Attempts)
}
