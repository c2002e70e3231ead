package types

import (
	"encoding/json"
	"time"
)

// Process exit codes derived from validation results.
const (
	ExitOK       = 0
	ExitWarning  = 1
	ExitCritical = 2
)

// FamilySummary is the reportable view of one parsed metric family.
type FamilySummary struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Help       string   `json:"help,omitempty"`
	Samples    int      `json:"samples"`
	LabelNames []string `json:"label_names,omitempty"`
}

// Result holds everything found while validating one endpoint.
//
// A Result is created when validation of its endpoint starts, grows only
// through Add, and is finalized by Finish. Readers such as the report
// package only see finalized results.
type Result struct {
	Endpoint     string
	Timestamp    time.Time
	Duration     time.Duration
	TotalMetrics int
	TotalSamples int
	Issues       []Issue

	// Families is the parsed inventory; only filled when requested.
	Families []FamilySummary

	// Series holds one fingerprint per distinct series seen on the
	// endpoint. It feeds cross-endpoint estimates and is not rendered.
	Series []uint64
}

// NewResult starts a result for endpoint stamped at now.
func NewResult(endpoint string, now time.Time) *Result {
	return &Result{Endpoint: endpoint, Timestamp: now}
}

// Add appends issues in order.
func (r *Result) Add(issues ...Issue) {
	r.Issues = append(r.Issues, issues...)
}

// Finish stamps the elapsed time since start.
func (r *Result) Finish(start time.Time) {
	r.Duration = time.Since(start)
}

// Count returns the number of issues with severity s.
func (r *Result) Count(s Severity) int {
	var n int
	for _, i := range r.Issues {
		if i.Severity == s {
			n++
		}
	}
	return n
}

func (r *Result) HasCritical() bool { return r.Count(SeverityCritical) > 0 }

func (r *Result) HasWarning() bool { return r.Count(SeverityWarning) > 0 }

// ExitCode is 2 with any critical issue, 1 with any warning, else 0.
func (r *Result) ExitCode() int {
	switch {
	case r.HasCritical():
		return ExitCritical
	case r.HasWarning():
		return ExitWarning
	default:
		return ExitOK
	}
}

// ByCategory returns the issues matching cat, in order.
func (r *Result) ByCategory(cat Category) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Category == cat {
			out = append(out, i)
		}
	}
	return out
}

type resultJSON struct {
	Endpoint     string          `json:"endpoint"`
	Timestamp    string          `json:"timestamp"`
	DurationMS   float64         `json:"duration_ms"`
	TotalMetrics int             `json:"total_metrics"`
	TotalSamples int             `json:"total_samples"`
	Issues       []Issue         `json:"issues"`
	ExitCode     int             `json:"exit_code"`
	Families     []FamilySummary `json:"families,omitempty"`
}

func (r *Result) MarshalJSON() ([]byte, error) {
	issues := r.Issues
	if issues == nil {
		issues = []Issue{}
	}
	return json.Marshal(resultJSON{
		Endpoint:     r.Endpoint,
		Timestamp:    r.Timestamp.Format(time.RFC3339Nano),
		DurationMS:   float64(r.Duration) / float64(time.Millisecond),
		TotalMetrics: r.TotalMetrics,
		TotalSamples: r.TotalSamples,
		Issues:       issues,
		ExitCode:     r.ExitCode(),
		Families:     r.Families,
	})
}
