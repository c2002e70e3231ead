package report

import (
	"encoding/binary"

	"github.com/axiomhq/hyperloglog"

	"github.com/obsidianstack/promcheck/pkg/types"
)

// Summary aggregates a set of results.
type Summary struct {
	TotalEndpoints int `json:"total_endpoints"`

	// Passed, Warnings and Failed partition the endpoints by their worst
	// issue: none or info only, warning, critical.
	Passed   int `json:"passed"`
	Warnings int `json:"warnings"`
	Failed   int `json:"failed"`

	// EstimatedSeries approximates the number of distinct series across
	// every endpoint.
	EstimatedSeries uint64 `json:"estimated_series"`

	// Issue counts by severity.
	Critical int `json:"critical_issues"`
	Warning  int `json:"warning_issues"`
	Info     int `json:"info_issues"`
}

// Summarize aggregates results.
func Summarize(results []*types.Result) Summary {
	var s Summary
	sketch := hyperloglog.New()
	var key []byte

	for _, r := range results {
		s.TotalEndpoints++
		switch {
		case r.HasCritical():
			s.Failed++
		case r.HasWarning():
			s.Warnings++
		default:
			s.Passed++
		}
		s.Critical += r.Count(types.SeverityCritical)
		s.Warning += r.Count(types.SeverityWarning)
		s.Info += r.Count(types.SeverityInfo)

		// Identical series on two endpoints count twice.
		for _, sig := range r.Series {
			key = append(key[:0], r.Endpoint...)
			key = binary.BigEndian.AppendUint64(key, sig)
			sketch.Insert(key)
		}
	}
	s.EstimatedSeries = sketch.Estimate()
	return s
}

// ExitCode is the highest exit code over results. With strict set, any
// warning raises the code to at least 1. No results yield 0.
func ExitCode(results []*types.Result, strict bool) int {
	code := types.ExitOK
	warned := false
	for _, r := range results {
		code = max(code, r.ExitCode())
		warned = warned || r.HasWarning()
	}
	if strict && warned {
		code = max(code, types.ExitWarning)
	}
	return code
}
