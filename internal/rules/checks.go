package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/obsidianstack/promcheck/internal/exposition"
	"github.com/obsidianstack/promcheck/pkg/types"
)

// checkDuplicates flags a base name that appears more than once, either as
// two families in the list or as one metric declared by several # TYPE
// directives. Each offending name is reported once.
func checkDuplicates(families []*exposition.Family, _ Config, _ time.Time) []types.Issue {
	var issues []types.Issue
	seen := make(map[string]bool, len(families))
	flagged := make(map[string]bool)

	for _, f := range families {
		dup := seen[f.Name] || f.Declarations > 1
		seen[f.Name] = true
		if !dup || flagged[f.Name] {
			continue
		}
		flagged[f.Name] = true
		issues = append(issues, types.Critical(types.CategoryValidation, "Duplicate metric name").
			ForMetric(f.Name).
			With("declarations", max(f.Declarations, 2)))
	}
	return issues
}

// checkNaming flags metric and label names that break naming conventions.
func checkNaming(families []*exposition.Family, _ Config, _ time.Time) []types.Issue {
	var issues []types.Issue
	for _, f := range families {
		if msg := exposition.ValidateMetricName(f.Name); msg != "" {
			issues = append(issues, types.Warning(types.CategoryNaming, msg).ForMetric(f.Name))
		}
		for _, label := range f.SortedLabelNames() {
			if msg := exposition.ValidateLabelName(label); msg != "" {
				issues = append(issues, types.Warning(types.CategoryNaming, msg).
					ForMetric(f.Name).
					With("label", label))
			}
		}
	}
	return issues
}

// checkCardinality compares each family's sample count to MaxCardinality.
func checkCardinality(families []*exposition.Family, cfg Config, _ time.Time) []types.Issue {
	var issues []types.Issue
	limit := cfg.MaxCardinality
	for _, f := range families {
		n := len(f.Samples)

		var iss types.Issue
		switch {
		case n > limit:
			iss = types.Critical(types.CategoryCardinality,
				fmt.Sprintf("High cardinality detected: %d unique label sets", n))
		case float64(n) > float64(limit)*warnCardinalityRatio:
			iss = types.Warning(types.CategoryCardinality,
				fmt.Sprintf("Approaching high cardinality: %d unique label sets", n))
		default:
			continue
		}
		issues = append(issues, iss.ForMetric(f.Name).
			With("cardinality", n).
			With("unique_series", f.UniqueSeries()).
			With("threshold", limit))
	}
	return issues
}

// checkStaleness reports the first sample per family whose explicit
// timestamp is older than StalenessThreshold.
func checkStaleness(families []*exposition.Family, cfg Config, now time.Time) []types.Issue {
	var issues []types.Issue
	nowMS := float64(now.UnixMilli())
	threshold := cfg.StalenessThreshold.Seconds()

	for _, f := range families {
		for _, s := range f.Samples {
			if s.Timestamp == nil {
				continue
			}
			age := (nowMS - float64(*s.Timestamp)) / 1000
			if age <= threshold {
				continue
			}
			issues = append(issues, types.Warning(types.CategoryStaleness,
				fmt.Sprintf("Metric appears stale (age: %.0fs)", age)).
				ForMetric(f.Name).
				With("age_seconds", age).
				With("threshold", threshold))
			break
		}
	}
	return issues
}

// checkTypes flags families without a declared type and counters whose
// exposed name lacks the _total suffix.
func checkTypes(families []*exposition.Family, _ Config, _ time.Time) []types.Issue {
	var issues []types.Issue
	for _, f := range families {
		switch f.Type {
		case exposition.Untyped:
			issues = append(issues, types.Info(types.CategoryType, "Metric type not specified").ForMetric(f.Name))
		case exposition.Counter:
			exposed := f.ExposedName
			if exposed == "" {
				exposed = f.Name
			}
			if !strings.HasSuffix(exposed, "_total") {
				issues = append(issues, types.Warning(types.CategoryNaming,
					"Counter metric should end with '_total'").
					ForMetric(f.Name).
					With("exposed_name", exposed))
			}
		}
	}
	return issues
}
