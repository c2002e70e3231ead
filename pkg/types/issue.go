package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity classifies an Issue. The zero value is SeverityInfo.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

// String returns the upper-case name used in reports: INFO, WARNING, CRITICAL.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// ParseSeverity maps a case-insensitive severity name to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(s) {
	case "INFO":
		return SeverityInfo, nil
	case "WARNING", "WARN":
		return SeverityWarning, nil
	case "CRITICAL":
		return SeverityCritical, nil
	default:
		return SeverityInfo, fmt.Errorf("unknown severity %q", s)
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	v, err := ParseSeverity(str)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Category is a stable tag automation can filter issues by.
type Category string

const (
	CategoryNaming       Category = "naming"
	CategoryCardinality  Category = "cardinality"
	CategoryStaleness    Category = "staleness"
	CategoryConnectivity Category = "connectivity"
	CategoryHTTP         Category = "http"
	CategoryParsing      Category = "parsing"
	CategoryValidation   Category = "validation"
	CategoryType         Category = "type"
	CategoryPrometheus   Category = "prometheus"
	CategoryPerformance  Category = "performance"
	CategoryError        Category = "error"
	CategoryTLS          Category = "tls"
)

// Issue is one finding produced while validating an endpoint.
type Issue struct {
	Severity Severity `json:"severity"`
	Category Category `json:"category"`
	Message  string   `json:"message"`

	// MetricName is empty when the issue is not tied to a metric family.
	MetricName string `json:"-"`

	Details map[string]any `json:"details"`
}

type issueJSON struct {
	Severity   Severity       `json:"severity"`
	Category   Category       `json:"category"`
	Message    string         `json:"message"`
	MetricName *string        `json:"metric_name"`
	Details    map[string]any `json:"details"`
}

// MarshalJSON renders an absent metric name as null and absent details as {}.
func (i Issue) MarshalJSON() ([]byte, error) {
	out := issueJSON{
		Severity: i.Severity,
		Category: i.Category,
		Message:  i.Message,
		Details:  i.Details,
	}
	if i.MetricName != "" {
		name := i.MetricName
		out.MetricName = &name
	}
	if out.Details == nil {
		out.Details = map[string]any{}
	}
	return json.Marshal(out)
}

func (i *Issue) UnmarshalJSON(data []byte) error {
	var in issueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*i = Issue{
		Severity: in.Severity,
		Category: in.Category,
		Message:  in.Message,
		Details:  in.Details,
	}
	if in.MetricName != nil {
		i.MetricName = *in.MetricName
	}
	return nil
}

// Critical, Warning and Info are shorthands for building issues.
func Critical(cat Category, msg string) Issue {
	return Issue{Severity: SeverityCritical, Category: cat, Message: msg}
}

func Warning(cat Category, msg string) Issue {
	return Issue{Severity: SeverityWarning, Category: cat, Message: msg}
}

func Info(cat Category, msg string) Issue {
	return Issue{Severity: SeverityInfo, Category: cat, Message: msg}
}

// ForMetric returns a copy of i attached to the named metric family.
func (i Issue) ForMetric(name string) Issue {
	i.MetricName = name
	return i
}

// With returns a copy of i with key set in its details. The details map is
// copied so issues built from a shared template never alias.
func (i Issue) With(key string, value any) Issue {
	details := make(map[string]any, len(i.Details)+1)
	for k, v := range i.Details {
		details[k] = v
	}
	details[key] = value
	i.Details = details
	return i
}
