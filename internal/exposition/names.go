package exposition

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	metricNameRE = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)
	labelNameRE  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// ValidateMetricName returns a description of what is wrong with name, or
// "" if it follows the naming conventions.
func ValidateMetricName(name string) string {
	if !metricNameRE.MatchString(name) {
		return fmt.Sprintf("Invalid metric name format: %s", name)
	}
	if strings.HasPrefix(name, "_") {
		return fmt.Sprintf("Metric name should not start with underscore: %s", name)
	}
	return ""
}

// ValidateLabelName returns a description of what is wrong with name, or ""
// if it follows the naming conventions. The __ prefix is reserved for
// internal labels.
func ValidateLabelName(name string) string {
	switch {
	case !labelNameRE.MatchString(name):
		return fmt.Sprintf("Invalid label name format: %s", name)
	case strings.HasPrefix(name, "__"):
		return fmt.Sprintf("Label name uses reserved prefix '__': %s", name)
	case strings.HasPrefix(name, "_"):
		return fmt.Sprintf("Label name should not start with underscore: %s", name)
	}
	return ""
}
