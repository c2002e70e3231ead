package exposition

import (
	"fmt"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/obsidianstack/promcheck/pkg/types"
)

// StrictCheck parses text with the reference expfmt parser. It returns a
// single INFO issue when the reference parser rejects the payload, and nil
// when the payload is accepted.
func StrictCheck(text string) []types.Issue {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(strings.NewReader(text))
	if err == nil {
		return nil
	}
	return []types.Issue{
		types.Info(types.CategoryParsing,
			fmt.Sprintf("Payload rejected by reference parser: %v", err)).
			With("families_parsed", len(mfs)).
			With("samples_parsed", countMetrics(mfs)),
	}
}

func countMetrics(mfs map[string]*dto.MetricFamily) int {
	var n int
	for _, mf := range mfs {
		n += len(mf.GetMetric())
	}
	return n
}
