package exposition

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/obsidianstack/promcheck/pkg/types"
)

// nodeMetrics is a realistic subset of node_exporter output.
const nodeMetrics = `
# HELP node_cpu_seconds_total Seconds the CPUs spent in each mode.
# TYPE node_cpu_seconds_total counter
node_cpu_seconds_total{cpu="0",mode="idle"} 12345.67
node_cpu_seconds_total{cpu="0",mode="user"} 234.5
node_cpu_seconds_total{cpu="1",mode="idle"} 12001.2

# HELP node_load1 1m load average.
# TYPE node_load1 gauge
node_load1 0.42

# HELP http_request_duration_seconds Request latency.
# TYPE http_request_duration_seconds histogram
http_request_duration_seconds_bucket{le="0.1"} 10
http_request_duration_seconds_bucket{le="+Inf"} 12
http_request_duration_seconds_sum 1.7
http_request_duration_seconds_count 12
`

// goMemstats is the client_golang runtime pair: a gauge and a counter whose
// names differ only by the _total suffix.
const goMemstats = `
# HELP go_memstats_alloc_bytes Number of bytes allocated and still in use.
# TYPE go_memstats_alloc_bytes gauge
go_memstats_alloc_bytes 2.1e+06
# HELP go_memstats_alloc_bytes_total Total number of bytes allocated, even if freed.
# TYPE go_memstats_alloc_bytes_total counter
go_memstats_alloc_bytes_total 9.8e+07
`

func TestParse_SingleCounter(t *testing.T) {
	families, issues := Parse("# HELP test_total A counter\n# TYPE test_total counter\ntest_total 42\n")
	if len(issues) != 0 {
		t.Fatalf("issues = %v, want none", issues)
	}
	if len(families) != 1 {
		t.Fatalf("families = %d, want 1", len(families))
	}

	f := families[0]
	if f.Name != "test" || f.ExposedName != "test_total" {
		t.Errorf("name = %q exposed = %q, want test/test_total", f.Name, f.ExposedName)
	}
	if f.Type != Counter {
		t.Errorf("type = %v, want counter", f.Type)
	}
	if f.Help != "A counter" {
		t.Errorf("help = %q", f.Help)
	}
	if len(f.Samples) != 1 || f.Samples[0].Value != 42 || f.Samples[0].Timestamp != nil {
		t.Errorf("samples = %+v", f.Samples)
	}
	if f.Declarations != 1 {
		t.Errorf("declarations = %d, want 1", f.Declarations)
	}
}

func TestParse_GroupsByBaseName(t *testing.T) {
	families, issues := Parse(nodeMetrics)
	if len(issues) != 0 {
		t.Fatalf("issues = %v, want none", issues)
	}
	if len(families) != 3 {
		t.Fatalf("families = %d, want 3", len(families))
	}

	var names []string
	for _, f := range families {
		names = append(names, f.Name)
	}
	want := []string{"node_cpu_seconds", "node_load1", "http_request_duration_seconds"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}

	hist := families[2]
	if hist.Type != Histogram || len(hist.Samples) != 4 {
		t.Errorf("histogram = %v with %d samples", hist.Type, len(hist.Samples))
	}
	if got := hist.SortedLabelNames(); !reflect.DeepEqual(got, []string{"le"}) {
		t.Errorf("histogram labels = %v", got)
	}
	if got := CountSamples(families); got != 8 {
		t.Errorf("CountSamples = %d, want 8", got)
	}
	if got := families[0].SortedLabelNames(); !reflect.DeepEqual(got, []string{"cpu", "mode"}) {
		t.Errorf("cpu labels = %v", got)
	}
}

func TestParse_Deterministic(t *testing.T) {
	first, firstIssues := Parse(nodeMetrics)
	second, secondIssues := Parse(nodeMetrics)
	if !reflect.DeepEqual(first, second) || !reflect.DeepEqual(firstIssues, secondIssues) {
		t.Error("two parses of the same payload differ")
	}
}

func TestParse_QuotedLabelValues(t *testing.T) {
	text := `msg_total{path="/a,b",text="say \"hi\" {x}",nl="a\nb",sp="with space"} 3`
	families, issues := Parse(text)
	if len(issues) != 0 || len(families) != 1 {
		t.Fatalf("families = %d issues = %v", len(families), issues)
	}

	want := map[string]string{
		"path": "/a,b",
		"text": `say "hi" {x}`,
		"nl":   "a\nb",
		"sp":   "with space",
	}
	if got := families[0].Samples[0].Labels; !reflect.DeepEqual(got, want) {
		t.Errorf("labels = %q, want %q", got, want)
	}
}

func TestParse_TrailingCommaAndSpaces(t *testing.T) {
	families, issues := Parse(`up{ job = "node" , instance="a:9100", } 1`)
	if len(issues) != 0 {
		t.Fatalf("issues = %v", issues)
	}
	want := map[string]string{"job": "node", "instance": "a:9100"}
	if got := families[0].Samples[0].Labels; !reflect.DeepEqual(got, want) {
		t.Errorf("labels = %v, want %v", got, want)
	}
}

func TestParse_MalformedLinesAreSkipped(t *testing.T) {
	text := `
good_metric 1
bad_metric not-a-number
{orphan="x"} 2
broken{a="b" 3
another_good 2
`
	families, issues := Parse(text)
	if len(families) != 2 {
		t.Fatalf("families = %d, want 2", len(families))
	}
	if families[0].Name != "good_metric" || families[1].Name != "another_good" {
		t.Errorf("names = %s, %s", families[0].Name, families[1].Name)
	}

	if len(issues) != 3 {
		t.Fatalf("issues = %d, want 3", len(issues))
	}
	for _, iss := range issues {
		if iss.Severity != types.SeverityWarning || iss.Category != types.CategoryParsing {
			t.Errorf("issue = %s/%s, want WARNING/parsing", iss.Severity, iss.Category)
		}
		if _, ok := iss.Details["line"]; !ok {
			t.Errorf("issue %q has no line detail", iss.Message)
		}
	}
	if !strings.Contains(issues[0].Message, "line 2") {
		t.Errorf("first issue = %q, want line 2", issues[0].Message)
	}
}

func TestParse_UnknownType(t *testing.T) {
	families, issues := Parse("# TYPE weird_metric gaugey\nweird_metric 1\n")
	if len(issues) != 1 {
		t.Fatalf("issues = %d, want 1", len(issues))
	}
	iss := issues[0]
	if iss.Severity != types.SeverityWarning || iss.MetricName != "weird_metric" {
		t.Errorf("issue = %+v", iss)
	}
	if !strings.Contains(iss.Message, "Unknown metric type 'gaugey' at line 1") {
		t.Errorf("message = %q", iss.Message)
	}
	if families[0].Type != Untyped {
		t.Errorf("type = %v, want untyped", families[0].Type)
	}
}

func TestParse_TimestampsAndSpecialValues(t *testing.T) {
	text := `
a 1 1700000000000
b NaN
c +Inf
d -Inf 5
`
	families, issues := Parse(text)
	if len(issues) != 0 || len(families) != 4 {
		t.Fatalf("families = %d issues = %v", len(families), issues)
	}

	if ts := families[0].Samples[0].Timestamp; ts == nil || *ts != 1700000000000 {
		t.Errorf("a timestamp = %v", ts)
	}
	if v := families[1].Samples[0].Value; !math.IsNaN(v) {
		t.Errorf("b = %v, want NaN", v)
	}
	if v := families[2].Samples[0].Value; !math.IsInf(v, 1) {
		t.Errorf("c = %v, want +Inf", v)
	}
	if v := families[3].Samples[0].Value; !math.IsInf(v, -1) {
		t.Errorf("d = %v, want -Inf", v)
	}
	if ts := families[3].Samples[0].Timestamp; ts == nil || *ts != 5 {
		t.Errorf("d timestamp = %v", ts)
	}
}

func TestParse_BadTimestamp(t *testing.T) {
	_, issues := Parse("a 1 yesterday\n")
	if len(issues) != 1 || !strings.Contains(issues[0].Message, "invalid timestamp") {
		t.Errorf("issues = %v, want one invalid timestamp", issues)
	}
}

func TestParse_PendingTypeAppliesToNextFamily(t *testing.T) {
	// Families without their own directive inherit the pending context.
	families, _ := Parse("# TYPE jobs_total counter\njobs_total 1\nqueue_depth 5\n")
	if len(families) != 2 {
		t.Fatalf("families = %d, want 2", len(families))
	}
	if families[1].Type != Counter {
		t.Errorf("queue_depth type = %v, want counter", families[1].Type)
	}
}

func TestParse_ReappearingSamplesMerge(t *testing.T) {
	text := `
# TYPE a_total counter
a_total{x="1"} 1
# TYPE b gauge
b 2
a_total{x="2"} 3
`
	families, issues := Parse(text)
	if len(issues) != 0 || len(families) != 2 {
		t.Fatalf("families = %d issues = %v", len(families), issues)
	}
	if n := len(families[0].Samples); n != 2 {
		t.Errorf("a samples = %d, want 2", n)
	}
	if d := families[0].Declarations; d != 1 {
		t.Errorf("a declarations = %d, want 1", d)
	}
}

func TestParse_RepeatedTypeDirectiveCounted(t *testing.T) {
	text := `
# TYPE requests_total counter
requests_total 1
# TYPE requests_total counter
requests_total{code="500"} 2
`
	families, _ := Parse(text)
	if len(families) != 1 {
		t.Fatalf("families = %d, want 1", len(families))
	}
	if d := families[0].Declarations; d != 2 {
		t.Errorf("declarations = %d, want 2", d)
	}
	if n := len(families[0].Samples); n != 2 {
		t.Errorf("samples = %d, want 2", n)
	}
}

func TestParse_SuffixSiblingsAreNotRedeclarations(t *testing.T) {
	families, issues := Parse(goMemstats)
	if len(issues) != 0 {
		t.Fatalf("issues = %v, want none", issues)
	}
	if len(families) != 1 {
		t.Fatalf("families = %d, want 1", len(families))
	}
	f := families[0]
	if f.Declarations != 1 {
		t.Errorf("declarations = %d, want 1", f.Declarations)
	}
	if len(f.Samples) != 2 {
		t.Errorf("samples = %d, want 2", len(f.Samples))
	}
	if got := StrictCheck(goMemstats); got != nil {
		t.Errorf("StrictCheck = %v, want accepted", got)
	}
}

func TestParse_Empty(t *testing.T) {
	families, issues := Parse("  \n\n")
	if len(families) != 0 || len(issues) != 0 {
		t.Errorf("Parse(blank) = %v, %v", families, issues)
	}
}

func TestUniqueSeries(t *testing.T) {
	families, _ := Parse(`
x{a="1"} 1
x{a="1"} 2
x{a="2"} 3
x_sum{a="1"} 4
`)
	if len(families) != 1 {
		t.Fatalf("families = %d, want 1", len(families))
	}
	if got := families[0].UniqueSeries(); got != 3 {
		t.Errorf("UniqueSeries = %d, want 3", got)
	}
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"http_requests_total":    "http_requests",
		"latency_seconds_bucket": "latency_seconds",
		"latency_seconds_count":  "latency_seconds",
		"latency_seconds_sum":    "latency_seconds",
		"node_load1":             "node_load1",
		"_total":                 "",
	}
	for in, want := range tests {
		if got := BaseName(in); got != want {
			t.Errorf("BaseName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseMetricType(t *testing.T) {
	typ, ok := ParseMetricType("HISTOGRAM")
	if !ok || typ != Histogram || typ.String() != "histogram" {
		t.Errorf("ParseMetricType(HISTOGRAM) = %v, %v", typ, ok)
	}

	typ, ok = ParseMetricType("stateset")
	if ok || typ != Untyped {
		t.Errorf("ParseMetricType(stateset) = %v, %v", typ, ok)
	}
}

func TestSummary(t *testing.T) {
	families, _ := Parse(nodeMetrics)
	want := types.FamilySummary{
		Name:       "node_cpu_seconds",
		Type:       "counter",
		Help:       "Seconds the CPUs spent in each mode.",
		Samples:    3,
		LabelNames: []string{"cpu", "mode"},
	}
	if got := families[0].Summary(); !reflect.DeepEqual(got, want) {
		t.Errorf("Summary() = %+v, want %+v", got, want)
	}
}
