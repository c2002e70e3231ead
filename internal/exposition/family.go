package exposition

import (
	"sort"
	"strings"

	"github.com/prometheus/common/model"

	"github.com/obsidianstack/promcheck/pkg/types"
)

// MetricType is the declared type of a metric family.
type MetricType int

const (
	Untyped MetricType = iota
	Counter
	Gauge
	Histogram
	Summary
)

var metricTypes = map[string]MetricType{
	"counter":   Counter,
	"gauge":     Gauge,
	"histogram": Histogram,
	"summary":   Summary,
	"untyped":   Untyped,
}

// ParseMetricType maps a # TYPE token to a MetricType. Unknown tokens return
// Untyped and false.
func ParseMetricType(s string) (MetricType, bool) {
	t, ok := metricTypes[strings.ToLower(s)]
	return t, ok
}

func (t MetricType) String() string {
	switch t {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	case Histogram:
		return "histogram"
	case Summary:
		return "summary"
	default:
		return "untyped"
	}
}

// Sample is one parsed sample line.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64

	// Timestamp is the optional sample timestamp in milliseconds since epoch.
	Timestamp *int64
}

// Family groups every sample sharing a base metric name.
type Family struct {
	// Name is the base name shared by every sample in the family.
	Name string

	// ExposedName is the full name of the first sample attached, e.g.
	// requests_total for a counter whose base name is requests.
	ExposedName string

	Type       MetricType
	Help       string
	Samples    []Sample
	LabelNames map[string]struct{}

	// Declarations is the highest number of # TYPE directives given for
	// any single exposed name of this family. More than one means the
	// payload declares the same metric twice.
	Declarations int
}

func newFamily(name string, typ MetricType, help string) *Family {
	return &Family{
		Name:       name,
		Type:       typ,
		Help:       help,
		LabelNames: make(map[string]struct{}),
	}
}

func (f *Family) add(s Sample) {
	if len(f.Samples) == 0 {
		f.ExposedName = s.Name
	}
	f.Samples = append(f.Samples, s)
	for name := range s.Labels {
		f.LabelNames[name] = struct{}{}
	}
}

// SortedLabelNames returns the distinct label names of the family in order.
func (f *Family) SortedLabelNames() []string {
	names := make([]string, 0, len(f.LabelNames))
	for name := range f.LabelNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UniqueSeries counts the distinct series (sample name plus label set) in
// the family.
func (f *Family) UniqueSeries() int {
	seen := make(map[uint64]struct{}, len(f.Samples))
	for _, s := range f.Samples {
		seen[SeriesSignature(s)] = struct{}{}
	}
	return len(seen)
}

// SeriesSignature fingerprints a sample's name and label set.
func SeriesSignature(s Sample) uint64 {
	labels := make(map[string]string, len(s.Labels)+1)
	for k, v := range s.Labels {
		labels[k] = v
	}
	labels[model.MetricNameLabel] = s.Name
	return model.LabelsToSignature(labels)
}

// Summary returns the reportable view of the family.
func (f *Family) Summary() types.FamilySummary {
	return types.FamilySummary{
		Name:       f.Name,
		Type:       f.Type.String(),
		Help:       f.Help,
		Samples:    len(f.Samples),
		LabelNames: f.SortedLabelNames(),
	}
}

// CountSamples sums the samples across families.
func CountSamples(families []*Family) int {
	var n int
	for _, f := range families {
		n += len(f.Samples)
	}
	return n
}

// baseSuffixes are stripped from sample names to find their family.
var baseSuffixes = []string{"_bucket", "_count", "_sum", "_total"}

// BaseName strips the first matching histogram, summary or counter suffix.
func BaseName(name string) string {
	for _, suffix := range baseSuffixes {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}
