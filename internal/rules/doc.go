// Package rules evaluates correctness and health checks over parsed metric
// families.
//
// Each check is an independent function reading the family list and the
// thresholds in Config; none of them modifies metric data. Engine runs the
// default battery in a fixed order:
//
//   - duplicates:  a base name seen twice                    → CRITICAL
//   - naming:      invalid metric or label name               → WARNING
//   - cardinality: samples > max → CRITICAL, > 0.7×max        → WARNING
//   - staleness:   first sample older than the threshold       → WARNING (once per family)
//   - types:       untyped → INFO, counter without _total      → WARNING
package rules
