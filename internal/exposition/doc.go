// Package exposition reads the Prometheus text exposition format.
//
// Parse is deliberately lenient: it walks the payload line by line, carrying
// the pending # TYPE / # HELP directive forward into the samples that follow,
// and records malformed lines as warnings instead of failing. Samples are
// grouped into a Family keyed by base name, so histogram and summary
// components (_bucket, _count, _sum) and counter _total series share one
// family.
//
// StrictCheck re-reads the same payload with the reference parser from
// prometheus/common/expfmt and reports whether it would be rejected there.
package exposition
