package exposition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/obsidianstack/promcheck/pkg/types"
)

// parseState is the directive context carried from one line to the next.
// It is a value: each directive produces a new state rather than mutating
// the previous one.
type parseState struct {
	name string
	typ  MetricType
	help string
}

// builder accumulates families in first-seen order.
type builder struct {
	state    parseState
	families map[string]*Family
	order    []*Family
	declared map[string]int
	issues   []types.Issue
}

// Parse reads exposition-format text and returns its metric families plus
// any non-fatal parsing issues. A malformed line never stops the parse.
func Parse(text string) ([]*Family, []types.Issue) {
	b := &builder{
		families: make(map[string]*Family),
		declared: make(map[string]int),
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}
	for i, line := range strings.Split(trimmed, "\n") {
		b.state = b.step(i+1, strings.TrimSpace(line))
	}

	// Names that differ only by a stripped suffix share a family but are
	// distinct metrics; only a literal re-declaration counts.
	for name, n := range b.declared {
		if f := b.families[BaseName(name)]; f != nil && n > f.Declarations {
			f.Declarations = n
		}
	}
	return b.order, b.issues
}

// step consumes one line and returns the state for the next.
func (b *builder) step(lineNum int, line string) parseState {
	switch {
	case line == "":
		return b.state
	case strings.HasPrefix(line, "# TYPE"):
		return b.typeDirective(lineNum, line)
	case strings.HasPrefix(line, "# HELP"):
		return b.helpDirective(line)
	case strings.HasPrefix(line, "#"):
		return b.state
	}

	s, err := parseSample(line)
	if err != nil {
		b.issues = append(b.issues, types.Warning(types.CategoryParsing,
			fmt.Sprintf("Failed to parse line %d: %v", lineNum, err)).
			With("line", line))
		return b.state
	}

	base := BaseName(s.Name)
	f, ok := b.families[base]
	if !ok {
		f = newFamily(base, b.state.typ, b.state.help)
		b.families[base] = f
		b.order = append(b.order, f)
	}
	f.add(s)
	return b.state
}

func (b *builder) typeDirective(lineNum int, line string) parseState {
	parts := splitFields(line, 4)
	if len(parts) < 4 {
		return b.state
	}
	name, token := parts[2], strings.ToLower(parts[3])

	typ, ok := ParseMetricType(token)
	if !ok {
		b.issues = append(b.issues, types.Warning(types.CategoryParsing,
			fmt.Sprintf("Unknown metric type '%s' at line %d", token, lineNum)).
			ForMetric(name))
	}
	b.declared[name]++

	next := b.state
	next.name = name
	next.typ = typ
	return next
}

func (b *builder) helpDirective(line string) parseState {
	parts := splitFields(line, 4)
	if len(parts) < 4 {
		return b.state
	}
	next := b.state
	next.name = parts[2]
	next.help = parts[3]
	return next
}

// parseSample parses `name[{labels}] value [timestamp]`.
func parseSample(line string) (Sample, error) {
	nameEnd := strings.IndexAny(line, "{ \t")
	if nameEnd == 0 {
		return Sample{}, fmt.Errorf("missing metric name")
	}
	if nameEnd < 0 {
		return Sample{}, fmt.Errorf("missing value")
	}

	s := Sample{Name: line[:nameEnd], Labels: map[string]string{}}
	rest := line[nameEnd:]

	if rest[0] == '{' {
		labels, n, err := parseLabels(rest)
		if err != nil {
			return Sample{}, err
		}
		s.Labels = labels
		rest = rest[n:]
	}

	fields := strings.Fields(rest)
	switch len(fields) {
	case 1, 2:
	case 0:
		return Sample{}, fmt.Errorf("missing value")
	default:
		return Sample{}, fmt.Errorf("unexpected trailing data %q", strings.Join(fields[2:], " "))
	}

	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Sample{}, fmt.Errorf("invalid value %q", fields[0])
	}
	s.Value = v

	if len(fields) == 2 {
		ts, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return Sample{}, fmt.Errorf("invalid timestamp %q", fields[1])
		}
		s.Timestamp = &ts
	}
	return s, nil
}

// splitFields splits on runs of whitespace into at most n fields; the last
// field keeps the remainder of the line.
func splitFields(s string, n int) []string {
	var out []string
	for len(out) < n-1 {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			return out
		}
		end := strings.IndexAny(s, " \t")
		if end < 0 {
			return append(out, s)
		}
		out = append(out, s[:end])
		s = s[end:]
	}
	if s = strings.TrimLeft(s, " \t"); s != "" {
		out = append(out, s)
	}
	return out
}
