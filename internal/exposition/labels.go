package exposition

import (
	"fmt"
	"strings"
)

// parseLabels reads a `{name="value",...}` block at the start of s and
// returns the labels and the number of bytes consumed, closing brace
// included. Quoted values may contain any character; \\, \" and \n are
// unescaped.
func parseLabels(s string) (map[string]string, int, error) {
	labels := make(map[string]string)
	i := 1 // past '{'

	for {
		i = skipSpace(s, i)
		if i >= len(s) {
			return nil, 0, fmt.Errorf("unterminated label set")
		}
		if s[i] == '}' {
			return labels, i + 1, nil
		}

		start := i
		for i < len(s) && !strings.ContainsRune("= \t,{}\"", rune(s[i])) {
			i++
		}
		name := s[start:i]
		if name == "" {
			return nil, 0, fmt.Errorf("empty label name at offset %d", start)
		}

		i = skipSpace(s, i)
		if i >= len(s) || s[i] != '=' {
			return nil, 0, fmt.Errorf("expected '=' after label %q", name)
		}
		i = skipSpace(s, i+1)
		if i >= len(s) || s[i] != '"' {
			return nil, 0, fmt.Errorf("expected quoted value for label %q", name)
		}

		value, n, err := readQuoted(s[i:])
		if err != nil {
			return nil, 0, fmt.Errorf("label %q: %w", name, err)
		}
		if _, dup := labels[name]; dup {
			return nil, 0, fmt.Errorf("duplicate label %q", name)
		}
		labels[name] = value
		i = skipSpace(s, i+n)

		if i < len(s) && s[i] == ',' {
			i++
			continue
		}
		if i < len(s) && s[i] == '}' {
			continue
		}
		return nil, 0, fmt.Errorf("expected ',' or '}' after label %q", name)
	}
}

// readQuoted reads a double-quoted string at the start of s and returns the
// unescaped value and the bytes consumed, both quotes included.
func readQuoted(s string) (string, int, error) {
	var sb strings.Builder
	for i := 1; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			return sb.String(), i + 1, nil
		case '\\':
			if i+1 >= len(s) {
				return "", 0, fmt.Errorf("unterminated escape")
			}
			i++
			switch s[i] {
			case 'n':
				sb.WriteByte('\n')
			case '\\', '"':
				sb.WriteByte(s[i])
			default:
				sb.WriteByte('\\')
				sb.WriteByte(s[i])
			}
		default:
			sb.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated quoted value")
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}
