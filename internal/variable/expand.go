package variable

import "strings"

// Expand replaces ${name} placeholders in s with formatted variable
// values. Placeholders naming unknown variables are preserved literally,
// including the ${} wrapper, so a failed lookup is visible in the output
// rather than silently collapsing to an empty string.
//
// Expansion is a single left-to-right pass: values containing ${...}
// themselves are not re-expanded.
func (s *Store) Expand(input string) string {
	if !strings.Contains(input, "${") {
		return input
	}

	var b strings.Builder
	b.Grow(len(input))

	rest := input
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			// Unterminated placeholder, keep the remainder as-is.
			b.WriteString(rest)
			return b.String()
		}
		end += start

		b.WriteString(rest[:start])
		name := rest[start+2 : end]

		if v, err := s.Get(name); err == nil {
			b.WriteString(v.Format())
		} else {
			// Unknown variable: keep the placeholder literal.
			b.WriteString(rest[start : end+1])
		}
		rest = rest[end+1:]
	}
}
