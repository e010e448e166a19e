package extract

import "strings"

// TechStack detects dictionary technologies in the given texts. The result
// follows dictionary order and holds each name once.
func (r *Rules) TechStack(texts ...string) []string {
	joined := strings.Join(texts, "\n")
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	var found []string
	for _, t := range r.tech {
		if t.re.MatchString(joined) {
			found = append(found, t.name)
		}
	}
	return found
}

// SplitStack parses a comma-joined stack back into tokens
func SplitStack(s string) []string {
	s = Nullable(s)
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
