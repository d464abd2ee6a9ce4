package util

import "strings"

// ParseAccountList splits a whitespace separated account list. Foundry's
// ffi passes the whole list as a single argument.
func ParseAccountList(arg string) []string {
	return strings.Fields(arg)
}

// SplitList splits a comma separated list, tolerating surrounding brackets,
// quotes and whitespace. An empty input yields an empty list.
func SplitList(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if strings.TrimSpace(s) == "" {
		return []string{}
	}

	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.Trim(strings.TrimSpace(p), `"'`))
	}
	return out
}
