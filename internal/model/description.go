package model

import "strings"

// ParseDescription splits a raw photo description into a display name and
// supplementary lines. The first non-empty line (whitespace-trimmed) becomes
// the name; every later non-empty line is kept, in order, as an extra line.
// Empty or whitespace-only input yields ("", nil). It never fails: malformed
// input is treated permissively.
func ParseDescription(description string) (name string, extra []string) {
	lines := strings.Split(strings.ReplaceAll(description, "\r\n", "\n"), "\n")

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if name == "" {
			name = line
			continue
		}
		extra = append(extra, line)
	}
	return name, extra
}
