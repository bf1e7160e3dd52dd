package gotest

import (
	"bytes"
	"regexp"
	"strings"
)

// ParseTestList extracts test names from go test -list output.
func ParseTestList(output []byte) []string {
	var names []string

	for _, line := range bytes.Split(output, []byte("\n")) {
		name := string(bytes.TrimSpace(line))
		if isTestName(name) {
			names = append(names, name)
		}
	}

	return names
}

// isTestName rejects the summary lines go test prints around the list,
// e.g. "ok  example.com/pkg 0.335s" and "? example.com/pkg [no test files]".
func isTestName(name string) bool {
	if name == "" || name == "ok" || strings.HasPrefix(name, "?") {
		return false
	}

	if strings.HasPrefix(name, "ok ") || strings.HasPrefix(name, "ok\t") {
		return false
	}

	return !strings.ContainsAny(name, " \t")
}

// runPattern builds a -run pattern that matches exactly the given top-level
// tests.
func runPattern(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}

	return "^(" + strings.Join(quoted, "|") + ")$"
}
