package model

import (
	"fmt"
	"strings"
)

// TestStatus is the state of one test record.
type TestStatus int

// Test statuses. A run moves a record from None to Running to one of the
// terminal statuses.
const (
	StatusNone TestStatus = iota
	StatusRunning
	StatusSuccess
	StatusFailure
	StatusIgnored
)

var statusNames = [...]string{"None", "Running", "Success", "Failure", "Ignored"}

func (s TestStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("TestStatus(%d)", int(s))
	}

	return statusNames[s]
}

// IsTerminal reports whether s ends a run attempt.
func (s TestStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailure || s == StatusIgnored
}

// ParseStatus parses a status name, ignoring case.
func ParseStatus(name string) (TestStatus, error) {
	for i, n := range statusNames {
		if strings.EqualFold(n, name) {
			return TestStatus(i), nil
		}
	}

	return StatusNone, fmt.Errorf("%w: %q", ErrInvalidStatus, name)
}

// MarshalText encodes the status by name.
func (s TestStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *TestStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}
