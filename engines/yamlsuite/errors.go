package yamlsuite

import "errors"

// Sentinel errors for the yamlsuite package.
var (
	// ErrInvalidFile is returned for suite files that parse but are unusable.
	ErrInvalidFile = errors.New("yamlsuite: invalid suite file")
)
