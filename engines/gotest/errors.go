package gotest

import "errors"

// Sentinel errors for the gotest package.
var (
	// ErrListFailed is returned when go test -list fails.
	ErrListFailed = errors.New("gotest: listing tests failed")

	// ErrBuildFailed is returned when go test fails without reporting any
	// test, usually because the package does not compile.
	ErrBuildFailed = errors.New("gotest: package failed before running tests")
)
