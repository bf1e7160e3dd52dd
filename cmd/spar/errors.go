package main

import "errors"

// Command errors.
var (
	errNoUnits          = errors.New("no test units found")
	errUnknownLogFormat = errors.New("unknown log format")
	errNoHistory        = errors.New("no history store configured (set history in .spar.yaml)")
)
