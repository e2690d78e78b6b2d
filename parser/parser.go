// Copyright © NGRSoftlab 2020-2025

package parser

import (
	"time"
)

// Parser converts a RawResult into a user-defined value
type Parser interface {
	Parse(rawResult *RawResult, dst any) error
}

// RawResult holds the outcome of running a command
type RawResult struct {
	Command  string        // the rendered command line
	Stdout   string        // collected standard output
	Stderr   string        // collected standard error, empty when streamed elsewhere
	ExitCode int           // process exit code, -1 if the process never exited normally
	Duration time.Duration // time taken to run the command
	Err      error         // any error from execution or parsing
}

// NewRawResult initializes a RawResult for the given command line
func NewRawResult(cmdLine string) *RawResult {
	return &RawResult{Command: cmdLine}
}
