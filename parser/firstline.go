// Copyright © NGRSoftlab 2020-2025

package parser

import (
	"errors"
	"fmt"
	"regexp"
)

var ErrNoOutput = errors.New("no output from external script")

var lineBreak = regexp.MustCompile(`\r?\n`)

// FirstLine extracts the first line of stdout into a *string.
// Output after the first line break is ignored. Paths containing a newline
// cannot be reported this way
type FirstLine struct{}

// Parse sets dst to the first stdout line, or returns ErrNoOutput when
// stdout is empty or starts with a line break
func (FirstLine) Parse(raw *RawResult, dst any) error {
	sp, ok := dst.(*string)
	if !ok {
		return fmt.Errorf("dst must be *string, got %T", dst)
	}
	if raw == nil || len(raw.Stdout) == 0 {
		return ErrNoOutput
	}
	lines := lineBreak.Split(raw.Stdout, 2)
	if len(lines) == 0 || lines[0] == "" {
		return ErrNoOutput
	}
	*sp = lines[0]
	return nil
}
