// Copyright © NGRSoftlab 2020-2025

package utils

import (
	"fmt"
	"runtime/debug"
)

// Recover converts a recovered panic value into an error carrying the stack.
// Must be called directly from a deferred function
func Recover(r any) error {
	if r == nil {
		return nil
	}
	return fmt.Errorf("recovering from panic: %v\n%s", r, debug.Stack())
}
