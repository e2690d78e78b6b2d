// Copyright © NGRSoftlab 2020-2025

package scriptcopy

import (
	"errors"
	"fmt"
)

// FailureReason classifies why a copy failed
type FailureReason string

const (
	ReasonConfiguration     FailureReason = "ConfigurationError"
	ReasonIOFailure         FailureReason = "IOFailure"
	ReasonInterrupted       FailureReason = "Interrupted"
	ReasonNonZeroResultCode FailureReason = "NonZeroResultCode"
	ReasonOutputMissing     FailureReason = "OutputMissing"
)

// CopyError is returned by every FileCopier operation.
// Failures are terminal; callers decide whether to retry
type CopyError struct {
	Provider string        // provider name, for diagnostics
	Reason   FailureReason // classification
	Msg      string        // human readable description
	Err      error         // underlying cause, may be nil
}

// NewCopyError builds a CopyError for provider
func NewCopyError(provider string, reason FailureReason, err error, format string, args ...any) *CopyError {
	return &CopyError{
		Provider: provider,
		Reason:   reason,
		Msg:      fmt.Sprintf(format, args...),
		Err:      err,
	}
}

func (e *CopyError) Error() string {
	msg := fmt.Sprintf("[%s]: %s", e.Provider, e.Msg)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// ReasonOf returns the FailureReason carried by err, or "" if err is not a CopyError
func ReasonOf(err error) FailureReason {
	var ce *CopyError
	if errors.As(err, &ce) {
		return ce.Reason
	}
	return ""
}
