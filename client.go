// Copyright © NGRSoftlab 2020-2025

package scriptcopy

import (
	"context"

	"github.com/ngrsoftlab/scriptcopy/command"
	"github.com/ngrsoftlab/scriptcopy/parser"
)

// Client runs commands. The type parameter O specifies the kind of options the client accepts.
type Client[O any] interface {
	// Run executes the given Command, applies any provided options,
	// and, if a Parser is set on cmd, parses the result into dst.
	// Returns a RawResult with stdout, exit code, and timing.
	Run(ctx context.Context, cmd *command.Command, dst any, opts ...O) (*parser.RawResult, error)

	// Close releases resources held by the client.
	Close() error
}
