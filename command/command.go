// Copyright © NGRSoftlab 2020-2025

package command

import (
	"sort"

	"github.com/kballard/go-shellquote"
	"github.com/ngrsoftlab/scriptcopy/parser"
)

// CmdOption configures a Command
type CmdOption func(*Command)

// Command is an executable with its literal arguments and extra environment
type Command struct {
	Path   string            // executable to run
	Args   []string          // literal arguments, already expanded
	Env    map[string]string // extra environment variables
	Parser parser.Parser     // optional parser for command output
}

// New creates a Command for path and applies opts
func New(path string, opts ...CmdOption) *Command {
	c := &Command{Path: path, Env: make(map[string]string)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithArgs appends literal arguments
func WithArgs(args ...string) CmdOption {
	return func(c *Command) {
		c.Args = append(c.Args, args...)
	}
}

// WithEnv merges env into the command environment
func WithEnv(env map[string]string) CmdOption {
	return func(c *Command) {
		for k, v := range env {
			c.Env[k] = v
		}
	}
}

// WithParser attaches a Parser that will be run after execution
func WithParser(p parser.Parser) CmdOption {
	return func(c *Command) {
		c.Parser = p
	}
}

// Argv returns the full argument vector, executable first
func (c *Command) Argv() []string {
	if c.Path == "" {
		return append([]string(nil), c.Args...)
	}
	return append([]string{c.Path}, c.Args...)
}

// Environ returns Env as sorted KEY=value pairs
func (c *Command) Environ() []string {
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+c.Env[k])
	}
	return out
}

// String renders the command line with shell quoting, for logs only
func (c *Command) String() string {
	return shellquote.Join(c.Argv()...)
}
