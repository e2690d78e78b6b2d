// Copyright © NGRSoftlab 2020-2025

package scriptcopy

import (
	"github.com/ngrsoftlab/scriptcopy/datacontext"
)

// Log levels understood by ExecutionContext.Log
const (
	LevelError = iota
	LevelWarn
	LevelNormal
	LevelVerbose
	LevelDebug
)

// Listener receives leveled log messages
type Listener interface {
	Log(level int, msg string)
}

// ExecutionContext is what the surrounding platform hands to a copier
type ExecutionContext interface {
	Listener
	// Project names the project the execution belongs to
	Project() string
	// DataContext holds the caller's variable bindings. Copiers must not modify it
	DataContext() datacontext.DataContext
}

// BasicContext is a plain ExecutionContext
type BasicContext struct {
	ProjectName string
	Data        datacontext.DataContext
	Listener    Listener // optional, messages are dropped when nil
}

// interface guard
var _ ExecutionContext = (*BasicContext)(nil)

func (c *BasicContext) Log(level int, msg string) {
	if c.Listener != nil {
		c.Listener.Log(level, msg)
	}
}

func (c *BasicContext) Project() string {
	return c.ProjectName
}

func (c *BasicContext) DataContext() datacontext.DataContext {
	if c.Data == nil {
		return datacontext.New()
	}
	return c.Data
}
