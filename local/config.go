// Copyright © NGRSoftlab 2020-2025

package local

import (
	"fmt"
	"os"
	"time"
)

const defaultWaitDelay = 5 * time.Second

// Config holds settings for local execution
type Config struct {
	WorkDir   string            // optional: working directory for the command
	EnvVars   map[string]string // optional: extra environment variables
	WaitDelay time.Duration     // how long to wait for output pipes after the process is killed
}

// NewConfig creates a config
func NewConfig() *Config {
	return &Config{
		WorkDir:   "",
		EnvVars:   make(map[string]string),
		WaitDelay: defaultWaitDelay,
	}
}

// WithWorkDir sets the working directory for the command
func (lc *Config) WithWorkDir(workdir string) *Config {
	if workdir != "" {
		lc.WorkDir = workdir
	}
	return lc
}

// WithEnvVars merges in extra environment variables.
func (lc *Config) WithEnvVars(env map[string]string) *Config {
	if lc.EnvVars == nil {
		lc.EnvVars = make(map[string]string, len(env))
	}
	for k, v := range env {
		lc.EnvVars[k] = v
	}
	return lc
}

// WithWaitDelay sets how long Run waits for pipes to close after cancellation
func (lc *Config) WithWaitDelay(d time.Duration) *Config {
	if d > 0 {
		lc.WaitDelay = d
	}
	return lc
}

func (lc *Config) Validate() error {
	if lc.WaitDelay < 0 {
		return fmt.Errorf("wait delay must be >=0")
	}
	if lc.WorkDir == "" {
		return nil
	}
	fi, err := os.Stat(lc.WorkDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("workdir %s does not exist", lc.WorkDir)
		}
		return fmt.Errorf("invalid workdir %q: %w", lc.WorkDir, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("workdir %q is not a directory", lc.WorkDir)
	}
	return nil
}
