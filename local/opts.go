// Copyright © NGRSoftlab 2020-2025

package local

import (
	"io"
)

// RunOption changes localRunConfig for a single call to Run
type RunOption func(*localRunConfig)

// localRunConfig collects per-run parameters.
// A nil stdout or stderr means the stream is buffered into the RawResult
type localRunConfig struct {
	dir     string
	envVars map[string]string
	stdout  io.Writer
	stderr  io.Writer
}

func newRunConfig(baseDir string, baseEnv map[string]string, opts ...RunOption) *localRunConfig {
	runConfig := &localRunConfig{
		dir:     baseDir,
		envVars: make(map[string]string, len(baseEnv)),
	}

	for k, v := range baseEnv {
		runConfig.envVars[k] = v
	}

	for _, opt := range opts {
		opt(runConfig)
	}
	return runConfig
}

// WithWorkdir sets the working directory for one run
func WithWorkdir(workdir string) RunOption {
	return func(rc *localRunConfig) {
		rc.dir = workdir
	}
}

// WithEnvVar adds or overrides one environment variable for one run
func WithEnvVar(key, value string) RunOption {
	return func(rc *localRunConfig) {
		rc.envVars[key] = value
	}
}

// WithEnvVars adds or overrides several environment variables for one run
func WithEnvVars(env map[string]string) RunOption {
	return func(rc *localRunConfig) {
		for k, v := range env {
			rc.envVars[k] = v
		}
	}
}

// WithStdout sends live stdout to w instead of buffering.
// RawResult.Stdout stays empty, so output parsers see nothing
func WithStdout(stdout io.Writer) RunOption {
	return func(rc *localRunConfig) {
		rc.stdout = stdout
	}
}

// WithStderr streams stderr to w as it is produced instead of buffering it
func WithStderr(stderr io.Writer) RunOption {
	return func(rc *localRunConfig) {
		rc.stderr = stderr
	}
}
