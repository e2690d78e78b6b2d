// Copyright © NGRSoftlab 2020-2025

package command

import (
	"fmt"

	"github.com/kballard/go-shellquote"
	"github.com/ngrsoftlab/scriptcopy/datacontext"
)

// Template describes how a script is invoked before data references are expanded
type Template struct {
	Interpreter       string // optional, e.g. "/bin/bash" or "python3 -u"
	InterpreterQuoted bool   // pass script and args to the interpreter as one quoted word
	Script            string // path of the script to run
	Args              string // argument template with ${namespace.key} references
	EnvPrefix         string // prefix for generated environment variable names
}

// Render expands the argument template against dc and builds the Command.
// Args are split into shell words first and each word is expanded afterwards,
// so values containing spaces stay a single argument
func Render(tmpl Template, dc datacontext.DataContext) (*Command, error) {
	words, err := shellquote.Split(tmpl.Args)
	if err != nil {
		return nil, fmt.Errorf("split script args: %w", err)
	}

	args := make([]string, 0, len(words))
	for _, w := range words {
		expanded, err := datacontext.ReplaceDataReferences(w, dc)
		if err != nil {
			return nil, fmt.Errorf("expand script args: %w", err)
		}
		args = append(args, expanded)
	}

	env := datacontext.EnvVars(dc, tmpl.EnvPrefix)

	if tmpl.Interpreter == "" {
		return New(tmpl.Script, WithArgs(args...), WithEnv(env)), nil
	}

	interp, err := shellquote.Split(tmpl.Interpreter)
	if err != nil {
		return nil, fmt.Errorf("split script interpreter: %w", err)
	}
	if len(interp) == 0 {
		return New(tmpl.Script, WithArgs(args...), WithEnv(env)), nil
	}

	rest := append([]string(nil), interp[1:]...)
	if tmpl.InterpreterQuoted {
		rest = append(rest, shellquote.Join(append([]string{tmpl.Script}, args...)...))
	} else {
		rest = append(rest, tmpl.Script)
		rest = append(rest, args...)
	}
	return New(interp[0], WithArgs(rest...), WithEnv(env)), nil
}
