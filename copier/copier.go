// Copyright © NGRSoftlab 2020-2025

package copier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ngrsoftlab/scriptcopy"
	"github.com/ngrsoftlab/scriptcopy/command"
	"github.com/ngrsoftlab/scriptcopy/datacontext"
	"github.com/ngrsoftlab/scriptcopy/local"
	"github.com/ngrsoftlab/scriptcopy/parser"
	"github.com/ngrsoftlab/scriptcopy/provider"
	"github.com/ngrsoftlab/scriptcopy/utils"
)

// interface guard
var _ scriptcopy.DestinationFileCopier = (*ScriptCopier)(nil)

// ScriptCopier copies content by running the script declared by a provider.
// It holds no per-call state and is safe for concurrent use
type ScriptCopier struct {
	provider  provider.Provider
	client    scriptcopy.Client[local.RunOption]
	stager    *local.Stager
	mapper    *utils.ExitCodeMapper
	stderr    io.Writer
	envPrefix string
	baseDir   string
	tmpDir    string
	varDir    string
	framework map[string]string
}

// Option configures a ScriptCopier
type Option func(*ScriptCopier)

// WithClient replaces the local process client
func WithClient(cl scriptcopy.Client[local.RunOption]) Option {
	return func(sc *ScriptCopier) {
		if cl != nil {
			sc.client = cl
		}
	}
}

// WithTempDir sets where content is staged
func WithTempDir(dir string) Option {
	return func(sc *ScriptCopier) {
		sc.tmpDir = dir
	}
}

// WithVarDir sets the plugin.vardir value exposed to scripts
func WithVarDir(dir string) Option {
	return func(sc *ScriptCopier) {
		sc.varDir = dir
	}
}

// WithBaseDir sets the framework.base value exposed to scripts
func WithBaseDir(dir string) Option {
	return func(sc *ScriptCopier) {
		sc.baseDir = dir
	}
}

// WithEnvPrefix prefixes every generated environment variable, e.g. "RD_"
func WithEnvPrefix(prefix string) Option {
	return func(sc *ScriptCopier) {
		sc.envPrefix = prefix
	}
}

// WithStderr sets where script stderr is streamed. Defaults to os.Stderr
func WithStderr(w io.Writer) Option {
	return func(sc *ScriptCopier) {
		if w != nil {
			sc.stderr = w
		}
	}
}

// WithFrameworkData adds platform wide variables to the framework namespace
func WithFrameworkData(data map[string]string) Option {
	return func(sc *ScriptCopier) {
		for k, v := range data {
			sc.framework[k] = v
		}
	}
}

// New validates p and returns a copier for it.
// A provider without script-args is rejected with a ConfigurationError
func New(p *provider.Provider, opts ...Option) (*ScriptCopier, error) {
	if p == nil {
		return nil, scriptcopy.NewCopyError("", scriptcopy.ReasonConfiguration, nil, "provider is nil")
	}
	if err := p.Validate(); err != nil {
		return nil, scriptcopy.NewCopyError(p.Name, scriptcopy.ReasonConfiguration, err, "invalid provider")
	}

	sc := &ScriptCopier{
		provider:  *p,
		client:    local.NewClient(nil),
		mapper:    utils.NewDefaultExitCodeMapper(),
		stderr:    os.Stderr,
		framework: make(map[string]string),
	}
	for _, opt := range opts {
		opt(sc)
	}
	if sc.tmpDir == "" {
		sc.tmpDir = os.TempDir()
	}
	sc.stager = local.NewStager(sc.tmpDir)
	return sc, nil
}

// Name returns the provider name
func (sc *ScriptCopier) Name() string {
	return sc.provider.Name
}

// CopyFileStream copies everything read from r. The script reports the remote path
func (sc *ScriptCopier) CopyFileStream(ctx context.Context, ec scriptcopy.ExecutionContext, r io.Reader, node scriptcopy.Node) (string, error) {
	return sc.copyFile(ctx, ec, scriptcopy.StreamContent{Reader: r}, node, nil, false)
}

// CopyFile copies an existing local file. The script reports the remote path
func (sc *ScriptCopier) CopyFile(ctx context.Context, ec scriptcopy.ExecutionContext, path string, node scriptcopy.Node) (string, error) {
	return sc.copyFile(ctx, ec, scriptcopy.FileContent{Path: path}, node, nil, false)
}

// CopyScriptContent copies script text. The script reports the remote path
func (sc *ScriptCopier) CopyScriptContent(ctx context.Context, ec scriptcopy.ExecutionContext, s string, node scriptcopy.Node) (string, error) {
	return sc.copyFile(ctx, ec, scriptcopy.StringContent{Text: s}, node, nil, false)
}

// CopyTo copies content to destination. Without a destination the content has its
// @namespace.key@ tokens expanded and the script reports the remote path;
// with one the content is copied unchanged and the destination is returned
func (sc *ScriptCopier) CopyTo(ctx context.Context, ec scriptcopy.ExecutionContext, content scriptcopy.Content, node scriptcopy.Node, destination *string) (string, error) {
	return sc.copyFile(ctx, ec, content, node, destination, destination == nil)
}

func (sc *ScriptCopier) copyFile(ctx context.Context, ec scriptcopy.ExecutionContext, content scriptcopy.Content, node scriptcopy.Node,
	destination *string, expandTokens bool) (remotePath string, err error) {
	name := sc.provider.Name

	defer func() {
		if r := recover(); r != nil {
			remotePath = ""
			err = scriptcopy.NewCopyError(name, scriptcopy.ReasonIOFailure, utils.Recover(r), "copy aborted")
		}
	}()

	if err := sc.provider.Validate(); err != nil {
		return "", scriptcopy.NewCopyError(name, scriptcopy.ReasonConfiguration, err, "invalid provider")
	}
	if ec == nil || node == nil {
		return "", scriptcopy.NewCopyError(name, scriptcopy.ReasonConfiguration, nil, "execution context and node are required")
	}

	dc := sc.buildDataContext(ec, node)

	staged, err := sc.stager.Stage(content, dc, expandTokens)
	if err != nil {
		return "", scriptcopy.NewCopyError(name, scriptcopy.ReasonIOFailure, err, "staging content failed")
	}
	defer func() {
		if cleanupErr := staged.Cleanup(); cleanupErr != nil {
			ec.Log(scriptcopy.LevelWarn, fmt.Sprintf("[%s]: %v", name, cleanupErr))
		}
	}()

	destFilePath := resolveDestination(destination, staged.Name())
	dc.Put(datacontext.NamespaceFileCopy, map[string]string{
		"file":        staged.Path,
		"destination": destFilePath,
	})

	cmd, err := sc.render(dc)
	if err != nil {
		return "", scriptcopy.NewCopyError(name, scriptcopy.ReasonConfiguration, err, "cannot build script command")
	}

	ec.Log(scriptcopy.LevelVerbose, fmt.Sprintf("[%s] executing: [%s]", name, strings.Join(cmd.Argv(), ", ")))

	result, err := sc.client.Run(ctx, cmd, nil, local.WithStderr(sc.stderr))
	if err := sc.checkRun(ctx, ec, result, err); err != nil {
		return "", err
	}

	if destination != nil {
		return destFilePath, nil
	}

	var remote string
	if err := (parser.FirstLine{}).Parse(result, &remote); err != nil {
		return "", scriptcopy.NewCopyError(name, scriptcopy.ReasonOutputMissing, nil, "No output from external script")
	}

	ec.Log(scriptcopy.LevelVerbose, fmt.Sprintf("[%s]: result filepath: %s", name, remote))
	return remote, nil
}

// buildDataContext layers framework, plugin and project data under the caller's
// bindings, then sets the node namespace
func (sc *ScriptCopier) buildDataContext(ec scriptcopy.ExecutionContext, node scriptcopy.Node) datacontext.DataContext {
	scriptPath, _ := sc.provider.ScriptPath()

	platform := datacontext.New()
	platform.Put(datacontext.NamespaceFramework, sc.framework)
	platform.Set(datacontext.NamespaceFramework, "base", sc.baseDir)
	platform.Set(datacontext.NamespaceFramework, "tmpdir", sc.tmpDir)
	platform.Set(datacontext.NamespaceFramework, "project", ec.Project())
	platform.Put(datacontext.NamespacePlugin, map[string]string{
		"name":       sc.provider.Name,
		"base":       sc.provider.BaseDir,
		"file":       filepath.Base(sc.provider.ScriptFile),
		"scriptfile": scriptPath,
		"vardir":     sc.varDir,
		"tmpdir":     sc.tmpDir,
	})
	platform.Set(datacontext.NamespaceProject, "name", ec.Project())

	dc := datacontext.Merge(platform, ec.DataContext())
	dc.Put(datacontext.NamespaceNode, datacontext.NodeData(node.Nodename(), node.Data()))
	return dc
}

// render builds the script command from the provider declaration
func (sc *ScriptCopier) render(dc datacontext.DataContext) (*command.Command, error) {
	scriptPath, err := sc.provider.ScriptPath()
	if err != nil {
		return nil, fmt.Errorf("resolve script path: %w", err)
	}
	return command.Render(command.Template{
		Interpreter:       sc.provider.ScriptInterpreter,
		InterpreterQuoted: sc.provider.InterpreterArgsQuoted,
		Script:            scriptPath,
		Args:              sc.provider.Args(),
		EnvPrefix:         sc.envPrefix,
	}, dc)
}

// checkRun classifies the outcome of the script run
func (sc *ScriptCopier) checkRun(ctx context.Context, ec scriptcopy.ExecutionContext, result *parser.RawResult, runErr error) error {
	name := sc.provider.Name

	if ctxErr := ctx.Err(); ctxErr != nil {
		if runErr == nil {
			runErr = ctxErr
		}
		return scriptcopy.NewCopyError(name, scriptcopy.ReasonInterrupted, runErr, "interrupted while waiting for external script")
	}

	if runErr != nil && !errors.Is(runErr, utils.ErrNonZeroExit) {
		return scriptcopy.NewCopyError(name, scriptcopy.ReasonIOFailure, runErr, "external script could not be run")
	}
	if result == nil {
		return scriptcopy.NewCopyError(name, scriptcopy.ReasonIOFailure, nil, "external script produced no result")
	}

	ec.Log(scriptcopy.LevelVerbose, fmt.Sprintf("[%s]: result code: %d", name, result.ExitCode))
	if result.ExitCode != 0 || runErr != nil {
		return scriptcopy.NewCopyError(name, scriptcopy.ReasonNonZeroResultCode, nil,
			"external script failed with exit code: %d (%s)", result.ExitCode, sc.mapper.Lookup(result.ExitCode))
	}
	return nil
}

// resolveDestination appends fileName when destination names a directory.
// A nil destination resolves to ""
func resolveDestination(destination *string, fileName string) string {
	if destination == nil {
		return ""
	}
	if strings.HasSuffix(*destination, "/") {
		return *destination + fileName
	}
	return *destination
}
