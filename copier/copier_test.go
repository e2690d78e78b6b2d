// Copyright © NGRSoftlab 2020-2025

package copier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ngrsoftlab/scriptcopy"
	"github.com/ngrsoftlab/scriptcopy/command"
	"github.com/ngrsoftlab/scriptcopy/datacontext"
	"github.com/ngrsoftlab/scriptcopy/local"
	"github.com/ngrsoftlab/scriptcopy/parser"
	"github.com/ngrsoftlab/scriptcopy/provider"
)

// fakeContext records log lines
type fakeContext struct {
	mu      sync.Mutex
	project string
	data    datacontext.DataContext
	lines   []string
}

func (f *fakeContext) Log(level int, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, fmt.Sprintf("%d %s", level, msg))
}

func (f *fakeContext) Project() string { return f.project }

func (f *fakeContext) DataContext() datacontext.DataContext { return f.data }

func (f *fakeContext) logs() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.lines, "\n")
}

// recordingClient counts calls and never spawns anything
type recordingClient struct {
	calls  int
	result *parser.RawResult
	err    error
}

func (c *recordingClient) Run(ctx context.Context, cmd *command.Command, dst any, opts ...local.RunOption) (*parser.RawResult, error) {
	c.calls++
	return c.result, c.err
}

func (c *recordingClient) Close() error { return nil }

var testNode = &scriptcopy.NodeEntry{Name: "web1", Hostname: "10.0.0.1", Username: "deploy"}

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH, skipping")
	}
}

// writeScript creates an executable shell script in dir
func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "copy.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

type fixture struct {
	copier *ScriptCopier
	ec     *fakeContext
	tmpDir string
	record string
	stderr *bytes.Buffer
}

// newFixture builds a copier around a script body. The script may write to $RECORD
func newFixture(t *testing.T, body, args string, opts ...Option) *fixture {
	t.Helper()
	requireSh(t)

	scriptDir := t.TempDir()
	tmpDir := t.TempDir()
	record := filepath.Join(scriptDir, "record.txt")
	script := writeScript(t, scriptDir, "RECORD="+record+"\n"+body)

	stderr := &bytes.Buffer{}
	p := &provider.Provider{Name: "test-copier", ScriptFile: script, ScriptArgs: &args}
	opts = append([]Option{WithTempDir(tmpDir), WithStderr(stderr)}, opts...)
	sc, err := New(p, opts...)
	require.NoError(t, err)

	return &fixture{
		copier: sc,
		ec:     &fakeContext{project: "demo", data: datacontext.New()},
		tmpDir: tmpDir,
		record: record,
		stderr: stderr,
	}
}

func (f *fixture) recorded(t *testing.T) []string {
	t.Helper()
	raw, err := os.ReadFile(f.record)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
}

func (f *fixture) assertNoTempFiles(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged files left behind")
}

func strPtr(s string) *string { return &s }

func sourceFile(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.txt")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func contents(t *testing.T) map[string]func() scriptcopy.Content {
	src := sourceFile(t, "payload")
	return map[string]func() scriptcopy.Content{
		"stream": func() scriptcopy.Content { return scriptcopy.StreamContent{Reader: strings.NewReader("payload")} },
		"file":   func() scriptcopy.Content { return scriptcopy.FileContent{Path: src} },
		"string": func() scriptcopy.Content { return scriptcopy.StringContent{Text: "payload"} },
	}
}

func TestCopy_ScriptReportsPath(t *testing.T) {
	f := newFixture(t, `echo /remote/fixed/path; echo ignored second line`, "${file-copy.file}")
	ctx := context.Background()

	for name, mk := range contents(t) {
		t.Run("copy_to_"+name, func(t *testing.T) {
			got, err := f.copier.CopyTo(ctx, f.ec, mk(), testNode, nil)
			require.NoError(t, err)
			assert.Equal(t, "/remote/fixed/path", got)
			f.assertNoTempFiles(t)
		})
	}

	t.Run("legacy_stream", func(t *testing.T) {
		got, err := f.copier.CopyFileStream(ctx, f.ec, strings.NewReader("x"), testNode)
		require.NoError(t, err)
		assert.Equal(t, "/remote/fixed/path", got)
	})
	t.Run("legacy_file", func(t *testing.T) {
		got, err := f.copier.CopyFile(ctx, f.ec, sourceFile(t, "x"), testNode)
		require.NoError(t, err)
		assert.Equal(t, "/remote/fixed/path", got)
	})
	t.Run("legacy_string", func(t *testing.T) {
		got, err := f.copier.CopyScriptContent(ctx, f.ec, "x", testNode)
		require.NoError(t, err)
		assert.Equal(t, "/remote/fixed/path", got)
	})

	f.assertNoTempFiles(t)
	logs := f.ec.logs()
	assert.Contains(t, logs, "3 [test-copier] executing: [")
	assert.Contains(t, logs, "3 [test-copier]: result code: 0")
	assert.Contains(t, logs, "3 [test-copier]: result filepath: /remote/fixed/path")
}

func TestCopy_ExplicitDestinationVerbatim(t *testing.T) {
	f := newFixture(t, `echo /somewhere/else`, "${file-copy.file}")

	for name, mk := range contents(t) {
		t.Run(name, func(t *testing.T) {
			got, err := f.copier.CopyTo(context.Background(), f.ec, mk(), testNode, strPtr("/remote/target.txt"))
			require.NoError(t, err)
			assert.Equal(t, "/remote/target.txt", got)
		})
	}
	f.assertNoTempFiles(t)
}

func TestCopy_ExplicitDestinationIgnoresMissingOutput(t *testing.T) {
	f := newFixture(t, `exit 0`, "")
	got, err := f.copier.CopyTo(context.Background(), f.ec, scriptcopy.StringContent{Text: "x"}, testNode, strPtr("/d/f"))
	require.NoError(t, err)
	assert.Equal(t, "/d/f", got)
}

func TestCopy_DestinationDirectory(t *testing.T) {
	f := newFixture(t, `printf '%s\n' "$@" > "$RECORD"`, `${file-copy.file} "${file-copy.destination}"`)

	got, err := f.copier.CopyTo(context.Background(), f.ec, scriptcopy.StringContent{Text: "x"}, testNode, strPtr("/remote/dir/"))
	require.NoError(t, err)

	args := f.recorded(t)
	require.Len(t, args, 2)
	staged := args[0]
	assert.True(t, filepath.IsAbs(staged))
	assert.Equal(t, f.tmpDir, filepath.Dir(staged))
	assert.Equal(t, "/remote/dir/"+filepath.Base(staged), got)
	assert.Equal(t, got, args[1])

	// a caller's file keeps its own name
	src := sourceFile(t, "data")
	got, err = f.copier.CopyTo(context.Background(), f.ec, scriptcopy.FileContent{Path: src}, testNode, strPtr("/remote/dir/"))
	require.NoError(t, err)
	assert.Equal(t, "/remote/dir/payload.txt", got)
	assert.Equal(t, []string{src, "/remote/dir/payload.txt"}, f.recorded(t))
	assert.FileExists(t, src, "caller file must not be removed")
}

func TestResolveDestination(t *testing.T) {
	tests := []struct {
		name string
		dest *string
		want string
	}{
		{"absent", nil, ""},
		{"directory", strPtr("/remote/dir/"), "/remote/dir/tmp123.tmp"},
		{"file", strPtr("/remote/file"), "/remote/file"},
		{"empty", strPtr(""), ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resolveDestination(tc.dest, "tmp123.tmp"))
		})
	}
}

func TestCopy_FileCopyReferences(t *testing.T) {
	body := `printf '%s\n' "$@" > "$RECORD"
echo "$FILE_COPY_FILE|$FILE_COPY_DESTINATION|$NODE_HOSTNAME|$NODE_NAME|$PROJECT_NAME" >> "$RECORD"
echo /reported`
	f := newFixture(t, body, `${file-copy.file} "${file-copy.destination}" ${node.username}@${node.hostname}`)

	t.Run("no_destination", func(t *testing.T) {
		got, err := f.copier.CopyTo(context.Background(), f.ec, scriptcopy.StringContent{Text: "x"}, testNode, nil)
		require.NoError(t, err)
		assert.Equal(t, "/reported", got)

		rec := f.recorded(t)
		require.Len(t, rec, 4)
		assert.True(t, filepath.IsAbs(rec[0]))
		assert.Equal(t, "", rec[1])
		assert.Equal(t, "deploy@10.0.0.1", rec[2])
		assert.Equal(t, rec[0]+"||10.0.0.1|web1|demo", rec[3])
	})

	t.Run("with_destination", func(t *testing.T) {
		src := sourceFile(t, "data")
		_, err := f.copier.CopyTo(context.Background(), f.ec, scriptcopy.FileContent{Path: src}, testNode, strPtr("/dst/file"))
		require.NoError(t, err)

		rec := f.recorded(t)
		require.Len(t, rec, 4)
		assert.Equal(t, src, rec[0])
		assert.Equal(t, "/dst/file", rec[1])
		assert.Equal(t, src+"|/dst/file|10.0.0.1|web1|demo", rec[3])
	})
}

func TestCopy_EnvPrefix(t *testing.T) {
	f := newFixture(t, `echo "$RD_FILE_COPY_FILE"`, "", WithEnvPrefix("RD_"))
	got, err := f.copier.CopyTo(context.Background(), f.ec, scriptcopy.StringContent{Text: "x"}, testNode, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, f.tmpDir), "got %q", got)
}

func TestCopy_NonZeroExit(t *testing.T) {
	f := newFixture(t, `echo /remote/well/formed; echo oops >&2; exit 2`, "")

	for _, dest := range []*string{nil, strPtr("/remote/x")} {
		_, err := f.copier.CopyTo(context.Background(), f.ec, scriptcopy.StringContent{Text: "x"}, testNode, dest)
		require.Error(t, err)
		assert.Equal(t, scriptcopy.ReasonNonZeroResultCode, scriptcopy.ReasonOf(err))
		assert.Contains(t, err.Error(), "exit code: 2")
		assert.Contains(t, err.Error(), "[test-copier]")
	}
	assert.Contains(t, f.stderr.String(), "oops")
	assert.Contains(t, f.ec.logs(), "result code: 2")
	f.assertNoTempFiles(t)
}

func TestCopy_OutputMissing(t *testing.T) {
	for name, body := range map[string]string{
		"empty":         `exit 0`,
		"blank_line":    `echo`,
		"stderr_only":   `echo /not/stdout >&2`,
		"leading_blank": `printf '\n/late/path\n'`,
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, body, "")
			_, err := f.copier.CopyTo(context.Background(), f.ec, scriptcopy.StringContent{Text: "x"}, testNode, nil)
			require.Error(t, err)
			assert.Equal(t, scriptcopy.ReasonOutputMissing, scriptcopy.ReasonOf(err))
			assert.Contains(t, err.Error(), "No output from external script")
			f.assertNoTempFiles(t)
		})
	}
}

func TestCopy_TokenExpansion(t *testing.T) {
	f := newFixture(t, `cat "$1" > "$RECORD"; echo /r`, "${file-copy.file}")
	ec := &fakeContext{project: "demo", data: datacontext.DataContext{"option": {"env": "prod"}}}
	script := "host=@node.hostname@ env=@option.env@ missing=@option.none@"

	_, err := f.copier.CopyTo(context.Background(), ec, scriptcopy.StringContent{Text: script}, testNode, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"host=10.0.0.1 env=prod missing="}, f.recorded(t))

	_, err = f.copier.CopyTo(context.Background(), ec, scriptcopy.StringContent{Text: script}, testNode, strPtr("/d"))
	require.NoError(t, err)
	assert.Equal(t, []string{script}, f.recorded(t), "content with a destination is copied byte for byte")

	_, err = f.copier.CopyScriptContent(context.Background(), ec, script, testNode)
	require.NoError(t, err)
	assert.Equal(t, []string{script}, f.recorded(t), "legacy entry points never expand tokens")
}

func TestCopy_MissingScriptArgs(t *testing.T) {
	requireSh(t)

	_, err := New(&provider.Provider{Name: "broken", ScriptFile: "/bin/true"})
	require.Error(t, err)
	assert.Equal(t, scriptcopy.ReasonConfiguration, scriptcopy.ReasonOf(err))
	assert.ErrorIs(t, err, provider.ErrMissingScriptArgs)

	_, err = New(nil)
	assert.Equal(t, scriptcopy.ReasonConfiguration, scriptcopy.ReasonOf(err))

	// a provider that loses its template after construction is still rejected before staging
	tmpDir := t.TempDir()
	client := &recordingClient{}
	sc, err := New(&provider.Provider{Name: "p", ScriptFile: "/bin/true", ScriptArgs: strPtr("")},
		WithTempDir(tmpDir), WithClient(client))
	require.NoError(t, err)
	sc.provider.ScriptArgs = nil

	_, err = sc.CopyTo(context.Background(), &fakeContext{}, scriptcopy.StringContent{Text: "x"}, testNode, nil)
	assert.Equal(t, scriptcopy.ReasonConfiguration, scriptcopy.ReasonOf(err))
	assert.Equal(t, 0, client.calls, "no process may be spawned")
	entries, _ := os.ReadDir(tmpDir)
	assert.Empty(t, entries, "no temp file may be leaked")
}

func TestCopy_UnresolvedArgument(t *testing.T) {
	tmpDir := t.TempDir()
	client := &recordingClient{}
	sc, err := New(&provider.Provider{Name: "p", ScriptFile: "/bin/true", ScriptArgs: strPtr("${node.port}")},
		WithTempDir(tmpDir), WithClient(client))
	require.NoError(t, err)

	_, err = sc.CopyTo(context.Background(), &fakeContext{}, scriptcopy.StringContent{Text: "x"}, testNode, nil)
	assert.Equal(t, scriptcopy.ReasonConfiguration, scriptcopy.ReasonOf(err))
	assert.ErrorIs(t, err, datacontext.ErrUnresolved)
	assert.Equal(t, 0, client.calls)
	entries, _ := os.ReadDir(tmpDir)
	assert.Empty(t, entries)
}

func TestCopy_Interrupted(t *testing.T) {
	f := newFixture(t, `exec sleep 5`, "")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := f.copier.CopyTo(ctx, f.ec, scriptcopy.StringContent{Text: "x"}, testNode, nil)
	require.Error(t, err)
	assert.Equal(t, scriptcopy.ReasonInterrupted, scriptcopy.ReasonOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Error(t, ctx.Err(), "caller context stays cancelled")
	assert.Less(t, time.Since(start), 4*time.Second)
	f.assertNoTempFiles(t)
}

func TestCopy_IOFailure(t *testing.T) {
	requireSh(t)
	tmpDir := t.TempDir()

	missing := filepath.Join(t.TempDir(), "missing.sh")
	sc, err := New(&provider.Provider{Name: "p", ScriptFile: missing, ScriptArgs: strPtr("")}, WithTempDir(tmpDir))
	require.NoError(t, err)

	_, err = sc.CopyTo(context.Background(), &fakeContext{}, scriptcopy.StringContent{Text: "x"}, testNode, nil)
	assert.Equal(t, scriptcopy.ReasonIOFailure, scriptcopy.ReasonOf(err), "script cannot start: %v", err)

	_, err = sc.CopyFile(context.Background(), &fakeContext{}, filepath.Join(tmpDir, "no-such-file"), testNode)
	assert.Equal(t, scriptcopy.ReasonIOFailure, scriptcopy.ReasonOf(err), "staging fails: %v", err)

	_, err = sc.CopyTo(context.Background(), &fakeContext{}, nil, testNode, nil)
	assert.Equal(t, scriptcopy.ReasonIOFailure, scriptcopy.ReasonOf(err))

	client := &recordingClient{err: errors.New("pipe broke")}
	sc, err = New(&provider.Provider{Name: "p", ScriptFile: "/bin/true", ScriptArgs: strPtr("")},
		WithTempDir(tmpDir), WithClient(client))
	require.NoError(t, err)
	_, err = sc.CopyTo(context.Background(), &fakeContext{}, scriptcopy.StringContent{Text: "x"}, testNode, nil)
	assert.Equal(t, scriptcopy.ReasonIOFailure, scriptcopy.ReasonOf(err))

	entries, _ := os.ReadDir(tmpDir)
	assert.Empty(t, entries)
}

func TestCopy_FakeClientExitCode(t *testing.T) {
	client := &recordingClient{result: &parser.RawResult{ExitCode: 3, Stdout: "/path\n"}}
	sc, err := New(&provider.Provider{Name: "p", ScriptFile: "/bin/true", ScriptArgs: strPtr("")},
		WithTempDir(t.TempDir()), WithClient(client))
	require.NoError(t, err)

	_, err = sc.CopyTo(context.Background(), &fakeContext{}, scriptcopy.StringContent{Text: "x"}, testNode, nil)
	assert.Equal(t, scriptcopy.ReasonNonZeroResultCode, scriptcopy.ReasonOf(err))
	assert.Equal(t, 1, client.calls)

	client.result = &parser.RawResult{ExitCode: 0, Stdout: "/path\r\nmore"}
	got, err := sc.CopyTo(context.Background(), &fakeContext{}, scriptcopy.StringContent{Text: "x"}, testNode, nil)
	require.NoError(t, err)
	assert.Equal(t, "/path", got)
}

func TestCopy_Interpreter(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	script := filepath.Join(dir, "copy.sh")
	require.NoError(t, os.WriteFile(script, []byte(`echo "/via/$1"`), 0o644))

	tests := []struct {
		name   string
		interp string
		quoted bool
		want   string
	}{
		{"plain", "/bin/sh", false, "/via/web1"},
		// $0 receives the joined "script args" word and is split again by the inner shell
		{"quoted", `sh -c 'exec sh $0'`, true, "/via/web1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &provider.Provider{
				Name:                  "interp",
				ScriptFile:            script,
				ScriptArgs:            strPtr("${node.name}"),
				ScriptInterpreter:     tc.interp,
				InterpreterArgsQuoted: tc.quoted,
			}
			sc, err := New(p, WithTempDir(t.TempDir()))
			require.NoError(t, err)
			got, err := sc.CopyTo(context.Background(), &fakeContext{}, scriptcopy.StringContent{Text: "x"}, testNode, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBuildDataContext(t *testing.T) {
	sc, err := New(&provider.Provider{Name: "p", ScriptFile: "/opt/copy.sh", ScriptArgs: strPtr(""), BaseDir: "/opt"},
		WithTempDir("/tmp/stage"), WithVarDir("/var/p"), WithBaseDir("/srv/base"),
		WithFrameworkData(map[string]string{"server.name": "ctl1"}))
	require.NoError(t, err)

	ec := &fakeContext{
		project: "demo",
		data: datacontext.DataContext{
			"framework": {"tmpdir": "/override"},
			"node":      {"hostname": "spoofed"},
			"job":       {"execid": "42"},
		},
	}
	dc := sc.buildDataContext(ec, testNode)

	assert.Equal(t, map[string]string{
		"base": "/srv/base", "tmpdir": "/override", "project": "demo", "server.name": "ctl1",
	}, dc["framework"])
	assert.Equal(t, "/opt/copy.sh", dc["plugin"]["scriptfile"])
	assert.Equal(t, "copy.sh", dc["plugin"]["file"])
	assert.Equal(t, "/var/p", dc["plugin"]["vardir"])
	assert.Equal(t, "demo", dc["project"]["name"])
	assert.Equal(t, "42", dc["job"]["execid"])
	assert.Equal(t, "10.0.0.1", dc["node"]["hostname"], "node namespace comes from the node itself")
	assert.Equal(t, "web1", dc["node"]["name"])
	_, hasFileCopy := dc["file-copy"]
	assert.False(t, hasFileCopy)
	assert.Equal(t, "spoofed", ec.data["node"]["hostname"], "caller data must not be modified")
}

func TestCopy_Parallel(t *testing.T) {
	f := newFixture(t, `echo "/remote/$1"`, "${node.name}")

	var g errgroup.Group
	results := make([]string, 8)
	for i := range results {
		i := i
		g.Go(func() error {
			node := &scriptcopy.NodeEntry{Name: fmt.Sprintf("n%d", i), Hostname: "h"}
			got, err := f.copier.CopyTo(context.Background(), f.ec, scriptcopy.StringContent{Text: "x"}, node, nil)
			results[i] = got
			return err
		})
	}
	require.NoError(t, g.Wait())
	for i, got := range results {
		assert.Equal(t, fmt.Sprintf("/remote/n%d", i), got)
	}
	f.assertNoTempFiles(t)
}

func TestCopy_NilCollaborators(t *testing.T) {
	sc, err := New(&provider.Provider{Name: "p", ScriptFile: "/bin/true", ScriptArgs: strPtr("")}, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, "p", sc.Name())

	_, err = sc.CopyTo(context.Background(), nil, scriptcopy.StringContent{Text: "x"}, testNode, nil)
	assert.Equal(t, scriptcopy.ReasonConfiguration, scriptcopy.ReasonOf(err))
	_, err = sc.CopyTo(context.Background(), &fakeContext{}, scriptcopy.StringContent{Text: "x"}, nil, nil)
	assert.Equal(t, scriptcopy.ReasonConfiguration, scriptcopy.ReasonOf(err))
}
