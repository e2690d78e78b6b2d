// Copyright © NGRSoftlab 2020-2025

package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ngrsoftlab/scriptcopy"
	"github.com/ngrsoftlab/scriptcopy/copier"
	"github.com/ngrsoftlab/scriptcopy/datacontext"
	"github.com/ngrsoftlab/scriptcopy/lg"
	"github.com/ngrsoftlab/scriptcopy/provider"
)

type copyFlags struct {
	plugin      string
	provider    string
	nodesFile   string
	nodes       []string
	file        string
	text        string
	destination string
	options     map[string]string
	project     string
}

// copyResult is the outcome for one node
type copyResult struct {
	node string
	path string
	err  error
}

func newCopyCommand(a *app) *cobra.Command {
	f := &copyFlags{}

	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy content to every selected node with a script plugin",
		Long: `Content comes from --file, --text or stdin. Each node gets one run of the
provider script; its remote path is printed as "<node>\t<path>".

Examples:
  scriptcopy copy --plugin ./sftp-plugin --nodes resources.yaml --file app.tar --destination /opt/app/
  echo 'host=@node.hostname@' | scriptcopy copy --plugin ./sftp-plugin --nodes resources.yaml -n web1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := f.content(cmd.InOrStdin())
			if err != nil {
				return err
			}
			var destination *string
			if cmd.Flags().Changed("destination") {
				destination = &f.destination
			}
			return a.runCopy(cmd, f, content, destination)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.plugin, "plugin", "p", "", "plugin directory or plugin.yaml")
	flags.StringVar(&f.provider, "provider", "", "provider name, the first FileCopier by default")
	flags.StringVar(&f.nodesFile, "nodes", "", "resources.yaml node inventory")
	flags.StringSliceVarP(&f.nodes, "node", "n", nil, "copy only to these nodes")
	flags.StringVarP(&f.file, "file", "f", "", "local file to copy")
	flags.StringVarP(&f.text, "text", "t", "", "literal content to copy")
	flags.StringVar(&f.destination, "destination", "", "remote path, a trailing / keeps the staged file name")
	flags.StringToStringVarP(&f.options, "option", "o", nil, "values for the option namespace (key=value)")
	flags.StringVar(&f.project, "project", "", "project name, overrides the config")
	_ = cmd.MarkFlagRequired("plugin")
	_ = cmd.MarkFlagRequired("nodes")
	cmd.MarkFlagsMutuallyExclusive("file", "text")

	return cmd
}

// content picks the copy source. stdin is read once up front since every node needs its own reader
func (f *copyFlags) content(stdin io.Reader) (scriptcopy.Content, error) {
	switch {
	case f.file != "":
		return scriptcopy.FileContent{Path: f.file}, nil
	case f.text != "":
		return scriptcopy.StringContent{Text: f.text}, nil
	}
	raw, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return scriptcopy.StringContent{Text: string(raw)}, nil
}

func (a *app) runCopy(cmd *cobra.Command, f *copyFlags, content scriptcopy.Content, destination *string) error {
	ctx := cmd.Context()
	cfg := a.cfg

	md, err := provider.LoadMetadata(f.plugin)
	if err != nil {
		return err
	}
	p, err := md.Provider(f.provider)
	if err != nil {
		return err
	}

	nodes, err := selectNodes(f.nodesFile, f.nodes)
	if err != nil {
		return err
	}

	project := cfg.Project
	if f.project != "" {
		project = f.project
	}
	execID := uuid.NewString()
	logger := lg.FromContext(ctx).With(lg.String("execid", execID), lg.String("provider", p.Name))

	data := datacontext.New()
	data.Set(datacontext.NamespaceJob, "execid", execID)
	data.Set(datacontext.NamespaceJob, "project", project)
	if len(f.options) > 0 {
		data.Put(datacontext.NamespaceOption, f.options)
	}
	ec := &scriptcopy.BasicContext{ProjectName: project, Data: data, Listener: lg.NewListener(logger)}

	baseDir := cfg.BaseDir
	if baseDir == "" {
		baseDir = md.Dir()
	}
	sc, err := copier.New(p,
		copier.WithTempDir(cfg.TempDir),
		copier.WithVarDir(cfg.VarDir),
		copier.WithBaseDir(baseDir),
		copier.WithEnvPrefix(cfg.EnvPrefix),
		copier.WithStderr(cmd.ErrOrStderr()),
		copier.WithFrameworkData(cfg.Framework),
	)
	if err != nil {
		return err
	}

	logger.Info("copy started", lg.Int("nodes", len(nodes)), lg.Int("parallelism", cfg.Parallelism))
	start := time.Now()

	results := make([]copyResult, len(nodes))
	var g errgroup.Group
	g.SetLimit(cfg.Parallelism)
	for i, node := range nodes {
		i, node := i, node
		g.Go(func() error {
			path, err := sc.CopyTo(ctx, ec, content, node, destination)
			results[i] = copyResult{node: node.Nodename(), path: path, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.err != nil {
			logger.Error("copy failed", lg.String("node", r.node), lg.String("reason", string(scriptcopy.ReasonOf(r.err))), lg.Err(r.err))
			errs = append(errs, fmt.Errorf("%s: %w", r.node, r.err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r.node, r.path)
	}
	logger.Info("copy finished", lg.Int("failed", len(errs)), lg.Duration("took", time.Since(start)))

	return errors.Join(errs...)
}

// selectNodes loads the inventory and keeps the named nodes, all of them when names is empty
func selectNodes(path string, names []string) ([]*scriptcopy.NodeEntry, error) {
	all, err := scriptcopy.LoadNodes(path)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return all, nil
	}

	selected := make([]*scriptcopy.NodeEntry, 0, len(names))
	for _, n := range all {
		if slices.Contains(names, n.Name) {
			selected = append(selected, n)
		}
	}
	for _, name := range names {
		if !slices.ContainsFunc(selected, func(n *scriptcopy.NodeEntry) bool { return n.Name == name }) {
			return nil, fmt.Errorf("node %q not found in %s", name, path)
		}
	}
	return selected, nil
}
