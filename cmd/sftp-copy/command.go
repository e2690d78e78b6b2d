// Copyright © NGRSoftlab 2020-2025

package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ngrsoftlab/scriptcopy"
	"github.com/ngrsoftlab/scriptcopy/datacontext"
	"github.com/ngrsoftlab/scriptcopy/lg"
	"github.com/ngrsoftlab/scriptcopy/ssh"
)

type options struct {
	envPrefix   string
	port        int
	identity    string
	passwordEnv string
	knownHosts  string
	useAgent    bool
	mode        string
	timeout     time.Duration
	debug       bool
}

// target is what to upload and where
type target struct {
	localPath   string
	destination string
	host        string
	user        string
	port        int
}

func newCommand(getenv func(string) string) *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:   "sftp-copy [file [destination]]",
		Short: "Upload a staged file to a node over sftp",
		Long: `Arguments default to the variables set by scriptcopy:
FILE_COPY_FILE, FILE_COPY_DESTINATION, NODE_HOSTNAME, NODE_USERNAME and NODE_SSH_PORT.

plugin.yaml example:
  script-file: sftp-copy
  script-args: ${file-copy.file} "${file-copy.destination}"`,
		Args:         cobra.MaximumNArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := lg.Must(&lg.Config{ServiceName: "sftp-copy", Debug: o.debug, Format: "console"})
			defer logger.Sync()

			t, err := resolveTarget(getenv, o, args)
			if err != nil {
				return err
			}
			mode, err := strconv.ParseUint(o.mode, 8, 32)
			if err != nil {
				return fmt.Errorf("invalid mode %q: %w", o.mode, err)
			}

			cfg, err := o.sshConfig(getenv, t)
			if err != nil {
				return err
			}

			remote := ssh.RemotePath(t.destination, t.localPath)
			logger.Debug("uploading",
				lg.String("file", t.localPath),
				lg.String("host", cfg.Addr()),
				lg.String("remote", remote),
			)

			client, err := ssh.Dial(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			start := time.Now()
			path, err := ssh.NewSFTPTransfer(client).Upload(cmd.Context(), scriptcopy.FileContent{Path: t.localPath}, remote, os.FileMode(mode))
			if err != nil {
				logger.Error("upload failed", lg.String("remote", remote), lg.Err(err))
				return err
			}
			logger.Debug("uploaded", lg.String("remote", path), lg.Duration("took", time.Since(start)))

			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&o.envPrefix, "env-prefix", "", "prefix of the variables set by scriptcopy, e.g. RD_")
	flags.IntVar(&o.port, "port", 0, "ssh port, NODE_SSH_PORT or 22 by default")
	flags.StringVarP(&o.identity, "identity", "i", "", "private key file")
	flags.StringVar(&o.passwordEnv, "password-env", "", "variable holding the ssh password")
	flags.StringVar(&o.knownHosts, "known-hosts", "", "known_hosts file, host keys are not checked without it")
	flags.BoolVar(&o.useAgent, "agent", false, "authenticate with the ssh agent")
	flags.StringVar(&o.mode, "mode", "0644", "octal mode of the uploaded file")
	flags.DurationVar(&o.timeout, "timeout", 30*time.Second, "dial timeout")
	flags.BoolVarP(&o.debug, "debug", "d", false, "log progress to stderr")

	return cmd
}

// resolveTarget merges positional args with the copier environment
func resolveTarget(getenv func(string) string, o *options, args []string) (*target, error) {
	env := func(ns, key string) string {
		return getenv(datacontext.EnvVarName(o.envPrefix, ns, key))
	}

	t := &target{
		localPath:   env(datacontext.NamespaceFileCopy, "file"),
		destination: env(datacontext.NamespaceFileCopy, "destination"),
		host:        env(datacontext.NamespaceNode, "hostname"),
		user:        env(datacontext.NamespaceNode, "username"),
		port:        o.port,
	}
	if len(args) > 0 {
		t.localPath = args[0]
	}
	if len(args) > 1 {
		t.destination = args[1]
	}
	if t.port == 0 {
		if p := env(datacontext.NamespaceNode, "ssh-port"); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("invalid ssh port %q: %w", p, err)
			}
			t.port = port
		}
	}

	if t.localPath == "" {
		return nil, fmt.Errorf("no file to copy: pass one or set %s", datacontext.EnvVarName(o.envPrefix, datacontext.NamespaceFileCopy, "file"))
	}
	if t.host == "" {
		return nil, fmt.Errorf("no target host: set %s", datacontext.EnvVarName(o.envPrefix, datacontext.NamespaceNode, "hostname"))
	}
	if t.user == "" {
		t.user = getenv("USER")
	}
	return t, nil
}

func (o *options) sshConfig(getenv func(string) string, t *target) (*ssh.Config, error) {
	opts := []ssh.ConfigOption{ssh.WithTimeout(o.timeout), ssh.WithRetry(1, time.Second), ssh.WithMaxSessions(1)}
	if o.useAgent {
		opts = append(opts, ssh.WithAgentAuth())
	}
	if o.identity != "" {
		opts = append(opts, ssh.WithPrivateKeyPathAuth(o.identity, ""))
	}
	if o.passwordEnv != "" {
		opts = append(opts, ssh.WithPasswordAuth(getenv(o.passwordEnv)))
	}
	if o.knownHosts != "" {
		opts = append(opts, ssh.WithKnownHosts(o.knownHosts))
	}
	return ssh.NewConfig(t.user, t.host, t.port, opts...)
}
