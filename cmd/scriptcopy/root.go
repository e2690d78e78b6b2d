// Copyright © NGRSoftlab 2020-2025

package main

import (
	"github.com/spf13/cobra"

	"github.com/ngrsoftlab/scriptcopy/lg"
)

// app is shared by subcommands once the root has loaded the config
type app struct {
	cfg    *config
	logger lg.Logger
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		debug      bool
	)
	a := &app{}

	cmd := &cobra.Command{
		Use:          "scriptcopy",
		Short:        "scriptcopy - copy files to nodes through script plugins",
		SilenceUsage: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if debug {
				cfg.Log.Debug = true
			}
			a.cfg = cfg
			a.logger = lg.Must(&cfg.Log)
			c.SetContext(lg.Attach(c.Context(), a.logger))
			return nil
		},
		PersistentPostRun: func(c *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to scriptcopy.yaml")
	cmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "log verbose script plugin messages")

	cmd.AddCommand(newCopyCommand(a))
	return cmd
}
