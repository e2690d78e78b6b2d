// Copyright © NGRSoftlab 2020-2025

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ngrsoftlab/scriptcopy/lg"
)

const defaultParallelism = 4

// config is the content of scriptcopy.yaml
type config struct {
	Project     string            `yaml:"project"`
	TempDir     string            `yaml:"tmpdir" validate:"omitempty,dir"`
	VarDir      string            `yaml:"vardir"`
	BaseDir     string            `yaml:"basedir"`
	EnvPrefix   string            `yaml:"env-prefix" validate:"omitempty,printascii"`
	Parallelism int               `yaml:"parallelism" validate:"gte=0,lte=64"`
	Framework   map[string]string `yaml:"framework"`
	Log         lg.Config         `yaml:"log"`
}

func defaultConfig() *config {
	return &config{
		Parallelism: defaultParallelism,
		Log:         lg.Config{ServiceName: "scriptcopy", Format: "console"},
	}
}

// loadConfig reads path over the defaults. A missing path yields the defaults
func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Parallelism == 0 {
		cfg.Parallelism = defaultParallelism
	}
	return cfg, nil
}

func (c *config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: field %s failed on %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if strings.ContainsAny(c.EnvPrefix, "= \t") {
		return fmt.Errorf("invalid config: env-prefix %q cannot hold '=' or blanks", c.EnvPrefix)
	}
	return nil
}
