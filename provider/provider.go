// Copyright © NGRSoftlab 2020-2025

package provider

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	ServiceFileCopier = "FileCopier"
	PluginTypeScript  = "script"
	metadataFile      = "plugin.yaml"
	contentsDir       = "contents"
)

var (
	ErrMissingScriptArgs = errors.New("no script-args defined for provider")
	ErrProviderNotFound  = errors.New("provider not found")
)

var validate = validator.New()

// Metadata is the content of a plugin.yaml file
type Metadata struct {
	Name      string      `yaml:"name" validate:"required"`
	Version   string      `yaml:"version"`
	Providers []*Provider `yaml:"providers" validate:"required,min=1,dive"`

	dir string
}

// Provider describes one script based copy strategy
type Provider struct {
	Name                  string  `yaml:"name" validate:"required"`
	Service               string  `yaml:"service"`
	PluginType            string  `yaml:"plugin-type" validate:"omitempty,eq=script"`
	ScriptFile            string  `yaml:"script-file" validate:"required"`
	ScriptArgs            *string `yaml:"script-args"`
	ScriptInterpreter     string  `yaml:"script-interpreter"`
	InterpreterArgsQuoted bool    `yaml:"interpreter-args-quoted"`

	BaseDir string `yaml:"-"` // directory script-file is resolved against
}

// Validate checks the declared metadata. A nil ScriptArgs yields ErrMissingScriptArgs;
// an empty string is a valid template with no arguments
func (p *Provider) Validate() error {
	if p == nil {
		return fmt.Errorf("provider is nil")
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid provider %q: %w", p.Name, err)
	}
	if p.Service != "" && p.Service != ServiceFileCopier {
		return fmt.Errorf("provider %q implements %s, not %s", p.Name, p.Service, ServiceFileCopier)
	}
	if p.ScriptArgs == nil {
		return fmt.Errorf("%w: %s", ErrMissingScriptArgs, p.Name)
	}
	return nil
}

// ScriptPath returns the absolute path of the script
func (p *Provider) ScriptPath() (string, error) {
	if filepath.IsAbs(p.ScriptFile) {
		return p.ScriptFile, nil
	}
	return filepath.Abs(filepath.Join(p.BaseDir, p.ScriptFile))
}

// Args returns the argument template, empty when undefined
func (p *Provider) Args() string {
	if p.ScriptArgs == nil {
		return ""
	}
	return *p.ScriptArgs
}

func (p *Provider) String() string {
	return p.Name
}

// LoadMetadata reads plugin.yaml from dir, or the file itself when path is a file.
// Scripts are resolved against dir/contents when it exists, dir otherwise
func LoadMetadata(path string) (*Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat plugin path: %w", err)
	}
	file := path
	if info.IsDir() {
		file = filepath.Join(path, metadataFile)
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read plugin metadata %s: %w", file, err)
	}

	md, err := ParseMetadata(raw)
	if err != nil {
		return nil, fmt.Errorf("plugin metadata %s: %w", file, err)
	}

	md.dir = filepath.Dir(file)
	base := md.dir
	if fi, err := os.Stat(filepath.Join(md.dir, contentsDir)); err == nil && fi.IsDir() {
		base = filepath.Join(md.dir, contentsDir)
	}
	for _, p := range md.Providers {
		p.BaseDir = base
	}
	return md, nil
}

// ParseMetadata decodes and validates plugin.yaml content.
// Providers missing script-args are kept; Validate reports them when used
func ParseMetadata(raw []byte) (*Metadata, error) {
	md := &Metadata{}
	if err := yaml.Unmarshal(raw, md); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := validate.Struct(md); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	return md, nil
}

// Dir returns the directory plugin.yaml was loaded from
func (m *Metadata) Dir() string {
	return m.dir
}

// Provider looks up a FileCopier provider by name. An empty name selects the first one
func (m *Metadata) Provider(name string) (*Provider, error) {
	for _, p := range m.Providers {
		if p.Service != "" && p.Service != ServiceFileCopier {
			continue
		}
		if name == "" || p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q in plugin %q", ErrProviderNotFound, name, m.Name)
}
