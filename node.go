// Copyright © NGRSoftlab 2020-2025

package scriptcopy

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Node is the copy target
type Node interface {
	Nodename() string
	// Data returns the node attributes exposed in the "node" namespace
	Data() map[string]string
}

// NodeEntry is a node as described in a resources.yaml inventory
type NodeEntry struct {
	Name        string            `yaml:"nodename"`
	Hostname    string            `yaml:"hostname"`
	Username    string            `yaml:"username"`
	Description string            `yaml:"description"`
	OSFamily    string            `yaml:"osFamily"`
	Tags        []string          `yaml:"tags"`
	Attributes  map[string]string `yaml:"attributes"`
}

// interface guard
var _ Node = (*NodeEntry)(nil)

func (n *NodeEntry) Nodename() string {
	return n.Name
}

// Data merges the well-known fields over Attributes
func (n *NodeEntry) Data() map[string]string {
	data := make(map[string]string, len(n.Attributes)+6)
	for k, v := range n.Attributes {
		data[k] = v
	}
	set := func(k, v string) {
		if v != "" {
			data[k] = v
		}
	}
	set("hostname", n.Hostname)
	set("username", n.Username)
	set("description", n.Description)
	set("os-family", n.OSFamily)
	if len(n.Tags) > 0 {
		data["tags"] = strings.Join(n.Tags, ",")
	}
	return data
}

// LoadNodes reads a resources.yaml file keyed by node name.
// Nodes are returned sorted by name
func LoadNodes(path string) ([]*NodeEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read nodes file %s: %w", path, err)
	}
	return ParseNodes(raw)
}

// ParseNodes decodes resources.yaml content
func ParseNodes(raw []byte) ([]*NodeEntry, error) {
	byName := make(map[string]*NodeEntry)
	if err := yaml.Unmarshal(raw, &byName); err != nil {
		return nil, fmt.Errorf("parse nodes: %w", err)
	}

	nodes := make([]*NodeEntry, 0, len(byName))
	for name, n := range byName {
		if n == nil {
			n = &NodeEntry{}
		}
		if n.Name == "" {
			n.Name = name
		}
		if n.Hostname == "" {
			n.Hostname = n.Name
		}
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}
