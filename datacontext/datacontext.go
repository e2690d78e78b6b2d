// Copyright © NGRSoftlab 2020-2025

package datacontext

import (
	"sort"
	"strings"
)

// Well-known namespaces
const (
	NamespaceNode      = "node"
	NamespaceFileCopy  = "file-copy"
	NamespacePlugin    = "plugin"
	NamespaceFramework = "framework"
	NamespaceProject   = "project"
	NamespaceJob       = "job"
	NamespaceOption    = "option"
)

// DataContext maps a namespace to its variables
type DataContext map[string]map[string]string

// New returns an empty DataContext
func New() DataContext {
	return make(DataContext)
}

// Put replaces the whole namespace ns with a copy of values
func (dc DataContext) Put(ns string, values map[string]string) {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	dc[ns] = cp
}

// Set assigns a single variable, creating the namespace if needed
func (dc DataContext) Set(ns, key, value string) {
	m, ok := dc[ns]
	if !ok {
		m = make(map[string]string)
		dc[ns] = m
	}
	m[key] = value
}

// Lookup resolves ns.key
func (dc DataContext) Lookup(ns, key string) (string, bool) {
	m, ok := dc[ns]
	if !ok {
		return "", false
	}
	v, ok := m[key]
	return v, ok
}

// Copy returns a deep copy
func (dc DataContext) Copy() DataContext {
	out := make(DataContext, len(dc))
	for ns, m := range dc {
		out.Put(ns, m)
	}
	return out
}

// Merge combines contexts key by key. Sources later in the list win.
// Inputs are never modified.
func Merge(sources ...DataContext) DataContext {
	out := New()
	for _, src := range sources {
		for ns, m := range src {
			for k, v := range m {
				out.Set(ns, k, v)
			}
		}
	}
	return out
}

// NodeData builds the node namespace from a node name and its attributes.
// The name always wins over a "nodename" attribute
func NodeData(nodename string, attributes map[string]string) map[string]string {
	data := make(map[string]string, len(attributes)+2)
	for k, v := range attributes {
		data[k] = v
	}
	data["name"] = nodename
	data["nodename"] = nodename
	return data
}

// Flatten joins namespace and key with a dot: {"node": {"hostname": "h"}} -> {"node.hostname": "h"}
func Flatten(dc DataContext) map[string]string {
	out := make(map[string]string)
	for ns, m := range dc {
		for k, v := range m {
			out[ns+"."+k] = v
		}
	}
	return out
}

// EnvVarName turns ns and key into an environment variable name, e.g. file-copy/file -> FILE_COPY_FILE
func EnvVarName(prefix, ns, key string) string {
	return prefix + envSafe(ns) + "_" + envSafe(key)
}

// EnvVars renders one environment variable per flattened entry
func EnvVars(dc DataContext, prefix string) map[string]string {
	env := make(map[string]string)
	for ns, m := range dc {
		for k, v := range m {
			env[EnvVarName(prefix, ns, k)] = v
		}
	}
	return env
}

// Keys returns the flattened keys in sorted order
func (dc DataContext) Keys() []string {
	flat := Flatten(dc)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func envSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
}
