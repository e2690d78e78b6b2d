// Copyright © NGRSoftlab 2020-2025

package datacontext

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrUnresolved = errors.New("unresolved data reference")

var (
	// ${namespace.key}
	referencePattern = regexp.MustCompile(`\$\{([^.}\s]+)\.([^}\s]+)\}`)
	// @namespace.key@
	tokenPattern = regexp.MustCompile(`@([^.@\s]+)\.([^@\s]+)@`)
)

// ReplaceDataReferences expands every ${namespace.key} in s.
// A reference that does not resolve yields ErrUnresolved listing all missing names
func ReplaceDataReferences(s string, dc DataContext) (string, error) {
	var missing []string
	out := referencePattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := referencePattern.FindStringSubmatch(m)
		v, ok := dc.Lookup(sub[1], sub[2])
		if !ok {
			missing = append(missing, sub[1]+"."+sub[2])
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrUnresolved, strings.Join(missing, ", "))
	}
	return out, nil
}

// ReplaceTokens expands @namespace.key@ tokens in script content.
// Unknown tokens are replaced with an empty string
func ReplaceTokens(content []byte, dc DataContext) []byte {
	return tokenPattern.ReplaceAllFunc(content, func(m []byte) []byte {
		sub := tokenPattern.FindSubmatch(m)
		v, _ := dc.Lookup(string(sub[1]), string(sub[2]))
		return []byte(v)
	})
}
