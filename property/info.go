// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package property

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/coreinit/coreinit/lib/atomicfile"
	"github.com/coreinit/coreinit/lib/codec"
)

// Info is a single PropertyInfo trie entry: the security context and
// value type associated with a name pattern.
type Info struct {
	Pattern string `yaml:"name" cbor:"pattern"`
	Context string `yaml:"context" cbor:"context"`
	Type    string `yaml:"type" cbor:"type"`
}

// InfoTrie is an ordered radix-ish structure mapping name patterns
// (exact, or "prefix.*") to (context, type). It is kept as a sorted slice
// rather than a literal trie node graph — with at most a few thousand
// entries, linear longest-prefix-match scanning is simpler than a node
// graph and is not the system's bottleneck; what matters for §4.4's
// contract is that lookup returns the most specific matching pattern,
// which sorting by descending pattern length gives directly.
type InfoTrie struct {
	entries []Info
}

// NewInfoTrie creates an empty trie.
func NewInfoTrie() *InfoTrie {
	return &InfoTrie{}
}

// Load replaces the trie's contents, sorting so longest (most specific)
// patterns are matched first.
func (t *InfoTrie) Load(entries []Info) {
	sorted := make([]Info, len(entries))
	copy(sorted, entries)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && len(sorted[j].Pattern) > len(sorted[j-1].Pattern); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	t.entries = sorted
}

// Lookup returns the (context, type) for the most specific pattern
// matching name.
func (t *InfoTrie) Lookup(name string) (Info, bool) {
	for _, e := range t.entries {
		if matchesPattern(e.Pattern, name) {
			return e, true
		}
	}
	return Info{}, false
}

// TypeFor is a convenience wrapper returning just the type.
func (t *InfoTrie) TypeFor(name string) (string, bool) {
	info, ok := t.Lookup(name)
	if !ok {
		return "", false
	}
	return info.Type, true
}

func matchesPattern(pattern, name string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(name, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == name
}

// LoadContextsFile parses one YAML property-contexts file: a list of
// entries shaped like the original's "name[*] context type" lines, just
// in a typed format instead of a bespoke line grammar (see SPEC_FULL.md
// §4.4).
func LoadContextsFile(path string) ([]Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("property: read %s: %w", path, err)
	}
	var doc struct {
		Properties []Info `yaml:"properties"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("property: parse %s: %w", path, err)
	}
	return doc.Properties, nil
}

// Publish serializes the trie with CBOR and atomically writes it to path
// alongside a blake3 hash recorded next to it, so a reader can detect a
// torn write. This stands in for the original's SELinux-context
// restoration on the published file, which this implementation does not
// perform — see DESIGN.md.
func Publish(t *InfoTrie, path string) error {
	data, err := codec.Marshal(t.entries)
	if err != nil {
		return fmt.Errorf("property: encode trie: %w", err)
	}
	if err := atomicfile.Write(path, data, 0644); err != nil {
		return err
	}
	sum := blake3.Sum256(data)
	return atomicfile.Write(path+".blake3", []byte(fmt.Sprintf("%x\n", sum)), 0644)
}

// LoadPublished reads back a trie published by Publish, verifying the
// blake3 hash before decoding.
func LoadPublished(path string) (*InfoTrie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if sumData, err := os.ReadFile(path + ".blake3"); err == nil {
		want := strings.TrimSpace(string(sumData))
		got := fmt.Sprintf("%x", blake3.Sum256(data))
		if want != got {
			return nil, fmt.Errorf("property: %s failed integrity check (torn write)", path)
		}
	}
	var entries []Info
	if err := codec.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("property: decode trie: %w", err)
	}
	t := NewInfoTrie()
	t.Load(entries)
	return t, nil
}

// validateType checks value against a symbolic type name: string, int,
// bool, enum:a|b|c, or anything unrecognized is treated as string (the
// original's default when property_contexts omits a type).
func validateType(typ, value string) bool {
	switch {
	case typ == "" || typ == "string":
		return true
	case typ == "int":
		_, err := strconv.ParseInt(value, 10, 64)
		return err == nil
	case typ == "uint":
		_, err := strconv.ParseUint(value, 10, 64)
		return err == nil
	case typ == "bool":
		switch value {
		case "0", "1", "true", "false", "yes", "no":
			return true
		}
		return false
	case strings.HasPrefix(typ, "enum:"):
		options := strings.Split(strings.TrimPrefix(typ, "enum:"), "|")
		for _, o := range options {
			if o == value {
				return true
			}
		}
		return false
	default:
		return true
	}
}
