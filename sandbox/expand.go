// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "regexp"

// refPattern matches ${name} and ${name:-default} property references.
// Grounded on lib/config's expandVars pattern, adapted to resolve against
// a property snapshot instead of a static variable map and os.Getenv.
var refPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// ExpandPropertyRefs expands ${name} / ${name:-default} references in s
// against a resolved snapshot of property values. An unresolved reference
// with no default expands to the empty string, matching the convention
// that a missing property behaves as if it were set to "".
func ExpandPropertyRefs(s string, values map[string]string) string {
	return refPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := refPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := values[name]; ok {
			return value
		}
		return defaultValue
	})
}

// ExtractPropertyNames returns the property names referenced by ${name}
// or ${name:-default} expressions in s, so a caller can resolve and
// snapshot them before expansion happens in the child.
func ExtractPropertyNames(s string) []string {
	matches := refPattern.FindAllStringSubmatch(s, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// ExpandArgv expands property references in every argv element past
// argv[0]; argv[0] is never expanded, per step 9 of the credential
// applier's order.
func ExpandArgv(argv []string, values map[string]string) []string {
	if len(argv) == 0 {
		return argv
	}
	result := make([]string, len(argv))
	result[0] = argv[0]
	for i := 1; i < len(argv); i++ {
		result[i] = ExpandPropertyRefs(argv[i], values)
	}
	return result
}
