// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"reflect"
	"testing"
)

func TestExpandPropertyRefs(t *testing.T) {
	values := map[string]string{"ro.build.type": "user"}

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"resolved", "build=${ro.build.type}", "build=user"},
		{"missing with default", "${sys.missing:-fallback}", "fallback"},
		{"missing without default", "${sys.missing}", ""},
		{"no references", "plain text", "plain text"},
		{"multiple references", "${ro.build.type}-${sys.missing:-x}", "user-x"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ExpandPropertyRefs(c.in, values)
			if got != c.want {
				t.Errorf("ExpandPropertyRefs(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestExtractPropertyNames(t *testing.T) {
	got := ExtractPropertyNames("${a.b} and ${c.d:-default} and plain")
	want := []string{"a.b", "c.d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractPropertyNames = %v, want %v", got, want)
	}
}

func TestExtractPropertyNamesEmpty(t *testing.T) {
	got := ExtractPropertyNames("no references here")
	if len(got) != 0 {
		t.Errorf("ExtractPropertyNames = %v, want empty", got)
	}
}

func TestExpandArgv(t *testing.T) {
	values := map[string]string{"sys.usb.config": "adb"}
	argv := []string{"${sys.usb.config}", "--mode=${sys.usb.config}"}

	got := ExpandArgv(argv, values)
	want := []string{"${sys.usb.config}", "--mode=adb"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandArgv = %v, want %v", got, want)
	}
}

func TestExpandArgvEmpty(t *testing.T) {
	got := ExpandArgv(nil, map[string]string{})
	if got != nil {
		t.Errorf("ExpandArgv(nil) = %v, want nil", got)
	}
}
