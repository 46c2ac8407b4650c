// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"strconv"
)

// ValidationResult holds the result of a single validation check.
type ValidationResult struct {
	Name    string
	Passed  bool
	Message string
	Warning bool
}

// Validator performs pre-flight checks on a Spec: argv[0] exists, is not
// a directory and is executable; a requested uid without a passwd entry
// is a warning (gid is not checked); and an explicit security label is at
// most 4096 bytes long. It mirrors the teacher's validate-then-
// report shape (pass/warn/fail accumulation, PrintResults) applied to a
// credential Spec instead of a bwrap profile.
type Validator struct {
	results []ValidationResult
	errors  int
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Results returns all validation results recorded so far.
func (v *Validator) Results() []ValidationResult { return v.results }

// HasErrors reports whether any validation failed.
func (v *Validator) HasErrors() bool { return v.errors > 0 }

func (v *Validator) pass(name, message string) {
	v.results = append(v.results, ValidationResult{Name: name, Passed: true, Message: message})
}

func (v *Validator) warn(name, message string) {
	v.results = append(v.results, ValidationResult{Name: name, Passed: true, Message: message, Warning: true})
}

func (v *Validator) fail(name, message string) {
	v.results = append(v.results, ValidationResult{Name: name, Passed: false, Message: message})
	v.errors++
}

// ValidateSpec runs every pre-flight check for spec and records the
// results on v; HasErrors then reports whether the spec is fit to fork.
// It changes no Service state itself.
func (v *Validator) ValidateSpec(spec *Spec) {
	v.validateArgv(spec)
	v.validateCredentials(spec)
	v.validateLabel(spec)
}

func (v *Validator) validateArgv(spec *Spec) {
	if len(spec.Argv) == 0 {
		v.fail("argv", "argv is empty")
		return
	}
	info, err := os.Stat(spec.Argv[0])
	if err != nil {
		v.fail("argv", fmt.Sprintf("cannot stat %s: %v", spec.Argv[0], err))
		return
	}
	if info.IsDir() {
		v.fail("argv", fmt.Sprintf("%s is a directory", spec.Argv[0]))
		return
	}
	if info.Mode()&0111 == 0 {
		v.fail("argv", fmt.Sprintf("%s is not executable", spec.Argv[0]))
		return
	}
	v.pass("argv", fmt.Sprintf("found: %s", spec.Argv[0]))
}

func (v *Validator) validateCredentials(spec *Spec) {
	if !spec.HasUID {
		v.pass("credentials", "no uid transition requested")
		return
	}
	if _, err := user.LookupId(strconv.Itoa(spec.UID)); err != nil {
		v.warn("credentials", fmt.Sprintf("uid %d has no passwd entry: %v", spec.UID, err))
	} else {
		v.pass("credentials", fmt.Sprintf("uid %d resolves", spec.UID))
	}
}

func (v *Validator) validateLabel(spec *Spec) {
	if spec.SecurityLabel == "" {
		v.pass("label", "no explicit label; will derive from executable")
		return
	}
	if len(spec.SecurityLabel) > 4096 {
		v.fail("label", "security label exceeds 4096 bytes")
		return
	}
	v.pass("label", fmt.Sprintf("explicit label: %s", spec.SecurityLabel))
}

// PrintResults writes validation results to w in the teacher's
// pass/warn/fail report format.
func (v *Validator) PrintResults(w io.Writer) {
	for _, r := range v.results {
		prefix := "✓"
		if !r.Passed {
			prefix = "✗"
		} else if r.Warning {
			prefix = "⚠"
		}
		fmt.Fprintf(w, "%s %s: %s\n", prefix, r.Name, r.Message)
	}
	fmt.Fprintln(w)
	if v.HasErrors() {
		fmt.Fprintf(w, "validation failed with %d error(s)\n", v.errors)
	} else {
		fmt.Fprintln(w, "spec ready to start")
	}
}
