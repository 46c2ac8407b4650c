// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package errs defines the sentinel error values that the supervisor
// package wraps its Start errors in. Idiomatic Go has no exception
// hierarchy; these are plain errors.New values, compared with errors.Is
// after being wrapped with fmt.Errorf("...: %w", err).
package errs

import "errors"

var (
	ErrIO               = errors.New("io error")
	ErrSelinux          = errors.New("selinux error")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrPermissionDenied = errors.New("permission denied")
	ErrTimeout          = errors.New("timeout")
	ErrOverflow         = errors.New("overflow")
	ErrInvalidArgument  = errors.New("invalid argument")
)
