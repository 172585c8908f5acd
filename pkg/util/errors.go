// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors
var (
	ErrConfigInvariant  = errors.New("configuration invariant violated")
	ErrValidationFailed = errors.New("validation failed")
	ErrSnapshotSource   = errors.New("snapshot source failed")
	ErrNotFound         = errors.New("resource not found")
)

// ConfigInvariantError reports an inconsistent configuration model handed to
// the analysis, e.g. a VRF that runs a protocol process but owns no interfaces.
// It is fatal to an analysis run unless the caller opts to skip the node.
type ConfigInvariantError struct {
	Hostname string
	VRF      string
	Reason   string
}

func (e *ConfigInvariantError) Error() string {
	switch {
	case e.Hostname != "" && e.VRF != "":
		return fmt.Sprintf("config invariant violated on %s vrf %s: %s", e.Hostname, e.VRF, e.Reason)
	case e.Hostname != "":
		return fmt.Sprintf("config invariant violated on %s: %s", e.Hostname, e.Reason)
	default:
		return "config invariant violated: " + e.Reason
	}
}

func (e *ConfigInvariantError) Unwrap() error {
	return ErrConfigInvariant
}

// NewConfigInvariantError creates a config invariant error
func NewConfigInvariantError(hostname, vrf, reason string) *ConfigInvariantError {
	return &ConfigInvariantError{
		Hostname: hostname,
		VRF:      vrf,
		Reason:   reason,
	}
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// SourceError wraps a failure while collecting a snapshot from a device or file.
type SourceError struct {
	Op     string // "connect", "read", "parse"
	Device string // device name (or "" for file-level errors)
	Err    error
}

func (e *SourceError) Error() string {
	if e.Device != "" {
		return fmt.Sprintf("snapshot: %s %s: %v", e.Op, e.Device, e.Err)
	}
	return fmt.Sprintf("snapshot: %s: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrSnapshotSource, e.Err}
}
