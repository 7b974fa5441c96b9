// Package errors provides custom error types for the staffmap system.
// These errors enable programmatic error checking across the reconciliation
// pipeline and separate fatal configuration defects from degraded data conditions.
//
// Only rule and configuration errors are fatal. Missing ledgers degrade a run to
// zero totals, and numeric inconsistencies are reported as violations, never thrown.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the staffmap system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingSource indicates that a ledger source is absent or empty
	ErrMissingSource = errors.New("missing source")

	// ErrInvalidRule indicates a malformed mapping rule
	ErrInvalidRule = errors.New("invalid mapping rule")

	// ErrInvalidConfig indicates a malformed engine or suite configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// MissingSourceError describes a ledger that could not be read or held no rows.
// It is recovered locally: the ledger degrades to an empty map.
type MissingSourceError struct {
	Provenance string // "supply" or "demand"
	Source     string
	Err        error
}

// Error implements the error interface
func (e *MissingSourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s ledger %s unavailable: %v", e.Provenance, e.Source, e.Err)
	}
	return fmt.Sprintf("%s ledger %s is empty", e.Provenance, e.Source)
}

// Unwrap implements errors.Unwrap
func (e *MissingSourceError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *MissingSourceError) Is(target error) bool {
	return target == ErrMissingSource
}

// NewMissingSourceError creates a new MissingSourceError
func NewMissingSourceError(provenance, source string, err error) *MissingSourceError {
	return &MissingSourceError{Provenance: provenance, Source: source, Err: err}
}

// RuleError represents a malformed mapping rule detected at registry load time
type RuleError struct {
	RuleID  string
	Index   int // position in the rule file, 0-based
	Field   string
	Message string
}

// Error implements the error interface
func (e *RuleError) Error() string {
	id := e.RuleID
	if id == "" {
		id = fmt.Sprintf("#%d", e.Index)
	}
	if e.Field != "" {
		return fmt.Sprintf("mapping rule %s: %s: %s", id, e.Field, e.Message)
	}
	return fmt.Sprintf("mapping rule %s: %s", id, e.Message)
}

// Is implements errors.Is support
func (e *RuleError) Is(target error) bool {
	return target == ErrInvalidRule || target == ErrInvalidConfig
}

// NewRuleError creates a new RuleError
func NewRuleError(ruleID string, index int, field, message string) *RuleError {
	return &RuleError{RuleID: ruleID, Index: index, Field: field, Message: message}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsMissingSource checks if an error means a ledger source is absent
func IsMissingSource(err error) bool {
	return errors.Is(err, ErrMissingSource)
}

// IsInvalidRule checks if an error is a malformed mapping rule
func IsInvalidRule(err error) bool {
	return errors.Is(err, ErrInvalidRule)
}

// IsConfigError checks if an error is fatal configuration, rules included
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml", "toml", etc.
	File    string
	Line    int
	Column  int
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("parse error in %s at %s:%d:%d: %s", e.Format, e.File, e.Line, e.Column, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "open", "query"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// ResourceError represents an error during resource operations
type ResourceError struct {
	Operation string // "load", "save", "create", "fetch"
	Resource  string // "registry", "report", "ledger", "history"
	ID        string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %s", e.Operation, e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Resource, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError
func NewResourceError(operation, resource, id string, err error) *ResourceError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ResourceError{
		Operation: operation,
		Resource:  resource,
		ID:        id,
		Message:   message,
		Err:       err,
	}
}

// Helper wrapping functions for common patterns

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapResource wraps an error as a ResourceError
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewResourceError(operation, resource, id, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}
