package core

import (
	"errors"
	"fmt"
)

// ExecutionError represents a structured error with category and details.
// It is the shape errors take when they leave the engine.
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: unknown_criterion, stale_element, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// Selector errors
	ErrUnknownCriterion = &ExecutionError{
		Category: ErrCategorySelector,
		Code:     "unknown_criterion",
		Message:  "unknown selector key",
	}
	ErrCriterionType = &ExecutionError{
		Category: ErrCategorySelector,
		Code:     "criterion_type",
		Message:  "selector value has the wrong type",
	}
	ErrPatternCompile = &ExecutionError{
		Category: ErrCategorySelector,
		Code:     "pattern_compile",
		Message:  "invalid regular expression",
	}
	ErrUnsupportedIndex = &ExecutionError{
		Category: ErrCategorySelector,
		Code:     "unsupported_index",
		Message:  "index is only supported under a child relation",
	}
	ErrDuplicateCriterion = &ExecutionError{
		Category: ErrCategorySelector,
		Code:     "duplicate_criterion",
		Message:  "selector attribute defined more than once",
	}

	ErrInvalidWatcher = &ExecutionError{
		Category: ErrCategorySelector,
		Code:     "invalid_watcher",
		Message:  "invalid watcher registration",
	}

	// Tree errors
	ErrStaleElement = &ExecutionError{
		Category: ErrCategoryStale,
		Code:     "stale_element",
		Message:  "UI has been updated since the element was retrieved",
	}
	ErrNoMatch = &ExecutionError{
		Category: ErrCategoryNotFound,
		Code:     "no_match",
		Message:  "no element matches the selector",
	}

	// Timeout errors
	ErrTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "timeout",
		Message:  "operation timed out",
	}

	// Connection errors
	ErrServerUnreachable = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "server_unreachable",
		Message:  "could not connect to automation server",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrMissingRequired = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "missing_required",
		Message:  "missing required field",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// UnknownCriterionError reports a selector key that is neither a criterion,
// a relation nor "index".
type UnknownCriterionError struct {
	Key string
}

func (e *UnknownCriterionError) Error() string {
	return fmt.Sprintf("no such key <%s> in selector", e.Key)
}

// CriterionTypeError reports a value whose shape does not fit the key.
type CriterionTypeError struct {
	Key   string
	Want  string
	Value interface{}
}

func (e *CriterionTypeError) Error() string {
	return fmt.Sprintf("selector key <%s> wants %s, got %T(%v)", e.Key, e.Want, e.Value, e.Value)
}

// PatternCompileError reports a regex criterion that does not compile.
type PatternCompileError struct {
	Key     string
	Pattern string
	Err     error
}

func (e *PatternCompileError) Error() string {
	return fmt.Sprintf("selector key <%s>: invalid pattern %q: %v", e.Key, e.Pattern, e.Err)
}

func (e *PatternCompileError) Unwrap() error {
	return e.Err
}

// UnsupportedIndexError reports "index" used outside a child relation.
type UnsupportedIndexError struct {
	Relation string
}

func (e *UnsupportedIndexError) Error() string {
	return fmt.Sprintf("index is not supported under relation <%s>", e.Relation)
}

// DuplicateCriterionError reports two keys that set the same attribute,
// e.g. "text" and "textContains".
type DuplicateCriterionError struct {
	Key       string
	Attribute string
}

func (e *DuplicateCriterionError) Error() string {
	return fmt.Sprintf("selector key <%s>: attribute %s already defined", e.Key, e.Attribute)
}

// StaleElementError reports a read on a node that changed after it was
// acquired.
type StaleElementError struct {
	Reason string
}

func (e *StaleElementError) Error() string {
	if e.Reason == "" {
		return "stale element"
	}
	return "stale element: " + e.Reason
}

// NoMatchError is returned instead of an empty result when raise-on-not-found
// is enabled. Query is the reconstructed selector.
type NoMatchError struct {
	Query string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no element matches selector %s", e.Query)
}

// IsStale reports whether err is, or wraps, a StaleElementError.
func IsStale(err error) bool {
	var stale *StaleElementError
	return errors.As(err, &stale)
}

// ToExecutionError converts engine errors into a coded ExecutionError for
// callers across the transport boundary. Errors the engine does not know
// get code "internal".
func ToExecutionError(err error) *ExecutionError {
	if err == nil {
		return nil
	}

	var (
		execErr   *ExecutionError
		unknown   *UnknownCriterionError
		typeErr   *CriterionTypeError
		pattern   *PatternCompileError
		index     *UnsupportedIndexError
		duplicate *DuplicateCriterionError
		stale     *StaleElementError
		noMatch   *NoMatchError
	)

	switch {
	case errors.As(err, &execErr):
		return execErr
	case errors.As(err, &unknown):
		return ErrUnknownCriterion.WithCause(err).WithDetails(map[string]interface{}{"key": unknown.Key})
	case errors.As(err, &typeErr):
		return ErrCriterionType.WithCause(err).WithDetails(map[string]interface{}{"key": typeErr.Key, "want": typeErr.Want})
	case errors.As(err, &pattern):
		return ErrPatternCompile.WithCause(err).WithDetails(map[string]interface{}{"key": pattern.Key, "pattern": pattern.Pattern})
	case errors.As(err, &index):
		return ErrUnsupportedIndex.WithCause(err).WithDetails(map[string]interface{}{"relation": index.Relation})
	case errors.As(err, &duplicate):
		return ErrDuplicateCriterion.WithCause(err).WithDetails(map[string]interface{}{"key": duplicate.Key, "attribute": duplicate.Attribute})
	case errors.As(err, &stale):
		return ErrStaleElement.WithCause(err)
	case errors.As(err, &noMatch):
		return ErrNoMatch.WithCause(err).WithDetails(map[string]interface{}{"query": noMatch.Query})
	}

	return NewExecutionError(ErrCategoryNone, "internal", "unexpected error").WithCause(err)
}
