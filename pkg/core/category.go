package core

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategorySelector                        // Malformed query: unknown key, bad value, bad regex, misplaced index
	ErrCategoryStale                           // Tree changed under a handle and retries ran out
	ErrCategoryNotFound                        // Query matched nothing (raise-on-not-found mode only)
	ErrCategoryTimeout                         // Operation timed out
	ErrCategoryConnection                      // Device/server connection lost
	ErrCategoryConfig                          // Invalid configuration, missing required field
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategorySelector:
		return "selector"
	case ErrCategoryStale:
		return "stale"
	case ErrCategoryNotFound:
		return "not_found"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Retryable reports whether errors of this category may succeed when the
// operation is repeated against a fresh read of the tree.
func (c ErrorCategory) Retryable() bool {
	return c == ErrCategoryStale
}
