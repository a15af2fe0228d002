package rewrite

import (
	"errors"
	"fmt"
)

// RewriteError represents a failure of the rewrite driver.
//
// Rewrite errors include:
//   - Not converged: rewrites were still happening at the sweep limit
//   - Quota exceeded: the run performed more rewrites than allowed
//   - Cycle detected: a pattern would fire on an op it produced
//   - Pattern failed: a pattern reported an unrecoverable error
//
// Any RewriteError fails the whole stage.
type RewriteError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run.
	RunID string

	// Pattern names the pattern involved, if any.
	Pattern string

	// Op is the kind of the op being rewritten, if any.
	Op string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause for PATTERN_FAILED.
	Err error
}

// ErrorCode categorizes rewrite errors.
type ErrorCode string

const (
	// ErrCodeNotConverged indicates rewrites were still happening when the
	// sweep limit was reached.
	ErrCodeNotConverged ErrorCode = "NOT_CONVERGED"

	// ErrCodeQuotaExceeded indicates the run exceeded its rewrite quota.
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeCycleDetected indicates a pattern would fire on its own output.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"

	// ErrCodePatternFailed indicates a pattern returned an error.
	ErrCodePatternFailed ErrorCode = "PATTERN_FAILED"
)

// Error implements the error interface.
func (e *RewriteError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Pattern != "" {
		msg = fmt.Sprintf("%s (pattern=%s, op=%s)", msg, e.Pattern, e.Op)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RewriteError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var re *RewriteError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsConvergenceError returns true if the driver did not reach a fixed point.
func IsConvergenceError(err error) bool {
	return hasCode(err, ErrCodeNotConverged)
}

// IsQuotaError returns true if the rewrite quota was exceeded.
func IsQuotaError(err error) bool {
	return hasCode(err, ErrCodeQuotaExceeded)
}

// IsCycleError returns true if the cycle guard fired.
func IsCycleError(err error) bool {
	return hasCode(err, ErrCodeCycleDetected)
}

// IsPatternError returns true if a pattern failed.
func IsPatternError(err error) bool {
	return hasCode(err, ErrCodePatternFailed)
}

// CodeOf returns the code of a RewriteError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var re *RewriteError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// NewCycleError creates a RewriteError for the cycle guard.
func NewCycleError(runID, pattern, op string) *RewriteError {
	return &RewriteError{
		Code:    ErrCodeCycleDetected,
		Message: "pattern would fire on an op it produced",
		RunID:   runID,
		Pattern: pattern,
		Op:      op,
	}
}

func newConvergenceError(runID string, iterations int) *RewriteError {
	return &RewriteError{
		Code:    ErrCodeNotConverged,
		Message: fmt.Sprintf("no fixed point after %d iterations", iterations),
		RunID:   runID,
		Details: map[string]string{"iterations": fmt.Sprint(iterations)},
	}
}

func newPatternError(runID, pattern, op string, err error) *RewriteError {
	return &RewriteError{
		Code:    ErrCodePatternFailed,
		Message: "pattern failed",
		RunID:   runID,
		Pattern: pattern,
		Op:      op,
		Err:     err,
	}
}
