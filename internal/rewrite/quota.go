package rewrite

import "fmt"

// QuotaEnforcer counts rewrites in one run and enforces a maximum.
//
// The quota catches linear explosions (A -> B -> C -> ... -> Z) where each
// step is a distinct pattern. Recursive patterns (A -> B -> A) are caught
// earlier by the cycle guard.
type QuotaEnforcer struct {
	maxRewrites int
	current     int
}

// NewQuotaEnforcer creates a quota enforcer with the given limit.
// A limit <= 0 disables the quota.
func NewQuotaEnforcer(maxRewrites int) *QuotaEnforcer {
	return &QuotaEnforcer{maxRewrites: maxRewrites}
}

// Check increments the rewrite counter and validates it against the limit.
func (q *QuotaEnforcer) Check(runID string) error {
	q.current++
	if q.maxRewrites > 0 && q.current > q.maxRewrites {
		return &RewriteError{
			Code:    ErrCodeQuotaExceeded,
			Message: fmt.Sprintf("exceeded rewrite quota: %d rewrites > %d limit", q.current, q.maxRewrites),
			RunID:   runID,
			Details: map[string]string{
				"rewrites": fmt.Sprint(q.current),
				"limit":    fmt.Sprint(q.maxRewrites),
			},
		}
	}
	return nil
}

// Reset sets the counter back to 0.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the number of rewrites counted.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxRewrites returns the limit.
func (q *QuotaEnforcer) MaxRewrites() int {
	return q.maxRewrites
}
