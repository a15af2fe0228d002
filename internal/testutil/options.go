package testutil

import "github.com/roach88/cpurt/internal/rewrite"

// RewriteOptions returns driver options for reproducible test runs: a
// fresh deterministic clock, the default fixed run ID and a silent logger.
func RewriteOptions() []rewrite.Option {
	return []rewrite.Option{
		rewrite.WithClock(NewDeterministicClock()),
		rewrite.WithRunIDGenerator(NewFixedRunIDGenerator("")),
		rewrite.WithLogger(rewrite.DiscardLogger()),
	}
}
