package poller

import "time"

const (
	// backoffBase is the wait before the first retry doubles from.
	backoffBase = time.Second
	// backoffCap bounds the exponential wait.
	backoffCap = 60 * time.Second
	// maxAttempts is how many generic-error retries a cycle gets
	// before giving up until the next scheduled cycle.
	maxAttempts = 3
)

// Backoff is the retry policy for generic fetch errors, shared by
// every retry path so there is a single place the numbers live.
// attempt is 1-based. It returns how long to wait before retrying,
// or stop=true when the attempt budget is spent.
func Backoff(attempt int) (wait time.Duration, stop bool) {
	if attempt > maxAttempts {
		return 0, true
	}
	wait = backoffBase << attempt
	if wait > backoffCap {
		wait = backoffCap
	}
	return wait, false
}
