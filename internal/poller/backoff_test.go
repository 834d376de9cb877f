package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		name     string
		attempt  int
		wantWait time.Duration
		wantStop bool
	}{
		{"first retry", 1, 2 * time.Second, false},
		{"second retry", 2, 4 * time.Second, false},
		{"third retry", 3, 8 * time.Second, false},
		{"budget spent", 4, 0, true},
		{"well past budget", 100, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wait, stop := Backoff(tt.attempt)
			assert.Equal(t, tt.wantWait, wait)
			assert.Equal(t, tt.wantStop, stop)
		})
	}
}

// TestBackoffProperty checks the policy invariants: waits double up
// to the cap and the budget cuts off after maxAttempts.
func TestBackoffProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		attempt := rapid.IntRange(1, 200).Draw(t, "attempt")

		wait, stop := Backoff(attempt)
		if attempt > maxAttempts {
			assert.True(t, stop)
			assert.Zero(t, wait)
			return
		}

		assert.False(t, stop)
		assert.Positive(t, wait)
		assert.LessOrEqual(t, wait, backoffCap)

		if next, nextStop := Backoff(attempt + 1); !nextStop {
			assert.GreaterOrEqual(t, next, wait)
		}
	})
}
