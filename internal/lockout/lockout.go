// Package lockout decides whether an account may currently attempt a login.
//
// The lock state is never stored. It is recomputed from the persisted failure
// counter, the time of the last failure and the current time on every read.
package lockout

import (
	"fmt"
	"time"

	"github.com/secureauth/secureauth/internal/apperr"
)

const (
	DefaultThreshold = 5
	DefaultWindow    = 60 * time.Second

	// maxClockSkew tolerates small differences between the database clock and ours.
	maxClockSkew = 5 * time.Minute
)

// State is the derived lock state of an account.
type State int

const (
	Unlocked State = iota
	Locked
)

func (s State) String() string {
	if s == Locked {
		return "LOCKED"
	}
	return "UNLOCKED"
}

// Decision is the outcome of evaluating the policy.
type Decision struct {
	State State
	// RetryAfter is how long until the lock lapses; zero when unlocked.
	RetryAfter time.Duration
}

// Locked reports whether login must be refused.
func (d Decision) Locked() bool { return d.State == Locked }

// Policy locks an account once Threshold failures have been recorded and the
// most recent one is less than Window old.
type Policy struct {
	Threshold int
	Window    time.Duration
}

// NewPolicy returns a policy, substituting defaults for non-positive values.
func NewPolicy(threshold int, window time.Duration) Policy {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return Policy{Threshold: threshold, Window: window}
}

// Evaluate derives the lock state from stored counters. Inconsistent counters
// are reported as a storage error instead of being treated as unlocked.
func (p Policy) Evaluate(attempts int, lastFailed *time.Time, now time.Time) (Decision, error) {
	const op = "lockout.Evaluate"

	if attempts < 0 {
		return Decision{}, apperr.Wrap(op, apperr.ErrStorage, "Database error occurred",
			fmt.Errorf("negative login_attempts %d", attempts))
	}
	if lastFailed != nil && lastFailed.Sub(now) > maxClockSkew {
		return Decision{}, apperr.Wrap(op, apperr.ErrStorage, "Database error occurred",
			fmt.Errorf("last_failed_attempt %s is in the future", lastFailed.UTC().Format(time.RFC3339)))
	}

	if attempts < p.Threshold || lastFailed == nil {
		return Decision{State: Unlocked}, nil
	}

	until := lastFailed.Add(p.Window)
	if now.Before(until) {
		return Decision{State: Locked, RetryAfter: until.Sub(now)}, nil
	}
	return Decision{State: Unlocked}, nil
}
