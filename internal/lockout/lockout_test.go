package lockout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureauth/secureauth/internal/apperr"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}
	p := NewPolicy(0, 0)

	tests := []struct {
		name       string
		attempts   int
		lastFailed *time.Time
		want       State
		retryAfter time.Duration
	}{
		{"fresh account", 0, nil, Unlocked, 0},
		{"below threshold", 4, at(-time.Second), Unlocked, 0},
		{"at threshold inside window", 5, at(-10 * time.Second), Locked, 50 * time.Second},
		{"above threshold inside window", 9, at(0), Locked, 60 * time.Second},
		{"window boundary", 5, at(-60 * time.Second), Unlocked, 0},
		{"window elapsed", 5, at(-61 * time.Second), Unlocked, 0},
		{"threshold without timestamp", 5, nil, Unlocked, 0},
		{"small clock skew", 5, at(2 * time.Second), Locked, 62 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := p.Evaluate(tt.attempts, tt.lastFailed, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.State)
			assert.Equal(t, tt.retryAfter, d.RetryAfter)
			assert.Equal(t, tt.want == Locked, d.Locked())
		})
	}
}

func TestEvaluateMalformedCounters(t *testing.T) {
	now := time.Now()
	p := NewPolicy(5, time.Minute)

	_, err := p.Evaluate(-1, nil, now)
	assert.ErrorIs(t, err, apperr.ErrStorage)

	future := now.Add(24 * time.Hour)
	_, err = p.Evaluate(5, &future, now)
	assert.ErrorIs(t, err, apperr.ErrStorage)
}

func TestNewPolicyDefaults(t *testing.T) {
	p := NewPolicy(-3, 0)
	assert.Equal(t, DefaultThreshold, p.Threshold)
	assert.Equal(t, DefaultWindow, p.Window)

	p = NewPolicy(3, 10*time.Minute)
	assert.Equal(t, 3, p.Threshold)
	assert.Equal(t, 10*time.Minute, p.Window)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "LOCKED", Locked.String())
	assert.Equal(t, "UNLOCKED", Unlocked.String())
}
