package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New("ledger", WithFailureThreshold(3))

	assert.False(t, b.RecordFailure())
	assert.False(t, b.RecordFailure())
	assert.True(t, b.RecordFailure())

	assert.Equal(t, StateOpen, b.CurrentState())
	assert.False(t, b.Allow())
}

func TestBreakerAllowsProbeAfterCooldown(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	b := New("ledger", WithFailureThreshold(1), WithCooldown(10*time.Second), WithClock(clock))

	b.RecordFailure()
	assert.False(t, b.Allow())

	now = now.Add(11 * time.Second)
	assert.True(t, b.Allow())

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.CurrentState())
	assert.True(t, b.Allow())
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := New("documents", WithFailureThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	assert.False(t, b.RecordFailure())
	assert.Equal(t, StateClosed, b.CurrentState())
}
