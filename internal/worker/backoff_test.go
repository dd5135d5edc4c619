package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyDelayDoubles(t *testing.T) {
	p := RetryPolicy{Base: time.Second, Max: 30 * time.Second, MaxAttempts: 3}

	assert.Equal(t, 1*time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 8*time.Second, p.Delay(4))
}

func TestRetryPolicyDelayCapped(t *testing.T) {
	p := RetryPolicy{Base: time.Second, Max: 30 * time.Second, MaxAttempts: 3}

	assert.Equal(t, 30*time.Second, p.Delay(6))
	assert.Equal(t, 30*time.Second, p.Delay(10))
	assert.Equal(t, 30*time.Second, p.Delay(100))
}

func TestRetryPolicyJitterBounds(t *testing.T) {
	p := RetryPolicy{
		Base:   time.Second,
		Max:    30 * time.Second,
		Jitter: 500 * time.Millisecond,
	}

	for i := 0; i < 100; i++ {
		d := p.Delay(2)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.Less(t, d, 2*time.Second+500*time.Millisecond)
	}
}

func TestRetryPolicyZeroAttemptClamped(t *testing.T) {
	p := RetryPolicy{Base: time.Second, Max: 30 * time.Second}

	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, time.Second, p.Delay(-3))
}
