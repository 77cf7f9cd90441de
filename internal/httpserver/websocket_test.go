package httpserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	t.Parallel()

	r := &rateLimiter{perSecond: 10}
	base := time.Now()

	for i := 0; i < 10; i++ {
		assert.True(t, r.allow(base.Add(time.Duration(i)*time.Millisecond)), "message %d", i)
	}
	assert.False(t, r.allow(base.Add(11*time.Millisecond)), "11th message inside the window is rejected")

	// A second later the window has slid past the burst.
	assert.True(t, r.allow(base.Add(1100*time.Millisecond)))
}

func TestValidPreset(t *testing.T) {
	t.Parallel()

	for _, preset := range []string{"adaptive", "gentle", "warm", "bright", "punchy", "none"} {
		assert.True(t, validPreset(preset), preset)
	}
	assert.False(t, validPreset("loud"))
	assert.False(t, validPreset(""))
}
