package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClockRunsDueTimersInOrder(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)

	var fired []string
	c.AfterFunc(300*time.Millisecond, func() { fired = append(fired, "late") })
	c.AfterFunc(100*time.Millisecond, func() { fired = append(fired, "early") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "never") })

	c.Advance(500 * time.Millisecond)

	assert.Equal(t, []string{"early", "late"}, fired)
	assert.Equal(t, start.Add(500*time.Millisecond), c.Now())
	assert.Equal(t, 1, c.Pending())
}

func TestFakeClockStop(t *testing.T) {
	c := NewFakeClock(time.Time{})
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(2 * time.Second)
	assert.False(t, fired)
	assert.Zero(t, c.Pending())
}

func TestFakeClockTimerScheduledFromCallback(t *testing.T) {
	c := NewFakeClock(time.Time{})
	count := 0
	c.AfterFunc(100*time.Millisecond, func() {
		count++
		c.AfterFunc(100*time.Millisecond, func() { count++ })
	})

	c.Advance(250 * time.Millisecond)
	assert.Equal(t, 2, count)
}
