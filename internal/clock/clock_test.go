package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_AdvanceFiresInOrder(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var fired []string
	c.AfterFunc(3*time.Second, func() { fired = append(fired, "c") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })

	c.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, start.Add(2*time.Second), c.Now())
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
}

func TestFake_StopCancels(t *testing.T) {
	c := NewFake(time.Now())

	fired := false
	timer := c.AfterFunc(time.Minute, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(time.Hour)
	assert.False(t, fired)
}

func TestFake_RescheduleWithinAdvance(t *testing.T) {
	c := NewFake(time.Now())

	count := 0
	var tick func()
	tick = func() {
		count++
		c.AfterFunc(5*time.Minute, tick)
	}
	c.AfterFunc(5*time.Minute, tick)

	c.Advance(61 * time.Minute)
	assert.Equal(t, 12, count)
}

func TestFake_CallbackSeesDueTime(t *testing.T) {
	start := time.Now()
	c := NewFake(start)

	var seen time.Time
	c.AfterFunc(10*time.Second, func() { seen = c.Now() })

	c.Advance(time.Minute)
	assert.Equal(t, start.Add(10*time.Second), seen)
	assert.Equal(t, start.Add(time.Minute), c.Now())
}
