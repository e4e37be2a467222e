package mock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	c := NewClock(start)
	assert.Equal(t, start, c.Now())
	assert.Equal(t, c.Now(), c.Now(), "a stopped clock does not move")

	c.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), c.Now())

	later := start.AddDate(0, 1, 0)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestNewClock_ZeroStartsNow(t *testing.T) {
	before := time.Now()
	c := NewClock(time.Time{})
	assert.False(t, c.Now().Before(before))
	assert.False(t, c.Now().After(time.Now()))
}
