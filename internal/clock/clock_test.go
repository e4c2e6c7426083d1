package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_AdvanceAndSet(t *testing.T) {
	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	c := NewFake(start)

	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())

	c.Advance(-30 * time.Second)
	assert.Equal(t, start.Add(60*time.Second), c.Now())

	later := start.AddDate(0, 0, 3)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestSystem_Now(t *testing.T) {
	before := time.Now()
	got := System{}.Now()
	assert.False(t, got.Before(before))
}
