package engage

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCooldownWindow(t *testing.T) {
	c := NewCooldown(300 * time.Second)
	t0 := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, c.IsOnCooldown("u1", t0), "never analyzed")
	c.Record("u1", t0)
	assert.True(t, c.IsOnCooldown("u1", t0.Add(299*time.Second)))
	assert.False(t, c.IsOnCooldown("u1", t0.Add(300*time.Second)))
	assert.False(t, c.IsOnCooldown("u1", t0.Add(301*time.Second)))
	assert.False(t, c.IsOnCooldown("u2", t0.Add(time.Second)))

	c.Record("u1", t0.Add(400*time.Second))
	assert.True(t, c.IsOnCooldown("u1", t0.Add(500*time.Second)))
}

func TestCooldownSweep(t *testing.T) {
	c := NewCooldown(time.Minute)
	t0 := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	c.Record("old", t0)
	c.Record("new", t0.Add(50*time.Second))

	removed := c.Sweep(t0.Add(70 * time.Second))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.IsOnCooldown("new", t0.Add(70*time.Second)))
	assert.False(t, c.IsOnCooldown("old", t0.Add(70*time.Second)))
}

func TestProcessedEvictsOldest(t *testing.T) {
	p, err := NewProcessed(3)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		p.Add(fmt.Sprint(i))
	}
	assert.Equal(t, 3, p.Len())
	assert.False(t, p.Contains("0"))
	assert.True(t, p.Contains("3"))

	p.Add("3")
	assert.Equal(t, 3, p.Len())
}

func TestNewProcessedRejectsZeroCapacity(t *testing.T) {
	_, err := NewProcessed(0)
	assert.Error(t, err)
}
