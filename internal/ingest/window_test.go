package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdaptiveWindowShrinksOnRepeatedEarlyClose(t *testing.T) {
	w := newAdaptiveWindow(80, 30*time.Second, 120*time.Second)
	assert.Equal(t, 80, w.Cap())

	// First early close is forgiven.
	assert.Equal(t, 80, w.Observe(5*time.Second))
	// Second consecutive one shrinks by 20%.
	assert.Equal(t, 64, w.Observe(5*time.Second))
	assert.Equal(t, 51, w.Observe(5*time.Second))
}

func TestAdaptiveWindowGrowsAfterStableSession(t *testing.T) {
	w := newAdaptiveWindow(80, 30*time.Second, 120*time.Second)
	w.Observe(time.Second)
	w.Observe(time.Second) // cap now 64
	assert.Equal(t, 64, w.Cap())

	assert.Equal(t, 69, w.Observe(3*time.Minute))
	assert.Equal(t, 74, w.Observe(3*time.Minute))
}

func TestAdaptiveWindowNeverExceedsMax(t *testing.T) {
	w := newAdaptiveWindow(80, 30*time.Second, 120*time.Second)
	assert.Equal(t, 80, w.Observe(3*time.Minute))
}

func TestAdaptiveWindowNeverGoesBelowFloor(t *testing.T) {
	w := newAdaptiveWindow(12, 30*time.Second, 120*time.Second)
	for i := 0; i < 10; i++ {
		w.Observe(time.Second)
	}
	assert.Equal(t, adaptiveFloor, w.Cap())
}

func TestAdaptiveWindowMidSessionResetsStreak(t *testing.T) {
	w := newAdaptiveWindow(80, 30*time.Second, 120*time.Second)
	w.Observe(time.Second)      // early #1
	w.Observe(60 * time.Second) // ordinary session breaks the streak
	assert.Equal(t, 80, w.Observe(time.Second)) // early again, forgiven again
}
