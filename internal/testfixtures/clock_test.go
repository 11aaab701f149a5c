package testfixtures

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	assert.True(t, clock.Now().Equal(ReferenceTime()), "got %v", clock.Now())
}

func TestClockAdvanceSetAndElapsed(t *testing.T) {
	start := time.Date(2024, time.March, 14, 9, 26, 0, 0, time.UTC)
	clock := NewClock(start)

	got := clock.AdvanceSeconds(600)
	assert.True(t, got.Equal(start.Add(10*time.Minute)), "advance returned %v", got)
	clock.Advance(90 * time.Second)
	assert.Equal(t, 690*time.Second, clock.Elapsed())

	clock.Set(start.Add(-time.Minute))
	assert.Equal(t, -time.Minute, clock.Elapsed(), "the clock can move backwards")
}

func TestClockNowFuncTracksClock(t *testing.T) {
	clock := NewClock(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	nowFn := clock.NowFunc()

	clock.Advance(time.Minute)
	assert.True(t, nowFn().Equal(clock.Now()))

	var nilClock *Clock
	require.NotNil(t, nilClock.NowFunc(), "a nil clock falls back to the wall clock")
}
