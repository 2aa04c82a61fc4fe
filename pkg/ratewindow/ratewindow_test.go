package ratewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTryAcquireEnforcesCeiling(t *testing.T) {
	w := New(time.Hour, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, w.TryAcquire(), "acquire %d", i)
	}
	assert.False(t, w.TryAcquire())
	assert.Equal(t, 3, w.Count())
	assert.Zero(t, w.Remaining())
}

func TestRemainingAndLimit(t *testing.T) {
	w := New(time.Hour, 5)
	assert.Equal(t, 5, w.Limit())
	assert.Equal(t, 5, w.Remaining())

	w.Record()
	w.Record()
	assert.Equal(t, 3, w.Remaining())
	assert.Equal(t, 2, w.Count())
}

func TestQuotaRecoversAsWindowSlides(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	w := New(time.Hour, 2)
	w.SetClock(func() time.Time { return now })

	assert.True(t, w.TryAcquire())
	assert.True(t, w.TryAcquire())
	assert.False(t, w.TryAcquire())

	// 30 minutes later the window still holds both stamps.
	now = now.Add(30 * time.Minute)
	assert.False(t, w.TryAcquire())

	// 61 minutes after the first stamps both have slid out.
	now = now.Add(31 * time.Minute)
	assert.Equal(t, 2, w.Remaining())
	assert.True(t, w.TryAcquire())
}

func TestRecordIgnoresCeiling(t *testing.T) {
	w := New(time.Hour, 1)
	w.Record()
	w.Record()
	assert.Equal(t, 2, w.Count())
	assert.Zero(t, w.Remaining())
}
