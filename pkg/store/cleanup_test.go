package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupServiceRemovesOnTick(t *testing.T) {
	s := newTestStore(t)

	task := newTask(t, "short lived")
	require.NoError(t, s.Save(task))
	_, err := s.Dismiss(task.ID, "noise")
	require.NoError(t, err)

	// Age the dismissal past the retention horizon.
	base := time.Now().UTC()
	s.now = func() time.Time { return base.AddDate(0, 0, 10) }

	svc := NewCleanupService(s, 7, 20*time.Millisecond)
	svc.Start(context.Background())
	defer svc.Stop()

	require.Eventually(t, func() bool {
		_, err := s.Get(task.ID)
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestCleanupServiceStopIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	svc := NewCleanupService(s, 7, time.Hour)
	svc.Start(context.Background())
	svc.Stop()
	svc.Stop()
	assert.NotPanics(t, func() { svc.Stop() })
}
