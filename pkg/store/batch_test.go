package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldgate/taskgen/pkg/models"
)

func TestBatchApprovePartitionsOutcomes(t *testing.T) {
	s := newTestStore(t)

	ok := newTask(t, "approvable")
	done := newTask(t, "already done")
	require.NoError(t, s.Save(ok))
	require.NoError(t, s.Save(done))
	_, err := s.Complete(done.ID)
	require.NoError(t, err)

	result, err := s.BatchApprove([]string{ok.ID, done.ID, "task-missing"})
	require.NoError(t, err)

	assert.Equal(t, []string{ok.ID}, result.Succeeded)
	assert.Equal(t, []string{"task-missing"}, result.NotFound)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, done.ID, result.Failed[0].ID)

	got, err := s.Get(ok.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
}

func TestBatchDismissSharesReason(t *testing.T) {
	s := newTestStore(t)
	a := newTask(t, "noise a")
	b := newTask(t, "noise b")
	require.NoError(t, s.Save(a))
	require.NoError(t, s.Save(b))

	result, err := s.BatchDismiss([]string{a.ID, b.ID}, "not actionable")
	require.NoError(t, err)
	assert.Len(t, result.Succeeded, 2)

	got, err := s.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "not actionable", got.DismissReason)
}

func TestBatchRejectsEmptyAndOversized(t *testing.T) {
	s := newTestStore(t)

	_, err := s.BatchApprove(nil)
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)

	ids := make([]string, MaxBatchSize+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("task-%d", i)
	}
	_, err = s.BatchApprove(ids)
	assert.ErrorAs(t, err, &verr)
}
