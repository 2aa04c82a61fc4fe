package store

import (
	"errors"
	"fmt"

	"github.com/fieldgate/taskgen/pkg/models"
)

// MaxBatchSize caps one batch request.
const MaxBatchSize = 100

// BatchFailure names one id that could not be transitioned.
type BatchFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchResult partitions a batch into its per-id outcomes. Batches are
// not transactional: partial success is reported, not rolled back.
type BatchResult struct {
	Succeeded []string       `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
	NotFound  []string       `json:"notFound"`
}

// BatchApprove approves each id independently.
func (s *Store) BatchApprove(ids []string) (*BatchResult, error) {
	return s.batch(ids, func(id string) error {
		_, err := s.Approve(id)
		return err
	})
}

// BatchDismiss dismisses each id independently with a shared reason.
func (s *Store) BatchDismiss(ids []string, reason string) (*BatchResult, error) {
	return s.batch(ids, func(id string) error {
		_, err := s.Dismiss(id, reason)
		return err
	})
}

func (s *Store) batch(ids []string, op func(id string) error) (*BatchResult, error) {
	if len(ids) == 0 {
		return nil, models.NewValidationError("taskIds", "at least one task id is required")
	}
	if len(ids) > MaxBatchSize {
		return nil, models.NewValidationError("taskIds",
			fmt.Sprintf("batch size %d exceeds the cap of %d", len(ids), MaxBatchSize))
	}

	result := &BatchResult{
		Succeeded: []string{},
		Failed:    []BatchFailure{},
		NotFound:  []string{},
	}
	for _, id := range ids {
		switch err := op(id); {
		case err == nil:
			result.Succeeded = append(result.Succeeded, id)
		case errors.Is(err, ErrNotFound):
			result.NotFound = append(result.NotFound, id)
		default:
			result.Failed = append(result.Failed, BatchFailure{ID: id, Error: err.Error()})
		}
	}
	return result, nil
}
