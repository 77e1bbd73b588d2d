package jobs

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrStopRequested is returned by CheckStop when a cooperative stop has been
// requested for the job. Pipeline stages match it with errors.Is to unwind
// cleanly instead of treating the stop as a failure.
var ErrStopRequested = errors.New("stop requested")

// CheckStop is the cooperative cancellation checkpoint. Pipeline stages call
// it between units of work; it returns an error wrapping ErrStopRequested,
// tagged with the checkpoint name, when the job has been flagged to stop.
func (s *Store) CheckStop(id uuid.UUID, checkpoint string) error {
	if s.IsStopRequested(id) {
		return fmt.Errorf("at %s: %w", checkpoint, ErrStopRequested)
	}
	return nil
}
