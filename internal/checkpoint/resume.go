package checkpoint

import (
	"fmt"

	"github.com/lamim/testforge/pkg/models"
)

// ValidateCheckpoint verifies cp was created for the same shape, model and
// prompt and still has work left
func ValidateCheckpoint(cp *Checkpoint, shape models.Shape, fingerprint string) error {
	if cp.Shape != shape {
		return fmt.Errorf("checkpoint shape mismatch: session generated %s, requested %s", cp.Shape, shape)
	}
	if cp.Fingerprint != fingerprint {
		return fmt.Errorf("checkpoint config mismatch: session was created with a different model or prompt (hash: %s vs %s)", cp.Fingerprint, fingerprint)
	}
	if cp.Complete {
		return fmt.Errorf("checkpoint is already complete, nothing to resume")
	}
	return nil
}

// GetProgressPercentage returns completion percentage
func GetProgressPercentage(cp *Checkpoint) float64 {
	if cp.TotalRuns == 0 {
		return 0.0
	}
	return float64(len(cp.CompletedRuns)) / float64(cp.TotalRuns) * 100.0
}
