package slurm

import (
	"errors"
	"fmt"
)

// ErrUnreachable marks transport-level failures talking to the resource
// manager. It is deliberately distinct from a "not found" lookup so callers
// can retry transient network trouble without confusing it with a missing
// partition or job.
var ErrUnreachable = errors.New("resource manager unreachable")

func unreachable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
