package backfill

import (
	"fmt"
)

const maxErrorSamples = 5

// ItemError is a per-file repair failure. It is tallied in the run result and
// never aborts the batch.
type ItemError struct {
	FileID string
	Path   string
	Err    error
}

func (e *ItemError) Error() string {
	ref := e.FileID
	if ref == "" {
		ref = e.Path
	}
	return fmt.Sprintf("backfill %s: %v", ref, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }
