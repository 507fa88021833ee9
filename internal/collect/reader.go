// Package collect retrieves completed job output, from the shared filesystem
// or from an object store when site policy ships output there.
package collect

import (
	"context"
	"errors"
)

// ErrNotAvailable reports that a job's output has not been delivered yet.
var ErrNotAvailable = errors.New("output not yet available")

// OutputReader fetches the text a finished job wrote to its output file.
type OutputReader interface {
	ReadOutput(ctx context.Context, path string) (string, error)
}
