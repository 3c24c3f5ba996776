// internal/errors/errors.go
package errors

import "fmt"

// ErrInvalidBatchSize is returned when a search is requested with a page size
// outside the 1-100 window the GitHub API accepts.
type ErrInvalidBatchSize struct {
	Size int
}

func (e *ErrInvalidBatchSize) Error() string {
	return fmt.Sprintf("invalid batch size: %d, must be between 1 and 100", e.Size)
}
