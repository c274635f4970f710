package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied indicates a missing permission.
	ErrPermissionDenied = errors.New("permission denied")
)

// PermissionError builds the canonical rejection for a missing permission,
// naming the permission explicitly.
func PermissionError(perm string) error {
	return fmt.Errorf("%w: missing permission %s", ErrPermissionDenied, perm)
}
