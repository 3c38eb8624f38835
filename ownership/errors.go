package ownership

import (
	"errors"
	"fmt"

	"github.com/rocketbitz/handoff-go/internal/capi"
)

var (
	// ErrNilCell indicates that a nil cell was handed to an operation.
	ErrNilCell = errors.New("ownership: nil cell")
	// ErrNoDestructor indicates that the destructor capability is the zero value.
	ErrNoDestructor = errors.New("ownership: invalid destructor")
	// ErrUseAfterRelease indicates an access to a cell that was already consumed or freed.
	ErrUseAfterRelease = errors.New("ownership: cell already released")
	// ErrDoubleRelease indicates a second release of the same cell.
	ErrDoubleRelease = errors.New("ownership: cell released twice")
	// ErrAllocatorMismatch indicates a destructor from a different allocator family than the cell.
	ErrAllocatorMismatch = errors.New("ownership: destructor does not match allocator")
	// ErrUnknownFamily indicates an allocator or destructor name that is not recognised.
	ErrUnknownFamily = errors.New("ownership: unknown allocator family")

	// ErrNoMemory indicates that the native allocator returned NULL.
	ErrNoMemory = capi.ErrNoMemory
)

// Errno re-exports the native errno type for consumers of the ownership package.
type Errno = capi.Errno

// MismatchError reports a handoff rejected because the destructor would
// release the cell with the wrong allocator.
type MismatchError struct {
	Cell       Family
	Destructor Family
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("ownership: %s cell cannot be released by %s destructor", e.Cell, e.Destructor)
}

// Unwrap allows errors.Is to match ErrAllocatorMismatch.
func (e *MismatchError) Unwrap() error {
	return ErrAllocatorMismatch
}
