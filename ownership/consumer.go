package ownership

import (
	"errors"
	"fmt"
	"io"

	"github.com/rocketbitz/handoff-go/internal/capi"
)

// TakeOwnership hands c to the native consumer together with the destructor
// d. The consumer reads the value, which is echoed to w as "got <value>", and
// then calls d exactly once. The value read is returned.
//
// Preconditions are checked before anything crosses the boundary; a rejected
// call leaves c Allocated and still owned by the caller. A destructor from
// another allocator family is rejected with a *MismatchError. After a
// successful call c is Freed even when writing to w failed.
func TakeOwnership(w io.Writer, c *Cell, d Destructor) (int32, error) {
	if c == nil {
		return 0, ErrNilCell
	}
	if !d.Valid() {
		return 0, ErrNoDestructor
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != StateAllocated || c.ptr == nil {
		return 0, ErrUseAfterRelease
	}
	if d.family != c.family {
		return 0, &MismatchError{Cell: c.family, Destructor: d.family}
	}

	var (
		value    int32
		reported bool
		writeErr error
	)
	report := func(v int32) {
		value = v
		reported = true
		if w != nil {
			_, writeErr = fmt.Fprintf(w, "got %d\n", v)
		}
	}

	c.state.Store(uint32(StateConsumed))
	if err := capi.TakeOwnership(c.ptr, d.native, report); err != nil {
		c.state.Store(uint32(StateAllocated))
		return 0, fmt.Errorf("ownership: take ownership: %w", err)
	}
	c.markFreed()

	if !reported {
		return 0, errors.New("ownership: consumer did not report a value")
	}
	if writeErr != nil {
		return value, fmt.Errorf("ownership: report value: %w", writeErr)
	}
	return value, nil
}
