// Package ownership models a single integer cell whose release obligation is
// handed across the Go/C boundary together with the destructor that matches
// the allocator which produced it.
//
// A Cell moves one way through Allocated, Consumed and Freed. Once it leaves
// Allocated its value can no longer be read and it cannot be released again,
// so double frees and use-after-free are rejected with typed errors instead of
// reaching the native heap.
package ownership

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/rocketbitz/handoff-go/internal/capi"
)

// InitialValue is the value every allocator writes into a new cell.
const InitialValue = capi.InitialValue

// State is the lifecycle position of a cell.
type State uint32

const (
	StateAllocated State = iota
	StateConsumed
	StateFreed
)

func (s State) String() string {
	switch s {
	case StateAllocated:
		return "allocated"
	case StateConsumed:
		return "consumed"
	case StateFreed:
		return "freed"
	default:
		return "invalid"
	}
}

// Cell is an owned handle to one native int.
type Cell struct {
	mu     sync.Mutex
	ptr    unsafe.Pointer
	family Family
	state  atomic.Uint32
}

func newCell(ptr unsafe.Pointer, family Family) *Cell {
	return &Cell{ptr: ptr, family: family}
}

// Family reports the allocator family that produced the cell.
func (c *Cell) Family() Family {
	if c == nil {
		return 0
	}
	return c.family
}

// State reports the current lifecycle state.
func (c *Cell) State() State {
	if c == nil {
		return StateFreed
	}
	return State(c.state.Load())
}

// Value reads the integer held by the cell. It fails once ownership has been
// handed off or the cell was released.
func (c *Cell) Value() (int32, error) {
	if c == nil {
		return 0, ErrNilCell
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() != StateAllocated || c.ptr == nil {
		return 0, ErrUseAfterRelease
	}
	return capi.ReadCell(c.ptr), nil
}

// Release frees the cell with the destructor matching its own allocator. It
// is for callers that keep ownership, e.g. after a rejected handoff.
func (c *Cell) Release() error {
	if c == nil {
		return ErrNilCell
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() != StateAllocated || c.ptr == nil {
		return ErrDoubleRelease
	}
	switch c.family {
	case FamilyMalloc:
		capi.FreeMemory(c.ptr)
	case FamilyGo:
		if !capi.ReleaseGoCell(c.ptr) {
			// The registry no longer knows the address; never hand it out again.
			c.markFreed()
			return fmt.Errorf("%w: go cell was not live", ErrDoubleRelease)
		}
	default:
		return ErrUnknownFamily
	}
	c.markFreed()
	return nil
}

// markFreed must be called with c.mu held.
func (c *Cell) markFreed() {
	c.ptr = nil
	c.state.Store(uint32(StateFreed))
}
