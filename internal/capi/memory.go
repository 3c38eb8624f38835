//go:build cgo

package capi

import (
	"runtime"
	"runtime/cgo"
	"sync"
	"sync/atomic"
	"unsafe"
)

/*
#include <stdlib.h>
#include "ownership.h"
*/
import "C"

// InitialValue is written into every freshly allocated cell.
const InitialValue = int32(C.CELL_INITIAL_VALUE)

// Destructor selects the native release routine handed to the consumer.
type Destructor int

const (
	// DestructorMalloc releases cells produced by MakeMemory with free(3).
	DestructorMalloc Destructor = iota + 1
	// DestructorGo releases cells produced by NewGoCell through a Go callback.
	DestructorGo
)

func (d Destructor) String() string {
	switch d {
	case DestructorMalloc:
		return "malloc"
	case DestructorGo:
		return "go"
	default:
		return "unknown"
	}
}

func (d Destructor) native() C.cell_dtor {
	switch d {
	case DestructorMalloc:
		return C.malloc_cell_dtor()
	case DestructorGo:
		return C.go_cell_dtor()
	default:
		return nil
	}
}

// MakeMemory allocates one C int on the C heap initialised to InitialValue.
func MakeMemory() (unsafe.Pointer, error) {
	ptr := C.make_memory()
	if ptr == nil {
		return nil, ErrNoMemory.WithOp("make_memory")
	}
	return unsafe.Pointer(ptr), nil
}

// FreeMemory releases a cell produced by MakeMemory.
func FreeMemory(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	C.release_malloc_cell((*C.int)(ptr))
}

// ReadCell loads the int stored at ptr.
func ReadCell(ptr unsafe.Pointer) int32 {
	return int32(*(*C.int)(ptr))
}

type goCell struct {
	value  *C.int
	pinner runtime.Pinner
}

var (
	goCellsMu sync.Mutex
	goCells   = make(map[uintptr]*goCell)

	goReleases        atomic.Uint64
	releaseViolations atomic.Uint64
)

// NewGoCell allocates one C int on the Go heap, pins it, and tracks it until
// ReleaseGoCell runs. Such cells must never reach free(3).
func NewGoCell() unsafe.Pointer {
	cell := &goCell{value: new(C.int)}
	*cell.value = C.CELL_INITIAL_VALUE
	cell.pinner.Pin(cell.value)

	ptr := unsafe.Pointer(cell.value)
	goCellsMu.Lock()
	goCells[uintptr(ptr)] = cell
	goCellsMu.Unlock()
	return ptr
}

// ReleaseGoCell unpins and forgets a cell produced by NewGoCell. It reports
// false, and counts a violation, when ptr is not a live Go cell.
func ReleaseGoCell(ptr unsafe.Pointer) bool {
	goCellsMu.Lock()
	cell, ok := goCells[uintptr(ptr)]
	if ok {
		delete(goCells, uintptr(ptr))
	}
	goCellsMu.Unlock()

	if !ok {
		releaseViolations.Add(1)
		return false
	}
	cell.pinner.Unpin()
	goReleases.Add(1)
	return true
}

// TakeOwnership passes ptr to the native consumer, which reads the value,
// reports it through report (when non-nil) and then invokes dtor exactly once.
// The consumer refuses a NULL cell (ErrFault) or an unknown destructor
// (ErrInvalid) without touching either. ptr must not be used after
// TakeOwnership returns nil.
func TakeOwnership(ptr unsafe.Pointer, dtor Destructor, report func(int32)) error {
	var observer C.uintptr_t
	if report != nil {
		h := cgo.NewHandle(report)
		defer h.Delete()
		observer = C.uintptr_t(h)
	}
	status := C.take_ownership((*C.int)(ptr), dtor.native(), observer)
	return ErrorFromStatus(int(status), "take_ownership")
}

// LiveGoCells reports how many Go cells are allocated and not yet released.
func LiveGoCells() int {
	goCellsMu.Lock()
	defer goCellsMu.Unlock()
	return len(goCells)
}

// MallocReleases reports how many times the malloc destructor freed a cell.
func MallocReleases() uint64 {
	return uint64(C.malloc_cell_releases())
}

// GoReleases reports how many Go cells were released.
func GoReleases() uint64 {
	return goReleases.Load()
}

// ReleaseViolations counts release attempts on addresses that were not live
// Go cells, i.e. double releases or foreign pointers.
func ReleaseViolations() uint64 {
	return releaseViolations.Load()
}
