package ownership

import (
	"fmt"

	"github.com/rocketbitz/handoff-go/internal/capi"
)

// Allocator produces cells of one family and knows the destructor that
// releases them.
type Allocator interface {
	Family() Family
	Allocate() (*Cell, error)
	Destructor() Destructor
}

var (
	_ Allocator = MallocAllocator{}
	_ Allocator = GoAllocator{}
)

// mallocMemory is replaced in tests to simulate allocation failure.
var mallocMemory = capi.MakeMemory

// MallocAllocator allocates cells on the C heap via the native make_memory.
type MallocAllocator struct{}

func (MallocAllocator) Family() Family { return FamilyMalloc }

func (MallocAllocator) Destructor() Destructor { return FreeMalloc }

// Allocate returns a cell holding InitialValue, or an error wrapping
// ErrNoMemory when the C heap is exhausted.
func (MallocAllocator) Allocate() (*Cell, error) {
	ptr, err := mallocMemory()
	if err != nil {
		return nil, fmt.Errorf("ownership: allocate malloc cell: %w", err)
	}
	if ptr == nil {
		return nil, fmt.Errorf("ownership: allocate malloc cell: %w", ErrNoMemory)
	}
	return newCell(ptr, FamilyMalloc), nil
}

// GoAllocator allocates cells on the Go heap and pins them while the native
// side may hold their address.
type GoAllocator struct{}

func (GoAllocator) Family() Family { return FamilyGo }

func (GoAllocator) Destructor() Destructor { return ReleaseGo }

func (GoAllocator) Allocate() (*Cell, error) {
	return newCell(capi.NewGoCell(), FamilyGo), nil
}

// AllocatorFor returns the allocator of the given family.
func AllocatorFor(f Family) (Allocator, error) {
	switch f {
	case FamilyMalloc:
		return MallocAllocator{}, nil
	case FamilyGo:
		return GoAllocator{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFamily, f)
	}
}

// AllocatorByName resolves "malloc" or "go" to an allocator.
func AllocatorByName(name string) (Allocator, error) {
	f, err := ParseFamily(name)
	if err != nil {
		return nil, err
	}
	return AllocatorFor(f)
}

// MakeMemory allocates one C heap cell initialised to InitialValue. The
// returned cell must be handed to TakeOwnership with FreeMalloc, or released.
func MakeMemory() (*Cell, error) {
	return MallocAllocator{}.Allocate()
}
