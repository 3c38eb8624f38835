package ownership

import (
	"fmt"
	"strings"

	"github.com/rocketbitz/handoff-go/internal/capi"
)

// Family identifies the allocator that produced a cell. Only a destructor of
// the same family may release it.
type Family uint8

const (
	// FamilyMalloc cells live on the C heap and are released with free(3).
	FamilyMalloc Family = iota + 1
	// FamilyGo cells live pinned on the Go heap and are released by unpinning.
	FamilyGo
)

func (f Family) String() string {
	switch f {
	case FamilyMalloc:
		return "malloc"
	case FamilyGo:
		return "go"
	default:
		return "unknown"
	}
}

// ParseFamily resolves a family name as printed by Family.String.
func ParseFamily(name string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "malloc", "c", "free":
		return FamilyMalloc, nil
	case "go":
		return FamilyGo, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFamily, name)
	}
}

// Destructor is the capability handed to a consumer alongside a cell. It
// names the native release routine that matches one allocator family.
type Destructor struct {
	family Family
	name   string
	native capi.Destructor
}

var (
	// FreeMalloc releases FamilyMalloc cells.
	FreeMalloc = Destructor{family: FamilyMalloc, name: "free", native: capi.DestructorMalloc}
	// ReleaseGo releases FamilyGo cells.
	ReleaseGo = Destructor{family: FamilyGo, name: "go-release", native: capi.DestructorGo}
)

// DestructorFor returns the destructor that matches the given family.
func DestructorFor(f Family) (Destructor, error) {
	switch f {
	case FamilyMalloc:
		return FreeMalloc, nil
	case FamilyGo:
		return ReleaseGo, nil
	default:
		return Destructor{}, fmt.Errorf("%w: %d", ErrUnknownFamily, f)
	}
}

// Family reports the allocator family this destructor can release.
func (d Destructor) Family() Family {
	return d.family
}

// Name returns a short label for logs and metrics.
func (d Destructor) Name() string {
	if d.name == "" {
		return "none"
	}
	return d.name
}

// Valid reports whether d refers to a native release routine.
func (d Destructor) Valid() bool {
	return d.family != 0 && d.native != 0
}

func (d Destructor) String() string {
	return d.Name()
}
