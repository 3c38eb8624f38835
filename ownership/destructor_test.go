package ownership

import (
	"errors"
	"testing"
)

func TestParseFamily(t *testing.T) {
	cases := map[string]Family{
		"malloc": FamilyMalloc,
		"C":      FamilyMalloc,
		" go ":   FamilyGo,
	}
	for name, want := range cases {
		got, err := ParseFamily(name)
		if err != nil {
			t.Fatalf("ParseFamily(%q) failed: %v", name, err)
		}
		if got != want {
			t.Fatalf("ParseFamily(%q) = %s, want %s", name, got, want)
		}
	}

	if _, err := ParseFamily("jemalloc"); !errors.Is(err, ErrUnknownFamily) {
		t.Fatalf("expected ErrUnknownFamily, got %v", err)
	}
}

func TestDestructorFor(t *testing.T) {
	for _, f := range []Family{FamilyMalloc, FamilyGo} {
		d, err := DestructorFor(f)
		if err != nil {
			t.Fatalf("DestructorFor(%s) failed: %v", f, err)
		}
		if d.Family() != f || !d.Valid() {
			t.Fatalf("unexpected destructor for %s: %v", f, d)
		}
	}
	if _, err := DestructorFor(Family(9)); !errors.Is(err, ErrUnknownFamily) {
		t.Fatalf("expected ErrUnknownFamily, got %v", err)
	}

	var zero Destructor
	if zero.Valid() || zero.Name() != "none" {
		t.Fatalf("zero destructor should be invalid")
	}
}

func TestAllocatorByName(t *testing.T) {
	alloc, err := AllocatorByName("go")
	if err != nil {
		t.Fatalf("AllocatorByName failed: %v", err)
	}
	if alloc.Family() != FamilyGo || alloc.Destructor().Family() != FamilyGo {
		t.Fatalf("allocator and destructor families must agree")
	}
	if _, err := AllocatorByName("arena"); !errors.Is(err, ErrUnknownFamily) {
		t.Fatalf("expected ErrUnknownFamily, got %v", err)
	}
}
