//go:build cgo

package capi

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestErrorFromStatus(t *testing.T) {
	if err := ErrorFromStatus(0, "noop"); err != nil {
		t.Fatalf("expected nil error for success status, got %v", err)
	}
	if err := ErrorFromStatus(4, "count"); err != nil {
		t.Fatalf("expected nil error for positive status, got %v", err)
	}

	err := ErrorFromStatus(-int(ErrNoMemory), "make_memory")
	if err == nil {
		t.Fatalf("expected error for ENOMEM status")
	}
	if !errors.Is(err, ErrNoMemory) {
		t.Fatalf("expected errors.Is match ErrNoMemory, got %v", err)
	}
	if !strings.Contains(err.Error(), "make_memory") {
		t.Fatalf("expected operation context in error string, got %q", err)
	}
}

func TestErrnoString(t *testing.T) {
	cases := map[Errno]string{
		ErrNoMemory: "cannot allocate memory",
		ErrInvalid:  "invalid argument",
		ErrFault:    "bad address",
		Errno(9999): "errno 9999",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Fatalf("unexpected message for %d: got %q want %q", int32(code), got, want)
		}
	}
	if Success.String() != "success" {
		t.Fatalf("unexpected success string: %q", Success.String())
	}
	if err := ErrInvalid.WithOp(""); err != ErrInvalid {
		t.Fatalf("expected bare errno without op, got %v", err)
	}
}

func TestErrnoStringConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if ErrFault.Error() != "bad address" {
					t.Errorf("unexpected message under concurrency")
					return
				}
			}
		}()
	}
	wg.Wait()
}
