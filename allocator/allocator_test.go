package allocator

import (
	"errors"
	"os"
	"testing"
)

func TestNormalAllocateZeroFilledPageAligned(t *testing.T) {
	var a Normal
	virt, _, err := a.Allocate(8192)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer a.Deallocate(virt)

	if len(virt) != 8192 {
		t.Fatalf("len(virt) = %d, want 8192", len(virt))
	}
	if int(virtAddrOf(virt))%os.Getpagesize() != 0 {
		t.Fatalf("virt address not page aligned")
	}
	for i, b := range virt {
		if b != 0 {
			t.Fatalf("byte %d not zero-filled: %d", i, b)
		}
	}
}

func TestNormalAllocateRejectsNonPositiveSize(t *testing.T) {
	var a Normal
	if _, _, err := a.Allocate(0); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("Allocate(0) err = %v, want ErrOutOfMemory", err)
	}
}

func TestExternalAllocateAlwaysFails(t *testing.T) {
	var a External
	if _, _, err := a.Allocate(64); !errors.Is(err, ErrExternalAllocate) {
		t.Fatalf("Allocate err = %v, want ErrExternalAllocate", err)
	}
	// Deallocate must be a safe no-op regardless of input.
	a.Deallocate(nil)
	a.Deallocate(make([]byte, 4))
}

func TestNames(t *testing.T) {
	cases := []struct {
		a    Allocator
		want string
	}{
		{Normal{}, "Normal"},
		{External{}, "External"},
		{NewContiguousDMA(), "ContiguousDMA"},
	}
	for _, c := range cases {
		if got := c.a.Name(); got != c.want {
			t.Errorf("Name() = %q, want %q", got, c.want)
		}
	}
}
