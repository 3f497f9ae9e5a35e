package allocator

import (
	"encoding/binary"
	"log/slog"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const pagemapPfnMask = (uint64(1) << 55) - 1
const pagemapPresentBit = uint64(1) << 63

// physicalAddress resolves the physical address backing virt by walking
// /proc/self/pagemap. It returns 0 when the facility is unreadable
// (insufficient privilege, non-Linux) or when the page is not resident,
// matching the platform's best-effort contract: physical_addr may be 0
// when the platform cannot expose it.
func physicalAddress(virt uintptr) uint64 {
	f, err := os.Open("/proc/self/pagemap")
	if err != nil {
		return 0
	}
	defer f.Close()

	pageSize := uint64(os.Getpagesize())
	pageOffset := uint64(virt) % pageSize
	itemOffset := int64((uint64(virt) / pageSize) * 8)

	buf := make([]byte, 8)
	if _, err := f.ReadAt(buf, itemOffset); err != nil {
		return 0
	}

	entry := binary.LittleEndian.Uint64(buf)
	if entry&pagemapPresentBit == 0 {
		return 0
	}

	pfn := entry & pagemapPfnMask
	return pfn*pageSize + pageOffset
}

func virtAddrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// pageAlignedAnonymous returns a zero-filled, page-aligned mapping of
// size bytes backed by anonymous memory, the Go equivalent of the
// original's posix_memalign(4096, size) + memset(0).
func pageAlignedAnonymous(size int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrOutOfMemory
	}
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		slog.Warn("allocator: anonymous mmap failed", "size", size, "err", err)
		return nil, ErrOutOfMemory
	}
	return b, nil
}

func unmapAnonymous(b []byte) {
	if len(b) == 0 {
		return
	}
	if err := unix.Munmap(b); err != nil {
		slog.Warn("allocator: munmap failed", "err", err)
	}
}
