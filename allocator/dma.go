package allocator

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/e7canasta/vidframe/internal/ioctl"
)

// dmaHeapAllocationData mirrors struct dma_heap_allocation_data from
// <linux/dma-heap.h>.
type dmaHeapAllocationData struct {
	Len       uint64
	Fd        uint32
	FdFlags   uint32
	HeapFlags uint64
}

// dmaHeapIoctlAlloc is DMA_HEAP_IOCTL_ALLOC, _IOWR('H', 0x0, struct
// dma_heap_allocation_data). The kernel header is not always present in
// a build environment, so the encoding is reproduced by hand exactly as
// BufferAllocator.cpp does when linux/dma-heap.h is missing.
const dmaHeapIoctlAlloc = 0xC0184800

// dmaHeapPaths mirrors the fallback chain BufferAllocator.cpp tries.
var dmaHeapPaths = []string{
	"/dev/dma_heap/linux,cma",
	"/dev/dma_heap/system",
	"/dev/ion",
}

type dmaRegion struct {
	virt []byte
	fd   int
}

// ContiguousDMA allocates physically contiguous memory from a DMA-heap
// character device and maps it into the process. Grounded on
// BufferAllocator.cpp's CMAAllocator: try a list of heap device paths,
// DMA_HEAP_IOCTL_ALLOC for size, mmap the returned descriptor, keep
// (virt, fd, size) triples so Deallocate can unmap and close.
type ContiguousDMA struct {
	mu      sync.Mutex
	regions map[uintptr]dmaRegion
}

var _ Allocator = (*ContiguousDMA)(nil)
var _ DmaBufExporter = (*ContiguousDMA)(nil)

// NewContiguousDMA constructs a DMA-heap backed allocator.
func NewContiguousDMA() *ContiguousDMA {
	return &ContiguousDMA{regions: make(map[uintptr]dmaRegion)}
}

// Allocate implements Allocator.
func (a *ContiguousDMA) Allocate(size int) ([]byte, uint64, error) {
	if size <= 0 {
		return nil, 0, ErrOutOfMemory
	}

	heapFd, usedPath, err := openHeapDevice()
	if err != nil {
		return nil, 0, fmt.Errorf("allocator: %w: %w", ErrOutOfMemory, err)
	}

	req := dmaHeapAllocationData{
		Len:     uint64(size),
		FdFlags: unix.O_RDWR | unix.O_CLOEXEC,
	}
	if err := ioctl.Ptr(heapFd, dmaHeapIoctlAlloc, unsafe.Pointer(&req)); err != nil {
		unix.Close(heapFd)
		return nil, 0, fmt.Errorf("allocator: DMA_HEAP_IOCTL_ALLOC on %s: %w", usedPath, err)
	}
	unix.Close(heapFd) // heap fd is disposable, the returned buffer fd stays open

	bufFd := int(req.Fd)
	virt, err := unix.Mmap(bufFd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(bufFd)
		return nil, 0, fmt.Errorf("allocator: mmap dma-buf fd %d: %w", bufFd, err)
	}

	phys := physicalAddress(virtAddrOf(virt))
	if phys == 0 {
		slog.Warn("allocator: failed to resolve physical address for CMA buffer")
	}

	a.mu.Lock()
	a.regions[virtAddrOf(virt)] = dmaRegion{virt: virt, fd: bufFd}
	a.mu.Unlock()

	return virt, phys, nil
}

// Deallocate implements Allocator.
func (a *ContiguousDMA) Deallocate(virtAddr []byte) {
	if len(virtAddr) == 0 {
		return
	}
	key := virtAddrOf(virtAddr)

	a.mu.Lock()
	region, ok := a.regions[key]
	delete(a.regions, key)
	a.mu.Unlock()

	if !ok {
		slog.Warn("allocator: CMA buffer not found in registry, forced unmap")
		unmapAnonymous(virtAddr)
		return
	}
	unmapAnonymous(region.virt)
	unix.Close(region.fd)
}

// DmaBufFd implements DmaBufExporter.
func (a *ContiguousDMA) DmaBufFd(virtAddr []byte) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	region, ok := a.regions[virtAddrOf(virtAddr)]
	if !ok {
		return -1, false
	}
	return region.fd, true
}

// Name implements Allocator.
func (a *ContiguousDMA) Name() string { return "ContiguousDMA" }

func openHeapDevice() (fd int, path string, err error) {
	var lastErr error
	for _, p := range dmaHeapPaths {
		fd, lastErr = unix.Open(p, unix.O_RDWR, 0)
		if lastErr == nil {
			return fd, p, nil
		}
	}
	return -1, "", fmt.Errorf("no DMA heap device available (tried %d paths): %w", len(dmaHeapPaths), lastErr)
}
