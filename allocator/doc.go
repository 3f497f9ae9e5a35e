// Package allocator provides the memory acquisition policies a BufferPool
// can be built on: page-aligned normal memory, physically contiguous
// DMA-heap memory, or externally owned memory the pool never allocates
// or frees itself.
package allocator
