// Package buffer defines the unit of exchange a BufferPool schedules
// (Buffer) and the RAII-style wrapper a pool uses to track externally
// supplied memory (BufferHandle).
package buffer
