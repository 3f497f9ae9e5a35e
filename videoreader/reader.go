package videoreader

import (
	"errors"
	"strings"

	"github.com/e7canasta/vidframe/buffer"
	"github.com/e7canasta/vidframe/bufferpool"
)

// Type names a concrete Reader implementation.
type Type int

const (
	// Auto lets the factory pick the best available implementation.
	Auto Type = iota
	// Mmap reads a raw frame file through a read-only memory mapping.
	Mmap
	// AsyncRing reads through a batched async I/O submission ring.
	AsyncRing
	// RTSP decodes a live network stream.
	RTSP
)

func (t Type) String() string {
	switch t {
	case Auto:
		return "auto"
	case Mmap:
		return "mmap"
	case AsyncRing:
		return "async-ring"
	case RTSP:
		return "rtsp"
	default:
		return "unknown"
	}
}

// ParseType maps a case-insensitive CLI/env spelling to a Type.
// "direct-read" is accepted as an alternate name for the async-ring
// path, used by the CLI surface in spec.md §6.
func ParseType(s string) (Type, bool) {
	switch strings.ToLower(s) {
	case "", "auto":
		return Auto, true
	case "mmap":
		return Mmap, true
	case "async-ring", "iouring", "io_uring":
		return AsyncRing, true
	case "direct-read":
		return AsyncRing, true
	case "rtsp":
		return RTSP, true
	default:
		return 0, false
	}
}

// Sentinel errors shared by every Reader implementation.
var (
	// ErrUnsupportedContainer is returned by Open when the source's
	// magic number is recognized but this reader cannot decode it.
	ErrUnsupportedContainer = errors.New("videoreader: container format recognized but not decodable by this reader")
	// ErrNotOpen is returned by any operation requiring an open reader.
	ErrNotOpen = errors.New("videoreader: reader is not open")
	// ErrNotSupported is returned by an operation a reader variant or
	// its current mode does not implement (e.g. Seek on an RTSP reader,
	// ReadFrameTo while a reader is in pool-injection mode).
	ErrNotSupported = errors.New("videoreader: operation not supported by this reader or mode")
	// ErrOutOfRange is returned by a random-access read past the end of
	// a finite source.
	ErrOutOfRange = errors.New("videoreader: frame index out of range")
)

// InfiniteFrames is the sentinel GetTotalFrames returns for sources
// with no known end, such as a live RTSP stream.
const InfiniteFrames = ^uint64(0)

// Reader is the capability set every video source implements: open a
// source (auto-detected or explicitly raw-shaped), read frames
// sequentially or at a random index, and report the geometry the
// reader settled on. ReadFrameAtThreadSafe additionally promises not
// to mutate reader state, so concurrent VideoProducer workers can share
// one Reader instance for random reads without external locking.
//
// Grounded on IVideoReader.hpp's full virtual surface, generalized to
// Go's explicit multi-value error returns instead of bool-return +
// out-param, and to []byte instead of raw pointer + size pairs.
type Reader interface {
	// Open auto-detects the source's container and geometry from its
	// contents. Returns ErrUnsupportedContainer if the container is
	// recognized but not decodable by this reader.
	Open(path string) error
	// OpenRaw opens path as a headerless raw frame stream of the given
	// geometry, skipping auto-detection entirely.
	OpenRaw(path string, width, height, bytesPerPixelBits int) error
	Close() error
	IsOpen() bool

	// ReadFrameTo reads the next frame in sequence into buf and
	// advances the reader's cursor. Returns ErrNotSupported in
	// pool-injection mode (spec.md open question decision 3).
	ReadFrameTo(buf *buffer.Buffer) error
	// ReadFrameToBytes is the raw-slice counterpart of ReadFrameTo, for
	// callers that do not hold a buffer.Buffer.
	ReadFrameToBytes(dest []byte) error

	// ReadFrameAt performs a random-access read at index, then leaves
	// the reader's cursor positioned at index+1. Not safe for
	// concurrent callers sharing one Reader.
	ReadFrameAt(index uint64, dest []byte) error
	// ReadFrameAtThreadSafe performs the same random-access read but
	// never mutates reader state, so many VideoProducer workers can
	// call it concurrently on a shared Reader.
	ReadFrameAtThreadSafe(index uint64, dest []byte) error

	Seek(index uint64) error
	SeekToBegin() error
	SeekToEnd() error
	Skip(count uint64) error

	GetTotalFrames() uint64
	GetCurrentFrameIndex() uint64
	GetFrameSize() int
	GetFileSize() int64
	GetWidth() int
	GetHeight() int
	GetBytesPerPixel() int
	GetPath() string
	HasMoreFrames() bool
	IsAtEnd() bool
	GetReaderType() Type

	// SetBufferPool switches a reader that supports direct injection
	// (currently only the RTSP variant) into injection mode: once set,
	// each decoded frame is pushed into pool via InjectFilledBuffer
	// instead of being held in the reader's own buffered ring. Readers
	// that do not support injection ignore the call.
	SetBufferPool(pool *bufferpool.Pool)
}
