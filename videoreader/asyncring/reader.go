package asyncring

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/e7canasta/vidframe/buffer"
	"github.com/e7canasta/vidframe/bufferpool"
	"github.com/e7canasta/vidframe/videoreader"
)

// MaxInFlight bounds how many reads a Reader will have outstanding at
// once, mirroring the origin's io_uring queue depth.
const MaxInFlight = 8

// BatchSize is the typical number of frames BatchSubmit pipelines in
// one call, matching the origin's stated batching granularity.
const BatchSize = 4

// Completion reports the outcome of one submitted read.
type Completion struct {
	Index uint64
	Err   error
}

// Reader implements videoreader.Reader by pipelining positional reads
// across a bounded pool of goroutines. BatchSubmit and Harvest are not
// safe for concurrent submitters, but ReadFrameAtThreadSafe (a direct
// unix.Pread with no shared ring state) is safe to call from any number
// of goroutines at any time; VideoProducer's workers share one instance
// through it.
type Reader struct {
	stateMu sync.RWMutex
	file    *os.File
	fd      int
	isOpen  atomic.Bool

	path      string
	fileSize  int64
	width     int
	height    int
	bppBits   int
	frameSize int
	total     uint64

	cursor atomic.Uint64

	inFlight    chan struct{}
	completions chan Completion
	wg          sync.WaitGroup

	pool *bufferpool.Pool
}

var _ videoreader.Reader = (*Reader)(nil)

// New constructs an unopened async-ring reader.
func New() *Reader {
	return &Reader{
		inFlight:    make(chan struct{}, MaxInFlight),
		completions: make(chan Completion, MaxInFlight),
	}
}

// Open is not supported: the origin declares auto-detect unimplemented
// for this reader and requires OpenRaw with explicit geometry.
func (r *Reader) Open(path string) error {
	return fmt.Errorf("asyncring: auto-detect not supported, use OpenRaw: %w", videoreader.ErrNotSupported)
}

// OpenRaw implements videoreader.Reader.
func (r *Reader) OpenRaw(path string, width, height, bppBits int) error {
	if width <= 0 || height <= 0 || bppBits <= 0 {
		return fmt.Errorf("asyncring: invalid geometry %dx%d@%dbpp", width, height, bppBits)
	}
	if r.isOpen.Load() {
		slog.Warn("asyncring: reopening already-open reader", "path", r.path)
		r.Close()
	}

	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("asyncring: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("asyncring: stat %s: %w", path, err)
	}

	frameSize := (width*height*bppBits + 7) / 8
	total := uint64(info.Size()) / uint64(frameSize)
	if total == 0 {
		f.Close()
		return fmt.Errorf("asyncring: %s is smaller than one frame", path)
	}

	r.stateMu.Lock()
	r.file = f
	r.fd = int(f.Fd())
	r.path = path
	r.fileSize = info.Size()
	r.width = width
	r.height = height
	r.bppBits = bppBits
	r.frameSize = frameSize
	r.total = total
	r.stateMu.Unlock()

	r.cursor.Store(0)
	r.isOpen.Store(true)
	return nil
}

// Close implements videoreader.Reader.
func (r *Reader) Close() error {
	if !r.isOpen.CompareAndSwap(true, false) {
		return nil
	}
	r.wg.Wait()

	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	var err error
	if r.file != nil {
		err = r.file.Close()
		r.file = nil
	}
	return err
}

// IsOpen implements videoreader.Reader.
func (r *Reader) IsOpen() bool { return r.isOpen.Load() }

func (r *Reader) preadAt(index uint64, dest []byte) error {
	r.stateMu.RLock()
	fd, frameSize, total := r.fd, r.frameSize, r.total
	r.stateMu.RUnlock()

	if index >= total {
		return videoreader.ErrOutOfRange
	}
	if len(dest) < frameSize {
		return fmt.Errorf("asyncring: destination too small: have %d, need %d", len(dest), frameSize)
	}
	n, err := unix.Pread(fd, dest[:frameSize], int64(index)*int64(frameSize))
	if err != nil {
		return fmt.Errorf("asyncring: pread frame %d: %w", index, err)
	}
	if n != frameSize {
		return fmt.Errorf("asyncring: short read for frame %d: got %d, want %d", index, n, frameSize)
	}
	return nil
}

// ReadFrameAtThreadSafe implements videoreader.Reader with a direct
// unix.Pread, matching the origin's simplified thread-safe fallback: no
// ring state is touched, so many callers may share one fd concurrently.
func (r *Reader) ReadFrameAtThreadSafe(index uint64, dest []byte) error {
	if !r.isOpen.Load() {
		return videoreader.ErrNotOpen
	}
	return r.preadAt(index, dest)
}

// ReadFrameAt implements videoreader.Reader: a single submit-then-wait
// round trip through the ring, then the cursor advances to index+1.
func (r *Reader) ReadFrameAt(index uint64, dest []byte) error {
	if !r.isOpen.Load() {
		return videoreader.ErrNotOpen
	}
	if err := r.submitAndWait(index, dest); err != nil {
		return err
	}
	r.cursor.Store(index + 1)
	return nil
}

func (r *Reader) submitAndWait(index uint64, dest []byte) error {
	r.inFlight <- struct{}{}
	defer func() { <-r.inFlight }()
	return r.preadAt(index, dest)
}

// BatchSubmit dispatches one read per entry of indices, with at most
// MaxInFlight running at once, and returns once all of them have been
// dispatched; the length of indices is not capped at BatchSize.
// Callers harvest results from Harvest. A worker must Harvest every
// submission before submitting past MaxInFlight or BatchSubmit blocks.
func (r *Reader) BatchSubmit(indices []uint64, dests [][]byte) {
	for i, index := range indices {
		dest := dests[i]
		r.wg.Add(1)
		r.inFlight <- struct{}{}
		go func(index uint64, dest []byte) {
			defer r.wg.Done()
			defer func() { <-r.inFlight }()
			err := r.preadAt(index, dest)
			r.completions <- Completion{Index: index, Err: err}
		}(index, dest)
	}
}

// Harvest blocks for the next completion from a prior BatchSubmit.
func (r *Reader) Harvest() Completion {
	return <-r.completions
}

// ReadFrameToBytes implements videoreader.Reader.
func (r *Reader) ReadFrameToBytes(dest []byte) error {
	if !r.isOpen.Load() {
		return videoreader.ErrNotOpen
	}
	index := r.cursor.Load()
	if index >= r.GetTotalFrames() {
		return videoreader.ErrOutOfRange
	}
	return r.ReadFrameAt(index, dest)
}

// ReadFrameTo implements videoreader.Reader.
func (r *Reader) ReadFrameTo(buf *buffer.Buffer) error {
	return r.ReadFrameToBytes(buf.VirtualAddress())
}

// Seek implements videoreader.Reader.
func (r *Reader) Seek(index uint64) error {
	if index > r.GetTotalFrames() {
		return videoreader.ErrOutOfRange
	}
	r.cursor.Store(index)
	return nil
}

// SeekToBegin implements videoreader.Reader.
func (r *Reader) SeekToBegin() error { r.cursor.Store(0); return nil }

// SeekToEnd implements videoreader.Reader.
func (r *Reader) SeekToEnd() error { r.cursor.Store(r.GetTotalFrames()); return nil }

// Skip implements videoreader.Reader.
func (r *Reader) Skip(count uint64) error { return r.Seek(r.cursor.Load() + count) }

// GetTotalFrames implements videoreader.Reader.
func (r *Reader) GetTotalFrames() uint64 {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.total
}

// GetCurrentFrameIndex implements videoreader.Reader.
func (r *Reader) GetCurrentFrameIndex() uint64 { return r.cursor.Load() }

// GetFrameSize implements videoreader.Reader.
func (r *Reader) GetFrameSize() int {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.frameSize
}

// GetFileSize implements videoreader.Reader.
func (r *Reader) GetFileSize() int64 {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.fileSize
}

// GetWidth implements videoreader.Reader.
func (r *Reader) GetWidth() int {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.width
}

// GetHeight implements videoreader.Reader.
func (r *Reader) GetHeight() int {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.height
}

// GetBytesPerPixel implements videoreader.Reader.
func (r *Reader) GetBytesPerPixel() int {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return (r.bppBits + 7) / 8
}

// GetPath implements videoreader.Reader.
func (r *Reader) GetPath() string {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.path
}

// HasMoreFrames implements videoreader.Reader.
func (r *Reader) HasMoreFrames() bool { return r.cursor.Load() < r.GetTotalFrames() }

// IsAtEnd implements videoreader.Reader.
func (r *Reader) IsAtEnd() bool { return !r.HasMoreFrames() }

// GetReaderType implements videoreader.Reader.
func (r *Reader) GetReaderType() videoreader.Type { return videoreader.AsyncRing }

// SetBufferPool implements videoreader.Reader. Recorded for interface
// conformance; this reader has no decode step, so nothing is ever
// injected.
func (r *Reader) SetBufferPool(pool *bufferpool.Pool) { r.pool = pool }
